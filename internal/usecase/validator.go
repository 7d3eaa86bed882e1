package usecase

import (
	"Predictor/pkg/util"
)

// Pair is a validated, upper-cased base/quote pair.
type Pair struct {
	Base  string
	Quote string
}

func (p Pair) String() string { return util.JoinPair(p.Base, p.Quote) }

// ValidatePair trims and upper-cases both symbols. Any non-empty symbol is accepted;
// there is no list of known assets to check against.
func ValidatePair(base, quote string) (Pair, error) {
	b := util.NormalizeSymbol(base)
	q := util.NormalizeSymbol(quote)
	if b == "" || q == "" {
		return Pair{}, ErrEmptyField
	}
	return Pair{Base: b, Quote: q}, nil
}
