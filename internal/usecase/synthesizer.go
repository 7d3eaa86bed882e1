package usecase

import (
	"math"
	"math/rand/v2"
	"sync"
	"time"

	"Predictor/internal/domain/models"
	"Predictor/pkg/config"

	"github.com/shopspring/decimal"
)

// RandomSynthesizer produces pseudo-random predictions. It has no model and ignores
// the pair except to echo it back.
type RandomSynthesizer struct {
	mu  sync.Mutex
	rnd *rand.Rand

	confMin, confMax int
	// bounds in hundredths so 2dp rounding can never reach the open upper bound
	entryMin, entryMax int64
	targetMax          int64

	now func() time.Time
}

// SynthOption configures RandomSynthesizer.
type SynthOption func(*RandomSynthesizer)

// WithSeed makes the draw sequence reproducible.
func WithSeed(seed uint64) SynthOption {
	return func(s *RandomSynthesizer) {
		s.rnd = rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
	}
}

// WithClock overrides the timestamp source.
func WithClock(now func() time.Time) SynthOption {
	return func(s *RandomSynthesizer) { s.now = now }
}

func NewRandomSynthesizer(cfg config.AnalysisConfig, opts ...SynthOption) *RandomSynthesizer {
	s := &RandomSynthesizer{
		rnd:       rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64())),
		confMin:   cfg.ConfidenceMin,
		confMax:   cfg.ConfidenceMax,
		entryMin:  toCents(cfg.EntryMin),
		entryMax:  toCents(cfg.EntryMax),
		targetMax: toCents(cfg.TargetMax),
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Synthesize draws direction, confidence, move magnitude and entry price.
func (s *RandomSynthesizer) Synthesize(symbol, timeframe string) models.Prediction {
	s.mu.Lock()
	isUp := s.rnd.IntN(2) == 1
	confidence := s.confMin + s.rnd.IntN(s.confMax-s.confMin+1)
	move := s.rnd.Int64N(s.targetMax)
	entry := s.entryMin + s.rnd.Int64N(s.entryMax-s.entryMin)
	s.mu.Unlock()

	signal, sign := models.SignalSell, "-"
	if isUp {
		signal, sign = models.SignalBuy, "+"
	}

	return models.Prediction{
		Symbol:     symbol,
		Signal:     signal,
		Confidence: confidence,
		Target:     sign + decimal.New(move, -2).StringFixed(2) + "%",
		Entry:      decimal.New(entry, -2).StringFixed(2),
		Timeframe:  timeframe,
		CreatedAt:  s.now().UTC(),
	}
}

func toCents(v float64) int64 {
	return int64(math.Round(v * 100))
}
