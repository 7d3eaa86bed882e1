package util

import "strings"

// NormalizeSymbol trims surrounding whitespace and upper-cases an asset symbol.
func NormalizeSymbol(s string) string {
	return strings.ToUpper(strings.TrimSpace(s))
}

// JoinPair builds the "BASE/QUOTE" identifier. Inputs are expected to be normalized.
func JoinPair(base, quote string) string {
	return base + "/" + quote
}
