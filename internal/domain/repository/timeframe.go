package repository

// Timeframe is the analysis interval picked on the form.
type Timeframe string

const (
	TF1m  Timeframe = "1m"
	TF5m  Timeframe = "5m"
	TF15m Timeframe = "15m"
	TF1h  Timeframe = "1h"
	TF4h  Timeframe = "4h"
	TF1d  Timeframe = "1d"
)

var timeframes = []Timeframe{TF1m, TF5m, TF15m, TF1h, TF4h, TF1d}

// IsValidTimeframe returns true if tf is a supported timeframe.
func IsValidTimeframe(tf Timeframe) bool {
	switch tf {
	case TF1m, TF5m, TF15m, TF1h, TF4h, TF1d:
		return true
	default:
		return false
	}
}

// DefaultTimeframe returns the default timeframe.
func DefaultTimeframe() Timeframe { return TF15m }

// Timeframes lists the selectable timeframes in display order.
func Timeframes() []string {
	out := make([]string, len(timeframes))
	for i, tf := range timeframes {
		out[i] = string(tf)
	}
	return out
}
