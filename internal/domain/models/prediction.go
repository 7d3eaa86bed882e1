package models

import "time"

// Signal is the synthesized directional call.
type Signal string

const (
	SignalBuy  Signal = "BUY"
	SignalSell Signal = "SELL"
)

// HapticKind is the notification style requested from the host on result.
type HapticKind string

const (
	HapticSuccess HapticKind = "success"
	HapticWarning HapticKind = "warning"
)

// Haptic returns the feedback kind matching the signal.
func (s Signal) Haptic() HapticKind {
	if s == SignalBuy {
		return HapticSuccess
	}
	return HapticWarning
}

// Prediction is produced once per analysis run and never mutated afterwards.
type Prediction struct {
	Symbol     string    `json:"symbol"`
	Signal     Signal    `json:"signal"`
	Confidence int       `json:"confidence"`
	Target     string    `json:"target"` // signed percent, e.g. "+1.25%"
	Entry      string    `json:"entry"`  // price with 2 decimals
	Timeframe  string    `json:"timeframe"`
	CreatedAt  time.Time `json:"created_at"`
}

// PredictionEvent is emitted downstream when a session reaches the result view.
type PredictionEvent struct {
	SessionID  string     `json:"session_id"`
	Prediction Prediction `json:"prediction"`
	Progress   int        `json:"progress_at_result"`
	Elapsed    int64      `json:"elapsed_ms"`
}
