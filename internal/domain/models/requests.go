package models

// Requests for the session HTTP endpoints. Symbols are not tagged `required`: blank
// symbols are a workflow outcome (error message on the form), not a malformed request.

type CreateSessionRequest struct {
	Base      string `json:"base" default:"BTC" validate:"max=32"`
	Quote     string `json:"quote" default:"USDT" validate:"max=32"`
	Timeframe string `json:"timeframe" default:"15m" validate:"oneof=1m 5m 15m 1h 4h 1d"`
}

type UpdateFormRequest struct {
	Base      *string `json:"base" validate:"omitempty,max=32"`
	Quote     *string `json:"quote" validate:"omitempty,max=32"`
	Timeframe *string `json:"timeframe" validate:"omitempty,oneof=1m 5m 15m 1h 4h 1d"`
}

type RunAnalysisRequest struct {
	Base      *string `json:"base" validate:"omitempty,max=32"`
	Quote     *string `json:"quote" validate:"omitempty,max=32"`
	Timeframe *string `json:"timeframe" validate:"omitempty,oneof=1m 5m 15m 1h 4h 1d"`
}

type TimeframesResponse struct {
	Timeframes []string `json:"timeframes"`
	Default    string   `json:"default"`
}
