package service

import "Predictor/internal/domain/models"

// Synthesizer produces the outcome of an analysis run.
type Synthesizer interface {
	Synthesize(symbol, timeframe string) models.Prediction
}
