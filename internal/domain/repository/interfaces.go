package repository

import (
	"context"

	"Predictor/internal/domain/models"
)

// EventPublisher forwards completed predictions downstream. Nothing is stored locally.
type EventPublisher interface {
	PublishPrediction(ctx context.Context, evt models.PredictionEvent) error
	Close() error
}

type Metrics interface {
	RecordSessionOpened()
	RecordSessionClosed(reason string)
	RecordAnalysisStarted(timeframe string)
	RecordValidationFailure(reason string)
	RecordPrediction(signal string, confidence int, progress int)
	RecordBridgeError(call string)
	RecordError(kind string)
	RecordLatency(op string, seconds float64)
}
