package repository

import (
	"context"

	"Predictor/internal/domain/models"
	"Predictor/internal/domain/repository"
)

// Producer is the part of pkg/kafka.Producer the publisher needs.
type Producer interface {
	Publish(ctx context.Context, topic string, key []byte, value interface{}) error
	Close() error
}

// KafkaEventPublisher implements EventPublisher for Kafka. Events are keyed by
// session id so one session's results stay ordered.
type KafkaEventPublisher struct {
	producer Producer
	topic    string
}

// NewKafkaEventPublisher creates Kafka publisher.
func NewKafkaEventPublisher(producer Producer, topic string) repository.EventPublisher {
	return &KafkaEventPublisher{producer: producer, topic: topic}
}

func (p *KafkaEventPublisher) PublishPrediction(ctx context.Context, evt models.PredictionEvent) error {
	return p.producer.Publish(ctx, p.topic, []byte(evt.SessionID), evt)
}

func (p *KafkaEventPublisher) Close() error {
	if p.producer != nil {
		return p.producer.Close()
	}
	return nil
}

// NoopEventPublisher drops events. Used when Kafka is disabled.
type NoopEventPublisher struct{}

func (NoopEventPublisher) PublishPrediction(context.Context, models.PredictionEvent) error {
	return nil
}

func (NoopEventPublisher) Close() error { return nil }
