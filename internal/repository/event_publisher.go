package repository

import (
	"context"

	"SPI/internal/domain/models"
	domrepo "SPI/internal/domain/repository"
)

// messagePublisher is the slice of pkg/kafka.Producer the publisher needs.
type messagePublisher interface {
	Publish(ctx context.Context, topic string, key []byte, value interface{}) error
	Close() error
}

// KafkaEventPublisher publishes recommendation events keyed by SKU so every
// event for one product lands on the same partition.
type KafkaEventPublisher struct {
	producer messagePublisher
	topic    string
}

func NewKafkaEventPublisher(producer messagePublisher, topic string) domrepo.EventPublisher {
	return &KafkaEventPublisher{producer: producer, topic: topic}
}

func (p *KafkaEventPublisher) Publish(ctx context.Context, ev *models.RecommendationEvent) error {
	return p.producer.Publish(ctx, p.topic, []byte(eventSKU(ev)), ev)
}

func (p *KafkaEventPublisher) Close() error {
	if p.producer != nil {
		return p.producer.Close()
	}
	return nil
}

func eventSKU(ev *models.RecommendationEvent) string {
	switch {
	case ev.Recommendation != nil:
		return ev.Recommendation.SKU
	case ev.Decision != nil:
		return ev.Decision.SKU
	}
	return ""
}
