package repository

import (
	"context"
	"time"

	"SPI/internal/domain/models"
)

// EventPublisher ships recommendation lifecycle events downstream.
type EventPublisher interface {
	Publish(ctx context.Context, ev *models.RecommendationEvent) error
	Close() error
}

// RecommendationStore is the append-only recommendation history.
type RecommendationStore interface {
	Store(ctx context.Context, r *models.Recommendation) error
	StoreDecision(ctx context.Context, d *models.Decision) error
	Query(ctx context.Context, sku string, from, to time.Time, limit int) ([]*models.Recommendation, error)
	Health(ctx context.Context) error
	Close() error
}

// Broadcaster fans created recommendations out to live subscribers.
type Broadcaster interface {
	Broadcast(r *models.Recommendation)
}

type Metrics interface {
	RecordRecommendation(outcome models.Outcome, price float64)
	RecordError(kind string)
	RecordLatency(op string, seconds float64)
}
