package repository

import (
	"context"
	"time"

	"SPI/internal/domain/models"
	domrepo "SPI/internal/domain/repository"
)

// NoopEventPublisher drops events when Kafka is disabled.
type NoopEventPublisher struct{}

func (NoopEventPublisher) Publish(context.Context, *models.RecommendationEvent) error { return nil }
func (NoopEventPublisher) Close() error                                               { return nil }

var _ domrepo.EventPublisher = NoopEventPublisher{}

// NoopMetrics discards measurements.
type NoopMetrics struct{}

func (NoopMetrics) RecordRecommendation(models.Outcome, float64) {}
func (NoopMetrics) RecordError(string)                           {}
func (NoopMetrics) RecordLatency(string, float64)                {}

var _ domrepo.Metrics = NoopMetrics{}

// unavailableStore stands in for the history store when ClickHouse is off.
type unavailableStore struct{}

// NewUnavailableStore returns a store whose reads fail with ErrHistoryUnavailable
// and whose writes are dropped.
func NewUnavailableStore() domrepo.RecommendationStore { return unavailableStore{} }

func (unavailableStore) Store(context.Context, *models.Recommendation) error { return nil }
func (unavailableStore) StoreDecision(context.Context, *models.Decision) error {
	return nil
}
func (unavailableStore) Query(context.Context, string, time.Time, time.Time, int) ([]*models.Recommendation, error) {
	return nil, models.ErrHistoryUnavailable
}
func (unavailableStore) Health(context.Context) error { return nil }
func (unavailableStore) Close() error                 { return nil }
