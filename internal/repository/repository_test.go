package repository

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"SPI/internal/domain/models"
)

type published struct {
	topic string
	key   string
	value interface{}
}

type fakeProducer struct {
	msgs   []published
	closed bool
}

func (f *fakeProducer) Publish(_ context.Context, topic string, key []byte, value interface{}) error {
	f.msgs = append(f.msgs, published{topic: topic, key: string(key), value: value})
	return nil
}

func (f *fakeProducer) Close() error {
	f.closed = true
	return nil
}

func TestKafkaEventPublisherKeysBySKU(t *testing.T) {
	fp := &fakeProducer{}
	p := NewKafkaEventPublisher(fp, "pricing.recommendations")

	created := &models.RecommendationEvent{Type: models.EventRecommendationCreated, Recommendation: &models.Recommendation{SKU: "A-1"}}
	decided := &models.RecommendationEvent{Type: models.EventRecommendationDecided, Decision: &models.Decision{SKU: "B-2"}}
	require.NoError(t, p.Publish(context.Background(), created))
	require.NoError(t, p.Publish(context.Background(), decided))
	require.NoError(t, p.Close())

	require.Len(t, fp.msgs, 2)
	assert.Equal(t, "pricing.recommendations", fp.msgs[0].topic)
	assert.Equal(t, "A-1", fp.msgs[0].key)
	assert.Equal(t, "B-2", fp.msgs[1].key)
	assert.Same(t, created, fp.msgs[0].value)
	assert.True(t, fp.closed)
}

func TestHistoryQueryWindow(t *testing.T) {
	q, args := historyQuery("A-1", time.Time{}, time.Time{}, 50)
	assert.NotContains(t, q, "created_at >=")
	assert.NotContains(t, q, "created_at <=")
	assert.Equal(t, []interface{}{"A-1", "A-1", 50}, args)

	from := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	to := from.Add(24 * time.Hour)
	q, args = historyQuery("A-1", from, to, 10)
	assert.Contains(t, q, "r.created_at >= ? AND r.created_at <= ?")
	assert.Equal(t, []interface{}{"A-1", "A-1", from, to, 10}, args)
	assert.Equal(t, len(args), strings.Count(q, "?"))
}

func TestUnavailableStore(t *testing.T) {
	s := NewUnavailableStore()
	ctx := context.Background()

	assert.NoError(t, s.Store(ctx, &models.Recommendation{}))
	assert.NoError(t, s.StoreDecision(ctx, &models.Decision{}))
	_, err := s.Query(ctx, "A-1", time.Time{}, time.Time{}, 10)
	assert.ErrorIs(t, err, models.ErrHistoryUnavailable)
}

func TestNullableRoundTrip(t *testing.T) {
	assert.Nil(t, nullable(nil))
	v := 12.5
	assert.Equal(t, 12.5, nullable(&v))
}
