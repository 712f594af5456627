package client

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"SPI/internal/domain/models"
	domrepo "SPI/internal/domain/repository"
	"SPI/internal/handler/api"
	"SPI/internal/repository"
	"SPI/internal/services/pricing"
	"SPI/internal/usecase"
	"SPI/pkg/cache"
	xhttp "SPI/pkg/http"
	xlogger "SPI/pkg/logger"
)

const secret = "client-test-secret"

type memStore struct {
	mu   sync.Mutex
	recs []*models.Recommendation
}

func (s *memStore) Store(_ context.Context, r *models.Recommendation) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *r
	s.recs = append(s.recs, &cp)
	return nil
}

func (s *memStore) StoreDecision(context.Context, *models.Decision) error { return nil }

func (s *memStore) Query(_ context.Context, sku string, _, _ time.Time, limit int) ([]*models.Recommendation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*models.Recommendation
	for i := len(s.recs) - 1; i >= 0 && len(out) < limit; i-- {
		if s.recs[i].SKU == sku {
			out = append(out, s.recs[i])
		}
	}
	return out, nil
}

func (s *memStore) Health(context.Context) error { return nil }
func (s *memStore) Close() error                 { return nil }

func serve(t *testing.T, store domrepo.RecommendationStore) string {
	t.Helper()
	c := cache.NewMemoryCache()
	t.Cleanup(func() { _ = c.Close() })

	uc := usecase.NewRecommender(
		pricing.NewEvaluator(pricing.DefaultRules),
		c, store, repository.NoopEventPublisher{}, repository.NoopMetrics{}, xlogger.Nop(),
	)
	h := api.NewRecommenderEchoHandler(xlogger.Nop(), uc, store, nil, secret)
	srv := httptest.NewServer(xhttp.NewServer([]xhttp.Handler{h}).Echo())
	t.Cleanup(srv.Close)
	return srv.URL
}

func token(t *testing.T) string {
	t.Helper()
	tok, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub": "dashboard",
		"exp": time.Now().Add(time.Hour).Unix(),
	}).SignedString([]byte(secret))
	require.NoError(t, err)
	return tok
}

func cost(v float64) *float64 { return &v }

func TestPredictLatestDecide(t *testing.T) {
	ctx := context.Background()
	rc := NewRecommender(serve(t, &memStore{})+"/", WithToken(token(t)))

	res, err := rc.Predict(ctx, &models.PredictionRequest{
		Product:          &models.ProductInput{SKU: "A-1", CostPrice: cost(100)},
		CompetitorPrices: []float64{130},
	})
	require.NoError(t, err)
	assert.Equal(t, models.PredictionResult{RecommendedPrice: 123.5, ModelVersion: "rule-v0"}, res)

	rec, err := rc.Latest(ctx, "A-1")
	require.NoError(t, err)
	assert.Equal(t, "A-1", rec.SKU)
	assert.Equal(t, models.StatusPending, rec.Status)

	d, err := rc.Decide(ctx, "A-1", models.ActionReject)
	require.NoError(t, err)
	assert.Equal(t, rec.ID, d.RecommendationID)
	assert.Equal(t, models.StatusRejected, d.Status)

	_, err = rc.Decide(ctx, "A-1", models.ActionAccept)
	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusConflict, apiErr.StatusCode)
}

func TestErrorsCarryEnvelopeDetails(t *testing.T) {
	ctx := context.Background()
	base := serve(t, repository.NewUnavailableStore())

	_, err := NewRecommender(base).Predict(ctx, &models.PredictionRequest{})
	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusBadRequest, apiErr.StatusCode)
	require.NotEmpty(t, apiErr.Errors)
	assert.Equal(t, "product", apiErr.Errors[0].Field)

	_, err = NewRecommender(base).Latest(ctx, "nope")
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusNotFound, apiErr.StatusCode)

	_, err = NewRecommender(base).History(ctx, "nope", time.Time{}, time.Time{}, 0)
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusServiceUnavailable, apiErr.StatusCode)

	// no token
	_, err = NewRecommender(base).Decide(ctx, "nope", models.ActionAccept)
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusUnauthorized, apiErr.StatusCode)
}

func TestHistoryAndExport(t *testing.T) {
	ctx := context.Background()
	rc := NewRecommender(serve(t, &memStore{}))

	for _, c := range []float64{100, 200, 300} {
		_, err := rc.Predict(ctx, &models.PredictionRequest{Product: &models.ProductInput{SKU: "H", CostPrice: cost(c)}})
		require.NoError(t, err)
	}

	recs, err := rc.History(ctx, "H", time.Now().Add(-time.Hour), time.Time{}, 2)
	require.NoError(t, err)
	require.Len(t, recs, 2)
	assert.Equal(t, 345.0, recs[0].RecommendedPrice)

	b, err := rc.Export(ctx, "H", time.Time{}, time.Time{}, 0)
	require.NoError(t, err)
	assert.Equal(t, "PK", string(b[:2]), "xlsx is a zip archive")
}

func TestRangeParams(t *testing.T) {
	from := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)
	assert.Equal(t, map[string][]string{
		"from":  {"2024-01-02T03:04:05Z"},
		"limit": {"10"},
	}, rangeParams(from, time.Time{}, 10))
	assert.Empty(t, rangeParams(time.Time{}, time.Time{}, 0))
}
