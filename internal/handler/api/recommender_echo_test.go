package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"SPI/internal/domain/models"
	domrepo "SPI/internal/domain/repository"
	"SPI/internal/repository"
	"SPI/internal/service/export"
	"SPI/internal/services/pricing"
	"SPI/internal/usecase"
	"SPI/pkg/cache"
	xhttp "SPI/pkg/http"
	xlogger "SPI/pkg/logger"
)

type sliceStore struct {
	recs []*models.Recommendation
}

func (s *sliceStore) Store(_ context.Context, r *models.Recommendation) error {
	cp := *r
	s.recs = append(s.recs, &cp)
	return nil
}

func (s *sliceStore) StoreDecision(context.Context, *models.Decision) error { return nil }

func (s *sliceStore) Query(_ context.Context, sku string, _, _ time.Time, limit int) ([]*models.Recommendation, error) {
	var out []*models.Recommendation
	for i := len(s.recs) - 1; i >= 0 && len(out) < limit; i-- {
		if s.recs[i].SKU == sku {
			out = append(out, s.recs[i])
		}
	}
	return out, nil
}

func (s *sliceStore) Health(context.Context) error { return nil }
func (s *sliceStore) Close() error                 { return nil }

const testSecret = "test-secret"

func recommenderServer(t *testing.T, store domrepo.RecommendationStore, secret string) *echo.Echo {
	t.Helper()
	c := cache.NewMemoryCache()
	t.Cleanup(func() { _ = c.Close() })

	if store == nil {
		store = repository.NewUnavailableStore()
	}
	uc := usecase.NewRecommender(
		pricing.NewEvaluator(pricing.DefaultRules),
		c, store, repository.NoopEventPublisher{}, repository.NoopMetrics{}, xlogger.Nop(),
	)
	h := NewRecommenderEchoHandler(xlogger.Nop(), uc, store, nil, secret)
	return xhttp.NewServer([]xhttp.Handler{h}).Echo()
}

func TestPredictScenarios(t *testing.T) {
	e := recommenderServer(t, &sliceStore{}, "")

	tests := []struct {
		name string
		body string
		want string
	}{
		{"no competitors", `{"product":{"sku":"A","cost_price":100}}`, `{"recommended_price":115.0,"model_version":"rule-v0"}`},
		{"floor wins", `{"product":{"sku":"A","cost_price":100},"competitor_prices":[120]}`, `{"recommended_price":115.0,"model_version":"rule-v0"}`},
		{"undercut wins", `{"product":{"sku":"A","cost_price":100},"competitor_prices":[130]}`, `{"recommended_price":123.5,"model_version":"rule-v0"}`},
		{
			"custom rules",
			`{"product":{"sku":"B","cost_price":50},"competitor_prices":[40,45],"rules":{"min_profit_margin":0.2,"undercut_limit":0.1}}`,
			`{"recommended_price":60.0,"model_version":"rule-v0"}`,
		},
		{
			"explicit defaults",
			`{"product":{"sku":"A","cost_price":100},"competitor_prices":[120],"rules":{"min_profit_margin":0.15,"undercut_limit":0.05}}`,
			`{"recommended_price":115.0,"model_version":"rule-v0"}`,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := do(e, http.MethodPost, "/predict", tt.body)
			assert.Equal(t, http.StatusOK, rec.Code)
			assert.JSONEq(t, tt.want, rec.Body.String())
		})
	}
}

func TestPredictValidation(t *testing.T) {
	e := recommenderServer(t, &sliceStore{}, "")

	for _, body := range []string{
		`{}`,
		`{"product":{"sku":"A"}}`,
		`{"product":{"cost_price":100}}`,
		`{"product":{"sku":"A","cost_price":"cheap"}}`,
		`not json`,
	} {
		rec := do(e, http.MethodPost, "/predict", body)
		assert.Equal(t, http.StatusBadRequest, rec.Code, body)

		var resp xhttp.APIResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp), body)
		assert.Equal(t, http.StatusBadRequest, resp.Status)
	}
}

func TestLatestAndDecision(t *testing.T) {
	e := recommenderServer(t, &sliceStore{}, "")

	rec := do(e, http.MethodGet, "/api/recommendations/A-1", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	do(e, http.MethodPost, "/predict", `{"product":{"sku":"A-1","cost_price":100},"competitor_prices":[130]}`)

	rec = do(e, http.MethodGet, "/api/recommendations/A-1", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var latest struct {
		Data models.Recommendation `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &latest))
	assert.Equal(t, 123.5, latest.Data.RecommendedPrice)
	assert.Equal(t, models.StatusPending, latest.Data.Status)

	rec = do(e, http.MethodPost, "/api/recommendations/A-1/decision", `{"action":"maybe"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(e, http.MethodPost, "/api/recommendations/A-1/decision", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var decided struct {
		Data models.Decision `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &decided))
	assert.Equal(t, "accept", decided.Data.Action)
	assert.Equal(t, models.StatusApplied, decided.Data.Status)

	rec = do(e, http.MethodPost, "/api/recommendations/A-1/decision", `{"action":"reject"}`)
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestDecisionRequiresTokenWhenSecretSet(t *testing.T) {
	e := recommenderServer(t, &sliceStore{}, testSecret)
	do(e, http.MethodPost, "/predict", `{"product":{"sku":"A-1","cost_price":100}}`)

	rec := do(e, http.MethodPost, "/api/recommendations/A-1/decision", `{"action":"reject"}`)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	tok, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub": "pricing-analyst",
		"exp": time.Now().Add(time.Hour).Unix(),
	}).SignedString([]byte(testSecret))
	require.NoError(t, err)

	rec = do(e, http.MethodPost, "/api/recommendations/A-1/decision", `{"action":"reject"}`,
		echo.HeaderAuthorization, "Bearer "+tok)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"status":"rejected"`)
}

func TestHistoryAndExport(t *testing.T) {
	e := recommenderServer(t, &sliceStore{}, "")
	for _, body := range []string{
		`{"product":{"sku":"A-1","cost_price":100}}`,
		`{"product":{"sku":"A-1","cost_price":100},"competitor_prices":[130]}`,
		`{"product":{"sku":"B-2","cost_price":50}}`,
	} {
		require.Equal(t, http.StatusOK, do(e, http.MethodPost, "/predict", body).Code)
	}

	rec := do(e, http.MethodGet, "/api/recommendations/A-1/history?limit=10", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var hist struct {
		Data struct {
			Rows  []models.Recommendation `json:"rows"`
			Total int64                   `json:"total"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &hist))
	assert.Equal(t, int64(2), hist.Data.Total)
	assert.Equal(t, 123.5, hist.Data.Rows[0].RecommendedPrice)

	rec = do(e, http.MethodGet, "/api/recommendations/A-1/history?from=garbage", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(e, http.MethodGet, "/api/recommendations/A-1/export", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, export.ContentType, rec.Header().Get(echo.HeaderContentType))
	assert.Contains(t, rec.Header().Get(echo.HeaderContentDisposition), "recommendations_A-1_")

	f, err := excelize.OpenReader(bytes.NewReader(rec.Body.Bytes()))
	require.NoError(t, err)
	defer f.Close()
	rows, err := f.GetRows(export.SheetName)
	require.NoError(t, err)
	assert.Len(t, rows, 3)
}

func TestHistoryUnavailableWithoutStore(t *testing.T) {
	e := recommenderServer(t, nil, "")

	rec := do(e, http.MethodGet, "/api/recommendations/A-1/history", "")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	rec = do(e, http.MethodGet, "/api/recommendations/A-1/export", "")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	// prediction is unaffected
	rec = do(e, http.MethodPost, "/predict", `{"product":{"sku":"A","cost_price":100}}`)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestRecommenderHealth(t *testing.T) {
	rec := do(recommenderServer(t, &sliceStore{}, ""), http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok","model_version":"rule-v0","dependencies":{"history":"ok"}}`, rec.Body.String())
}
