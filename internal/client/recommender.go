// Package client is a typed HTTP client for the recommender service, used by
// dashboards and the spi command line tool.
package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"SPI/internal/domain/models"
	xhttp "SPI/pkg/http"
)

// Option configures Recommender.
type Option func(*Recommender)

// WithToken sends a bearer token, required by the decision route when the
// service has a JWT secret configured.
func WithToken(token string) Option {
	return func(r *Recommender) { r.token = token }
}

// WithHTTPOptions passes options through to the underlying HTTP client.
func WithHTTPOptions(opts ...xhttp.ClientOption) Option {
	return func(r *Recommender) { r.httpOpts = append(r.httpOpts, opts...) }
}

// Recommender calls the recommender service's HTTP API.
type Recommender struct {
	base     string
	token    string
	httpOpts []xhttp.ClientOption
	http     *xhttp.Client
}

func NewRecommender(baseURL string, opts ...Option) *Recommender {
	r := &Recommender{
		base:     strings.TrimRight(baseURL, "/"),
		httpOpts: []xhttp.ClientOption{xhttp.WithTimeout(10 * time.Second)},
	}
	for _, opt := range opts {
		opt(r)
	}
	r.http = xhttp.NewClient(r.httpOpts...)
	return r
}

// APIError is a non-2xx answer from the service.
type APIError struct {
	StatusCode int
	Message    string
	Errors     []xhttp.ValidationError
}

func (e *APIError) Error() string {
	if len(e.Errors) > 0 && e.Errors[0].Message != "" {
		return fmt.Sprintf("recommender: %d %s: %s", e.StatusCode, e.Message, e.Errors[0].Message)
	}
	return fmt.Sprintf("recommender: %d %s", e.StatusCode, e.Message)
}

type envelope[T any] struct {
	Status  int    `json:"status"`
	Message string `json:"message"`
	Data    T      `json:"data"`
}

type listData[T any] struct {
	Rows  []T   `json:"rows"`
	Total int64 `json:"total"`
}

// Predict posts a prediction request. The response is the bare result object.
func (r *Recommender) Predict(ctx context.Context, req *models.PredictionRequest) (models.PredictionResult, error) {
	var res models.PredictionResult
	err := r.do(ctx, &xhttp.RequestOptions{
		Method: xhttp.MethodPost,
		URL:    r.base + "/predict",
		Body:   req,
	}, &res)
	return res, err
}

// Latest returns the newest cached recommendation for sku.
func (r *Recommender) Latest(ctx context.Context, sku string) (*models.Recommendation, error) {
	var env envelope[*models.Recommendation]
	if err := r.do(ctx, &xhttp.RequestOptions{
		Method: xhttp.MethodGet,
		URL:    r.skuURL(sku, ""),
	}, &env); err != nil {
		return nil, err
	}
	return env.Data, nil
}

// Decide accepts or rejects the latest recommendation for sku.
func (r *Recommender) Decide(ctx context.Context, sku, action string) (*models.Decision, error) {
	opts := &xhttp.RequestOptions{
		Method: xhttp.MethodPost,
		URL:    r.skuURL(sku, "/decision"),
		Body:   map[string]string{"action": action},
	}
	if r.token != "" {
		opts.Headers = map[string]string{"Authorization": "Bearer " + r.token}
	}

	var env envelope[*models.Decision]
	if err := r.do(ctx, opts, &env); err != nil {
		return nil, err
	}
	return env.Data, nil
}

// History lists stored recommendations for sku, newest first. Zero bounds and
// a non-positive limit are left to the server defaults.
func (r *Recommender) History(ctx context.Context, sku string, from, to time.Time, limit int) ([]*models.Recommendation, error) {
	var env envelope[listData[*models.Recommendation]]
	if err := r.do(ctx, &xhttp.RequestOptions{
		Method:      xhttp.MethodGet,
		URL:         r.skuURL(sku, "/history"),
		QueryParams: rangeParams(from, to, limit),
	}, &env); err != nil {
		return nil, err
	}
	return env.Data.Rows, nil
}

// Export returns the XLSX workbook for sku's history.
func (r *Recommender) Export(ctx context.Context, sku string, from, to time.Time, limit int) ([]byte, error) {
	var b []byte
	err := r.do(ctx, &xhttp.RequestOptions{
		Method:      xhttp.MethodGet,
		URL:         r.skuURL(sku, "/export"),
		QueryParams: rangeParams(from, to, limit),
	}, &b)
	return b, err
}

func (r *Recommender) skuURL(sku, suffix string) string {
	return r.base + "/api/recommendations/" + url.PathEscape(sku) + suffix
}

func (r *Recommender) do(ctx context.Context, opts *xhttp.RequestOptions, dest any) error {
	err := r.http.SendAndParse(ctx, opts, dest)

	var se *xhttp.StatusError
	if errors.As(err, &se) {
		return decodeAPIError(se)
	}
	return err
}

func decodeAPIError(se *xhttp.StatusError) error {
	apiErr := &APIError{StatusCode: se.StatusCode, Message: http.StatusText(se.StatusCode)}

	var env envelope[[]xhttp.ValidationError]
	if json.Unmarshal(se.Body, &env) == nil {
		if env.Message != "" {
			apiErr.Message = env.Message
		}
		apiErr.Errors = env.Data
	}
	return apiErr
}

func rangeParams(from, to time.Time, limit int) map[string][]string {
	q := map[string][]string{}
	if !from.IsZero() {
		q["from"] = []string{from.UTC().Format(time.RFC3339)}
	}
	if !to.IsZero() {
		q["to"] = []string{to.UTC().Format(time.RFC3339)}
	}
	if limit > 0 {
		q["limit"] = []string{strconv.Itoa(limit)}
	}
	return q
}
