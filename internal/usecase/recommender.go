package usecase

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"SPI/internal/domain/models"
	drepo "SPI/internal/domain/repository"
	"SPI/internal/services/pricing"
	"SPI/pkg/cache"
	applogger "SPI/pkg/logger"
)

const (
	DefaultHistoryLimit = 100
	MaxHistoryLimit     = 1000

	sideEffectTimeout = 5 * time.Second
)

// RecommenderOption configures Recommender.
type RecommenderOption func(*Recommender)

// Recommender runs the pricing rules and keeps the operational trail around
// them. Only the evaluation decides the response of Predict; cache, history,
// events and broadcast are best effort.
type Recommender struct {
	evaluator   *pricing.Evaluator
	cache       cache.Service
	store       drepo.RecommendationStore
	pub         drepo.EventPublisher
	broadcaster drepo.Broadcaster
	metrics     drepo.Metrics
	logger      *applogger.Logger

	cacheTTL time.Duration
	lockTTL  time.Duration
	now      func() time.Time
	newID    func() string
}

func NewRecommender(
	evaluator *pricing.Evaluator,
	c cache.Service,
	store drepo.RecommendationStore,
	pub drepo.EventPublisher,
	metrics drepo.Metrics,
	logger *applogger.Logger,
	opts ...RecommenderOption,
) *Recommender {
	r := &Recommender{
		evaluator: evaluator,
		cache:     c,
		store:     store,
		pub:       pub,
		metrics:   metrics,
		logger:    logger,
		cacheTTL:  24 * time.Hour,
		lockTTL:   5 * time.Second,
		now:       func() time.Time { return time.Now().UTC() },
		newID:     func() string { return uuid.NewString() },
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.logger == nil {
		r.logger = applogger.Nop()
	}
	return r
}

// WithCacheTTL sets how long the latest recommendation per SKU is kept.
func WithCacheTTL(d time.Duration) RecommenderOption {
	return func(r *Recommender) { r.cacheTTL = d }
}

// WithLockTTL bounds how long a decision may hold the SKU lock.
func WithLockTTL(d time.Duration) RecommenderOption {
	return func(r *Recommender) { r.lockTTL = d }
}

func WithBroadcaster(b drepo.Broadcaster) RecommenderOption {
	return func(r *Recommender) { r.broadcaster = b }
}

func WithClock(now func() time.Time) RecommenderOption {
	return func(r *Recommender) { r.now = now }
}

func WithIDGenerator(gen func() string) RecommenderOption {
	return func(r *Recommender) { r.newID = gen }
}

// Predict prices the request. The request must have passed validation.
func (r *Recommender) Predict(ctx context.Context, req *models.PredictionRequest) (models.PredictionResult, error) {
	if req == nil || req.Product == nil || req.Product.CostPrice == nil {
		return models.PredictionResult{}, fmt.Errorf("predict: product is required")
	}

	start := time.Now()
	ev := r.evaluator.Evaluate(req)
	r.metrics.RecordRecommendation(ev.Outcome, ev.RecommendedPrice)

	rec := &models.Recommendation{
		ID:               r.newID(),
		SKU:              ev.Product.SKU,
		CostPrice:        ev.Product.CostPrice,
		CompetitorMin:    ev.CompetitorMin,
		FloorPrice:       ev.FloorPrice,
		UndercutPrice:    ev.UndercutPrice,
		RecommendedPrice: ev.RecommendedPrice,
		Rules:            ev.Rules,
		Outcome:          ev.Outcome,
		ModelVersion:     models.ModelVersion,
		Status:           models.StatusPending,
		CreatedAt:        r.now(),
	}
	r.record(ctx, rec)

	r.metrics.RecordLatency("predict", time.Since(start).Seconds())
	return ev.Result(), nil
}

func (r *Recommender) record(ctx context.Context, rec *models.Recommendation) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), sideEffectTimeout)
	defer cancel()

	if err := r.cache.Set(ctx, latestKey(rec.SKU), rec, r.cacheTTL); err != nil {
		r.sideEffectFailed("cache_set", rec.SKU, err)
	}
	if err := r.store.Store(ctx, rec); err != nil {
		r.sideEffectFailed("store", rec.SKU, err)
	}
	err := r.pub.Publish(ctx, &models.RecommendationEvent{
		Type:           models.EventRecommendationCreated,
		Recommendation: rec,
		Time:           rec.CreatedAt,
	})
	if err != nil {
		r.sideEffectFailed("publish", rec.SKU, err)
	}
	if r.broadcaster != nil {
		r.broadcaster.Broadcast(rec)
	}
}

func (r *Recommender) sideEffectFailed(kind, sku string, err error) {
	r.metrics.RecordError(kind)
	r.logger.Warn("recommendation side effect failed",
		applogger.String("op", kind),
		applogger.String("sku", sku),
		applogger.Error(err),
	)
}

// Latest returns the most recent recommendation for sku.
func (r *Recommender) Latest(ctx context.Context, sku string) (*models.Recommendation, error) {
	var rec models.Recommendation
	if err := r.cache.Get(ctx, latestKey(sku), &rec); err != nil {
		if errors.Is(err, cache.ErrCacheMiss) {
			return nil, models.ErrNotFound
		}
		return nil, fmt.Errorf("latest recommendation: %w", err)
	}
	return &rec, nil
}

// Decide accepts or rejects the SKU's pending recommendation. Concurrent
// decisions on one SKU are refused with ErrBusy rather than queued.
func (r *Recommender) Decide(ctx context.Context, sku, action string) (*models.Decision, error) {
	if action == "" {
		action = models.ActionAccept
	}
	status, err := statusFor(action)
	if err != nil {
		return nil, err
	}

	ok, err := r.cache.TryLock(ctx, lockKey(sku), r.lockTTL)
	if err != nil {
		return nil, fmt.Errorf("lock %s: %w", sku, err)
	}
	if !ok {
		return nil, models.ErrBusy
	}
	defer func() {
		if err := r.cache.Unlock(context.WithoutCancel(ctx), lockKey(sku)); err != nil {
			r.logger.Warn("unlock failed", applogger.String("sku", sku), applogger.Error(err))
		}
	}()

	rec, err := r.Latest(ctx, sku)
	if err != nil {
		return nil, err
	}
	if rec.Status != models.StatusPending {
		return nil, models.ErrAlreadyDecided
	}

	now := r.now()
	rec.Status = status
	rec.DecidedAt = &now
	if err := r.cache.Set(ctx, latestKey(sku), rec, r.cacheTTL); err != nil {
		r.metrics.RecordError("cache_set")
		return nil, fmt.Errorf("update recommendation: %w", err)
	}

	d := &models.Decision{
		RecommendationID: rec.ID,
		SKU:              sku,
		Action:           action,
		Status:           status,
		Timestamp:        now,
	}

	sctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), sideEffectTimeout)
	defer cancel()
	if err := r.store.StoreDecision(sctx, d); err != nil {
		r.sideEffectFailed("store_decision", sku, err)
	}
	err = r.pub.Publish(sctx, &models.RecommendationEvent{
		Type:           models.EventRecommendationDecided,
		Recommendation: rec,
		Decision:       d,
		Time:           now,
	})
	if err != nil {
		r.sideEffectFailed("publish", sku, err)
	}

	r.logger.Info("recommendation decided",
		applogger.String("sku", sku),
		applogger.String("id", rec.ID),
		applogger.String("status", status),
	)
	return d, nil
}

// History lists stored recommendations newest first. limit is clamped to
// (0, MaxHistoryLimit]; non-positive values select DefaultHistoryLimit.
func (r *Recommender) History(ctx context.Context, sku string, from, to time.Time, limit int) ([]*models.Recommendation, error) {
	switch {
	case limit <= 0:
		limit = DefaultHistoryLimit
	case limit > MaxHistoryLimit:
		limit = MaxHistoryLimit
	}

	start := time.Now()
	out, err := r.store.Query(ctx, sku, from, to, limit)
	if err != nil {
		if !errors.Is(err, models.ErrHistoryUnavailable) {
			r.metrics.RecordError("history")
		}
		return nil, err
	}
	r.metrics.RecordLatency("history", time.Since(start).Seconds())
	return out, nil
}

// DefaultRules returns the rules applied when a request omits them.
func (r *Recommender) DefaultRules() models.PricingRules {
	return r.evaluator.Defaults()
}

func statusFor(action string) (string, error) {
	switch action {
	case models.ActionAccept:
		return models.StatusApplied, nil
	case models.ActionReject:
		return models.StatusRejected, nil
	}
	return "", fmt.Errorf("unknown action %q", action)
}

func latestKey(sku string) string { return cache.GenerateKey("recommendation", "latest", sku) }

func lockKey(sku string) string { return cache.GenerateKey("recommendation", "lock", sku) }
