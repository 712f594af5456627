package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"SPI/internal/domain/models"
	domrepo "SPI/internal/domain/repository"
	pkgch "SPI/pkg/clickhouse"
	applogger "SPI/pkg/logger"
)

const (
	recommendationsTable = "recommendations"
	decisionsTable       = "recommendation_decisions"
)

// RecommendationSchema is the DDL for the history tables.
var RecommendationSchema = []string{
	`CREATE TABLE IF NOT EXISTS ` + recommendationsTable + ` (
		id                String,
		sku               String,
		cost_price        Float64,
		competitor_min    Nullable(Float64),
		floor_price       Float64,
		undercut_price    Nullable(Float64),
		recommended_price Float64,
		min_profit_margin Float64,
		undercut_limit    Float64,
		outcome           LowCardinality(String),
		model_version     LowCardinality(String),
		created_at        DateTime64(3, 'UTC')
	) ENGINE = MergeTree
	ORDER BY (sku, created_at)`,
	`CREATE TABLE IF NOT EXISTS ` + decisionsTable + ` (
		recommendation_id String,
		sku               String,
		action            LowCardinality(String),
		status            LowCardinality(String),
		decided_at        DateTime64(3, 'UTC')
	) ENGINE = MergeTree
	ORDER BY (sku, decided_at)`,
}

// CHRecommendationStore implements RecommendationStore backed by ClickHouse.
// Decisions are appended to their own table and folded back in on read.
type CHRecommendationStore struct {
	db *sql.DB
	l  *applogger.Logger
}

func NewCHRecommendationStore(ch *pkgch.Client, l *applogger.Logger) domrepo.RecommendationStore {
	if l == nil {
		l = applogger.Nop()
	}
	return &CHRecommendationStore{db: ch.DB(), l: l}
}

func (s *CHRecommendationStore) Store(ctx context.Context, r *models.Recommendation) error {
	q := "INSERT INTO " + recommendationsTable + ` (id, sku, cost_price, competitor_min, floor_price, undercut_price,
		recommended_price, min_profit_margin, undercut_limit, outcome, model_version, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	_, err := s.db.ExecContext(ctx, q,
		r.ID,
		r.SKU,
		r.CostPrice,
		nullable(r.CompetitorMin),
		r.FloorPrice,
		nullable(r.UndercutPrice),
		r.RecommendedPrice,
		r.Rules.MinProfitMargin,
		r.Rules.UndercutLimit,
		string(r.Outcome),
		r.ModelVersion,
		r.CreatedAt.UTC(),
	)
	if err != nil {
		s.l.Error("clickhouse store recommendation error",
			applogger.String("sku", r.SKU),
			applogger.String("id", r.ID),
			applogger.Error(err),
		)
		return fmt.Errorf("store recommendation: %w", err)
	}
	return nil
}

func (s *CHRecommendationStore) StoreDecision(ctx context.Context, d *models.Decision) error {
	q := "INSERT INTO " + decisionsTable + " (recommendation_id, sku, action, status, decided_at) VALUES (?, ?, ?, ?, ?)"
	if _, err := s.db.ExecContext(ctx, q, d.RecommendationID, d.SKU, d.Action, d.Status, d.Timestamp.UTC()); err != nil {
		s.l.Error("clickhouse store decision error",
			applogger.String("sku", d.SKU),
			applogger.String("id", d.RecommendationID),
			applogger.Error(err),
		)
		return fmt.Errorf("store decision: %w", err)
	}
	return nil
}

// Query returns the SKU's recommendations newest first. Zero from/to leave
// that side of the window open.
func (s *CHRecommendationStore) Query(ctx context.Context, sku string, from, to time.Time, limit int) ([]*models.Recommendation, error) {
	start := time.Now()
	q, args := historyQuery(sku, from, to, limit)

	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		s.l.Error("clickhouse history query error", applogger.String("sku", sku), applogger.Error(err))
		return nil, fmt.Errorf("query history: %w", err)
	}
	defer rows.Close()

	out := make([]*models.Recommendation, 0, limit)
	for rows.Next() {
		var (
			r         models.Recommendation
			compMin   sql.NullFloat64
			undercut  sql.NullFloat64
			outcome   string
			decidedAt time.Time
		)
		if err := rows.Scan(
			&r.ID, &r.SKU, &r.CostPrice, &compMin, &r.FloorPrice, &undercut,
			&r.RecommendedPrice, &r.Rules.MinProfitMargin, &r.Rules.UndercutLimit,
			&outcome, &r.ModelVersion, &r.CreatedAt, &r.Status, &decidedAt,
		); err != nil {
			return nil, fmt.Errorf("scan recommendation: %w", err)
		}
		r.Outcome = models.Outcome(outcome)
		r.CompetitorMin = fromNullable(compMin)
		r.UndercutPrice = fromNullable(undercut)
		if r.Status == "" {
			r.Status = models.StatusPending
		}
		// unmatched LEFT JOIN rows carry the epoch
		if decidedAt.Unix() > 0 {
			t := decidedAt
			r.DecidedAt = &t
		}
		out = append(out, &r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows: %w", err)
	}

	s.l.Debug("clickhouse history ok",
		applogger.String("sku", sku),
		applogger.Int("rows", len(out)),
		applogger.Duration("duration", time.Since(start)),
	)
	return out, nil
}

func (s *CHRecommendationStore) Health(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close is a no-op; the pool belongs to the clickhouse client.
func (s *CHRecommendationStore) Close() error {
	return nil
}

func historyQuery(sku string, from, to time.Time, limit int) (string, []interface{}) {
	where := []string{"r.sku = ?"}
	args := []interface{}{sku, sku}
	if !from.IsZero() {
		where = append(where, "r.created_at >= ?")
		args = append(args, from.UTC())
	}
	if !to.IsZero() {
		where = append(where, "r.created_at <= ?")
		args = append(args, to.UTC())
	}
	args = append(args, limit)

	q := fmt.Sprintf(`
		SELECT r.id, r.sku, r.cost_price, r.competitor_min, r.floor_price, r.undercut_price,
			r.recommended_price, r.min_profit_margin, r.undercut_limit, r.outcome, r.model_version,
			r.created_at, d.status, d.decided_at
		FROM %s AS r
		LEFT JOIN (
			SELECT recommendation_id, argMax(status, decided_at) AS status, max(decided_at) AS decided_at
			FROM %s
			WHERE sku = ?
			GROUP BY recommendation_id
		) AS d ON d.recommendation_id = r.id
		WHERE %s
		ORDER BY r.created_at DESC
		LIMIT ?`, recommendationsTable, decisionsTable, strings.Join(where, " AND "))
	return q, args
}

func nullable(p *float64) interface{} {
	if p == nil {
		return nil
	}
	return *p
}

func fromNullable(v sql.NullFloat64) *float64 {
	if !v.Valid {
		return nil
	}
	f := v.Float64
	return &f
}
