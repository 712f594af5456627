package models

import "time"

// ModelVersion tags results produced by the deterministic rule set.
const ModelVersion = "rule-v0"

// Outcome names the branch of the rule set that produced a price.
type Outcome string

const (
	OutcomeNoCompetitors Outcome = "no_competitors"
	OutcomeFloor         Outcome = "floor"
	OutcomeUndercut      Outcome = "undercut"
)

// Recommendation statuses.
const (
	StatusPending  = "pending"
	StatusApplied  = "applied"
	StatusRejected = "rejected"
)

// Decision actions.
const (
	ActionAccept = "accept"
	ActionReject = "reject"
)

type Product struct {
	SKU       string  `json:"sku"`
	CostPrice float64 `json:"cost_price"`
}

type PricingRules struct {
	MinProfitMargin float64 `json:"min_profit_margin"`
	UndercutLimit   float64 `json:"undercut_limit"`
}

// Evaluation is the full breakdown of one rule evaluation.
type Evaluation struct {
	Product          Product      `json:"product"`
	Rules            PricingRules `json:"rules"`
	FloorPrice       float64      `json:"floor_price"`
	CompetitorMin    *float64     `json:"competitor_min,omitempty"`
	UndercutPrice    *float64     `json:"undercut_price,omitempty"`
	RecommendedPrice float64      `json:"recommended_price"`
	Outcome          Outcome      `json:"outcome"`
}

// Result strips the breakdown down to the public prediction shape.
func (e Evaluation) Result() PredictionResult {
	return PredictionResult{RecommendedPrice: e.RecommendedPrice, ModelVersion: ModelVersion}
}

type PredictionResult struct {
	RecommendedPrice float64 `json:"recommended_price"`
	ModelVersion     string  `json:"model_version"`
}

// Recommendation is a stored evaluation together with its review status.
type Recommendation struct {
	ID               string       `json:"id"`
	SKU              string       `json:"sku"`
	CostPrice        float64      `json:"cost_price"`
	CompetitorMin    *float64     `json:"competitor_min,omitempty"`
	FloorPrice       float64      `json:"floor_price"`
	UndercutPrice    *float64     `json:"undercut_price,omitempty"`
	RecommendedPrice float64      `json:"recommended_price"`
	Rules            PricingRules `json:"rules"`
	Outcome          Outcome      `json:"outcome"`
	ModelVersion     string       `json:"model_version"`
	Status           string       `json:"status"`
	CreatedAt        time.Time    `json:"created_at"`
	DecidedAt        *time.Time   `json:"decided_at,omitempty"`
}

type Decision struct {
	RecommendationID string    `json:"recommendation_id"`
	SKU              string    `json:"sku"`
	Action           string    `json:"action"`
	Status           string    `json:"status"`
	Timestamp        time.Time `json:"timestamp"`
}

// Event types published on the recommendations topic.
const (
	EventRecommendationCreated = "recommendation.created"
	EventRecommendationDecided = "recommendation.decided"
)

type RecommendationEvent struct {
	Type           string          `json:"type"`
	Recommendation *Recommendation `json:"recommendation,omitempty"`
	Decision       *Decision       `json:"decision,omitempty"`
	Time           time.Time       `json:"time"`
}
