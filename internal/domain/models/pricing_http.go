package models

// Request payloads shared by the HTTP and Kafka entry points.

type ProductInput struct {
	SKU       string   `json:"sku" validate:"required"`
	CostPrice *float64 `json:"cost_price" validate:"required"`
}

// RulesInput carries optional per-request overrides; nil fields fall back to configured defaults.
type RulesInput struct {
	MinProfitMargin *float64 `json:"min_profit_margin,omitempty"`
	UndercutLimit   *float64 `json:"undercut_limit,omitempty"`
}

type PredictionRequest struct {
	Product          *ProductInput `json:"product" validate:"required"`
	CompetitorPrices []float64     `json:"competitor_prices"`
	Rules            *RulesInput   `json:"rules,omitempty"`
}

// ToProduct assumes the request passed validation.
func (r *PredictionRequest) ToProduct() Product {
	return Product{SKU: r.Product.SKU, CostPrice: *r.Product.CostPrice}
}

// Resolve merges the overrides onto defaults.
func (r *RulesInput) Resolve(defaults PricingRules) PricingRules {
	out := defaults
	if r == nil {
		return out
	}
	if r.MinProfitMargin != nil {
		out.MinProfitMargin = *r.MinProfitMargin
	}
	if r.UndercutLimit != nil {
		out.UndercutLimit = *r.UndercutLimit
	}
	return out
}

type DecisionRequest struct {
	SKU    string `param:"sku" json:"-" validate:"required"`
	Action string `json:"action" default:"accept" validate:"oneof=accept reject"`
}
