// Package pricing implements the rule-v0 price recommendation rule set.
//
// The recommended price is the larger of the margin floor,
// cost * (1 + min_profit_margin), and the undercut price,
// min(competitors) * (1 - undercut_limit). With no competitor prices the
// floor is returned as is. Arithmetic runs on decimals built from the
// shortest representation of each input, and the result is rounded to
// cents half away from zero.
package pricing

import (
	"github.com/shopspring/decimal"

	"SPI/internal/domain/models"
)

const pricePlaces = 2

// DefaultRules is used when no configured defaults are supplied.
var DefaultRules = models.PricingRules{MinProfitMargin: 0.15, UndercutLimit: 0.05}

// Evaluator is stateless apart from the default rules it was built with.
type Evaluator struct {
	defaults models.PricingRules
}

func NewEvaluator(defaults models.PricingRules) *Evaluator {
	return &Evaluator{defaults: defaults}
}

// Defaults returns the rules applied when a request omits them.
func (e *Evaluator) Defaults() models.PricingRules { return e.defaults }

// Evaluate resolves the request rules against the defaults and prices the product.
func (e *Evaluator) Evaluate(req *models.PredictionRequest) models.Evaluation {
	return Evaluate(req.ToProduct(), req.CompetitorPrices, req.Rules.Resolve(e.defaults))
}

// Evaluate prices a product. Inputs are not validated: negative costs or
// competitor prices flow through the arithmetic unchanged.
func Evaluate(p models.Product, competitors []float64, rules models.PricingRules) models.Evaluation {
	one := decimal.NewFromInt(1)
	floor := decimal.NewFromFloat(p.CostPrice).Mul(one.Add(decimal.NewFromFloat(rules.MinProfitMargin)))

	ev := models.Evaluation{
		Product: p,
		Rules:   rules,
		Outcome: models.OutcomeNoCompetitors,
	}
	ev.FloorPrice = toPrice(floor)

	rec := floor
	if len(competitors) > 0 {
		compMin := decimal.NewFromFloat(competitors[0])
		for _, c := range competitors[1:] {
			compMin = decimal.Min(compMin, decimal.NewFromFloat(c))
		}
		undercut := compMin.Mul(one.Sub(decimal.NewFromFloat(rules.UndercutLimit)))

		cm, uc := toPrice(compMin), toPrice(undercut)
		ev.CompetitorMin, ev.UndercutPrice = &cm, &uc

		if undercut.GreaterThan(floor) {
			rec = undercut
			ev.Outcome = models.OutcomeUndercut
		} else {
			ev.Outcome = models.OutcomeFloor
		}
	}

	ev.RecommendedPrice = toPrice(rec)
	return ev
}

// Recommend is Evaluate reduced to the public prediction shape.
func Recommend(p models.Product, competitors []float64, rules models.PricingRules) models.PredictionResult {
	return Evaluate(p, competitors, rules).Result()
}

func toPrice(d decimal.Decimal) float64 {
	return d.Round(pricePlaces).InexactFloat64()
}
