package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"SPI/internal/domain/models"
)

// Recorder implements domain repository.Metrics using Prometheus.
type Recorder struct {
	recommendations *prometheus.CounterVec
	errorsTotal     *prometheus.CounterVec
	prices          *prometheus.HistogramVec
	latency         *prometheus.HistogramVec
}

// New registers the recorder's collectors on reg.
func New(reg prometheus.Registerer) *Recorder {
	f := promauto.With(reg)
	return &Recorder{
		recommendations: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "spi_recommendations_total",
				Help: "Total number of price recommendations by rule outcome",
			},
			[]string{"model_version", "outcome"},
		),
		errorsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "spi_errors_total",
				Help: "Total number of errors encountered",
			},
			[]string{"type"},
		),
		prices: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "spi_recommended_price",
				Help:    "Distribution of recommended prices by rule outcome",
				Buckets: prometheus.ExponentialBuckets(1, 4, 10),
			},
			[]string{"outcome"},
		),
		latency: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "spi_operation_duration_seconds",
				Help:    "Duration of operations in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"operation"},
		),
	}
}

// RecordRecommendation counts a recommendation and observes its price.
// Labels stay bounded: SKUs are never used as label values.
func (r *Recorder) RecordRecommendation(outcome models.Outcome, price float64) {
	r.recommendations.WithLabelValues(models.ModelVersion, string(outcome)).Inc()
	r.prices.WithLabelValues(string(outcome)).Observe(price)
}

// RecordError records an error occurrence.
func (r *Recorder) RecordError(kind string) {
	r.errorsTotal.WithLabelValues(kind).Inc()
}

// RecordLatency records operation latency in seconds.
func (r *Recorder) RecordLatency(op string, seconds float64) {
	r.latency.WithLabelValues(op).Observe(seconds)
}
