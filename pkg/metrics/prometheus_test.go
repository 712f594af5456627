package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"

	"SPI/internal/domain/models"
)

func TestRecorder(t *testing.T) {
	reg := prometheus.NewRegistry()
	r := New(reg)

	r.RecordRecommendation(models.OutcomeFloor, 115)
	r.RecordRecommendation(models.OutcomeFloor, 116)
	r.RecordRecommendation(models.OutcomeUndercut, 123.5)
	r.RecordError("store")
	r.RecordLatency("predict", 0.002)

	assert.Equal(t, 2.0, testutil.ToFloat64(r.recommendations.WithLabelValues("rule-v0", "floor")))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.recommendations.WithLabelValues("rule-v0", "undercut")))
	assert.Equal(t, 2, testutil.CollectAndCount(r.prices))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.errorsTotal.WithLabelValues("store")))
	assert.Equal(t, 1, testutil.CollectAndCount(r.latency))
}

func TestRecorderSeriesDoNotGrowWithCatalog(t *testing.T) {
	reg := prometheus.NewRegistry()
	r := New(reg)

	outcomes := []models.Outcome{models.OutcomeFloor, models.OutcomeUndercut}
	for i := 0; i < 5000; i++ {
		r.RecordRecommendation(outcomes[i%2], float64(100+i%50))
	}

	assert.Equal(t, 2, testutil.CollectAndCount(r.recommendations))
	assert.Equal(t, 2, testutil.CollectAndCount(r.prices))
}
