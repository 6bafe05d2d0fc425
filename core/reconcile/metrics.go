package reconcile

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type Metrics struct {
	Outcomes      *prometheus.CounterVec
	BatchDuration prometheus.Histogram
	BatchSize     prometheus.Histogram
	Aborted       prometheus.Counter
}

// NewMetrics registers the reconciliation metrics on reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		Outcomes: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "soptable",
			Subsystem: "batch_upsert",
			Name:      "outcomes_total",
			Help:      "Reconciled candidates by decision.",
		}, []string{"decision"}),
		BatchDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: "soptable",
			Subsystem: "batch_upsert",
			Name:      "duration_seconds",
			Help:      "Time spent reconciling one batch.",
			Buckets:   prometheus.DefBuckets,
		}),
		BatchSize: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: "soptable",
			Subsystem: "batch_upsert",
			Name:      "candidates",
			Help:      "Number of candidates per batch.",
			Buckets:   prometheus.ExponentialBuckets(1, 4, 8),
		}),
		Aborted: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "soptable",
			Subsystem: "batch_upsert",
			Name:      "aborted_total",
			Help:      "Batches cut short by cancellation.",
		}),
	}
}

func (m *Metrics) ObserveBatch(start time.Time, sum Summary, aborted bool) {
	if m == nil {
		return
	}
	m.BatchDuration.Observe(time.Since(start).Seconds())
	m.BatchSize.Observe(float64(sum.Total()))
	m.Outcomes.WithLabelValues(string(DecisionInserted)).Add(float64(sum.Inserted))
	m.Outcomes.WithLabelValues(string(DecisionUpdated)).Add(float64(sum.Updated))
	m.Outcomes.WithLabelValues(string(DecisionSkipped)).Add(float64(sum.Skipped))
	m.Outcomes.WithLabelValues(string(DecisionError)).Add(float64(len(sum.Errors)))
	if aborted {
		m.Aborted.Inc()
	}
}
