package ingest

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics counts ingest outcomes.
type Metrics struct {
	// Outcomes by result (accepted, rejected) and rejection reason
	Outcomes *prometheus.CounterVec

	// End-to-end duration of a single ingest
	Duration prometheus.Histogram
}

// NewMetrics registers the ingest metrics with reg. A nil reg uses the
// default registerer.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)

	return &Metrics{
		Outcomes: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "minted_ingest_total",
			Help: "Total ingest outcomes by result and rejection reason",
		}, []string{"result", "reason"}),

		Duration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "minted_ingest_duration_seconds",
			Help:    "Duration of a single ingest from decode to store write",
			Buckets: []float64{0.0005, 0.001, 0.0025, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
		}),
	}
}

// ObserveResult records the outcome and duration of one ingest.
func (m *Metrics) ObserveResult(r Result, d time.Duration) {
	if m == nil {
		return
	}
	result := "rejected"
	if r.Accepted {
		result = "accepted"
	}
	m.Outcomes.WithLabelValues(result, string(r.Reason)).Inc()
	m.Duration.Observe(d.Seconds())
}
