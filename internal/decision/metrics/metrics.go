package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for the decision module.
type Metrics struct {
	// Evidence gathering latencies by source
	EvidenceLatency *prometheus.HistogramVec

	// Decision outcomes by source and purpose
	Outcome *prometheus.CounterVec

	// Overall evaluation latency
	EvaluateLatency prometheus.Histogram
}

// New registers the decision module metrics on the default registerer.
func New() *Metrics {
	return NewWith(prometheus.DefaultRegisterer)
}

// NewWith registers on an explicit registerer; tests pass a fresh registry.
func NewWith(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		EvidenceLatency: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "consentry_decision_evidence_duration_seconds",
			Help:    "Duration of evidence gathering by source",
			Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
		}, []string{"source"}), // source: "policy", "grant", "history"

		Outcome: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "consentry_decision_outcomes_total",
			Help: "Decision outcomes by source and purpose",
		}, []string{"allowed", "source", "purpose"}),

		EvaluateLatency: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "consentry_decision_evaluate_duration_seconds",
			Help:    "Duration of full evaluation including evidence gathering",
			Buckets: []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		}),
	}
}
