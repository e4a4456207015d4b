// Package metrics provides observability for the issuing pipeline.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Outcome label of successful operations. Failures are labelled with their error kind.
const OutcomeSuccess = "success"

// Metrics holds the issuer collectors.
type Metrics struct {
	// Operations by name ("normalize", "sign") and outcome
	Operations *prometheus.CounterVec

	// Time spent extracting and canonicalizing one document
	Canonicalization prometheus.Histogram
}

// New creates the collectors and registers them with reg.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		Operations: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "vc_issuer_operations_total",
			Help: "Total issuer operations by operation and outcome",
		}, []string{"operation", "outcome"}),

		Canonicalization: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "vc_issuer_canonicalization_seconds",
			Help:    "Duration of RDF extraction plus URDNA2015 canonicalization of one document",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		}),
	}
}

// IncrementOperation records an operation outcome.
func (m *Metrics) IncrementOperation(operation, outcome string) {
	if m != nil {
		m.Operations.WithLabelValues(operation, outcome).Inc()
	}
}

// ObserveCanonicalization records the duration of one canonicalization.
func (m *Metrics) ObserveCanonicalization(d time.Duration) {
	if m != nil {
		m.Canonicalization.Observe(d.Seconds())
	}
}
