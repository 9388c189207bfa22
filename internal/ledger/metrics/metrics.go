// Package metrics provides Prometheus metrics for ledger calls.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics tracks latency and failures of ledger operations.
type Metrics struct {
	CallDuration *prometheus.HistogramVec // by op
	CallErrors   *prometheus.CounterVec   // by op, kind
}

// New registers the ledger metrics on reg. A nil reg uses the default registerer.
func New(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)
	return &Metrics{
		CallDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name: "didlab_ledger_call_duration_seconds",
			Help: "Duration of ledger calls, including confirmation waits",
			// Confirmations take seconds to minutes on public chains.
			Buckets: []float64{0.05, 0.1, 0.5, 1, 2.5, 5, 10, 30, 60, 120},
		}, []string{"op"}),
		CallErrors: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "didlab_ledger_call_errors_total",
			Help: "Total ledger call failures by operation and error kind",
		}, []string{"op", "kind"}),
	}
}

func (m *Metrics) ObserveCall(op string, seconds float64) {
	if m == nil {
		return
	}
	m.CallDuration.WithLabelValues(op).Observe(seconds)
}

func (m *Metrics) IncError(op, kind string) {
	if m == nil {
		return
	}
	m.CallErrors.WithLabelValues(op, kind).Inc()
}
