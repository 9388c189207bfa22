package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Issue outcomes.
const (
	OutcomeCreated    = "created"
	OutcomeReconciled = "reconciled"
	OutcomeConflict   = "conflict"
	OutcomePartial    = "partial"
	OutcomeFailed     = "failed"
)

// Metrics holds Prometheus collectors for credential operations.
type Metrics struct {
	CredentialsIssued    *prometheus.CounterVec
	Verifications        *prometheus.CounterVec
	VerificationCacheHit prometheus.Counter
	Revocations          *prometheus.CounterVec
	Exports              prometheus.Counter
	ExportedRecords      prometheus.Histogram
	OperationLatency     *prometheus.HistogramVec
}

// New registers credential metrics on reg. A nil reg uses the default registerer.
func New(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)
	return &Metrics{
		CredentialsIssued: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "didlab_credentials_issued_total",
			Help: "Total issuance requests, labeled by mode and outcome",
		}, []string{"mode", "outcome"}),
		Verifications: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "didlab_credential_verifications_total",
			Help: "Total verifications, labeled by result and fingerprint source",
		}, []string{"result", "source"}),
		VerificationCacheHit: factory.NewCounter(prometheus.CounterOpts{
			Name: "didlab_credential_verification_cache_hits_total",
			Help: "Verifications answered from the verification cache",
		}),
		Revocations: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "didlab_credential_revocations_total",
			Help: "Total revocation requests, labeled by result",
		}, []string{"result"}),
		Exports: factory.NewCounter(prometheus.CounterOpts{
			Name: "didlab_credential_exports_total",
			Help: "Total export bundles produced",
		}),
		ExportedRecords: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "didlab_credential_export_records",
			Help:    "Distribution of record counts per export",
			Buckets: []float64{0, 1, 5, 10, 25, 50, 100, 250, 500},
		}),
		OperationLatency: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "didlab_credential_operation_latency_seconds",
			Help:    "Latency of credential operations in seconds",
			Buckets: []float64{0.005, 0.01, 0.05, 0.1, 0.5, 1, 5, 15, 30, 60, 120},
		}, []string{"operation"}),
	}
}

func (m *Metrics) IncrementIssued(mode, outcome string) {
	if m == nil {
		return
	}
	m.CredentialsIssued.WithLabelValues(mode, outcome).Inc()
}

func (m *Metrics) IncrementVerification(verified bool, source string) {
	if m == nil {
		return
	}
	result := "not_found"
	if verified {
		result = "verified"
	}
	m.Verifications.WithLabelValues(result, source).Inc()
}

func (m *Metrics) IncrementCacheHit() {
	if m == nil {
		return
	}
	m.VerificationCacheHit.Inc()
}

func (m *Metrics) IncrementRevocation(result string) {
	if m == nil {
		return
	}
	m.Revocations.WithLabelValues(result).Inc()
}

func (m *Metrics) ObserveExport(records int) {
	if m == nil {
		return
	}
	m.Exports.Inc()
	m.ExportedRecords.Observe(float64(records))
}

func (m *Metrics) ObserveLatency(operation string, seconds float64) {
	if m == nil {
		return
	}
	m.OperationLatency.WithLabelValues(operation).Observe(seconds)
}
