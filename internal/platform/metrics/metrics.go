// Package metrics owns the process-wide Prometheus registry. Component
// metrics register on it through promauto.With.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Registry bundles the registry with process-level gauges.
type Registry struct {
	*prometheus.Registry
	buildInfo *prometheus.GaugeVec
}

// NewRegistry returns a registry carrying the Go runtime and process
// collectors plus didlab_build_info.
func NewRegistry() *Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return &Registry{
		Registry: reg,
		buildInfo: promauto.With(reg).NewGaugeVec(prometheus.GaugeOpts{
			Name: "didlab_build_info",
			Help: "Build and runtime metadata; value is always 1",
		}, []string{"version", "environment", "ledger"}),
	}
}

// SetBuildInfo publishes the running version, environment and ledger backend.
func (r *Registry) SetBuildInfo(version, environment, ledger string) {
	r.buildInfo.WithLabelValues(version, environment, ledger).Set(1)
}

// Handler serves the registry in the Prometheus exposition format.
func (r *Registry) Handler() http.Handler {
	return promhttp.HandlerFor(r.Registry, promhttp.HandlerOpts{Registry: r.Registry})
}
