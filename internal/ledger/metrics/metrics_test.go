package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg)

	m.ObserveCall("create", 1.5)
	m.IncError("create", "reverted")
	m.IncError("create", "reverted")

	assert.Equal(t, 2.0, testutil.ToFloat64(m.CallErrors.WithLabelValues("create", "reverted")))
	assert.Equal(t, 1, testutil.CollectAndCount(m.CallDuration))
}

func TestNilMetricsAreNoOps(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.ObserveCall("exists", 0.01)
		m.IncError("exists", "timeout")
	})
}
