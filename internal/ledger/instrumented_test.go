package ledger_test

import (
	"context"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"didlab/internal/ledger"
	"didlab/internal/ledger/memory"
	"didlab/internal/ledger/metrics"
	"didlab/pkg/domain"
	"didlab/pkg/fingerprint"
)

func TestInstrumented_DelegatesAndCounts(t *testing.T) {
	ctx := context.Background()
	issuer := domain.Address("0x" + strings.Repeat("1", 40))
	subject := domain.Address("0x" + strings.Repeat("a", 40))
	fp := fingerprint.Of(`{"a":1}`)

	m := metrics.New(prometheus.NewRegistry())
	l := ledger.NewInstrumented(memory.New(issuer), nil, m)
	assert.Equal(t, issuer, l.Issuer())

	_, err := l.Create(ctx, subject, fp)
	require.NoError(t, err)

	exists, err := l.Exists(ctx, subject, fp)
	require.NoError(t, err)
	assert.True(t, exists)

	_, err = l.Create(ctx, subject, fp)
	assert.True(t, ledger.IsAlreadyRecorded(err))

	assert.Equal(t, 1.0, testutil.ToFloat64(m.CallErrors.WithLabelValues("create", "already_recorded")))
	assert.Equal(t, 2, testutil.CollectAndCount(m.CallDuration))
}
