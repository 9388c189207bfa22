package evm

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"

	"didlab/internal/ledger"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantKind   ledger.Kind
		wantReason string
	}{
		{
			name:       "revert with reason",
			err:        errors.New("execution reverted: Apenas o emissor"),
			wantKind:   ledger.KindReverted,
			wantReason: "Apenas o emissor",
		},
		{
			name:       "revert meaning already recorded",
			err:        errors.New("execution reverted: Credencial ja emitida"),
			wantKind:   ledger.KindAlreadyRecorded,
			wantReason: "Credencial ja emitida",
		},
		{
			name:       "bare revert",
			err:        errors.New("execution reverted"),
			wantKind:   ledger.KindReverted,
			wantReason: "execution reverted",
		},
		{
			name:     "underpriced replacement",
			err:      errors.New("replacement transaction underpriced"),
			wantKind: ledger.KindUnderpriced,
		},
		{
			name:     "deadline",
			err:      fmt.Errorf("wait mined: %w", context.DeadlineExceeded),
			wantKind: ledger.KindTimeout,
		},
		{
			name:     "network",
			err:      errors.New("dial tcp 127.0.0.1:8545: connect: connection refused"),
			wantKind: ledger.KindUnavailable,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := classify(ledger.OpCreate, tt.err, DefaultAlreadyRecordedReasons)
			var le *ledger.Error
			assert.ErrorAs(t, err, &le)
			assert.Equal(t, tt.wantKind, le.Kind)
			assert.Equal(t, ledger.OpCreate, le.Op)
			if tt.wantReason != "" {
				assert.Equal(t, tt.wantReason, le.Reason)
			}
			assert.ErrorIs(t, err, tt.err)
		})
	}

	assert.NoError(t, classify(ledger.OpExists, nil, nil))
}
