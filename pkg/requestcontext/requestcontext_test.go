package requestcontext

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRequestID(t *testing.T) {
	assert.Empty(t, RequestID(context.Background()))

	ctx := WithRequestID(context.Background(), "req-1")
	assert.Equal(t, "req-1", RequestID(ctx))
}

func TestClientIP(t *testing.T) {
	assert.Empty(t, ClientIP(context.Background()))

	ctx := WithClientIP(context.Background(), "203.0.113.9")
	assert.Equal(t, "203.0.113.9", ClientIP(ctx))
}
