package requesttime

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestMiddleware_PinsTimeForTheRequest(t *testing.T) {
	var first, second time.Time
	handler := Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		first = Now(r.Context())
		time.Sleep(5 * time.Millisecond)
		second = Now(r.Context())
	}))

	before := time.Now()
	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/health", nil))
	after := time.Now()

	assert.Equal(t, first, second)
	assert.Equal(t, time.UTC, first.Location())
	assert.False(t, first.Before(before.Add(-time.Millisecond)))
	assert.False(t, first.After(after.Add(time.Millisecond)))
}

func TestWithClock(t *testing.T) {
	fixed := time.Date(2026, 2, 3, 4, 5, 6, 0, time.FixedZone("BRT", -3*3600))
	var got time.Time
	handler := WithClock(func() time.Time { return fixed })(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = Now(r.Context())
	}))

	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))

	assert.True(t, fixed.Equal(got))
	assert.Equal(t, time.UTC, got.Location())
}

func TestNow_FallsBackToWallClock(t *testing.T) {
	before := time.Now()
	got := Now(context.Background())
	assert.False(t, got.Before(before))
}

func TestWithTime_Overrides(t *testing.T) {
	first := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	second := time.Date(2024, 6, 15, 12, 0, 0, 0, time.UTC)

	ctx := WithTime(WithTime(context.Background(), first), second)
	assert.Equal(t, second, Now(ctx))
}
