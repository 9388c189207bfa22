package request

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	promtest "github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"

	"didlab/pkg/requestcontext"
)

const exportPath = "/credentials/export?subjectAddress=0x00000000000000000000000000000000000000a1"

// credentialRoutes mounts stand-ins for the credential endpoints behind mw.
// Each handler reports the request id it saw in the X-Seen-Request-ID header.
func credentialRoutes(mw ...func(http.Handler) http.Handler) chi.Router {
	r := chi.NewRouter()
	r.Use(mw...)
	echoID := func(status int) http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("X-Seen-Request-ID", requestcontext.RequestID(r.Context()))
			w.WriteHeader(status)
			_, _ = w.Write([]byte(`{}`))
		}
	}
	r.Post("/credentials/issue", echoID(http.StatusCreated))
	r.Post("/credentials/verify", echoID(http.StatusOK))
	r.Post("/credentials/revoke", echoID(http.StatusBadGateway))
	r.Get("/credentials/export", echoID(http.StatusOK))
	r.Get("/health/ready", echoID(http.StatusOK))
	return r
}

func post(path, body string) *http.Request {
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	return req
}

type RequestMiddlewareSuite struct {
	suite.Suite
	logs   *bytes.Buffer
	logger *slog.Logger
}

func TestRequestMiddlewareSuite(t *testing.T) {
	suite.Run(t, new(RequestMiddlewareSuite))
}

func (s *RequestMiddlewareSuite) SetupTest() {
	s.logs = &bytes.Buffer{}
	s.logger = slog.New(slog.NewJSONHandler(s.logs, &slog.HandlerOptions{Level: slog.LevelDebug}))
}

func (s *RequestMiddlewareSuite) logLines() []map[string]any {
	var lines []map[string]any
	for _, raw := range bytes.Split(bytes.TrimSpace(s.logs.Bytes()), []byte("\n")) {
		if len(raw) == 0 {
			continue
		}
		var line map[string]any
		s.Require().NoError(json.Unmarshal(raw, &line))
		lines = append(lines, line)
	}
	return lines
}

func (s *RequestMiddlewareSuite) TestRequestID() {
	r := credentialRoutes(RequestID)

	s.Run("mints a UUID for an issue call without one", func() {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, post("/credentials/issue", `{"subjectAddress":"0x1"}`))

		id := w.Header().Get(HeaderRequestID)
		s.Len(id, 36)
		s.Equal(id, w.Header().Get("X-Seen-Request-ID"), "handler and response agree")
	})

	s.Run("keeps a gateway-supplied id on verify", func() {
		req := post("/credentials/verify", `{}`)
		req.Header.Set(HeaderRequestID, "gw.verify_0193")
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)

		s.Equal("gw.verify_0193", w.Header().Get(HeaderRequestID))
		s.Equal("gw.verify_0193", w.Header().Get("X-Seen-Request-ID"))
	})

	s.Run("accepts exactly the maximum length", func() {
		id := strings.Repeat("e", MaxRequestIDLength)
		req := httptest.NewRequest(http.MethodGet, exportPath, nil)
		req.Header.Set(HeaderRequestID, id)
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)

		s.Equal(id, w.Header().Get(HeaderRequestID))
	})

	s.Run("replaces unsafe ids", func() {
		for name, id := range map[string]string{
			"too long":      strings.Repeat("e", MaxRequestIDLength+1),
			"newline":       "export\nlevel=ERROR msg=forged",
			"space":         "export 1",
			"quote":         `export"1`,
			"angle bracket": "<script>",
			"semicolon":     "a;b",
			"backslash":     `a\b`,
			"null byte":     "a\x00b",
		} {
			req := httptest.NewRequest(http.MethodGet, exportPath, nil)
			req.Header.Set(HeaderRequestID, id)
			w := httptest.NewRecorder()
			r.ServeHTTP(w, req)

			got := w.Header().Get(HeaderRequestID)
			s.NotEqual(id, got, name)
			s.Len(got, 36, name)
		}
	})
}

func TestIsValidRequestID(t *testing.T) {
	for _, id := range []string{"abc123", "ISSUE-123", "verify_456", "trace.span.7", "a", strings.Repeat("x", MaxRequestIDLength)} {
		assert.True(t, isValidRequestID(id), "expected %q to be valid", id)
	}
	for _, id := range []string{"", strings.Repeat("x", MaxRequestIDLength+1), "has space", "has\ttab", "has;semicolon", `has"quote`} {
		assert.False(t, isValidRequestID(id), "expected %q to be invalid", id)
	}
}

func (s *RequestMiddlewareSuite) TestLogger() {
	r := credentialRoutes(RequestID, Logger(s.logger))

	s.Run("logs route pattern instead of the query", func() {
		s.logs.Reset()
		r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, exportPath, nil))

		lines := s.logLines()
		s.Require().Len(lines, 1)
		s.Equal("http request", lines[0]["msg"])
		s.Equal("INFO", lines[0]["level"])
		s.Equal("/credentials/export", lines[0]["route"])
		s.Equal(float64(http.StatusOK), lines[0]["status"])
		s.Equal(float64(2), lines[0]["bytes"])
		s.NotEmpty(lines[0]["request_id"])
		s.NotContains(s.logs.String(), "subjectAddress")
	})

	s.Run("ledger failures are logged at warn", func() {
		s.logs.Reset()
		r.ServeHTTP(httptest.NewRecorder(), post("/credentials/revoke", `{}`))

		lines := s.logLines()
		s.Require().Len(lines, 1)
		s.Equal("WARN", lines[0]["level"])
		s.Equal(float64(http.StatusBadGateway), lines[0]["status"])
	})

	s.Run("healthy probes are not logged", func() {
		s.logs.Reset()
		r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/health/ready", nil))
		s.Empty(s.logLines())
	})

	s.Run("unknown routes are labelled unmatched", func() {
		s.logs.Reset()
		r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/credentials/unknown", nil))

		lines := s.logLines()
		s.Require().Len(lines, 1)
		s.Equal("unmatched", lines[0]["route"])
		s.Equal(float64(http.StatusNotFound), lines[0]["status"])
	})
}

func (s *RequestMiddlewareSuite) TestRecovery() {
	r := chi.NewRouter()
	r.Use(RequestID, Recovery(s.logger))
	r.Post("/credentials/issue", func(http.ResponseWriter, *http.Request) {
		panic("nil ledger")
	})

	req := post("/credentials/issue", `{}`)
	req.Header.Set(HeaderRequestID, "issue-42")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	s.Equal(http.StatusInternalServerError, w.Code)
	s.JSONEq(`{"error":"internal_error"}`, w.Body.String())

	lines := s.logLines()
	s.Require().Len(lines, 1)
	s.Equal("panic recovered", lines[0]["msg"])
	s.Equal("issue-42", lines[0]["request_id"])
	s.Equal("/credentials/issue", lines[0]["path"])
}

func TestRecovery_AbortHandlerPropagates(t *testing.T) {
	handler := Recovery(slog.New(slog.NewTextHandler(io.Discard, nil)))(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic(http.ErrAbortHandler)
	}))
	assert.PanicsWithValue(t, http.ErrAbortHandler, func() {
		handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, exportPath, nil))
	})
}

func TestTimeout(t *testing.T) {
	t.Run("bounds the issue request context", func(t *testing.T) {
		var deadline time.Time
		var ok bool
		handler := Timeout(90 * time.Second)(http.HandlerFunc(func(_ http.ResponseWriter, r *http.Request) {
			deadline, ok = r.Context().Deadline()
		}))

		before := time.Now()
		handler.ServeHTTP(httptest.NewRecorder(), post("/credentials/issue", `{}`))

		require.True(t, ok)
		assert.WithinDuration(t, before.Add(90*time.Second), deadline, time.Second)
	})

	t.Run("zero leaves the context alone", func(t *testing.T) {
		var ok bool
		handler := Timeout(0)(http.HandlerFunc(func(_ http.ResponseWriter, r *http.Request) {
			_, ok = r.Context().Deadline()
		}))
		handler.ServeHTTP(httptest.NewRecorder(), post("/credentials/issue", `{}`))
		assert.False(t, ok)
	})
}

func TestContentTypeJSON(t *testing.T) {
	r := credentialRoutes(ContentTypeJSON)

	tests := []struct {
		name        string
		req         *http.Request
		contentType string
		want        int
	}{
		{"form post to verify", httptest.NewRequest(http.MethodPost, "/credentials/verify", strings.NewReader("x=1")), "application/x-www-form-urlencoded", http.StatusUnsupportedMediaType},
		{"json with charset", httptest.NewRequest(http.MethodPost, "/credentials/verify", strings.NewReader("{}")), "application/json; charset=utf-8", http.StatusOK},
		{"missing content type", httptest.NewRequest(http.MethodPost, "/credentials/issue", strings.NewReader("{}")), "", http.StatusCreated},
		{"unparseable content type", httptest.NewRequest(http.MethodPost, "/credentials/issue", strings.NewReader("{}")), "application/", http.StatusUnsupportedMediaType},
		{"export is a GET", httptest.NewRequest(http.MethodGet, exportPath, nil), "text/plain", http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.contentType != "" {
				tt.req.Header.Set("Content-Type", tt.contentType)
			}
			w := httptest.NewRecorder()
			r.ServeHTTP(w, tt.req)
			assert.Equal(t, tt.want, w.Code)
			if tt.want == http.StatusUnsupportedMediaType {
				assert.Contains(t, w.Body.String(), "invalid_content_type")
			}
		})
	}
}

func TestLatencyMiddleware(t *testing.T) {
	t.Run("labels by route pattern and status", func(t *testing.T) {
		m := NewMetrics(prometheus.NewRegistry())
		r := credentialRoutes(LatencyMiddleware(m))

		for range 3 {
			r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, exportPath, nil))
		}
		r.ServeHTTP(httptest.NewRecorder(), post("/credentials/issue", `{}`))
		r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/nope", nil))

		assert.Equal(t, 3, promtest.CollectAndCount(m.EndpointLatency))
	})

	t.Run("nil metrics is a pass-through", func(t *testing.T) {
		called := false
		handler := LatencyMiddleware(nil)(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
			called = true
		}))
		handler.ServeHTTP(httptest.NewRecorder(), post("/credentials/verify", `{}`))
		assert.True(t, called)
	})
}
