package request

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBodyLimit(t *testing.T) {
	const limit int64 = 128

	echo := func(t *testing.T) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			data, err := io.ReadAll(r.Body)
			if err != nil {
				w.WriteHeader(http.StatusRequestEntityTooLarge)
				return
			}
			w.WriteHeader(http.StatusOK)
			_, _ = w.Write(data)
		})
	}

	t.Run("body within limit reaches the handler", func(t *testing.T) {
		body := `{"rawJsonString":"{}"}`
		w := httptest.NewRecorder()
		BodyLimit(limit)(echo(t)).ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/credentials/issue", strings.NewReader(body)))

		assert.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, body, w.Body.String())
	})

	t.Run("declared oversize body is rejected before the handler", func(t *testing.T) {
		called := false
		next := http.HandlerFunc(func(http.ResponseWriter, *http.Request) { called = true })

		req := httptest.NewRequest(http.MethodPost, "/credentials/issue", strings.NewReader(strings.Repeat("x", int(limit)+1)))
		w := httptest.NewRecorder()
		BodyLimit(limit)(next).ServeHTTP(w, req)

		assert.False(t, called)
		assert.Equal(t, http.StatusRequestEntityTooLarge, w.Code)
		var body map[string]string
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
		assert.Equal(t, "payload_too_large", body["error"])
	})

	t.Run("undeclared oversize body fails on read", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/credentials/issue", strings.NewReader(strings.Repeat("x", int(limit)*2)))
		req.ContentLength = -1
		w := httptest.NewRecorder()
		BodyLimit(limit)(echo(t)).ServeHTTP(w, req)

		assert.Equal(t, http.StatusRequestEntityTooLarge, w.Code)
	})

	t.Run("bodyless export request passes", func(t *testing.T) {
		w := httptest.NewRecorder()
		BodyLimit(limit)(echo(t)).ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/credentials/export", nil))
		assert.Equal(t, http.StatusOK, w.Code)
	})
}
