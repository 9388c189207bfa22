// Package apikey guards routes with a shared key in the X-API-Key header.
package apikey

import (
	"crypto/subtle"
	"log/slog"
	"net/http"

	dErrors "didlab/pkg/domain-errors"
	"didlab/pkg/secrets"
	"didlab/pkg/platform/httputil"
	"didlab/pkg/requestcontext"
)

// Header is the request header carrying the key.
const Header = "X-API-Key"

// Require rejects requests whose X-API-Key does not match expected.
// expected may be a plaintext key or a bcrypt hash of one. An empty expected
// key disables the check and the route stays open.
func Require(expected string, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if expected == "" {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			got := r.Header.Get(Header)
			if !matches(got, expected) {
				ctx := r.Context()
				logger.WarnContext(ctx, "api key mismatch",
					"request_id", requestcontext.RequestID(ctx),
					"path", r.URL.Path,
					"key_present", got != "",
				)
				httputil.WriteError(w, dErrors.New(dErrors.CodeUnauthorized, "valid "+Header+" header required"))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func matches(got, expected string) bool {
	if got == "" {
		return false
	}
	if secrets.IsHash(expected) {
		return secrets.Verify(got, expected) == nil
	}
	return subtle.ConstantTimeCompare([]byte(got), []byte(expected)) == 1
}
