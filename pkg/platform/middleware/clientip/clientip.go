// Package clientip resolves the caller's IP address once per request and
// stores it in the request context.
package clientip

import (
	"fmt"
	"net/http"
	"net/netip"
	"strings"

	"didlab/pkg/requestcontext"
)

// MaxForwardedHeaderLength bounds X-Forwarded-For and X-Real-IP before parsing.
const MaxForwardedHeaderLength = 500

// Resolver extracts client IPs. Forwarding headers are honored only when the
// direct peer is inside one of TrustedProxies; with none configured they are
// always ignored.
type Resolver struct {
	trustedProxies []netip.Prefix
}

// New creates a resolver trusting the given proxy prefixes.
func New(trustedProxies []netip.Prefix) *Resolver {
	return &Resolver{trustedProxies: trustedProxies}
}

// ParseTrustedProxies parses CIDR strings from configuration.
func ParseTrustedProxies(cidrs []string) ([]netip.Prefix, error) {
	prefixes := make([]netip.Prefix, 0, len(cidrs))
	for _, c := range cidrs {
		c = strings.TrimSpace(c)
		if c == "" {
			continue
		}
		p, err := netip.ParsePrefix(c)
		if err != nil {
			return nil, fmt.Errorf("trusted proxy %q: %w", c, err)
		}
		prefixes = append(prefixes, p)
	}
	return prefixes, nil
}

// Middleware stores the resolved IP via requestcontext.WithClientIP.
func (res *Resolver) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := requestcontext.WithClientIP(r.Context(), res.Resolve(r))
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// Resolve returns the client IP for r, or "unknown" when RemoteAddr is empty.
func (res *Resolver) Resolve(r *http.Request) string {
	remoteIP := parseRemoteAddr(r.RemoteAddr)
	if remoteIP == "" {
		return "unknown"
	}
	if !res.isTrusted(remoteIP) {
		return remoteIP
	}

	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		if len(xff) > MaxForwardedHeaderLength {
			return remoteIP
		}
		// First entry is the original client.
		first, _, _ := strings.Cut(xff, ",")
		first = strings.TrimSpace(first)
		if _, err := netip.ParseAddr(first); err != nil {
			return remoteIP
		}
		return first
	}

	if xri := strings.TrimSpace(r.Header.Get("X-Real-IP")); xri != "" && len(xri) <= MaxForwardedHeaderLength {
		if _, err := netip.ParseAddr(xri); err == nil {
			return xri
		}
	}
	return remoteIP
}

func (res *Resolver) isTrusted(ip string) bool {
	if len(res.trustedProxies) == 0 {
		return false
	}
	addr, err := netip.ParseAddr(ip)
	if err != nil {
		return false
	}
	for _, prefix := range res.trustedProxies {
		if prefix.Contains(addr) {
			return true
		}
	}
	return false
}

// parseRemoteAddr strips the port from host:port and [v6]:port forms.
func parseRemoteAddr(remoteAddr string) string {
	if remoteAddr == "" {
		return ""
	}
	if ap, err := netip.ParseAddrPort(remoteAddr); err == nil {
		return ap.Addr().String()
	}
	if addr, err := netip.ParseAddr(strings.Trim(remoteAddr, "[]")); err == nil {
		return addr.String()
	}
	return remoteAddr
}
