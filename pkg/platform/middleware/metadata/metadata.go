// Package metadata captures caller network identity for downstream middleware.
package metadata

import (
	"net"
	"net/http"
	"strings"

	"adminconsole/pkg/requestcontext"
)

// ClientMetadata extracts the client IP address and User-Agent from the request
// and stores them in the context. Apply it before the abuse detector and event logger.
func ClientMetadata(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := requestcontext.WithClientMetadata(r.Context(), ClientIPFromRequest(r), r.Header.Get("User-Agent"))
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// GetClientIP retrieves the client IP address from the context.
func GetClientIP(r *http.Request) string {
	return requestcontext.ClientIP(r.Context())
}

// ClientIPFromRequest extracts the real client IP, handling proxies and load balancers.
// Behind an untrusted proxy the forwarded headers are best-effort only.
func ClientIPFromRequest(r *http.Request) string {
	// X-Forwarded-For can contain several hops; the first is the original client.
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		first, _, _ := strings.Cut(xff, ",")
		return strings.TrimSpace(first)
	}

	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		return strings.TrimSpace(xri)
	}

	if r.RemoteAddr != "" {
		if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
			return host
		}
		return r.RemoteAddr
	}

	return ""
}
