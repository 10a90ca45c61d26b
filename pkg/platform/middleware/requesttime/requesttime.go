// Package requesttime records the request start time so every component handling the
// request (abuse detector, event logger, handlers) shares one "now" and the event logger
// can compute processing time.
package requesttime

import (
	"context"
	"net/http"
	"time"

	"adminconsole/pkg/requestcontext"
)

// Middleware captures the current time at the start of the request.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := requestcontext.WithTime(r.Context(), time.Now())
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// Now retrieves the request-scoped time from context.
func Now(ctx context.Context) time.Time {
	return requestcontext.Now(ctx)
}

// Since returns the elapsed time since the request started. Without a recorded
// start time it returns zero.
func Since(ctx context.Context) time.Duration {
	started, ok := requestcontext.StartedAt(ctx)
	if !ok {
		return 0
	}
	return time.Since(started)
}
