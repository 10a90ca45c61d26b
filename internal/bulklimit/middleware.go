package bulklimit

import (
	"log/slog"
	"math"
	"net/http"
	"strconv"
	"strings"
	"time"

	"adminconsole/internal/platform/metrics"
	dErrors "adminconsole/pkg/domain-errors"
	"adminconsole/pkg/platform/httputil"
	metadata "adminconsole/pkg/platform/middleware/metadata"
	"adminconsole/pkg/platform/privacy"
	"adminconsole/pkg/requestcontext"
)

var errTooManyBulkOperations = dErrors.New(dErrors.CodeRateLimited, "Too many bulk operations. Please try again later.")

// Limiter admits at most limit bulk operations per actor per window.
type Limiter struct {
	store   Store
	limit   int
	window  time.Duration
	logger  *slog.Logger
	metrics *metrics.Metrics
}

type Option func(*Limiter)

func WithLogger(logger *slog.Logger) Option {
	return func(l *Limiter) { l.logger = logger }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(l *Limiter) { l.metrics = m }
}

func New(store Store, limit int, window time.Duration, opts ...Option) *Limiter {
	l := &Limiter{
		store:  store,
		limit:  limit,
		window: window,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Middleware rejects over-limit callers with 429. Store errors let the request through.
func (l *Limiter) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		key := ActorKey(r)

		result, err := l.store.Allow(ctx, key, l.limit, l.window)
		if err != nil {
			l.logger.ErrorContext(ctx, "failed to check bulk operation limit",
				"error", err,
				"request_id", requestcontext.RequestID(ctx),
			)
			next.ServeHTTP(w, r)
			return
		}

		if !result.Allowed {
			l.metrics.IncBulkLimitRejected()
			l.logger.WarnContext(ctx, "bulk operation limit exceeded",
				"request_id", requestcontext.RequestID(ctx),
				"actor", redactKey(key),
			)
			w.Header().Set("Retry-After", strconv.Itoa(retryAfterSeconds(result.ResetAt)))
			httputil.WriteError(w, errTooManyBulkOperations)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// ActorKey identifies the caller: administrator id, then end-user id, then client IP.
func ActorKey(r *http.Request) string {
	ctx := r.Context()
	if a, ok := requestcontext.Admin(ctx); ok {
		return "admin:" + a.ID
	}
	if u, ok := requestcontext.User(ctx); ok {
		return "user:" + u.ID
	}
	ip := requestcontext.ClientIP(ctx)
	if ip == "" {
		ip = metadata.ClientIPFromRequest(r)
	}
	return "ip:" + ip
}

func redactKey(key string) string {
	if ip, ok := strings.CutPrefix(key, "ip:"); ok {
		return "ip:" + privacy.AnonymizeIP(ip)
	}
	return key
}

func retryAfterSeconds(resetAt time.Time) int {
	secs := int(math.Ceil(time.Until(resetAt).Seconds()))
	if secs < 1 {
		return 1
	}
	return secs
}
