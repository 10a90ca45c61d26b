// Package detector flags or blocks abusive request patterns using counts of
// recently recorded security events as its only signal.
package detector

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/mssola/useragent"
	gobreaker "github.com/sony/gobreaker/v2"

	"adminconsole/internal/platform/metrics"
	"adminconsole/internal/securitylog"
	"adminconsole/internal/securitylog/eventlog"
	dErrors "adminconsole/pkg/domain-errors"
	"adminconsole/pkg/platform/httputil"
	"adminconsole/pkg/platform/middleware/metadata"
	"adminconsole/pkg/platform/privacy"
	"adminconsole/pkg/requestcontext"
)

const (
	DefaultMaxRequestsPerMinute   = 100
	DefaultMaxFailedLoginsPerHour = 10

	requestWindow      = time.Minute
	failedLoginWindow  = time.Hour
	breakerFailures    = 5
	breakerOpenTimeout = 30 * time.Second

	reasonRateLimited      = "rate_limited"
	reasonLockedOut        = "locked_out"
	reasonSuspiciousClient = "suspicious_user_agent"
)

// Caller-facing messages. They never mention counts, windows or thresholds.
const (
	msgRateLimited = "Too many requests. Please try again later."
	msgLockedOut   = "Too many failed login attempts. Please try again later."
)

// Counter is the read side of the security event store.
type Counter interface {
	Count(ctx context.Context, filter securitylog.CountFilter, since time.Time) (int, error)
}

// Config holds the detector thresholds. Zero values take the defaults.
type Config struct {
	// MaxRequestsPerMinute counts the current request: with 100, the 101st request
	// inside a minute is rejected.
	MaxRequestsPerMinute int
	// MaxFailedLoginsPerHour is the number of failures tolerated; the attempt after
	// one more failure is locked out.
	MaxFailedLoginsPerHour int
	// SuspiciousAgents are matched case-insensitively against the User-Agent.
	// Entries wrapped in slashes ("/^curl\//") are regular expressions, the rest
	// are substrings.
	SuspiciousAgents []string
}

type agentPattern struct {
	raw       string
	substring string
	re        *regexp.Regexp
}

func (p agentPattern) matches(lowerUA, ua string) bool {
	if p.re != nil {
		return p.re.MatchString(ua)
	}
	return strings.Contains(lowerUA, p.substring)
}

// Detector is the abuse detection middleware.
type Detector struct {
	counter  Counter
	recorder eventlog.Recorder
	cfg      Config
	patterns []agentPattern
	breaker  *gobreaker.CircuitBreaker[int]
	logger   *slog.Logger
	metrics  *metrics.Metrics
}

type Option func(*Detector)

func WithLogger(logger *slog.Logger) Option {
	return func(d *Detector) {
		d.logger = logger
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(d *Detector) {
		d.metrics = m
	}
}

// New builds a Detector. It fails only when a suspicious-agent regexp does not compile.
func New(counter Counter, recorder eventlog.Recorder, cfg Config, opts ...Option) (*Detector, error) {
	if cfg.MaxRequestsPerMinute <= 0 {
		cfg.MaxRequestsPerMinute = DefaultMaxRequestsPerMinute
	}
	if cfg.MaxFailedLoginsPerHour <= 0 {
		cfg.MaxFailedLoginsPerHour = DefaultMaxFailedLoginsPerHour
	}

	patterns, err := compilePatterns(cfg.SuspiciousAgents)
	if err != nil {
		return nil, err
	}

	d := &Detector{
		counter:  counter,
		recorder: recorder,
		cfg:      cfg,
		patterns: patterns,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(d)
	}

	d.breaker = gobreaker.NewCircuitBreaker[int](gobreaker.Settings{
		Name:    "securitylog-counter",
		Timeout: breakerOpenTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= breakerFailures
		},
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, context.Canceled)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			d.logger.Warn("abuse detector circuit breaker state changed",
				"breaker", name,
				"from", from.String(),
				"to", to.String(),
			)
		},
	})
	return d, nil
}

func compilePatterns(raw []string) ([]agentPattern, error) {
	patterns := make([]agentPattern, 0, len(raw))
	for _, entry := range raw {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}
		if len(entry) > 2 && strings.HasPrefix(entry, "/") && strings.HasSuffix(entry, "/") {
			re, err := regexp.Compile("(?i)" + entry[1:len(entry)-1])
			if err != nil {
				return nil, fmt.Errorf("invalid suspicious agent pattern %q: %w", entry, err)
			}
			patterns = append(patterns, agentPattern{raw: entry, re: re})
			continue
		}
		patterns = append(patterns, agentPattern{raw: entry, substring: strings.ToLower(entry)})
	}
	return patterns, nil
}

// Middleware checks request volume, failed-login volume (on login paths) and the
// user agent before calling next.
func (d *Detector) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		ip := requestcontext.ClientIP(ctx)
		if ip == "" {
			ip = metadata.ClientIPFromRequest(r)
		}
		now := requestcontext.Now(ctx)

		if ip != "" {
			// The current request is not recorded yet, so it is the count+1th in the window.
			if count, ok := d.count(ctx, securitylog.CountFilter{IPAddress: ip}, now.Add(-requestWindow)); ok &&
				count >= d.cfg.MaxRequestsPerMinute {
				d.block(w, r, securitylog.EventSuspiciousActivity, reasonRateLimited,
					fmt.Sprintf("Rate limit exceeded: %d requests in the last minute, limit %d", count+1, d.cfg.MaxRequestsPerMinute),
					map[string]any{"requestCount": count + 1, "threshold": d.cfg.MaxRequestsPerMinute, "windowSeconds": int(requestWindow.Seconds())},
					dErrors.New(dErrors.CodeRateLimited, msgRateLimited),
					requestWindow,
				)
				return
			}

			if IsLoginPath(r.URL.Path) {
				filter := securitylog.CountFilter{IPAddress: ip, EventType: securitylog.EventLoginFailure}
				if failures, ok := d.count(ctx, filter, now.Add(-failedLoginWindow)); ok &&
					failures > d.cfg.MaxFailedLoginsPerHour {
					d.block(w, r, securitylog.EventSecurityBreachAttempt, reasonLockedOut,
						fmt.Sprintf("Possible brute force: %d failed logins in the last hour, limit %d", failures, d.cfg.MaxFailedLoginsPerHour),
						map[string]any{"failedLogins": failures, "threshold": d.cfg.MaxFailedLoginsPerHour, "windowSeconds": int(failedLoginWindow.Seconds())},
						dErrors.New(dErrors.CodeLockedOut, msgLockedOut),
						failedLoginWindow,
					)
					return
				}
			}
		}

		d.flagUserAgent(r)
		next.ServeHTTP(w, r)
	})
}

// count runs a window count through the circuit breaker. ok is false when the
// store failed or the breaker is open; the caller then lets the request through.
func (d *Detector) count(ctx context.Context, filter securitylog.CountFilter, since time.Time) (int, bool) {
	n, err := d.breaker.Execute(func() (int, error) {
		return d.counter.Count(ctx, filter, since)
	})
	if err != nil {
		d.metrics.IncDetectorStoreError()
		d.logger.WarnContext(ctx, "abuse detector count failed, allowing request",
			"event_type", filter.EventType,
			"ip", privacy.AnonymizeIP(filter.IPAddress),
			"error", err,
			"request_id", requestcontext.RequestID(ctx),
		)
		return 0, false
	}
	return n, true
}

func (d *Detector) block(
	w http.ResponseWriter,
	r *http.Request,
	eventType securitylog.EventType,
	reason, description string,
	meta map[string]any,
	err error,
	retryAfter time.Duration,
) {
	status := dErrors.HTTPStatus(dErrors.CodeOf(err))

	event := eventlog.FromRequest(r, eventType)
	event.Action = reason
	event.Description = description
	event.ResponseStatus = status
	meta["reason"] = reason
	event.Metadata = meta
	d.record(r, event)

	d.metrics.IncDetectorBlocked(reason)
	d.logger.WarnContext(r.Context(), "abuse detector blocked request",
		"reason", reason,
		"ip", privacy.AnonymizeIP(event.IPAddress),
		"path", r.URL.Path,
		"request_id", requestcontext.RequestID(r.Context()),
	)

	w.Header().Set("Retry-After", strconv.Itoa(int(retryAfter.Seconds())))
	httputil.WriteError(w, err)
}

// flagUserAgent records a suspicious_activity event when the user agent matches a
// configured pattern. It never blocks.
func (d *Detector) flagUserAgent(r *http.Request) {
	ua := requestcontext.UserAgent(r.Context())
	if ua == "" {
		ua = r.UserAgent()
	}
	if ua == "" || len(d.patterns) == 0 {
		return
	}
	lower := strings.ToLower(ua)
	for _, p := range d.patterns {
		if !p.matches(lower, ua) {
			continue
		}

		parsed := useragent.New(ua)
		browser, version := parsed.Browser()

		event := eventlog.FromRequest(r, securitylog.EventSuspiciousActivity)
		event.Action = reasonSuspiciousClient
		event.Description = "Suspicious user agent detected"
		event.Metadata = map[string]any{
			"reason":         reasonSuspiciousClient,
			"pattern":        p.raw,
			"bot":            parsed.Bot(),
			"browser":        browser,
			"browserVersion": version,
			"os":             parsed.OS(),
		}
		d.record(r, event)
		return
	}
}

func (d *Detector) record(r *http.Request, event *securitylog.Event) {
	if err := d.recorder.Record(event); err != nil {
		d.logger.DebugContext(r.Context(), "detector event not queued",
			"event_type", event.EventType,
			"error", err,
		)
	}
}

// IsLoginPath reports whether path is a login endpoint.
func IsLoginPath(path string) bool {
	path = strings.TrimSuffix(strings.ToLower(path), "/")
	return strings.HasSuffix(path, "/login") || strings.Contains(path, "/auth/login")
}
