// Package eventlog records one security event per request from an HTTP middleware.
//
// The middleware observes the final response status, resolves the per-route
// derivations and hands the event to an asynchronous recorder. Nothing it does can
// change the response or fail the request.
package eventlog

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"maps"
	"net/http"
	"strings"
	"time"

	chimw "github.com/go-chi/chi/v5/middleware"

	"adminconsole/internal/securitylog"
	"adminconsole/pkg/platform/middleware/metadata"
	"adminconsole/pkg/requestcontext"
)

// maxCapturedBody bounds how much of a request body is buffered for derivations.
const maxCapturedBody = 1 << 20

// Recorder accepts events for asynchronous persistence.
type Recorder interface {
	Record(event *securitylog.Event) error
}

// Config binds the generic logger to one route or route group.
type Config struct {
	EventType   securitylog.EventType
	Resource    Derivation[string]
	Action      Derivation[string]
	Description Derivation[string]
	Metadata    Derivation[map[string]any]
	// LogBody allows the decoded request body into requestData. Credential-like
	// fields are redacted even then.
	LogBody bool
	// LogAllResponses records non-2xx responses too.
	LogAllResponses bool
	// When further restricts which statuses are recorded. Nil records every status
	// that passes the LogAllResponses filter.
	When func(status int) bool
}

// Option adjusts a pre-configured Config.
type Option func(*Config)

func WithResource(d Derivation[string]) Option {
	return func(c *Config) { c.Resource = d }
}

func WithAction(d Derivation[string]) Option {
	return func(c *Config) { c.Action = d }
}

func WithDescription(d Derivation[string]) Option {
	return func(c *Config) { c.Description = d }
}

func WithMetadata(d Derivation[map[string]any]) Option {
	return func(c *Config) { c.Metadata = d }
}

func WithLogBody(logBody bool) Option {
	return func(c *Config) { c.LogBody = logBody }
}

func WithWhen(fn func(status int) bool) Option {
	return func(c *Config) { c.When = fn }
}

func (c Config) shouldLog(status int) bool {
	if !c.LogAllResponses && (status < 200 || status >= 300) {
		return false
	}
	if c.When != nil && !c.When(status) {
		return false
	}
	return true
}

// Logger builds security events from HTTP exchanges.
type Logger struct {
	recorder Recorder
	logger   *slog.Logger
}

func New(recorder Recorder, logger *slog.Logger) *Logger {
	if logger == nil {
		logger = slog.Default()
	}
	return &Logger{recorder: recorder, logger: logger}
}

// Middleware returns an HTTP middleware recording one event per request per cfg.
func (l *Logger) Middleware(cfg Config) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			started, ok := requestcontext.StartedAt(r.Context())
			if !ok {
				started = time.Now()
			}
			raw := captureBody(r)

			ww := chimw.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r)

			status := ww.Status()
			if status == 0 {
				status = http.StatusOK
			}
			if !cfg.shouldLog(status) {
				return
			}
			l.record(cfg, r, status, time.Since(started), raw)
		})
	}
}

func (l *Logger) record(cfg Config, r *http.Request, status int, elapsed time.Duration, raw []byte) {
	defer func() {
		if rec := recover(); rec != nil {
			l.logger.Error("panic while building security event",
				"event_type", cfg.EventType,
				"path", r.URL.Path,
				"panic", rec,
				"request_id", requestcontext.RequestID(r.Context()),
			)
		}
	}()

	event := l.build(cfg, r, status, elapsed, raw)
	if err := l.recorder.Record(event); err != nil {
		l.logger.Debug("security event not queued",
			"event_type", cfg.EventType,
			"error", err,
			"request_id", requestcontext.RequestID(r.Context()),
		)
	}
}

func (l *Logger) build(cfg Config, r *http.Request, status int, elapsed time.Duration, raw []byte) *securitylog.Event {
	x := &Exchange{Request: r, Status: status, Body: decodeBody(raw)}

	event := FromRequest(r, cfg.EventType)
	event.Resource = cfg.Resource.Resolve(x, r.URL.Path)
	event.Action = cfg.Action.Resolve(x, strings.ToLower(r.Method)+"_data")
	event.Description = cfg.Description.Resolve(x, fmt.Sprintf("%s %s %s", cfg.EventType, r.Method, r.URL.Path))
	event.Metadata = cfg.Metadata.Resolve(x, nil)
	event.ResponseStatus = status
	event.ProcessingTimeMs = elapsed.Milliseconds()

	requestData := map[string]any{"query": flattenQuery(r)}
	if cfg.LogBody && x.Body != nil {
		requestData["body"] = redact(x.Body)
	}
	event.RequestData = requestData
	return event
}

// FromRequest starts an event carrying the caller's network identity, actor and
// request line. Used by the logger middleware and by the abuse detector.
func FromRequest(r *http.Request, eventType securitylog.EventType) *securitylog.Event {
	ctx := r.Context()
	ip := requestcontext.ClientIP(ctx)
	if ip == "" {
		ip = metadata.ClientIPFromRequest(r)
	}
	ua := requestcontext.UserAgent(ctx)
	if ua == "" {
		ua = r.UserAgent()
	}

	event := &securitylog.Event{
		EventType:     eventType,
		IPAddress:     ip,
		UserAgent:     ua,
		RequestMethod: r.Method,
		RequestPath:   r.URL.Path,
		Resource:      r.URL.Path,
	}
	event.UserID, event.AdminID, event.ActorKind = ResolveActor(r)
	return event
}

// ResolveActor picks the actor from whichever identity the auth middleware attached.
// An end user whose role is superadmin is recorded with the admin kind. An
// administrator is recorded with its role as the kind, defaulting to admin.
func ResolveActor(r *http.Request) (userID, adminID, kind string) {
	ctx := r.Context()
	if u, ok := requestcontext.User(ctx); ok {
		kind = securitylog.ActorUser
		if u.Role == securitylog.ActorSuperAdmin {
			kind = securitylog.ActorAdmin
		}
		return u.ID, "", kind
	}
	if a, ok := requestcontext.Admin(ctx); ok {
		kind = a.Role
		if kind == "" {
			kind = securitylog.ActorAdmin
		}
		return "", a.ID, kind
	}
	return "", "", ""
}

// captureBody buffers up to maxCapturedBody bytes of the body and re-attaches a
// reader that replays them ahead of any unread remainder.
func captureBody(r *http.Request) []byte {
	if r.Body == nil || r.Body == http.NoBody {
		return nil
	}
	buf, err := io.ReadAll(io.LimitReader(r.Body, maxCapturedBody))
	r.Body = readCloser{Reader: io.MultiReader(bytes.NewReader(buf), r.Body), Closer: r.Body}
	if err != nil {
		return nil
	}
	return buf
}

type readCloser struct {
	io.Reader
	io.Closer
}

func decodeBody(raw []byte) map[string]any {
	if len(bytes.TrimSpace(raw)) == 0 {
		return nil
	}
	var body map[string]any
	if err := json.Unmarshal(raw, &body); err != nil {
		return nil
	}
	return body
}

func flattenQuery(r *http.Request) map[string]any {
	query := r.URL.Query()
	out := make(map[string]any, len(query))
	for key, values := range query {
		if len(values) == 1 {
			out[key] = values[0]
			continue
		}
		out[key] = values
	}
	return out
}

var sensitiveKeys = []string{"password", "secret", "token", "authorization"}

func redact(body map[string]any) map[string]any {
	out := maps.Clone(body)
	for key, value := range out {
		lower := strings.ToLower(key)
		for _, sensitive := range sensitiveKeys {
			if strings.Contains(lower, sensitive) {
				out[key] = "[REDACTED]"
				break
			}
		}
		if nested, ok := out[key].(map[string]any); ok {
			out[key] = redact(nested)
		}
	}
	return out
}
