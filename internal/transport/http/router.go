// Package httptransport assembles the console's HTTP surface: shared request
// middleware, the security layer and the module routes.
package httptransport

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"adminconsole/internal/admin"
	"adminconsole/internal/securitylog/eventlog"
	securityhandler "adminconsole/internal/securitylog/handler"
	"adminconsole/pkg/platform/httputil"
	authmw "adminconsole/pkg/platform/middleware/auth"
	metadata "adminconsole/pkg/platform/middleware/metadata"
	request "adminconsole/pkg/platform/middleware/request"
	"adminconsole/pkg/platform/middleware/requesttime"
	"adminconsole/pkg/requestcontext"
)

// HealthCheck reports whether a backing dependency is reachable.
type HealthCheck func(ctx context.Context) error

// Deps are the components the router mounts. Detector may be nil to disable
// abuse detection.
type Deps struct {
	Logger         *slog.Logger
	Gatherer       prometheus.Gatherer
	Tokens         authmw.JWTValidator
	Events         *eventlog.Logger
	Detector       func(http.Handler) http.Handler
	Admin          *admin.Handler
	Gate           *admin.Gate
	SecurityEvents *securityhandler.Handler
	HealthChecks   map[string]HealthCheck
}

// NewRouter wires the middleware chain:
//
//	request id -> client metadata -> request time -> recoverer
//	/api: authenticate -> permission-denied logger -> abuse detector -> routes
//
// Each admin route applies its own role gate and event logger.
func NewRouter(d Deps) http.Handler {
	r := chi.NewRouter()
	r.Use(request.RequestID)
	r.Use(metadata.ClientMetadata)
	r.Use(requesttime.Middleware)
	r.Use(chimw.Recoverer)

	r.Get("/health", healthHandler(d.Logger, d.HealthChecks))
	if d.Gatherer != nil {
		r.Handle("/metrics", promhttp.HandlerFor(d.Gatherer, promhttp.HandlerOpts{}))
	}

	r.Route("/api", func(r chi.Router) {
		r.Use(authmw.Authenticate(d.Tokens, d.Logger))
		r.Use(d.Events.Middleware(eventlog.PermissionDenied()))
		if d.Detector != nil {
			r.Use(d.Detector)
		}

		d.Admin.RegisterAuth(r)
		r.Route("/admin", func(r chi.Router) {
			d.Admin.RegisterAdmin(r)
			r.Group(func(r chi.Router) {
				r.Use(d.Gate.RequireSuperAdmin)
				d.SecurityEvents.Register(r)
			})
		})
	})

	return r
}

type healthResponse struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks,omitempty"`
}

func healthHandler(logger *slog.Logger, checks map[string]HealthCheck) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		resp := healthResponse{Status: "ok"}
		status := http.StatusOK
		for name, check := range checks {
			if resp.Checks == nil {
				resp.Checks = make(map[string]string, len(checks))
			}
			if err := check(ctx); err != nil {
				resp.Checks[name] = "unavailable"
				resp.Status = "degraded"
				status = http.StatusServiceUnavailable
				logger.WarnContext(ctx, "health check failed",
					"check", name,
					"error", err,
					"request_id", requestcontext.RequestID(ctx),
				)
				continue
			}
			resp.Checks[name] = "ok"
		}
		httputil.WriteJSON(w, status, resp)
	}
}
