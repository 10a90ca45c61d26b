package admin

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"adminconsole/internal/platform/metrics"
	id "adminconsole/pkg/domain"
	dErrors "adminconsole/pkg/domain-errors"
	"adminconsole/pkg/platform/httputil"
	"adminconsole/pkg/platform/sentinel"
	"adminconsole/pkg/requestcontext"
)

type principalKey struct{}

// WithPrincipal attaches a resolved principal to ctx.
func WithPrincipal(ctx context.Context, p *Principal) context.Context {
	return context.WithValue(ctx, principalKey{}, p)
}

// PrincipalFromContext returns the principal attached by the gate.
func PrincipalFromContext(ctx context.Context) (*Principal, bool) {
	p, ok := ctx.Value(principalKey{}).(*Principal)
	return p, ok && p != nil
}

// Gate rejects requests whose caller lacks the required administrative role.
type Gate struct {
	finder  PrincipalFinder
	logger  *slog.Logger
	metrics *metrics.Metrics
}

type GateOption func(*Gate)

func WithGateLogger(logger *slog.Logger) GateOption {
	return func(g *Gate) { g.logger = logger }
}

func WithGateMetrics(m *metrics.Metrics) GateOption {
	return func(g *Gate) { g.metrics = m }
}

func NewGate(finder PrincipalFinder, opts ...GateOption) *Gate {
	g := &Gate{finder: finder, logger: slog.Default()}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// RequireAdmin admits active principals with role admin or superadmin.
func (g *Gate) RequireAdmin(next http.Handler) http.Handler {
	return g.require(RoleAdmin, next)
}

// RequireSuperAdmin admits active superadmins only.
func (g *Gate) RequireSuperAdmin(next http.Handler) http.Handler {
	return g.require(RoleSuperAdmin, next)
}

// Require returns the gate middleware for an arbitrary minimum role.
func (g *Gate) Require(required Role) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return g.require(required, next)
	}
}

func (g *Gate) require(required Role, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		p, err := g.resolve(ctx, required)
		if err != nil {
			g.deny(ctx, w, err)
			return
		}

		identity, _ := requestcontext.Admin(ctx)
		identity.Role = string(p.Role)
		if identity.Email == "" {
			identity.Email = p.Email
		}
		ctx = requestcontext.WithAdmin(ctx, identity)
		ctx = WithPrincipal(ctx, p)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// resolve classifies the caller. Status is checked before role so an inactive
// principal is reported as inactive whatever its role.
func (g *Gate) resolve(ctx context.Context, required Role) (*Principal, error) {
	identity, ok := requestcontext.Admin(ctx)
	if !ok {
		return nil, errUnauthenticated
	}
	adminID, err := id.ParseAdminID(identity.ID)
	if err != nil {
		return nil, errUnauthenticated
	}

	p, err := g.finder.FindByID(ctx, adminID)
	if errors.Is(err, sentinel.ErrNotFound) {
		return nil, errUnauthenticated
	}
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "principal lookup failed")
	}

	if !p.IsActive() {
		return nil, errInactive
	}
	if !p.Role.Satisfies(required) {
		return nil, errInsufficientRole
	}
	return p, nil
}

var (
	errUnauthenticated  = dErrors.New(dErrors.CodeUnauthorized, "authentication required")
	errInactive         = dErrors.New(dErrors.CodeForbidden, "account is inactive")
	errInsufficientRole = dErrors.New(dErrors.CodeForbidden, "insufficient privileges")
)

func (g *Gate) deny(ctx context.Context, w http.ResponseWriter, err error) {
	requestID := requestcontext.RequestID(ctx)

	switch {
	case errors.Is(err, errUnauthenticated):
		g.metrics.IncGateDenied("unauthenticated")
		g.logger.InfoContext(ctx, "admin gate rejected unauthenticated caller", "request_id", requestID)
		httputil.WriteError(w, err)
	case errors.Is(err, errInactive):
		g.metrics.IncGateDenied("inactive")
		g.logger.InfoContext(ctx, "admin gate rejected inactive principal",
			"request_id", requestID,
			"admin_id", requestcontext.ActorID(ctx),
		)
		httputil.WriteError(w, err)
	case errors.Is(err, errInsufficientRole):
		g.metrics.IncGateDenied("forbidden_role")
		g.logger.InfoContext(ctx, "admin gate rejected insufficient role",
			"request_id", requestID,
			"admin_id", requestcontext.ActorID(ctx),
		)
		httputil.WriteError(w, err)
	default:
		g.metrics.IncGateDenied("lookup_failed")
		g.logger.ErrorContext(ctx, "admin gate principal lookup failed",
			"request_id", requestID,
			"error", err,
		)
		httputil.WriteErrorDetail(w, err)
	}
}
