package admin

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"adminconsole/internal/securitylog/eventlog"
	id "adminconsole/pkg/domain"
	dErrors "adminconsole/pkg/domain-errors"
	"adminconsole/pkg/platform/httputil"
	"adminconsole/pkg/platform/validation"
	"adminconsole/pkg/requestcontext"
)

// Handler serves the console account endpoints and applies the role gate and
// security event loggers per route.
type Handler struct {
	service   *Service
	settings  *SettingsStore
	gate      *Gate
	events    *eventlog.Logger
	bulkLimit func(http.Handler) http.Handler
	logger    *slog.Logger
}

type HandlerOption func(*Handler)

// WithBulkLimiter wraps the bulk endpoints with the given middleware.
func WithBulkLimiter(mw func(http.Handler) http.Handler) HandlerOption {
	return func(h *Handler) { h.bulkLimit = mw }
}

func WithHandlerLogger(logger *slog.Logger) HandlerOption {
	return func(h *Handler) { h.logger = logger }
}

func NewHandler(service *Service, settings *SettingsStore, gate *Gate, events *eventlog.Logger, opts ...HandlerOption) *Handler {
	h := &Handler{
		service:   service,
		settings:  settings,
		gate:      gate,
		events:    events,
		bulkLimit: func(next http.Handler) http.Handler { return next },
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// RegisterAuth mounts the login endpoint.
func (h *Handler) RegisterAuth(r chi.Router) {
	r.With(
		h.events.Middleware(eventlog.LoginSuccess()),
		h.events.Middleware(eventlog.LoginFailure()),
	).Post("/auth/login", h.handleLogin)
}

// RegisterAdmin mounts the account management endpoints. Each route carries its
// own gate level.
func (h *Handler) RegisterAdmin(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(h.gate.RequireAdmin)

		r.With(h.events.Middleware(eventlog.DataAccess(
			eventlog.WithResource(eventlog.Const("admin_users")),
		))).Get("/users", h.handleList)
		r.With(h.events.Middleware(eventlog.Export("admin_users",
			eventlog.WithResource(eventlog.Const("admin_users")),
		))).Get("/users/export", h.handleExport)
		r.With(h.bulkLimit, h.events.Middleware(eventlog.BulkOperation(
			eventlog.WithResource(eventlog.Const("admin_users")),
		))).Post("/users/bulk-status", h.handleBulkStatus)
		r.With(h.events.Middleware(eventlog.GDPRDataAccess(
			eventlog.WithResource(eventlog.ResourceWithID("admin_user")),
		))).Get("/users/{id}", h.handleGet)
		r.With(h.events.Middleware(eventlog.DataAccess(
			eventlog.WithResource(eventlog.Const("settings")),
		))).Get("/settings", h.handleGetSettings)
	})

	r.Group(func(r chi.Router) {
		r.Use(h.gate.RequireSuperAdmin)

		r.With(h.events.Middleware(eventlog.DataModification(
			eventlog.WithResource(eventlog.ResourceWithID("admin_user")),
			eventlog.WithAction(eventlog.Const("update_status")),
		))).Patch("/users/{id}/status", h.handleSetStatus)
		r.With(h.events.Middleware(eventlog.ConfigurationChange(
			eventlog.WithResource(eventlog.Const("settings")),
		))).Put("/settings", h.handlePutSettings)
	})
}

func (h *Handler) handleLogin(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	var req LoginRequest
	if err := decodeJSON(r, &req); err != nil {
		httputil.WriteError(w, err)
		return
	}
	if err := validation.Struct(req); err != nil {
		httputil.WriteError(w, err)
		return
	}

	res, err := h.service.Login(ctx, req.Email, req.Password)
	if err != nil {
		h.logger.InfoContext(ctx, "admin login rejected",
			"request_id", requestID,
			"error", err.Error(),
		)
		httputil.WriteError(w, err)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, LoginResponse{
		AccessToken: res.AccessToken,
		TokenType:   "Bearer",
		ExpiresIn:   int(res.ExpiresIn / time.Second),
		Admin:       toResponse(res.Principal),
	})
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	principals, err := h.service.List(r.Context())
	if err != nil {
		h.writeServiceError(w, r, "failed to list principals", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, PrincipalsListResponse{
		Users: toResponses(principals),
		Total: len(principals),
	})
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	p, err := h.service.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.writeServiceError(w, r, "failed to load principal", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, toResponse(p))
}

func (h *Handler) handleSetStatus(w http.ResponseWriter, r *http.Request) {
	var req StatusRequest
	if err := decodeJSON(r, &req); err != nil {
		httputil.WriteError(w, err)
		return
	}
	if err := validation.Struct(req); err != nil {
		httputil.WriteError(w, err)
		return
	}

	p, err := h.service.SetStatus(r.Context(), callerID(r), chi.URLParam(r, "id"), req.Status)
	if err != nil {
		h.writeServiceError(w, r, "failed to update status", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, toResponse(p))
}

func (h *Handler) handleBulkStatus(w http.ResponseWriter, r *http.Request) {
	var req BulkStatusRequest
	if err := decodeJSON(r, &req); err != nil {
		httputil.WriteError(w, err)
		return
	}
	if err := validation.Struct(req); err != nil {
		httputil.WriteError(w, err)
		return
	}

	updated, err := h.service.BulkSetStatus(r.Context(), callerID(r), req.UserIDs, req.Status)
	if err != nil {
		h.writeServiceError(w, r, "failed to apply bulk status", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, BulkStatusResponse{Updated: updated})
}

func (h *Handler) handleExport(w http.ResponseWriter, r *http.Request) {
	req := ExportRequest{Format: strings.ToLower(strings.TrimSpace(r.URL.Query().Get("format")))}
	if err := validation.Struct(req); err != nil {
		httputil.WriteError(w, err)
		return
	}
	if req.Format == "" {
		req.Format = "json"
	}

	principals, err := h.service.List(r.Context())
	if err != nil {
		h.writeServiceError(w, r, "failed to export principals", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, ExportResponse{
		Format:     req.Format,
		ExportedAt: requestcontext.Now(r.Context()),
		Records:    toResponses(principals),
	})
}

func (h *Handler) handleGetSettings(w http.ResponseWriter, _ *http.Request) {
	httputil.WriteJSON(w, http.StatusOK, h.settings.Get())
}

func (h *Handler) handlePutSettings(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var next Settings
	if err := decodeJSON(r, &next); err != nil {
		httputil.WriteError(w, err)
		return
	}
	if err := validation.Struct(next); err != nil {
		httputil.WriteError(w, err)
		return
	}
	next.UpdatedAt = requestcontext.Now(ctx)
	next.UpdatedBy = requestcontext.ActorID(ctx)

	prev := h.settings.Replace(next)
	h.logger.InfoContext(ctx, "console settings replaced",
		"request_id", requestcontext.RequestID(ctx),
		"actor_id", next.UpdatedBy,
		"maintenance_mode", next.MaintenanceMode,
		"previous_maintenance_mode", prev.MaintenanceMode,
	)
	httputil.WriteJSON(w, http.StatusOK, next)
}

func (h *Handler) writeServiceError(w http.ResponseWriter, r *http.Request, msg string, err error) {
	ctx := r.Context()
	if dErrors.CodeOf(err) == dErrors.CodeInternal {
		h.logger.ErrorContext(ctx, msg,
			"request_id", requestcontext.RequestID(ctx),
			"error", err.Error(),
		)
	}
	httputil.WriteError(w, err)
}

// callerID returns the principal resolved by the gate.
func callerID(r *http.Request) id.AdminID {
	if p, ok := PrincipalFromContext(r.Context()); ok {
		return p.ID
	}
	return id.AdminID{}
}

func decodeJSON(r *http.Request, v any) error {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return dErrors.Wrap(err, dErrors.CodeBadRequest, "invalid JSON body")
	}
	return nil
}
