// Package handler exposes the operator surface over the security event store:
// a paginated event query and the retention purge.
package handler

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"adminconsole/internal/securitylog"
	"adminconsole/internal/securitylog/eventlog"
	dErrors "adminconsole/pkg/domain-errors"
	"adminconsole/pkg/platform/httputil"
	"adminconsole/pkg/platform/privacy"
	"adminconsole/pkg/platform/validation"
	"adminconsole/pkg/requestcontext"
)

// Store is the subset of the event store the operator surface needs.
type Store interface {
	List(ctx context.Context, q securitylog.Query) (securitylog.Page, error)
	Purge(ctx context.Context, olderThanDays *int) (int64, error)
}

// Handler serves the security event endpoints. Callers gate the routes; the
// handler adds its own audit loggers.
type Handler struct {
	store  Store
	events *eventlog.Logger
	logger *slog.Logger
}

func New(store Store, events *eventlog.Logger, logger *slog.Logger) *Handler {
	return &Handler{store: store, events: events, logger: logger}
}

// Register mounts the routes under the given router.
func (h *Handler) Register(r chi.Router) {
	r.With(h.events.Middleware(eventlog.AuditLogAccess())).
		Get("/security-events", h.handleList)
	r.With(h.events.Middleware(eventlog.DataModification(
		eventlog.WithResource(eventlog.Const("security_events")),
		eventlog.WithAction(eventlog.Const("purge_events")),
		eventlog.WithDescription(eventlog.Func(describePurge)),
	))).Delete("/security-events", h.handlePurge)
}

type listRequest struct {
	EventTypes []string `json:"eventType" validate:"dive,min=1,max=64"`
	ActorKind  string   `json:"actorKind" validate:"omitempty,oneof=user admin superadmin"`
	Page       int      `json:"page" validate:"gte=0,lte=1000000"`
	Limit      int      `json:"limit" validate:"gte=0"`
}

type purgeRequest struct {
	OlderThanDays *int `json:"olderThanDays" validate:"omitempty,gte=0,lte=36500"`
}

type purgeResponse struct {
	DeletedCount int64 `json:"deletedCount"`
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	req, err := parseListRequest(r)
	if err == nil {
		err = validation.Struct(req)
	}
	if err != nil {
		h.logger.WarnContext(ctx, "invalid security event query",
			"request_id", requestID,
			"error", err.Error(),
		)
		httputil.WriteError(w, err)
		return
	}

	q := securitylog.Query{ActorKind: req.ActorKind, Page: req.Page, Limit: req.Limit}
	for _, t := range req.EventTypes {
		q.EventTypes = append(q.EventTypes, securitylog.EventType(t))
	}

	page, err := h.store.List(ctx, q)
	if err != nil {
		h.logger.ErrorContext(ctx, "failed to list security events",
			"request_id", requestID,
			"error", err.Error(),
		)
		httputil.WriteError(w, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list security events"))
		return
	}
	httputil.WriteJSON(w, http.StatusOK, page)
}

func (h *Handler) handlePurge(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	req, err := parsePurgeRequest(r)
	if err == nil {
		err = validation.Struct(req)
	}
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	deleted, err := h.store.Purge(ctx, req.OlderThanDays)
	if err != nil {
		if dErrors.HasCode(err, dErrors.CodeBadRequest) {
			httputil.WriteError(w, err)
			return
		}
		h.logger.ErrorContext(ctx, "failed to purge security events",
			"request_id", requestID,
			"error", err.Error(),
		)
		httputil.WriteError(w, dErrors.Wrap(err, dErrors.CodeInternal, "failed to purge security events"))
		return
	}

	h.logger.InfoContext(ctx, "security events purged",
		"request_id", requestID,
		"deleted", deleted,
		"actor_id", requestcontext.ActorID(ctx),
		"ip", privacy.AnonymizeIP(requestcontext.ClientIP(ctx)),
	)
	httputil.WriteJSON(w, http.StatusOK, purgeResponse{DeletedCount: deleted})
}

func parseListRequest(r *http.Request) (listRequest, error) {
	query := r.URL.Query()
	req := listRequest{ActorKind: strings.TrimSpace(query.Get("actorKind"))}
	for _, raw := range query["eventType"] {
		for _, t := range strings.Split(raw, ",") {
			if t = strings.TrimSpace(t); t != "" {
				req.EventTypes = append(req.EventTypes, t)
			}
		}
	}

	var err error
	if req.Page, err = optionalInt(query.Get("page"), "page"); err != nil {
		return req, err
	}
	if req.Limit, err = optionalInt(query.Get("limit"), "limit"); err != nil {
		return req, err
	}
	return req, nil
}

func parsePurgeRequest(r *http.Request) (purgeRequest, error) {
	raw := strings.TrimSpace(r.URL.Query().Get("olderThanDays"))
	if raw == "" {
		return purgeRequest{}, nil
	}
	days, err := strconv.Atoi(raw)
	if err != nil {
		return purgeRequest{}, dErrors.New(dErrors.CodeBadRequest, "olderThanDays must be an integer")
	}
	return purgeRequest{OlderThanDays: &days}, nil
}

func optionalInt(raw, name string) (int, error) {
	if raw == "" {
		return 0, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, dErrors.New(dErrors.CodeBadRequest, name+" must be an integer")
	}
	return v, nil
}

func describePurge(x *eventlog.Exchange) string {
	if days := x.Request.URL.Query().Get("olderThanDays"); days != "" {
		return "Security events older than " + days + " days purged"
	}
	return "All security events purged"
}
