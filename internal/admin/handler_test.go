package admin_test

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"sync"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/suite"

	"adminconsole/internal/admin"
	jwttoken "adminconsole/internal/jwt_token"
	"adminconsole/internal/securitylog"
	"adminconsole/internal/securitylog/eventlog"
	id "adminconsole/pkg/domain"
	dErrors "adminconsole/pkg/domain-errors"
	tu "adminconsole/pkg/testutil"
)

type captureRecorder struct {
	mu     sync.Mutex
	events []*securitylog.Event
}

func (c *captureRecorder) Record(event *securitylog.Event) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.events = append(c.events, event)
	return nil
}

func (c *captureRecorder) ofType(t securitylog.EventType) []*securitylog.Event {
	c.mu.Lock()
	defer c.mu.Unlock()
	var out []*securitylog.Event
	for _, e := range c.events {
		if e.EventType == t {
			out = append(out, e)
		}
	}
	return out
}

type HandlerSuite struct {
	suite.Suite
	store    *admin.InMemoryStore
	service  *admin.Service
	settings *admin.SettingsStore
	recorder *captureRecorder
	router   chi.Router

	super *admin.Principal
	ops   *admin.Principal
}

func TestHandlerSuite(t *testing.T) {
	suite.Run(t, new(HandlerSuite))
}

func (s *HandlerSuite) SetupTest() {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	s.store = admin.NewInMemoryStore()
	s.service = admin.NewService(s.store, jwttoken.NewJWTService("k", "console", "console-api"))
	s.settings = admin.NewSettingsStore(admin.DefaultSettings())
	s.recorder = &captureRecorder{}

	events := eventlog.New(s.recorder, logger)
	gate := admin.NewGate(s.store, admin.WithGateLogger(logger))
	h := admin.NewHandler(s.service, s.settings, gate, events, admin.WithHandlerLogger(logger))

	r := chi.NewRouter()
	r.Route("/api", func(r chi.Router) {
		r.Use(events.Middleware(eventlog.PermissionDenied()))
		h.RegisterAuth(r)
		r.Route("/admin", h.RegisterAdmin)
	})
	s.router = r

	var err error
	s.super, err = s.service.Create(context.Background(), "root@example.com", "correct horse", admin.RoleSuperAdmin)
	s.Require().NoError(err)
	s.ops, err = s.service.Create(context.Background(), "ops@example.com", "correct horse", admin.RoleAdmin)
	s.Require().NoError(err)
}

func (s *HandlerSuite) as(p *admin.Principal, req *http.Request) *http.Request {
	return tu.WithClient(tu.WithAdmin(req, p.ID.String(), string(p.Role)), "203.0.113.7", "console-test")
}

func (s *HandlerSuite) TestAdminForbiddenOnSuperAdminRouteButAllowedOnBulk() {
	s.Run("superadmin-only route", func() {
		req := s.as(s.ops, tu.NewJSONRequest(s.T(), http.MethodPatch,
			"/api/admin/users/"+s.super.ID.String()+"/status", map[string]string{"status": "disabled"}))
		rr := tu.DoRequest(s.router, req)
		tu.AssertError(s.T(), rr, dErrors.CodeForbidden)

		denied := s.recorder.ofType(securitylog.EventPermissionDenied)
		s.Require().Len(denied, 1)
		s.Equal(http.StatusForbidden, denied[0].ResponseStatus)
		s.Equal(s.ops.ID.String(), denied[0].AdminID)
	})

	s.Run("admin-or-above bulk route", func() {
		ids := []string{id.NewAdminID().String(), id.NewAdminID().String(), id.NewAdminID().String()}
		req := s.as(s.ops, tu.NewJSONRequest(s.T(), http.MethodPost,
			"/api/admin/users/bulk-status", map[string]any{"userIds": ids, "status": "suspended"}))
		rr := tu.DoRequest(s.router, req)
		tu.RequireStatus(s.T(), rr, http.StatusOK)

		bulk := s.recorder.ofType(securitylog.EventBulkOperation)
		s.Require().Len(bulk, 1)
		s.Equal(len(ids), bulk[0].Metadata["itemCount"])
		s.Equal("bulk_post", bulk[0].Action)
		s.Equal(securitylog.ActorAdmin, bulk[0].ActorKind)
	})
}

func (s *HandlerSuite) TestLogin() {
	s.Run("success records a login success event", func() {
		req := tu.NewJSONRequest(s.T(), http.MethodPost, "/api/auth/login",
			map[string]string{"email": "root@example.com", "password": "correct horse"})
		rr := tu.DoRequest(s.router, req)
		tu.RequireStatus(s.T(), rr, http.StatusOK)
		s.Contains(tu.JSONFields(s.T(), rr), "access_token")

		s.Len(s.recorder.ofType(securitylog.EventLoginSuccess), 1)
		s.Empty(s.recorder.ofType(securitylog.EventLoginFailure))
	})

	s.Run("bad password records a login failure without the password", func() {
		req := tu.NewJSONRequest(s.T(), http.MethodPost, "/api/auth/login",
			map[string]string{"email": "root@example.com", "password": "guess"})
		rr := tu.DoRequest(s.router, req)
		tu.AssertError(s.T(), rr, dErrors.CodeUnauthorized)

		failures := s.recorder.ofType(securitylog.EventLoginFailure)
		s.Require().Len(failures, 1)
		s.Equal("Failed login attempt for root@example.com", failures[0].Description)
		s.NotContains(failures[0].RequestData, "body")
	})
}

func (s *HandlerSuite) TestListAndGet() {
	rr := tu.DoRequest(s.router, s.as(s.ops, tu.NewRequest(s.T(), http.MethodGet, "/api/admin/users")))
	tu.RequireStatus(s.T(), rr, http.StatusOK)
	list := tu.DecodeJSON[admin.PrincipalsListResponse](s.T(), rr)
	s.Equal(2, list.Total)

	rr = tu.DoRequest(s.router, s.as(s.ops, tu.NewRequest(s.T(), http.MethodGet, "/api/admin/users/"+s.super.ID.String())))
	tu.RequireStatus(s.T(), rr, http.StatusOK)
	s.NotContains(rr.Body.String(), "PasswordHash")

	gdpr := s.recorder.ofType(securitylog.EventDataAccess)
	s.Require().Len(gdpr, 2)
	s.Equal("admin_user_"+s.super.ID.String(), gdpr[1].Resource)
	s.Equal(true, gdpr[1].Metadata["gdprRelevant"])
}

func (s *HandlerSuite) TestExport() {
	rr := tu.DoRequest(s.router, s.as(s.ops, tu.NewRequest(s.T(), http.MethodGet, "/api/admin/users/export?format=csv")))
	tu.RequireStatus(s.T(), rr, http.StatusOK)
	s.Equal("csv", tu.JSONFields(s.T(), rr)["format"])

	exports := s.recorder.ofType(securitylog.EventExportData)
	s.Require().Len(exports, 1)
	s.Equal("csv", exports[0].Metadata["format"])
	s.Equal("admin_users", exports[0].Metadata["exportType"])

	rr = tu.DoRequest(s.router, s.as(s.ops, tu.NewRequest(s.T(), http.MethodGet, "/api/admin/users/export?format=pdf")))
	s.Equal(http.StatusBadRequest, rr.Code)
}

func (s *HandlerSuite) TestSetStatusAsSuperAdmin() {
	req := s.as(s.super, tu.NewJSONRequest(s.T(), http.MethodPatch,
		"/api/admin/users/"+s.ops.ID.String()+"/status", map[string]string{"status": "suspended"}))
	rr := tu.DoRequest(s.router, req)
	tu.RequireStatus(s.T(), rr, http.StatusOK)
	s.Equal("suspended", tu.JSONFields(s.T(), rr)["status"])

	mods := s.recorder.ofType(securitylog.EventDataModification)
	s.Require().Len(mods, 1)
	s.Equal("update_status", mods[0].Action)
	s.NotContains(mods[0].RequestData, "body")

	s.Run("suspended admin is now rejected as inactive", func() {
		rr := tu.DoRequest(s.router, s.as(s.ops, tu.NewRequest(s.T(), http.MethodGet, "/api/admin/users")))
		s.Equal(http.StatusForbidden, rr.Code)
		s.Equal("account is inactive", tu.DecodeError(s.T(), rr).Description)
	})
}

func (s *HandlerSuite) TestSettings() {
	body := map[string]any{"maintenanceMode": true, "sessionTimeoutMinutes": 60, "supportEmail": "help@example.com"}

	rr := tu.DoRequest(s.router, s.as(s.ops, tu.NewJSONRequest(s.T(), http.MethodPut, "/api/admin/settings", body)))
	s.Equal(http.StatusForbidden, rr.Code)

	rr = tu.DoRequest(s.router, s.as(s.super, tu.NewJSONRequest(s.T(), http.MethodPut, "/api/admin/settings", body)))
	tu.RequireStatus(s.T(), rr, http.StatusOK)
	s.True(s.settings.Get().MaintenanceMode)
	s.Equal(s.super.ID.String(), s.settings.Get().UpdatedBy)
	s.Len(s.recorder.ofType(securitylog.EventConfigurationChange), 1)

	invalid := map[string]any{"sessionTimeoutMinutes": 1}
	rr = tu.DoRequest(s.router, s.as(s.super, tu.NewJSONRequest(s.T(), http.MethodPut, "/api/admin/settings", invalid)))
	s.Equal(http.StatusBadRequest, rr.Code)

	rr = tu.DoRequest(s.router, s.as(s.ops, tu.NewRequest(s.T(), http.MethodGet, "/api/admin/settings")))
	tu.RequireStatus(s.T(), rr, http.StatusOK)
	s.Equal(true, tu.JSONFields(s.T(), rr)["maintenanceMode"])
}
