package admin_test

//go:generate mockgen -source=store.go -destination=mocks/mocks.go -package=mocks PrincipalFinder,Store

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/suite"
	"go.uber.org/mock/gomock"

	"adminconsole/internal/admin"
	"adminconsole/internal/admin/mocks"
	"adminconsole/internal/platform/metrics"
	id "adminconsole/pkg/domain"
	dErrors "adminconsole/pkg/domain-errors"
	"adminconsole/pkg/requestcontext"
	tu "adminconsole/pkg/testutil"
)

type GateSuite struct {
	suite.Suite
	store   *admin.InMemoryStore
	metrics *metrics.Metrics
	gate    *admin.Gate
}

func TestGateSuite(t *testing.T) {
	suite.Run(t, new(GateSuite))
}

func (s *GateSuite) SetupTest() {
	s.store = admin.NewInMemoryStore()
	s.metrics = metrics.New(prometheus.NewRegistry())
	s.gate = s.newGate(s.store)
}

func (s *GateSuite) newGate(finder admin.PrincipalFinder) *admin.Gate {
	return admin.NewGate(finder,
		admin.WithGateLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
		admin.WithGateMetrics(s.metrics),
	)
}

func (s *GateSuite) seed(role admin.Role, status admin.Status) *admin.Principal {
	p := &admin.Principal{
		ID:        id.NewAdminID(),
		Email:     string(role) + "-" + string(status) + "@example.com",
		Role:      role,
		Status:    status,
		CreatedAt: time.Now(),
		UpdatedAt: time.Now(),
	}
	s.Require().NoError(s.store.Create(context.Background(), p))
	return p
}

// serve runs mw and reports whether the downstream handler ran, plus the
// principal it saw.
func (s *GateSuite) serve(mw func(http.Handler) http.Handler, req *http.Request) (*httptest.ResponseRecorder, bool, *admin.Principal) {
	var (
		called bool
		seen   *admin.Principal
	)
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
		seen, _ = admin.PrincipalFromContext(r.Context())
		w.WriteHeader(http.StatusNoContent)
	})
	rr := httptest.NewRecorder()
	mw(next).ServeHTTP(rr, req)
	return rr, called, seen
}

func (s *GateSuite) TestUnauthenticated() {
	s.Run("no identity attached", func() {
		rr, called, _ := s.serve(s.gate.RequireAdmin, httptest.NewRequest(http.MethodGet, "/api/admin/users", nil))
		s.False(called)
		tu.AssertError(s.T(), rr, dErrors.CodeUnauthorized)
	})

	s.Run("malformed identifier", func() {
		req := tu.WithAdmin(httptest.NewRequest(http.MethodGet, "/", nil), "not-a-uuid", "admin")
		rr, called, _ := s.serve(s.gate.RequireAdmin, req)
		s.False(called)
		s.Equal(http.StatusUnauthorized, rr.Code)
	})

	s.Run("identifier without a principal", func() {
		req := tu.WithAdmin(httptest.NewRequest(http.MethodGet, "/", nil), id.NewAdminID().String(), "superadmin")
		rr, called, _ := s.serve(s.gate.RequireSuperAdmin, req)
		s.False(called)
		s.Equal(http.StatusUnauthorized, rr.Code)
	})

	s.Run("end-user identity only", func() {
		req := tu.WithUser(httptest.NewRequest(http.MethodGet, "/", nil), id.NewAdminID().String(), "superadmin")
		rr, called, _ := s.serve(s.gate.RequireAdmin, req)
		s.False(called)
		s.Equal(http.StatusUnauthorized, rr.Code)
	})

	s.Equal(4.0, testutil.ToFloat64(s.metrics.GateDenied.WithLabelValues("unauthenticated")))
}

func (s *GateSuite) TestRoleLevels() {
	adminP := s.seed(admin.RoleAdmin, admin.StatusActive)
	superP := s.seed(admin.RoleSuperAdmin, admin.StatusActive)

	tests := []struct {
		name       string
		principal  *admin.Principal
		mw         func(http.Handler) http.Handler
		wantStatus int
	}{
		{"admin on admin route", adminP, s.gate.RequireAdmin, http.StatusNoContent},
		{"superadmin on admin route", superP, s.gate.RequireAdmin, http.StatusNoContent},
		{"superadmin on superadmin route", superP, s.gate.RequireSuperAdmin, http.StatusNoContent},
		{"admin on superadmin route", adminP, s.gate.RequireSuperAdmin, http.StatusForbidden},
	}
	for _, tt := range tests {
		s.Run(tt.name, func() {
			req := tu.WithAdmin(httptest.NewRequest(http.MethodGet, "/", nil), tt.principal.ID.String(), "")
			rr, called, seen := s.serve(tt.mw, req)
			s.Equal(tt.wantStatus, rr.Code)
			if tt.wantStatus == http.StatusForbidden {
				s.False(called)
				body := tu.DecodeError(s.T(), rr)
				s.Equal("insufficient privileges", body.Description)
				return
			}
			s.True(called)
			s.Require().NotNil(seen)
			s.Equal(tt.principal.ID, seen.ID)
		})
	}
}

func (s *GateSuite) TestInactivePrincipalIsForbiddenRegardlessOfRole() {
	for _, status := range []admin.Status{admin.StatusSuspended, admin.StatusDisabled} {
		for _, role := range []admin.Role{admin.RoleAdmin, admin.RoleSuperAdmin} {
			p := s.seed(role, status)
			req := tu.WithAdmin(httptest.NewRequest(http.MethodGet, "/", nil), p.ID.String(), string(role))

			rr, called, _ := s.serve(s.gate.RequireAdmin, req)
			s.False(called)
			s.Equal(http.StatusForbidden, rr.Code)
			body := tu.DecodeError(s.T(), rr)
			s.Equal("account is inactive", body.Description)
		}
	}
	s.Equal(4.0, testutil.ToFloat64(s.metrics.GateDenied.WithLabelValues("inactive")))
}

func (s *GateSuite) TestRefreshesRoleInContext() {
	p := s.seed(admin.RoleSuperAdmin, admin.StatusActive)
	req := tu.WithAdmin(httptest.NewRequest(http.MethodGet, "/", nil), p.ID.String(), "admin")

	var identity requestcontext.AdminIdentity
	next := http.HandlerFunc(func(_ http.ResponseWriter, r *http.Request) {
		identity, _ = requestcontext.Admin(r.Context())
	})
	s.gate.RequireSuperAdmin(next).ServeHTTP(httptest.NewRecorder(), req)

	s.Equal("superadmin", identity.Role)
	s.Equal(p.Email, identity.Email)
}

func (s *GateSuite) TestLookupFailureIsInternalWithDetail() {
	ctrl := gomock.NewController(s.T())
	finder := mocks.NewMockPrincipalFinder(ctrl)
	finder.EXPECT().
		FindByID(gomock.Any(), gomock.Any()).
		Return(nil, errors.New("connection refused"))

	gate := s.newGate(finder)
	req := tu.WithAdmin(httptest.NewRequest(http.MethodGet, "/", nil), id.NewAdminID().String(), "admin")
	rr, called, _ := s.serve(gate.RequireAdmin, req)

	s.False(called)
	s.Equal(http.StatusInternalServerError, rr.Code)
	body := tu.DecodeError(s.T(), rr)
	s.Equal("internal_error", body.Error)
	s.Contains(body.Description, "connection refused")
	s.Equal(1.0, testutil.ToFloat64(s.metrics.GateDenied.WithLabelValues("lookup_failed")))
}
