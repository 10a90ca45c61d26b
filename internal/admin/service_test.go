package admin

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	jwttoken "adminconsole/internal/jwt_token"
	id "adminconsole/pkg/domain"
	dErrors "adminconsole/pkg/domain-errors"
)

type failingIssuer struct{}

func (failingIssuer) GenerateAccessToken(jwttoken.TokenRequest, time.Duration) (string, error) {
	return "", errors.New("signing key unavailable")
}

type ServiceSuite struct {
	suite.Suite
	store   *InMemoryStore
	jwt     *jwttoken.JWTService
	service *Service
	ctx     context.Context
}

func TestServiceSuite(t *testing.T) {
	suite.Run(t, new(ServiceSuite))
}

func (s *ServiceSuite) SetupTest() {
	s.store = NewInMemoryStore()
	s.jwt = jwttoken.NewJWTService("test-signing-key", "console", "console-api")
	s.service = NewService(s.store, s.jwt, WithTokenTTL(time.Hour))
	s.ctx = context.Background()
}

func (s *ServiceSuite) create(email string, role Role) *Principal {
	p, err := s.service.Create(s.ctx, email, "correct horse", role)
	s.Require().NoError(err)
	return p
}

func (s *ServiceSuite) TestLogin() {
	p := s.create("root@example.com", RoleSuperAdmin)

	s.Run("valid credentials issue an admin token", func() {
		res, err := s.service.Login(s.ctx, " root@example.com ", "correct horse")
		s.Require().NoError(err)
		s.Equal(time.Hour, res.ExpiresIn)

		claims, err := s.jwt.ValidateToken(res.AccessToken)
		s.Require().NoError(err)
		s.Equal(p.ID.String(), claims.Subject)
		s.Equal("admin", claims.Kind)
		s.Equal("superadmin", claims.Role)
	})

	s.Run("wrong password", func() {
		_, err := s.service.Login(s.ctx, "root@example.com", "wrong")
		s.True(dErrors.HasCode(err, dErrors.CodeUnauthorized))
	})

	s.Run("unknown email gets the same error", func() {
		_, err := s.service.Login(s.ctx, "nobody@example.com", "correct horse")
		s.True(dErrors.HasCode(err, dErrors.CodeUnauthorized))
		s.Equal(dErrors.MessageOf(errInvalidCredentials), dErrors.MessageOf(err))
	})

	s.Run("inactive account", func() {
		s.Require().NoError(s.store.UpdateStatus(s.ctx, p.ID, StatusSuspended))
		_, err := s.service.Login(s.ctx, "root@example.com", "correct horse")
		s.True(dErrors.HasCode(err, dErrors.CodeForbidden))
	})
}

func (s *ServiceSuite) TestLoginTokenFailureIsInternal() {
	s.create("root@example.com", RoleAdmin)
	svc := NewService(s.store, failingIssuer{})
	_, err := svc.Login(s.ctx, "root@example.com", "correct horse")
	s.Equal(dErrors.CodeInternal, dErrors.CodeOf(err))
}

func (s *ServiceSuite) TestGet() {
	p := s.create("ops@example.com", RoleAdmin)

	got, err := s.service.Get(s.ctx, p.ID.String())
	s.Require().NoError(err)
	s.Equal(p.Email, got.Email)

	_, err = s.service.Get(s.ctx, "nope")
	s.True(dErrors.HasCode(err, dErrors.CodeBadRequest))

	_, err = s.service.Get(s.ctx, id.NewAdminID().String())
	s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
}

func (s *ServiceSuite) TestSetStatus() {
	actor := s.create("root@example.com", RoleSuperAdmin)
	target := s.create("ops@example.com", RoleAdmin)

	updated, err := s.service.SetStatus(s.ctx, actor.ID, target.ID.String(), StatusDisabled)
	s.Require().NoError(err)
	s.Equal(StatusDisabled, updated.Status)

	_, err = s.service.SetStatus(s.ctx, actor.ID, actor.ID.String(), StatusDisabled)
	s.True(dErrors.HasCode(err, dErrors.CodeBadRequest))

	_, err = s.service.SetStatus(s.ctx, actor.ID, id.NewAdminID().String(), StatusDisabled)
	s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
}

func (s *ServiceSuite) TestBulkSetStatus() {
	actor := s.create("root@example.com", RoleSuperAdmin)
	a := s.create("a@example.com", RoleAdmin)
	b := s.create("b@example.com", RoleAdmin)

	s.Run("unknown ids are skipped", func() {
		n, err := s.service.BulkSetStatus(s.ctx, actor.ID,
			[]string{a.ID.String(), b.ID.String(), id.NewAdminID().String()}, StatusSuspended)
		s.Require().NoError(err)
		s.Equal(2, n)
	})

	s.Run("duplicate ids count once", func() {
		n, err := s.service.BulkSetStatus(s.ctx, actor.ID, []string{a.ID.String(), " " + a.ID.String()}, StatusSuspended)
		s.Require().NoError(err)
		s.Equal(1, n)
	})

	s.Run("the caller cannot be included", func() {
		_, err := s.service.BulkSetStatus(s.ctx, actor.ID, []string{a.ID.String(), actor.ID.String()}, StatusActive)
		s.True(dErrors.HasCode(err, dErrors.CodeBadRequest))

		got, err := s.store.FindByID(s.ctx, a.ID)
		s.Require().NoError(err)
		s.Equal(StatusSuspended, got.Status, "nothing is applied when validation fails")
	})
}

func (s *ServiceSuite) TestBootstrap() {
	created, err := s.service.Bootstrap(s.ctx, "root@example.com", "correct horse")
	s.Require().NoError(err)
	s.True(created)

	p, err := s.store.FindByEmail(s.ctx, "root@example.com")
	s.Require().NoError(err)
	s.Equal(RoleSuperAdmin, p.Role)
	s.NotEqual([]byte("correct horse"), p.PasswordHash)

	created, err = s.service.Bootstrap(s.ctx, "other@example.com", "x")
	s.Require().NoError(err)
	s.False(created)
}

func (s *ServiceSuite) TestCreateDuplicate() {
	s.create("ops@example.com", RoleAdmin)
	_, err := s.service.Create(s.ctx, "ops@example.com", "x", RoleAdmin)
	s.True(dErrors.HasCode(err, dErrors.CodeConflict))
}
