package auth

import (
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/suite"

	"adminconsole/pkg/requestcontext"
)

type stubValidator struct {
	claims *JWTClaims
	err    error
}

func (v stubValidator) ValidateToken(string) (*JWTClaims, error) {
	return v.claims, v.err
}

type AuthMiddlewareSuite struct {
	suite.Suite
	logger *slog.Logger
}

func TestAuthMiddlewareSuite(t *testing.T) {
	suite.Run(t, new(AuthMiddlewareSuite))
}

func (s *AuthMiddlewareSuite) SetupTest() {
	s.logger = slog.New(slog.NewTextHandler(io.Discard, nil))
}

func (s *AuthMiddlewareSuite) serve(mw func(http.Handler) http.Handler, header string) (*httptest.ResponseRecorder, *http.Request) {
	var seen *http.Request
	h := mw(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = r
		w.WriteHeader(http.StatusOK)
	}))
	req := httptest.NewRequest(http.MethodGet, "/api/admin/users", nil)
	if header != "" {
		req.Header.Set("Authorization", header)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec, seen
}

func (s *AuthMiddlewareSuite) TestAuthenticate() {
	s.Run("admin token attaches admin identity only", func() {
		v := stubValidator{claims: &JWTClaims{Subject: "a-1", Kind: KindAdmin, Role: "superadmin"}}
		rec, seen := s.serve(Authenticate(v, s.logger), "Bearer token")
		s.Equal(http.StatusOK, rec.Code)

		admin, ok := requestcontext.Admin(seen.Context())
		s.True(ok)
		s.Equal("superadmin", admin.Role)
		_, hasUser := requestcontext.User(seen.Context())
		s.False(hasUser)
	})

	s.Run("user token attaches user identity only", func() {
		v := stubValidator{claims: &JWTClaims{Subject: "u-1", Kind: KindUser, Role: "user"}}
		_, seen := s.serve(Authenticate(v, s.logger), "Bearer token")

		user, ok := requestcontext.User(seen.Context())
		s.True(ok)
		s.Equal("u-1", user.ID)
		_, hasAdmin := requestcontext.Admin(seen.Context())
		s.False(hasAdmin)
	})

	s.Run("missing token passes through without identity", func() {
		rec, seen := s.serve(Authenticate(stubValidator{}, s.logger), "")
		s.Equal(http.StatusOK, rec.Code)
		s.Equal("", requestcontext.ActorID(seen.Context()))
	})

	s.Run("invalid token is rejected", func() {
		rec, seen := s.serve(Authenticate(stubValidator{err: errors.New("bad signature")}, s.logger), "Bearer token")
		s.Equal(http.StatusUnauthorized, rec.Code)
		s.Nil(seen)
	})
}

func (s *AuthMiddlewareSuite) TestRequireAuth() {
	rec, seen := s.serve(RequireAuth(stubValidator{}, s.logger), "")
	s.Equal(http.StatusUnauthorized, rec.Code)
	s.Nil(seen)
	s.Contains(rec.Body.String(), "Missing or invalid Authorization header")
}
