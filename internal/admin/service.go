package admin

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"golang.org/x/crypto/bcrypt"

	jwttoken "adminconsole/internal/jwt_token"
	id "adminconsole/pkg/domain"
	dErrors "adminconsole/pkg/domain-errors"
	authmw "adminconsole/pkg/platform/middleware/auth"
	"adminconsole/pkg/platform/sentinel"
	liststrings "adminconsole/pkg/platform/strings"
)

// TokenIssuer signs access tokens for authenticated principals.
type TokenIssuer interface {
	GenerateAccessToken(req jwttoken.TokenRequest, expiresIn time.Duration) (string, error)
}

// Service holds the account management rules. It knows nothing about HTTP.
type Service struct {
	store    Store
	tokens   TokenIssuer
	tokenTTL time.Duration
	logger   *slog.Logger
	now      func() time.Time
}

type ServiceOption func(*Service)

func WithServiceLogger(logger *slog.Logger) ServiceOption {
	return func(s *Service) { s.logger = logger }
}

func WithTokenTTL(ttl time.Duration) ServiceOption {
	return func(s *Service) { s.tokenTTL = ttl }
}

func NewService(store Store, tokens TokenIssuer, opts ...ServiceOption) *Service {
	s := &Service{
		store:    store,
		tokens:   tokens,
		tokenTTL: 8 * time.Hour,
		logger:   slog.Default(),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// dummyHash keeps login timing uniform when the email is unknown.
var dummyHash, _ = bcrypt.GenerateFromPassword([]byte("not-a-real-password"), bcrypt.DefaultCost)

var errInvalidCredentials = dErrors.New(dErrors.CodeUnauthorized, "invalid email or password")

// LoginResult carries the issued token and the authenticated principal.
type LoginResult struct {
	AccessToken string
	ExpiresIn   time.Duration
	Principal   *Principal
}

// Login verifies a password and issues an admin access token.
func (s *Service) Login(ctx context.Context, email, password string) (*LoginResult, error) {
	p, err := s.store.FindByEmail(ctx, strings.TrimSpace(email))
	if errors.Is(err, sentinel.ErrNotFound) {
		_ = bcrypt.CompareHashAndPassword(dummyHash, []byte(password))
		return nil, errInvalidCredentials
	}
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load principal")
	}
	if err := bcrypt.CompareHashAndPassword(p.PasswordHash, []byte(password)); err != nil {
		return nil, errInvalidCredentials
	}
	if !p.IsActive() {
		return nil, dErrors.New(dErrors.CodeForbidden, "account is inactive")
	}

	token, err := s.tokens.GenerateAccessToken(jwttoken.TokenRequest{
		Subject: p.ID.String(),
		Kind:    authmw.KindAdmin,
		Role:    string(p.Role),
		Email:   p.Email,
	}, s.tokenTTL)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to issue token")
	}
	return &LoginResult{AccessToken: token, ExpiresIn: s.tokenTTL, Principal: p}, nil
}

func (s *Service) List(ctx context.Context) ([]*Principal, error) {
	principals, err := s.store.List(ctx)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list principals")
	}
	return principals, nil
}

func (s *Service) Get(ctx context.Context, rawID string) (*Principal, error) {
	adminID, err := id.ParseAdminID(rawID)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeBadRequest, "invalid user id")
	}
	p, err := s.store.FindByID(ctx, adminID)
	if errors.Is(err, sentinel.ErrNotFound) {
		return nil, dErrors.New(dErrors.CodeNotFound, "user not found")
	}
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load principal")
	}
	return p, nil
}

// SetStatus changes one account's status. Callers cannot change their own status.
func (s *Service) SetStatus(ctx context.Context, actor id.AdminID, rawID string, status Status) (*Principal, error) {
	target, err := id.ParseAdminID(rawID)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeBadRequest, "invalid user id")
	}
	if target == actor {
		return nil, dErrors.New(dErrors.CodeBadRequest, "cannot change own status")
	}
	if err := s.store.UpdateStatus(ctx, target, status); err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "user not found")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to update status")
	}
	return s.Get(ctx, rawID)
}

// BulkSetStatus applies status to every listed account in one store call.
// Unknown ids are skipped; the result is the number of accounts updated.
func (s *Service) BulkSetStatus(ctx context.Context, actor id.AdminID, rawIDs []string, status Status) (int, error) {
	rawIDs = liststrings.DedupeAndTrim(rawIDs)
	targets := make([]id.AdminID, 0, len(rawIDs))
	for _, raw := range rawIDs {
		target, err := id.ParseAdminID(raw)
		if err != nil {
			return 0, dErrors.Wrap(err, dErrors.CodeBadRequest, "invalid user id")
		}
		if target == actor {
			return 0, dErrors.New(dErrors.CodeBadRequest, "cannot change own status")
		}
		targets = append(targets, target)
	}

	updated, err := s.store.UpdateStatusMany(ctx, targets, status)
	if err != nil {
		return 0, dErrors.Wrap(err, dErrors.CodeInternal, "failed to update status")
	}
	return updated, nil
}

// Bootstrap creates the first superadmin when the store is empty.
// It returns false when accounts already exist.
func (s *Service) Bootstrap(ctx context.Context, email, password string) (bool, error) {
	n, err := s.store.Count(ctx)
	if err != nil {
		return false, fmt.Errorf("count principals: %w", err)
	}
	if n > 0 {
		return false, nil
	}
	if _, err := s.Create(ctx, email, password, RoleSuperAdmin); err != nil {
		return false, err
	}
	s.logger.InfoContext(ctx, "bootstrapped superadmin account", "email", email)
	return true, nil
}

// Create stores a new active principal with a bcrypt password hash.
func (s *Service) Create(ctx context.Context, email, password string, role Role) (*Principal, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}
	now := s.now()
	p := &Principal{
		ID:           id.NewAdminID(),
		Email:        strings.TrimSpace(email),
		Role:         role,
		Status:       StatusActive,
		PasswordHash: hash,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.store.Create(ctx, p); err != nil {
		if errors.Is(err, sentinel.ErrConflict) {
			return nil, dErrors.New(dErrors.CodeConflict, "email already registered")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to create principal")
	}
	return p, nil
}
