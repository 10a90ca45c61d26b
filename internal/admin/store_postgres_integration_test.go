//go:build integration

package admin_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"adminconsole/internal/admin"
	id "adminconsole/pkg/domain"
	"adminconsole/pkg/platform/sentinel"
	"adminconsole/pkg/testutil/containers"
)

type PostgresStoreSuite struct {
	suite.Suite
	postgres *containers.PostgresContainer
	store    *admin.PostgresStore
}

func TestPostgresStoreSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(PostgresStoreSuite))
}

func (s *PostgresStoreSuite) SetupSuite() {
	s.postgres = containers.NewPostgresContainer(s.T())
	s.store = admin.NewPostgresStore(s.postgres.DB)
	s.Require().NoError(s.store.EnsureSchema(context.Background()))
	s.Require().NoError(s.store.EnsureSchema(context.Background()), "schema is idempotent")
}

func (s *PostgresStoreSuite) SetupTest() {
	s.Require().NoError(s.postgres.TruncateTables(context.Background(), "admin_principals"))
}

func (s *PostgresStoreSuite) principal(email string) *admin.Principal {
	now := time.Now().UTC().Truncate(time.Millisecond)
	return &admin.Principal{
		ID:           id.NewAdminID(),
		Email:        email,
		Role:         admin.RoleSuperAdmin,
		Status:       admin.StatusActive,
		PasswordHash: []byte("$2a$10$hash"),
		CreatedAt:    now,
		UpdatedAt:    now,
	}
}

func (s *PostgresStoreSuite) TestRoundTrip() {
	ctx := context.Background()
	p := s.principal("root@example.com")
	s.Require().NoError(s.store.Create(ctx, p))

	got, err := s.store.FindByID(ctx, p.ID)
	s.Require().NoError(err)
	s.Equal(p.ID, got.ID)
	s.Equal(admin.RoleSuperAdmin, got.Role)
	s.Equal(p.PasswordHash, got.PasswordHash)
	s.WithinDuration(p.CreatedAt, got.CreatedAt, time.Millisecond)

	byEmail, err := s.store.FindByEmail(ctx, "ROOT@example.com")
	s.Require().NoError(err)
	s.Equal(p.ID, byEmail.ID)
}

func (s *PostgresStoreSuite) TestDuplicateEmailConflicts() {
	ctx := context.Background()
	s.Require().NoError(s.store.Create(ctx, s.principal("dup@example.com")))
	s.ErrorIs(s.store.Create(ctx, s.principal("DUP@example.com")), sentinel.ErrConflict)
}

func (s *PostgresStoreSuite) TestUpdateStatusAndCount() {
	ctx := context.Background()
	p := s.principal("ops@example.com")
	s.Require().NoError(s.store.Create(ctx, p))

	s.Require().NoError(s.store.UpdateStatus(ctx, p.ID, admin.StatusDisabled))
	got, err := s.store.FindByID(ctx, p.ID)
	s.Require().NoError(err)
	s.Equal(admin.StatusDisabled, got.Status)

	s.ErrorIs(s.store.UpdateStatus(ctx, id.NewAdminID(), admin.StatusActive), sentinel.ErrNotFound)

	n, err := s.store.Count(ctx)
	s.Require().NoError(err)
	s.Equal(1, n)

	list, err := s.store.List(ctx)
	s.Require().NoError(err)
	s.Len(list, 1)
}

func (s *PostgresStoreSuite) TestMissingPrincipal() {
	_, err := s.store.FindByID(context.Background(), id.NewAdminID())
	s.ErrorIs(err, sentinel.ErrNotFound)
}

func (s *PostgresStoreSuite) TestUpdateStatusMany() {
	ctx := context.Background()
	a := s.principal("a@example.com")
	b := s.principal("b@example.com")
	s.Require().NoError(s.store.Create(ctx, a))
	s.Require().NoError(s.store.Create(ctx, b))

	n, err := s.store.UpdateStatusMany(ctx, []id.AdminID{a.ID, b.ID, id.NewAdminID()}, admin.StatusSuspended)
	s.Require().NoError(err)
	s.Equal(2, n)

	got, err := s.store.FindByID(ctx, b.ID)
	s.Require().NoError(err)
	s.Equal(admin.StatusSuspended, got.Status)
}
