package admin

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/lib/pq"

	id "adminconsole/pkg/domain"
	"adminconsole/pkg/platform/sentinel"
)

// Schema creates the admin_principals table.
const Schema = `
CREATE TABLE IF NOT EXISTS admin_principals (
	id            UUID PRIMARY KEY,
	email         TEXT NOT NULL,
	role          TEXT NOT NULL,
	status        TEXT NOT NULL,
	password_hash BYTEA NOT NULL,
	created_at    TIMESTAMPTZ NOT NULL,
	updated_at    TIMESTAMPTZ NOT NULL
);
CREATE UNIQUE INDEX IF NOT EXISTS admin_principals_email_idx ON admin_principals (LOWER(email));
`

const uniqueViolation = "23505"

// PostgresStore persists principals in PostgreSQL.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// EnsureSchema applies Schema. It is idempotent.
func (s *PostgresStore) EnsureSchema(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, Schema); err != nil {
		return fmt.Errorf("apply admin_principals schema: %w", err)
	}
	return nil
}

const selectPrincipal = `SELECT id, email, role, status, password_hash, created_at, updated_at FROM admin_principals`

func (s *PostgresStore) FindByID(ctx context.Context, adminID id.AdminID) (*Principal, error) {
	row := s.db.QueryRowContext(ctx, selectPrincipal+` WHERE id = $1`, uuid.UUID(adminID))
	return scanPrincipal(row)
}

func (s *PostgresStore) FindByEmail(ctx context.Context, email string) (*Principal, error) {
	row := s.db.QueryRowContext(ctx, selectPrincipal+` WHERE LOWER(email) = LOWER($1)`, email)
	return scanPrincipal(row)
}

func (s *PostgresStore) List(ctx context.Context) ([]*Principal, error) {
	rows, err := s.db.QueryContext(ctx, selectPrincipal+` ORDER BY email`)
	if err != nil {
		return nil, fmt.Errorf("list principals: %w", err)
	}
	defer rows.Close()

	var out []*Principal
	for rows.Next() {
		p, err := scanPrincipal(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate principals: %w", err)
	}
	return out, nil
}

func (s *PostgresStore) Create(ctx context.Context, p *Principal) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO admin_principals (id, email, role, status, password_hash, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, uuid.UUID(p.ID), p.Email, string(p.Role), string(p.Status), p.PasswordHash, p.CreatedAt, p.UpdatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return sentinel.ErrConflict
		}
		return fmt.Errorf("insert principal: %w", err)
	}
	return nil
}

func (s *PostgresStore) UpdateStatus(ctx context.Context, adminID id.AdminID, status Status) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE admin_principals SET status = $2, updated_at = $3 WHERE id = $1`,
		uuid.UUID(adminID), string(status), time.Now(),
	)
	if err != nil {
		return fmt.Errorf("update principal status: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update principal status: %w", err)
	}
	if affected == 0 {
		return sentinel.ErrNotFound
	}
	return nil
}

func (s *PostgresStore) UpdateStatusMany(ctx context.Context, adminIDs []id.AdminID, status Status) (int, error) {
	raw := make([]string, 0, len(adminIDs))
	for _, adminID := range adminIDs {
		raw = append(raw, adminID.String())
	}
	res, err := s.db.ExecContext(ctx,
		`UPDATE admin_principals SET status = $1, updated_at = $2 WHERE id = ANY($3::uuid[])`,
		string(status), time.Now(), pq.Array(raw),
	)
	if err != nil {
		return 0, fmt.Errorf("update principal statuses: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("update principal statuses: %w", err)
	}
	return int(affected), nil
}

func (s *PostgresStore) Count(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM admin_principals`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count principals: %w", err)
	}
	return n, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanPrincipal(row rowScanner) (*Principal, error) {
	var (
		p      Principal
		rawID  uuid.UUID
		role   string
		status string
	)
	err := row.Scan(&rawID, &p.Email, &role, &status, &p.PasswordHash, &p.CreatedAt, &p.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, sentinel.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan principal: %w", err)
	}
	p.ID = id.AdminID(rawID)
	p.Role = Role(role)
	p.Status = Status(status)
	return &p, nil
}
