package admin

import (
	"context"

	id "adminconsole/pkg/domain"
)

// PrincipalFinder resolves a principal by id. The role gate depends only on this.
type PrincipalFinder interface {
	FindByID(ctx context.Context, adminID id.AdminID) (*Principal, error)
}

// Store persists principals. Lookups return sentinel.ErrNotFound for unknown ids or emails.
type Store interface {
	FindByID(ctx context.Context, adminID id.AdminID) (*Principal, error)
	FindByEmail(ctx context.Context, email string) (*Principal, error)
	List(ctx context.Context) ([]*Principal, error)
	Create(ctx context.Context, p *Principal) error
	UpdateStatus(ctx context.Context, adminID id.AdminID, status Status) error
	// UpdateStatusMany applies status to every known id atomically and returns
	// how many principals were updated. Unknown ids are ignored.
	UpdateStatusMany(ctx context.Context, adminIDs []id.AdminID, status Status) (int, error)
	Count(ctx context.Context) (int, error)
}
