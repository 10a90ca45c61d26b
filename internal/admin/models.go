// Package admin owns administrator principals: their storage, the role gate that
// protects admin routes, and the console's account management endpoints.
package admin

import (
	"time"

	id "adminconsole/pkg/domain"
)

// Role is an administrative role.
type Role string

const (
	RoleAdmin      Role = "admin"
	RoleSuperAdmin Role = "superadmin"
)

// Satisfies reports whether r meets the required role level.
func (r Role) Satisfies(required Role) bool {
	switch required {
	case RoleAdmin:
		return r == RoleAdmin || r == RoleSuperAdmin
	case RoleSuperAdmin:
		return r == RoleSuperAdmin
	default:
		return false
	}
}

// Status is an account status. Only StatusActive may pass the role gate.
type Status string

const (
	StatusActive    Status = "active"
	StatusSuspended Status = "suspended"
	StatusDisabled  Status = "disabled"
)

// Principal is an administrator account.
type Principal struct {
	ID           id.AdminID
	Email        string
	Role         Role
	Status       Status
	PasswordHash []byte
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

func (p *Principal) IsActive() bool {
	return p.Status == StatusActive
}
