// Package domain holds typed identifiers shared across modules.
//
// Identifiers are UUID-backed but distinct types, so an admin id can never be passed
// where an end-user id is expected.
package domain

import (
	"github.com/google/uuid"

	dErrors "adminconsole/pkg/domain-errors"
)

type (
	AdminID uuid.UUID
	UserID  uuid.UUID
	EventID uuid.UUID
)

func parseUUID(kind, s string) (uuid.UUID, error) {
	if s == "" {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, kind+" cannot be empty")
	}
	parsed, err := uuid.Parse(s)
	if err != nil {
		return uuid.Nil, dErrors.Wrap(err, dErrors.CodeInvalidInput, "invalid "+kind)
	}
	if parsed == uuid.Nil {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, kind+" cannot be nil")
	}
	return parsed, nil
}

// ParseAdminID validates an administrator identifier at a trust boundary.
func ParseAdminID(s string) (AdminID, error) {
	u, err := parseUUID("admin id", s)
	return AdminID(u), err
}

// ParseUserID validates an end-user identifier at a trust boundary.
func ParseUserID(s string) (UserID, error) {
	u, err := parseUUID("user id", s)
	return UserID(u), err
}

// ParseEventID validates a security event identifier.
func ParseEventID(s string) (EventID, error) {
	u, err := parseUUID("event id", s)
	return EventID(u), err
}

func NewAdminID() AdminID { return AdminID(uuid.New()) }
func NewEventID() EventID { return EventID(uuid.New()) }

func (id AdminID) String() string { return uuid.UUID(id).String() }
func (id UserID) String() string  { return uuid.UUID(id).String() }
func (id EventID) String() string { return uuid.UUID(id).String() }

func (id AdminID) IsNil() bool { return uuid.UUID(id) == uuid.Nil }
func (id UserID) IsNil() bool  { return uuid.UUID(id) == uuid.Nil }
func (id EventID) IsNil() bool { return uuid.UUID(id) == uuid.Nil }

func (id AdminID) MarshalText() ([]byte, error) { return []byte(id.String()), nil }
func (id EventID) MarshalText() ([]byte, error) { return []byte(id.String()), nil }

func (id *AdminID) UnmarshalText(b []byte) error {
	parsed, err := ParseAdminID(string(b))
	if err != nil {
		return err
	}
	*id = parsed
	return nil
}

func (id *EventID) UnmarshalText(b []byte) error {
	parsed, err := ParseEventID(string(b))
	if err != nil {
		return err
	}
	*id = parsed
	return nil
}
