// Package securitylog defines the security event record shared by the event store,
// the event logger middleware and the abuse detector.
package securitylog

import (
	"context"
	"math"
	"time"

	id "adminconsole/pkg/domain"
)

// EventType tags a security event. The set is open: new types may be added freely.
type EventType string

const (
	EventLoginSuccess          EventType = "login_success"
	EventLoginFailure          EventType = "login_failure"
	EventDataAccess            EventType = "data_access"
	EventDataModification      EventType = "data_modification"
	EventExportData            EventType = "export_data"
	EventBulkOperation         EventType = "bulk_operation"
	EventPermissionDenied      EventType = "permission_denied"
	EventSuspiciousActivity    EventType = "suspicious_activity"
	EventSecurityBreachAttempt EventType = "security_breach_attempt"
	EventConfigurationChange   EventType = "system_configuration_change"
	EventAuditLogAccess        EventType = "audit_log_access"
)

func (t EventType) String() string { return string(t) }

// Actor kinds recorded on events. Administrator events carry the administrator's
// role, so "superadmin" is also a valid kind.
const (
	ActorUser       = "user"
	ActorAdmin      = "admin"
	ActorSuperAdmin = "superadmin"
)

// Event is one immutable record of a security-relevant action.
// At most one of UserID and AdminID is populated.
type Event struct {
	ID               id.EventID     `json:"id"`
	EventType        EventType      `json:"eventType"`
	Timestamp        time.Time      `json:"timestamp"`
	IPAddress        string         `json:"ipAddress,omitempty"`
	UserAgent        string         `json:"userAgent,omitempty"`
	UserID           string         `json:"userId,omitempty"`
	AdminID          string         `json:"adminId,omitempty"`
	ActorKind        string         `json:"actorKind,omitempty"`
	Resource         string         `json:"resource,omitempty"`
	Action           string         `json:"action,omitempty"`
	Description      string         `json:"description,omitempty"`
	RequestMethod    string         `json:"requestMethod,omitempty"`
	RequestPath      string         `json:"requestPath,omitempty"`
	RequestData      map[string]any `json:"requestData,omitempty"`
	ResponseStatus   int            `json:"responseStatus,omitempty"`
	ProcessingTimeMs int64          `json:"processingTimeMs"`
	Metadata         map[string]any `json:"metadata,omitempty"`
}

// ActorID returns whichever identity is populated.
func (e *Event) ActorID() string {
	if e.UserID != "" {
		return e.UserID
	}
	return e.AdminID
}

// CountFilter narrows a sliding-window count. Empty fields match everything.
type CountFilter struct {
	IPAddress string
	EventType EventType
}

// Query selects a page of events for the operator log viewer.
type Query struct {
	EventTypes []EventType
	ActorKind  string
	Page       int
	Limit      int
}

const (
	DefaultPageLimit = 20
	MaxPageLimit     = 100
)

// Normalize clamps paging to sane bounds.
func (q Query) Normalize() Query {
	if q.Page < 1 {
		q.Page = 1
	}
	if q.Limit <= 0 {
		q.Limit = DefaultPageLimit
	}
	if q.Limit > MaxPageLimit {
		q.Limit = MaxPageLimit
	}
	return q
}

// Offset returns the number of rows skipped before the requested page. It saturates
// at math.MaxInt rather than overflowing, which reads as a page past the end.
func (q Query) Offset() int {
	if q.Page < 1 || q.Limit < 1 {
		return 0
	}
	if q.Page-1 > math.MaxInt/q.Limit {
		return math.MaxInt
	}
	return (q.Page - 1) * q.Limit
}

// Page is one page of events, newest first.
type Page struct {
	Events []Event `json:"events"`
	Total  int     `json:"total"`
	Page   int     `json:"page"`
	Limit  int     `json:"limit"`
}

// Store persists security events.
type Store interface {
	// Insert assigns the ID and timestamp when they are unset and appends the event.
	Insert(ctx context.Context, event *Event) error
	// Count returns the number of events matching filter with a timestamp after since.
	Count(ctx context.Context, filter CountFilter, since time.Time) (int, error)
	// Purge deletes every event when olderThanDays is nil, otherwise events at least
	// that many days old. Returns the number of deleted events.
	Purge(ctx context.Context, olderThanDays *int) (int64, error)
	List(ctx context.Context, q Query) (Page, error)
}
