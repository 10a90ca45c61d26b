// Package requestcontext provides HTTP-independent context accessors for request-scoped values.
//
// This package defines context keys and getter/setter functions for values that are
// set by middleware but consumed by services and by the security event logger. Keeping
// it free of net/http lets stores and services import it without pulling in transport code.
//
// Usage in middleware (set values):
//
//	ctx = requestcontext.WithAdmin(ctx, requestcontext.AdminIdentity{ID: id, Role: "admin"})
//	ctx = requestcontext.WithRequestID(ctx, requestID)
//
// Usage in services and tests (read or inject values):
//
//	admin, ok := requestcontext.Admin(ctx)
//	now := requestcontext.Now(ctx)
//	ctx = requestcontext.WithTime(ctx, fixedTime)
package requestcontext

import (
	"context"
	"time"
)

type (
	userKey        struct{}
	adminKey       struct{}
	clientIPKey    struct{}
	userAgentKey   struct{}
	requestIDKey   struct{}
	requestTimeKey struct{}
)

// Exported context keys for tests that need context.WithValue directly.
var (
	ContextKeyUser        = userKey{}
	ContextKeyAdmin       = adminKey{}
	ContextKeyClientIP    = clientIPKey{}
	ContextKeyUserAgent   = userAgentKey{}
	ContextKeyRequestID   = requestIDKey{}
	ContextKeyRequestTime = requestTimeKey{}
)

// -----------------------------------------------------------------------------
// Caller identity
// -----------------------------------------------------------------------------

// UserIdentity is an end-user account attached by credential verification.
type UserIdentity struct {
	ID    string
	Role  string
	Email string
}

// AdminIdentity is an administrator account attached by credential verification.
// Role is refreshed by the role gate once the principal has been resolved.
type AdminIdentity struct {
	ID    string
	Role  string
	Email string
}

// User retrieves the end-user identity, if any.
func User(ctx context.Context) (UserIdentity, bool) {
	u, ok := ctx.Value(ContextKeyUser).(UserIdentity)
	return u, ok && u.ID != ""
}

// WithUser injects an end-user identity.
func WithUser(ctx context.Context, user UserIdentity) context.Context {
	return context.WithValue(ctx, ContextKeyUser, user)
}

// Admin retrieves the administrator identity, if any.
func Admin(ctx context.Context) (AdminIdentity, bool) {
	a, ok := ctx.Value(ContextKeyAdmin).(AdminIdentity)
	return a, ok && a.ID != ""
}

// WithAdmin injects an administrator identity.
func WithAdmin(ctx context.Context, admin AdminIdentity) context.Context {
	return context.WithValue(ctx, ContextKeyAdmin, admin)
}

// ActorID returns the administrator id, falling back to the end-user id.
func ActorID(ctx context.Context) string {
	if a, ok := Admin(ctx); ok {
		return a.ID
	}
	if u, ok := User(ctx); ok {
		return u.ID
	}
	return ""
}

// -----------------------------------------------------------------------------
// Client metadata (IP, User-Agent)
// -----------------------------------------------------------------------------

// ClientIP retrieves the client IP address from the context.
func ClientIP(ctx context.Context) string {
	if ip, ok := ctx.Value(ContextKeyClientIP).(string); ok {
		return ip
	}
	return ""
}

// UserAgent retrieves the User-Agent from the context.
func UserAgent(ctx context.Context) string {
	if ua, ok := ctx.Value(ContextKeyUserAgent).(string); ok {
		return ua
	}
	return ""
}

// WithClientMetadata injects client IP and User-Agent into a context.
// Useful for unit tests that don't run the full HTTP middleware chain.
func WithClientMetadata(ctx context.Context, clientIP, userAgent string) context.Context {
	ctx = context.WithValue(ctx, ContextKeyClientIP, clientIP)
	ctx = context.WithValue(ctx, ContextKeyUserAgent, userAgent)
	return ctx
}

// -----------------------------------------------------------------------------
// Request metadata
// -----------------------------------------------------------------------------

// RequestID retrieves the request ID from the context.
func RequestID(ctx context.Context) string {
	if reqID, ok := ctx.Value(ContextKeyRequestID).(string); ok {
		return reqID
	}
	return ""
}

// WithRequestID injects a request ID into the context.
func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, ContextKeyRequestID, requestID)
}

// Now retrieves the request-scoped time from context.
// Falls back to time.Now() if not set (workers, CLI, tests).
func Now(ctx context.Context) time.Time {
	if t, ok := ctx.Value(ContextKeyRequestTime).(time.Time); ok {
		return t
	}
	return time.Now()
}

// StartedAt reports the request start time recorded by the requesttime middleware.
func StartedAt(ctx context.Context) (time.Time, bool) {
	t, ok := ctx.Value(ContextKeyRequestTime).(time.Time)
	return t, ok
}

// WithTime injects a specific time into a context.
func WithTime(ctx context.Context, t time.Time) context.Context {
	return context.WithValue(ctx, ContextKeyRequestTime, t)
}
