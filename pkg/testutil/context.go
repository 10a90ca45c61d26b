package testutil

import (
	"net/http"

	"adminconsole/pkg/requestcontext"
)

// WithAdmin attaches an administrator identity to the request context.
// This simulates what the auth middleware does for an admin bearer token.
func WithAdmin(req *http.Request, adminID, role string) *http.Request {
	ctx := requestcontext.WithAdmin(req.Context(), requestcontext.AdminIdentity{ID: adminID, Role: role})
	return req.WithContext(ctx)
}

// WithUser attaches an end-user identity to the request context.
func WithUser(req *http.Request, userID, role string) *http.Request {
	ctx := requestcontext.WithUser(req.Context(), requestcontext.UserIdentity{ID: userID, Role: role})
	return req.WithContext(ctx)
}

// WithClient sets the caller IP and user agent the metadata middleware would extract.
func WithClient(req *http.Request, ip, userAgent string) *http.Request {
	ctx := requestcontext.WithClientMetadata(req.Context(), ip, userAgent)
	return req.WithContext(ctx)
}
