// Package auth verifies bearer credentials and attaches the caller identity to the
// request context. Role and status checks happen later in the role gate.
package auth

import (
	"log/slog"
	"net/http"
	"strings"

	"adminconsole/pkg/platform/httputil"
	request "adminconsole/pkg/platform/middleware/request"
	"adminconsole/pkg/requestcontext"
)

// Identity kinds carried in the token.
const (
	KindUser  = "user"
	KindAdmin = "admin"
)

// JWTValidator defines the interface for validating JWT tokens
type JWTValidator interface {
	ValidateToken(tokenString string) (*JWTClaims, error)
}

// JWTClaims represents the claims we expect from the JWT validator
type JWTClaims struct {
	Subject string
	Kind    string
	Role    string
	Email   string
}

func writeUnauthorized(w http.ResponseWriter, desc string) {
	httputil.WriteJSON(w, http.StatusUnauthorized, httputil.ErrorResponse{
		Error:            "unauthorized",
		ErrorDescription: desc,
	})
}

// Authenticate attaches the identity from a valid bearer token. Requests without an
// Authorization header pass through unauthenticated so the role gate can classify them;
// a present but invalid token is rejected.
func Authenticate(validator JWTValidator, logger *slog.Logger) func(http.Handler) http.Handler {
	return authenticate(validator, logger, false)
}

// RequireAuth is like Authenticate but also rejects requests without a token.
func RequireAuth(validator JWTValidator, logger *slog.Logger) func(http.Handler) http.Handler {
	return authenticate(validator, logger, true)
}

func authenticate(validator JWTValidator, logger *slog.Logger, required bool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			authHeader := r.Header.Get("Authorization")
			token, ok := strings.CutPrefix(authHeader, "Bearer ")
			if !ok || token == "" {
				if !required {
					next.ServeHTTP(w, r)
					return
				}
				logger.WarnContext(ctx, "unauthorized access - missing token",
					"request_id", request.GetRequestID(ctx),
				)
				writeUnauthorized(w, "Missing or invalid Authorization header")
				return
			}

			claims, err := validator.ValidateToken(token)
			if err != nil {
				logger.WarnContext(ctx, "unauthorized access - invalid token",
					"error", err,
					"request_id", request.GetRequestID(ctx),
				)
				writeUnauthorized(w, "Invalid or expired token")
				return
			}

			switch claims.Kind {
			case KindAdmin:
				ctx = requestcontext.WithAdmin(ctx, requestcontext.AdminIdentity{
					ID:    claims.Subject,
					Role:  claims.Role,
					Email: claims.Email,
				})
			default:
				ctx = requestcontext.WithUser(ctx, requestcontext.UserIdentity{
					ID:    claims.Subject,
					Role:  claims.Role,
					Email: claims.Email,
				})
			}

			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
