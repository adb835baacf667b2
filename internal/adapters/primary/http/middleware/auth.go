package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/lorrc/helpdesk-backend/internal/auth"
	"github.com/lorrc/helpdesk-backend/internal/core/domain"
	"github.com/lorrc/helpdesk-backend/internal/infrastructure/logging"
)

// contextKey is a custom type for context keys to avoid collisions.
type contextKey string

const (
	// IdentityKey is the key used to store the caller identity in the request context.
	IdentityKey contextKey = "identity"

	// TokenQueryParam carries the token for clients that cannot set headers
	// (browser WebSocket and EventSource).
	TokenQueryParam = "token"
)

// JWTMiddleware validates the bearer token and stores the caller identity.
func JWTMiddleware(tm *auth.TokenManager) func(http.Handler) http.Handler {
	return jwtMiddleware(tm, false)
}

// JWTQueryMiddleware also accepts the token from the ?token= query parameter.
func JWTQueryMiddleware(tm *auth.TokenManager) func(http.Handler) http.Handler {
	return jwtMiddleware(tm, true)
}

func jwtMiddleware(tm *auth.TokenManager, allowQuery bool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			tokenString, msg := bearerToken(r, allowQuery)
			if tokenString == "" {
				writeUnauthorized(w, msg)
				return
			}

			claims, err := tm.ValidateToken(tokenString)
			if err != nil {
				writeUnauthorized(w, "Invalid or expired token")
				return
			}

			identity := claims.Identity()
			ctx := context.WithValue(r.Context(), IdentityKey, identity)
			ctx = logging.WithUserID(ctx, identity.UserID.String())
			ctx = logging.WithRole(ctx, string(identity.Role))
			noteIdentity(ctx, identity)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func bearerToken(r *http.Request, allowQuery bool) (string, string) {
	authHeader := r.Header.Get("Authorization")
	if authHeader == "" {
		if allowQuery {
			if token := r.URL.Query().Get(TokenQueryParam); token != "" {
				return token, ""
			}
		}
		return "", "Authorization header is required"
	}

	parts := strings.Split(authHeader, " ")
	if len(parts) != 2 || parts[0] != "Bearer" {
		return "", "Authorization header format must be Bearer {token}"
	}
	return parts[1], ""
}

func writeUnauthorized(w http.ResponseWriter, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	_, _ = w.Write([]byte(`{"error":"` + msg + `","code":"UNAUTHORIZED"}`))
}

// GetIdentity returns the caller identity, or nil for anonymous requests.
func GetIdentity(ctx context.Context) *domain.Identity {
	identity, _ := ctx.Value(IdentityKey).(*domain.Identity)
	return identity
}

// WithIdentity stores an identity in ctx. Handler tests use it to skip
// token handling.
func WithIdentity(ctx context.Context, identity *domain.Identity) context.Context {
	return context.WithValue(ctx, IdentityKey, identity)
}
