package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/subwatch/subwatch/internal/auth"
	"github.com/subwatch/subwatch/internal/httputil"
)

type contextKey string

const (
	// GoogleIDKey is the context key for the authenticated account ID.
	GoogleIDKey contextKey = "google_id"
	// ClaimsKey is the context key for the session claims.
	ClaimsKey contextKey = "claims"
)

// Auth creates middleware that validates the session. The session cookie is
// checked first, then the Authorization header for API clients.
func Auth(sessions *auth.SessionService) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			tokenString, _ := httputil.GetSessionFromCookie(r)

			if tokenString == "" {
				authHeader := r.Header.Get("Authorization")
				if authHeader != "" {
					parts := strings.SplitN(authHeader, " ", 2)
					if len(parts) == 2 && strings.EqualFold(parts[0], "Bearer") {
						tokenString = parts[1]
					}
				}
			}

			if tokenString == "" {
				httputil.Error(w, http.StatusUnauthorized, "missing authorization")
				return
			}

			claims, err := sessions.Validate(tokenString)
			if err != nil {
				httputil.Error(w, http.StatusUnauthorized, "invalid or expired session")
				return
			}

			ctx := context.WithValue(r.Context(), GoogleIDKey, claims.Subject)
			ctx = context.WithValue(ctx, ClaimsKey, claims)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// GetGoogleID extracts the authenticated account ID from the context.
func GetGoogleID(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(GoogleIDKey).(string)
	return id, ok && id != ""
}

// GetClaims extracts the session claims from the context.
func GetClaims(ctx context.Context) (*auth.SessionClaims, bool) {
	claims, ok := ctx.Value(ClaimsKey).(*auth.SessionClaims)
	return claims, ok
}
