package session

import (
	"net/http"

	"github.com/subwatch/subwatch/internal/http/middleware"
	"github.com/subwatch/subwatch/internal/httputil"
)

// Handler handles session endpoints. Sessions are stateless JWTs, so logout
// is purely a cookie clear.
type Handler struct {
	cookieConfig httputil.CookieConfig
}

// NewHandler creates a new session handler.
func NewHandler(cookieConfig httputil.CookieConfig) *Handler {
	return &Handler{cookieConfig: cookieConfig}
}

// Current returns the claims of the active session.
// GET /api/auth/session
func (h *Handler) Current(w http.ResponseWriter, r *http.Request) {
	claims, ok := middleware.GetClaims(r.Context())
	if !ok {
		httputil.Error(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	httputil.JSON(w, http.StatusOK, map[string]any{
		"googleId":      claims.Subject,
		"email":         claims.Email,
		"name":          claims.Name,
		"emailVerified": claims.EmailVerified,
		"expiresAt":     claims.ExpiresAt,
	})
}

// Logout clears the session cookie.
// POST /api/auth/logout
func (h *Handler) Logout(w http.ResponseWriter, r *http.Request) {
	httputil.ClearSessionCookie(w, h.cookieConfig)
	httputil.JSON(w, http.StatusOK, map[string]string{"message": "logged out"})
}
