package verify

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/subwatch/subwatch/internal/auth"
	"github.com/subwatch/subwatch/internal/domain"
	"github.com/subwatch/subwatch/internal/httputil"
	"github.com/subwatch/subwatch/internal/notification"
	"github.com/subwatch/subwatch/internal/store"
)

// Handler handles email verification endpoints.
type Handler struct {
	logger       *slog.Logger
	verification *auth.VerificationService
	email        *notification.EmailService
	pending      *store.PendingStore
	appBaseURL   string
}

// NewHandler creates a new verification handler.
func NewHandler(
	logger *slog.Logger,
	verification *auth.VerificationService,
	email *notification.EmailService,
	pending *store.PendingStore,
	appBaseURL string,
) *Handler {
	return &Handler{
		logger:       logger,
		verification: verification,
		email:        email,
		pending:      pending,
		appBaseURL:   appBaseURL,
	}
}

// Verify consumes a verification link from an email.
// GET /api/auth/verify?email=...&token=...
//
// The endpoint is a browser target, so outcomes are reported via redirect
// query params rather than JSON. The redirect reason never distinguishes
// why a token was rejected.
func (h *Handler) Verify(w http.ResponseWriter, r *http.Request) {
	email := strings.TrimSpace(r.URL.Query().Get("email"))
	token := r.URL.Query().Get("token")

	if email == "" || token == "" {
		h.redirect(w, r, "error=missing_params")
		return
	}

	if !h.verification.Verify(r.Context(), email, token) {
		h.redirect(w, r, "error=invalid_token")
		return
	}

	if err := h.verification.MarkEmailVerified(r.Context(), email); err != nil {
		h.logger.Error("failed to mark email verified", "error", err, "email", email)
		h.redirect(w, r, "error=verification_failed")
		return
	}

	h.logger.Info("email verified", "email", email)
	h.redirect(w, r, "verified=1")
}

type resendRequest struct {
	Email string `json:"email"`
}

// Resend issues a fresh verification token and re-sends the email.
// POST /api/auth/resend-verification
//
// Responds 200 regardless of whether the address has a pending signup, so
// the endpoint cannot be used to probe which emails are registered.
func (h *Handler) Resend(w http.ResponseWriter, r *http.Request) {
	var req resendRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.Error(w, http.StatusBadRequest, "invalid request body")
		return
	}
	email := strings.TrimSpace(req.Email)
	if email == "" {
		httputil.Error(w, http.StatusBadRequest, "email is required")
		return
	}

	if h.verification.IsEmailVerified(r.Context(), email) {
		httputil.JSON(w, http.StatusOK, map[string]string{
			"message": "if a pending signup exists, a new verification email was sent",
		})
		return
	}

	_, err := h.pending.GetByEmail(r.Context(), email)
	if err != nil {
		if !errors.Is(err, domain.ErrPendingUserNotFound) {
			h.logger.Error("pending lookup failed", "error", err)
		}
		httputil.JSON(w, http.StatusOK, map[string]string{
			"message": "if a pending signup exists, a new verification email was sent",
		})
		return
	}

	raw, err := h.verification.CreateToken(r.Context(), email)
	if err != nil {
		h.logger.Error("failed to create verification token", "error", err, "email", email)
		httputil.Error(w, http.StatusInternalServerError, "failed to resend verification email")
		return
	}

	if h.email != nil {
		verifyURL := fmt.Sprintf("%s/api/auth/verify?email=%s&token=%s",
			h.appBaseURL, url.QueryEscape(email), url.QueryEscape(raw))
		ttl := notification.HumanDuration(h.verification.TokenTTL())
		if err := h.email.SendVerification(email, verifyURL, ttl); err != nil {
			h.logger.Error("failed to send verification email", "error", err, "email", email)
			httputil.Error(w, http.StatusInternalServerError, "failed to resend verification email")
			return
		}
	}

	httputil.JSON(w, http.StatusOK, map[string]string{
		"message": "if a pending signup exists, a new verification email was sent",
	})
}

// Status reports whether a verification token is still live for an email.
// GET /api/auth/verify/status?email=...
func (h *Handler) Status(w http.ResponseWriter, r *http.Request) {
	email := strings.TrimSpace(r.URL.Query().Get("email"))
	if email == "" {
		httputil.Error(w, http.StatusBadRequest, "email is required")
		return
	}

	resp := map[string]any{
		"verified": h.verification.IsEmailVerified(r.Context(), email),
	}
	if expiry := h.verification.TokenExpiry(r.Context(), email); expiry != nil {
		resp["tokenExpiresAt"] = expiry.Format(time.RFC3339)
	}
	httputil.JSON(w, http.StatusOK, resp)
}

func (h *Handler) redirect(w http.ResponseWriter, r *http.Request, query string) {
	http.Redirect(w, r, h.appBaseURL+"/auth?"+query, http.StatusFound)
}
