package twofactor

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/subwatch/subwatch/internal/auth"
	"github.com/subwatch/subwatch/internal/domain"
	"github.com/subwatch/subwatch/internal/http/middleware"
	"github.com/subwatch/subwatch/internal/httputil"
	"github.com/subwatch/subwatch/internal/store"
)

// Handler handles two-factor enrollment and login verification.
type Handler struct {
	logger       *slog.Logger
	twoFactor    *auth.TwoFactorService
	sessions     *auth.SessionService
	users        *store.UsersStore
	cookieConfig httputil.CookieConfig
}

// NewHandler creates a new two-factor handler.
func NewHandler(
	logger *slog.Logger,
	twoFactor *auth.TwoFactorService,
	sessions *auth.SessionService,
	users *store.UsersStore,
	cookieConfig httputil.CookieConfig,
) *Handler {
	return &Handler{
		logger:       logger,
		twoFactor:    twoFactor,
		sessions:     sessions,
		users:        users,
		cookieConfig: cookieConfig,
	}
}

// Status reports whether two-factor is enabled for the current user.
// GET /api/2fa/status
func (h *Handler) Status(w http.ResponseWriter, r *http.Request) {
	googleID, ok := middleware.GetGoogleID(r.Context())
	if !ok {
		httputil.Error(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	enabled, remaining, err := h.twoFactor.Status(r.Context(), googleID)
	if err != nil {
		if errors.Is(err, domain.ErrUserNotFound) {
			httputil.Error(w, http.StatusNotFound, "user not found")
			return
		}
		h.logger.Error("two-factor status failed", "error", err)
		httputil.Error(w, http.StatusInternalServerError, "failed to load two-factor status")
		return
	}

	httputil.JSON(w, http.StatusOK, map[string]any{
		"enabled":                enabled,
		"recoveryCodesRemaining": remaining,
	})
}

// Setup starts two-factor enrollment and returns the secret, QR code and
// recovery codes. Two-factor stays off until Enable confirms a code.
// POST /api/2fa/setup
func (h *Handler) Setup(w http.ResponseWriter, r *http.Request) {
	googleID, ok := middleware.GetGoogleID(r.Context())
	if !ok {
		httputil.Error(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	result, err := h.twoFactor.Setup(r.Context(), googleID)
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrUserNotFound):
			httputil.Error(w, http.StatusNotFound, "user not found")
		case errors.Is(err, domain.ErrTwoFactorAlreadyEnabled):
			httputil.Error(w, http.StatusConflict, "two-factor already enabled")
		default:
			h.logger.Error("two-factor setup failed", "error", err)
			httputil.Error(w, http.StatusInternalServerError, "failed to set up two-factor")
		}
		return
	}

	httputil.JSON(w, http.StatusOK, result)
}

type codeRequest struct {
	Code string `json:"code"`
}

// Enable confirms enrollment with a TOTP code.
// POST /api/2fa/enable
func (h *Handler) Enable(w http.ResponseWriter, r *http.Request) {
	googleID, ok := middleware.GetGoogleID(r.Context())
	if !ok {
		httputil.Error(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	var req codeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Code == "" {
		httputil.Error(w, http.StatusBadRequest, "code is required")
		return
	}

	if err := h.twoFactor.Enable(r.Context(), googleID, req.Code); err != nil {
		switch {
		case errors.Is(err, domain.ErrUserNotFound):
			httputil.Error(w, http.StatusNotFound, "user not found")
		case errors.Is(err, domain.ErrTwoFactorAlreadyEnabled):
			httputil.Error(w, http.StatusConflict, "two-factor already enabled")
		case errors.Is(err, domain.ErrTwoFactorNotEnrolled):
			httputil.Error(w, http.StatusBadRequest, "two-factor setup has not been started")
		case errors.Is(err, domain.ErrInvalidTwoFactorCode):
			httputil.Error(w, http.StatusBadRequest, "invalid two-factor code")
		default:
			h.logger.Error("two-factor enable failed", "error", err)
			httputil.Error(w, http.StatusInternalServerError, "failed to enable two-factor")
		}
		return
	}

	h.logger.Info("two-factor enabled", "google_id", googleID)
	httputil.JSON(w, http.StatusOK, map[string]string{"message": "two-factor enabled"})
}

// Disable turns two-factor off after verifying a TOTP or recovery code.
// POST /api/2fa/disable
func (h *Handler) Disable(w http.ResponseWriter, r *http.Request) {
	googleID, ok := middleware.GetGoogleID(r.Context())
	if !ok {
		httputil.Error(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	var req codeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Code == "" {
		httputil.Error(w, http.StatusBadRequest, "code is required")
		return
	}

	if err := h.twoFactor.Disable(r.Context(), googleID, req.Code); err != nil {
		switch {
		case errors.Is(err, domain.ErrUserNotFound):
			httputil.Error(w, http.StatusNotFound, "user not found")
		case errors.Is(err, domain.ErrTwoFactorNotEnabled):
			httputil.Error(w, http.StatusBadRequest, "two-factor is not enabled")
		case errors.Is(err, domain.ErrInvalidTwoFactorCode):
			httputil.Error(w, http.StatusBadRequest, "invalid code")
		default:
			h.logger.Error("two-factor disable failed", "error", err)
			httputil.Error(w, http.StatusInternalServerError, "failed to disable two-factor")
		}
		return
	}

	h.logger.Info("two-factor disabled", "google_id", googleID)
	httputil.JSON(w, http.StatusOK, map[string]string{"message": "two-factor disabled"})
}

type verifyRequest struct {
	Challenge    string `json:"challenge"`
	Code         string `json:"code"`
	RecoveryCode string `json:"recoveryCode"`
}

// Verify completes a two-factor login challenge and issues the session.
// POST /api/auth/2fa/verify
//
// The challenge token comes from the OAuth callback redirect. Exactly one of
// code or recoveryCode must be provided.
func (h *Handler) Verify(w http.ResponseWriter, r *http.Request) {
	var req verifyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.Error(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Challenge == "" {
		httputil.Error(w, http.StatusBadRequest, "challenge is required")
		return
	}
	if (req.Code == "") == (req.RecoveryCode == "") {
		httputil.Error(w, http.StatusBadRequest, "provide either a code or a recovery code")
		return
	}

	googleID, err := h.twoFactor.ConsumeChallenge(req.Challenge)
	if err != nil {
		httputil.Error(w, http.StatusUnauthorized, "challenge expired, sign in again")
		return
	}

	var valid bool
	if req.Code != "" {
		valid, err = h.twoFactor.Verify(r.Context(), googleID, req.Code)
	} else {
		valid, err = h.twoFactor.VerifyRecoveryCode(r.Context(), googleID, req.RecoveryCode)
	}
	if err != nil {
		h.logger.Error("two-factor verification failed", "error", err)
		httputil.Error(w, http.StatusInternalServerError, "verification failed")
		return
	}
	if !valid {
		httputil.Error(w, http.StatusUnauthorized, "invalid code")
		return
	}

	user, err := h.users.Get(r.Context(), googleID)
	if err != nil {
		h.logger.Error("user lookup failed after two-factor", "error", err)
		httputil.Error(w, http.StatusInternalServerError, "verification failed")
		return
	}

	token, err := h.sessions.Issue(user)
	if err != nil {
		h.logger.Error("failed to issue session", "error", err)
		httputil.Error(w, http.StatusInternalServerError, "verification failed")
		return
	}
	httputil.SetSessionCookie(w, token, h.sessions.TTL(), h.cookieConfig)

	h.logger.Info("two-factor login completed", "google_id", googleID)
	httputil.JSON(w, http.StatusOK, map[string]string{"message": "verified"})
}
