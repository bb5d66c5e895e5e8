package account

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/subwatch/subwatch/internal/auth"
	"github.com/subwatch/subwatch/internal/domain"
	"github.com/subwatch/subwatch/internal/http/middleware"
	"github.com/subwatch/subwatch/internal/httputil"
	"github.com/subwatch/subwatch/internal/store"
)

// Handler handles account-level endpoints.
type Handler struct {
	logger       *slog.Logger
	users        *store.UsersStore
	pending      *store.PendingStore
	tokens       *store.TokensStore
	twoFactor    *auth.TwoFactorService
	cookieConfig httputil.CookieConfig
}

// NewHandler creates a new account handler.
func NewHandler(
	logger *slog.Logger,
	users *store.UsersStore,
	pending *store.PendingStore,
	tokens *store.TokensStore,
	twoFactor *auth.TwoFactorService,
	cookieConfig httputil.CookieConfig,
) *Handler {
	return &Handler{
		logger:       logger,
		users:        users,
		pending:      pending,
		tokens:       tokens,
		twoFactor:    twoFactor,
		cookieConfig: cookieConfig,
	}
}

// Me returns the authenticated user's profile.
// GET /api/me
func (h *Handler) Me(w http.ResponseWriter, r *http.Request) {
	googleID, ok := middleware.GetGoogleID(r.Context())
	if !ok {
		httputil.Error(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	user, err := h.users.Get(r.Context(), googleID)
	if err != nil {
		if errors.Is(err, domain.ErrUserNotFound) {
			httputil.Error(w, http.StatusNotFound, "user not found")
			return
		}
		h.logger.Error("user lookup failed", "error", err)
		httputil.Error(w, http.StatusInternalServerError, "failed to load profile")
		return
	}

	httputil.JSON(w, http.StatusOK, map[string]any{
		"email":              user.Profile.Email,
		"name":               user.Profile.Name,
		"picture":            user.Profile.Picture,
		"emailVerified":      user.Profile.EmailVerified,
		"emailNotifications": user.Profile.EmailNotifications,
		"twoFactorEnabled":   user.Profile.TwoFactor.Enabled,
		"createdAt":          user.CreatedAt,
	})
}

type prefsPatch struct {
	Enabled      *bool `json:"enabled"`
	ExpiringSoon *bool `json:"expiringSoon"`
	Critical     *bool `json:"critical"`
	Weekly       *bool `json:"weekly"`
	Monthly      *bool `json:"monthly"`
}

type mePatch struct {
	Name               *string     `json:"name"`
	EmailNotifications *prefsPatch `json:"emailNotifications"`
}

// UpdateMe partially updates the profile. Only the fields present in the
// body change.
// PATCH /api/me
func (h *Handler) UpdateMe(w http.ResponseWriter, r *http.Request) {
	googleID, ok := middleware.GetGoogleID(r.Context())
	if !ok {
		httputil.Error(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	var req mePatch
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.Error(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Name != nil && strings.TrimSpace(*req.Name) == "" {
		httputil.Error(w, http.StatusBadRequest, "name must not be empty")
		return
	}

	var profile domain.Profile
	err := h.users.Update(r.Context(), googleID, func(u *domain.User) error {
		if req.Name != nil {
			u.Profile.Name = strings.TrimSpace(*req.Name)
		}
		if np := req.EmailNotifications; np != nil {
			p := &u.Profile.EmailNotifications
			if np.Enabled != nil {
				p.Enabled = *np.Enabled
			}
			if np.ExpiringSoon != nil {
				p.ExpiringSoon = *np.ExpiringSoon
			}
			if np.Critical != nil {
				p.Critical = *np.Critical
			}
			if np.Weekly != nil {
				p.Weekly = *np.Weekly
			}
			if np.Monthly != nil {
				p.Monthly = *np.Monthly
			}
		}
		profile = u.Profile
		return nil
	})
	if err != nil {
		if errors.Is(err, domain.ErrUserNotFound) {
			httputil.Error(w, http.StatusNotFound, "user not found")
			return
		}
		h.logger.Error("failed to update profile", "error", err)
		httputil.Error(w, http.StatusInternalServerError, "failed to update profile")
		return
	}

	httputil.JSON(w, http.StatusOK, map[string]any{
		"name":               profile.Name,
		"emailNotifications": profile.EmailNotifications,
	})
}

type deleteRequest struct {
	Confirm       string `json:"confirm"`
	TwoFactorCode string `json:"twoFactorCode"`
}

// Delete permanently removes the account and all stored data.
// POST /api/account/delete
//
// The body must carry the literal confirmation string, and the current TOTP
// code when two-factor is enabled.
func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	googleID, ok := middleware.GetGoogleID(r.Context())
	if !ok {
		httputil.Error(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	var req deleteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.Error(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Confirm != "DELETE" {
		httputil.Error(w, http.StatusBadRequest, `confirmation must be "DELETE"`)
		return
	}

	user, err := h.users.Get(r.Context(), googleID)
	if err != nil {
		if errors.Is(err, domain.ErrUserNotFound) {
			httputil.Error(w, http.StatusNotFound, "user not found")
			return
		}
		h.logger.Error("user lookup failed", "error", err)
		httputil.Error(w, http.StatusInternalServerError, "failed to delete account")
		return
	}

	if user.Profile.TwoFactor.Enabled && h.twoFactor != nil {
		if req.TwoFactorCode == "" {
			httputil.Error(w, http.StatusBadRequest, "two-factor code required")
			return
		}
		valid, err := h.twoFactor.Verify(r.Context(), googleID, req.TwoFactorCode)
		if err != nil || !valid {
			httputil.Error(w, http.StatusBadRequest, "invalid two-factor code")
			return
		}
	}

	if err := h.users.Delete(r.Context(), googleID); err != nil {
		h.logger.Error("failed to delete account", "error", err, "google_id", googleID)
		httputil.Error(w, http.StatusInternalServerError, "failed to delete account")
		return
	}
	// Best-effort cleanup of leftover signup state.
	if err := h.pending.Delete(r.Context(), googleID); err != nil {
		h.logger.Warn("failed to remove pending record", "error", err)
	}
	if err := h.tokens.Delete(r.Context(), user.Profile.Email); err != nil {
		h.logger.Warn("failed to remove verification token", "error", err)
	}

	httputil.ClearSessionCookie(w, h.cookieConfig)
	h.logger.Info("account deleted", "google_id", googleID)
	httputil.JSON(w, http.StatusOK, map[string]string{"message": "account deleted"})
}
