package google

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/subwatch/subwatch/internal/auth"
	"github.com/subwatch/subwatch/internal/domain"
	"github.com/subwatch/subwatch/internal/httputil"
	"github.com/subwatch/subwatch/internal/notification"
	"github.com/subwatch/subwatch/internal/store"
)

// Handler handles the Google OAuth endpoints.
type Handler struct {
	logger             *slog.Logger
	google             *auth.GoogleService
	sessions           *auth.SessionService
	verification       *auth.VerificationService
	twoFactor          *auth.TwoFactorService
	email              *notification.EmailService
	users              *store.UsersStore
	pending            *store.PendingStore
	appBaseURL         string
	requireEmailVerify bool
	cookieConfig       httputil.CookieConfig
	stateStore         *StateStore
}

// NewHandler creates a new Google handler.
func NewHandler(
	logger *slog.Logger,
	google *auth.GoogleService,
	sessions *auth.SessionService,
	verification *auth.VerificationService,
	twoFactor *auth.TwoFactorService,
	email *notification.EmailService,
	users *store.UsersStore,
	pending *store.PendingStore,
	appBaseURL string,
	requireEmailVerify bool,
	cookieConfig httputil.CookieConfig,
) *Handler {
	return &Handler{
		logger:             logger,
		google:             google,
		sessions:           sessions,
		verification:       verification,
		twoFactor:          twoFactor,
		email:              email,
		users:              users,
		pending:            pending,
		appBaseURL:         appBaseURL,
		requireEmailVerify: requireEmailVerify,
		cookieConfig:       cookieConfig,
		stateStore:         NewStateStore(),
	}
}

// oauthState holds state for one in-flight OAuth round trip.
type oauthState struct {
	Nonce     string
	ExpiresAt time.Time
}

// StateStore stores OAuth state for CSRF protection. In-memory; single
// replica only.
type StateStore struct {
	mu     sync.Mutex
	states map[string]*oauthState
}

// NewStateStore creates a new state store.
func NewStateStore() *StateStore {
	return &StateStore{states: make(map[string]*oauthState)}
}

// Set stores state, evicting anything expired.
func (s *StateStore) Set(state string, st *oauthState) {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := time.Now()
	for key, existing := range s.states {
		if now.After(existing.ExpiresAt) {
			delete(s.states, key)
		}
	}
	s.states[state] = st
}

// Take retrieves and removes state.
func (s *StateStore) Take(state string) (*oauthState, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	st, ok := s.states[state]
	if ok {
		delete(s.states, state)
	}
	return st, ok
}

// Start initiates the Google OAuth flow.
// GET /auth/google
func (h *Handler) Start(w http.ResponseWriter, r *http.Request) {
	state, err := auth.GenerateToken(32)
	if err != nil {
		httputil.Error(w, http.StatusInternalServerError, "failed to start login")
		return
	}
	nonce, err := auth.GenerateToken(32)
	if err != nil {
		httputil.Error(w, http.StatusInternalServerError, "failed to start login")
		return
	}

	h.stateStore.Set(state, &oauthState{
		Nonce:     nonce,
		ExpiresAt: time.Now().Add(10 * time.Minute),
	})

	http.Redirect(w, r, h.google.AuthURL(state, nonce), http.StatusFound)
}

// Callback handles the Google OAuth callback.
// GET /auth/google/callback?code=...&state=...
func (h *Handler) Callback(w http.ResponseWriter, r *http.Request) {
	code := r.URL.Query().Get("code")
	state := r.URL.Query().Get("state")
	errorParam := r.URL.Query().Get("error")

	if errorParam != "" {
		h.logger.Warn("oauth provider error", "error", errorParam)
		h.redirectError(w, r)
		return
	}

	st, ok := h.stateStore.Take(state)
	if !ok || time.Now().After(st.ExpiresAt) {
		h.logger.Warn("invalid or expired oauth state")
		h.redirectError(w, r)
		return
	}

	tokenResp, err := h.google.ExchangeCode(r.Context(), code)
	if err != nil {
		h.logger.Error("code exchange failed", "error", err)
		h.redirectError(w, r)
		return
	}

	claims, err := h.google.ValidateIDToken(tokenResp.IDToken, st.Nonce)
	if err != nil {
		h.logger.Error("invalid ID token", "error", err)
		h.redirectError(w, r)
		return
	}

	googleID := claims.Subject

	// Existing active account: refresh the profile and log in, via the
	// two-factor gate when enabled.
	user, err := h.users.Get(r.Context(), googleID)
	if err == nil {
		if user.Profile.TwoFactor.Enabled && h.twoFactor != nil {
			challenge, err := h.twoFactor.CreateChallenge(googleID)
			if err != nil {
				h.logger.Error("failed to create two-factor challenge", "error", err)
				h.redirectError(w, r)
				return
			}
			http.Redirect(w, r, h.appBaseURL+"/auth/2fa?challenge="+url.QueryEscape(challenge), http.StatusFound)
			return
		}

		err = h.users.Update(r.Context(), googleID, func(u *domain.User) error {
			u.Profile.Name = claims.Name
			u.Profile.Picture = claims.Picture
			return nil
		})
		if err != nil {
			h.logger.Error("failed to refresh profile", "error", err, "google_id", googleID)
		}
		h.login(w, r, user)
		return
	}
	if !errors.Is(err, domain.ErrUserNotFound) {
		h.logger.Error("user lookup failed", "error", err)
		h.redirectError(w, r)
		return
	}

	// New signup behind email verification: park the account in the
	// pending store and send the verification link.
	if h.requireEmailVerify {
		pending := &domain.PendingUser{
			GoogleID:  googleID,
			Email:     claims.Email,
			Name:      claims.Name,
			Picture:   claims.Picture,
			CreatedAt: time.Now(),
		}
		if err := h.pending.Put(r.Context(), pending); err != nil {
			h.logger.Error("failed to create pending user", "error", err)
			h.redirectError(w, r)
			return
		}

		h.sendVerification(r, claims.Email)
		http.Redirect(w, r, h.appBaseURL+"/auth?verify=pending", http.StatusFound)
		return
	}

	// Immediate activation.
	now := time.Now()
	user = &domain.User{
		GoogleID: googleID,
		Profile: domain.Profile{
			Email:              claims.Email,
			Name:               claims.Name,
			Picture:            claims.Picture,
			EmailVerified:      claims.EmailVerified,
			EmailNotifications: domain.DefaultNotificationPrefs(),
		},
		Subscriptions: []domain.Subscription{},
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if err := h.users.Put(r.Context(), user); err != nil {
		h.logger.Error("failed to create user", "error", err)
		h.redirectError(w, r)
		return
	}

	h.logger.Info("new account created", "google_id", googleID, "email", claims.Email)
	h.login(w, r, user)
}

// sendVerification issues a token and emails the verification link. Delivery
// failure is logged only; the token stays valid and can be resent.
func (h *Handler) sendVerification(r *http.Request, email string) {
	raw, err := h.verification.CreateToken(r.Context(), email)
	if err != nil {
		h.logger.Error("failed to create verification token", "error", err, "email", email)
		return
	}
	if h.email == nil {
		h.logger.Warn("email service not configured, skipping verification email", "email", email)
		return
	}
	verifyURL := fmt.Sprintf("%s/api/auth/verify?email=%s&token=%s",
		h.appBaseURL, url.QueryEscape(email), url.QueryEscape(raw))
	ttl := notification.HumanDuration(h.verification.TokenTTL())
	if err := h.email.SendVerification(email, verifyURL, ttl); err != nil {
		h.logger.Error("failed to send verification email", "error", err, "email", email)
	}
}

func (h *Handler) login(w http.ResponseWriter, r *http.Request, user *domain.User) {
	token, err := h.sessions.Issue(user)
	if err != nil {
		h.logger.Error("failed to issue session", "error", err)
		h.redirectError(w, r)
		return
	}
	httputil.SetSessionCookie(w, token, h.sessions.TTL(), h.cookieConfig)
	http.Redirect(w, r, h.appBaseURL+"/", http.StatusFound)
}

func (h *Handler) redirectError(w http.ResponseWriter, r *http.Request) {
	http.Redirect(w, r, h.appBaseURL+"/auth?error=auth_failed", http.StatusFound)
}
