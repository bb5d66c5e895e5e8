package subscriptions

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/subwatch/subwatch/internal/domain"
	"github.com/subwatch/subwatch/internal/http/middleware"
	"github.com/subwatch/subwatch/internal/httputil"
	"github.com/subwatch/subwatch/internal/store"
)

// Handler handles subscription CRUD endpoints.
type Handler struct {
	logger *slog.Logger
	users  *store.UsersStore
}

// NewHandler creates a new subscriptions handler.
func NewHandler(logger *slog.Logger, users *store.UsersStore) *Handler {
	return &Handler{logger: logger, users: users}
}

type subscriptionRequest struct {
	Name        string     `json:"name"`
	Expiry      time.Time  `json:"expiry"`
	Cost        float64    `json:"cost"`
	Cycle       string     `json:"cycle"`
	Notes       string     `json:"notes"`
	AutoRenew   bool       `json:"autoRenew"`
	FinalExpiry *time.Time `json:"finalExpiry,omitempty"`
}

func (req *subscriptionRequest) validate() error {
	if strings.TrimSpace(req.Name) == "" {
		return errors.New("name is required")
	}
	if req.Expiry.IsZero() {
		return domain.ErrInvalidExpiry
	}
	if !domain.Cycle(req.Cycle).Valid() {
		return domain.ErrInvalidCycle
	}
	if req.Cost < 0 {
		return errors.New("cost must not be negative")
	}
	return nil
}

// List returns all subscriptions for the authenticated user.
// GET /api/subscriptions
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	googleID, ok := middleware.GetGoogleID(r.Context())
	if !ok {
		httputil.Error(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	user, err := h.users.Get(r.Context(), googleID)
	if err != nil {
		if errors.Is(err, domain.ErrUserNotFound) {
			httputil.JSON(w, http.StatusOK, []domain.Subscription{})
			return
		}
		h.logger.Error("user lookup failed", "error", err)
		httputil.Error(w, http.StatusInternalServerError, "failed to load subscriptions")
		return
	}

	httputil.JSON(w, http.StatusOK, user.Subscriptions)
}

// Create adds a subscription.
// POST /api/subscriptions
func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	googleID, ok := middleware.GetGoogleID(r.Context())
	if !ok {
		httputil.Error(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	var req subscriptionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.Error(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := req.validate(); err != nil {
		httputil.Error(w, http.StatusBadRequest, err.Error())
		return
	}

	sub := domain.Subscription{
		ID:          uuid.New().String(),
		Name:        strings.TrimSpace(req.Name),
		Expiry:      req.Expiry,
		Cost:        req.Cost,
		Cycle:       domain.Cycle(req.Cycle),
		Notes:       req.Notes,
		AutoRenew:   req.AutoRenew,
		FinalExpiry: req.FinalExpiry,
		CreatedAt:   time.Now(),
	}

	if err := h.users.AddSubscription(r.Context(), googleID, sub); err != nil {
		if errors.Is(err, domain.ErrUserNotFound) {
			httputil.Error(w, http.StatusNotFound, "user not found")
			return
		}
		h.logger.Error("failed to add subscription", "error", err)
		httputil.Error(w, http.StatusInternalServerError, "failed to add subscription")
		return
	}

	h.logger.Info("subscription created", "google_id", googleID, "subscription_id", sub.ID)
	httputil.JSON(w, http.StatusCreated, sub)
}

// Update replaces a subscription's editable fields.
// PUT /api/subscriptions/{id}
func (h *Handler) Update(w http.ResponseWriter, r *http.Request) {
	googleID, ok := middleware.GetGoogleID(r.Context())
	if !ok {
		httputil.Error(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	id := chi.URLParam(r, "id")

	var req subscriptionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.Error(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := req.validate(); err != nil {
		httputil.Error(w, http.StatusBadRequest, err.Error())
		return
	}

	var updated domain.Subscription
	err := h.users.Update(r.Context(), googleID, func(u *domain.User) error {
		sub := u.Subscription(id)
		if sub == nil {
			return domain.ErrSubscriptionNotFound
		}
		sub.Name = strings.TrimSpace(req.Name)
		sub.Expiry = req.Expiry
		sub.Cost = req.Cost
		sub.Cycle = domain.Cycle(req.Cycle)
		sub.Notes = req.Notes
		sub.AutoRenew = req.AutoRenew
		sub.FinalExpiry = req.FinalExpiry
		updated = *sub
		return nil
	})
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrUserNotFound):
			httputil.Error(w, http.StatusNotFound, "user not found")
		case errors.Is(err, domain.ErrSubscriptionNotFound):
			httputil.Error(w, http.StatusNotFound, "subscription not found")
		default:
			h.logger.Error("failed to update subscription", "error", err)
			httputil.Error(w, http.StatusInternalServerError, "failed to update subscription")
		}
		return
	}

	httputil.JSON(w, http.StatusOK, updated)
}

// Delete removes a subscription.
// DELETE /api/subscriptions/{id}
func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	googleID, ok := middleware.GetGoogleID(r.Context())
	if !ok {
		httputil.Error(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	id := chi.URLParam(r, "id")

	if err := h.users.RemoveSubscription(r.Context(), googleID, id); err != nil {
		switch {
		case errors.Is(err, domain.ErrUserNotFound):
			httputil.Error(w, http.StatusNotFound, "user not found")
		case errors.Is(err, domain.ErrSubscriptionNotFound):
			httputil.Error(w, http.StatusNotFound, "subscription not found")
		default:
			h.logger.Error("failed to delete subscription", "error", err)
			httputil.Error(w, http.StatusInternalServerError, "failed to delete subscription")
		}
		return
	}

	httputil.JSON(w, http.StatusOK, map[string]string{"message": "subscription deleted"})
}
