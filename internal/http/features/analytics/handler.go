package analytics

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/subwatch/subwatch/internal/analytics"
	"github.com/subwatch/subwatch/internal/domain"
	"github.com/subwatch/subwatch/internal/http/middleware"
	"github.com/subwatch/subwatch/internal/httputil"
	"github.com/subwatch/subwatch/internal/store"
)

// Handler serves the spending and expiry summary.
type Handler struct {
	logger *slog.Logger
	users  *store.UsersStore
}

// NewHandler creates a new analytics handler.
func NewHandler(logger *slog.Logger, users *store.UsersStore) *Handler {
	return &Handler{logger: logger, users: users}
}

// Summary returns aggregate stats over the user's subscriptions.
// GET /api/analytics
func (h *Handler) Summary(w http.ResponseWriter, r *http.Request) {
	googleID, ok := middleware.GetGoogleID(r.Context())
	if !ok {
		httputil.Error(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	user, err := h.users.Get(r.Context(), googleID)
	if err != nil {
		if errors.Is(err, domain.ErrUserNotFound) {
			httputil.Error(w, http.StatusNotFound, "no subscriptions")
			return
		}
		h.logger.Error("user lookup failed", "error", err)
		httputil.Error(w, http.StatusInternalServerError, "failed to load analytics")
		return
	}
	if len(user.Subscriptions) == 0 {
		httputil.Error(w, http.StatusNotFound, "no subscriptions")
		return
	}

	httputil.JSON(w, http.StatusOK, analytics.Summarize(user, time.Now()))
}
