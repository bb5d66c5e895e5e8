package cron

import (
	"crypto/subtle"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/subwatch/subwatch/internal/httputil"
	"github.com/subwatch/subwatch/internal/notification"
)

// Handler handles the scheduled-job trigger endpoints.
type Handler struct {
	logger *slog.Logger
	job    *notification.Job
	secret string
}

// NewHandler creates a new cron handler.
func NewHandler(logger *slog.Logger, job *notification.Job, secret string) *Handler {
	return &Handler{logger: logger, job: job, secret: secret}
}

// Notifications runs the expiry notification sweep.
// GET /api/cron/notifications
//
// Authenticated with a bearer token matching CRON_SECRET, not a user session.
// With no secret configured the endpoint is open; the rate limiter is the
// only guard.
func (h *Handler) Notifications(w http.ResponseWriter, r *http.Request) {
	if !h.authorized(r) {
		httputil.Error(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	start := time.Now()
	result, err := h.job.Run(r.Context(), start)
	if err != nil {
		h.logger.Error("notification job failed", "error", err)
		httputil.Error(w, http.StatusInternalServerError, "notification job failed")
		return
	}

	h.logger.Info("notification job completed",
		"sent", result.NotificationsSent,
		"duration", time.Since(start).String())
	httputil.JSON(w, http.StatusOK, result)
}

func (h *Handler) authorized(r *http.Request) bool {
	if h.secret == "" {
		return true
	}
	header := r.Header.Get("Authorization")
	token, ok := strings.CutPrefix(header, "Bearer ")
	if !ok {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(token), []byte(h.secret)) == 1
}
