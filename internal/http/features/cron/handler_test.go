package cron

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/subwatch/subwatch/internal/domain"
	"github.com/subwatch/subwatch/internal/notification"
	"github.com/subwatch/subwatch/internal/store"
)

type noopSender struct{}

func (noopSender) SendExpiringSoon(string, string, int) error          { return nil }
func (noopSender) SendCritical(string, string, int) error              { return nil }
func (noopSender) SendWeeklyReport(string, notification.Report) error  { return nil }
func (noopSender) SendMonthlyReport(string, notification.Report) error { return nil }

func newTestHandler(t *testing.T, secret string) (*Handler, *store.UsersStore) {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	users := store.NewUsersStore(t.TempDir())
	job := notification.NewJob(logger, users, noopSender{})
	return NewHandler(logger, job, secret), users
}

func TestNotifications_Unauthorized(t *testing.T) {
	h, _ := newTestHandler(t, "cron-secret")

	tests := []struct {
		name   string
		header string
	}{
		{"no header", ""},
		{"wrong scheme", "Basic cron-secret"},
		{"wrong token", "Bearer wrong"},
		{"empty bearer", "Bearer "},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodGet, "/api/cron/notifications", nil)
			if tt.header != "" {
				r.Header.Set("Authorization", tt.header)
			}
			rec := httptest.NewRecorder()
			h.Notifications(rec, r)
			if rec.Code != http.StatusUnauthorized {
				t.Errorf("status = %d, want %d", rec.Code, http.StatusUnauthorized)
			}
		})
	}
}

func TestNotifications_NoSecretConfigured(t *testing.T) {
	h, _ := newTestHandler(t, "")

	// Without a configured secret the endpoint is open: the sweep runs and
	// returns 200 whether or not a bearer token is sent.
	for _, header := range []string{"", "Bearer anything"} {
		r := httptest.NewRequest(http.MethodGet, "/api/cron/notifications", nil)
		if header != "" {
			r.Header.Set("Authorization", header)
		}
		rec := httptest.NewRecorder()
		h.Notifications(rec, r)
		if rec.Code != http.StatusOK {
			t.Errorf("header %q: status = %d, want %d", header, rec.Code, http.StatusOK)
		}
	}
}

func TestNotifications_OK(t *testing.T) {
	h, users := newTestHandler(t, "cron-secret")

	now := time.Now()
	err := users.Put(context.Background(), &domain.User{
		GoogleID: "g-1",
		Profile: domain.Profile{
			Email:              "alice@example.com",
			EmailNotifications: domain.DefaultNotificationPrefs(),
		},
		Subscriptions: []domain.Subscription{
			{ID: "s-1", Name: "Domain", Expiry: now.Add(12 * time.Hour), Cost: 12, Cycle: domain.CycleYearly, CreatedAt: now},
		},
		CreatedAt: now,
		UpdatedAt: now,
	})
	if err != nil {
		t.Fatalf("Put failed: %v", err)
	}

	r := httptest.NewRequest(http.MethodGet, "/api/cron/notifications", nil)
	r.Header.Set("Authorization", "Bearer cron-secret")
	rec := httptest.NewRecorder()
	h.Notifications(rec, r)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d; body: %s", rec.Code, http.StatusOK, rec.Body.String())
	}

	var got notification.Result
	if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
		t.Fatalf("invalid JSON response: %v", err)
	}
	if got.NotificationsSent != len(got.Details) {
		t.Errorf("notificationsSent = %d, details = %d; want equal", got.NotificationsSent, len(got.Details))
	}
	// The handler sweeps at wall-clock now, so a weekly or monthly report
	// may ride along; the critical alert must be there regardless.
	criticals := 0
	for _, d := range got.Details {
		if d.Type == "critical" && d.Subscription == "Domain" {
			criticals++
		}
	}
	if criticals != 1 {
		t.Errorf("critical notifications = %d, want 1; details: %+v", criticals, got.Details)
	}
}
