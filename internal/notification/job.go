package notification

import (
	"context"
	"log/slog"
	"time"

	"github.com/subwatch/subwatch/internal/domain"
	"github.com/subwatch/subwatch/internal/expiry"
	"github.com/subwatch/subwatch/internal/store"
)

// Detail records one notification that was sent during a sweep.
type Detail struct {
	Email        string `json:"email"`
	Type         string `json:"type"`
	Subscription string `json:"subscription,omitempty"`
	DaysLeft     *int   `json:"daysLeft,omitempty"`
	HoursLeft    *int   `json:"hoursLeft,omitempty"`
}

// Result summarizes a sweep.
type Result struct {
	NotificationsSent int      `json:"notificationsSent"`
	Details           []Detail `json:"details"`
}

// Job is the notification sweep. Every run recomputes from scratch; no
// sent-state is persisted, so the scheduler cadence is the only throttle on
// repeat notifications for a subscription that stays inside a window.
type Job struct {
	logger *slog.Logger
	users  *store.UsersStore
	sender Sender
}

// NewJob creates a notification job.
func NewJob(logger *slog.Logger, users *store.UsersStore, sender Sender) *Job {
	return &Job{logger: logger, users: users, sender: sender}
}

// Run classifies every active user's subscriptions and sends whatever their
// preferences allow. Weekly reports go out when now is a Monday, monthly
// reports when now is the first of the month; both summarize the whole list
// and are independent of the per-subscription buckets. Send failures are
// logged and skipped; the sweep always completes.
func (j *Job) Run(ctx context.Context, now time.Time) (*Result, error) {
	users, err := j.users.All(ctx)
	if err != nil {
		return nil, err
	}

	result := &Result{Details: []Detail{}}
	for _, user := range users {
		prefs := user.Profile.EmailNotifications
		to := user.Profile.Email

		for _, sub := range user.Subscriptions {
			days := expiry.DaysUntil(now, sub.Expiry)
			switch {
			// Critical supersedes expiring-soon for the same subscription.
			case expiry.IsCritical(days) && expiry.ShouldSend(prefs, expiry.KindCritical):
				hours := expiry.HoursUntil(now, sub.Expiry)
				if err := j.sender.SendCritical(to, sub.Name, hours); err != nil {
					j.logger.Error("critical notification failed", "email", to, "subscription", sub.Name, "error", err)
					continue
				}
				result.Details = append(result.Details, Detail{
					Email:        to,
					Type:         string(expiry.KindCritical),
					Subscription: sub.Name,
					HoursLeft:    &hours,
				})
			case expiry.IsExpiringSoon(days) && expiry.ShouldSend(prefs, expiry.KindExpiringSoon):
				if err := j.sender.SendExpiringSoon(to, sub.Name, days); err != nil {
					j.logger.Error("expiring-soon notification failed", "email", to, "subscription", sub.Name, "error", err)
					continue
				}
				d := days
				result.Details = append(result.Details, Detail{
					Email:        to,
					Type:         string(expiry.KindExpiringSoon),
					Subscription: sub.Name,
					DaysLeft:     &d,
				})
			}
		}

		report := buildReport(user.Subscriptions)
		if now.Weekday() == time.Monday && expiry.ShouldSend(prefs, expiry.KindWeekly) {
			if err := j.sender.SendWeeklyReport(to, report); err != nil {
				j.logger.Error("weekly report failed", "email", to, "error", err)
			} else {
				result.Details = append(result.Details, Detail{Email: to, Type: string(expiry.KindWeekly)})
			}
		}
		if now.Day() == 1 && expiry.ShouldSend(prefs, expiry.KindMonthly) {
			if err := j.sender.SendMonthlyReport(to, report); err != nil {
				j.logger.Error("monthly report failed", "email", to, "error", err)
			} else {
				result.Details = append(result.Details, Detail{Email: to, Type: string(expiry.KindMonthly)})
			}
		}
	}

	result.NotificationsSent = len(result.Details)
	j.logger.Info("notification sweep complete", "users", len(users), "sent", result.NotificationsSent)
	return result, nil
}

func buildReport(subs []domain.Subscription) Report {
	var report Report
	report.Subscriptions = len(subs)
	for _, sub := range subs {
		switch sub.Cycle {
		case domain.CycleMonthly:
			report.TotalMonthlyCost += sub.Cost
		case domain.CycleYearly:
			report.TotalYearlyCost += sub.Cost
		}
	}
	return report
}
