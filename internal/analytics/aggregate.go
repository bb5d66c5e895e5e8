// Package analytics computes per-user subscription aggregates.
package analytics

import (
	"time"

	"github.com/subwatch/subwatch/internal/domain"
	"github.com/subwatch/subwatch/internal/expiry"
)

// UpcomingExpiration is one entry in the upcoming-expirations listing.
type UpcomingExpiration struct {
	ID       string    `json:"id"`
	Name     string    `json:"name"`
	Expiry   time.Time `json:"expiry"`
	DaysLeft int       `json:"daysLeft"`
	Urgency  string    `json:"urgency"`
}

// Summary is the analytics aggregate for one user.
type Summary struct {
	TotalSubscriptions  int                  `json:"totalSubscriptions"`
	TotalMonthlyCost    float64              `json:"totalMonthlyCost"`
	TotalYearlyCost     float64              `json:"totalYearlyCost"`
	MonthlyEquivalent   float64              `json:"monthlyEquivalent"`
	ExpiringSoon        int                  `json:"expiringSoon"`
	Critical            int                  `json:"critical"`
	UpcomingExpirations []UpcomingExpiration `json:"upcomingExpirations"`
}

// Summarize computes the aggregate for a user's subscriptions at the given
// time. A subscription inside the 3-day window is listed in
// UpcomingExpirations twice, once per bucket it belongs to; the overlap is
// part of the reported shape.
func Summarize(user *domain.User, now time.Time) *Summary {
	summary := &Summary{
		TotalSubscriptions:  len(user.Subscriptions),
		UpcomingExpirations: []UpcomingExpiration{},
	}

	for _, sub := range user.Subscriptions {
		switch sub.Cycle {
		case domain.CycleMonthly:
			summary.TotalMonthlyCost += sub.Cost
		case domain.CycleYearly:
			summary.TotalYearlyCost += sub.Cost
		}

		days := expiry.DaysUntil(now, sub.Expiry)
		if expiry.IsCritical(days) {
			summary.Critical++
		}
		if expiry.IsExpiringSoon(days) {
			summary.ExpiringSoon++
			summary.UpcomingExpirations = append(summary.UpcomingExpirations, UpcomingExpiration{
				ID:       sub.ID,
				Name:     sub.Name,
				Expiry:   sub.Expiry,
				DaysLeft: days,
				Urgency:  string(expiry.KindExpiringSoon),
			})
		}
		if expiry.IsUpcoming(days) {
			summary.UpcomingExpirations = append(summary.UpcomingExpirations, UpcomingExpiration{
				ID:       sub.ID,
				Name:     sub.Name,
				Expiry:   sub.Expiry,
				DaysLeft: days,
				Urgency:  "upcoming",
			})
		}
	}

	summary.MonthlyEquivalent = summary.TotalMonthlyCost + summary.TotalYearlyCost/12
	return summary
}
