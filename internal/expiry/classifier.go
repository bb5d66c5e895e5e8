// Package expiry classifies subscriptions into urgency buckets relative to
// a reference time.
package expiry

import (
	"math"
	"time"

	"github.com/subwatch/subwatch/internal/domain"
)

// Kind identifies a notification category.
type Kind string

const (
	KindCritical     Kind = "critical"
	KindExpiringSoon Kind = "expiring_soon"
	KindWeekly       Kind = "weekly"
	KindMonthly      Kind = "monthly"
)

// Bucket thresholds in days.
const (
	CriticalDays = 1
	SoonDays     = 3
	UpcomingDays = 30
)

// DaysUntil returns the number of whole days from now until expiry, rounded
// up. Already-expired subscriptions yield zero or negative values.
func DaysUntil(now, expiry time.Time) int {
	return int(math.Ceil(expiry.Sub(now).Hours() / 24))
}

// HoursUntil returns the number of hours from now until expiry, rounded up.
func HoursUntil(now, expiry time.Time) int {
	return int(math.Ceil(expiry.Sub(now).Hours()))
}

// IsCritical reports whether a subscription this many days from expiry is in
// the critical bucket. Expired subscriptions (zero or negative days) are
// critical too.
func IsCritical(days int) bool {
	return days <= CriticalDays
}

// IsExpiringSoon reports whether the days-until value falls in the
// expiring-soon bucket. A subscription expiring right now (zero days) is
// critical but not expiring-soon; the strict lower bound is intended.
func IsExpiringSoon(days int) bool {
	return days > 0 && days <= SoonDays
}

// IsUpcoming reports whether the days-until value falls in the 30-day
// upcoming window. Upcoming is a superset of expiring-soon; membership
// overlap is intended.
func IsUpcoming(days int) bool {
	return days > 0 && days <= UpcomingDays
}

// ShouldSend reports whether a notification of the given kind should be sent
// under the user's preferences. The master switch wins over every per-kind
// flag.
func ShouldSend(prefs domain.NotificationPrefs, kind Kind) bool {
	if !prefs.Enabled {
		return false
	}
	switch kind {
	case KindCritical:
		return prefs.Critical
	case KindExpiringSoon:
		return prefs.ExpiringSoon
	case KindWeekly:
		return prefs.Weekly
	case KindMonthly:
		return prefs.Monthly
	default:
		return false
	}
}
