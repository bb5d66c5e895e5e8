package analytics

import (
	"testing"
	"time"

	"github.com/subwatch/subwatch/internal/domain"
)

var now = time.Date(2026, 9, 1, 12, 0, 0, 0, time.UTC)

func TestSummarize_CostTotals(t *testing.T) {
	user := &domain.User{
		Subscriptions: []domain.Subscription{
			{ID: "1", Name: "Netflix", Cost: 10, Cycle: domain.CycleMonthly, Expiry: now.AddDate(1, 0, 0)},
			{ID: "2", Name: "Domain", Cost: 120, Cycle: domain.CycleYearly, Expiry: now.AddDate(1, 0, 0)},
		},
	}

	got := Summarize(user, now)

	if got.TotalSubscriptions != 2 {
		t.Errorf("TotalSubscriptions = %d, want 2", got.TotalSubscriptions)
	}
	if got.TotalMonthlyCost != 10 {
		t.Errorf("TotalMonthlyCost = %v, want 10", got.TotalMonthlyCost)
	}
	if got.TotalYearlyCost != 120 {
		t.Errorf("TotalYearlyCost = %v, want 120", got.TotalYearlyCost)
	}
	if got.MonthlyEquivalent != 20 {
		t.Errorf("MonthlyEquivalent = %v, want 20", got.MonthlyEquivalent)
	}
}

func TestSummarize_Buckets(t *testing.T) {
	user := &domain.User{
		Subscriptions: []domain.Subscription{
			{ID: "expired", Name: "Old", Cycle: domain.CycleMonthly, Expiry: now.Add(-48 * time.Hour)},
			{ID: "today", Name: "Today", Cycle: domain.CycleMonthly, Expiry: now},
			{ID: "soon", Name: "Soon", Cycle: domain.CycleMonthly, Expiry: now.Add(60 * time.Hour)},
			{ID: "later", Name: "Later", Cycle: domain.CycleMonthly, Expiry: now.Add(20 * 24 * time.Hour)},
			{ID: "far", Name: "Far", Cycle: domain.CycleMonthly, Expiry: now.AddDate(0, 6, 0)},
		},
	}

	got := Summarize(user, now)

	// expired and today are critical; today (0 days) is excluded from soon.
	if got.Critical != 2 {
		t.Errorf("Critical = %d, want 2", got.Critical)
	}
	if got.ExpiringSoon != 1 {
		t.Errorf("ExpiringSoon = %d, want 1", got.ExpiringSoon)
	}

	// "soon" appears twice (soon + upcoming), "later" once, the rest never.
	counts := map[string]int{}
	for _, u := range got.UpcomingExpirations {
		counts[u.ID]++
	}
	if counts["soon"] != 2 {
		t.Errorf("soon listed %d times, want 2 (bucket overlap is kept)", counts["soon"])
	}
	if counts["later"] != 1 {
		t.Errorf("later listed %d times, want 1", counts["later"])
	}
	if counts["expired"] != 0 || counts["today"] != 0 || counts["far"] != 0 {
		t.Errorf("unexpected upcoming entries: %v", counts)
	}
}

func TestSummarize_Empty(t *testing.T) {
	got := Summarize(&domain.User{}, now)
	if got.TotalSubscriptions != 0 || got.MonthlyEquivalent != 0 {
		t.Errorf("empty summary = %+v, want zeroes", got)
	}
	if got.UpcomingExpirations == nil {
		t.Error("UpcomingExpirations should be an empty slice, not nil")
	}
}
