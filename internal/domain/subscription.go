package domain

import "time"

// Cycle is a subscription billing cycle.
type Cycle string

const (
	CycleMonthly Cycle = "monthly"
	CycleYearly  Cycle = "yearly"
)

// Valid reports whether the cycle is one of the known values.
func (c Cycle) Valid() bool {
	return c == CycleMonthly || c == CycleYearly
}

// Subscription is a tracked subscription owned by exactly one user.
type Subscription struct {
	ID          string     `json:"id"`
	Name        string     `json:"name"`
	Expiry      time.Time  `json:"expiry"`
	Cost        float64    `json:"cost"`
	Cycle       Cycle      `json:"cycle"`
	Notes       string     `json:"notes,omitempty"`
	AutoRenew   bool       `json:"autoRenew"`
	FinalExpiry *time.Time `json:"finalExpiry,omitempty"`
	CreatedAt   time.Time  `json:"createdAt"`
}
