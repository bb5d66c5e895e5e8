package domain

import "time"

// VerificationToken is a single-use email verification token. At most one
// live token exists per email; issuing a new one replaces the old. Only the
// SHA-256 hash of the token value is stored.
type VerificationToken struct {
	Email     string    `json:"email"`
	TokenHash string    `json:"tokenHash"`
	CreatedAt time.Time `json:"createdAt"`
	ExpiresAt time.Time `json:"expiresAt"`
}

// Expired reports whether the token has passed its expiry at the given time.
func (t *VerificationToken) Expired(now time.Time) bool {
	return now.After(t.ExpiresAt)
}
