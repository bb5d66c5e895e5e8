package domain

import "time"

// NotificationPrefs controls which email notifications a user receives.
// Enabled is the master switch; when false no notification of any kind
// is sent regardless of the per-kind flags.
type NotificationPrefs struct {
	Enabled      bool `json:"enabled"`
	ExpiringSoon bool `json:"expiringSoon"`
	Critical     bool `json:"critical"`
	Weekly       bool `json:"weekly"`
	Monthly      bool `json:"monthly"`
}

// DefaultNotificationPrefs returns the preferences assigned to a freshly
// activated account: everything on.
func DefaultNotificationPrefs() NotificationPrefs {
	return NotificationPrefs{
		Enabled:      true,
		ExpiringSoon: true,
		Critical:     true,
		Weekly:       true,
		Monthly:      true,
	}
}

// RecoveryCode is a single-use two-factor recovery code, stored hashed.
type RecoveryCode struct {
	Hash   string     `json:"hash"`
	UsedAt *time.Time `json:"usedAt,omitempty"`
}

// IsUsed returns true if the recovery code has been consumed.
func (c *RecoveryCode) IsUsed() bool {
	return c.UsedAt != nil
}

// TwoFactor holds a user's TOTP enrollment. SecretEncrypted is the
// AES-256-GCM-encrypted TOTP secret; it is present but Enabled stays false
// until the user confirms enrollment with a valid code.
type TwoFactor struct {
	Enabled         bool           `json:"enabled"`
	SecretEncrypted string         `json:"secretEncrypted,omitempty"`
	RecoveryCodes   []RecoveryCode `json:"recoveryCodes,omitempty"`
}

// Profile is the account profile attached to an active user.
type Profile struct {
	Email              string            `json:"email"`
	Name               string            `json:"name"`
	Picture            string            `json:"picture,omitempty"`
	EmailVerified      bool              `json:"emailVerified"`
	EmailNotifications NotificationPrefs `json:"emailNotifications"`
	TwoFactor          TwoFactor         `json:"twoFactor"`
}

// User is a fully provisioned account. Keyed by GoogleID in the users store;
// the key is not serialized inside the record itself.
type User struct {
	GoogleID      string         `json:"-"`
	Profile       Profile        `json:"profile"`
	Subscriptions []Subscription `json:"subscriptions"`
	CreatedAt     time.Time      `json:"createdAt"`
	UpdatedAt     time.Time      `json:"updatedAt"`
}

// Subscription returns the subscription with the given ID, or nil.
func (u *User) Subscription(id string) *Subscription {
	for i := range u.Subscriptions {
		if u.Subscriptions[i].ID == id {
			return &u.Subscriptions[i]
		}
	}
	return nil
}

// PendingUser is a signed-in account awaiting email verification. It exists
// in exactly one store at a time with its active counterpart; verification
// promotes it into the users store.
type PendingUser struct {
	GoogleID  string    `json:"googleId"`
	Email     string    `json:"email"`
	Name      string    `json:"name"`
	Picture   string    `json:"picture,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
}

// Activate materializes an active user from a pending record.
func (p *PendingUser) Activate(now time.Time) *User {
	return &User{
		GoogleID: p.GoogleID,
		Profile: Profile{
			Email:              p.Email,
			Name:               p.Name,
			Picture:            p.Picture,
			EmailVerified:      true,
			EmailNotifications: DefaultNotificationPrefs(),
		},
		Subscriptions: []Subscription{},
		CreatedAt:     p.CreatedAt,
		UpdatedAt:     now,
	}
}
