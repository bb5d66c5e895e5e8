package domain

import "errors"

// Account errors
var (
	ErrUserNotFound         = errors.New("user not found")
	ErrPendingUserNotFound  = errors.New("pending user not found")
	ErrSubscriptionNotFound = errors.New("subscription not found")
)

// Verification errors
var (
	ErrVerificationTokenNotFound = errors.New("verification token not found")
	ErrVerificationTokenExpired  = errors.New("verification token expired")
	ErrVerificationTokenInvalid  = errors.New("invalid verification token")
)

// Session errors
var (
	ErrInvalidSession = errors.New("invalid or expired session")
)

// Two-factor errors
var (
	ErrTwoFactorNotEnabled     = errors.New("two-factor authentication is not enabled")
	ErrTwoFactorAlreadyEnabled = errors.New("two-factor authentication is already enabled")
	ErrTwoFactorNotEnrolled    = errors.New("two-factor enrollment has not been started")
	ErrInvalidTwoFactorCode    = errors.New("invalid two-factor code")
	ErrInvalidRecoveryCode     = errors.New("invalid or already used recovery code")
	ErrChallengeExpired        = errors.New("two-factor challenge expired")
)

// Validation errors
var (
	ErrInvalidCycle  = errors.New("cycle must be monthly or yearly")
	ErrInvalidExpiry = errors.New("invalid expiry date")
)
