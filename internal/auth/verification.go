package auth

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/subwatch/subwatch/internal/domain"
	"github.com/subwatch/subwatch/internal/store"
)

// DefaultEmailVerificationTTL is the validity window for verification tokens.
const DefaultEmailVerificationTTL = 15 * time.Minute

// VerificationConfig holds verification service configuration.
type VerificationConfig struct {
	TokenTTL time.Duration
}

// VerificationService issues and retires single-use email verification
// tokens and handles the pending-to-active account promotion.
type VerificationService struct {
	config  VerificationConfig
	logger  *slog.Logger
	tokens  *store.TokensStore
	users   *store.UsersStore
	pending *store.PendingStore
}

// NewVerificationService creates a new verification service.
func NewVerificationService(
	config VerificationConfig,
	logger *slog.Logger,
	tokens *store.TokensStore,
	users *store.UsersStore,
	pending *store.PendingStore,
) *VerificationService {
	if config.TokenTTL == 0 {
		config.TokenTTL = DefaultEmailVerificationTTL
	}
	return &VerificationService{
		config:  config,
		logger:  logger,
		tokens:  tokens,
		users:   users,
		pending: pending,
	}
}

// TokenTTL returns the configured token lifetime.
func (s *VerificationService) TokenTTL() time.Duration {
	return s.config.TokenTTL
}

// CreateToken issues a new verification token for the email, replacing any
// prior token for that address, and returns the raw value for the
// verification link. The caller is responsible for sending the email; a
// failed send does not invalidate the token.
func (s *VerificationService) CreateToken(ctx context.Context, email string) (string, error) {
	raw, err := GenerateToken(32)
	if err != nil {
		return "", err
	}

	now := time.Now()
	token := &domain.VerificationToken{
		Email:     email,
		TokenHash: HashToken(raw),
		CreatedAt: now,
		ExpiresAt: now.Add(s.config.TokenTTL),
	}
	if err := s.tokens.Put(ctx, token); err != nil {
		return "", err
	}

	s.logger.Info("verification token created", "email", email, "expires_at", token.ExpiresAt)
	return raw, nil
}

// Verify checks a raw token against the live token for the email. The caller
// only sees success or failure; the absent, expired, and mismatch cases are
// distinguished in logs for auditability. An expired token is purged on
// detection. A mismatching guess does not burn the live token.
func (s *VerificationService) Verify(ctx context.Context, email, raw string) bool {
	token, err := s.tokens.Get(ctx, email)
	if err != nil {
		if errors.Is(err, domain.ErrVerificationTokenNotFound) {
			s.logger.Info("verification failed: no token on file", "email", email)
		} else {
			s.logger.Error("verification failed: token lookup error", "email", email, "error", err)
		}
		return false
	}

	if token.Expired(time.Now()) {
		if err := s.tokens.Delete(ctx, email); err != nil {
			s.logger.Error("failed to purge expired token", "email", email, "error", err)
		}
		s.logger.Info("verification failed: token expired", "email", email, "expired_at", token.ExpiresAt)
		return false
	}

	if HashToken(raw) != token.TokenHash {
		s.logger.Info("verification failed: token mismatch", "email", email)
		return false
	}

	// Consumed on success.
	if err := s.tokens.Delete(ctx, email); err != nil {
		s.logger.Error("failed to consume token", "email", email, "error", err)
	}
	s.logger.Info("verification token accepted", "email", email)
	return true
}

// TokenExpiry returns the live token's expiry for the email, or nil when no
// token is on file.
func (s *VerificationService) TokenExpiry(ctx context.Context, email string) *time.Time {
	token, err := s.tokens.Get(ctx, email)
	if err != nil {
		return nil
	}
	return &token.ExpiresAt
}

// MarkEmailVerified flips the verified flag for the account with this email.
// An already-active account is updated in place; a pending account is
// promoted into the users store with default notification preferences and
// removed from the pending store. Idempotent. Checking the active store
// first doubles as crash reconciliation: an account left in both stores by
// an interrupted promotion resolves to the active record and the stale
// pending entry is cleaned up.
func (s *VerificationService) MarkEmailVerified(ctx context.Context, email string) error {
	if user, err := s.users.GetByEmail(ctx, email); err == nil {
		if !user.Profile.EmailVerified {
			err := s.users.Update(ctx, user.GoogleID, func(u *domain.User) error {
				u.Profile.EmailVerified = true
				return nil
			})
			if err != nil {
				return err
			}
			s.logger.Info("marked active account verified", "email", email)
		}
		// Remove any stale pending record left by an interrupted promotion.
		if err := s.pending.Delete(ctx, user.GoogleID); err != nil {
			s.logger.Error("failed to clean up stale pending record", "email", email, "error", err)
		}
		return nil
	} else if !errors.Is(err, domain.ErrUserNotFound) {
		return err
	}

	pending, err := s.pending.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, domain.ErrPendingUserNotFound) {
			s.logger.Warn("mark verified: no account for email", "email", email)
			return nil
		}
		return err
	}

	// Promote. The active write lands before the pending delete so a crash
	// in between leaves the account in both stores, which the active-first
	// check above resolves.
	user := pending.Activate(time.Now())
	if err := s.users.Put(ctx, user); err != nil {
		return err
	}
	if err := s.pending.Delete(ctx, pending.GoogleID); err != nil {
		s.logger.Error("promotion: failed to delete pending record", "email", email, "error", err)
	}

	s.logger.Info("pending account promoted", "email", email, "google_id", pending.GoogleID)
	return nil
}

// IsEmailVerified reports whether the account with this email is verified.
// An account present in both stores resolves to the active record; a
// pending-only account is unverified by definition; an unknown email is
// unverified.
func (s *VerificationService) IsEmailVerified(ctx context.Context, email string) bool {
	if user, err := s.users.GetByEmail(ctx, email); err == nil {
		return user.Profile.EmailVerified
	}
	if _, err := s.pending.GetByEmail(ctx, email); err == nil {
		return false
	}
	return false
}
