package auth

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/subwatch/subwatch/internal/domain"
	"github.com/subwatch/subwatch/internal/store"
)

func newTestVerification(t *testing.T, ttl time.Duration) (*VerificationService, *store.UsersStore, *store.PendingStore, *store.TokensStore) {
	t.Helper()
	dir := t.TempDir()
	users := store.NewUsersStore(dir)
	pending := store.NewPendingStore(dir)
	tokens := store.NewTokensStore(dir)
	svc := NewVerificationService(
		VerificationConfig{TokenTTL: ttl},
		slog.New(slog.NewTextHandler(io.Discard, nil)),
		tokens, users, pending,
	)
	return svc, users, pending, tokens
}

func testPendingUser(googleID, email string) *domain.PendingUser {
	return &domain.PendingUser{
		GoogleID:  googleID,
		Email:     email,
		Name:      "Test User",
		CreatedAt: time.Now(),
	}
}

func TestVerification_CreateAndVerify(t *testing.T) {
	ctx := context.Background()
	svc, _, _, _ := newTestVerification(t, 15*time.Minute)

	raw, err := svc.CreateToken(ctx, "alice@example.com")
	if err != nil {
		t.Fatalf("CreateToken failed: %v", err)
	}
	if raw == "" {
		t.Fatal("CreateToken returned empty token")
	}

	if !svc.Verify(ctx, "alice@example.com", raw) {
		t.Error("Verify with correct token = false, want true")
	}

	// The token is single-use.
	if svc.Verify(ctx, "alice@example.com", raw) {
		t.Error("Verify after consumption = true, want false")
	}
}

func TestVerification_WrongGuessDoesNotBurnToken(t *testing.T) {
	ctx := context.Background()
	svc, _, _, _ := newTestVerification(t, 15*time.Minute)

	raw, err := svc.CreateToken(ctx, "alice@example.com")
	if err != nil {
		t.Fatalf("CreateToken failed: %v", err)
	}

	if svc.Verify(ctx, "alice@example.com", "not-the-token") {
		t.Error("Verify with wrong token = true, want false")
	}
	if !svc.Verify(ctx, "alice@example.com", raw) {
		t.Error("Verify with correct token after a wrong guess = false, want true")
	}
}

func TestVerification_WrongEmail(t *testing.T) {
	ctx := context.Background()
	svc, _, _, _ := newTestVerification(t, 15*time.Minute)

	raw, err := svc.CreateToken(ctx, "alice@example.com")
	if err != nil {
		t.Fatalf("CreateToken failed: %v", err)
	}

	if svc.Verify(ctx, "bob@example.com", raw) {
		t.Error("Verify against another email = true, want false")
	}
}

func TestVerification_ExpiredTokenPurged(t *testing.T) {
	ctx := context.Background()
	svc, _, _, tokens := newTestVerification(t, -time.Minute)

	raw, err := svc.CreateToken(ctx, "alice@example.com")
	if err != nil {
		t.Fatalf("CreateToken failed: %v", err)
	}

	if svc.Verify(ctx, "alice@example.com", raw) {
		t.Error("Verify with expired token = true, want false")
	}

	// Expired tokens are removed on detection.
	if _, err := tokens.Get(ctx, "alice@example.com"); err == nil {
		t.Error("expired token still present after Verify")
	}
	if exp := svc.TokenExpiry(ctx, "alice@example.com"); exp != nil {
		t.Errorf("TokenExpiry after purge = %v, want nil", exp)
	}
}

func TestVerification_NewTokenReplacesOld(t *testing.T) {
	ctx := context.Background()
	svc, _, _, _ := newTestVerification(t, 15*time.Minute)

	first, err := svc.CreateToken(ctx, "alice@example.com")
	if err != nil {
		t.Fatalf("CreateToken failed: %v", err)
	}
	second, err := svc.CreateToken(ctx, "alice@example.com")
	if err != nil {
		t.Fatalf("CreateToken failed: %v", err)
	}

	if svc.Verify(ctx, "alice@example.com", first) {
		t.Error("Verify with replaced token = true, want false")
	}
	if !svc.Verify(ctx, "alice@example.com", second) {
		t.Error("Verify with live token = false, want true")
	}
}

func TestVerification_TokenExpiry(t *testing.T) {
	ctx := context.Background()
	svc, _, _, _ := newTestVerification(t, 15*time.Minute)

	if exp := svc.TokenExpiry(ctx, "alice@example.com"); exp != nil {
		t.Errorf("TokenExpiry with no token = %v, want nil", exp)
	}

	before := time.Now()
	if _, err := svc.CreateToken(ctx, "alice@example.com"); err != nil {
		t.Fatalf("CreateToken failed: %v", err)
	}

	exp := svc.TokenExpiry(ctx, "alice@example.com")
	if exp == nil {
		t.Fatal("TokenExpiry = nil, want a time")
	}
	want := before.Add(15 * time.Minute)
	if exp.Before(want.Add(-time.Minute)) || exp.After(want.Add(time.Minute)) {
		t.Errorf("TokenExpiry = %v, want about %v", exp, want)
	}
}

func TestMarkEmailVerified_PromotesPendingUser(t *testing.T) {
	ctx := context.Background()
	svc, users, pending, _ := newTestVerification(t, 15*time.Minute)

	if err := pending.Put(ctx, testPendingUser("g-1", "alice@example.com")); err != nil {
		t.Fatalf("pending Put failed: %v", err)
	}

	if err := svc.MarkEmailVerified(ctx, "alice@example.com"); err != nil {
		t.Fatalf("MarkEmailVerified failed: %v", err)
	}

	user, err := users.GetByEmail(ctx, "alice@example.com")
	if err != nil {
		t.Fatalf("promoted user not found: %v", err)
	}
	if !user.Profile.EmailVerified {
		t.Error("promoted user EmailVerified = false, want true")
	}
	if !user.Profile.EmailNotifications.Enabled {
		t.Error("promoted user should start with notifications enabled")
	}

	if _, err := pending.Get(ctx, "g-1"); err == nil {
		t.Error("pending record still present after promotion")
	}
}

func TestMarkEmailVerified_Idempotent(t *testing.T) {
	ctx := context.Background()
	svc, users, pending, _ := newTestVerification(t, 15*time.Minute)

	if err := pending.Put(ctx, testPendingUser("g-1", "alice@example.com")); err != nil {
		t.Fatalf("pending Put failed: %v", err)
	}
	if err := svc.MarkEmailVerified(ctx, "alice@example.com"); err != nil {
		t.Fatalf("first MarkEmailVerified failed: %v", err)
	}
	if err := svc.MarkEmailVerified(ctx, "alice@example.com"); err != nil {
		t.Fatalf("second MarkEmailVerified failed: %v", err)
	}

	all, err := users.All(ctx)
	if err != nil {
		t.Fatalf("All failed: %v", err)
	}
	if len(all) != 1 {
		t.Fatalf("len(users) = %d, want 1", len(all))
	}
}

func TestMarkEmailVerified_ActiveWinsOverStalePending(t *testing.T) {
	ctx := context.Background()
	svc, users, pending, _ := newTestVerification(t, 15*time.Minute)

	// Simulate a crash between the active write and the pending delete.
	now := time.Now()
	active := &domain.User{
		GoogleID: "g-1",
		Profile: domain.Profile{
			Email:              "alice@example.com",
			EmailVerified:      true,
			EmailNotifications: domain.DefaultNotificationPrefs(),
		},
		Subscriptions: []domain.Subscription{
			{ID: "sub-1", Name: "Netflix", Expiry: now.Add(48 * time.Hour), Cost: 10, Cycle: domain.CycleMonthly, CreatedAt: now},
		},
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := users.Put(ctx, active); err != nil {
		t.Fatalf("users Put failed: %v", err)
	}
	if err := pending.Put(ctx, testPendingUser("g-1", "alice@example.com")); err != nil {
		t.Fatalf("pending Put failed: %v", err)
	}

	if err := svc.MarkEmailVerified(ctx, "alice@example.com"); err != nil {
		t.Fatalf("MarkEmailVerified failed: %v", err)
	}

	// The active record, subscriptions included, survives; the stale
	// pending record is cleaned up.
	got, err := users.Get(ctx, "g-1")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if len(got.Subscriptions) != 1 {
		t.Errorf("len(Subscriptions) = %d, want 1", len(got.Subscriptions))
	}
	if _, err := pending.Get(ctx, "g-1"); err == nil {
		t.Error("stale pending record still present")
	}

	if !svc.IsEmailVerified(ctx, "alice@example.com") {
		t.Error("IsEmailVerified = false, want true")
	}
}

func TestMarkEmailVerified_UnknownEmail(t *testing.T) {
	ctx := context.Background()
	svc, users, _, _ := newTestVerification(t, 15*time.Minute)

	// Unknown email is logged, not an error, and creates nothing.
	if err := svc.MarkEmailVerified(ctx, "nobody@example.com"); err != nil {
		t.Errorf("MarkEmailVerified for unknown email = %v, want nil", err)
	}
	all, err := users.All(ctx)
	if err != nil {
		t.Fatalf("All failed: %v", err)
	}
	if len(all) != 0 {
		t.Errorf("len(users) = %d, want 0", len(all))
	}
}

func TestVerification_EndToEndSignupFlow(t *testing.T) {
	ctx := context.Background()
	svc, users, pending, _ := newTestVerification(t, 15*time.Minute)

	if err := pending.Put(ctx, testPendingUser("g-1", "alice@example.com")); err != nil {
		t.Fatalf("pending Put failed: %v", err)
	}
	raw, err := svc.CreateToken(ctx, "alice@example.com")
	if err != nil {
		t.Fatalf("CreateToken failed: %v", err)
	}

	if svc.IsEmailVerified(ctx, "alice@example.com") {
		t.Error("IsEmailVerified before verification = true, want false")
	}

	if !svc.Verify(ctx, "alice@example.com", raw) {
		t.Fatal("Verify failed with correct token")
	}
	if err := svc.MarkEmailVerified(ctx, "alice@example.com"); err != nil {
		t.Fatalf("MarkEmailVerified failed: %v", err)
	}

	if !svc.IsEmailVerified(ctx, "alice@example.com") {
		t.Error("IsEmailVerified after verification = false, want true")
	}
	if _, err := users.GetByEmail(ctx, "alice@example.com"); err != nil {
		t.Errorf("active user missing after flow: %v", err)
	}
}
