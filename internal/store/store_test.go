package store

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/subwatch/subwatch/internal/domain"
)

func testUser(googleID, email string) *domain.User {
	now := time.Now()
	return &domain.User{
		GoogleID: googleID,
		Profile: domain.Profile{
			Email:              email,
			Name:               "Test User",
			EmailVerified:      true,
			EmailNotifications: domain.DefaultNotificationPrefs(),
		},
		Subscriptions: []domain.Subscription{},
		CreatedAt:     now,
		UpdatedAt:     now,
	}
}

func TestUsersStore_PutGetDelete(t *testing.T) {
	ctx := context.Background()
	s := NewUsersStore(t.TempDir())

	if _, err := s.Get(ctx, "g-1"); !errors.Is(err, domain.ErrUserNotFound) {
		t.Fatalf("Get on empty store = %v, want ErrUserNotFound", err)
	}

	user := testUser("g-1", "alice@example.com")
	if err := s.Put(ctx, user); err != nil {
		t.Fatalf("Put failed: %v", err)
	}

	got, err := s.Get(ctx, "g-1")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if got.Profile.Email != "alice@example.com" {
		t.Errorf("Email = %q, want %q", got.Profile.Email, "alice@example.com")
	}
	if got.GoogleID != "g-1" {
		t.Errorf("GoogleID = %q, want %q", got.GoogleID, "g-1")
	}

	byEmail, err := s.GetByEmail(ctx, "alice@example.com")
	if err != nil {
		t.Fatalf("GetByEmail failed: %v", err)
	}
	if byEmail.GoogleID != "g-1" {
		t.Errorf("GetByEmail GoogleID = %q, want %q", byEmail.GoogleID, "g-1")
	}

	if err := s.Delete(ctx, "g-1"); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	if _, err := s.Get(ctx, "g-1"); !errors.Is(err, domain.ErrUserNotFound) {
		t.Errorf("Get after Delete = %v, want ErrUserNotFound", err)
	}
	if err := s.Delete(ctx, "g-1"); !errors.Is(err, domain.ErrUserNotFound) {
		t.Errorf("second Delete = %v, want ErrUserNotFound", err)
	}
}

func TestUsersStore_FileLayout(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	s := NewUsersStore(dir)

	if err := s.Put(ctx, testUser("g-1", "alice@example.com")); err != nil {
		t.Fatalf("Put failed: %v", err)
	}

	data, err := os.ReadFile(filepath.Join(dir, "subscriptions.json"))
	if err != nil {
		t.Fatalf("reading subscriptions.json: %v", err)
	}

	// Document root must be {"users": {...}} and pretty-printed.
	var doc struct {
		Users map[string]json.RawMessage `json:"users"`
	}
	if err := json.Unmarshal(data, &doc); err != nil {
		t.Fatalf("subscriptions.json is not valid JSON: %v", err)
	}
	if _, ok := doc.Users["g-1"]; !ok {
		t.Error("users map missing key g-1")
	}
	if !json.Valid(data) || data[1] != '\n' {
		t.Error("expected pretty-printed document")
	}
}

func TestUsersStore_SubscriptionHelpers(t *testing.T) {
	ctx := context.Background()
	s := NewUsersStore(t.TempDir())
	if err := s.Put(ctx, testUser("g-1", "alice@example.com")); err != nil {
		t.Fatalf("Put failed: %v", err)
	}

	sub := domain.Subscription{
		ID:        "sub-1",
		Name:      "Netflix",
		Expiry:    time.Now().AddDate(0, 1, 0),
		Cost:      15.99,
		Cycle:     domain.CycleMonthly,
		CreatedAt: time.Now(),
	}
	if err := s.AddSubscription(ctx, "g-1", sub); err != nil {
		t.Fatalf("AddSubscription failed: %v", err)
	}

	sub.Cost = 17.99
	if err := s.UpdateSubscription(ctx, "g-1", sub); err != nil {
		t.Fatalf("UpdateSubscription failed: %v", err)
	}

	got, err := s.Get(ctx, "g-1")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if len(got.Subscriptions) != 1 || got.Subscriptions[0].Cost != 17.99 {
		t.Errorf("subscriptions = %+v, want one entry with cost 17.99", got.Subscriptions)
	}

	if err := s.UpdateSubscription(ctx, "g-1", domain.Subscription{ID: "missing"}); !errors.Is(err, domain.ErrSubscriptionNotFound) {
		t.Errorf("UpdateSubscription missing = %v, want ErrSubscriptionNotFound", err)
	}

	if err := s.RemoveSubscription(ctx, "g-1", "sub-1"); err != nil {
		t.Fatalf("RemoveSubscription failed: %v", err)
	}
	got, _ = s.Get(ctx, "g-1")
	if len(got.Subscriptions) != 0 {
		t.Errorf("subscriptions after remove = %d, want 0", len(got.Subscriptions))
	}
}

func TestUsersStore_ConcurrentUpdates(t *testing.T) {
	ctx := context.Background()
	s := NewUsersStore(t.TempDir())
	if err := s.Put(ctx, testUser("g-1", "alice@example.com")); err != nil {
		t.Fatalf("Put failed: %v", err)
	}

	const n = 20
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			err := s.AddSubscription(ctx, "g-1", domain.Subscription{
				ID:    "sub-" + string(rune('a'+i)),
				Name:  "Service",
				Cycle: domain.CycleMonthly,
			})
			if err != nil {
				t.Errorf("AddSubscription failed: %v", err)
			}
		}(i)
	}
	wg.Wait()

	got, err := s.Get(ctx, "g-1")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if len(got.Subscriptions) != n {
		t.Errorf("subscriptions = %d, want %d (lost update)", len(got.Subscriptions), n)
	}
}

func TestPendingStore(t *testing.T) {
	ctx := context.Background()
	s := NewPendingStore(t.TempDir())

	pending := &domain.PendingUser{
		GoogleID:  "g-2",
		Email:     "bob@example.com",
		Name:      "Bob",
		CreatedAt: time.Now(),
	}
	if err := s.Put(ctx, pending); err != nil {
		t.Fatalf("Put failed: %v", err)
	}

	got, err := s.GetByEmail(ctx, "bob@example.com")
	if err != nil {
		t.Fatalf("GetByEmail failed: %v", err)
	}
	if got.GoogleID != "g-2" {
		t.Errorf("GoogleID = %q, want %q", got.GoogleID, "g-2")
	}

	if err := s.Delete(ctx, "g-2"); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	// Deleting again must not error: promotion is idempotent.
	if err := s.Delete(ctx, "g-2"); err != nil {
		t.Errorf("second Delete = %v, want nil", err)
	}
	if _, err := s.Get(ctx, "g-2"); !errors.Is(err, domain.ErrPendingUserNotFound) {
		t.Errorf("Get after Delete = %v, want ErrPendingUserNotFound", err)
	}
}

func TestTokensStore_OverwritePerEmail(t *testing.T) {
	ctx := context.Background()
	s := NewTokensStore(t.TempDir())

	now := time.Now()
	first := &domain.VerificationToken{
		Email:     "carol@example.com",
		TokenHash: "hash-1",
		CreatedAt: now,
		ExpiresAt: now.Add(15 * time.Minute),
	}
	if err := s.Put(ctx, first); err != nil {
		t.Fatalf("Put failed: %v", err)
	}

	second := &domain.VerificationToken{
		Email:     "carol@example.com",
		TokenHash: "hash-2",
		CreatedAt: now.Add(time.Minute),
		ExpiresAt: now.Add(16 * time.Minute),
	}
	if err := s.Put(ctx, second); err != nil {
		t.Fatalf("second Put failed: %v", err)
	}

	got, err := s.Get(ctx, "carol@example.com")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if got.TokenHash != "hash-2" {
		t.Errorf("TokenHash = %q, want %q (new token must replace old)", got.TokenHash, "hash-2")
	}

	if err := s.Delete(ctx, "carol@example.com"); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	if _, err := s.Get(ctx, "carol@example.com"); !errors.Is(err, domain.ErrVerificationTokenNotFound) {
		t.Errorf("Get after Delete = %v, want ErrVerificationTokenNotFound", err)
	}
}
