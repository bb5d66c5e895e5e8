package store

import (
	"context"
	"path/filepath"

	"github.com/subwatch/subwatch/internal/domain"
)

type pendingDoc struct {
	Users map[string]*domain.PendingUser `json:"users"`
}

// PendingStore persists users awaiting email verification, keyed by Google ID.
type PendingStore struct {
	file *jsonFile
}

// NewPendingStore creates a pending-user store backed by
// pending_verification.json in dataDir.
func NewPendingStore(dataDir string) *PendingStore {
	return &PendingStore{file: newJSONFile(filepath.Join(dataDir, "pending_verification.json"))}
}

func (s *PendingStore) read() (*pendingDoc, error) {
	doc := &pendingDoc{}
	if err := s.file.load(doc); err != nil {
		return nil, err
	}
	if doc.Users == nil {
		doc.Users = make(map[string]*domain.PendingUser)
	}
	return doc, nil
}

// Get retrieves a pending user by Google ID.
func (s *PendingStore) Get(ctx context.Context, googleID string) (*domain.PendingUser, error) {
	var pending *domain.PendingUser
	err := s.file.update(func() error {
		doc, err := s.read()
		if err != nil {
			return err
		}
		p, ok := doc.Users[googleID]
		if !ok {
			return domain.ErrPendingUserNotFound
		}
		pending = p
		return nil
	})
	if err != nil {
		return nil, err
	}
	return pending, nil
}

// GetByEmail scans for a pending user with the given email.
func (s *PendingStore) GetByEmail(ctx context.Context, email string) (*domain.PendingUser, error) {
	var pending *domain.PendingUser
	err := s.file.update(func() error {
		doc, err := s.read()
		if err != nil {
			return err
		}
		for _, p := range doc.Users {
			if p.Email == email {
				pending = p
				return nil
			}
		}
		return domain.ErrPendingUserNotFound
	})
	if err != nil {
		return nil, err
	}
	return pending, nil
}

// Put creates or replaces a pending user record.
func (s *PendingStore) Put(ctx context.Context, pending *domain.PendingUser) error {
	return s.file.update(func() error {
		doc, err := s.read()
		if err != nil {
			return err
		}
		doc.Users[pending.GoogleID] = pending
		return s.file.save(doc)
	})
}

// Delete removes a pending user. Deleting an absent record is not an error;
// promotion must stay idempotent.
func (s *PendingStore) Delete(ctx context.Context, googleID string) error {
	return s.file.update(func() error {
		doc, err := s.read()
		if err != nil {
			return err
		}
		if _, ok := doc.Users[googleID]; !ok {
			return nil
		}
		delete(doc.Users, googleID)
		return s.file.save(doc)
	})
}
