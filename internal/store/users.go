package store

import (
	"context"
	"path/filepath"
	"sort"
	"time"

	"github.com/subwatch/subwatch/internal/domain"
)

// usersDoc is the on-disk shape of the users file.
type usersDoc struct {
	Users map[string]*domain.User `json:"users"`
}

// UsersStore persists active users keyed by Google ID.
type UsersStore struct {
	file *jsonFile
}

// NewUsersStore creates a users store backed by subscriptions.json in dataDir.
func NewUsersStore(dataDir string) *UsersStore {
	return &UsersStore{file: newJSONFile(filepath.Join(dataDir, "subscriptions.json"))}
}

func (s *UsersStore) read() (*usersDoc, error) {
	doc := &usersDoc{}
	if err := s.file.load(doc); err != nil {
		return nil, err
	}
	if doc.Users == nil {
		doc.Users = make(map[string]*domain.User)
	}
	return doc, nil
}

// Get retrieves a user by Google ID.
func (s *UsersStore) Get(ctx context.Context, googleID string) (*domain.User, error) {
	var user *domain.User
	err := s.file.update(func() error {
		doc, err := s.read()
		if err != nil {
			return err
		}
		u, ok := doc.Users[googleID]
		if !ok {
			return domain.ErrUserNotFound
		}
		u.GoogleID = googleID
		user = u
		return nil
	})
	if err != nil {
		return nil, err
	}
	return user, nil
}

// GetByEmail scans for a user with the given profile email.
func (s *UsersStore) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	var user *domain.User
	err := s.file.update(func() error {
		doc, err := s.read()
		if err != nil {
			return err
		}
		for id, u := range doc.Users {
			if u.Profile.Email == email {
				u.GoogleID = id
				user = u
				return nil
			}
		}
		return domain.ErrUserNotFound
	})
	if err != nil {
		return nil, err
	}
	return user, nil
}

// Put creates or replaces a user record.
func (s *UsersStore) Put(ctx context.Context, user *domain.User) error {
	return s.file.update(func() error {
		doc, err := s.read()
		if err != nil {
			return err
		}
		doc.Users[user.GoogleID] = user
		return s.file.save(doc)
	})
}

// Delete removes a user wholesale.
func (s *UsersStore) Delete(ctx context.Context, googleID string) error {
	return s.file.update(func() error {
		doc, err := s.read()
		if err != nil {
			return err
		}
		if _, ok := doc.Users[googleID]; !ok {
			return domain.ErrUserNotFound
		}
		delete(doc.Users, googleID)
		return s.file.save(doc)
	})
}

// All returns every active user, ordered by Google ID for deterministic
// iteration in the notification sweep.
func (s *UsersStore) All(ctx context.Context) ([]*domain.User, error) {
	var users []*domain.User
	err := s.file.update(func() error {
		doc, err := s.read()
		if err != nil {
			return err
		}
		for id, u := range doc.Users {
			u.GoogleID = id
			users = append(users, u)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Slice(users, func(i, j int) bool { return users[i].GoogleID < users[j].GoogleID })
	return users, nil
}

// Update applies fn to a user inside a single read-modify-write cycle.
func (s *UsersStore) Update(ctx context.Context, googleID string, fn func(*domain.User) error) error {
	return s.file.update(func() error {
		doc, err := s.read()
		if err != nil {
			return err
		}
		user, ok := doc.Users[googleID]
		if !ok {
			return domain.ErrUserNotFound
		}
		user.GoogleID = googleID
		if err := fn(user); err != nil {
			return err
		}
		user.UpdatedAt = time.Now()
		return s.file.save(doc)
	})
}

// AddSubscription appends a subscription to the user's list.
func (s *UsersStore) AddSubscription(ctx context.Context, googleID string, sub domain.Subscription) error {
	return s.Update(ctx, googleID, func(u *domain.User) error {
		u.Subscriptions = append(u.Subscriptions, sub)
		return nil
	})
}

// UpdateSubscription replaces the subscription with the matching ID.
func (s *UsersStore) UpdateSubscription(ctx context.Context, googleID string, sub domain.Subscription) error {
	return s.Update(ctx, googleID, func(u *domain.User) error {
		for i := range u.Subscriptions {
			if u.Subscriptions[i].ID == sub.ID {
				u.Subscriptions[i] = sub
				return nil
			}
		}
		return domain.ErrSubscriptionNotFound
	})
}

// RemoveSubscription deletes the subscription with the given ID.
func (s *UsersStore) RemoveSubscription(ctx context.Context, googleID, subID string) error {
	return s.Update(ctx, googleID, func(u *domain.User) error {
		for i := range u.Subscriptions {
			if u.Subscriptions[i].ID == subID {
				u.Subscriptions = append(u.Subscriptions[:i], u.Subscriptions[i+1:]...)
				return nil
			}
		}
		return domain.ErrSubscriptionNotFound
	})
}
