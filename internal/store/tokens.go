package store

import (
	"context"
	"path/filepath"

	"github.com/subwatch/subwatch/internal/domain"
)

// TokensStore persists verification tokens keyed by email. The document is a
// flat map, one live token per address.
type TokensStore struct {
	file *jsonFile
}

// NewTokensStore creates a token store backed by verification_tokens.json
// in dataDir.
func NewTokensStore(dataDir string) *TokensStore {
	return &TokensStore{file: newJSONFile(filepath.Join(dataDir, "verification_tokens.json"))}
}

func (s *TokensStore) read() (map[string]*domain.VerificationToken, error) {
	doc := make(map[string]*domain.VerificationToken)
	if err := s.file.load(&doc); err != nil {
		return nil, err
	}
	return doc, nil
}

// Get retrieves the live token for an email.
func (s *TokensStore) Get(ctx context.Context, email string) (*domain.VerificationToken, error) {
	var token *domain.VerificationToken
	err := s.file.update(func() error {
		doc, err := s.read()
		if err != nil {
			return err
		}
		t, ok := doc[email]
		if !ok {
			return domain.ErrVerificationTokenNotFound
		}
		token = t
		return nil
	})
	if err != nil {
		return nil, err
	}
	return token, nil
}

// Put stores a token, replacing any prior token for the same email.
func (s *TokensStore) Put(ctx context.Context, token *domain.VerificationToken) error {
	return s.file.update(func() error {
		doc, err := s.read()
		if err != nil {
			return err
		}
		doc[token.Email] = token
		return s.file.save(doc)
	})
}

// Delete removes the token for an email. Absent records are ignored.
func (s *TokensStore) Delete(ctx context.Context, email string) error {
	return s.file.update(func() error {
		doc, err := s.read()
		if err != nil {
			return err
		}
		if _, ok := doc[email]; !ok {
			return nil
		}
		delete(doc, email)
		return s.file.save(doc)
	})
}
