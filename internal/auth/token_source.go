package auth

import (
	"github.com/javajoker/imi-storefront/internal/storage"
)

// TokenSource yields the current raw credential, or "" when signed out.
type TokenSource interface {
	Token() (string, error)
}

// StorageTokenSource keeps the credential under a single storage key.
type StorageTokenSource struct {
	store storage.Storage
	key   string
}

func NewStorageTokenSource(store storage.Storage, key string) *StorageTokenSource {
	return &StorageTokenSource{store: store, key: key}
}

func (s *StorageTokenSource) Key() string {
	return s.key
}

func (s *StorageTokenSource) Token() (string, error) {
	token, _, err := s.store.Get(s.key)
	return token, err
}

// SetToken stores a credential obtained by the UI from the login flow.
func (s *StorageTokenSource) SetToken(token string) error {
	return s.store.Set(s.key, stripBearer(token))
}

func (s *StorageTokenSource) ClearToken() error {
	return s.store.Remove(s.key)
}
