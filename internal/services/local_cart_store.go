// internal/services/local_cart_store.go
package services

import (
	"encoding/json"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/javajoker/imi-storefront/internal/models"
	"github.com/javajoker/imi-storefront/internal/storage"
)

// LocalCartStore keeps the anonymous cart as one JSON array under a fixed
// namespaced key. There is no locking: the last Save wins.
type LocalCartStore struct {
	store  storage.Storage
	key    string
	logger logrus.FieldLogger
}

func NewLocalCartStore(store storage.Storage, key string, logger logrus.FieldLogger) *LocalCartStore {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &LocalCartStore{
		store:  store,
		key:    key,
		logger: logger.WithField("component", "local_cart"),
	}
}

func (s *LocalCartStore) Key() string {
	return s.key
}

// Load never fails: unreadable or malformed data yields an empty cart.
func (s *LocalCartStore) Load() models.Cart {
	raw, ok, err := s.store.Get(s.key)
	if err != nil {
		s.logger.WithError(err).Warn("Failed to read local cart, starting empty")
		return models.Cart{}
	}
	if !ok || raw == "" {
		return models.Cart{}
	}

	var items []models.CartItem
	if err := json.Unmarshal([]byte(raw), &items); err != nil {
		s.logger.WithError(err).Warn("Discarding malformed local cart")
		return models.Cart{}
	}

	var cart models.Cart
	for _, item := range items {
		if item.ProductID == "" || item.Quantity < 1 {
			continue
		}
		cart.Add(item)
	}
	return cart
}

func (s *LocalCartStore) Save(cart models.Cart) error {
	items := cart.Items
	if items == nil {
		items = []models.CartItem{}
	}
	data, err := json.Marshal(items)
	if err != nil {
		return fmt.Errorf("failed to encode local cart: %w", err)
	}
	if err := s.store.Set(s.key, string(data)); err != nil {
		return fmt.Errorf("failed to save local cart: %w", err)
	}
	return nil
}

func (s *LocalCartStore) Clear() error {
	if err := s.store.Remove(s.key); err != nil {
		return fmt.Errorf("failed to clear local cart: %w", err)
	}
	return nil
}
