package storage

import (
	"context"
	"sync"
)

// MemoryStorage keeps entries in process memory. Watchers are notified of
// every Set and Remove.
type MemoryStorage struct {
	mu       sync.RWMutex
	entries  map[string]string
	watchers map[chan string]struct{}
}

func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{
		entries:  make(map[string]string),
		watchers: make(map[chan string]struct{}),
	}
}

func (s *MemoryStorage) Get(key string) (string, bool, error) {
	if key == "" {
		return "", false, ErrEmptyKey
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	value, ok := s.entries[key]
	return value, ok, nil
}

func (s *MemoryStorage) Set(key, value string) error {
	if key == "" {
		return ErrEmptyKey
	}
	s.mu.Lock()
	s.entries[key] = value
	s.mu.Unlock()
	s.notify(key)
	return nil
}

func (s *MemoryStorage) Remove(key string) error {
	if key == "" {
		return ErrEmptyKey
	}
	s.mu.Lock()
	delete(s.entries, key)
	s.mu.Unlock()
	s.notify(key)
	return nil
}

func (s *MemoryStorage) Watch(ctx context.Context) (<-chan string, error) {
	ch := make(chan string, 16)

	s.mu.Lock()
	s.watchers[ch] = struct{}{}
	s.mu.Unlock()

	go func() {
		<-ctx.Done()
		s.mu.Lock()
		delete(s.watchers, ch)
		close(ch)
		s.mu.Unlock()
	}()

	return ch, nil
}

func (s *MemoryStorage) notify(key string) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for ch := range s.watchers {
		select {
		case ch <- key:
		default:
			// Slow watcher; it will catch up on its next poll.
		}
	}
}
