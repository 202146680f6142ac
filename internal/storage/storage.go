// Package storage provides the device-local key/value backends that hold the
// anonymous cart and the session credential.
package storage

import (
	"context"
	"errors"
)

var ErrEmptyKey = errors.New("storage key is empty")

// Storage is a string key/value store with browser local-storage semantics:
// a missing key is not an error.
type Storage interface {
	Get(key string) (string, bool, error)
	Set(key, value string) error
	Remove(key string) error
}

// Watcher is implemented by backends that can report changes made by other
// processes sharing the same storage.
type Watcher interface {
	// Watch emits the key of every changed entry until ctx is done, then
	// closes the channel.
	Watch(ctx context.Context) (<-chan string, error)
}
