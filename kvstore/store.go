// Package kvstore defines the durable key/value contract the SDK persists
// flow state and tokens through, with in-memory, Redis, SQLite and encrypting
// implementations.
package kvstore

import (
	"context"

	"github.com/pkg/errors"
)

// ErrCorrupt is returned by Get when a stored value exists but cannot be
// read back, for example a sealed value under a rotated key.
var ErrCorrupt = errors.New("stored value corrupt or key mismatch")

// Store is a durable string key/value store. Each operation must be
// individually atomic; the SDK always writes whole records.
type Store interface {
	// Get returns the value and true, or "" and false when key is absent.
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key, value string) error
	// Remove deletes key. Removing an absent key is not an error.
	Remove(ctx context.Context, key string) error
}
