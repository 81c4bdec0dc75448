package token

import (
	"context"
	"encoding/json"

	"github.com/jrsteele09/go-auth-sdk/kvstore"
	"github.com/pkg/errors"
)

// ErrNoTokens is returned by Load when nothing is cached.
var ErrNoTokens = errors.New("no tokens cached")

// Cache persists the current TokenSet for one client as a single record.
type Cache struct {
	store kvstore.Store
	key   string
}

// NewCache returns the token cache of clientID in store.
func NewCache(store kvstore.Store, clientID string) *Cache {
	return &Cache{store: store, key: "authsdk." + clientID + ".tokens"}
}

// Load returns the cached tokens, ErrNoTokens when absent, or an error
// matching ErrInvalidToken when the record cannot be decoded or opened.
func (c *Cache) Load(ctx context.Context) (*TokenSet, error) {
	value, ok, err := c.store.Get(ctx, c.key)
	if errors.Is(err, kvstore.ErrCorrupt) {
		return nil, errors.Wrapf(ErrInvalidToken, "[Cache.Load] %v", err)
	}
	if err != nil {
		return nil, errors.Wrap(err, "[Cache.Load]")
	}
	if !ok {
		return nil, ErrNoTokens
	}

	var ts TokenSet
	if err := json.Unmarshal([]byte(value), &ts); err != nil {
		if errors.Is(err, ErrInvalidToken) {
			return nil, errors.Wrap(err, "[Cache.Load]")
		}
		return nil, errors.Wrapf(ErrInvalidToken, "[Cache.Load] %v", err)
	}
	if ts.AccessToken.IsZero() {
		return nil, errors.Wrap(ErrInvalidToken, "[Cache.Load] record has no access token")
	}
	return &ts, nil
}

// Store replaces the cached record.
func (c *Cache) Store(ctx context.Context, ts *TokenSet) error {
	data, err := json.Marshal(ts)
	if err != nil {
		return errors.Wrap(err, "[Cache.Store]")
	}
	return errors.Wrap(c.store.Set(ctx, c.key, string(data)), "[Cache.Store]")
}

func (c *Cache) Clear(ctx context.Context) error {
	return errors.Wrap(c.store.Remove(ctx, c.key), "[Cache.Clear]")
}
