// Package redisstore implements kvstore.Store on Redis, so several processes
// (or a process that restarts) share one durable view of auth state.
package redisstore

import (
	"context"
	"time"

	"github.com/jrsteele09/go-auth-sdk/kvstore"
	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"
)

// Store is a kvstore.Store backed by Redis string keys.
type Store struct {
	rdb    redis.UniversalClient
	prefix string
	ttl    time.Duration
}

var _ kvstore.Store = (*Store)(nil)

// Option configures a Store.
type Option func(*Store)

// WithPrefix namespaces every key, e.g. "myapp:".
func WithPrefix(prefix string) Option {
	return func(s *Store) {
		s.prefix = prefix
	}
}

// WithTTL expires keys after ttl. Zero keeps them forever.
func WithTTL(ttl time.Duration) Option {
	return func(s *Store) {
		s.ttl = ttl
	}
}

// New wraps an existing Redis client.
func New(rdb redis.UniversalClient, options ...Option) *Store {
	s := &Store{rdb: rdb}
	for _, opt := range options {
		opt(s)
	}
	return s
}

func (s *Store) key(k string) string {
	return s.prefix + k
}

func (s *Store) Get(ctx context.Context, key string) (string, bool, error) {
	v, err := s.rdb.Get(ctx, s.key(key)).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, errors.Wrap(err, "[redisstore.Get]")
	}
	return v, true, nil
}

func (s *Store) Set(ctx context.Context, key, value string) error {
	if err := s.rdb.Set(ctx, s.key(key), value, s.ttl).Err(); err != nil {
		return errors.Wrap(err, "[redisstore.Set]")
	}
	return nil
}

func (s *Store) Remove(ctx context.Context, key string) error {
	if err := s.rdb.Del(ctx, s.key(key)).Err(); err != nil {
		return errors.Wrap(err, "[redisstore.Remove]")
	}
	return nil
}
