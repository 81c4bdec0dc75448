// Package securestore seals values with XChaCha20-Poly1305 before handing them
// to another kvstore.Store, so tokens are never persisted in the clear.
package securestore

import (
	"context"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"

	"github.com/jrsteele09/go-auth-sdk/kvstore"
	"github.com/pkg/errors"
	"golang.org/x/crypto/chacha20poly1305"
)

// ErrCorrupt is kvstore.ErrCorrupt, returned when a value cannot be opened
// with the key.
var ErrCorrupt = kvstore.ErrCorrupt

// Store encrypts values on Set and decrypts them on Get. The key name is bound
// as additional data, so a sealed value copied under another key fails to open.
type Store struct {
	inner kvstore.Store
	aead  cipher.AEAD
}

var _ kvstore.Store = (*Store)(nil)

// New wraps inner with a 32 byte key.
func New(inner kvstore.Store, key []byte) (*Store, error) {
	aead, err := chacha20poly1305.NewX(key)
	if err != nil {
		return nil, errors.Wrap(err, "[securestore.New]")
	}
	return &Store{inner: inner, aead: aead}, nil
}

// NewFromBase64 wraps inner with a base64 (std encoding) encoded key.
func NewFromBase64(inner kvstore.Store, encodedKey string) (*Store, error) {
	key, err := base64.StdEncoding.DecodeString(encodedKey)
	if err != nil {
		return nil, errors.Wrap(err, "[securestore.NewFromBase64] decode key")
	}
	return New(inner, key)
}

func (s *Store) Get(ctx context.Context, key string) (string, bool, error) {
	sealed, ok, err := s.inner.Get(ctx, key)
	if err != nil || !ok {
		return "", ok, err
	}
	raw, err := base64.RawStdEncoding.DecodeString(sealed)
	if err != nil || len(raw) < s.aead.NonceSize() {
		return "", false, ErrCorrupt
	}
	nonce, ciphertext := raw[:s.aead.NonceSize()], raw[s.aead.NonceSize():]
	plain, err := s.aead.Open(nil, nonce, ciphertext, []byte(key))
	if err != nil {
		return "", false, ErrCorrupt
	}
	return string(plain), true, nil
}

func (s *Store) Set(ctx context.Context, key, value string) error {
	nonce := make([]byte, s.aead.NonceSize(), s.aead.NonceSize()+len(value)+s.aead.Overhead())
	if _, err := rand.Read(nonce); err != nil {
		return errors.Wrap(err, "[securestore.Set] nonce")
	}
	sealed := s.aead.Seal(nonce, nonce, []byte(value), []byte(key))
	return s.inner.Set(ctx, key, base64.RawStdEncoding.EncodeToString(sealed))
}

func (s *Store) Remove(ctx context.Context, key string) error {
	return s.inner.Remove(ctx, key)
}
