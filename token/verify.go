package token

import (
	"context"
	"net/http"
	"time"

	"github.com/coreos/go-oidc/v3/oidc"
	"github.com/pkg/errors"
)

// IDTokenVerifier checks ID token signatures, issuer, audience and expiry
// against the identity service's published keys.
type IDTokenVerifier struct {
	verifier *oidc.IDTokenVerifier
}

// VerifierOption tweaks verification.
type VerifierOption func(*oidc.Config)

// WithVerifierClock sets the time source for expiry checks.
func WithVerifierClock(now func() time.Time) VerifierOption {
	return func(c *oidc.Config) {
		c.Now = now
	}
}

// NewIDTokenVerifier fetches signing keys from jwksURL on demand. client is
// used for the key requests; nil means http.DefaultClient.
func NewIDTokenVerifier(ctx context.Context, client *http.Client, issuer, jwksURL, clientID string, opts ...VerifierOption) *IDTokenVerifier {
	if client != nil {
		ctx = oidc.ClientContext(ctx, client)
	}
	return NewIDTokenVerifierWithKeySet(oidc.NewRemoteKeySet(ctx, jwksURL), issuer, clientID, opts...)
}

// NewIDTokenVerifierWithKeySet verifies against a fixed key set.
func NewIDTokenVerifierWithKeySet(keySet oidc.KeySet, issuer, clientID string, opts ...VerifierOption) *IDTokenVerifier {
	cfg := &oidc.Config{
		ClientID:             clientID,
		SupportedSigningAlgs: []string{oidc.RS256},
	}
	for _, opt := range opts {
		opt(cfg)
	}
	return &IDTokenVerifier{verifier: oidc.NewVerifier(issuer, keySet, cfg)}
}

// Verify returns an error when rawIDToken is not a valid ID token for this
// client.
func (v *IDTokenVerifier) Verify(ctx context.Context, rawIDToken string) error {
	if _, err := v.verifier.Verify(ctx, rawIDToken); err != nil {
		return errors.Wrap(err, "[IDTokenVerifier.Verify]")
	}
	return nil
}
