// Package refresh renews a cached TokenSet with its refresh token.
package refresh

import (
	"context"
	"net/http"

	"github.com/jrsteele09/go-auth-sdk/token"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/oauth2"
)

var (
	// ErrNoRefreshToken is returned when the cached tokens cannot be renewed.
	ErrNoRefreshToken = errors.New("no refresh token")
	// ErrInvalidGrant means the refresh token was rejected; the session is over.
	ErrInvalidGrant = errors.New("refresh token rejected")
)

// Manager exchanges refresh tokens at the token endpoint.
type Manager struct {
	config oauth2.Config
	client *http.Client
	logger zerolog.Logger
}

// NewManager refreshes for clientID at tokenURL. A nil client means
// http.DefaultClient.
func NewManager(clientID, tokenURL string, client *http.Client, logger *zerolog.Logger) *Manager {
	m := &Manager{
		config: oauth2.Config{
			ClientID: clientID,
			Endpoint: oauth2.Endpoint{
				TokenURL:  tokenURL,
				AuthStyle: oauth2.AuthStyleInParams,
			},
		},
		client: client,
		logger: log.With().Str("component", "refresh").Logger(),
	}
	if logger != nil {
		m.logger = *logger
	}
	return m
}

// Refresh returns a new TokenSet built from current. When the response omits
// the refresh or ID token, the current ones are carried over.
func (m *Manager) Refresh(ctx context.Context, current *token.TokenSet) (*token.TokenSet, error) {
	if current == nil || current.RefreshToken == "" {
		return nil, ErrNoRefreshToken
	}
	if m.client != nil {
		ctx = context.WithValue(ctx, oauth2.HTTPClient, m.client)
	}

	// An empty access token forces the source to hit the token endpoint.
	tok, err := m.config.TokenSource(ctx, &oauth2.Token{RefreshToken: current.RefreshToken}).Token()
	if err != nil {
		var retrieveErr *oauth2.RetrieveError
		if errors.As(err, &retrieveErr) && retrieveErr.ErrorCode == "invalid_grant" {
			return nil, errors.Wrapf(ErrInvalidGrant, "[Refresh] %s", retrieveErr.ErrorDescription)
		}
		return nil, errors.Wrap(err, "[Refresh] token request failed")
	}

	next, err := token.FromOAuth2Token(tok)
	if err != nil {
		return nil, errors.Wrap(err, "[Refresh]")
	}
	if next.RefreshToken == "" {
		next.RefreshToken = current.RefreshToken
	}
	if next.IDToken.IsZero() {
		next.IDToken = current.IDToken
	}
	m.logger.Debug().Str("sub", next.AccessToken.Subject()).Msg("tokens refreshed")
	return next, nil
}
