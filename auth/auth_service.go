// Package auth signs users in through the identity service's hosted UI with
// the authorization code (PKCE) or implicit flow, caches the resulting
// tokens, and signs them out again.
package auth

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/jrsteele09/go-auth-sdk/auth/flowstate"
	"github.com/jrsteele09/go-auth-sdk/browser"
	"github.com/jrsteele09/go-auth-sdk/config"
	"github.com/jrsteele09/go-auth-sdk/hub"
	"github.com/jrsteele09/go-auth-sdk/internal/httpclient"
	"github.com/jrsteele09/go-auth-sdk/internal/metrics"
	"github.com/jrsteele09/go-auth-sdk/kvstore"
	"github.com/jrsteele09/go-auth-sdk/kvstore/securestore"
	"github.com/jrsteele09/go-auth-sdk/token"
	"github.com/jrsteele09/go-auth-sdk/token/refresh"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// refreshSkew renews access tokens this long before they expire.
const refreshSkew = time.Minute

// Client runs the redirect sign-in and sign-out flows for one configuration.
// Independent clients share nothing but the store they are given.
type Client struct {
	cfg    config.AuthConfig
	opener browser.Opener

	tokens   *token.Cache
	flows    *flowstate.Store // nil without OAuth configuration
	inflight *inflightCoordinator

	httpClient         *http.Client
	userAgent          string
	revoker            TokenRevoker
	globalSignOuter    GlobalSignOuter
	credentialsClearer CredentialsClearer
	idTokenVerifier    IDTokenVerifier
	refresher          TokenRefresher
	registerer         prometheus.Registerer
	metrics            *metrics.Metrics
	hub                *hub.Hub
	logger             zerolog.Logger
	nowTime            func() time.Time

	refreshMu sync.Mutex
}

// ClientOption defines a function type to modify the Client instance.
type ClientOption func(*Client)

func WithLogger(logger zerolog.Logger) ClientOption {
	return func(c *Client) {
		c.logger = logger
	}
}

// WithHTTPClient sets the client for token, refresh, revocation and key
// requests. The default retries transient failures.
func WithHTTPClient(client *http.Client) ClientOption {
	return func(c *Client) {
		c.httpClient = client
	}
}

// WithUserAgent sets the User-Agent of the default HTTP client.
func WithUserAgent(userAgent string) ClientOption {
	return func(c *Client) {
		c.userAgent = userAgent
	}
}

func WithRevoker(revoker TokenRevoker) ClientOption {
	return func(c *Client) {
		c.revoker = revoker
	}
}

func WithGlobalSignOuter(outer GlobalSignOuter) ClientOption {
	return func(c *Client) {
		c.globalSignOuter = outer
	}
}

func WithCredentialsClearer(clearer CredentialsClearer) ClientOption {
	return func(c *Client) {
		c.credentialsClearer = clearer
	}
}

// WithIDTokenVerifier verifies ID tokens before caching. Without it, a
// verifier is built from SecurityConfig when issuer and JWKS URL are set.
func WithIDTokenVerifier(verifier IDTokenVerifier) ClientOption {
	return func(c *Client) {
		c.idTokenVerifier = verifier
	}
}

func WithTokenRefresher(refresher TokenRefresher) ClientOption {
	return func(c *Client) {
		c.refresher = refresher
	}
}

// WithMetricsRegisterer registers the client's counters with reg.
func WithMetricsRegisterer(reg prometheus.Registerer) ClientOption {
	return func(c *Client) {
		c.registerer = reg
	}
}

func WithHub(h *hub.Hub) ClientOption {
	return func(c *Client) {
		c.hub = h
	}
}

// WithNowTime sets the now time function (primarily for testing)
func WithNowTime(nowFunc func() time.Time) ClientOption {
	return func(c *Client) {
		c.nowTime = nowFunc
	}
}

// NewClient builds a client over store. Configuration problems are reported
// by the operations, not here, so a client can exist before the app is fully
// configured.
func NewClient(cfg config.AuthConfig, store kvstore.Store, opener browser.Opener, options ...ClientOption) (*Client, error) {
	if store == nil {
		return nil, errors.New("[NewClient] store is required")
	}
	if opener == nil {
		return nil, errors.New("[NewClient] opener is required")
	}

	c := &Client{
		cfg:      cfg,
		opener:   opener,
		inflight: newInflightCoordinator(),
		logger:   log.With().Str("component", "auth").Logger(),
		nowTime:  time.Now,
	}
	for _, opt := range options {
		opt(c)
	}

	if cfg.Security.TokenEncryptionKey != "" {
		sealed, err := securestore.NewFromBase64(store, cfg.Security.TokenEncryptionKey)
		if err != nil {
			return nil, errors.Wrap(err, "[NewClient] token encryption key")
		}
		store = sealed
	}

	if c.httpClient == nil {
		c.httpClient = httpclient.New(c.userAgent, httpclient.WithLogger(c.logger))
	}
	if c.hub == nil {
		c.hub = hub.New()
	}
	if c.registerer != nil {
		m, err := metrics.New(c.registerer)
		if err != nil {
			return nil, errors.Wrap(err, "[NewClient] register metrics")
		}
		c.metrics = m
	}

	clientID := cfg.UserPoolClientID
	c.tokens = token.NewCache(store, clientID)

	if cfg.OAuth != nil {
		c.flows = flowstate.NewStore(store, cfg.OAuth.Domain, clientID)
		if c.revoker == nil {
			c.revoker = token.NewHTTPRevoker(c.httpClient, cfg.OAuth.RevokeEndpoint())
		}
		if c.refresher == nil {
			c.refresher = refresh.NewManager(clientID, cfg.OAuth.TokenEndpoint(), c.httpClient, &c.logger)
		}
	}
	if c.idTokenVerifier == nil && cfg.Security.VerifyIDTokens() {
		c.idTokenVerifier = token.NewIDTokenVerifier(context.Background(), c.httpClient,
			cfg.Security.IDTokenIssuer, cfg.Security.JWKSURL, clientID)
	}

	return c, nil
}

// Hub is where the client publishes sign-in, sign-out and refresh events.
func (c *Client) Hub() *hub.Hub {
	return c.hub
}

func (c *Client) responseType() string {
	if c.cfg.OAuth == nil {
		return ""
	}
	return string(c.cfg.OAuth.ResponseType)
}
