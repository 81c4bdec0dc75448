// Package testserver runs an in-process hosted UI and token endpoint for
// tests: it issues authorization codes, verifies PKCE, mints RS256 JWTs and
// records revocations.
package testserver

import (
	"crypto/rand"
	"crypto/rsa"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jrsteele09/go-auth-sdk/oauth2"
	"github.com/stretchr/testify/require"
)

// Route path constants
const (
	RouteOAuth2Authorize = "/oauth2/authorize"
	RouteOAuth2Token     = "/oauth2/token"
	RouteOAuth2Revoke    = "/oauth2/revoke"
	RouteLogout          = "/logout"
	RouteWellKnownJWKS   = "/.well-known/jwks.json"
)

// DefaultSubject is the user every issued token belongs to.
const DefaultSubject = "user-1"

type codeGrant struct {
	clientID      string
	redirectURI   string
	challenge     string
	challengeType string
	subject       string
}

// Server is a TLS httptest server speaking the hosted UI's OAuth dialect.
type Server struct {
	*httptest.Server

	ClientID string
	Subject  string
	Groups   []string

	keyID string
	key   *rsa.PrivateKey

	mu             sync.Mutex
	now            func() time.Time
	accessTTL      time.Duration
	originJTI      bool
	codes          map[string]codeGrant
	refreshTokens  map[string]string
	tokenError     *oauthError
	revokeError    *oauthError
	tokenRequests  []url.Values
	revokeRequests []url.Values
	logoutRequests []url.Values
	issued         []oauth2.TokenResponse
}

type oauthError struct {
	code        string
	description string
}

// New starts a server for clientID and closes it when the test ends.
func New(t testing.TB, clientID string) *Server {
	t.Helper()

	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)

	s := &Server{
		ClientID:      clientID,
		Subject:       DefaultSubject,
		Groups:        []string{"admins", "users"},
		keyID:         uuid.NewString(),
		key:           key,
		now:           time.Now,
		accessTTL:     time.Hour,
		originJTI:     true,
		codes:         make(map[string]codeGrant),
		refreshTokens: make(map[string]string),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET "+RouteOAuth2Authorize, s.authorizeHandler)
	mux.HandleFunc("POST "+RouteOAuth2Token, s.tokenHandler)
	mux.HandleFunc("POST "+RouteOAuth2Revoke, s.revokeHandler)
	mux.HandleFunc("GET "+RouteLogout, s.logoutHandler)
	mux.HandleFunc("GET "+RouteWellKnownJWKS, s.jwksHandler)

	s.Server = httptest.NewTLSServer(mux)
	t.Cleanup(s.Close)
	return s
}

// Domain is the host:port to configure as the OAuth domain.
func (s *Server) Domain() string {
	u, _ := url.Parse(s.URL)
	return u.Host
}

// Issuer is the iss claim of every minted token.
func (s *Server) Issuer() string {
	return s.URL
}

// JWKSURL is the location of the signing key set.
func (s *Server) JWKSURL() string {
	return s.URL + RouteWellKnownJWKS
}

// PublicKey verifies tokens minted by this server.
func (s *Server) PublicKey() *rsa.PublicKey {
	return &s.key.PublicKey
}

// SetNow overrides the clock used for iat/exp.
func (s *Server) SetNow(now func() time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.now = now
}

// SetAccessTokenTTL changes the lifetime of minted tokens.
func (s *Server) SetAccessTokenTTL(ttl time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.accessTTL = ttl
}

// SetOriginJTI controls whether access tokens carry origin_jti, which marks
// them as revocable.
func (s *Server) SetOriginJTI(enabled bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.originJTI = enabled
}

// FailTokenRequests makes the token endpoint answer with an OAuth error.
// An empty code restores normal behaviour.
func (s *Server) FailTokenRequests(code, description string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tokenError = newOAuthError(code, description)
}

// FailRevocations makes the revocation endpoint answer with an OAuth error.
func (s *Server) FailRevocations(code, description string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.revokeError = newOAuthError(code, description)
}

func newOAuthError(code, description string) *oauthError {
	if code == "" {
		return nil
	}
	return &oauthError{code: code, description: description}
}

// TokenRequests returns the forms posted to the token endpoint.
func (s *Server) TokenRequests() []url.Values {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]url.Values(nil), s.tokenRequests...)
}

// RevokeRequests returns the forms posted to the revocation endpoint.
func (s *Server) RevokeRequests() []url.Values {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]url.Values(nil), s.revokeRequests...)
}

// LogoutRequests returns the query of every logout endpoint hit.
func (s *Server) LogoutRequests() []url.Values {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]url.Values(nil), s.logoutRequests...)
}

// Issued returns every token response handed out, from the token endpoint
// and from implicit flow redirects.
func (s *Server) Issued() []oauth2.TokenResponse {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]oauth2.TokenResponse(nil), s.issued...)
}

func (s *Server) recordIssued(resp oauth2.TokenResponse) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.issued = append(s.issued, resp)
}
