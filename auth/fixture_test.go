package auth_test

import (
	"context"
	"net/url"
	"strings"
	"sync"
	"testing"

	"github.com/jrsteele09/go-auth-sdk/auth"
	"github.com/jrsteele09/go-auth-sdk/auth/flowstate"
	"github.com/jrsteele09/go-auth-sdk/browser"
	"github.com/jrsteele09/go-auth-sdk/config"
	"github.com/jrsteele09/go-auth-sdk/hub"
	"github.com/jrsteele09/go-auth-sdk/internal/testserver"
	"github.com/jrsteele09/go-auth-sdk/kvstore"
	"github.com/jrsteele09/go-auth-sdk/oauth2"
	"github.com/jrsteele09/go-auth-sdk/token"
	"github.com/stretchr/testify/require"
)

const (
	testClientID        = "test-client-1"
	testRedirectSignIn  = "myapp://callback/"
	testRedirectSignOut = "myapp://signout/"
)

type openerCall struct {
	URL          string
	RedirectURIs []string
}

// fakeOpener records every auth session and answers through respond.
type fakeOpener struct {
	mu      sync.Mutex
	calls   []openerCall
	respond func(ctx context.Context, u string, redirectURIs []string) (browser.Result, error)
}

func (o *fakeOpener) OpenAuthSession(ctx context.Context, u string, redirectURIs []string) (browser.Result, error) {
	o.mu.Lock()
	o.calls = append(o.calls, openerCall{URL: u, RedirectURIs: redirectURIs})
	respond := o.respond
	o.mu.Unlock()
	return respond(ctx, u, redirectURIs)
}

func (o *fakeOpener) Calls() []openerCall {
	o.mu.Lock()
	defer o.mu.Unlock()
	return append([]openerCall(nil), o.calls...)
}

func (o *fakeOpener) setRespond(respond func(ctx context.Context, u string, redirectURIs []string) (browser.Result, error)) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.respond = respond
}

type eventRecorder struct {
	mu     sync.Mutex
	events []hub.Event
}

func (r *eventRecorder) record(e hub.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
}

func (r *eventRecorder) names() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	names := make([]string, 0, len(r.events))
	for _, e := range r.events {
		names = append(names, e.Name)
	}
	return names
}

func (r *eventRecorder) find(name string) (hub.Event, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, e := range r.events {
		if e.Name == name {
			return e, true
		}
	}
	return hub.Event{}, false
}

// testFixture holds all test dependencies
type testFixture struct {
	srv    *testserver.Server
	cfg    config.AuthConfig
	store  *kvstore.MemStore
	opener *fakeOpener
	events *eventRecorder
	client *auth.Client
}

func newTestConfig(srv *testserver.Server, responseType oauth2.ResponseType) config.AuthConfig {
	return config.AuthConfig{
		UserPoolID:       "pool-1",
		UserPoolClientID: testClientID,
		OAuth: &config.OAuthConfig{
			Domain:          srv.Domain(),
			Scopes:          []string{"openid", "email", "profile"},
			RedirectSignIn:  []string{testRedirectSignIn},
			RedirectSignOut: []string{testRedirectSignOut},
			ResponseType:    responseType,
		},
	}
}

// setupTestFixture creates a client whose opener plays the hosted UI of an
// in-process authorization server.
func setupTestFixture(t *testing.T, responseType oauth2.ResponseType, options ...auth.ClientOption) *testFixture {
	t.Helper()
	srv := testserver.New(t, testClientID)
	return setupTestFixtureWithConfig(t, srv, newTestConfig(srv, responseType), options...)
}

func setupTestFixtureWithConfig(t *testing.T, srv *testserver.Server, cfg config.AuthConfig, options ...auth.ClientOption) *testFixture {
	t.Helper()

	f := &testFixture{
		srv:    srv,
		cfg:    cfg,
		store:  kvstore.NewMemStore(),
		opener: &fakeOpener{},
		events: &eventRecorder{},
	}
	f.opener.respond = f.hostedUI

	h := hub.New()
	h.Listen(f.events.record)

	opts := append([]auth.ClientOption{auth.WithHTTPClient(srv.Client()), auth.WithHub(h)}, options...)
	client, err := auth.NewClient(cfg, f.store, f.opener, opts...)
	require.NoError(t, err)
	f.client = client
	return f
}

// hostedUI signs the user in at the test server, or completes a logout.
func (f *testFixture) hostedUI(_ context.Context, u string, redirectURIs []string) (browser.Result, error) {
	if strings.Contains(u, testserver.RouteLogout+"?") {
		return browser.Result{Type: browser.Success, URL: redirectURIs[0]}, nil
	}
	redirect, err := f.srv.Authorize(u)
	if err != nil {
		return browser.Result{}, err
	}
	return browser.Result{Type: browser.Success, URL: redirect}, nil
}

func (f *testFixture) flowState(t *testing.T) flowstate.State {
	t.Helper()
	state, err := flowstate.NewStore(f.store, f.srv.Domain(), testClientID).Load(context.Background())
	require.NoError(t, err)
	return state
}

func (f *testFixture) cachedTokens(t *testing.T) (*token.TokenSet, error) {
	t.Helper()
	return token.NewCache(f.store, testClientID).Load(context.Background())
}

func (f *testFixture) signIn(t *testing.T) {
	t.Helper()
	require.NoError(t, f.client.SignInWithRedirect(context.Background(), auth.SignInWithRedirectRequest{}))
	_, err := f.cachedTokens(t)
	require.NoError(t, err)
}

func authorizeQuery(t *testing.T, call openerCall) url.Values {
	t.Helper()
	u, err := url.Parse(call.URL)
	require.NoError(t, err)
	return u.Query()
}

func requireNoSession(t *testing.T, f *testFixture) {
	t.Helper()
	_, err := f.cachedTokens(t)
	require.ErrorIs(t, err, token.ErrNoTokens)
	state := f.flowState(t)
	require.False(t, state.InFlight)
	require.Empty(t, state.State)
	require.Empty(t, state.PKCEVerifier)
}
