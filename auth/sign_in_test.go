package auth_test

import (
	"bytes"
	"context"
	"crypto"
	"encoding/base64"
	"errors"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/coreos/go-oidc/v3/oidc"
	"github.com/jrsteele09/go-auth-sdk/auth"
	"github.com/jrsteele09/go-auth-sdk/auth/flowstate"
	"github.com/jrsteele09/go-auth-sdk/browser"
	"github.com/jrsteele09/go-auth-sdk/config"
	"github.com/jrsteele09/go-auth-sdk/hub"
	"github.com/jrsteele09/go-auth-sdk/internal/httpclient"
	"github.com/jrsteele09/go-auth-sdk/internal/testserver"
	"github.com/jrsteele09/go-auth-sdk/oauth2"
	"github.com/jrsteele09/go-auth-sdk/token"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

func TestNewClientRequiresDependencies(t *testing.T) {
	srv := testserver.New(t, testClientID)
	cfg := newTestConfig(srv, oauth2.CodeResponseType)

	_, err := auth.NewClient(cfg, nil, &fakeOpener{})
	require.Error(t, err)

	f := setupTestFixture(t, oauth2.CodeResponseType)
	_, err = auth.NewClient(cfg, f.store, nil)
	require.Error(t, err)
}

func TestSignInRequiresConfiguration(t *testing.T) {
	srv := testserver.New(t, testClientID)
	tests := []struct {
		name    string
		mutate  func(cfg *config.AuthConfig)
		wantErr error
	}{
		{"no client id", func(cfg *config.AuthConfig) { cfg.UserPoolClientID = "" }, auth.ErrTokenProviderNotConfigured},
		{"no oauth", func(cfg *config.AuthConfig) { cfg.OAuth = nil }, auth.ErrOAuthNotConfigured},
		{"no redirect", func(cfg *config.AuthConfig) { cfg.OAuth.RedirectSignIn = nil }, auth.ErrOAuthNotConfigured},
		{"no domain", func(cfg *config.AuthConfig) { cfg.OAuth.Domain = "" }, auth.ErrOAuthNotConfigured},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := newTestConfig(srv, oauth2.CodeResponseType)
			tt.mutate(&cfg)
			f := setupTestFixtureWithConfig(t, srv, cfg)

			err := f.client.SignInWithRedirect(context.Background(), auth.SignInWithRedirectRequest{Provider: auth.ProviderGoogle})
			require.ErrorIs(t, err, tt.wantErr)
			var authErr *auth.AuthError
			require.True(t, errors.As(err, &authErr))
			require.NotEmpty(t, authErr.RecoverySuggestion)

			require.Empty(t, f.opener.Calls())
			require.Equal(t, 0, f.store.Len())
		})
	}
}

func TestSignInWithRedirectCodeFlow(t *testing.T) {
	f := setupTestFixture(t, oauth2.CodeResponseType)

	var duringFlow flowstate.State
	f.opener.setRespond(func(ctx context.Context, u string, redirectURIs []string) (browser.Result, error) {
		duringFlow = f.flowState(t)
		return f.hostedUI(ctx, u, redirectURIs)
	})

	err := f.client.SignInWithRedirect(context.Background(), auth.SignInWithRedirectRequest{Provider: auth.ProviderGoogle})
	require.NoError(t, err)

	calls := f.opener.Calls()
	require.Len(t, calls, 1)
	require.Equal(t, []string{testRedirectSignIn}, calls[0].RedirectURIs)

	authURL, err := url.Parse(calls[0].URL)
	require.NoError(t, err)
	require.Equal(t, "https", authURL.Scheme)
	require.Equal(t, f.srv.Domain(), authURL.Host)
	require.Equal(t, "/oauth2/authorize", authURL.Path)
	require.Contains(t, authURL.RawQuery, "scope=openid%20email%20profile")
	require.NotContains(t, authURL.RawQuery, "+")

	q := authURL.Query()
	require.Equal(t, testRedirectSignIn, q.Get("redirect_uri"))
	require.Equal(t, "code", q.Get("response_type"))
	require.Equal(t, testClientID, q.Get("client_id"))
	require.Equal(t, "Google", q.Get("identity_provider"))
	require.Equal(t, "openid email profile", q.Get("scope"))
	require.Len(t, q.Get("state"), 32)
	require.Equal(t, "S256", q.Get("code_challenge_method"))
	require.NotContains(t, q.Get("code_challenge"), "=")

	// the flow was in flight while the browser was open
	require.True(t, duringFlow.InFlight)
	require.Equal(t, q.Get("state"), duringFlow.State)
	require.True(t, oauth2.ValidVerifier(duringFlow.PKCEVerifier))

	requests := f.srv.TokenRequests()
	require.Len(t, requests, 1)
	require.Equal(t, "authorization_code", requests[0].Get("grant_type"))
	require.Equal(t, testClientID, requests[0].Get("client_id"))
	require.Equal(t, testRedirectSignIn, requests[0].Get("redirect_uri"))
	require.Equal(t, duringFlow.PKCEVerifier, requests[0].Get("code_verifier"))
	require.Equal(t, q.Get("code_challenge"), oauth2.S256Challenge(requests[0].Get("code_verifier")))

	issued := f.srv.Issued()
	require.Len(t, issued, 1)
	cached, err := f.cachedTokens(t)
	require.NoError(t, err)
	require.Equal(t, *issued[0].AccessToken, cached.AccessToken.Raw)
	require.Equal(t, *issued[0].IdToken, cached.IDToken.Raw)
	require.Equal(t, *issued[0].RefreshToken, cached.RefreshToken)
	require.Equal(t, "Bearer", cached.TokenType)
	require.Equal(t, 3600, cached.ExpiresIn)
	require.Equal(t, testserver.DefaultSubject, cached.AccessToken.Subject())

	require.Equal(t, flowstate.State{CompletedSignIn: true}, f.flowState(t))
	require.Equal(t, []string{hub.EventSignInWithRedirect}, f.events.names())
}

func TestSignInWithRedirectImplicitFlow(t *testing.T) {
	f := setupTestFixture(t, oauth2.TokenResponseType)

	require.NoError(t, f.client.SignInWithRedirect(context.Background(), auth.SignInWithRedirectRequest{}))

	q := authorizeQuery(t, f.opener.Calls()[0])
	require.Equal(t, "token", q.Get("response_type"))
	require.Equal(t, "COGNITO", q.Get("identity_provider"))
	require.False(t, q.Has("code_challenge"))
	require.False(t, q.Has("code_challenge_method"))

	require.Empty(t, f.srv.TokenRequests())
	issued := f.srv.Issued()
	require.Len(t, issued, 1)

	cached, err := f.cachedTokens(t)
	require.NoError(t, err)
	require.Equal(t, *issued[0].AccessToken, cached.AccessToken.Raw)
	require.Equal(t, *issued[0].IdToken, cached.IDToken.Raw)
	require.Empty(t, cached.RefreshToken)
	require.Equal(t, "Bearer", cached.TokenType)
	require.Equal(t, 3600, cached.ExpiresIn)

	require.Equal(t, flowstate.State{CompletedSignIn: true}, f.flowState(t))
}

func TestSignInWithRedirectNotCompleted(t *testing.T) {
	tests := []struct {
		name   string
		result browser.Result
		err    error
	}{
		{"cancelled", browser.Result{Type: browser.Cancelled}, nil},
		{"unknown", browser.Result{Type: browser.Unknown}, nil},
		{"opener error", browser.Result{}, errors.New("no browser")},
		{"success without url", browser.Result{Type: browser.Success}, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := setupTestFixture(t, oauth2.CodeResponseType)
			f.opener.setRespond(func(context.Context, string, []string) (browser.Result, error) {
				return tt.result, tt.err
			})

			err := f.client.SignInWithRedirect(context.Background(), auth.SignInWithRedirectRequest{Provider: auth.ProviderFacebook})
			require.NoError(t, err)

			requireNoSession(t, f)
			require.Empty(t, f.srv.TokenRequests())
			require.Empty(t, f.events.names())

			// the slot is free again
			_, err = f.client.GetTokens(context.Background(), auth.GetTokensOptions{})
			require.ErrorIs(t, err, auth.ErrNoTokens)
		})
	}
}

func TestSignInWithRedirectStateMismatch(t *testing.T) {
	tamper := map[oauth2.ResponseType]func(t *testing.T, redirect string) string{
		oauth2.CodeResponseType: func(t *testing.T, redirect string) string {
			u, err := url.Parse(redirect)
			require.NoError(t, err)
			q := u.Query()
			q.Set("state", "forged")
			u.RawQuery = q.Encode()
			return u.String()
		},
		oauth2.TokenResponseType: func(t *testing.T, redirect string) string {
			base, fragment, _ := strings.Cut(redirect, "#")
			values, err := url.ParseQuery(fragment)
			require.NoError(t, err)
			values.Set("state", "forged")
			return base + "#" + values.Encode()
		},
	}
	for responseType, tamperFn := range tamper {
		t.Run(string(responseType), func(t *testing.T) {
			f := setupTestFixture(t, responseType)
			f.opener.setRespond(func(ctx context.Context, u string, redirectURIs []string) (browser.Result, error) {
				result, err := f.hostedUI(ctx, u, redirectURIs)
				require.NoError(t, err)
				result.URL = tamperFn(t, result.URL)
				return result, nil
			})

			err := f.client.SignInWithRedirect(context.Background(), auth.SignInWithRedirectRequest{})
			require.ErrorIs(t, err, auth.ErrStateMismatch)
			var authErr *auth.AuthError
			require.True(t, errors.As(err, &authErr))
			require.Equal(t, "OAuthSignInException", authErr.Name)

			requireNoSession(t, f)
			require.Empty(t, f.srv.TokenRequests())
			require.Equal(t, []string{hub.EventSignInWithRedirectFailure}, f.events.names())
		})
	}
}

func TestHandleRedirectWithoutPersistedState(t *testing.T) {
	for _, responseType := range []oauth2.ResponseType{oauth2.CodeResponseType, oauth2.TokenResponseType} {
		t.Run(string(responseType), func(t *testing.T) {
			f := setupTestFixture(t, responseType)

			// a flow started by an earlier process that left no nonce behind
			q := url.Values{}
			q.Set("client_id", testClientID)
			q.Set("redirect_uri", testRedirectSignIn)
			q.Set("response_type", string(responseType))
			q.Set("state", "started-elsewhere")
			redirect, err := f.srv.Authorize(f.srv.URL + testserver.RouteOAuth2Authorize + "?" + q.Encode())
			require.NoError(t, err)

			require.NoError(t, f.client.HandleRedirect(context.Background(), redirect))

			cached, err := f.cachedTokens(t)
			require.NoError(t, err)
			require.Equal(t, *f.srv.Issued()[0].AccessToken, cached.AccessToken.Raw)
			require.True(t, f.flowState(t).CompletedSignIn)
		})
	}
}

func TestSignInWithRedirectHostedUIError(t *testing.T) {
	f := setupTestFixture(t, oauth2.CodeResponseType)
	f.opener.setRespond(func(_ context.Context, u string, _ []string) (browser.Result, error) {
		redirect, err := f.srv.Deny(u, "access_denied", "User is not allowed")
		return browser.Result{Type: browser.Success, URL: redirect}, err
	})

	err := f.client.SignInWithRedirect(context.Background(), auth.SignInWithRedirectRequest{})
	require.ErrorIs(t, err, auth.ErrOAuthSignIn)
	var authErr *auth.AuthError
	require.True(t, errors.As(err, &authErr))
	require.Equal(t, "OAuthSignInException", authErr.Name)
	require.EqualError(t, authErr.Underlying, "User is not allowed")

	requireNoSession(t, f)
	require.Empty(t, f.srv.TokenRequests())
	require.Equal(t, []string{hub.EventSignInWithRedirectFailure}, f.events.names())
}

func TestSignInWithRedirectTokenEndpointError(t *testing.T) {
	f := setupTestFixture(t, oauth2.CodeResponseType)
	f.srv.FailTokenRequests("invalid_grant", "Authorization code expired")

	err := f.client.SignInWithRedirect(context.Background(), auth.SignInWithRedirectRequest{})
	require.ErrorIs(t, err, auth.ErrOAuthSignIn)
	require.Contains(t, err.Error(), "invalid_grant")

	requireNoSession(t, f)
	require.Len(t, f.srv.TokenRequests(), 1)
	require.Equal(t, []string{hub.EventSignInWithRedirectFailure}, f.events.names())
}

func TestSignInWithRedirectUnrelatedNavigation(t *testing.T) {
	f := setupTestFixture(t, oauth2.CodeResponseType)
	f.opener.setRespond(func(_ context.Context, u string, _ []string) (browser.Result, error) {
		parsed, _ := url.Parse(u)
		state := url.QueryEscape(parsed.Query().Get("state"))
		return browser.Result{Type: browser.Success, URL: "myapp://callback/settings?code=abc123&state=" + state}, nil
	})

	require.NoError(t, f.client.SignInWithRedirect(context.Background(), auth.SignInWithRedirectRequest{}))
	requireNoSession(t, f)
	require.Empty(t, f.srv.TokenRequests())
	require.Empty(t, f.events.names())
}

func TestSignInWithRedirectCustomState(t *testing.T) {
	f := setupTestFixture(t, oauth2.CodeResponseType)
	custom := "return-to=/billing?tab=2"

	require.NoError(t, f.client.SignInWithRedirect(context.Background(), auth.SignInWithRedirectRequest{CustomState: custom}))

	state := authorizeQuery(t, f.opener.Calls()[0]).Get("state")
	nonce, suffix, ok := strings.Cut(state, "-")
	require.True(t, ok)
	require.Len(t, nonce, 32)
	require.NotEmpty(t, suffix)

	event, ok := f.events.find(hub.EventCustomOAuthState)
	require.True(t, ok)
	require.Equal(t, custom, event.Data)
	require.Equal(t, []string{hub.EventSignInWithRedirect, hub.EventCustomOAuthState}, f.events.names())
}

func TestSignInWithRedirectProviders(t *testing.T) {
	tests := []struct {
		name     string
		provider auth.Provider
		want     string
	}{
		{"default", nil, "COGNITO"},
		{"google", auth.ProviderGoogle, "Google"},
		{"facebook", auth.ProviderFacebook, "Facebook"},
		{"amazon", auth.ProviderAmazon, "LoginWithAmazon"},
		{"apple", auth.ProviderApple, "SignInWithApple"},
		{"custom", auth.CustomProvider("CorpSAML"), "CorpSAML"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := setupTestFixture(t, oauth2.CodeResponseType)
			f.opener.setRespond(func(context.Context, string, []string) (browser.Result, error) {
				return browser.Result{Type: browser.Cancelled}, nil
			})

			require.NoError(t, f.client.SignInWithRedirect(context.Background(), auth.SignInWithRedirectRequest{Provider: tt.provider}))
			require.Equal(t, tt.want, authorizeQuery(t, f.opener.Calls()[0]).Get("identity_provider"))
		})
	}

	t.Run("unknown", func(t *testing.T) {
		f := setupTestFixture(t, oauth2.CodeResponseType)
		err := f.client.SignInWithRedirect(context.Background(), auth.SignInWithRedirectRequest{Provider: auth.WellKnownProvider("MySpace")})
		require.ErrorIs(t, err, auth.ErrUnknownProvider)
		require.Empty(t, f.opener.Calls())
		require.Equal(t, 0, f.store.Len())
	})
}

func TestSignInWithRedirectVerifiesIDToken(t *testing.T) {
	srv := testserver.New(t, testClientID)
	impostor := testserver.New(t, testClientID)
	tests := []struct {
		name    string
		key     crypto.PublicKey
		wantErr bool
	}{
		{"signed by the issuer", srv.PublicKey(), false},
		{"signed by someone else", impostor.PublicKey(), true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			keySet := &oidc.StaticKeySet{PublicKeys: []crypto.PublicKey{tt.key}}
			verifier := token.NewIDTokenVerifierWithKeySet(keySet, srv.Issuer(), testClientID)
			f := setupTestFixtureWithConfig(t, srv, newTestConfig(srv, oauth2.CodeResponseType), auth.WithIDTokenVerifier(verifier))

			err := f.client.SignInWithRedirect(context.Background(), auth.SignInWithRedirectRequest{})
			if !tt.wantErr {
				require.NoError(t, err)
				return
			}
			require.ErrorIs(t, err, auth.ErrOAuthSignIn)
			requireNoSession(t, f)
		})
	}
}

func TestSignInWithRedirectMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	f := setupTestFixture(t, oauth2.CodeResponseType, auth.WithMetricsRegisterer(reg))
	f.signIn(t)

	expected := `
# HELP authsdk_signin_flows_total Redirect sign-in flows by outcome
# TYPE authsdk_signin_flows_total counter
authsdk_signin_flows_total{outcome="success",response_type="code"} 1
`
	require.NoError(t, testutil.GatherAndCompare(reg, strings.NewReader(expected), "authsdk_signin_flows_total"))

	_, err := auth.NewClient(f.cfg, f.store, f.opener, auth.WithMetricsRegisterer(reg))
	require.Error(t, err)
}

func TestTokensAreEncryptedAtRest(t *testing.T) {
	srv := testserver.New(t, testClientID)
	cfg := newTestConfig(srv, oauth2.CodeResponseType)
	cfg.Security.TokenEncryptionKey = base64.StdEncoding.EncodeToString([]byte("0123456789abcdef0123456789abcdef"))
	f := setupTestFixtureWithConfig(t, srv, cfg)

	require.NoError(t, f.client.SignInWithRedirect(context.Background(), auth.SignInWithRedirectRequest{}))

	raw, ok, err := f.store.Get(context.Background(), "authsdk."+testClientID+".tokens")
	require.NoError(t, err)
	require.True(t, ok)
	require.NotContains(t, raw, *srv.Issued()[0].AccessToken)
	require.NotContains(t, raw, "accessToken")

	tokens, err := f.client.GetTokens(context.Background(), auth.GetTokensOptions{})
	require.NoError(t, err)
	require.Equal(t, *srv.Issued()[0].AccessToken, tokens.AccessToken.Raw)

	cfg.Security.TokenEncryptionKey = "short"
	_, err = auth.NewClient(cfg, f.store, f.opener)
	require.Error(t, err)
}

func TestSignInAfterEncryptionKeyRotation(t *testing.T) {
	srv := testserver.New(t, testClientID)
	cfg := newTestConfig(srv, oauth2.CodeResponseType)
	cfg.Security.TokenEncryptionKey = base64.StdEncoding.EncodeToString([]byte("0123456789abcdef0123456789abcdef"))
	f := setupTestFixtureWithConfig(t, srv, cfg)
	require.NoError(t, f.client.SignInWithRedirect(context.Background(), auth.SignInWithRedirectRequest{}))

	cfg.Security.TokenEncryptionKey = base64.StdEncoding.EncodeToString([]byte("fedcba9876543210fedcba9876543210"))
	rotated, err := auth.NewClient(cfg, f.store, f.opener, auth.WithHTTPClient(srv.Client()))
	require.NoError(t, err)

	// records sealed with the old key read as signed out
	_, err = rotated.GetTokens(context.Background(), auth.GetTokensOptions{})
	require.ErrorIs(t, err, auth.ErrNoTokens)

	require.NoError(t, rotated.SignInWithRedirect(context.Background(), auth.SignInWithRedirectRequest{}))
	tokens, err := rotated.GetTokens(context.Background(), auth.GetTokensOptions{})
	require.NoError(t, err)
	require.Equal(t, *srv.Issued()[1].AccessToken, tokens.AccessToken.Raw)
}

// flakyTokenTransport lets the first token request reach the server and then
// reports it as unavailable, the way a lost response looks to the client.
type flakyTokenTransport struct {
	next   http.RoundTripper
	failed atomic.Bool
}

func (t *flakyTokenTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	resp, err := t.next.RoundTrip(req)
	if err != nil || req.URL.Path != testserver.RouteOAuth2Token || !t.failed.CompareAndSwap(false, true) {
		return resp, err
	}
	resp.Body.Close()
	return &http.Response{
		StatusCode: http.StatusServiceUnavailable,
		Status:     "503 Service Unavailable",
		Header:     http.Header{},
		Body:       io.NopCloser(strings.NewReader("")),
		Request:    req,
	}, nil
}

func TestCodeExchangeIsNotRetried(t *testing.T) {
	srv := testserver.New(t, testClientID)
	transport := &flakyTokenTransport{next: srv.Client().Transport}
	retrying := httpclient.New("", httpclient.WithTransport(transport), httpclient.WithRetryWait(time.Millisecond, 5*time.Millisecond))
	f := setupTestFixtureWithConfig(t, srv, newTestConfig(srv, oauth2.CodeResponseType), auth.WithHTTPClient(retrying))

	err := f.client.SignInWithRedirect(context.Background(), auth.SignInWithRedirectRequest{})
	require.Error(t, err)
	require.ErrorIs(t, err, auth.ErrOAuthSignIn)
	require.Len(t, srv.TokenRequests(), 1)
	requireNoSession(t, f)
}

func TestImplicitFlowMalformedExpiresIn(t *testing.T) {
	var logs bytes.Buffer
	f := setupTestFixture(t, oauth2.TokenResponseType, auth.WithLogger(zerolog.New(&logs)))
	f.opener.setRespond(func(ctx context.Context, u string, redirectURIs []string) (browser.Result, error) {
		result, err := f.hostedUI(ctx, u, redirectURIs)
		if err != nil {
			return result, err
		}
		require.Contains(t, result.URL, "expires_in=3600")
		result.URL = strings.Replace(result.URL, "expires_in=3600", "expires_in=soon", 1)
		return result, nil
	})

	require.NoError(t, f.client.SignInWithRedirect(context.Background(), auth.SignInWithRedirectRequest{}))

	cached, err := f.cachedTokens(t)
	require.NoError(t, err)
	require.Equal(t, *f.srv.Issued()[0].AccessToken, cached.AccessToken.Raw)
	require.Zero(t, cached.ExpiresIn)
	require.Contains(t, logs.String(), `"level":"warn"`)
	require.Contains(t, logs.String(), `"expires_in":"soon"`)
}
