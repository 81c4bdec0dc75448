package auth

import (
	"context"
	"time"

	"github.com/jrsteele09/go-auth-sdk/token"
)

// Provider selects the identity provider the hosted UI signs in with: a
// WellKnownProvider or a CustomProvider. A nil Provider means the user pool
// itself.
type Provider interface {
	identityProvider() (string, error)
}

// WellKnownProvider is a social provider with a fixed hosted UI name.
type WellKnownProvider string

const (
	ProviderGoogle   WellKnownProvider = "Google"
	ProviderFacebook WellKnownProvider = "Facebook"
	ProviderAmazon   WellKnownProvider = "Amazon"
	ProviderApple    WellKnownProvider = "Apple"
)

// userPoolProvider is the identity_provider of the user pool's own directory.
const userPoolProvider = "COGNITO"

var hostedUIProviders = map[WellKnownProvider]string{
	ProviderGoogle:   "Google",
	ProviderFacebook: "Facebook",
	ProviderAmazon:   "LoginWithAmazon",
	ProviderApple:    "SignInWithApple",
}

func (p WellKnownProvider) identityProvider() (string, error) {
	name, ok := hostedUIProviders[p]
	if !ok {
		return "", unknownProviderError(p)
	}
	return name, nil
}

// CustomProvider is the name of a SAML or OIDC provider configured on the
// user pool. It is sent unchanged.
type CustomProvider string

func (p CustomProvider) identityProvider() (string, error) {
	return string(p), nil
}

func resolveProvider(p Provider) (string, error) {
	if p == nil {
		return userPoolProvider, nil
	}
	return p.identityProvider()
}

// SignInWithRedirectRequest selects the provider and carries opaque custom
// state that is echoed back through a customOAuthState hub event.
type SignInWithRedirectRequest struct {
	Provider    Provider
	CustomState string
}

// SignOutRequest chooses between local and global sign-out. Global signs the
// user out of every device and needs a GlobalSignOuter.
type SignOutRequest struct {
	Global bool
}

// GetTokensOptions controls GetTokens.
type GetTokensOptions struct {
	// ForceRefresh refreshes even when the access token is still valid.
	ForceRefresh bool
}

// TokenRevoker revokes a refresh token at the identity service.
type TokenRevoker interface {
	RevokeToken(ctx context.Context, req token.RevokeRequest) error
}

// GlobalSignOuter invalidates every token of the user, typically through a
// signed identity service API.
type GlobalSignOuter interface {
	GlobalSignOut(ctx context.Context, accessToken string) error
}

// CredentialsClearer drops credentials derived from the tokens, such as
// cached identity pool credentials.
type CredentialsClearer interface {
	ClearCredentials(ctx context.Context) error
}

// IDTokenVerifier checks an ID token before it is cached.
type IDTokenVerifier interface {
	Verify(ctx context.Context, rawIDToken string) error
}

// TokenRefresher renews an expired TokenSet.
type TokenRefresher interface {
	Refresh(ctx context.Context, current *token.TokenSet) (*token.TokenSet, error)
}

// authorizeQuery is the query of the hosted UI authorization request.
type authorizeQuery struct {
	RedirectURI         string   `url:"redirect_uri"`
	ResponseType        string   `url:"response_type"`
	ClientID            string   `url:"client_id"`
	IdentityProvider    string   `url:"identity_provider"`
	Scope               []string `url:"scope,space"`
	State               string   `url:"state"`
	CodeChallenge       string   `url:"code_challenge,omitempty"`
	CodeChallengeMethod string   `url:"code_challenge_method,omitempty"`
}

// logoutQuery is the query of the hosted UI logout request.
type logoutQuery struct {
	ClientID  string `url:"client_id"`
	LogoutURI string `url:"logout_uri"`
}

// authorizationRequest is the per flow context built at sign-in start.
type authorizationRequest struct {
	flowID      string
	state       string
	verifier    string
	redirectURI string
	url         string
	startedAt   time.Time
}
