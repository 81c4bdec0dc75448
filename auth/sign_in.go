package auth

import (
	"context"
	"strings"

	"github.com/google/go-querystring/query"
	"github.com/jrsteele09/go-auth-sdk/browser"
	"github.com/jrsteele09/go-auth-sdk/config"
	"github.com/jrsteele09/go-auth-sdk/internal/metrics"
	"github.com/jrsteele09/go-auth-sdk/oauth2"
	"github.com/pkg/errors"
	xoauth2 "golang.org/x/oauth2"
)

// SignInWithRedirect opens the hosted UI and finishes the sign-in when the
// browser comes back. A cancelled browser session is not an error; the flow
// is settled and nothing is cached.
func (c *Client) SignInWithRedirect(ctx context.Context, req SignInWithRedirectRequest) error {
	if err := config.ValidateTokenProvider(&c.cfg); err != nil {
		return err
	}
	if err := config.ValidateOAuth(&c.cfg); err != nil {
		return err
	}
	provider, err := resolveProvider(req.Provider)
	if err != nil {
		return err
	}

	flowID, err := c.inflight.begin(ctx)
	if err != nil {
		return errors.Wrap(err, "[SignInWithRedirect] waiting for in-flight sign in")
	}
	logger := c.logger.With().Str("flow", flowID).Str("provider", provider).Logger()

	authReq, err := c.newAuthorizationRequest(flowID, provider, req.CustomState)
	if err != nil {
		c.settleFlow(ctx, flowID, false, metrics.OutcomeFailed)
		return err
	}
	if err := c.flows.Start(ctx, authReq.state, authReq.verifier, authReq.startedAt); err != nil {
		c.settleFlow(ctx, flowID, false, metrics.OutcomeFailed)
		return errors.Wrap(err, "[SignInWithRedirect] persist flow state")
	}

	logger.Debug().Msg("opening hosted ui")
	result := c.openAuthSession(ctx, authReq.url, c.cfg.OAuth.RedirectSignIn)
	if result.Type != browser.Success {
		logger.Info().Str("result", string(result.Type)).Msg("sign in with redirect not completed")
		c.settleFlow(ctx, flowID, false, metrics.OutcomeCancelled)
		return nil
	}
	if flow, err := c.flows.Load(ctx); err == nil && flow.State != authReq.state {
		logger.Info().Msg("flow already settled by an out of band redirect")
		c.settleFlow(ctx, flowID, false, metrics.OutcomeNoMatch)
		return nil
	}
	return c.handleRedirect(ctx, flowID, result.URL)
}

func (c *Client) newAuthorizationRequest(flowID, provider, customState string) (*authorizationRequest, error) {
	oauthCfg := c.cfg.OAuth

	nonce, err := generateState(stateLength)
	if err != nil {
		return nil, err
	}
	authReq := &authorizationRequest{
		flowID:      flowID,
		state:       withCustomState(nonce, customState),
		verifier:    xoauth2.GenerateVerifier(),
		redirectURI: oauthCfg.RedirectSignIn[0],
		startedAt:   c.nowTime(),
	}

	q := authorizeQuery{
		RedirectURI:      authReq.redirectURI,
		ResponseType:     string(oauthCfg.ResponseType),
		ClientID:         c.cfg.UserPoolClientID,
		IdentityProvider: provider,
		Scope:            oauthCfg.Scopes,
		State:            authReq.state,
	}
	if oauthCfg.ResponseType == oauth2.CodeResponseType {
		q.CodeChallenge = oauth2.S256Challenge(authReq.verifier)
		q.CodeChallengeMethod = string(oauth2.CodeMethodTypeS256)
	}
	values, err := query.Values(q)
	if err != nil {
		return nil, errors.Wrap(err, "[newAuthorizationRequest] encode query")
	}
	authReq.url = oauthCfg.AuthorizeEndpoint() + "?" + percentEncode(values.Encode())
	return authReq, nil
}

// percentEncode turns form encoding into percent encoding. A literal '+' is
// already escaped as %2B, so every remaining '+' is a space.
func percentEncode(encoded string) string {
	return strings.ReplaceAll(encoded, "+", "%20")
}

// openAuthSession normalises the opener's outcome: errors become Unknown and
// a success without a URL is a cancellation.
func (c *Client) openAuthSession(ctx context.Context, url string, redirectURIs []string) browser.Result {
	result, err := c.opener.OpenAuthSession(ctx, url, redirectURIs)
	if err != nil {
		c.logger.Warn().Err(err).Msg("auth session failed")
		return browser.Result{Type: browser.Unknown}
	}
	if result.Type == browser.Success && result.URL == "" {
		return browser.Result{Type: browser.Cancelled}
	}
	return result
}

// settleFlow resets the persisted flow, releases every waiter and frees the
// flow slot when flowID owns it. The store write ignores cancellation of ctx
// so a cancelled caller still settles.
func (c *Client) settleFlow(ctx context.Context, flowID string, succeeded bool, outcome string) {
	if c.flows != nil {
		if err := c.flows.Settle(context.WithoutCancel(ctx), succeeded); err != nil {
			c.logger.Error().Err(err).Msg("failed to settle oauth flow state")
		}
	}
	c.inflight.settle(flowID)
	c.metrics.SignIn(outcome, c.responseType())
}
