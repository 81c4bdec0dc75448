package auth

import (
	"context"
	"net/url"
	"strconv"

	"github.com/jrsteele09/go-auth-sdk/config"
	"github.com/jrsteele09/go-auth-sdk/hub"
	"github.com/jrsteele09/go-auth-sdk/internal/metrics"
	"github.com/jrsteele09/go-auth-sdk/oauth2"
	"github.com/jrsteele09/go-auth-sdk/token"
	"github.com/pkg/errors"
)

// HandleRedirect finishes a sign-in from the URL the browser was sent back
// to. Call it when the redirect reaches the app some other way than through
// the opener, such as a deep link after a relaunch. Whatever the outcome the
// persisted flow is settled and waiters are released before it returns. A
// SignInWithRedirect still waiting on its opener keeps the flow slot until
// the opener returns.
func (c *Client) HandleRedirect(ctx context.Context, returnedURL string) error {
	return c.handleRedirect(ctx, "", returnedURL)
}

// handleRedirect settles as flowID; an empty id settles without owning the
// flow slot.
func (c *Client) handleRedirect(ctx context.Context, flowID, returnedURL string) error {
	if err := config.ValidateTokenProvider(&c.cfg); err != nil {
		return err
	}
	if err := config.ValidateOAuth(&c.cfg); err != nil {
		return err
	}

	u, err := url.Parse(returnedURL)
	if err != nil {
		return c.failSignIn(ctx, flowID, metrics.OutcomeFailed, oauthSignInError(errors.Wrap(err, "[HandleRedirect] invalid url")))
	}

	if errCode := u.Query().Get("error"); errCode != "" {
		cause := errors.New(errCode)
		if description := u.Query().Get("error_description"); description != "" {
			cause = errors.New(description)
		}
		return c.failSignIn(ctx, flowID, metrics.OutcomeFailed, oauthSignInError(cause))
	}

	if c.cfg.OAuth.ResponseType == oauth2.CodeResponseType {
		return c.handleCodeFlow(ctx, flowID, u)
	}
	return c.handleImplicitFlow(ctx, flowID, u)
}

func (c *Client) handleCodeFlow(ctx context.Context, flowID string, u *url.URL) error {
	returnedState := u.Query().Get("state")
	if err := c.validateState(ctx, returnedState); err != nil {
		return c.failSignIn(ctx, flowID, metrics.OutcomeStateMismatch, err)
	}

	code := u.Query().Get("code")
	redirectURI := c.cfg.OAuth.RedirectSignIn[0]
	if code == "" || !samePath(u, redirectURI) {
		c.logger.Debug().Str("path", u.Path).Msg("redirect is not a sign in response")
		c.settleFlow(ctx, flowID, false, metrics.OutcomeNoMatch)
		return nil
	}

	tokens, err := c.exchangeCode(ctx, code, redirectURI)
	if err != nil {
		return c.failSignIn(ctx, flowID, metrics.OutcomeFailed, err)
	}
	return c.completeSignIn(ctx, flowID, tokens, returnedState)
}

// handleImplicitFlow reads the tokens off the fragment. The state is checked
// before the flow record is touched.
func (c *Client) handleImplicitFlow(ctx context.Context, flowID string, u *url.URL) error {
	fragment, err := url.ParseQuery(u.EscapedFragment())
	if err != nil {
		return c.failSignIn(ctx, flowID, metrics.OutcomeFailed, oauthSignInError(errors.Wrap(err, "[handleImplicitFlow] invalid fragment")))
	}

	returnedState := fragment.Get("state")
	if err := c.validateState(ctx, returnedState); err != nil {
		return c.failSignIn(ctx, flowID, metrics.OutcomeStateMismatch, err)
	}

	var expiresIn int
	if raw := fragment.Get("expires_in"); raw != "" {
		if expiresIn, err = strconv.Atoi(raw); err != nil {
			c.logger.Warn().Err(err).Str("expires_in", raw).Msg("ignoring malformed expires_in")
			expiresIn = 0
		}
	}
	tokens, err := token.NewTokenSet(
		fragment.Get("access_token"),
		fragment.Get("id_token"),
		"",
		fragment.Get("token_type"),
		expiresIn,
	)
	if err != nil {
		return c.failSignIn(ctx, flowID, metrics.OutcomeFailed, oauthSignInError(err))
	}
	if err := c.verifyIDToken(ctx, tokens); err != nil {
		return c.failSignIn(ctx, flowID, metrics.OutcomeFailed, err)
	}
	return c.completeSignIn(ctx, flowID, tokens, returnedState)
}

// completeSignIn caches the tokens and only then settles the flow, so a
// released waiter always finds the whole TokenSet.
func (c *Client) completeSignIn(ctx context.Context, flowID string, tokens *token.TokenSet, returnedState string) error {
	if err := c.tokens.Store(ctx, tokens); err != nil {
		return c.failSignIn(ctx, flowID, metrics.OutcomeFailed, oauthSignInError(err))
	}
	c.settleFlow(ctx, flowID, true, metrics.OutcomeSuccess)

	c.logger.Info().Str("sub", tokens.AccessToken.Subject()).Msg("signed in with redirect")
	c.hub.Dispatch(hub.Event{Name: hub.EventSignInWithRedirect})
	if customState, ok := customStateOf(returnedState); ok {
		c.hub.Dispatch(hub.Event{Name: hub.EventCustomOAuthState, Data: customState})
	}
	return nil
}

func (c *Client) failSignIn(ctx context.Context, flowID, outcome string, err error) error {
	c.logger.Warn().Err(err).Str("outcome", outcome).Msg("sign in with redirect failed")
	c.hub.Dispatch(hub.Event{Name: hub.EventSignInWithRedirectFailure, Data: err})
	c.settleFlow(ctx, flowID, false, outcome)
	return err
}
