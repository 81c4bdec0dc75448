package auth

import (
	"context"

	"github.com/google/go-querystring/query"
	"github.com/jrsteele09/go-auth-sdk/browser"
	"github.com/jrsteele09/go-auth-sdk/config"
	"github.com/jrsteele09/go-auth-sdk/hub"
	"github.com/jrsteele09/go-auth-sdk/oauth2"
	"github.com/jrsteele09/go-auth-sdk/token"
)

// SignOut clears the local session. Only a missing token provider
// configuration is reported; revocation and logout redirect failures are
// logged and the local tokens are cleared regardless.
func (c *Client) SignOut(ctx context.Context, req SignOutRequest) error {
	if err := config.ValidateTokenProvider(&c.cfg); err != nil {
		return err
	}
	if err := c.waitForInflight(ctx); err != nil {
		c.logger.Warn().Err(err).Msg("stopped waiting for in-flight sign in")
	}

	mode := "local"
	if req.Global {
		mode = "global"
	}
	logger := c.logger.With().Str("mode", mode).Logger()

	tokens, err := c.tokens.Load(ctx)
	switch {
	case err != nil:
		logger.Debug().Err(err).Msg("no usable tokens, skipping revocation")
	case req.Global && c.globalSignOuter != nil:
		err := c.globalSignOuter.GlobalSignOut(ctx, tokens.AccessToken.Raw)
		c.metrics.Revocation(string(oauth2.AccessTokenHint), err)
		if err != nil {
			logger.Error().Err(err).Msg("global sign out failed")
		}
	default:
		c.revokeRefreshToken(ctx, tokens)
	}

	if config.ValidateOAuth(&c.cfg) == nil {
		c.signOutRedirect(ctx)
	}

	cleanupCtx := context.WithoutCancel(ctx)
	if err := c.tokens.Clear(cleanupCtx); err != nil {
		logger.Error().Err(err).Msg("failed to clear token cache")
	}
	if c.credentialsClearer != nil {
		if err := c.credentialsClearer.ClearCredentials(cleanupCtx); err != nil {
			logger.Error().Err(err).Msg("failed to clear credentials")
		}
	}

	c.metrics.SignOut(mode)
	c.hub.Dispatch(hub.Event{Name: hub.EventSignedOut})
	logger.Info().Msg("signed out")
	return nil
}

// revokeRefreshToken revokes only refresh tokens whose access token carries
// origin_jti; tokens issued without it cannot be revoked.
func (c *Client) revokeRefreshToken(ctx context.Context, tokens *token.TokenSet) {
	if tokens.RefreshToken == "" || tokens.AccessToken.String("origin_jti") == "" || c.revoker == nil {
		c.logger.Debug().Msg("refresh token not revocable, discarding locally")
		return
	}
	err := c.revoker.RevokeToken(ctx, token.RevokeRequest{
		Token:    tokens.RefreshToken,
		ClientID: c.cfg.UserPoolClientID,
	})
	c.metrics.Revocation(string(oauth2.RefreshTokenHint), err)
	if err != nil {
		c.logger.Error().Err(err).Msg("refresh token revocation failed")
	}
}

// signOutRedirect clears the flow record and, when the session came from the
// hosted UI, sends the browser to /logout to end the hosted UI session.
func (c *Client) signOutRedirect(ctx context.Context) {
	flow, err := c.flows.Load(ctx)
	if err != nil {
		c.logger.Error().Err(err).Msg("failed to read oauth flow state")
	}
	if err := c.flows.Clear(context.WithoutCancel(ctx)); err != nil {
		c.logger.Error().Err(err).Msg("failed to clear oauth flow state")
	}
	if !flow.CompletedSignIn {
		return
	}

	oauthCfg := c.cfg.OAuth
	values, err := query.Values(logoutQuery{
		ClientID:  c.cfg.UserPoolClientID,
		LogoutURI: oauthCfg.RedirectSignOut[0],
	})
	if err != nil {
		c.logger.Error().Err(err).Msg("failed to build logout url")
		return
	}
	result := c.openAuthSession(ctx, oauthCfg.LogoutEndpoint()+"?"+percentEncode(values.Encode()), oauthCfg.RedirectSignOut)
	if result.Type != browser.Success {
		c.logger.Info().Str("result", string(result.Type)).Msg("hosted ui logout not completed")
	}
}
