package auth

import (
	"context"

	"github.com/jrsteele09/go-auth-sdk/config"
	"github.com/jrsteele09/go-auth-sdk/hub"
	"github.com/jrsteele09/go-auth-sdk/token"
	"github.com/jrsteele09/go-auth-sdk/token/refresh"
	"github.com/pkg/errors"
)

// GetTokens returns the cached tokens, refreshing them when the access token
// is about to expire or ForceRefresh is set. It waits for an in-flight
// redirect sign-in first, so it never reads a half finished session.
func (c *Client) GetTokens(ctx context.Context, opts GetTokensOptions) (*token.TokenSet, error) {
	if err := config.ValidateTokenProvider(&c.cfg); err != nil {
		return nil, err
	}
	if err := c.waitForInflight(ctx); err != nil {
		return nil, errors.Wrap(err, "[GetTokens] waiting for in-flight sign in")
	}

	tokens, err := c.loadTokens(ctx)
	if err != nil {
		return nil, err
	}
	if !opts.ForceRefresh && !tokens.Expired(c.nowTime(), refreshSkew) {
		return tokens, nil
	}
	if c.refresher == nil {
		c.logger.Warn().Msg("tokens expired and no refresher configured")
		return tokens, nil
	}
	return c.refreshTokens(ctx, opts.ForceRefresh)
}

// loadTokens drops a cache record that cannot be decoded.
func (c *Client) loadTokens(ctx context.Context) (*token.TokenSet, error) {
	tokens, err := c.tokens.Load(ctx)
	if errors.Is(err, token.ErrInvalidToken) {
		c.logger.Warn().Err(err).Msg("discarding undecodable cached tokens")
		if clearErr := c.tokens.Clear(ctx); clearErr != nil {
			c.logger.Error().Err(clearErr).Msg("failed to clear token cache")
		}
		return nil, ErrNoTokens
	}
	return tokens, err
}

func (c *Client) refreshTokens(ctx context.Context, force bool) (*token.TokenSet, error) {
	c.refreshMu.Lock()
	defer c.refreshMu.Unlock()

	// Another caller may have refreshed while this one waited for the lock.
	current, err := c.loadTokens(ctx)
	if err != nil {
		return nil, err
	}
	if !force && !current.Expired(c.nowTime(), refreshSkew) {
		return current, nil
	}

	next, err := c.refresher.Refresh(ctx, current)
	c.metrics.Refresh(err)
	if err != nil {
		c.hub.Dispatch(hub.Event{Name: hub.EventTokenRefreshFailure, Data: err})
		if errors.Is(err, refresh.ErrInvalidGrant) || errors.Is(err, refresh.ErrNoRefreshToken) {
			c.logger.Info().Err(err).Msg("session ended, clearing tokens")
			if clearErr := c.tokens.Clear(ctx); clearErr != nil {
				c.logger.Error().Err(clearErr).Msg("failed to clear token cache")
			}
		}
		return nil, errors.Wrap(err, "[GetTokens] refresh")
	}

	if err := c.tokens.Store(ctx, next); err != nil {
		return nil, errors.Wrap(err, "[GetTokens] cache refreshed tokens")
	}
	c.hub.Dispatch(hub.Event{Name: hub.EventTokenRefresh})
	return next, nil
}

// waitForInflight blocks while this client has a redirect flow in flight.
// A persisted in-flight flag with no active flow in this process was left
// by a process that died mid flow and is ignored.
func (c *Client) waitForInflight(ctx context.Context) error {
	if c.flows == nil {
		return nil
	}
	if c.inflight.active() {
		return c.inflight.wait(ctx)
	}
	flow, err := c.flows.Load(ctx)
	if err != nil {
		return errors.Wrap(err, "[waitForInflight]")
	}
	if flow.InFlight {
		c.logger.Debug().Msg("ignoring stale in-flight oauth flag")
	}
	return nil
}
