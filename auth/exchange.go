package auth

import (
	"context"

	"github.com/jrsteele09/go-auth-sdk/internal/httpclient"
	"github.com/jrsteele09/go-auth-sdk/token"
	"github.com/pkg/errors"
	xoauth2 "golang.org/x/oauth2"
)

// exchangeCode trades the authorization code for tokens. The PKCE verifier
// is read from the flow store, never passed along from the flow start.
func (c *Client) exchangeCode(ctx context.Context, code, redirectURI string) (*token.TokenSet, error) {
	flow, err := c.flows.Load(ctx)
	if err != nil {
		return nil, oauthSignInError(errors.Wrap(err, "[exchangeCode] load pkce verifier"))
	}

	conf := xoauth2.Config{
		ClientID:    c.cfg.UserPoolClientID,
		RedirectURL: redirectURI,
		Endpoint: xoauth2.Endpoint{
			TokenURL:  c.cfg.OAuth.TokenEndpoint(),
			AuthStyle: xoauth2.AuthStyleInParams,
		},
	}
	var opts []xoauth2.AuthCodeOption
	if flow.PKCEVerifier != "" {
		opts = append(opts, xoauth2.VerifierOption(flow.PKCEVerifier))
	}

	// a code is single use; a replayed request would only earn invalid_grant
	exchangeCtx := httpclient.WithoutRetry(context.WithValue(ctx, xoauth2.HTTPClient, c.httpClient))
	tok, err := conf.Exchange(exchangeCtx, code, opts...)
	if err != nil {
		var retrieveErr *xoauth2.RetrieveError
		if errors.As(err, &retrieveErr) && retrieveErr.ErrorCode != "" {
			return nil, oauthSignInError(errors.Errorf("%s: %s", retrieveErr.ErrorCode, retrieveErr.ErrorDescription))
		}
		return nil, oauthSignInError(errors.Wrap(err, "[exchangeCode] token request"))
	}

	tokens, err := token.FromOAuth2Token(tok)
	if err != nil {
		return nil, oauthSignInError(err)
	}
	if err := c.verifyIDToken(ctx, tokens); err != nil {
		return nil, err
	}
	return tokens, nil
}

func (c *Client) verifyIDToken(ctx context.Context, tokens *token.TokenSet) error {
	if c.idTokenVerifier == nil || tokens.IDToken.IsZero() {
		return nil
	}
	if err := c.idTokenVerifier.Verify(ctx, tokens.IDToken.Raw); err != nil {
		return oauthSignInError(err)
	}
	return nil
}
