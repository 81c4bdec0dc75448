package token

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"

	"github.com/google/go-querystring/query"
	"github.com/jrsteele09/go-auth-sdk/oauth2"
	"github.com/pkg/errors"
)

// ErrRevocationFailed is returned when the revocation endpoint rejects a request.
var ErrRevocationFailed = errors.New("token revocation failed")

// RevokeRequest is the form posted to the revocation endpoint (RFC 7009).
type RevokeRequest struct {
	Token         string               `url:"token"`
	ClientID      string               `url:"client_id"`
	TokenTypeHint oauth2.TokenTypeHint `url:"token_type_hint,omitempty"`
}

// HTTPRevoker revokes tokens at the hosted UI's /oauth2/revoke endpoint.
type HTTPRevoker struct {
	client   *http.Client
	endpoint string
}

// NewHTTPRevoker posts to endpoint with client. A nil client means
// http.DefaultClient.
func NewHTTPRevoker(client *http.Client, endpoint string) *HTTPRevoker {
	if client == nil {
		client = http.DefaultClient
	}
	return &HTTPRevoker{client: client, endpoint: endpoint}
}

// RevokeToken revokes req.Token. Revoking a refresh token also invalidates
// the access tokens issued from it.
func (r *HTTPRevoker) RevokeToken(ctx context.Context, req RevokeRequest) error {
	if strings.TrimSpace(req.Token) == "" {
		return errors.Wrap(ErrRevocationFailed, "[RevokeToken] token is required")
	}

	form, err := query.Values(req)
	if err != nil {
		return errors.Wrap(err, "[RevokeToken] encode form")
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, r.endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return errors.Wrap(err, "[RevokeToken] build request")
	}
	httpReq.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := r.client.Do(httpReq)
	if err != nil {
		return errors.Wrap(err, "[RevokeToken] request failed")
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}

	var body oauth2.TokenResponse
	_ = json.NewDecoder(io.LimitReader(resp.Body, 1<<16)).Decode(&body)
	if body.Failed() {
		return errors.Wrapf(ErrRevocationFailed, "[RevokeToken] %s: %s", body.Error, body.ErrorDescription)
	}
	return errors.Wrapf(ErrRevocationFailed, "[RevokeToken] status %d", resp.StatusCode)
}
