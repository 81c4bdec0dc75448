package auth

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"net/url"
	"strings"

	"github.com/pkg/errors"
)

const (
	stateLength  = 32
	stateCharset = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789"
)

// generateState returns a random alphanumeric nonce.
func generateState(n int) (string, error) {
	// 248 is the largest multiple of 62 below 256; higher bytes are redrawn
	// so every character is equally likely.
	const limit = 248
	out := make([]byte, 0, n)
	buf := make([]byte, n)
	for len(out) < n {
		if _, err := rand.Read(buf); err != nil {
			return "", errors.Wrap(err, "[generateState]")
		}
		for _, b := range buf {
			if b >= limit {
				continue
			}
			out = append(out, stateCharset[int(b)%len(stateCharset)])
			if len(out) == n {
				break
			}
		}
	}
	return string(out), nil
}

// withCustomState appends the caller's state as hex, which survives the
// hosted UI's repeated URL encoding unchanged.
func withCustomState(nonce, customState string) string {
	if customState == "" {
		return nonce
	}
	return nonce + "-" + hex.EncodeToString([]byte(customState))
}

// customStateOf extracts the custom state from a returned state value.
func customStateOf(state string) (string, bool) {
	_, suffix, ok := strings.Cut(state, "-")
	if !ok {
		return "", false
	}
	decoded, err := hex.DecodeString(suffix)
	if err != nil {
		return "", false
	}
	return string(decoded), true
}

// validateState compares the returned state with the persisted nonce.
//
// When no nonce is persisted the flow was not started by this client, for
// example because the app was killed while the browser was open and then
// relaunched by the redirect. The state is accepted unchecked in that case so
// the sign-in can still finish. This weakens CSRF protection for that path.
func (c *Client) validateState(ctx context.Context, returnedState string) error {
	flow, err := c.flows.Load(ctx)
	if err != nil {
		return errors.Wrap(err, "[validateState]")
	}
	if flow.State == "" {
		c.logger.Warn().Msg("no persisted oauth state, accepting redirect without state check")
		return nil
	}
	if returnedState != flow.State {
		return stateMismatchError()
	}
	return nil
}

// samePath reports whether returned lands on the path of redirectURI.
// An empty path counts as "/".
func samePath(returned *url.URL, redirectURI string) bool {
	configured, err := url.Parse(redirectURI)
	if err != nil {
		return false
	}
	return pathOrRoot(returned.Path) == pathOrRoot(configured.Path)
}

func pathOrRoot(p string) string {
	if p == "" {
		return "/"
	}
	return p
}
