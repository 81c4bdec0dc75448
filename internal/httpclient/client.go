// Package httpclient builds the HTTP client used for token, refresh and
// revocation calls: retries on transient failures, a User-Agent on every
// request, and zerolog output.
package httpclient

import (
	"context"
	"net/http"
	"time"

	"github.com/hashicorp/go-retryablehttp"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// DefaultUserAgent identifies the SDK to the identity service.
const DefaultUserAgent = "go-auth-sdk/1.0"

// LeveledZerolog adapts zerolog to retryablehttp.LeveledLogger.
type LeveledZerolog struct {
	inner zerolog.Logger
}

// re-writes HTTP client ERROR to WARN level (because of retries)
func (l LeveledZerolog) Error(msg string, keysAndValues ...any) {
	l.inner.Warn().Fields(keysAndValues).Msg(msg)
}

func (l LeveledZerolog) Warn(msg string, keysAndValues ...any) {
	l.inner.Warn().Fields(keysAndValues).Msg(msg)
}

func (l LeveledZerolog) Info(msg string, keysAndValues ...any) {
	l.inner.Info().Fields(keysAndValues).Msg(msg)
}

func (l LeveledZerolog) Debug(msg string, keysAndValues ...any) {
	l.inner.Debug().Fields(keysAndValues).Msg(msg)
}

type userAgentTransport struct {
	userAgent string
	next      http.RoundTripper
}

func (t userAgentTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	if req.Header.Get("User-Agent") == "" {
		req = req.Clone(req.Context())
		req.Header.Set("User-Agent", t.userAgent)
	}
	return t.next.RoundTrip(req)
}

// Option configures the retrying client.
type Option func(*retryablehttp.Client)

// WithMaxRetries sets the maximum number of retries.
func WithMaxRetries(maxRetries int) Option {
	return func(client *retryablehttp.Client) {
		client.RetryMax = maxRetries
	}
}

// WithRetryWait sets the wait bounds between retries.
func WithRetryWait(waitMin, waitMax time.Duration) Option {
	return func(client *retryablehttp.Client) {
		client.RetryWaitMin = waitMin
		client.RetryWaitMax = waitMax
	}
}

// WithLogger sets the logger used for retry diagnostics.
func WithLogger(logger zerolog.Logger) Option {
	return func(client *retryablehttp.Client) {
		client.Logger = retryablehttp.LeveledLogger(LeveledZerolog{inner: logger})
	}
}

// WithTransport sets the underlying transport.
func WithTransport(transport http.RoundTripper) Option {
	return func(client *retryablehttp.Client) {
		client.HTTPClient.Transport = transport
	}
}

// New returns a stdlib *http.Client with retryablehttp logic inside. It
// retries connection errors and 5xx (except 501) but never 4xx, so OAuth
// error responses reach the caller on the first attempt.
func New(userAgent string, options ...Option) *http.Client {
	if userAgent == "" {
		userAgent = DefaultUserAgent
	}
	retryClient := retryablehttp.NewClient()
	retryClient.RetryMax = 2
	retryClient.RetryWaitMin = 200 * time.Millisecond
	retryClient.RetryWaitMax = 2 * time.Second
	retryClient.Logger = retryablehttp.LeveledLogger(LeveledZerolog{inner: log.With().Str("component", "httpclient").Logger()})
	retryClient.CheckRetry = DefaultRetryPolicy

	for _, option := range options {
		option(retryClient)
	}

	retryClient.HTTPClient.Transport = userAgentTransport{
		userAgent: userAgent,
		next:      transportOrDefault(retryClient.HTTPClient.Transport),
	}

	client := retryClient.StandardClient()
	client.Timeout = 30 * time.Second
	return client
}

func transportOrDefault(t http.RoundTripper) http.RoundTripper {
	if t == nil {
		return http.DefaultTransport
	}
	return t
}

type noRetryKey struct{}

// WithoutRetry marks requests made with ctx as single attempt. Use it for
// calls that must not be replayed, such as redeeming an authorization code.
func WithoutRetry(ctx context.Context) context.Context {
	return context.WithValue(ctx, noRetryKey{}, true)
}

func retryDisabled(ctx context.Context) bool {
	disabled, _ := ctx.Value(noRetryKey{}).(bool)
	return disabled
}

// DefaultRetryPolicy wraps retryablehttp.DefaultRetryPolicy and treats
// 429 Too Many Requests as non-retryable. Requests made under WithoutRetry
// are never retried.
func DefaultRetryPolicy(ctx context.Context, resp *http.Response, err error) (bool, error) {
	if retryDisabled(ctx) {
		return false, nil
	}
	if err == nil && resp.StatusCode == http.StatusTooManyRequests {
		return false, nil
	}
	return retryablehttp.DefaultRetryPolicy(ctx, resp, err)
}
