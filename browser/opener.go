// Package browser defines how the auth client opens the hosted UI and waits
// for the redirect back.
package browser

import "context"

// ResultType is the outcome of an auth session.
type ResultType string

const (
	Success   ResultType = "success"
	Cancelled ResultType = "cancelled"
	// Unknown is reported when the platform could not tell what happened.
	// Callers treat it as Cancelled.
	Unknown ResultType = "unknown"
)

// Result of OpenAuthSession. URL is set only for Success and is the full
// redirect URL, including query and fragment.
type Result struct {
	Type ResultType
	URL  string
}

// Opener opens url in a browser and blocks until the browser is sent to
// one of redirectURIs, the user gives up, or ctx is done.
type Opener interface {
	OpenAuthSession(ctx context.Context, url string, redirectURIs []string) (Result, error)
}

// OpenerFunc adapts a function to Opener.
type OpenerFunc func(ctx context.Context, url string, redirectURIs []string) (Result, error)

func (f OpenerFunc) OpenAuthSession(ctx context.Context, url string, redirectURIs []string) (Result, error) {
	return f(ctx, url, redirectURIs)
}
