package browser

import (
	"context"
	"fmt"
	"html/template"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	pkgbrowser "github.com/pkg/browser"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

var (
	// ErrUnsupportedURL is returned for authorization URLs that are not http or https.
	ErrUnsupportedURL = errors.New("unsupported authorization url")
	// ErrNoLoopbackRedirect is returned when no redirect URI points at this machine.
	ErrNoLoopbackRedirect = errors.New("no loopback redirect uri")
)

const fragmentParam = "__fragment"

// relayPage forwards the URL fragment, which never reaches the server, back
// as a query parameter.
var relayPage = template.Must(template.New("relay").Parse(`<!DOCTYPE html>
<html><head><title>Signing in</title></head>
<body><script>
var f = window.location.hash ? window.location.hash.substring(1) : "";
window.location.replace(window.location.pathname + "?{{.}}=" + encodeURIComponent(f));
</script></body></html>`))

const donePage = `<!DOCTYPE html>
<html><head><title>Done</title></head>
<body><p>You can close this window and return to the application.</p></body></html>`

// Loopback is an Opener for desktop apps: it launches the system browser and
// receives the redirect on a local HTTP listener bound to the redirect URI's
// host and port (RFC 8252 section 7.3).
type Loopback struct {
	launch  func(url string) error
	timeout time.Duration
	logger  zerolog.Logger
}

// LoopbackOption configures a Loopback opener.
type LoopbackOption func(*Loopback)

// WithLauncher replaces the system browser launcher.
func WithLauncher(launch func(url string) error) LoopbackOption {
	return func(l *Loopback) {
		l.launch = launch
	}
}

// WithTimeout bounds how long the user has to finish; the session is
// reported as Cancelled after it.
func WithTimeout(timeout time.Duration) LoopbackOption {
	return func(l *Loopback) {
		l.timeout = timeout
	}
}

func WithLogger(logger zerolog.Logger) LoopbackOption {
	return func(l *Loopback) {
		l.logger = logger
	}
}

func NewLoopback(opts ...LoopbackOption) *Loopback {
	l := &Loopback{
		launch:  pkgbrowser.OpenURL,
		timeout: 5 * time.Minute,
		logger:  log.With().Str("component", "browser").Logger(),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

var _ Opener = (*Loopback)(nil)

func (l *Loopback) OpenAuthSession(ctx context.Context, authURL string, redirectURIs []string) (Result, error) {
	u, err := url.Parse(authURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") {
		return Result{}, errors.Wrapf(ErrUnsupportedURL, "[OpenAuthSession] %q", authURL)
	}
	redirect, err := loopbackRedirect(redirectURIs)
	if err != nil {
		return Result{}, err
	}

	listener, err := net.Listen("tcp", redirect.Host)
	if err != nil {
		return Result{}, errors.Wrapf(err, "[OpenAuthSession] listen on %s", redirect.Host)
	}

	results := make(chan string, 1)
	srv := &http.Server{
		Handler:           l.receiver(redirect, results),
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		if err := srv.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			l.logger.Error().Err(err).Msg("loopback receiver stopped")
		}
	}()
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	if err := l.launch(authURL); err != nil {
		return Result{}, errors.Wrap(err, "[OpenAuthSession] launch browser")
	}

	timer := time.NewTimer(l.timeout)
	defer timer.Stop()

	select {
	case returned := <-results:
		return Result{Type: Success, URL: returned}, nil
	case <-timer.C:
		l.logger.Info().Dur("timeout", l.timeout).Msg("auth session timed out")
		return Result{Type: Cancelled}, nil
	case <-ctx.Done():
		return Result{Type: Cancelled}, nil
	}
}

func (l *Loopback) receiver(redirect *url.URL, results chan<- string) http.Handler {
	path := redirect.Path
	if path == "" {
		path = "/"
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != path {
			http.NotFound(w, r)
			return
		}

		query := r.URL.Query()
		if r.URL.RawQuery == "" {
			w.Header().Set("Content-Type", "text/html; charset=utf-8")
			_ = relayPage.Execute(w, fragmentParam)
			return
		}

		returned := *redirect
		returned.Path = r.URL.Path
		if query.Has(fragmentParam) {
			returned.RawQuery = ""
			returned.Fragment = query.Get(fragmentParam)
		} else {
			returned.RawQuery = r.URL.RawQuery
		}

		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		fmt.Fprint(w, donePage)

		select {
		case results <- returnedURL(&returned):
		default:
		}
	})
}

// returnedURL keeps the fragment exactly as the browser had it.
func returnedURL(u *url.URL) string {
	fragment := u.Fragment
	u.Fragment = ""
	s := u.String()
	if fragment != "" {
		s += "#" + fragment
	}
	return s
}

func loopbackRedirect(redirectURIs []string) (*url.URL, error) {
	for _, raw := range redirectURIs {
		u, err := url.Parse(raw)
		if err != nil || u.Scheme != "http" || u.Port() == "" {
			continue
		}
		host := strings.ToLower(u.Hostname())
		if host == "localhost" || net.ParseIP(host).IsLoopback() {
			return u, nil
		}
	}
	return nil, errors.Wrapf(ErrNoLoopbackRedirect, "[OpenAuthSession] %v", redirectURIs)
}
