package config

import (
	"strings"

	"github.com/jrsteele09/go-auth-sdk/oauth2"
)

// OAuthConfig describes the hosted UI of the identity service.
type OAuthConfig struct {
	// Domain is the hosted UI domain without scheme, e.g. "myapp.auth.us-east-1.example.com".
	Domain string
	Scopes []string
	// RedirectSignIn lists the allowed sign-in redirect URIs; the first is used.
	RedirectSignIn []string
	// RedirectSignOut lists the allowed sign-out redirect URIs; the first is used.
	RedirectSignOut []string
	ResponseType    oauth2.ResponseType
}

func (o *OAuthConfig) complete() bool {
	return strings.TrimSpace(o.Domain) != "" &&
		len(o.RedirectSignIn) > 0 &&
		len(o.RedirectSignOut) > 0 &&
		strings.TrimSpace(string(o.ResponseType)) != ""
}

// AuthorizeEndpoint is the hosted UI authorization endpoint.
func (o *OAuthConfig) AuthorizeEndpoint() string {
	return "https://" + o.Domain + "/oauth2/authorize"
}

// TokenEndpoint is the hosted UI token endpoint.
func (o *OAuthConfig) TokenEndpoint() string {
	return "https://" + o.Domain + "/oauth2/token"
}

// RevokeEndpoint is the hosted UI token revocation endpoint.
func (o *OAuthConfig) RevokeEndpoint() string {
	return "https://" + o.Domain + "/oauth2/revoke"
}

// LogoutEndpoint is the hosted UI logout endpoint.
func (o *OAuthConfig) LogoutEndpoint() string {
	return "https://" + o.Domain + "/logout"
}
