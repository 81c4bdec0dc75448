package config

import (
	"strings"

	"github.com/caarlos0/env/v11"
	"github.com/jrsteele09/go-auth-sdk/oauth2"
	"github.com/pkg/errors"
)

// authEnv holds raw env values for the auth configuration.
type authEnv struct {
	UserPoolID         string   `env:"AUTH_USER_POOL_ID"`
	UserPoolClientID   string   `env:"AUTH_USER_POOL_CLIENT_ID"`
	IdentityPoolID     string   `env:"AUTH_IDENTITY_POOL_ID"`
	Domain             string   `env:"AUTH_OAUTH_DOMAIN"`
	Scopes             []string `env:"AUTH_OAUTH_SCOPES"              envSeparator:"," envDefault:"openid,email,profile"`
	RedirectSignIn     []string `env:"AUTH_OAUTH_REDIRECT_SIGN_IN"    envSeparator:","`
	RedirectSignOut    []string `env:"AUTH_OAUTH_REDIRECT_SIGN_OUT"   envSeparator:","`
	ResponseType       string   `env:"AUTH_OAUTH_RESPONSE_TYPE"       envDefault:"code"`
	IDTokenIssuer      string   `env:"AUTH_ID_TOKEN_ISSUER"`
	JWKSURL            string   `env:"AUTH_JWKS_URL"`
	TokenEncryptionKey string   `env:"AUTH_TOKEN_ENCRYPTION_KEY"`
}

// LoadFromEnv builds an AuthConfig from AUTH_* environment variables.
// OAuth is left nil when AUTH_OAUTH_DOMAIN is not set.
func LoadFromEnv() (*AuthConfig, error) {
	var raw authEnv
	if err := env.Parse(&raw); err != nil {
		return nil, errors.Wrap(err, "[config.LoadFromEnv] parse env")
	}

	cfg := &AuthConfig{
		UserPoolID:       raw.UserPoolID,
		UserPoolClientID: raw.UserPoolClientID,
		IdentityPoolID:   raw.IdentityPoolID,
		Security: SecurityConfig{
			IDTokenIssuer:      raw.IDTokenIssuer,
			JWKSURL:            raw.JWKSURL,
			TokenEncryptionKey: raw.TokenEncryptionKey,
		},
	}
	if strings.TrimSpace(raw.Domain) != "" {
		cfg.OAuth = &OAuthConfig{
			Domain:          strings.TrimSpace(raw.Domain),
			Scopes:          trimCSV(raw.Scopes),
			RedirectSignIn:  trimCSV(raw.RedirectSignIn),
			RedirectSignOut: trimCSV(raw.RedirectSignOut),
			ResponseType:    oauth2.ResponseType(strings.TrimSpace(raw.ResponseType)),
		}
	}
	return cfg, nil
}

// trimCSV removes empty entries from a string slice.
func trimCSV(values []string) []string {
	result := make([]string, 0, len(values))
	for _, v := range values {
		v = strings.TrimSpace(v)
		if v != "" {
			result = append(result, v)
		}
	}
	if len(result) == 0 {
		return nil
	}
	return result
}
