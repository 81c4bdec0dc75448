package config

import (
	"errors"
	"strings"

	interrors "github.com/jrsteele09/go-auth-sdk/internal/errors"
)

var (
	// ErrTokenProviderNotConfigured is returned when the user pool client is missing.
	ErrTokenProviderNotConfigured = errors.New("auth token provider not configured")
	// ErrOAuthNotConfigured is returned when hosted UI OAuth settings are missing.
	ErrOAuthNotConfigured = errors.New("oauth param not configured")
)

// AuthConfig is the resolved configuration for the auth category.
type AuthConfig struct {
	UserPoolID       string
	UserPoolClientID string
	IdentityPoolID   string

	// OAuth is nil when the hosted UI is not used.
	OAuth *OAuthConfig

	Security SecurityConfig
}

// ValidateTokenProvider fails when the token provider cannot work with cfg.
func ValidateTokenProvider(cfg *AuthConfig) error {
	if cfg == nil || strings.TrimSpace(cfg.UserPoolClientID) == "" {
		return interrors.New(ErrTokenProviderNotConfigured,
			"AuthTokenConfigException",
			"Auth Token Provider not configured",
			"Make sure to configure the auth category with a user pool client id")
	}
	return nil
}

// ValidateOAuth fails when cfg has no usable hosted UI OAuth settings.
func ValidateOAuth(cfg *AuthConfig) error {
	if cfg == nil || cfg.OAuth == nil || !cfg.OAuth.complete() {
		return interrors.New(ErrOAuthNotConfigured,
			"OAuthNotConfigureException",
			"oauth param not configured",
			"Make sure to configure the auth category with the oauth parameter")
	}
	return nil
}
