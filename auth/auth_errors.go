package auth

import (
	"github.com/jrsteele09/go-auth-sdk/config"
	interrors "github.com/jrsteele09/go-auth-sdk/internal/errors"
	"github.com/jrsteele09/go-auth-sdk/token"
	"github.com/pkg/errors"
)

// AuthError carries a stable Name and a RecoverySuggestion. Match its kind
// with errors.Is against the sentinels below.
type AuthError = interrors.AuthError

var (
	ErrStateMismatch   = errors.New("oauth state mismatch")
	ErrOAuthSignIn     = errors.New("oauth sign in failed")
	ErrUnknownProvider = errors.New("unknown identity provider")
	ErrNoTokens        = token.ErrNoTokens

	// Re-exported so callers need not import config to match them.
	ErrTokenProviderNotConfigured = config.ErrTokenProviderNotConfigured
	ErrOAuthNotConfigured         = config.ErrOAuthNotConfigured
)

const oauthSignInErrorName = "OAuthSignInException"

func oauthSignInError(cause error) *AuthError {
	return interrors.New(ErrOAuthSignIn,
		oauthSignInErrorName,
		"Error in OAuth sign in",
		"Check the identity provider configuration and retry the sign in").WithUnderlying(cause)
}

func stateMismatchError() *AuthError {
	return interrors.New(ErrStateMismatch,
		oauthSignInErrorName,
		"An error occurred while validating the state",
		"Start the OAuth flow from this SDK so the state can be verified")
}

func unknownProviderError(provider WellKnownProvider) *AuthError {
	return interrors.New(ErrUnknownProvider,
		"UnknownProviderException",
		"Unknown identity provider "+string(provider),
		"Use one of the well known providers or a CustomProvider")
}
