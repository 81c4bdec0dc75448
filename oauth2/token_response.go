package oauth2

import "strings"

// TokenResponse represents the response from an OAuth2 token request.
// This is the standard OAuth2 token endpoint response format as defined in RFC 6749,
// including the error members of section 5.2.
type TokenResponse struct {
	// AccessToken is the JWT token used to access protected resources.
	// Usage: Include in Authorization header: "Bearer <access_token>"
	AccessToken *string `json:"access_token,omitempty"`

	// IdToken is the OpenID Connect ID token containing user identity information.
	// Only present: When "openid" scope was requested
	IdToken *string `json:"id_token,omitempty"`

	// TokenType indicates how to use the access token.
	// Example: "Bearer"
	TokenType string `json:"token_type,omitempty"`

	// ExpiresIn is the lifetime in seconds of the access token.
	// Note: This is a hint - actual expiration is in the JWT's "exp" claim
	ExpiresIn int `json:"expires_in,omitempty"`

	// RefreshToken is an opaque token used to obtain new access tokens.
	// Not present for the implicit flow.
	RefreshToken *string `json:"refresh_token,omitempty"`

	// Scope indicates the access token's granted permissions (space separated).
	Scope string `json:"scope,omitempty"`

	// Error is set instead of the token members when the request failed.
	// Example: "invalid_grant"
	Error string `json:"error,omitempty"`

	// ErrorDescription is the human readable detail for Error.
	ErrorDescription string `json:"error_description,omitempty"`
}

// Failed reports whether the response carries an OAuth error.
func (tr *TokenResponse) Failed() bool {
	return strings.TrimSpace(tr.Error) != ""
}
