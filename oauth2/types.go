package oauth2

// ResponseType represents the OAuth 2.0 response type.
// Determines what is returned from the authorization endpoint.
type ResponseType string

const (
	// CodeResponseType indicates the authorization code flow.
	// Used in: Authorization Code Flow with PKCE (recommended for public clients)
	// Returns an authorization code in the redirect query string that must be
	// exchanged for tokens at the token endpoint.
	// Example: /oauth2/authorize?response_type=code&client_id=...
	CodeResponseType ResponseType = "code"

	// TokenResponseType indicates the implicit flow.
	// Used in: Implicit Flow (legacy)
	// Returns tokens directly in the redirect URL fragment, no token endpoint call.
	// Example: https://client.example.com/callback#access_token=...&id_token=...
	TokenResponseType ResponseType = "token"
)

// CodeMethodType represents the PKCE (Proof Key for Code Exchange) challenge method.
// Used to prevent authorization code interception attacks (especially for public clients).
type CodeMethodType string

const (
	// CodeMethodTypeS256 indicates SHA-256 hashing is used for the code challenge.
	// Client sends: code_challenge = BASE64URL(SHA256(code_verifier))
	// Server validates: SHA256(provided code_verifier) == stored code_challenge
	CodeMethodTypeS256 CodeMethodType = "S256"

	// CodeMethodTypeNone (labeled "plain") means no hashing, code_verifier sent directly.
	// Only accepted when verifying; this SDK never sends it.
	CodeMethodTypeNone CodeMethodType = "plain"
)

// GrantType represents the OAuth 2.0 grant type used at the token endpoint.
type GrantType string

const (
	// AuthorizationCodeGrant exchanges an authorization code for tokens.
	// Token request includes: code, client_id, redirect_uri, code_verifier (if PKCE)
	// Returns: access_token, id_token, refresh_token
	AuthorizationCodeGrant GrantType = "authorization_code"

	// RefreshTokenCodeGrant exchanges a refresh token for new tokens.
	// Token request includes: refresh_token, client_id
	// Returns: new access_token and id_token; the refresh token is usually not rotated
	RefreshTokenCodeGrant GrantType = "refresh_token"
)

// TokenTypeHint tells the revocation endpoint what kind of token is being revoked.
type TokenTypeHint string

const (
	AccessTokenHint  TokenTypeHint = "access_token"
	RefreshTokenHint TokenTypeHint = "refresh_token"
)
