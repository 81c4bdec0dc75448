package config

// SecurityConfig holds the optional hardening settings.
type SecurityConfig struct {
	// IDTokenIssuer and JWKSURL enable ID token signature verification before
	// tokens are cached. Both must be set.
	IDTokenIssuer string
	JWKSURL       string

	// TokenEncryptionKey is a base64 encoded 32 byte key. When set, persisted
	// tokens and flow state are sealed before reaching the durable store.
	TokenEncryptionKey string
}

// VerifyIDTokens reports whether ID token verification is configured.
func (s SecurityConfig) VerifyIDTokens() bool {
	return s.IDTokenIssuer != "" && s.JWKSURL != ""
}
