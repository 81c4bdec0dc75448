package oauth2

import (
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"strings"
)

// S256Challenge derives the PKCE code challenge for a verifier:
// BASE64URL(SHA256(verifier)) without padding.
func S256Challenge(verifier string) string {
	hash := sha256.Sum256([]byte(verifier))
	return base64.RawURLEncoding.EncodeToString(hash[:])
}

// VerifyCodeChallenge checks that verifier pairs with the challenge sent in the
// authorization request.
func VerifyCodeChallenge(challenge, verifier string, method CodeMethodType) bool {
	if challenge == "" && verifier == "" { // No PKCE code challenge
		return true
	}
	if strings.TrimSpace(verifier) == "" {
		return false
	}
	switch method {
	case CodeMethodTypeS256:
		return subtle.ConstantTimeCompare([]byte(S256Challenge(verifier)), []byte(challenge)) == 1
	case CodeMethodTypeNone:
		return subtle.ConstantTimeCompare([]byte(verifier), []byte(challenge)) == 1
	}
	return false
}

// ValidVerifier reports whether verifier satisfies RFC 7636 section 4.1:
// 43 to 128 characters from the unreserved set.
func ValidVerifier(verifier string) bool {
	if len(verifier) < 43 || len(verifier) > 128 {
		return false
	}
	for _, r := range verifier {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
		case r == '-', r == '.', r == '_', r == '~':
		default:
			return false
		}
	}
	return true
}
