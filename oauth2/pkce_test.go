package oauth2_test

import (
	"strings"
	"testing"

	"github.com/jrsteele09/go-auth-sdk/oauth2"
	"github.com/stretchr/testify/require"
)

const (
	testCodeChallenge = "E9Melhoa2OwvFrEMTJguCHaoeK1t8URWbuGJSstw-cM"
	testCodeVerifier  = "dBjftJeZ4CVP-mB92K27uhbUJU1p1r_wW1gFWFOEjXk"
)

func TestS256Challenge(t *testing.T) {
	// RFC 7636 appendix B
	require.Equal(t, testCodeChallenge, oauth2.S256Challenge(testCodeVerifier))
	require.NotContains(t, oauth2.S256Challenge("x"), "=")
}

func TestVerifyCodeChallenge(t *testing.T) {
	tests := []struct {
		name      string
		challenge string
		verifier  string
		method    oauth2.CodeMethodType
		want      bool
	}{
		{"S256 match", testCodeChallenge, testCodeVerifier, oauth2.CodeMethodTypeS256, true},
		{"S256 mismatch", testCodeChallenge, testCodeVerifier + "x", oauth2.CodeMethodTypeS256, false},
		{"plain match", "abc", "abc", oauth2.CodeMethodTypeNone, true},
		{"plain mismatch", "abc", "abd", oauth2.CodeMethodTypeNone, false},
		{"no pkce", "", "", oauth2.CodeMethodTypeS256, true},
		{"missing verifier", testCodeChallenge, "", oauth2.CodeMethodTypeS256, false},
		{"unknown method", testCodeChallenge, testCodeVerifier, "S512", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.Equal(t, tt.want, oauth2.VerifyCodeChallenge(tt.challenge, tt.verifier, tt.method))
		})
	}
}

func TestValidVerifier(t *testing.T) {
	require.True(t, oauth2.ValidVerifier(testCodeVerifier))
	require.False(t, oauth2.ValidVerifier("short"))
	require.False(t, oauth2.ValidVerifier(strings.Repeat("a", 129)))
	require.False(t, oauth2.ValidVerifier(strings.Repeat("a", 42)+"!"))
}

func TestTokenResponseFailed(t *testing.T) {
	require.True(t, (&oauth2.TokenResponse{Error: "invalid_grant"}).Failed())
	require.False(t, (&oauth2.TokenResponse{}).Failed())
}
