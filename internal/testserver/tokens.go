package testserver

import (
	"encoding/base64"
	"math/big"
	"time"

	jwtlib "github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/pkg/errors"
)

// JWKS represents a JSON Web Key Set
type JWKS struct {
	Keys []JWK `json:"keys"`
}

// JWK represents a JSON Web Key
type JWK struct {
	Kty string `json:"kty"`
	Use string `json:"use,omitempty"`
	Kid string `json:"kid,omitempty"`
	Alg string `json:"alg,omitempty"`
	N   string `json:"n,omitempty"`
	E   string `json:"e,omitempty"`
}

func (s *Server) jwk() JWK {
	return JWK{
		Kty: "RSA",
		Use: "sig",
		Kid: s.keyID,
		Alg: "RS256",
		N:   base64.RawURLEncoding.EncodeToString(s.key.PublicKey.N.Bytes()),
		E:   base64.RawURLEncoding.EncodeToString(big.NewInt(int64(s.key.PublicKey.E)).Bytes()),
	}
}

func (s *Server) ttl() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.accessTTL
}

func (s *Server) mintPair(subject string) (accessToken, idToken string, err error) {
	if accessToken, err = s.MintAccessToken(subject); err != nil {
		return "", "", err
	}
	if idToken, err = s.MintIDToken(subject); err != nil {
		return "", "", err
	}
	return accessToken, idToken, nil
}

// MintAccessToken signs an access token for subject.
func (s *Server) MintAccessToken(subject string) (string, error) {
	s.mu.Lock()
	now := s.now()
	ttl := s.accessTTL
	originJTI := s.originJTI
	s.mu.Unlock()

	claims := jwtlib.MapClaims{
		"iss":       s.Issuer(),
		"sub":       subject,
		"client_id": s.ClientID,
		"username":  subject,
		"token_use": "access",
		"scope":     "openid email profile",
		"iat":       now.Unix(),
		"exp":       now.Add(ttl).Unix(),
		"jti":       uuid.NewString(),
	}
	if originJTI {
		claims["origin_jti"] = uuid.NewString()
	}
	if len(s.Groups) > 0 {
		claims["cognito:groups"] = s.Groups
	}
	return s.Sign(claims)
}

// MintIDToken signs an OpenID Connect ID token for subject.
func (s *Server) MintIDToken(subject string) (string, error) {
	s.mu.Lock()
	now := s.now()
	ttl := s.accessTTL
	s.mu.Unlock()

	return s.Sign(jwtlib.MapClaims{
		"iss":       s.Issuer(),
		"sub":       subject,
		"aud":       s.ClientID,
		"token_use": "id",
		"email":     subject + "@example.com",
		"iat":       now.Unix(),
		"exp":       now.Add(ttl).Unix(),
		"jti":       uuid.NewString(),
	})
}

// Sign signs arbitrary claims with the server key.
func (s *Server) Sign(claims jwtlib.MapClaims) (string, error) {
	token := jwtlib.NewWithClaims(jwtlib.SigningMethodRS256, claims)
	token.Header["kid"] = s.keyID

	signed, err := token.SignedString(s.key)
	if err != nil {
		return "", errors.Wrap(err, "[Sign] failed to sign token")
	}
	return signed, nil
}

// IssueRefreshToken registers a refresh token for subject without a sign-in.
func (s *Server) IssueRefreshToken(subject string) string {
	refreshToken := uuid.NewString()
	s.mu.Lock()
	s.refreshTokens[refreshToken] = subject
	s.mu.Unlock()
	return refreshToken
}
