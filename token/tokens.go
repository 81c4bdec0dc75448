package token

import (
	"time"

	"github.com/pkg/errors"
	"golang.org/x/oauth2"
)

// TokenSet is the cached result of a sign-in.
type TokenSet struct {
	AccessToken JWT `json:"accessToken"`
	// IDToken is zero when the openid scope was not granted.
	IDToken JWT `json:"idToken"`
	// RefreshToken is empty for the implicit flow.
	RefreshToken string `json:"refreshToken,omitempty"`
	TokenType    string `json:"tokenType,omitempty"`
	ExpiresIn    int    `json:"expiresIn,omitempty"`
}

// Expired reports whether the access token's exp is within skew of now.
// A token without exp never expires.
func (ts *TokenSet) Expired(now time.Time, skew time.Duration) bool {
	exp, ok := ts.AccessToken.ExpiresAt()
	if !ok {
		return false
	}
	return !now.Add(skew).Before(exp)
}

// NewTokenSet decodes the raw tokens of a token endpoint or fragment
// response. idToken may be empty.
func NewTokenSet(accessToken, idToken, refreshToken, tokenType string, expiresIn int) (*TokenSet, error) {
	access, err := DecodeJWT(accessToken)
	if err != nil {
		return nil, errors.Wrap(err, "[NewTokenSet] access token")
	}
	ts := &TokenSet{
		AccessToken:  access,
		RefreshToken: refreshToken,
		TokenType:    tokenType,
		ExpiresIn:    expiresIn,
	}
	if idToken != "" {
		if ts.IDToken, err = DecodeJWT(idToken); err != nil {
			return nil, errors.Wrap(err, "[NewTokenSet] id token")
		}
	}
	return ts, nil
}

// FromOAuth2Token converts an x/oauth2 token, reading id_token from the
// response extras.
func FromOAuth2Token(tok *oauth2.Token) (*TokenSet, error) {
	idToken, _ := tok.Extra("id_token").(string)
	expiresIn := int(tok.ExpiresIn)
	if expiresIn == 0 && !tok.Expiry.IsZero() {
		expiresIn = int(time.Until(tok.Expiry).Round(time.Second).Seconds())
	}
	return NewTokenSet(tok.AccessToken, idToken, tok.RefreshToken, tok.TokenType, expiresIn)
}
