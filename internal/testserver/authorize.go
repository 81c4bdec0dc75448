package testserver

import (
	"net/http"
	"net/url"
	"strconv"

	"github.com/google/uuid"
	"github.com/jrsteele09/go-auth-sdk/oauth2"
	"github.com/pkg/errors"
)

// Authorize plays the hosted UI for an authorization URL built by the
// client: the user signs in and the browser is sent back to redirect_uri.
// It returns the URL the browser would land on.
func (s *Server) Authorize(authURL string) (string, error) {
	u, err := url.Parse(authURL)
	if err != nil {
		return "", errors.Wrap(err, "[Authorize] invalid authorization url")
	}
	return s.authorize(u.Query())
}

// Deny returns the redirect the hosted UI produces when sign-in fails.
func (s *Server) Deny(authURL, code, description string) (string, error) {
	u, err := url.Parse(authURL)
	if err != nil {
		return "", errors.Wrap(err, "[Deny] invalid authorization url")
	}
	query := u.Query()
	redirect, err := url.Parse(query.Get("redirect_uri"))
	if err != nil {
		return "", errors.Wrap(err, "[Deny] invalid redirect uri")
	}
	params := url.Values{}
	params.Set("error", code)
	params.Set("error_description", description)
	if state := query.Get("state"); state != "" {
		params.Set("state", state)
	}
	redirect.RawQuery = params.Encode()
	return redirect.String(), nil
}

func (s *Server) authorize(query url.Values) (string, error) {
	if query.Get("client_id") != s.ClientID {
		return "", errors.Errorf("[authorize] unknown client %q", query.Get("client_id"))
	}
	redirect, err := url.Parse(query.Get("redirect_uri"))
	if err != nil || redirect.Scheme == "" {
		return "", errors.Errorf("[authorize] invalid redirect uri %q", query.Get("redirect_uri"))
	}
	state := query.Get("state")

	switch query.Get("response_type") {
	case "code":
		code := uuid.NewString()
		s.mu.Lock()
		s.codes[code] = codeGrant{
			clientID:      s.ClientID,
			redirectURI:   query.Get("redirect_uri"),
			challenge:     query.Get("code_challenge"),
			challengeType: query.Get("code_challenge_method"),
			subject:       s.Subject,
		}
		s.mu.Unlock()

		params := redirect.Query()
		params.Set("code", code)
		if state != "" {
			params.Set("state", state)
		}
		redirect.RawQuery = params.Encode()

	case "token":
		accessToken, idToken, err := s.mintPair(s.Subject)
		if err != nil {
			return "", err
		}
		s.recordIssued(oauth2.TokenResponse{
			AccessToken: &accessToken,
			IdToken:     &idToken,
			TokenType:   "Bearer",
			ExpiresIn:   int(s.ttl().Seconds()),
		})
		params := url.Values{}
		params.Set("access_token", accessToken)
		params.Set("id_token", idToken)
		params.Set("token_type", "Bearer")
		params.Set("expires_in", strconv.Itoa(int(s.ttl().Seconds())))
		if state != "" {
			params.Set("state", state)
		}
		redirect.Fragment = ""
		redirect.RawFragment = ""
		return redirect.String() + "#" + params.Encode(), nil

	default:
		return "", errors.Errorf("[authorize] unsupported response_type %q", query.Get("response_type"))
	}
	return redirect.String(), nil
}

func (s *Server) authorizeHandler(w http.ResponseWriter, r *http.Request) {
	redirect, err := s.authorize(r.URL.Query())
	if err != nil {
		http.Error(w, "Authorization failed: "+err.Error(), http.StatusBadRequest)
		return
	}
	http.Redirect(w, r, redirect, http.StatusFound)
}
