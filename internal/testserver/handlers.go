package testserver

import (
	"encoding/json"
	"net/http"

	"github.com/google/uuid"
	"github.com/jrsteele09/go-auth-sdk/internal/utils"
	"github.com/jrsteele09/go-auth-sdk/oauth2"
)

const contentTypeJSON = "application/json; charset=utf-8"

func (s *Server) tokenHandler(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		writeJSONError(w, "invalid_request", "Failed to parse form data", http.StatusBadRequest)
		return
	}

	s.mu.Lock()
	s.tokenRequests = append(s.tokenRequests, r.PostForm)
	failure := s.tokenError
	s.mu.Unlock()

	if failure != nil {
		writeJSONError(w, failure.code, failure.description, http.StatusBadRequest)
		return
	}
	if r.PostFormValue("client_id") != s.ClientID {
		writeJSONError(w, "invalid_client", "Unknown client", http.StatusBadRequest)
		return
	}

	var (
		resp *oauth2.TokenResponse
		err  *oauthError
	)
	switch oauth2.GrantType(r.PostFormValue("grant_type")) {
	case oauth2.AuthorizationCodeGrant:
		resp, err = s.exchangeCode(r)
	case oauth2.RefreshTokenCodeGrant:
		resp, err = s.refresh(r)
	default:
		err = &oauthError{code: "unsupported_grant_type", description: "Unsupported grant type"}
	}
	if err != nil {
		writeJSONError(w, err.code, err.description, http.StatusBadRequest)
		return
	}

	s.recordIssued(*resp)
	w.Header().Set("Content-Type", contentTypeJSON)
	w.Header().Set("Cache-Control", "no-store")
	w.Header().Set("Pragma", "no-cache")
	_ = json.NewEncoder(w).Encode(resp)
}

func (s *Server) exchangeCode(r *http.Request) (*oauth2.TokenResponse, *oauthError) {
	code := r.PostFormValue("code")

	s.mu.Lock()
	grant, ok := s.codes[code]
	delete(s.codes, code)
	s.mu.Unlock()

	if !ok {
		return nil, &oauthError{code: "invalid_grant", description: "Invalid authorization code"}
	}
	if grant.redirectURI != r.PostFormValue("redirect_uri") {
		return nil, &oauthError{code: "invalid_grant", description: "Redirect URI mismatch"}
	}
	if !oauth2.VerifyCodeChallenge(grant.challenge, r.PostFormValue("code_verifier"), oauth2.CodeMethodType(grant.challengeType)) {
		return nil, &oauthError{code: "invalid_grant", description: "PKCE verification failed"}
	}

	accessToken, idToken, err := s.mintPair(grant.subject)
	if err != nil {
		return nil, &oauthError{code: "server_error", description: err.Error()}
	}
	refreshToken := uuid.NewString()
	s.mu.Lock()
	s.refreshTokens[refreshToken] = grant.subject
	s.mu.Unlock()

	return &oauth2.TokenResponse{
		AccessToken:  &accessToken,
		IdToken:      &idToken,
		RefreshToken: &refreshToken,
		TokenType:    "Bearer",
		ExpiresIn:    int(s.ttl().Seconds()),
	}, nil
}

// refresh issues new access and ID tokens; the refresh token is not rotated.
func (s *Server) refresh(r *http.Request) (*oauth2.TokenResponse, *oauthError) {
	s.mu.Lock()
	subject, ok := s.refreshTokens[r.PostFormValue("refresh_token")]
	s.mu.Unlock()
	if !ok {
		return nil, &oauthError{code: "invalid_grant", description: "Invalid Refresh Token"}
	}

	accessToken, idToken, err := s.mintPair(subject)
	if err != nil {
		return nil, &oauthError{code: "server_error", description: err.Error()}
	}
	return &oauth2.TokenResponse{
		AccessToken: utils.Ptr(accessToken),
		IdToken:     utils.Ptr(idToken),
		TokenType:   "Bearer",
		ExpiresIn:   int(s.ttl().Seconds()),
	}, nil
}

func (s *Server) revokeHandler(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		writeJSONError(w, "invalid_request", "Failed to parse form data", http.StatusBadRequest)
		return
	}

	s.mu.Lock()
	s.revokeRequests = append(s.revokeRequests, r.PostForm)
	failure := s.revokeError
	s.mu.Unlock()

	if failure != nil {
		writeJSONError(w, failure.code, failure.description, http.StatusBadRequest)
		return
	}
	if r.PostFormValue("token") == "" {
		writeJSONError(w, "invalid_request", "token parameter is required", http.StatusBadRequest)
		return
	}

	s.mu.Lock()
	delete(s.refreshTokens, r.PostFormValue("token"))
	s.mu.Unlock()
	w.WriteHeader(http.StatusOK)
}

func (s *Server) logoutHandler(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	s.logoutRequests = append(s.logoutRequests, r.URL.Query())
	s.mu.Unlock()

	logoutURI := r.URL.Query().Get("logout_uri")
	if logoutURI == "" {
		w.WriteHeader(http.StatusOK)
		return
	}
	http.Redirect(w, r, logoutURI, http.StatusFound)
}

func (s *Server) jwksHandler(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", contentTypeJSON)
	_ = json.NewEncoder(w).Encode(JWKS{Keys: []JWK{s.jwk()}})
}

func writeJSONError(w http.ResponseWriter, errorCode, description string, statusCode int) {
	w.Header().Set("Content-Type", contentTypeJSON)
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(map[string]string{
		"error":             errorCode,
		"error_description": description,
	})
}
