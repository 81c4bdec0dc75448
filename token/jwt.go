package token

import (
	"encoding/json"
	"strings"
	"time"

	jwtlib "github.com/golang-jwt/jwt/v5"
	"github.com/jrsteele09/go-auth-sdk/internal/utils"
	"github.com/pkg/errors"
)

// ErrInvalidToken is returned when a token string is not a decodable JWT.
var ErrInvalidToken = errors.New("invalid token")

// JWT is a decoded but unverified token. Only Raw is persisted; Payload is
// rebuilt from it on load.
type JWT struct {
	Raw     string
	Payload map[string]any
}

// DecodeJWT splits raw into its three segments and decodes the payload.
// The signature is not checked.
func DecodeJWT(raw string) (JWT, error) {
	if strings.Count(raw, ".") != 2 {
		return JWT{}, errors.Wrap(ErrInvalidToken, "[DecodeJWT] expected three segments")
	}

	parsed, _, err := jwtlib.NewParser(jwtlib.WithPaddingAllowed()).ParseUnverified(raw, jwtlib.MapClaims{})
	if err != nil {
		return JWT{}, errors.Wrapf(ErrInvalidToken, "[DecodeJWT] %v", err)
	}
	claims, ok := parsed.Claims.(jwtlib.MapClaims)
	if !ok {
		return JWT{}, errors.Wrap(ErrInvalidToken, "[DecodeJWT] error extracting claims")
	}
	return JWT{Raw: raw, Payload: claims}, nil
}

// IsZero reports whether no token is held.
func (j JWT) IsZero() bool {
	return j.Raw == ""
}

// String returns a string claim or "".
func (j JWT) String(name string) string {
	s, _ := j.Payload[name].(string)
	return s
}

// StringSlice returns a list claim such as cognito:groups.
func (j JWT) StringSlice(name string) []string {
	return utils.ToStringSlice(j.Payload[name])
}

func (j JWT) Subject() string {
	sub, _ := jwtlib.MapClaims(j.Payload).GetSubject()
	return sub
}

// ExpiresAt returns the exp claim, and false when the token has none.
func (j JWT) ExpiresAt() (time.Time, bool) {
	exp, err := jwtlib.MapClaims(j.Payload).GetExpirationTime()
	if err != nil || exp == nil {
		return time.Time{}, false
	}
	return exp.Time, true
}

func (j JWT) MarshalJSON() ([]byte, error) {
	return json.Marshal(j.Raw)
}

func (j *JWT) UnmarshalJSON(data []byte) error {
	var raw string
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	if raw == "" {
		*j = JWT{}
		return nil
	}
	decoded, err := DecodeJWT(raw)
	if err != nil {
		return err
	}
	*j = decoded
	return nil
}
