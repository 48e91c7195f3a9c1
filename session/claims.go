package session

import (
	"strings"
	"time"

	jwtlib "github.com/golang-jwt/jwt/v5"
	"github.com/pemdasso/accountclient/internal/utils"
	"github.com/pkg/errors"
)

// Claims is the verified view of a token payload. ParseClaims checks the
// required keys at the store boundary so downstream account-security
// decisions never see undefined fields.
//
// Signature verification happens in the IdP connector during exchange; the
// parse here only extracts the payload of an already-accepted token.
type Claims map[string]any

// ParseClaims decodes a token payload and fails fast on a malformed token
// or missing required claims (sub, exp).
func ParseClaims(rawToken string) (Claims, error) {
	if strings.TrimSpace(rawToken) == "" {
		return nil, errors.Wrap(ErrMalformedToken, "empty token")
	}

	token, _, err := jwtlib.NewParser().ParseUnverified(rawToken, jwtlib.MapClaims{})
	if err != nil {
		return nil, errors.Wrap(ErrMalformedToken, err.Error())
	}

	mapClaims, ok := token.Claims.(jwtlib.MapClaims)
	if !ok {
		return nil, errors.Wrap(ErrMalformedToken, "error extracting claims")
	}

	claims := Claims(mapClaims)
	if claims.Subject() == "" {
		return nil, errors.Wrap(ErrMalformedToken, "missing sub claim")
	}
	if claims.ExpiresAt().IsZero() {
		return nil, errors.Wrap(ErrMalformedToken, "missing exp claim")
	}
	return claims, nil
}

func (c Claims) Subject() string {
	sub, _ := c["sub"].(string)
	return sub
}

func (c Claims) Username() string {
	username, _ := c["preferred_username"].(string)
	return username
}

func (c Claims) Email() string {
	email, _ := c["email"].(string)
	return email
}

// SessionID is the IdP-side session identifier (sid claim). It matches the
// id of the current entry in the account API's device-session list.
func (c Claims) SessionID() string {
	sid, _ := c["sid"].(string)
	return sid
}

func (c Claims) ExpiresAt() time.Time {
	exp, ok := c["exp"].(float64)
	if !ok {
		return time.Time{}
	}
	return time.Unix(int64(exp), 0)
}

// Roles returns the realm roles carried in the access token.
func (c Claims) Roles() []string {
	realmAccess, ok := c["realm_access"].(map[string]any)
	if !ok {
		return nil
	}
	roles, ok := realmAccess["roles"].([]any)
	if !ok {
		return nil
	}
	return utils.ToStringSlice(roles)
}
