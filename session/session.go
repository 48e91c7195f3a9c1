package session

import (
	"time"

	"github.com/pemdasso/accountclient/idp"
)

// Session is the client-side projection of the user's sign-on with the
// IdP. The store owns the only mutable copy; callers always receive value
// snapshots. Authenticated implies AccessToken and ExpiresAt are set, and
// ExpiresAt is the authoritative refresh deadline.
type Session struct {
	Authenticated bool
	AccessToken   string
	RefreshToken  string
	RawIDToken    string
	Claims        Claims
	ExpiresAt     time.Time
}

// SessionID is the IdP-side identifier of this sign-on, used to refuse
// remote termination of the session that issued the request.
func (s Session) SessionID() string {
	return s.Claims.SessionID()
}

// TimeToExpiry reports the remaining token validity, clamped at zero so a
// countdown never goes negative.
func (s Session) TimeToExpiry(now time.Time) time.Duration {
	if !s.Authenticated {
		return 0
	}
	remaining := s.ExpiresAt.Sub(now)
	if remaining < 0 {
		return 0
	}
	return remaining
}

// fromTokens builds a Session from issued tokens, verifying claims at the
// boundary. The token endpoint's expiry wins when present; otherwise the
// exp claim is authoritative.
func fromTokens(tokens *idp.Tokens) (Session, error) {
	claims, err := ParseClaims(tokens.AccessToken)
	if err != nil {
		return Session{}, err
	}

	expiresAt := tokens.Expiry
	if expiresAt.IsZero() {
		expiresAt = claims.ExpiresAt()
	}

	return Session{
		Authenticated: true,
		AccessToken:   tokens.AccessToken,
		RefreshToken:  tokens.RefreshToken,
		RawIDToken:    tokens.RawIDToken,
		Claims:        claims,
		ExpiresAt:     expiresAt,
	}, nil
}
