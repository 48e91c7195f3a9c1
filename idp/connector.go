package idp

import (
	"context"
	"time"
)

// Tokens is the result of a sign-on check, an authorization-code exchange,
// or a refresh. All fields are opaque to callers; claims are extracted at
// the session-store boundary.
type Tokens struct {
	AccessToken  string
	RefreshToken string
	RawIDToken   string
	Expiry       time.Time // Access token expiry reported by the token endpoint
}

// Handoff carries the one-time values for an interactive login hand-off:
// CSRF state, replay nonce, and the PKCE verifier/challenge pair.
type Handoff struct {
	State         string
	Nonce         string
	CodeVerifier  string
	CodeChallenge string
}

// Connector is the capability surface this layer needs from the identity
// provider: sign-on detection, login/logout hand-off URLs, code exchange,
// and token renewal. The provider itself is never reimplemented here.
type Connector interface {
	// CheckSignOn determines the current sign-on status without user
	// interaction. A nil Tokens result means not signed on.
	CheckSignOn(ctx context.Context) (*Tokens, error)

	// LoginURL builds the IdP authorization URL for an interactive login.
	LoginURL(ctx context.Context, h Handoff) (string, error)

	// Exchange trades an authorization code for tokens, verifying the ID
	// token signature and nonce.
	Exchange(ctx context.Context, code string, h Handoff) (*Tokens, error)

	// Refresh renews tokens using the refresh-token grant. A terminal
	// failure (refresh token expired or revoked) satisfies
	// errors.Is(err, ErrRefreshTokenInvalid).
	Refresh(ctx context.Context, refreshToken string) (*Tokens, error)

	// LogoutURL builds the RP-initiated logout URL.
	LogoutURL(ctx context.Context, idTokenHint string) (string, error)
}
