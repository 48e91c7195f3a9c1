package idp

import "errors"

var (
	// ErrRefreshTokenInvalid means the refresh token itself was rejected by
	// the IdP (expired or revoked). This is terminal: the session cannot be
	// renewed and must be cleared.
	ErrRefreshTokenInvalid = errors.New("refresh token invalid")

	// ErrDiscoveryFailed means the IdP discovery endpoint could not be
	// reached or returned an unusable document.
	ErrDiscoveryFailed = errors.New("identity provider discovery failed")

	ErrNoIDToken     = errors.New("no ID token in token response")
	ErrNonceMismatch = errors.New("nonce mismatch in ID token")
)
