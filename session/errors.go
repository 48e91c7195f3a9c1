package session

import "errors"

var (
	ErrMalformedToken     = errors.New("malformed token")
	ErrUnavailable        = errors.New("identity provider unavailable")
	ErrAlreadyInitialized = errors.New("session store already initialized")
	ErrNotAuthenticated   = errors.New("no authenticated session")

	// ErrStaleRefresh means a refresh result resolved after the session it
	// belonged to was cleared or replaced; the result is discarded.
	ErrStaleRefresh = errors.New("refresh result is stale")
)
