package security

import "errors"

var (
	// ErrSelfTermination means the target of a session termination is the
	// session making the request. Rejected locally, before any network I/O:
	// self-termination would invalidate the very credential used to ask
	// for it.
	ErrSelfTermination = errors.New("cannot terminate the current session")

	// ErrNotConfirmed means a destructive operation was declined at the
	// confirmation step; nothing was sent to the server.
	ErrNotConfirmed = errors.New("operation not confirmed")
)
