package account

import (
	"errors"
	"fmt"
)

var (
	// ErrUnauthorized means the access token was missing, expired, or
	// rejected. Callers refresh and retry once, never blindly.
	ErrUnauthorized = errors.New("unauthorized")

	// ErrNotFound means the target resource no longer exists.
	ErrNotFound = errors.New("not found")

	// ErrNotLinked means the identity provider is not linked for this user.
	ErrNotLinked = errors.New("identity provider not linked")
)

// ValidationError carries a server-side input rejection. The message is
// surfaced to the user verbatim and the request is not retried.
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation rejected: %s", e.Message)
}

// NetworkError wraps a transport failure or timeout. Transient: eligible
// for retry with backoff at the caller's discretion.
type NetworkError struct {
	Err     error
	Timeout bool
}

func (e *NetworkError) Error() string {
	if e.Timeout {
		return fmt.Sprintf("network timeout: %v", e.Err)
	}
	return fmt.Sprintf("network error: %v", e.Err)
}

func (e *NetworkError) Unwrap() error {
	return e.Err
}

// IsNetworkError reports whether err is a transient transport failure.
func IsNetworkError(err error) bool {
	var netErr *NetworkError
	return errors.As(err, &netErr)
}
