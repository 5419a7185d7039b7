package api

import (
	"errors"
	"fmt"
)

// ErrSessionExpired reports that the session was torn down because the access
// token was rejected and could not be refreshed. By the time a caller sees it
// the credential store is already cleared.
var ErrSessionExpired = errors.New("session expired")

// TransportError wraps a network-level failure: connection errors, timeouts,
// unparseable responses. Retryable from the caller's point of view.
type TransportError struct {
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("transport: %v", e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// CredentialError is a rejection from the login, register, or refresh
// endpoints themselves: bad password, duplicate email, invalid refresh token.
// Never retried.
type CredentialError struct {
	StatusCode int
	Message    string
}

func (e *CredentialError) Error() string {
	return fmt.Sprintf("credentials rejected (%d): %s", e.StatusCode, e.Message)
}

// StatusError is an unexpected HTTP failure from a non-auth endpoint.
type StatusError struct {
	StatusCode int
	Message    string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("HTTP %d: %s", e.StatusCode, e.Message)
}
