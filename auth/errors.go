package auth

import (
	"errors"
	"fmt"
)

var (
	// ErrMissingToken is returned when the secured bridge starts without a secret.
	ErrMissingToken = errors.New("auth token is not configured")

	// ErrRejected signals that the remote server answered 403 Forbidden.
	ErrRejected = errors.New("authentication rejected")
)

// RejectedError describes the request that was refused.
type RejectedError struct {
	Method     string
	URL        string
	StatusCode int
}

func (e *RejectedError) Error() string {
	return fmt.Sprintf("%v: %s %s returned HTTP %d", ErrRejected, e.Method, e.URL, e.StatusCode)
}

func (e *RejectedError) Unwrap() error {
	return ErrRejected
}
