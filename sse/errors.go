package sse

import (
	"errors"
	"fmt"
)

var (
	// ErrStreamEnded is reported when the server closes a subscription.
	ErrStreamEnded = errors.New("sse stream ended")

	// ErrNoContent is returned when the server answers 204: reconnection stops.
	ErrNoContent = errors.New("sse server answered 204 No Content")
)

// StatusError is a non-200 subscription response.
type StatusError struct {
	StatusCode int
	Status     string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("sse subscription failed: %s", e.Status)
}
