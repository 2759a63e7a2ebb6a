package delivery

import (
	"errors"
	"fmt"
)

// ErrClosed is returned by Submit after Close.
var ErrClosed = errors.New("dispatcher is closed")

// StatusError is a non-2xx POST response.
type StatusError struct {
	StatusCode int
	Reason     string
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("post failed: HTTP %d %s", e.StatusCode, e.Reason)
}
