package bridge

import "errors"

var (
	// ErrConfig wraps invalid configuration detected at startup.
	ErrConfig = errors.New("invalid configuration")

	// ErrQueueFull is returned when the reject overflow policy drops a message.
	ErrQueueFull = errors.New("outbound queue is full")
)
