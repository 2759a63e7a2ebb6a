package sse

import (
	"net/http"

	"github.com/cenkalti/backoff/v5"
	"github.com/rs/zerolog"
)

type Option func(*Supervisor)

// WithHttpClient sets the client used for the subscription. It must not set a
// Timeout, the response body is read for the lifetime of the bridge.
func WithHttpClient(client *http.Client) Option {
	return func(s *Supervisor) {
		s.client = client
	}
}

// WithBackOff sets the reconnection policy factory.
func WithBackOff(newBackOff func() backoff.BackOff) Option {
	return func(s *Supervisor) {
		s.newBackOff = newBackOff
	}
}

// WithLogger sets logger
func WithLogger(logger zerolog.Logger) Option {
	return func(s *Supervisor) {
		s.logger = logger
	}
}

// WithRetryListener registers a callback invoked before each reconnection.
func WithRetryListener(listener func()) Option {
	return func(s *Supervisor) {
		s.onRetry = listener
	}
}
