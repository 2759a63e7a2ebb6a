package bridge

import (
	"net/http"

	"github.com/cenkalti/backoff/v5"
	"github.com/rs/zerolog"

	"github.com/viant/mcp-sse-bridge/internal/metrics"
)

type Option func(*Service)

// WithLogger sets logger
func WithLogger(logger zerolog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

// WithMetrics sets the metrics collector.
func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

// WithHttpClient sets the base client shared by the subscription and the
// posts. It must not set a Timeout.
func WithHttpClient(client *http.Client) Option {
	return func(s *Service) {
		s.client = client
	}
}

// WithBackOff sets the reconnection policy factory.
func WithBackOff(newBackOff func() backoff.BackOff) Option {
	return func(s *Service) {
		s.newBackOff = newBackOff
	}
}
