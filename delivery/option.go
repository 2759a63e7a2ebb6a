package delivery

import (
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"github.com/viant/mcp-sse-bridge/internal/metrics"
)

type Option func(*Dispatcher)

// WithHttpClient sets the client used for POST requests.
func WithHttpClient(client *http.Client) Option {
	return func(d *Dispatcher) {
		d.client = client
	}
}

// WithTimeout bounds each POST; 0 leaves it to the client.
func WithTimeout(timeout time.Duration) Option {
	return func(d *Dispatcher) {
		d.timeout = timeout
	}
}

// WithOutboxSize sets how many messages may wait for the sender.
func WithOutboxSize(size int) Option {
	return func(d *Dispatcher) {
		d.outboxSize = size
	}
}

// WithLogger sets logger
func WithLogger(logger zerolog.Logger) Option {
	return func(d *Dispatcher) {
		d.logger = logger
	}
}

// WithMetrics sets metrics
func WithMetrics(m *metrics.Metrics) Option {
	return func(d *Dispatcher) {
		d.metrics = m
	}
}
