package bridge

import (
	"context"
	"encoding/json"
	"time"

	"github.com/rs/zerolog"

	"github.com/viant/mcp-sse-bridge/delivery"
	"github.com/viant/mcp-sse-bridge/internal/metrics"
	"github.com/viant/mcp-sse-bridge/sse"
)

// session owns the endpoint, the pre-endpoint queue and the flushed flag.
// All three are only touched by the run goroutine; other goroutines reach
// it through channels.
type session struct {
	baseURL     string
	settleDelay time.Duration
	queue       *Queue
	dispatcher  *delivery.Dispatcher
	writer      *inboundWriter
	logger      zerolog.Logger
	metrics     *metrics.Metrics

	endpoints chan string
	done      chan struct{}

	endpoint string
	flushed  bool
}

func newSession(baseURL string, options *Options, dispatcher *delivery.Dispatcher, writer *inboundWriter, logger zerolog.Logger, m *metrics.Metrics) *session {
	return &session{
		baseURL:     baseURL,
		settleDelay: options.SettleDelay,
		queue:       NewQueue(options.QueueSize, options.Overflow),
		dispatcher:  dispatcher,
		writer:      writer,
		logger:      logger,
		metrics:     m,
		endpoints:   make(chan string, 1),
		done:        make(chan struct{}),
	}
}

// run processes local messages and endpoint announcements until inbox is
// closed (nil is returned) or ctx is done (its cause is returned). exhausted
// reports the end of local input; it is watched while a full queue stops
// inbox from being read.
func (s *session) run(ctx context.Context, inbox <-chan json.RawMessage, exhausted <-chan struct{}) error {
	defer close(s.done)
	var settle <-chan time.Time
	for {
		in, ended := inbox, (<-chan struct{})(nil)
		if !s.flushed && s.queue.Blocked() {
			in, ended = nil, exhausted
		}
		select {
		case <-ctx.Done():
			return context.Cause(ctx)
		case message, ok := <-in:
			if !ok {
				s.discardQueued(0)
				return nil
			}
			if err := s.submit(ctx, message); err != nil {
				return err
			}
		case <-ended:
			return s.abandonInput(ctx, inbox)
		case raw := <-s.endpoints:
			if s.setEndpoint(raw) {
				settle = time.After(s.settleDelay)
			}
		case <-settle:
			settle = nil
			if err := s.flush(ctx); err != nil {
				return err
			}
		}
	}
}

// abandonInput drops the queue and whatever the reader still holds once
// local input has ended with no endpoint to deliver to.
func (s *session) abandonInput(ctx context.Context, inbox <-chan json.RawMessage) error {
	pending := 0
	for {
		select {
		case <-ctx.Done():
			s.discardQueued(pending)
			return context.Cause(ctx)
		case _, ok := <-inbox:
			if !ok {
				s.discardQueued(pending)
				return nil
			}
			pending++
		}
	}
}

func (s *session) submit(ctx context.Context, message json.RawMessage) error {
	if s.flushed {
		return s.dispatcher.Submit(ctx, s.endpoint, message)
	}
	if err := s.queue.Push(message); err != nil {
		s.metrics.Dropped(metrics.ReasonOverflow, 1)
		s.logger.Warn().Err(err).Int("queued", s.queue.Len()).Msg("dropping message")
		return nil
	}
	s.metrics.SetQueued(s.queue.Len())
	s.logger.Debug().Int("queued", s.queue.Len()).Msg("waiting for endpoint")
	return nil
}

// setEndpoint records the first endpoint announcement and reports whether it
// was accepted.
func (s *session) setEndpoint(raw string) bool {
	if raw == "" {
		s.logger.Warn().Msg("ignoring empty endpoint event")
		return false
	}
	resolved := ResolveEndpoint(raw, s.baseURL)
	if s.endpoint != "" {
		if resolved != s.endpoint {
			s.logger.Warn().Str("endpoint", s.endpoint).Str("announced", resolved).Msg("ignoring endpoint change")
		}
		return false
	}
	s.endpoint = resolved
	s.logger.Info().Str("endpoint", resolved).Dur("settle", s.settleDelay).Msg("received endpoint")
	return true
}

// flush submits every queued message in order, then routes later messages
// straight to the dispatcher.
func (s *session) flush(ctx context.Context) error {
	count := s.queue.Len()
	for {
		message, ok := s.queue.Pop()
		if !ok {
			break
		}
		if err := s.dispatcher.Submit(ctx, s.endpoint, message); err != nil {
			return err
		}
		s.metrics.SetQueued(s.queue.Len())
	}
	s.flushed = true
	if count > 0 {
		s.logger.Info().Int("messages", count).Msg("flushed queued messages")
	}
	return nil
}

// discardQueued drops the queue plus pending messages never queued.
func (s *session) discardQueued(pending int) {
	if count := s.queue.Len() + pending; count > 0 {
		s.metrics.Dropped(metrics.ReasonShutdown, count)
		s.metrics.SetQueued(0)
		s.logger.Warn().Int("messages", count).Msg("input closed before endpoint was available")
	}
}

// OnOpen implements sse.Handler.
func (s *session) OnOpen() {}

// OnEndpoint implements sse.Handler.
func (s *session) OnEndpoint(raw string) {
	select {
	case s.endpoints <- raw:
	case <-s.done:
	}
}

// OnMessage implements sse.Handler.
func (s *session) OnMessage(event *sse.Event) {
	_ = s.writer.Write(event.Data)
}

// OnError implements sse.Handler.
func (s *session) OnError(err error) {
	s.logger.Warn().Err(err).Msg("sse connection error")
}
