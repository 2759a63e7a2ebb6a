package sse

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/rs/zerolog"
)

// EventEndpoint is the event type disclosing the POST endpoint.
const EventEndpoint = "endpoint"

// Handler receives the conditions observed on the subscription. Calls are
// made from the Run goroutine, one at a time.
type Handler interface {
	// OnOpen is called when a subscription is established.
	OnOpen()
	// OnEndpoint is called with the trimmed data of an endpoint event.
	OnEndpoint(raw string)
	// OnMessage is called for unnamed and "message" events.
	OnMessage(event *Event)
	// OnError is called for every failed or ended subscription.
	OnError(err error)
}

// Supervisor owns the SSE subscription.
type Supervisor struct {
	url        string
	client     *http.Client
	handler    Handler
	newBackOff func() backoff.BackOff
	logger     zerolog.Logger
	onRetry    func()

	lastEventID string
	retry       time.Duration
}

// New creates a supervisor for an absolute http(s) URL.
func New(URL string, handler Handler, options ...Option) (*Supervisor, error) {
	parsed, err := url.Parse(URL)
	if err != nil {
		return nil, fmt.Errorf("invalid sse url %q: %w", URL, err)
	}
	if (parsed.Scheme != "http" && parsed.Scheme != "https") || parsed.Host == "" {
		return nil, fmt.Errorf("invalid sse url %q: expected absolute http(s) url", URL)
	}
	ret := &Supervisor{
		url:     URL,
		client:  &http.Client{},
		handler: handler,
		newBackOff: func() backoff.BackOff {
			return backoff.NewExponentialBackOff()
		},
		logger: zerolog.Nop(),
	}
	for _, opt := range options {
		opt(ret)
	}
	return ret, nil
}

// Run subscribes until ctx is done or a permanent failure occurs, and returns
// the cause. It never returns nil.
func (s *Supervisor) Run(ctx context.Context) error {
	policy := s.newBackOff()
	_, err := backoff.Retry(ctx, func() (struct{}, error) {
		err := s.subscribe(ctx, policy)
		if ctx.Err() != nil {
			return struct{}{}, backoff.Permanent(context.Cause(ctx))
		}
		s.handler.OnError(err)
		if errors.Is(err, ErrNoContent) {
			return struct{}{}, backoff.Permanent(err)
		}
		if s.retry > 0 {
			return struct{}{}, &backoff.RetryAfterError{Duration: s.retry}
		}
		return struct{}{}, err
	},
		backoff.WithBackOff(policy),
		backoff.WithMaxElapsedTime(0),
		backoff.WithNotify(func(err error, next time.Duration) {
			s.logger.Debug().Dur("delay", next).Msg("sse reconnecting")
			if s.onRetry != nil {
				s.onRetry()
			}
		}))
	return err
}

func (s *Supervisor) subscribe(ctx context.Context, policy backoff.BackOff) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.url, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "text/event-stream")
	req.Header.Set("Cache-Control", "no-cache")
	if s.lastEventID != "" {
		req.Header.Set("Last-Event-ID", s.lastEventID)
	}
	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to connect: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNoContent {
		return ErrNoContent
	}
	if resp.StatusCode != http.StatusOK {
		return &StatusError{StatusCode: resp.StatusCode, Status: resp.Status}
	}
	if contentType := resp.Header.Get("Content-Type"); !strings.HasPrefix(contentType, "text/event-stream") {
		return fmt.Errorf("unexpected content type: expected text/event-stream, got %q", contentType)
	}

	policy.Reset()
	s.logger.Info().Str("url", s.url).Msg("connected to sse server")
	s.handler.OnOpen()

	decoder := NewDecoder(resp.Body)
	decoder.lastID = s.lastEventID
	for {
		event, err := decoder.Next()
		s.lastEventID = decoder.LastEventID()
		if retry := decoder.Retry(); retry > 0 {
			s.retry = retry
		}
		if err != nil {
			if errors.Is(err, io.EOF) {
				return ErrStreamEnded
			}
			return fmt.Errorf("failed to read stream: %w", err)
		}
		s.dispatch(event)
	}
}

func (s *Supervisor) dispatch(event *Event) {
	switch event.Type {
	case EventEndpoint:
		s.handler.OnEndpoint(strings.TrimSpace(event.Data))
	case "", "message":
		s.handler.OnMessage(event)
	default:
		s.logger.Debug().Str("event", event.Type).Msg("ignoring sse event")
	}
}
