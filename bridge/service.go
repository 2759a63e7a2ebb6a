package bridge

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sync"

	"github.com/cenkalti/backoff/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/viant/mcp-sse-bridge/auth"
	"github.com/viant/mcp-sse-bridge/delivery"
	"github.com/viant/mcp-sse-bridge/internal/metrics"
	"github.com/viant/mcp-sse-bridge/sse"
)

// Service bridges one local stream to one remote SSE session.
type Service struct {
	options    *Options
	sessionID  string
	guard      *auth.Guard
	client     *http.Client
	newBackOff func() backoff.BackOff
	logger     zerolog.Logger
	metrics    *metrics.Metrics

	mux    sync.Mutex
	cancel context.CancelCauseFunc
}

// New validates options and prepares the authenticated client. In secure mode
// a missing auth token fails here, before any connection is made.
func New(ctx context.Context, options *Options, opts ...Option) (*Service, error) {
	if err := options.Validate(); err != nil {
		return nil, err
	}
	ret := &Service{
		options:   options,
		sessionID: uuid.NewString(),
		logger:    zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(ret)
	}
	if ret.metrics == nil {
		ret.metrics = metrics.New()
	}
	if ret.client == nil {
		ret.client = &http.Client{}
	}
	ret.logger = ret.logger.With().Str("session", ret.sessionID).Logger()

	if options.Secure || options.AuthToken != "" {
		guardOptions := []auth.Option{auth.WithLogger(ret.logger)}
		if options.Secure {
			guardOptions = append(guardOptions, auth.WithFailClosed(ret.fail))
		}
		guard, err := auth.New(options.AuthToken, guardOptions...)
		if err != nil {
			return nil, err
		}
		ret.guard = guard
		ret.client = guard.Client(ret.client)
	}
	return ret, nil
}

// SessionID returns the correlation id used in logs.
func (s *Service) SessionID() string {
	return s.sessionID
}

// Serve relays messages until in is exhausted, ctx is done or, in secure mode,
// the server rejects the auth token. Input exhaustion and cancellation are
// normal shutdowns and return nil; a rejection returns an error wrapping
// auth.ErrRejected.
func (s *Service) Serve(ctx context.Context, in io.Reader, out io.Writer) error {
	ctx, cancel := context.WithCancelCause(ctx)
	defer cancel(nil)
	s.mux.Lock()
	s.cancel = cancel
	s.mux.Unlock()

	dispatcher := delivery.New(
		delivery.WithHttpClient(s.client),
		delivery.WithTimeout(s.options.PostTimeout),
		delivery.WithOutboxSize(s.options.OutboxSize),
		delivery.WithLogger(s.logger),
		delivery.WithMetrics(s.metrics),
	)
	writer := &inboundWriter{writer: out, strict: s.options.Strict, logger: s.logger, metrics: s.metrics}
	aSession := newSession(s.options.URL, s.options, dispatcher, writer, s.logger, s.metrics)

	sseOptions := []sse.Option{
		sse.WithHttpClient(s.client),
		sse.WithLogger(s.logger),
		sse.WithRetryListener(s.metrics.Reconnect),
	}
	if s.newBackOff != nil {
		sseOptions = append(sseOptions, sse.WithBackOff(s.newBackOff))
	}
	supervisor, err := sse.New(s.options.URL, aSession, sseOptions...)
	if err != nil {
		dispatcher.Abort()
		return fmt.Errorf("%w: %v", ErrConfig, err)
	}
	s.logger.Info().Str("url", s.options.URL).Bool("secure", s.options.Secure).Msg("starting bridge")

	inbox := make(chan json.RawMessage)
	exhausted := make(chan struct{})
	// not awaited: a blocked read on in cannot be interrupted
	go func() {
		_ = ReadMessages(ctx, in, inbox, exhausted, s.logger, s.metrics)
	}()

	streamCtx, stopStream := context.WithCancel(ctx)
	defer stopStream()
	group := &errgroup.Group{}
	group.Go(func() error {
		err := supervisor.Run(streamCtx)
		if cause := context.Cause(ctx); cause != nil {
			return cause
		}
		if streamCtx.Err() == nil {
			s.logger.Warn().Err(err).Msg("sse subscription stopped")
		}
		return nil
	})
	group.Go(func() error {
		defer stopStream()
		if err := aSession.run(ctx, inbox, exhausted); err != nil {
			return err
		}
		dispatcher.Close(s.options.DrainTimeout)
		return nil
	})
	err = group.Wait()

	switch {
	case err == nil:
		s.logger.Info().Msg("input closed, bridge stopped")
		return nil
	case errors.Is(err, auth.ErrRejected):
		dispatcher.Abort()
		dispatcher.Close(0)
		s.logger.Error().Err(err).Msg("exiting: auth token rejected")
		return err
	case errors.Is(err, context.Canceled):
		dispatcher.Close(s.options.DrainTimeout)
		s.logger.Info().Msg("bridge interrupted")
		return nil
	default:
		dispatcher.Abort()
		dispatcher.Close(0)
		return err
	}
}

// fail ends the running session with cause.
func (s *Service) fail(cause error) {
	s.mux.Lock()
	cancel := s.cancel
	s.mux.Unlock()
	if cancel != nil {
		cancel(cause)
	}
}
