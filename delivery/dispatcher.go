package delivery

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptrace"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"github.com/viant/mcp-sse-bridge/internal/metrics"
)

const maxErrorBody = 64 * 1024

type job struct {
	endpoint string
	message  json.RawMessage
}

// Dispatcher delivers messages via HTTP POST.
type Dispatcher struct {
	client     *http.Client
	timeout    time.Duration
	outboxSize int
	logger     zerolog.Logger
	metrics    *metrics.Metrics

	ctx      context.Context
	cancel   context.CancelFunc
	outbox   chan job
	done     chan struct{}
	inflight sync.WaitGroup
	pending  atomic.Int64
	mux      sync.RWMutex
	closed   bool
}

// New creates a dispatcher and starts its sender.
func New(options ...Option) *Dispatcher {
	ret := &Dispatcher{
		client:     &http.Client{},
		outboxSize: 64,
		logger:     zerolog.Nop(),
		done:       make(chan struct{}),
	}
	for _, opt := range options {
		opt(ret)
	}
	if ret.metrics == nil {
		ret.metrics = metrics.New()
	}
	ret.ctx, ret.cancel = context.WithCancel(context.Background())
	ret.outbox = make(chan job, ret.outboxSize)
	go ret.run()
	return ret
}

// Submit queues message for delivery to endpoint. It blocks while the outbox
// is full.
func (d *Dispatcher) Submit(ctx context.Context, endpoint string, message json.RawMessage) error {
	d.mux.RLock()
	defer d.mux.RUnlock()
	if d.closed {
		return ErrClosed
	}
	d.pending.Add(1)
	select {
	case d.outbox <- job{endpoint: endpoint, message: message}:
		return nil
	case <-ctx.Done():
		d.pending.Add(-1)
		return ctx.Err()
	}
}

// Pending returns the number of submitted messages not yet completed.
func (d *Dispatcher) Pending() int {
	return int(d.pending.Load())
}

// Close stops intake and waits up to grace for submitted messages to be
// delivered, then cancels whatever is left. It returns the number of
// messages abandoned.
func (d *Dispatcher) Close(grace time.Duration) int {
	d.mux.Lock()
	if !d.closed {
		d.closed = true
		close(d.outbox)
	}
	d.mux.Unlock()

	drained := make(chan struct{})
	go func() {
		<-d.done
		d.inflight.Wait()
		close(drained)
	}()
	abandoned := 0
	if grace > 0 {
		timer := time.NewTimer(grace)
		defer timer.Stop()
		select {
		case <-drained:
		case <-timer.C:
		}
	}
	select {
	case <-drained:
	default:
		abandoned = d.Pending()
	}
	d.cancel()
	if abandoned > 0 {
		d.logger.Warn().Int("abandoned", abandoned).Dur("grace", grace).Msg("shutting down with undelivered messages")
	}
	return abandoned
}

// Abort cancels every in-flight and waiting delivery.
func (d *Dispatcher) Abort() {
	d.cancel()
}

func (d *Dispatcher) run() {
	defer close(d.done)
	for j := range d.outbox {
		if d.ctx.Err() != nil {
			d.pending.Add(-1)
			d.metrics.Dropped(metrics.ReasonShutdown, 1)
			continue
		}
		d.issue(j)
	}
}

// issue starts one POST and returns once its request is written, it has
// completed, or the dispatcher is cancelled.
func (d *Dispatcher) issue(j job) {
	written := make(chan struct{})
	var once sync.Once
	signal := func() { once.Do(func() { close(written) }) }

	d.inflight.Add(1)
	d.metrics.PostStart()
	go func() {
		defer func() {
			signal()
			d.pending.Add(-1)
			d.metrics.PostEnd()
			d.inflight.Done()
		}()
		_ = d.deliver(d.ctx, j.endpoint, j.message, signal)
	}()
	select {
	case <-written:
	case <-d.ctx.Done():
	}
}

// Deliver posts message to endpoint and waits for the response.
func (d *Dispatcher) Deliver(ctx context.Context, endpoint string, message json.RawMessage) error {
	return d.deliver(ctx, endpoint, message, nil)
}

func (d *Dispatcher) deliver(ctx context.Context, endpoint string, message json.RawMessage, wrote func()) error {
	if d.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, d.timeout)
		defer cancel()
	}
	if wrote != nil {
		ctx = httptrace.WithClientTrace(ctx, &httptrace.ClientTrace{
			WroteRequest: func(httptrace.WroteRequestInfo) { wrote() },
		})
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(message))
	if err != nil {
		d.metrics.Delivered(metrics.ResultError)
		d.logger.Error().Err(err).Str("endpoint", endpoint).Msg("failed to create post request")
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := d.client.Do(req)
	if err != nil {
		d.metrics.Delivered(metrics.ResultError)
		d.logger.Error().Err(err).Str("endpoint", endpoint).Msg("failed to relay message")
		return fmt.Errorf("failed to post message: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxErrorBody))
		d.metrics.Delivered(metrics.ResultDelivered)
		d.logger.Debug().Int("status", resp.StatusCode).Int("bytes", len(message)).Msg("message delivered")
		return nil
	}

	body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	statusErr := &StatusError{StatusCode: resp.StatusCode, Reason: reason(resp), Body: string(body)}
	if resp.StatusCode == http.StatusForbidden {
		d.metrics.Delivered(metrics.ResultRejected)
		d.logger.Error().Str("endpoint", endpoint).Msg("authentication rejected: check MCP_AUTH_TOKEN")
	} else {
		d.metrics.Delivered(metrics.ResultStatus)
	}
	d.logger.Error().
		Int("status", statusErr.StatusCode).
		Str("reason", statusErr.Reason).
		Str("response", statusErr.Body).
		Msg("post error")
	return statusErr
}

// reason extracts the reason phrase from the status line.
func reason(resp *http.Response) string {
	phrase := strings.TrimSpace(strings.TrimPrefix(resp.Status, strconv.Itoa(resp.StatusCode)))
	if phrase == "" {
		phrase = http.StatusText(resp.StatusCode)
	}
	return phrase
}
