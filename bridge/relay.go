package bridge

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"sync"

	"github.com/rs/zerolog"

	"github.com/viant/mcp-sse-bridge/internal/metrics"
)

const maxLoggedLine = 256

// ReadMessages reads newline-delimited JSON from r and sends each value,
// compacted, to messages. Blank lines are skipped and lines that do not hold
// exactly one JSON value are logged and dropped. exhausted, when not nil, is
// closed as soon as r has no more lines, even while a message is still
// waiting to be sent. messages is closed when every line was handled or ctx
// is done.
func ReadMessages(ctx context.Context, r io.Reader, messages chan<- json.RawMessage, exhausted chan<- struct{}, logger zerolog.Logger, m *metrics.Metrics) error {
	defer close(messages)
	lines := make(chan []byte)
	readErr := make(chan error, 1)
	go func() {
		defer close(lines)
		reader := bufio.NewReader(r)
		for {
			line, err := reader.ReadBytes('\n')
			if len(line) > 0 {
				select {
				case lines <- line:
				case <-ctx.Done():
					return
				}
			}
			if err != nil {
				if exhausted != nil {
					close(exhausted)
				}
				if !errors.Is(err, io.EOF) {
					readErr <- err
				}
				return
			}
		}
	}()

	for line := range lines {
		message, ok := parseLine(line, logger, m)
		if !ok {
			continue
		}
		select {
		case messages <- message:
		case <-ctx.Done():
			return context.Cause(ctx)
		}
	}
	if err := context.Cause(ctx); err != nil {
		return err
	}
	select {
	case err := <-readErr:
		logger.Error().Err(err).Msg("failed to read input")
		return err
	default:
		return nil
	}
}

func parseLine(line []byte, logger zerolog.Logger, m *metrics.Metrics) (json.RawMessage, bool) {
	line = bytes.TrimSpace(line)
	if len(line) == 0 {
		return nil, false
	}
	compacted := &bytes.Buffer{}
	if err := json.Compact(compacted, line); err != nil {
		if m != nil {
			m.Dropped(metrics.ReasonParse, 1)
		}
		logger.Error().Err(err).Str("line", truncate(line)).Msg("failed to parse JSON")
		return nil, false
	}
	return compacted.Bytes(), true
}

func truncate(line []byte) string {
	if len(line) > maxLoggedLine {
		return string(line[:maxLoggedLine]) + "..."
	}
	return string(line)
}

// inboundWriter writes server payloads to the local process, one line each.
type inboundWriter struct {
	mux     sync.Mutex
	writer  io.Writer
	strict  bool
	logger  zerolog.Logger
	metrics *metrics.Metrics
}

// Write emits data followed by a newline in a single write.
func (w *inboundWriter) Write(data string) error {
	if w.strict && !json.Valid([]byte(data)) {
		w.metrics.Dropped(metrics.ReasonInbound, 1)
		w.logger.Warn().Str("data", truncate([]byte(data))).Msg("dropping non-JSON server message")
		return nil
	}
	line := make([]byte, 0, len(data)+1)
	line = append(line, data...)
	line = append(line, '\n')

	w.mux.Lock()
	defer w.mux.Unlock()
	if _, err := w.writer.Write(line); err != nil {
		w.logger.Error().Err(err).Msg("failed to write server message")
		return err
	}
	w.metrics.Relayed()
	return nil
}
