package bridge

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/viant/mcp-sse-bridge/auth"
	"github.com/viant/mcp-sse-bridge/internal/metrics"
)

// mcpServer is a minimal HTTP+SSE MCP server: it announces /msg/abc, records
// posted messages and answers ping requests over the stream.
type mcpServer struct {
	*httptest.Server
	token      string
	postStatus int
	release    chan struct{}
	events     chan string
	done       chan struct{}

	streams atomic.Int32
	mux     sync.Mutex
	posts   []string
	paths   []string
}

func newMCPServer(t *testing.T, options ...func(*mcpServer)) *mcpServer {
	ret := &mcpServer{
		postStatus: http.StatusAccepted,
		events:     make(chan string, 16),
		done:       make(chan struct{}),
	}
	for _, opt := range options {
		opt(ret)
	}
	mux := http.NewServeMux()
	mux.HandleFunc("/sse", ret.stream)
	mux.HandleFunc("/msg/abc", ret.message)
	ret.Server = httptest.NewServer(mux)
	t.Cleanup(func() {
		close(ret.done)
		ret.Close()
	})
	return ret
}

func (s *mcpServer) authorized(r *http.Request) bool {
	return s.token == "" || r.Header.Get(auth.HeaderName) == s.token
}

func (s *mcpServer) stream(w http.ResponseWriter, r *http.Request) {
	s.streams.Add(1)
	if !s.authorized(r) {
		w.WriteHeader(http.StatusForbidden)
		return
	}
	flusher := w.(http.Flusher)
	w.Header().Set("Content-Type", "text/event-stream")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()
	if s.release != nil {
		select {
		case <-s.release:
		case <-r.Context().Done():
			return
		case <-s.done:
			return
		}
	}
	_, _ = fmt.Fprint(w, "event: endpoint\ndata: /msg/abc\n\n")
	flusher.Flush()
	for {
		select {
		case data := <-s.events:
			_, _ = fmt.Fprintf(w, "data: %s\n\n", data)
			flusher.Flush()
		case <-r.Context().Done():
			return
		case <-s.done:
			return
		}
	}
}

func (s *mcpServer) message(w http.ResponseWriter, r *http.Request) {
	body, _ := io.ReadAll(r.Body)
	s.mux.Lock()
	s.posts = append(s.posts, string(body))
	s.paths = append(s.paths, r.URL.RequestURI())
	s.mux.Unlock()
	if !s.authorized(r) {
		w.WriteHeader(http.StatusForbidden)
		return
	}
	w.WriteHeader(s.postStatus)
	var request struct {
		ID     json.RawMessage `json:"id"`
		Method string          `json:"method"`
	}
	if err := json.Unmarshal(body, &request); err == nil && request.Method == "ping" {
		s.events <- fmt.Sprintf(`{"jsonrpc":"2.0","id":%s,"result":{}}`, request.ID)
	}
}

func (s *mcpServer) received() []string {
	s.mux.Lock()
	defer s.mux.Unlock()
	return append([]string{}, s.posts...)
}

func (s *mcpServer) requested() []string {
	s.mux.Lock()
	defer s.mux.Unlock()
	return append([]string{}, s.paths...)
}

type harness struct {
	service *Service
	stdin   *io.PipeWriter
	stdout  *lockedBuffer
	logs    *lockedBuffer
	metrics *metrics.Metrics
	done    chan error
}

// recordingTransport records request bodies in the order requests are issued.
type recordingTransport struct {
	mux    sync.Mutex
	bodies []string
}

func (r *recordingTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	if req.Method == http.MethodPost {
		data, err := io.ReadAll(req.Body)
		if err != nil {
			return nil, err
		}
		r.mux.Lock()
		r.bodies = append(r.bodies, string(data))
		r.mux.Unlock()
		req.Body = io.NopCloser(bytes.NewReader(data))
	}
	return http.DefaultTransport.RoundTrip(req)
}

func (r *recordingTransport) recorded() []string {
	r.mux.Lock()
	defer r.mux.Unlock()
	return append([]string{}, r.bodies...)
}

func startBridge(t *testing.T, server *mcpServer, adjust func(*Options), opts ...Option) *harness {
	options := &Options{
		URL:          server.URL + "/sse",
		SettleDelay:  10 * time.Millisecond,
		QueueSize:    1024,
		Overflow:     OverflowBlock,
		DrainTimeout: time.Second,
	}
	if adjust != nil {
		adjust(options)
	}
	ret := &harness{stdout: &lockedBuffer{}, logs: &lockedBuffer{}, metrics: metrics.New(), done: make(chan error, 1)}
	opts = append([]Option{
		WithLogger(zerolog.New(ret.logs)),
		WithMetrics(ret.metrics),
		WithBackOff(func() backoff.BackOff { return backoff.NewConstantBackOff(10 * time.Millisecond) }),
	}, opts...)
	srv, err := New(context.Background(), options, opts...)
	require.NoError(t, err)
	ret.service = srv
	stdin, stdinWriter := io.Pipe()
	ret.stdin = stdinWriter
	go func() {
		ret.done <- srv.Serve(context.Background(), stdin, ret.stdout)
	}()
	t.Cleanup(func() { _ = stdinWriter.Close() })
	return ret
}

func (h *harness) send(t *testing.T, lines ...string) {
	for _, line := range lines {
		_, err := io.WriteString(h.stdin, line+"\n")
		require.NoError(t, err)
	}
}

func (h *harness) wait(t *testing.T) error {
	select {
	case err := <-h.done:
		return err
	case <-time.After(5 * time.Second):
		require.FailNow(t, "bridge did not stop")
		return nil
	}
}

func TestService_Serve_ping(t *testing.T) {
	server := newMCPServer(t)
	h := startBridge(t, server, nil)

	h.send(t, `{"jsonrpc": "2.0", "id": 1, "method": "ping"}`)
	expect := `{"jsonrpc":"2.0","id":1,"result":{}}` + "\n"
	require.Eventually(t, func() bool { return h.stdout.String() == expect }, 3*time.Second, 5*time.Millisecond)

	require.NoError(t, h.stdin.Close())
	assert.NoError(t, h.wait(t))
	assert.EqualValues(t, []string{`{"jsonrpc":"2.0","id":1,"method":"ping"}`}, server.received())
	assert.EqualValues(t, []string{"/msg/abc"}, server.requested())
	assert.Contains(t, h.logs.String(), h.service.SessionID())
}

func TestService_Serve_queuedBeforeEndpoint(t *testing.T) {
	release := make(chan struct{})
	server := newMCPServer(t, func(s *mcpServer) { s.release = release })
	transport := &recordingTransport{}
	h := startBridge(t, server, func(o *Options) { o.SettleDelay = 50 * time.Millisecond },
		WithHttpClient(&http.Client{Transport: transport}))

	h.send(t, `{"id":1}`, `{"id":2}`, `{"id":3}`)
	assert.Empty(t, transport.recorded())
	close(release)
	h.send(t, `{"id":4}`)
	require.Eventually(t, func() bool { return len(transport.recorded()) == 4 }, 3*time.Second, 5*time.Millisecond)

	h.send(t, `{"id":5}`)
	require.Eventually(t, func() bool { return len(server.received()) == 5 }, 3*time.Second, 5*time.Millisecond)
	require.NoError(t, h.stdin.Close())
	assert.NoError(t, h.wait(t))

	expect := []string{`{"id":1}`, `{"id":2}`, `{"id":3}`, `{"id":4}`, `{"id":5}`}
	assert.EqualValues(t, expect, transport.recorded())
	assert.ElementsMatch(t, expect, server.received())
}

func TestService_Serve_malformedLine(t *testing.T) {
	server := newMCPServer(t)
	h := startBridge(t, server, nil)

	h.send(t, `not json`, `{"id":2}`)
	require.Eventually(t, func() bool { return len(server.received()) == 1 }, 3*time.Second, 5*time.Millisecond)
	require.NoError(t, h.stdin.Close())
	assert.NoError(t, h.wait(t))
	assert.EqualValues(t, []string{`{"id":2}`}, server.received())
	assert.Contains(t, h.logs.String(), "failed to parse JSON")
}

func TestService_Serve_inbound(t *testing.T) {
	var testCases = []struct {
		description string
		strict      bool
		events      []string
		expect      string
	}{
		{
			description: "relay every payload",
			events:      []string{`{"jsonrpc":"2.0","method":"notifications/message"}`, `hello`},
			expect:      "{\"jsonrpc\":\"2.0\",\"method\":\"notifications/message\"}\nhello\n",
		},
		{
			description: "strict drops non-JSON",
			strict:      true,
			events:      []string{`hello`, `{"jsonrpc":"2.0","method":"notifications/message"}`},
			expect:      "{\"jsonrpc\":\"2.0\",\"method\":\"notifications/message\"}\n",
		},
	}

	for _, testCase := range testCases {
		t.Run(testCase.description, func(t *testing.T) {
			server := newMCPServer(t)
			h := startBridge(t, server, func(o *Options) { o.Strict = testCase.strict })
			for _, event := range testCase.events {
				server.events <- event
			}
			require.Eventually(t, func() bool { return h.stdout.String() == testCase.expect }, 3*time.Second, 5*time.Millisecond)
			require.NoError(t, h.stdin.Close())
			assert.NoError(t, h.wait(t))
		})
	}
}

func TestNew_secureWithoutToken(t *testing.T) {
	server := newMCPServer(t)
	_, err := New(context.Background(), &Options{URL: server.URL + "/sse", Secure: true})
	assert.ErrorIs(t, err, auth.ErrMissingToken)
	assert.Zero(t, server.streams.Load())
}

func TestService_Serve_rejected(t *testing.T) {
	var testCases = []struct {
		description string
		serverToken string
		postStatus  int
		secure      bool
		expectErr   bool
	}{
		{
			description: "secure post rejected",
			serverToken: "secret",
			postStatus:  http.StatusForbidden,
			secure:      true,
			expectErr:   true,
		},
		{
			description: "secure subscription rejected",
			serverToken: "other",
			secure:      true,
			expectErr:   true,
		},
		{
			description: "unsecured post rejected is logged",
			serverToken: "secret",
			postStatus:  http.StatusForbidden,
		},
	}

	for _, testCase := range testCases {
		t.Run(testCase.description, func(t *testing.T) {
			server := newMCPServer(t, func(s *mcpServer) {
				s.token = testCase.serverToken
				if testCase.postStatus != 0 {
					s.postStatus = testCase.postStatus
				}
			})
			h := startBridge(t, server, func(o *Options) {
				o.Secure = testCase.secure
				o.AuthToken = "secret"
			})
			if testCase.postStatus != 0 {
				go func() { _, _ = io.WriteString(h.stdin, `{"id":1}`+"\n") }()
			}
			if testCase.expectErr {
				err := h.wait(t)
				assert.True(t, errors.Is(err, auth.ErrRejected), err)
				assert.Contains(t, h.logs.String(), "authentication rejected")
				return
			}
			require.Eventually(t, func() bool {
				return strings.Contains(h.logs.String(), "authentication rejected")
			}, 3*time.Second, 5*time.Millisecond)
			require.NoError(t, h.stdin.Close())
			assert.NoError(t, h.wait(t))
		})
	}
}

func TestService_Serve_overflow(t *testing.T) {
	t.Run("reject", func(t *testing.T) {
		server := newMCPServer(t, func(s *mcpServer) { s.release = make(chan struct{}) })
		h := startBridge(t, server, func(o *Options) {
			o.QueueSize = 2
			o.Overflow = OverflowReject
		})
		registry := prometheus.NewRegistry()
		require.NoError(t, h.metrics.Register(registry))

		h.send(t, `{"id":1}`, `{"id":2}`, `{"id":3}`)
		require.NoError(t, h.stdin.Close())
		assert.NoError(t, h.wait(t))
		assert.Empty(t, server.received())

		expect := `
# HELP mcp_bridge_dropped_total Number of messages discarded by reason
# TYPE mcp_bridge_dropped_total counter
mcp_bridge_dropped_total{reason="overflow"} 1
mcp_bridge_dropped_total{reason="shutdown"} 2
`
		assert.NoError(t, testutil.GatherAndCompare(registry, strings.NewReader(expect), "mcp_bridge_dropped_total"))
	})

	t.Run("block without endpoint", func(t *testing.T) {
		server := newMCPServer(t, func(s *mcpServer) { s.release = make(chan struct{}) })
		h := startBridge(t, server, func(o *Options) {
			o.QueueSize = 1
			o.Overflow = OverflowBlock
		})
		registry := prometheus.NewRegistry()
		require.NoError(t, h.metrics.Register(registry))

		go func() {
			_, _ = io.WriteString(h.stdin, "{\"id\":1}\n{\"id\":2}\n")
			_ = h.stdin.Close()
		}()
		assert.NoError(t, h.wait(t))
		assert.Empty(t, server.received())

		expect := `
# HELP mcp_bridge_dropped_total Number of messages discarded by reason
# TYPE mcp_bridge_dropped_total counter
mcp_bridge_dropped_total{reason="shutdown"} 2
`
		assert.NoError(t, testutil.GatherAndCompare(registry, strings.NewReader(expect), "mcp_bridge_dropped_total"))
	})

	t.Run("block", func(t *testing.T) {
		release := make(chan struct{})
		server := newMCPServer(t, func(s *mcpServer) { s.release = release })
		h := startBridge(t, server, func(o *Options) {
			o.QueueSize = 1
			o.Overflow = OverflowBlock
		})
		sent := make(chan struct{})
		go func() {
			defer close(sent)
			for i := 1; i <= 3; i++ {
				_, _ = fmt.Fprintf(h.stdin, "{\"id\":%d}\n", i)
			}
		}()
		time.Sleep(50 * time.Millisecond)
		close(release)
		<-sent
		require.Eventually(t, func() bool { return len(server.received()) == 3 }, 3*time.Second, 5*time.Millisecond)
		assert.EqualValues(t, []string{`{"id":1}`, `{"id":2}`, `{"id":3}`}, server.received())
		require.NoError(t, h.stdin.Close())
		assert.NoError(t, h.wait(t))
	})
}
