package bridge

import (
	"fmt"
	"time"
)

// Overflow policies of the outbound queue.
const (
	OverflowBlock  = "block"
	OverflowReject = "reject"
)

type Options struct {
	URL          string        `short:"u" long:"url" env:"MCP_SSE_URL" default:"http://localhost:8000/sse" description:"remote sse url"`
	AuthToken    string        `short:"t" long:"token" env:"MCP_AUTH_TOKEN" description:"shared secret sent as X-MCP-Auth-Token"`
	Secure       bool          `short:"s" long:"secure" env:"MCP_SECURE" description:"require auth token and exit on 403"`
	SettleDelay  time.Duration `long:"settle-delay" env:"MCP_SETTLE_DELAY" default:"2s" description:"wait after the endpoint event before flushing queued messages"`
	QueueSize    int           `long:"queue-size" env:"MCP_QUEUE_SIZE" default:"1024" description:"messages kept until the endpoint is known, 0 for unbounded"`
	Overflow     string        `long:"overflow" env:"MCP_QUEUE_OVERFLOW" default:"block" choice:"block" choice:"reject" description:"queue overflow policy"`
	OutboxSize   int           `long:"outbox-size" env:"MCP_OUTBOX_SIZE" default:"64" description:"messages waiting for the post sender once the endpoint is known"`
	DrainTimeout time.Duration `long:"drain-timeout" env:"MCP_DRAIN_TIMEOUT" default:"2s" description:"wait for in-flight posts on shutdown"`
	PostTimeout  time.Duration `long:"post-timeout" env:"MCP_POST_TIMEOUT" description:"per post timeout, 0 for none"`
	Strict       bool          `long:"strict" env:"MCP_STRICT_INBOUND" description:"drop server payloads that are not valid JSON"`
	LogLevel     string        `short:"l" long:"log-level" env:"MCP_LOG_LEVEL" description:"log level: debug, info, warn, error, none"`
	MetricsAddr  string        `long:"metrics-addr" env:"MCP_METRICS_ADDR" description:"serve prometheus metrics on this address"`
}

// Validate checks settings that do not depend on the network.
func (o *Options) Validate() error {
	if err := ValidateBaseURL(o.URL); err != nil {
		return err
	}
	switch o.Overflow {
	case "", OverflowBlock, OverflowReject:
	default:
		return fmt.Errorf("%w: unsupported overflow policy %q", ErrConfig, o.Overflow)
	}
	if o.QueueSize < 0 {
		return fmt.Errorf("%w: negative queue size %d", ErrConfig, o.QueueSize)
	}
	if o.OutboxSize < 0 {
		return fmt.Errorf("%w: negative outbox size %d", ErrConfig, o.OutboxSize)
	}
	if o.SettleDelay < 0 || o.DrainTimeout < 0 || o.PostTimeout < 0 {
		return fmt.Errorf("%w: negative duration", ErrConfig)
	}
	return nil
}
