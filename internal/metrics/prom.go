// Package metrics holds the prometheus collectors of a bridge session.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "mcp_bridge"

// Delivery results.
const (
	ResultDelivered = "delivered"
	ResultRejected  = "rejected"
	ResultStatus    = "status"
	ResultError     = "error"
)

// Drop reasons.
const (
	ReasonParse    = "parse"
	ReasonOverflow = "overflow"
	ReasonShutdown = "shutdown"
	ReasonInbound  = "inbound"
)

// Metrics groups the collectors of one bridge instance. The zero value is not
// usable; create with New.
type Metrics struct {
	inbound    prometheus.Counter
	outbound   *prometheus.CounterVec
	dropped    *prometheus.CounterVec
	queued     prometheus.Gauge
	inflight   prometheus.Gauge
	reconnects prometheus.Counter
}

// New creates unregistered collectors.
func New() *Metrics {
	return &Metrics{
		inbound: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "inbound_messages_total",
			Help:      "Number of server events relayed to stdout",
		}),
		outbound: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "outbound_messages_total",
			Help:      "Number of POST deliveries by result",
		}, []string{"result"}),
		dropped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "dropped_total",
			Help:      "Number of messages discarded by reason",
		}, []string{"reason"}),
		queued: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "queued_messages",
			Help:      "Messages waiting for the POST endpoint",
		}),
		inflight: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "inflight_posts",
			Help:      "POST requests issued and not yet completed",
		}),
		reconnects: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sse_reconnects_total",
			Help:      "Number of SSE subscription retries",
		}),
	}
}

// Register registers all collectors with r.
func (m *Metrics) Register(r prometheus.Registerer) error {
	for _, c := range []prometheus.Collector{m.inbound, m.outbound, m.dropped, m.queued, m.inflight, m.reconnects} {
		if err := r.Register(c); err != nil {
			return err
		}
	}
	return nil
}

// Relayed counts one inbound event written to stdout.
func (m *Metrics) Relayed() { m.inbound.Inc() }

// Delivered counts one POST outcome.
func (m *Metrics) Delivered(result string) { m.outbound.WithLabelValues(result).Inc() }

// Dropped counts n discarded messages.
func (m *Metrics) Dropped(reason string, n int) { m.dropped.WithLabelValues(reason).Add(float64(n)) }

// SetQueued reports the current outbound queue depth.
func (m *Metrics) SetQueued(n int) { m.queued.Set(float64(n)) }

// PostStart increments in-flight POSTs.
func (m *Metrics) PostStart() { m.inflight.Inc() }

// PostEnd decrements in-flight POSTs.
func (m *Metrics) PostEnd() { m.inflight.Dec() }

// Reconnect counts one SSE retry.
func (m *Metrics) Reconnect() { m.reconnects.Inc() }
