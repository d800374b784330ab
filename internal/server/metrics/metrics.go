// Package metrics collects and exposes Prometheus metrics for the
// messaging server.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Collector is the interface the transport and relay layers record against.
type Collector interface {
	ConnectionOpened()
	ConnectionClosed()
	EventReceived(event string)
	MessageSent()
	MessageFailed(reason string)
	PresenceBroadcast()
}

// PromCollector implements Collector over Prometheus metrics.
type PromCollector struct {
	connectionsActive  prometheus.Gauge
	eventsTotal        *prometheus.CounterVec
	messagesSent       prometheus.Counter
	messagesFailed     *prometheus.CounterVec
	presenceBroadcasts prometheus.Counter
}

// NewPromCollector creates a collector and registers its metrics with reg.
func NewPromCollector(reg prometheus.Registerer) *PromCollector {
	c := &PromCollector{
		connectionsActive: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "messenger_connections_active",
			Help: "Number of currently open client connections.",
		}),
		eventsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "messenger_events_total",
			Help: "Inbound events by event name.",
		}, []string{"event"}),
		messagesSent: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "messenger_messages_sent_total",
			Help: "Messages persisted and delivered.",
		}),
		messagesFailed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "messenger_messages_failed_total",
			Help: "Failed sends by reason.",
		}, []string{"reason"}),
		presenceBroadcasts: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "messenger_presence_broadcasts_total",
			Help: "Presence transitions broadcast to connected peers.",
		}),
	}

	reg.MustRegister(
		c.connectionsActive,
		c.eventsTotal,
		c.messagesSent,
		c.messagesFailed,
		c.presenceBroadcasts,
	)

	return c
}

func (c *PromCollector) ConnectionOpened() {
	c.connectionsActive.Inc()
}

func (c *PromCollector) ConnectionClosed() {
	c.connectionsActive.Dec()
}

func (c *PromCollector) EventReceived(event string) {
	c.eventsTotal.WithLabelValues(event).Inc()
}

func (c *PromCollector) MessageSent() {
	c.messagesSent.Inc()
}

func (c *PromCollector) MessageFailed(reason string) {
	c.messagesFailed.WithLabelValues(reason).Inc()
}

func (c *PromCollector) PresenceBroadcast() {
	c.presenceBroadcasts.Inc()
}

// Nop discards all recordings. Used in tests.
type Nop struct{}

func (Nop) ConnectionOpened()    {}
func (Nop) ConnectionClosed()    {}
func (Nop) EventReceived(string) {}
func (Nop) MessageSent()         {}
func (Nop) MessageFailed(string) {}
func (Nop) PresenceBroadcast()   {}
