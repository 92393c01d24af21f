// Package metrics provides a Prometheus implementation of the engine.Metrics
// interface.
//
// All metrics use the configured namespace prefix (default: "automesh"):
//
//	automesh_peers_added_total
//	automesh_peers_evicted_total
//	automesh_broadcasts_sent_total
//	automesh_unicasts_sent_total
//	automesh_send_failures_total
//	automesh_payloads_truncated_total
//	automesh_messages_dropped_total
//	automesh_worker_connects_total
//	automesh_worker_disconnects_total
//	automesh_peers (gauge)
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"

	"automesh/mesh/engine"
)

// DefaultNamespace is the default namespace for all metrics.
const DefaultNamespace = "automesh"

// Metrics implements engine.Metrics on top of Prometheus collectors.
// It is safe for concurrent use, although the engine only drives it from
// a single goroutine.
type Metrics struct {
	peersAdded        prometheus.Counter
	peersEvicted      prometheus.Counter
	broadcastsSent    prometheus.Counter
	unicastsSent      prometheus.Counter
	sendFailures      prometheus.Counter
	payloadsTruncated prometheus.Counter
	messagesDropped   prometheus.Counter
	workerConnects    prometheus.Counter
	workerDisconnects prometheus.Counter
	peers             prometheus.Gauge
}

var _ engine.Metrics = (*Metrics)(nil)

// New creates a Prometheus metrics collector with the given namespace and
// registers it with the given registerer. An empty namespace falls back to
// DefaultNamespace; a nil registerer skips registration, which is useful in
// tests that only exercise the engine.
func New(namespace string, registerer prometheus.Registerer) *Metrics {
	if namespace == "" {
		namespace = DefaultNamespace
	}

	m := &Metrics{
		peersAdded: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "peers_added_total",
			Help:      "Total number of peers added to the registry",
		}),
		peersEvicted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "peers_evicted_total",
			Help:      "Total number of peers evicted by the failure detector",
		}),
		broadcastsSent: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "broadcasts_sent_total",
			Help:      "Total number of discovery broadcasts sent",
		}),
		unicastsSent: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "unicasts_sent_total",
			Help:      "Total number of unicasts sent successfully",
		}),
		sendFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "send_failures_total",
			Help:      "Total number of failed transmission attempts",
		}),
		payloadsTruncated: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "payloads_truncated_total",
			Help:      "Total number of payloads truncated to the wire limit",
		}),
		messagesDropped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "messages_dropped_total",
			Help:      "Total number of inbound payloads dropped due to a full delivery queue",
		}),
		workerConnects: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "worker_connects_total",
			Help:      "Total number of controller attachments",
		}),
		workerDisconnects: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "worker_disconnects_total",
			Help:      "Total number of controller detachments",
		}),
		peers: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "peers",
			Help:      "Current number of registered peers",
		}),
	}

	if registerer != nil {
		registerer.MustRegister(
			m.peersAdded,
			m.peersEvicted,
			m.broadcastsSent,
			m.unicastsSent,
			m.sendFailures,
			m.payloadsTruncated,
			m.messagesDropped,
			m.workerConnects,
			m.workerDisconnects,
			m.peers,
		)
	}

	return m
}

// PeerAdded implements engine.Metrics.
func (m *Metrics) PeerAdded() {
	m.peersAdded.Inc()
}

// PeerEvicted implements engine.Metrics.
func (m *Metrics) PeerEvicted() {
	m.peersEvicted.Inc()
}

// BroadcastSent implements engine.Metrics.
func (m *Metrics) BroadcastSent() {
	m.broadcastsSent.Inc()
}

// UnicastSent implements engine.Metrics.
func (m *Metrics) UnicastSent() {
	m.unicastsSent.Inc()
}

// SendFailed implements engine.Metrics.
func (m *Metrics) SendFailed() {
	m.sendFailures.Inc()
}

// PayloadTruncated implements engine.Metrics.
func (m *Metrics) PayloadTruncated() {
	m.payloadsTruncated.Inc()
}

// MessageDropped implements engine.Metrics.
func (m *Metrics) MessageDropped() {
	m.messagesDropped.Inc()
}

// WorkerConnected implements engine.Metrics.
func (m *Metrics) WorkerConnected() {
	m.workerConnects.Inc()
}

// WorkerDisconnected implements engine.Metrics.
func (m *Metrics) WorkerDisconnected() {
	m.workerDisconnects.Inc()
}

// SetPeerCount implements engine.Metrics.
func (m *Metrics) SetPeerCount(n int) {
	m.peers.Set(float64(n))
}
