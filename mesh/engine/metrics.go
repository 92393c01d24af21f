package engine

// Metrics receives counters from the engine. All calls happen on the engine
// goroutine; implementations must not block.
type Metrics interface {
	// PeerAdded increments when a peer enters the registry, or when a worker
	// attaches to its controller.
	PeerAdded()

	// PeerEvicted increments when the failure detector removes a peer.
	PeerEvicted()

	// BroadcastSent increments per discovery broadcast.
	BroadcastSent()

	// UnicastSent increments per successful unicast.
	UnicastSent()

	// SendFailed increments per failed transmission attempt.
	SendFailed()

	// PayloadTruncated increments when a payload exceeds the wire limit.
	PayloadTruncated()

	// MessageDropped increments when an application payload is dropped
	// because the delivery queue is full.
	MessageDropped()

	// WorkerConnected increments when a worker attaches to a controller.
	WorkerConnected()

	// WorkerDisconnected increments when a worker loses its controller.
	WorkerDisconnected()

	// SetPeerCount reports the current registry size.
	SetPeerCount(n int)
}

// NopMetrics discards all metrics. It is the default when no collector is
// configured.
type NopMetrics struct{}

var _ Metrics = NopMetrics{}

func (NopMetrics) PeerAdded()          {}
func (NopMetrics) PeerEvicted()        {}
func (NopMetrics) BroadcastSent()      {}
func (NopMetrics) UnicastSent()        {}
func (NopMetrics) SendFailed()         {}
func (NopMetrics) PayloadTruncated()   {}
func (NopMetrics) MessageDropped()     {}
func (NopMetrics) WorkerConnected()    {}
func (NopMetrics) WorkerDisconnected() {}
func (NopMetrics) SetPeerCount(n int)  {}
