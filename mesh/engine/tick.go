package engine

import (
	"fmt"
	"time"

	"automesh/hwaddr"
	"automesh/mesh/protocol"

	log "github.com/sirupsen/logrus"
)

// Tick runs one protocol step for the node's role. Hosts using Run never call
// this directly; external schedulers must call it from the same logical
// thread as Deliver.
func (e *Engine) Tick() {
	e.tickCount++

	switch e.cfg.Role {
	case RoleMesh:
		e.tickMesh()
	case RoleController:
		e.tickController()
	case RoleWorker:
		e.tickWorker()
	}

	if e.book != nil && e.tickCount%bookFlushTicks == 0 {
		e.bookFlush()
	}
}

// onSendTick gates application traffic and liveness probes to every
// SendEveryTicks-th tick. Discovery broadcasts bypass it.
func (e *Engine) onSendTick() bool {
	return e.tickCount%uint64(e.cfg.SendEveryTicks) == 0
}

// A mesh node announces while alone and switches to per-peer application
// traffic once anyone answers. Every node that missed the announcement will
// eventually announce itself, so the mesh converges without a coordinator.
func (e *Engine) tickMesh() {
	if e.reg.Len() == 0 {
		e.broadcastDiscovery()
		return
	}

	if !e.onSendTick() {
		return
	}

	peers := e.reg.Peers()
	for _, payload := range e.drainSendQueue() {
		for _, p := range peers {
			e.sendApp(p.ID, p.Addr, payload)
		}
	}
}

// A controller never announces; it probes each registered peer on the send
// cadence to keep the failure detector honest about silent workers.
func (e *Engine) tickController() {
	if !e.onSendTick() {
		return
	}

	for _, p := range e.reg.Peers() {
		err := e.link.Unicast(p.Addr, protocol.Encode(protocol.TagPing, nil))
		e.HandleOutcome(p.ID, err)
	}
}

// An unattached worker announces every tick; an attached one sends its
// application traffic to the controller on the send cadence.
func (e *Engine) tickWorker() {
	if e.workerState != WorkerConnected {
		e.broadcastDiscovery()
		return
	}

	if !e.onSendTick() {
		return
	}

	for _, payload := range e.drainSendQueue() {
		if e.workerState != WorkerConnected {
			// Detached mid-drain by a failed send
			break
		}
		e.sendApp(e.controller.ID, e.controller.Addr, payload)
	}
}

func (e *Engine) broadcastDiscovery() {
	if err := e.link.Broadcast(protocol.Encode(protocol.TagPeer, nil)); err != nil {
		e.metrics.SendFailed()
		log.Warnf("discovery broadcast failed: %v", err)
		return
	}
	e.metrics.BroadcastSent()
}

// drainSendQueue takes the queued application payloads for this send tick.
// An empty queue yields the heartbeat so peers still see periodic traffic.
func (e *Engine) drainSendQueue() [][]byte {
	n := len(e.sendQ)
	if n == 0 {
		return [][]byte{e.cfg.Heartbeat}
	}

	out := make([][]byte, 0, n)
	for i := 0; i < n; i++ {
		select {
		case p := <-e.sendQ:
			out = append(out, p)
		default:
			return out
		}
	}
	return out
}

// sendApp unicasts one application payload, truncating to the wire limit, and
// feeds the outcome to the failure detector.
func (e *Engine) sendApp(id string, addr hwaddr.Addr, payload []byte) {
	if len(payload) > protocol.MaxPayload {
		e.metrics.PayloadTruncated()
		log.Debugf("truncating %d byte payload for %s", len(payload), id)
	}

	err := e.link.Unicast(addr, protocol.Truncate(payload))
	e.HandleOutcome(id, err)
}

// HandleOutcome feeds one unicast result into the failure detector: success
// resets the peer's count, failure bumps it, and the threshold evicts.
// Outcomes for unknown peers are dropped, so a stale result cannot resurrect
// an already-evicted peer.
func (e *Engine) HandleOutcome(id string, err error) {
	if err == nil {
		e.metrics.UnicastSent()
	} else {
		e.metrics.SendFailed()
		log.Debugf("send to %s failed: %v", id, err)
	}

	if e.cfg.Role == RoleWorker {
		e.workerOutcome(id, err)
		return
	}

	if err == nil {
		e.reg.ResetFailures(id)
		e.reg.Touch(id)
		return
	}

	n, known := e.reg.RecordFailure(id)
	if !known {
		return
	}
	if n >= e.cfg.FailureThreshold {
		e.evict(id)
	}
}

func (e *Engine) evict(id string) {
	log.Infof("evicting %s after %d consecutive send failures", id, e.cfg.FailureThreshold)

	p, ok := e.reg.Find(id)
	if !ok {
		return
	}
	addr := p.Addr

	e.reg.Remove(id)
	e.metrics.PeerEvicted()
	e.metrics.SetPeerCount(e.reg.Len())
	e.bookEvict(addr)
}

// workerOutcome applies send results to the controller attachment. Results
// for anything but the current controller are stale and dropped.
func (e *Engine) workerOutcome(id string, err error) {
	if e.workerState != WorkerConnected || e.controller == nil || id != e.controller.ID {
		return
	}

	if err == nil {
		e.controller.Failures = 0
		e.controller.LastSeen = time.Now()
		return
	}

	e.controller.Failures++
	if e.controller.Failures >= e.cfg.FailureThreshold {
		e.workerDetach(fmt.Sprintf("%d consecutive send failures", e.controller.Failures), true)
	}
}
