package engine

import (
	"time"

	"automesh/hwaddr"
	"automesh/mesh/protocol"

	log "github.com/sirupsen/logrus"
)

// Deliver processes one inbound frame: truncate, split the tag, then apply
// the role's handshake policy. Inbound handling only records facts and sends
// replies; it never blocks. External schedulers must call it from the same
// logical thread as Tick.
func (e *Engine) Deliver(from hwaddr.Addr, payload []byte) {
	if from == e.link.LocalAddr() {
		log.Debugf("received our own announcement - ignoring")
		return
	}

	if len(payload) > protocol.MaxPayload {
		e.metrics.PayloadTruncated()
	}
	msg := protocol.Parse(payload)

	switch e.cfg.Role {
	case RoleMesh:
		e.deliverMesh(from, msg)
	case RoleController:
		e.deliverController(from, msg)
	case RoleWorker:
		e.deliverWorker(from, msg)
	}
}

// A mesh node adopts any sender it hears, whatever the message was. Control
// tags carry nothing for the application; everything else is handed up.
func (e *Engine) deliverMesh(from hwaddr.Addr, msg protocol.Message) {
	e.noteSender(from)

	if msg.Tag == protocol.TagNone {
		e.deliverApp(from, msg.Body)
	}
}

// A controller adopts unknown senders and acknowledges them; a discovery
// announcement from an already-known peer earns a fresh acknowledgement in
// case the first one was lost. A full table stays silent: no ack means the
// sender keeps announcing and may win a slot once one frees up.
func (e *Engine) deliverController(from hwaddr.Addr, msg protocol.Message) {
	p, inserted := e.noteSender(from)

	if msg.Tag == protocol.TagNone {
		e.deliverApp(from, msg.Body)
	}

	if p == nil {
		return
	}

	if inserted || msg.Tag == protocol.TagPeer {
		e.sendAck(p)
	}
}

// A worker only ever talks to one controller. Disconnected, it waits for an
// acknowledgement; connected, it takes traffic from its controller alone.
func (e *Engine) deliverWorker(from hwaddr.Addr, msg protocol.Message) {
	if e.workerState != WorkerConnected {
		if msg.Tag == protocol.TagAck {
			e.workerAttach(from)
		}
		return
	}

	if from != e.controller.Addr {
		log.Debugf("ignoring %s from %s while attached to %s", msg.Tag, from, e.controller.ID)
		return
	}

	e.controller.LastSeen = time.Now()

	switch msg.Tag {
	case protocol.TagAck:
		// A duplicate ack from a re-announce race still proves liveness
		e.controller.Failures = 0
	case protocol.TagPing:
		// Liveness probe, nothing to do
	case protocol.TagNone:
		e.deliverApp(from, msg.Body)
	}
}

// noteSender records an inbound sender in the registry: known peers get their
// last-seen refreshed, unknown ones are inserted subject to capacity. Returns
// the record (nil when the table is full) and whether it is new.
func (e *Engine) noteSender(from hwaddr.Addr) (*Peer, bool) {
	p, inserted := e.reg.Insert(from)
	if p == nil {
		return nil, false
	}

	e.reg.Touch(p.ID)

	if inserted {
		log.Infof("discovered peer %s (%d/%d)", p.ID, e.reg.Len(), e.cfg.MaxPeers)
		e.metrics.PeerAdded()
		e.metrics.SetPeerCount(e.reg.Len())
		e.bookNote(p.Addr)
	}

	return p, inserted
}

func (e *Engine) sendAck(p *Peer) {
	err := e.link.Unicast(p.Addr, protocol.Encode(protocol.TagAck, nil))
	e.HandleOutcome(p.ID, err)
}

// workerAttach adopts a controller. The address goes to the link first; a
// link that refuses it leaves the worker disconnected and announcing.
func (e *Engine) workerAttach(addr hwaddr.Addr) {
	if err := e.link.AddPeer(addr); err != nil {
		log.Warnf("failed to register controller %s with the link: %v", addr, err)
		return
	}

	e.controller = &Peer{
		ID:       addr.String(),
		Addr:     addr,
		LastSeen: time.Now(),
	}
	e.workerState = WorkerConnected

	log.Infof("attached to controller %s", e.controller.ID)
	e.metrics.PeerAdded()
	e.metrics.WorkerConnected()
	e.metrics.SetPeerCount(1)
	e.bookNote(addr)
}

// workerDetach drops the controller and returns to announcing. evicted marks
// a failure-detector removal as opposed to an orderly shutdown.
func (e *Engine) workerDetach(reason string, evicted bool) {
	if e.workerState != WorkerConnected {
		return
	}

	addr := e.controller.Addr
	log.Infof("detaching from controller %s: %s", e.controller.ID, reason)

	if err := e.link.RemovePeer(addr); err != nil {
		log.Warnf("failed to unregister controller %s from the link: %v", addr, err)
	}

	e.controller = nil
	e.workerState = WorkerDisconnected

	e.metrics.WorkerDisconnected()
	e.metrics.SetPeerCount(0)
	if evicted {
		e.metrics.PeerEvicted()
		e.bookEvict(addr)
	}
}

// deliverApp hands an application payload to the host. A full queue drops the
// payload; inbound handling never blocks the engine.
func (e *Engine) deliverApp(from hwaddr.Addr, body []byte) {
	select {
	case e.messages <- Inbound{From: from, Payload: body}:
	default:
		e.metrics.MessageDropped()
		log.Debugf("message queue full, dropping %d bytes from %s", len(body), from)
	}
}
