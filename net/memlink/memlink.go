// Package memlink implements an in-process link for tests and simulations.
// A Hub models one broadcast domain: every link attached to the same hub hears
// every broadcast, and unicasts succeed only while the target stays attached.
// Detaching a link is how a test makes a node "disappear" and drives the
// failure detector on the survivors.
package memlink

import (
	"errors"
	"fmt"
	"sync"

	"automesh/hwaddr"
	"automesh/net/link"
)

const inboundQueueDepth = 1024

var ErrUnreachable = errors.New("peer unreachable")

// Hub is one broadcast domain. The zero value is not usable; create hubs with
// NewHub. Hubs are deliberately instance-scoped so two simulations never leak
// traffic into each other.
type Hub struct {
	mu    sync.Mutex
	links map[hwaddr.Addr]*Link
}

func NewHub() *Hub {
	return &Hub{
		links: make(map[hwaddr.Addr]*Link),
	}
}

// Attach creates a link with the given address on this hub.
func (h *Hub) Attach(addr hwaddr.Addr) (*Link, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := h.links[addr]; ok {
		return nil, fmt.Errorf("address %s already attached", addr)
	}

	l := &Link{
		hub:     h,
		addr:    addr,
		inbound: make(chan link.Frame, inboundQueueDepth),
		peers:   make(map[hwaddr.Addr]bool),
	}
	h.links[addr] = l
	return l, nil
}

// AttachRandom creates a link with a fresh random address.
func (h *Hub) AttachRandom() (*Link, error) {
	addr, err := hwaddr.Random()
	if err != nil {
		return nil, err
	}
	return h.Attach(addr)
}

// deliver enqueues a frame for the target if it is still attached. A full
// inbound queue drops the frame, like a busy radio would.
func (h *Hub) deliver(to hwaddr.Addr, frame link.Frame) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	target, ok := h.links[to]
	if !ok {
		return ErrUnreachable
	}

	select {
	case target.inbound <- frame:
		return nil
	default:
		return ErrUnreachable
	}
}

// broadcast fans a payload out to every attached link except the sender.
// Each receiver gets its own copy; frames are owned by their receiver.
func (h *Hub) broadcast(from hwaddr.Addr, payload []byte) {
	h.mu.Lock()
	defer h.mu.Unlock()

	for addr, target := range h.links {
		if addr == from {
			continue
		}
		select {
		case target.inbound <- link.Frame{From: from, Payload: clone(payload)}:
		default:
		}
	}
}

// detach removes a link from the hub and closes its inbound channel. Delivery
// and detach share the hub lock, so no send can race the close.
func (h *Hub) detach(addr hwaddr.Addr) {
	h.mu.Lock()
	defer h.mu.Unlock()

	l, ok := h.links[addr]
	if !ok {
		return
	}
	delete(h.links, addr)
	close(l.inbound)
}

var _ link.Link = (*Link)(nil)

// Link is one endpoint on a Hub.
type Link struct {
	hub     *Hub
	addr    hwaddr.Addr
	inbound chan link.Frame

	mu     sync.Mutex
	peers  map[hwaddr.Addr]bool
	closed bool
}

func (l *Link) AddPeer(addr hwaddr.Addr) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed {
		return link.ErrClosed
	}
	l.peers[addr] = true
	return nil
}

func (l *Link) RemovePeer(addr hwaddr.Addr) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.peers, addr)
	return nil
}

func (l *Link) Unicast(addr hwaddr.Addr, payload []byte) error {
	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		return link.ErrClosed
	}
	registered := l.peers[addr]
	l.mu.Unlock()

	if !registered {
		return link.ErrPeerNotRegistered
	}

	return l.hub.deliver(addr, link.Frame{From: l.addr, Payload: clone(payload)})
}

func (l *Link) Broadcast(payload []byte) error {
	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		return link.ErrClosed
	}
	l.mu.Unlock()

	l.hub.broadcast(l.addr, payload)
	return nil
}

func (l *Link) Inbound() <-chan link.Frame {
	return l.inbound
}

func (l *Link) LocalAddr() hwaddr.Addr {
	return l.addr
}

func (l *Link) Close() error {
	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		return nil
	}
	l.closed = true
	l.mu.Unlock()

	l.hub.detach(l.addr)
	return nil
}

func clone(payload []byte) []byte {
	out := make([]byte, len(payload))
	copy(out, payload)
	return out
}
