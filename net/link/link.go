// Package link defines the contract between the protocol engine and the
// underlying connectionless broadcast medium.
package link

import (
	"errors"

	"automesh/hwaddr"
)

var ErrPeerNotRegistered = errors.New("peer not registered with the link")
var ErrClosed = errors.New("link closed")

// Frame is a single payload received from the medium. Payload is owned by the
// receiver; implementations must copy it out of any shared read buffer before
// handing it over.
type Frame struct {
	From    hwaddr.Addr
	Payload []byte
}

// Link abstracts the send/receive surface of the medium. Implementations are
// expected to be safe for concurrent use; the engine calls them from a single
// goroutine but hosts may not.
type Link interface {
	// AddPeer registers an address as a valid unicast target. Registering an
	// already-registered address is a no-op.
	AddPeer(addr hwaddr.Addr) error

	// RemovePeer drops an address from the unicast target set. Removing an
	// unknown address is a no-op.
	RemovePeer(addr hwaddr.Addr) error

	// Unicast sends a payload to a registered address and reports the outcome
	// of the transmission attempt. Sending to an unregistered address fails
	// with ErrPeerNotRegistered.
	Unicast(addr hwaddr.Addr, payload []byte) error

	// Broadcast sends a payload to every node in the broadcast domain,
	// registered or not.
	Broadcast(payload []byte) error

	// Inbound returns the frame delivery channel. The channel is closed when
	// the link shuts down.
	Inbound() <-chan Frame

	// LocalAddr returns the address this link sends from. Receivers use it to
	// filter their own broadcast loopback.
	LocalAddr() hwaddr.Addr

	Close() error
}
