// Package udplink implements the link over UDP on a LAN. Broadcast maps to a
// multicast group, unicast to plain UDP datagrams. A link address packs the
// node's IPv4 address and unicast port into the 6-byte address form, so every
// frame source can be unicast back to directly.
package udplink

import (
	"encoding/binary"
	"fmt"
	"net"
	"sync"

	"automesh/hwaddr"
	"automesh/net/link"

	log "github.com/sirupsen/logrus"
)

const (
	inboundQueueDepth = 256
	readBufferBytes   = 256 * 1024
)

type Config struct {
	// GroupAddress is the multicast group carrying broadcasts, e.g.
	// "239.255.42.99:17999". All nodes of one mesh share it.
	GroupAddress string

	// ListenAddress is the local unicast address, e.g. "192.168.1.10:17998".
	// The IP must be a concrete IPv4 address: it becomes part of the node's
	// link address, so peers use it as the unicast target.
	ListenAddress string
}

// FromUDPAddr converts a socket address into the 6-byte link address form:
// four bytes of IPv4 followed by the big-endian port.
func FromUDPAddr(udp *net.UDPAddr) (hwaddr.Addr, error) {
	var a hwaddr.Addr

	ip4 := udp.IP.To4()
	if ip4 == nil {
		return a, fmt.Errorf("address %s is not IPv4", udp.IP)
	}

	copy(a[:4], ip4)
	binary.BigEndian.PutUint16(a[4:], uint16(udp.Port))
	return a, nil
}

// ToUDPAddr is the inverse of FromUDPAddr.
func ToUDPAddr(a hwaddr.Addr) *net.UDPAddr {
	return &net.UDPAddr{
		IP:   net.IPv4(a[0], a[1], a[2], a[3]),
		Port: int(binary.BigEndian.Uint16(a[4:])),
	}
}

var _ link.Link = (*Link)(nil)

type Link struct {
	local   hwaddr.Addr
	group   *net.UDPAddr
	uc      *net.UDPConn // unicast socket, also the broadcast sender
	rc      *net.UDPConn // multicast group listener
	inbound chan link.Frame

	mu     sync.Mutex
	peers  map[hwaddr.Addr]bool
	closed bool
}

// New opens the unicast socket and joins the multicast group. Broadcasts are
// written from the unicast socket so receivers see the sender's real link
// address as the datagram source.
func New(cfg *Config) (*Link, error) {
	group, err := net.ResolveUDPAddr("udp4", cfg.GroupAddress)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve group address: %w", err)
	}

	listen, err := net.ResolveUDPAddr("udp4", cfg.ListenAddress)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve listen address: %w", err)
	}
	if listen.IP == nil || listen.IP.IsUnspecified() || listen.IP.To4() == nil {
		return nil, fmt.Errorf("listen address %q must carry a concrete IPv4 address", cfg.ListenAddress)
	}

	uc, err := net.ListenUDP("udp4", listen)
	if err != nil {
		return nil, fmt.Errorf("failed to open unicast socket: %w", err)
	}

	rc, err := net.ListenMulticastUDP("udp4", nil, group)
	if err != nil {
		uc.Close()
		return nil, fmt.Errorf("failed to join multicast group: %w", err)
	}

	local, err := FromUDPAddr(uc.LocalAddr().(*net.UDPAddr))
	if err != nil {
		uc.Close()
		rc.Close()
		return nil, err
	}

	uc.SetReadBuffer(readBufferBytes)
	rc.SetReadBuffer(readBufferBytes)

	l := &Link{
		local:   local,
		group:   group,
		uc:      uc,
		rc:      rc,
		inbound: make(chan link.Frame, inboundQueueDepth),
		peers:   make(map[hwaddr.Addr]bool),
	}

	log.Infof("udplink: %s up, group %s", l.local, group)

	go l.readLoop(uc)
	go l.readLoop(rc)

	return l, nil
}

func (l *Link) readLoop(conn *net.UDPConn) {
	buf := make([]byte, 2048)
	for {
		n, raddr, err := conn.ReadFromUDP(buf)
		if err != nil {
			if l.isClosed() {
				return
			}
			log.Errorf("udplink: read failed: %v", err)
			continue
		}

		from, err := FromUDPAddr(raddr)
		if err != nil {
			log.Debugf("udplink: dropping frame from unmappable source %s", raddr)
			continue
		}
		if from == l.local {
			// Our own multicast loopback
			continue
		}

		payload := make([]byte, n)
		copy(payload, buf[:n])

		select {
		case l.inbound <- link.Frame{From: from, Payload: payload}:
		default:
			log.Warnf("udplink: inbound queue full, dropping %d bytes from %s", n, from)
		}
	}
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

// Unicast reports the local transmission outcome. UDP carries no delivery
// acknowledgement, so a nil error means the datagram left this host, nothing
// more; failure detection still works because sends to dead targets surface
// errors once the OS learns the route is gone, and because the peers keep
// re-announcing.
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

	_, err := l.uc.WriteToUDP(payload, ToUDPAddr(addr))
	return err
}

func (l *Link) Broadcast(payload []byte) error {
	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		return link.ErrClosed
	}
	l.mu.Unlock()

	_, err := l.uc.WriteToUDP(payload, l.group)
	return err
}

func (l *Link) Inbound() <-chan link.Frame {
	return l.inbound
}

func (l *Link) LocalAddr() hwaddr.Addr {
	return l.local
}

func (l *Link) isClosed() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.closed
}

func (l *Link) Close() error {
	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		return nil
	}
	l.closed = true
	l.mu.Unlock()

	err := l.uc.Close()
	if rerr := l.rc.Close(); err == nil {
		err = rerr
	}
	return err
}
