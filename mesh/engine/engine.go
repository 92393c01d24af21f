// Package engine implements the auto-peering protocol core: discovery,
// handshake, failure detection and payload dispatch for all node roles.
//
// The engine is single-threaded by contract. Run drives ticks and inbound
// frames from one goroutine, so Tick and Deliver never interleave and the
// registry needs no locks. Hosts that bring their own scheduler may call
// Tick, Deliver and HandleOutcome directly, from one logical thread only.
// The channel-based Send and Messages are the only concurrency-safe surface.
package engine

import (
	"context"
	"errors"
	"fmt"
	"time"

	"automesh/datamodel/peerbook"
	"automesh/helper/timer"
	"automesh/hwaddr"
	"automesh/net/link"

	log "github.com/sirupsen/logrus"
)

const (
	sendQueueDepth    = 256
	inboundQueueDepth = 64

	// bookFlushTicks is the cadence at which live last-seen times are flushed
	// to the peer book.
	bookFlushTicks = 60
)

const (
	DefaultMaxPeers         = 20
	DefaultFailureThreshold = 4
	DefaultTickInterval     = time.Second
	DefaultSendEveryTicks   = 5
)

var defaultHeartbeat = []byte("hi")

var ErrSendQueueFull = errors.New("engine: send queue full")
var ErrLinkClosed = errors.New("engine: link closed")

// Inbound is an application payload handed to the host via Messages.
type Inbound struct {
	From    hwaddr.Addr
	Payload []byte
}

type Config struct {
	Role Role

	// MaxPeers caps the registry. Inserting beyond it is a silent no-op.
	MaxPeers int

	// FailureThreshold is the number of consecutive send failures after which
	// a peer is evicted (or a worker gives up its controller).
	FailureThreshold int

	// TickInterval is the base protocol cadence; TickJitter desynchronizes
	// nodes that booted together. Jitter must stay below the interval.
	TickInterval time.Duration
	TickJitter   time.Duration

	// SendEveryTicks is the application send cadence, in ticks. Discovery
	// broadcasts ignore it and go out every tick.
	SendEveryTicks int

	// Heartbeat is sent on the application cadence when nothing is queued,
	// keeping the failure detector fed on quiet meshes.
	Heartbeat []byte

	// Metrics defaults to NopMetrics.
	Metrics Metrics

	// PeerBook, when set, records peer history for diagnostics and pruning.
	// It never seeds the registry.
	PeerBook peerbook.Store
}

func (c *Config) applyDefaults() {
	if c.MaxPeers == 0 {
		c.MaxPeers = DefaultMaxPeers
	}
	if c.FailureThreshold == 0 {
		c.FailureThreshold = DefaultFailureThreshold
	}
	if c.TickInterval == 0 {
		c.TickInterval = DefaultTickInterval
	}
	if c.SendEveryTicks == 0 {
		c.SendEveryTicks = DefaultSendEveryTicks
	}
	if c.Heartbeat == nil {
		c.Heartbeat = defaultHeartbeat
	}
	if c.Metrics == nil {
		c.Metrics = NopMetrics{}
	}
}

func (c *Config) Validate() error {
	switch c.Role {
	case RoleMesh, RoleController, RoleWorker:
	default:
		return fmt.Errorf("invalid role %d", int(c.Role))
	}
	if c.MaxPeers < 1 {
		return errors.New("max peers must be positive")
	}
	if c.FailureThreshold < 1 {
		return errors.New("failure threshold must be positive")
	}
	if c.TickInterval <= 0 {
		return errors.New("tick interval must be positive")
	}
	if c.TickJitter < 0 || c.TickJitter >= c.TickInterval {
		return errors.New("tick jitter must be shorter than the tick interval")
	}
	if c.SendEveryTicks < 1 {
		return errors.New("send cadence must be positive")
	}
	return nil
}

type Engine struct {
	cfg     Config
	link    link.Link
	reg     *Registry
	metrics Metrics
	book    peerbook.Store

	// Worker attachment; nil controller while disconnected.
	workerState WorkerState
	controller  *Peer

	tickCount uint64

	sendQ    chan []byte
	messages chan Inbound
}

func New(cfg Config, lnk link.Link) (*Engine, error) {
	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &Engine{
		cfg:      cfg,
		link:     lnk,
		reg:      NewRegistry(cfg.MaxPeers, lnk),
		metrics:  cfg.Metrics,
		book:     cfg.PeerBook,
		sendQ:    make(chan []byte, sendQueueDepth),
		messages: make(chan Inbound, inboundQueueDepth),
	}, nil
}

// Run drives the engine until the context is cancelled or the link closes.
// All protocol state is touched from this goroutine only.
func (e *Engine) Run(ctx context.Context) error {
	ticker := timer.NewTicker(&timer.Interval{
		Duration: e.cfg.TickInterval,
		Jitter:   e.cfg.TickJitter,
	})
	defer ticker.Stop()

	log.Infof("engine running: role=%s addr=%s peers<=%d threshold=%d",
		e.cfg.Role, e.link.LocalAddr(), e.cfg.MaxPeers, e.cfg.FailureThreshold)

	for {
		select {
		case <-ctx.Done():
			e.shutdown()
			return ctx.Err()
		case <-ticker.C:
			e.Tick()
		case frame, ok := <-e.link.Inbound():
			if !ok {
				e.shutdown()
				return ErrLinkClosed
			}
			e.Deliver(frame.From, frame.Payload)
		}
	}
}

// Send queues an application payload for the next send tick. It never blocks;
// a full queue returns ErrSendQueueFull.
func (e *Engine) Send(payload []byte) error {
	select {
	case e.sendQ <- payload:
		return nil
	default:
		return ErrSendQueueFull
	}
}

// Messages returns the inbound application payload channel. Slow consumers
// lose payloads rather than stalling the engine.
func (e *Engine) Messages() <-chan Inbound {
	return e.messages
}

// shutdown forgets every peer and unregisters their addresses, leaving the
// link clean for the next start.
func (e *Engine) shutdown() {
	if e.cfg.Role == RoleWorker {
		e.workerDetach("shutting down", false)
		return
	}

	if n := e.reg.Len(); n > 0 {
		log.Infof("forgetting %d peers on shutdown", n)
	}
	e.reg.Clear()
	e.metrics.SetPeerCount(0)
}
