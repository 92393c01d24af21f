package engine

import (
	"time"

	"automesh/hwaddr"
	"automesh/net/link"

	log "github.com/sirupsen/logrus"
)

// Peer is a live entry in the registry.
type Peer struct {
	ID       string // canonical textual form of Addr, fixed for the peer's lifetime
	Addr     hwaddr.Addr
	Failures int // consecutive failed sends since the last success
	LastSeen time.Time
}

// Registry is the bounded peer table. Entries keep insertion order, IDs are
// unique, and inserting into a full table is a silent no-op. Successful
// inserts register the address with the link, removals unregister it.
//
// Registry carries no locking: the engine goroutine is its only user.
type Registry struct {
	capacity int
	link     link.Link

	order []*Peer
	byID  map[string]*Peer
}

func NewRegistry(capacity int, l link.Link) *Registry {
	return &Registry{
		capacity: capacity,
		link:     l,
		byID:     make(map[string]*Peer),
	}
}

func (r *Registry) Find(id string) (*Peer, bool) {
	p, ok := r.byID[id]
	return p, ok
}

// Insert adds an address to the table. The second return reports whether a
// new entry was created: a known address returns its existing record
// untouched (in particular its failure count survives), a full table returns
// (nil, false). New records always start with zero failures, so a slot
// vacated by an eviction can never leak a stale count into its successor.
func (r *Registry) Insert(addr hwaddr.Addr) (*Peer, bool) {
	id := addr.String()

	if p, ok := r.byID[id]; ok {
		return p, false
	}

	if len(r.order) >= r.capacity {
		log.Debugf("registry full (%d peers), ignoring %s", len(r.order), id)
		return nil, false
	}

	if err := r.link.AddPeer(addr); err != nil {
		log.Warnf("failed to register %s with the link: %v", id, err)
		return nil, false
	}

	p := &Peer{
		ID:       id,
		Addr:     addr,
		LastSeen: time.Now(),
	}
	r.order = append(r.order, p)
	r.byID[id] = p

	return p, true
}

// Remove drops a peer and unregisters its address from the link. The order
// slice compacts immediately; no vacant slot survives the call.
func (r *Registry) Remove(id string) bool {
	p, ok := r.byID[id]
	if !ok {
		return false
	}

	delete(r.byID, id)
	for i, q := range r.order {
		if q == p {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}

	if err := r.link.RemovePeer(p.Addr); err != nil {
		log.Warnf("failed to unregister %s from the link: %v", id, err)
	}

	return true
}

// RecordFailure bumps the failure count and returns the new value. An unknown
// ID reports false and changes nothing, so a late outcome for an evicted peer
// cannot resurrect it.
func (r *Registry) RecordFailure(id string) (int, bool) {
	p, ok := r.byID[id]
	if !ok {
		return 0, false
	}
	p.Failures++
	return p.Failures, true
}

// ResetFailures zeroes the count. A single success forgives all prior
// failures.
func (r *Registry) ResetFailures(id string) {
	if p, ok := r.byID[id]; ok {
		p.Failures = 0
	}
}

// Touch refreshes the last-seen timestamp.
func (r *Registry) Touch(id string) {
	if p, ok := r.byID[id]; ok {
		p.LastSeen = time.Now()
	}
}

func (r *Registry) Len() int {
	return len(r.order)
}

// Peers returns a snapshot in insertion order. Callers may evict while
// iterating the snapshot.
func (r *Registry) Peers() []*Peer {
	out := make([]*Peer, len(r.order))
	copy(out, r.order)
	return out
}

// Clear empties the table and unregisters every address from the link.
func (r *Registry) Clear() {
	for _, p := range r.order {
		if err := r.link.RemovePeer(p.Addr); err != nil {
			log.Warnf("failed to unregister %s from the link: %v", p.ID, err)
		}
	}
	r.order = nil
	r.byID = make(map[string]*Peer)
}
