package peerbook

import (
	"reflect"
	"time"

	"automesh/hwaddr"
)

// Record is the persisted history of one peer. The book is advisory: it feeds
// diagnostics and pruning, never the live registry, so a stale book cannot
// resurrect a dead peer.
type Record struct {
	Addr      hwaddr.Addr `cbor:"1,keyasint"`           // Peer link address
	FirstSeen time.Time   `cbor:"2,keyasint,omitempty"` // First time we registered this peer
	LastSeen  time.Time   `cbor:"3,keyasint,omitempty"` // Last time we heard from this peer
	Evictions uint64      `cbor:"4,keyasint,omitempty"` // How often the failure detector removed it
}

// Store defines the interface for the persisted peer book.
type Store interface {
	// Get retrieves the record for a peer address. Callers treat any error as
	// "never seen"; absence is not distinguished from store failure.
	Get(addr hwaddr.Addr) (*Record, error)

	// Put stores or updates a peer record.
	// It returns the stored Record and an error if the operation fails.
	Put(*Record) (*Record, error)

	// Enumerate returns all records currently in the book.
	Enumerate() ([]*Record, error)

	// PruneBefore removes every record whose LastSeen lies before the cutoff
	// and reports how many were removed.
	PruneBefore(cutoff time.Time) (int, error)

	Close() error
}

func IsRecordEqual(a *Record, b *Record) bool {
	return reflect.DeepEqual(a, b)
}
