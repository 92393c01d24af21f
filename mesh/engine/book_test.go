package engine

import (
	"errors"
	"testing"
	"time"

	"automesh/datamodel/peerbook"
	"automesh/hwaddr"
)

// mapStore is an in-memory peerbook.Store for hook tests.
type mapStore struct {
	records map[hwaddr.Addr]*peerbook.Record
}

func newMapStore() *mapStore {
	return &mapStore{records: make(map[hwaddr.Addr]*peerbook.Record)}
}

func (s *mapStore) Get(addr hwaddr.Addr) (*peerbook.Record, error) {
	rec, ok := s.records[addr]
	if !ok {
		return nil, errors.New("not found")
	}
	cp := *rec
	return &cp, nil
}

func (s *mapStore) Put(rec *peerbook.Record) (*peerbook.Record, error) {
	cp := *rec
	s.records[rec.Addr] = &cp
	return rec, nil
}

func (s *mapStore) Enumerate() ([]*peerbook.Record, error) {
	out := make([]*peerbook.Record, 0, len(s.records))
	for _, rec := range s.records {
		cp := *rec
		out = append(out, &cp)
	}
	return out, nil
}

func (s *mapStore) PruneBefore(cutoff time.Time) (int, error) {
	n := 0
	for addr, rec := range s.records {
		if rec.LastSeen.Before(cutoff) {
			delete(s.records, addr)
			n++
		}
	}
	return n, nil
}

func (s *mapStore) Close() error { return nil }

func TestBookRecordsDiscoveries(t *testing.T) {
	store := newMapStore()
	l := newFakeLink("0a:00:00:00:00:01")
	e := newTestEngine(t, Config{Role: RoleMesh, PeerBook: store}, l)

	e.Deliver(addr(2), []byte("PEER:"))

	rec, ok := store.records[addr(2)]
	if !ok {
		t.Fatal("discovery not recorded in the book")
	}
	if rec.FirstSeen.IsZero() || rec.LastSeen.IsZero() {
		t.Fatalf("timestamps missing: %+v", rec)
	}
	if rec.Evictions != 0 {
		t.Fatalf("fresh record carries %d evictions", rec.Evictions)
	}
}

func TestBookCountsEvictions(t *testing.T) {
	store := newMapStore()
	l := newFakeLink("0a:00:00:00:00:01")
	e := newTestEngine(t, Config{Role: RoleMesh, SendEveryTicks: 1, FailureThreshold: 2, PeerBook: store}, l)

	e.Deliver(addr(2), []byte("PEER:"))
	first := store.records[addr(2)].FirstSeen

	l.failTo[addr(2)] = errors.New("gone")
	e.Tick()
	e.Tick()

	rec := store.records[addr(2)]
	if rec.Evictions != 1 {
		t.Fatalf("eviction count %d, want 1", rec.Evictions)
	}
	if !rec.FirstSeen.Equal(first) {
		t.Fatal("eviction rewrote the first-seen time")
	}

	// The peer comes back and dies again
	e.Deliver(addr(2), []byte("PEER:"))
	e.Tick()
	e.Tick()
	if got := store.records[addr(2)].Evictions; got != 2 {
		t.Fatalf("eviction count %d, want 2", got)
	}
}

func TestBookFlushRefreshesLastSeen(t *testing.T) {
	store := newMapStore()
	l := newFakeLink("0a:00:00:00:00:01")
	e := newTestEngine(t, Config{Role: RoleMesh, SendEveryTicks: 1, PeerBook: store}, l)

	e.Deliver(addr(2), []byte("PEER:"))
	stale := time.Now().Add(-time.Hour)
	store.records[addr(2)].LastSeen = stale

	for i := 0; i < bookFlushTicks; i++ {
		e.Tick()
	}

	if got := store.records[addr(2)].LastSeen; !got.After(stale) {
		t.Fatalf("flush did not refresh last-seen: %v", got)
	}
}

func TestBookRecordsWorkerController(t *testing.T) {
	store := newMapStore()
	l := newFakeLink("0a:00:00:00:00:01")
	e := newTestEngine(t, Config{Role: RoleWorker, SendEveryTicks: 1, FailureThreshold: 2, PeerBook: store}, l)

	e.Deliver(addr(9), []byte("ACK:"))
	if _, ok := store.records[addr(9)]; !ok {
		t.Fatal("controller attachment not recorded")
	}

	l.failTo[addr(9)] = errors.New("gone")
	e.Tick()
	e.Tick()
	if got := store.records[addr(9)].Evictions; got != 1 {
		t.Fatalf("controller eviction count %d, want 1", got)
	}
}
