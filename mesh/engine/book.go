package engine

import (
	"time"

	"automesh/datamodel/peerbook"
	"automesh/hwaddr"

	log "github.com/sirupsen/logrus"
)

// Peer book updates are best-effort history keeping: a failing store logs a
// warning and the protocol carries on.

func (e *Engine) bookNote(addr hwaddr.Addr) {
	if e.book == nil {
		return
	}

	now := time.Now()
	rec, err := e.book.Get(addr)
	if err != nil {
		rec = &peerbook.Record{Addr: addr, FirstSeen: now}
	}
	rec.LastSeen = now

	if _, err := e.book.Put(rec); err != nil {
		log.Warnf("peer book update for %s failed: %v", addr, err)
	}
}

func (e *Engine) bookEvict(addr hwaddr.Addr) {
	if e.book == nil {
		return
	}

	now := time.Now()
	rec, err := e.book.Get(addr)
	if err != nil {
		rec = &peerbook.Record{Addr: addr, FirstSeen: now}
	}
	rec.LastSeen = now
	rec.Evictions++

	if _, err := e.book.Put(rec); err != nil {
		log.Warnf("peer book update for %s failed: %v", addr, err)
	}
}

// bookFlush writes the live last-seen times through. Runs on a slow cadence
// so the book lags the registry by at most bookFlushTicks ticks.
func (e *Engine) bookFlush() {
	if e.cfg.Role == RoleWorker {
		if e.workerState == WorkerConnected {
			e.bookTouch(e.controller)
		}
		return
	}

	for _, p := range e.reg.Peers() {
		e.bookTouch(p)
	}
}

func (e *Engine) bookTouch(p *Peer) {
	rec, err := e.book.Get(p.Addr)
	if err != nil {
		rec = &peerbook.Record{Addr: p.Addr, FirstSeen: p.LastSeen}
	}
	rec.LastSeen = p.LastSeen

	if _, err := e.book.Put(rec); err != nil {
		log.Warnf("peer book update for %s failed: %v", p.ID, err)
	}
}
