package leveldb

import (
	"time"

	"automesh/datamodel/peerbook"
	"automesh/hwaddr"

	"github.com/fxamacker/cbor/v2"
	"github.com/syndtr/goleveldb/leveldb"
	"github.com/syndtr/goleveldb/leveldb/util"

	log "github.com/sirupsen/logrus"
)

const (
	keyPrefixPeer = "PER" // Peer record indexed by address. Followed by textual address representation
)

var _ peerbook.Store = (*PeerBook)(nil)

type PeerBook struct {
	LevelDB
}

func NewPeerBook(path string) (*PeerBook, error) {
	// Init the underlying LevelDB object
	ldb, err := initLevelDb(path)
	if err != nil {
		return nil, err
	}

	return &PeerBook{
		LevelDB: LevelDB{
			path: path,
			db:   ldb,
		},
	}, nil
}

func (l *PeerBook) Get(addr hwaddr.Addr) (*peerbook.Record, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	// Fetch the record
	raw, err := l.db.Get(keyFromAddr(addr), nil)
	if err != nil {
		return nil, err
	}

	// Unmarshall CBOR
	rec := &peerbook.Record{}
	err = cbor.Unmarshal(raw, rec)
	if err != nil {
		return nil, err
	}

	// Compare the address just in case
	if rec.Addr != addr {
		log.Errorf("Get: address mismatch: %s != %s", addr.String(), rec.Addr.String())
		return nil, ErrCorrupted
	}

	return rec, nil
}

func (l *PeerBook) Put(rec *peerbook.Record) (*peerbook.Record, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	raw, err := cbor.Marshal(rec)
	if err != nil {
		return nil, err
	}

	// Insert
	err = l.db.Put(keyFromAddr(rec.Addr), raw, nil)
	if err != nil {
		return nil, err
	}

	return rec, nil
}

func (l *PeerBook) Enumerate() ([]*peerbook.Record, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	var results []*peerbook.Record

	// Create an iterator for the peer key range
	iter := l.db.NewIterator(util.BytesPrefix([]byte(keyPrefixPeer)), nil)
	defer iter.Release()

	// Iterate over the range and collect records
	for iter.Next() {
		raw := iter.Value()

		rec := &peerbook.Record{}
		err := cbor.Unmarshal(raw, rec)
		if err != nil {
			return nil, err
		}

		results = append(results, rec)
	}

	return results, iter.Error()
}

// PruneBefore removes records last seen before the cutoff in one batch write.
func (l *PeerBook) PruneBefore(cutoff time.Time) (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	batch := new(leveldb.Batch)

	iter := l.db.NewIterator(util.BytesPrefix([]byte(keyPrefixPeer)), nil)
	defer iter.Release()

	for iter.Next() {
		rec := &peerbook.Record{}
		if err := cbor.Unmarshal(iter.Value(), rec); err != nil {
			return 0, err
		}

		if rec.LastSeen.Before(cutoff) {
			key := make([]byte, len(iter.Key()))
			copy(key, iter.Key())
			batch.Delete(key)
		}
	}
	if err := iter.Error(); err != nil {
		return 0, err
	}

	if batch.Len() == 0 {
		return 0, nil
	}

	if err := l.db.Write(batch, nil); err != nil {
		return 0, err
	}

	return batch.Len(), nil
}
