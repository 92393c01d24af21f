package commands

import (
	"context"
	"time"

	"automesh/config"
	"automesh/datastore/leveldb"

	log "github.com/sirupsen/logrus"
)

func RunInfo(ctx context.Context, cfg *config.Config) {
	log.Infof("Role: %s", cfg.Node.Role)
	log.Infof("Group address: %s", cfg.Network.GroupAddress)
	log.Infof("Listen address: %s", cfg.Network.ListenAddress)

	book, err := leveldb.NewPeerBook(cfg.DataStore.PeerBookPath)
	if err != nil {
		log.Fatalf("Failed to open peer book: %v", err)
	}
	defer book.Close()

	records, err := book.Enumerate()
	if err != nil {
		log.Errorf("Failed to enumerate peer book: %v", err)
		return
	}

	log.Infof("Peer book: %d peers known", len(records))
	for _, rec := range records {
		log.Infof("Peer: %s, first seen: %v ago, last seen: %v ago, evictions: %d",
			rec.Addr.String(),
			time.Since(rec.FirstSeen).Round(time.Second),
			time.Since(rec.LastSeen).Round(time.Second),
			rec.Evictions)
	}
}
