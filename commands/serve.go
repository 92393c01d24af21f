package commands

import (
	"context"
	"errors"
	"net/http"
	"time"

	"automesh/config"
	"automesh/datastore/leveldb"
	"automesh/helper/timer"
	"automesh/mesh/engine"
	"automesh/metrics"
	"automesh/net/udplink"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

func RunServe(ctx context.Context, cfg *config.Config) {
	if err := cfg.Validate(); err != nil {
		log.Fatalf("Invalid config: %v", err)
	}

	role, err := engine.ParseRole(cfg.Node.Role)
	if err != nil {
		log.Fatalf("Invalid role: %v", err)
	}

	// Open the peer book
	book, err := leveldb.NewPeerBook(cfg.DataStore.PeerBookPath)
	if err != nil {
		log.Fatalf("Failed to open peer book: %v", err)
	}
	defer book.Close()

	// Bring up the link
	lnk, err := udplink.New(&udplink.Config{
		GroupAddress:  cfg.Network.GroupAddress,
		ListenAddress: cfg.Network.ListenAddress,
	})
	if err != nil {
		log.Fatalf("Failed to open link: %v", err)
	}
	defer lnk.Close()

	registry := prometheus.NewRegistry()
	m := metrics.New(metrics.DefaultNamespace, registry)

	ecfg := engine.Config{
		Role:             role,
		MaxPeers:         cfg.Mesh.MaxPeers,
		FailureThreshold: cfg.Mesh.FailureThreshold,
		TickInterval:     time.Duration(cfg.Mesh.TickMs) * time.Millisecond,
		TickJitter:       time.Duration(cfg.Mesh.TickJitterMs) * time.Millisecond,
		SendEveryTicks:   cfg.Mesh.SendEveryTicks,
		Metrics:          m,
		PeerBook:         book,
	}
	if cfg.Mesh.Heartbeat != "" {
		ecfg.Heartbeat = []byte(cfg.Mesh.Heartbeat)
	}

	eng, err := engine.New(ecfg, lnk)
	if err != nil {
		log.Fatalf("Failed to create engine: %v", err)
	}

	log.Infof("Node %s serving as %s", lnk.LocalAddr(), role)

	g, ctx := errgroup.WithContext(ctx)

	// Protocol loop
	g.Go(func() error {
		return eng.Run(ctx)
	})

	// Application payloads have nowhere to go in a standalone daemon, so log
	// them
	g.Go(func() error {
		for {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case msg := <-eng.Messages():
				log.Infof("Payload from %s: %q", msg.From, msg.Payload)
			}
		}
	})

	// Peer book pruning
	if cfg.DataStore.PruneAfterDays > 0 {
		maxAge := time.Duration(cfg.DataStore.PruneAfterDays) * 24 * time.Hour
		g.Go(func() error {
			return timer.RunWithTicker(ctx, &timer.Interval{Duration: time.Hour, Jitter: time.Minute}, func(context.Context) error {
				n, err := book.PruneBefore(time.Now().Add(-maxAge))
				if err != nil {
					log.Errorf("Peer book prune failed: %v", err)
					return nil
				}
				if n > 0 {
					log.Infof("Pruned %d stale peer book records", n)
				}
				return nil
			})
		})
	}

	// Metrics endpoint
	if cfg.Metrics.ListenAddress != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
		srv := &http.Server{Addr: cfg.Metrics.ListenAddress, Handler: mux}

		g.Go(func() error {
			log.Infof("Metrics on http://%s/metrics", cfg.Metrics.ListenAddress)
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		})
		g.Go(func() error {
			<-ctx.Done()
			sctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
			defer cancel()
			return srv.Shutdown(sctx)
		})
	}

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		log.Fatalf("Node stopped: %v", err)
	}
	log.Info("Node stopped")
}
