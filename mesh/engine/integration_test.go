package engine

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"automesh/hwaddr"
	"automesh/net/memlink"

	"golang.org/x/sync/errgroup"
)

// atomicMetrics lets the test goroutine observe engine progress without
// touching protocol state.
type atomicMetrics struct {
	added, evicted, broadcasts, unicasts, failed atomic.Int64
	truncated, dropped, wconn, wdisc             atomic.Int64
	peerCount                                    atomic.Int64
}

func (m *atomicMetrics) PeerAdded()          { m.added.Add(1) }
func (m *atomicMetrics) PeerEvicted()        { m.evicted.Add(1) }
func (m *atomicMetrics) BroadcastSent()      { m.broadcasts.Add(1) }
func (m *atomicMetrics) UnicastSent()        { m.unicasts.Add(1) }
func (m *atomicMetrics) SendFailed()         { m.failed.Add(1) }
func (m *atomicMetrics) PayloadTruncated()   { m.truncated.Add(1) }
func (m *atomicMetrics) MessageDropped()     { m.dropped.Add(1) }
func (m *atomicMetrics) WorkerConnected()    { m.wconn.Add(1) }
func (m *atomicMetrics) WorkerDisconnected() { m.wdisc.Add(1) }
func (m *atomicMetrics) SetPeerCount(n int)  { m.peerCount.Store(int64(n)) }

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.After(5 * time.Second)
	for !cond() {
		select {
		case <-deadline:
			t.Fatalf("timed out waiting for %s", what)
		case <-time.After(2 * time.Millisecond):
		}
	}
}

func attachHub(t *testing.T, hub *memlink.Hub, s string) *memlink.Link {
	t.Helper()
	l, err := hub.Attach(hwaddr.FromStringMustParse(s))
	if err != nil {
		t.Fatal(err)
	}
	return l
}

// Two mesh nodes on one hub must discover each other, stop announcing and
// exchange heartbeats.
func TestMeshNodesConverge(t *testing.T) {
	hub := memlink.NewHub()
	la := attachHub(t, hub, "0a:00:00:00:00:01")
	lb := attachHub(t, hub, "0a:00:00:00:00:02")

	cfg := Config{Role: RoleMesh, TickInterval: 5 * time.Millisecond, SendEveryTicks: 2}
	ea := newTestEngine(t, cfg, la)
	eb := newTestEngine(t, cfg, lb)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	wg, cctx := errgroup.WithContext(ctx)
	wg.Go(func() error { return ea.Run(cctx) })
	wg.Go(func() error { return eb.Run(cctx) })

	for _, e := range []*Engine{ea, eb} {
		select {
		case m := <-e.Messages():
			if string(m.Payload) != "hi" {
				t.Errorf("unexpected first payload: %q", m.Payload)
			}
		case <-time.After(5 * time.Second):
			t.Fatal("timed out waiting for a heartbeat")
		}
	}

	cancel()
	if err := wg.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		t.Fatal(err)
	}

	// Shutdown forgot the peers again
	if ea.reg.Len() != 0 || eb.reg.Len() != 0 {
		t.Fatalf("registries not cleared: %d, %d", ea.reg.Len(), eb.reg.Len())
	}
}

// A controller and two workers: both workers attach, traffic flows, and a
// vanished worker is evicted while the other stays attached.
func TestControllerWorkerLifecycle(t *testing.T) {
	hub := memlink.NewHub()
	lc := attachHub(t, hub, "0c:00:00:00:00:01")
	l1 := attachHub(t, hub, "0e:00:00:00:00:01")
	l2 := attachHub(t, hub, "0e:00:00:00:00:02")

	cm := &atomicMetrics{}
	w2m := &atomicMetrics{}

	cfg := Config{TickInterval: 5 * time.Millisecond, SendEveryTicks: 1, FailureThreshold: 4}

	ccfg := cfg
	ccfg.Role = RoleController
	ccfg.Metrics = cm
	controller := newTestEngine(t, ccfg, lc)

	w1cfg := cfg
	w1cfg.Role = RoleWorker
	w1 := newTestEngine(t, w1cfg, l1)

	w2cfg := cfg
	w2cfg.Role = RoleWorker
	w2cfg.Metrics = w2m
	w2 := newTestEngine(t, w2cfg, l2)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	w1ctx, w1cancel := context.WithCancel(ctx)
	defer w1cancel()

	done := make(chan error, 3)
	go func() { done <- controller.Run(ctx) }()
	go func() { done <- w2.Run(ctx) }()
	w1done := make(chan error, 1)
	go func() { w1done <- w1.Run(w1ctx) }()

	waitFor(t, "both workers to register", func() bool { return cm.added.Load() == 2 })

	// Worker traffic reaches the controller. Keep re-queueing the payload so
	// a drop under a slow scheduler cannot wedge the test.
	waitFor(t, "the worker payload", func() bool {
		w1.Send([]byte("job result 1"))
		for {
			select {
			case m := <-controller.Messages():
				if string(m.Payload) == "job result 1" && m.From == l1.LocalAddr() {
					return true
				}
			default:
				return false
			}
		}
	})

	// Take worker 1 down; the controller's probes must evict it
	w1cancel()
	if err := <-w1done; !errors.Is(err, context.Canceled) {
		t.Fatalf("worker run returned %v", err)
	}
	l1.Close()

	waitFor(t, "the dead worker's eviction", func() bool { return cm.evicted.Load() == 1 })

	if w2m.wdisc.Load() != 0 {
		t.Fatal("the surviving worker lost its controller")
	}

	cancel()
	for i := 0; i < 2; i++ {
		if err := <-done; !errors.Is(err, context.Canceled) {
			t.Fatalf("run returned %v", err)
		}
	}
}
