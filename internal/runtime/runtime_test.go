package runtime

import (
	"context"
	"testing"
	"time"

	"github.com/flowcursor/broker/internal/broker"
	cfgpkg "github.com/flowcursor/broker/internal/config"
	"github.com/flowcursor/broker/internal/store"
)

func newTestOptions(t *testing.T) Options {
	t.Helper()
	cfg := cfgpkg.Default()
	cfg.DataDir = t.TempDir()
	return Options{Config: cfg}
}

func TestOpenCloseHealth(t *testing.T) {
	rt, err := Open(newTestOptions(t))
	if err != nil {
		t.Fatalf("open runtime: %v", err)
	}
	defer rt.Close()
	if err := rt.CheckHealth(context.Background()); err != nil {
		t.Fatalf("health: %v", err)
	}
}

func TestBrokerLazyAndCached(t *testing.T) {
	rt, err := Open(newTestOptions(t))
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer rt.Close()

	ctx := context.Background()
	b1, err := rt.Broker(ctx, "orders")
	if err != nil {
		t.Fatalf("broker: %v", err)
	}
	b2, err := rt.Broker(ctx, "orders")
	if err != nil {
		t.Fatalf("broker again: %v", err)
	}
	if b1 != b2 {
		t.Fatalf("expected the same broker instance to be cached per handle id")
	}

	b3, err := rt.Broker(ctx, "jobs")
	if err != nil {
		t.Fatalf("broker jobs: %v", err)
	}
	if b3 == b1 {
		t.Fatalf("expected a distinct broker for a distinct handle id")
	}
}

func TestSubscribeAndAckTouchPresence(t *testing.T) {
	rt, err := Open(newTestOptions(t))
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer rt.Close()

	ctx := context.Background()
	sink := broker.SinkFunc(func(context.Context, store.Event) error { return nil })
	if _, err := rt.Subscribe(ctx, "orders", "c1", sink, broker.SubscribeOptions{Start: broker.Current}); err != nil {
		t.Fatalf("subscribe: %v", err)
	}
	if !rt.Presence().IsActive("orders", "c1") {
		t.Fatalf("expected presence touched on subscribe")
	}
}

// A consumer that stops heartbeating is dropped from its broker by the
// background presence sweep (§7 item 4), not just on a Sink.Send error.
func TestPresenceSweepDropsExpiredConsumer(t *testing.T) {
	cfg := cfgpkg.Default()
	cfg.DataDir = t.TempDir()
	cfg.PresenceTTL = 20 * time.Millisecond
	rt, err := Open(Options{Config: cfg})
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer rt.Close()

	ctx := context.Background()
	sink := broker.SinkFunc(func(context.Context, store.Event) error { return nil })
	if _, err := rt.Subscribe(ctx, "orders", "c1", sink, broker.SubscribeOptions{Start: broker.Current}); err != nil {
		t.Fatalf("subscribe: %v", err)
	}
	b, err := rt.Broker(ctx, "orders")
	if err != nil {
		t.Fatalf("broker: %v", err)
	}

	deadline := time.Now().Add(2 * time.Second)
	for {
		if _, ok, err := b.Subscription(ctx, "c1"); err == nil && !ok {
			return
		}
		if time.Now().After(deadline) {
			t.Fatalf("expired consumer was never dropped by the presence sweep")
		}
		time.Sleep(20 * time.Millisecond)
	}
}
