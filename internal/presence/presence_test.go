package presence

import (
	"context"
	"testing"
	"time"

	pebblestore "github.com/flowcursor/broker/internal/storage/pebble"
)

func newTestDB(t *testing.T) *pebblestore.DB {
	t.Helper()
	dir := t.TempDir()
	db, err := pebblestore.Open(pebblestore.Options{DataDir: dir, Fsync: pebblestore.FsyncModeAlways})
	if err != nil {
		t.Fatalf("open pebble: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func TestTouchAndIsActive(t *testing.T) {
	db := newTestDB(t)
	r := New(db, time.Minute)
	ctx := context.Background()

	if r.IsActive("h1", "c1") {
		t.Fatalf("expected c1 inactive before first touch")
	}
	if _, err := r.Touch(ctx, "h1", "c1"); err != nil {
		t.Fatalf("touch: %v", err)
	}
	if !r.IsActive("h1", "c1") {
		t.Fatalf("expected c1 active after touch")
	}
}

func TestForgetRemovesEntry(t *testing.T) {
	db := newTestDB(t)
	r := New(db, time.Minute)
	ctx := context.Background()

	if _, err := r.Touch(ctx, "h1", "c1"); err != nil {
		t.Fatalf("touch: %v", err)
	}
	if err := r.Forget(ctx, "h1", "c1"); err != nil {
		t.Fatalf("forget: %v", err)
	}
	if r.IsActive("h1", "c1") {
		t.Fatalf("expected c1 inactive after forget")
	}
}

func TestExpiredAndSweep(t *testing.T) {
	db := newTestDB(t)
	r := New(db, time.Millisecond)
	ctx := context.Background()

	if _, err := r.Touch(ctx, "h1", "stale"); err != nil {
		t.Fatalf("touch stale: %v", err)
	}
	time.Sleep(5 * time.Millisecond)

	r2 := New(db, time.Minute)
	if _, err := r2.Touch(ctx, "h1", "fresh"); err != nil {
		t.Fatalf("touch fresh: %v", err)
	}

	expired, err := r.Expired("h1", 10)
	if err != nil {
		t.Fatalf("expired: %v", err)
	}
	if len(expired) != 1 || expired[0] != "stale" {
		t.Fatalf("expected only stale expired, got %v", expired)
	}

	removed, err := r.Sweep(ctx, "h1", 10)
	if err != nil {
		t.Fatalf("sweep: %v", err)
	}
	if removed != 1 {
		t.Fatalf("expected 1 removed, got %d", removed)
	}
	if r.IsActive("h1", "stale") {
		t.Fatalf("expected stale gone after sweep")
	}
	if !r.IsActive("h1", "fresh") {
		t.Fatalf("expected fresh still active after sweep")
	}
}
