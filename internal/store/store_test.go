package store

import (
	"context"
	"testing"
	"time"

	pebblestore "github.com/flowcursor/broker/internal/storage/pebble"
)

func newTestStore(t *testing.T) Store {
	t.Helper()
	dir := t.TempDir()
	db, err := pebblestore.Open(pebblestore.Options{DataDir: dir, Fsync: pebblestore.FsyncModeAlways})
	if err != nil {
		t.Fatalf("open pebble: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	s, err := Open(context.Background(), Options{DB: db})
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	return s
}

func TestAppendAssignsSequentialNumbers(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	e1, err := s.Append(ctx, "s1", "A", "widget.created", 1, []byte("p1"))
	if err != nil {
		t.Fatalf("append: %v", err)
	}
	e2, err := s.Append(ctx, "s1", "A", "widget.created", 2, []byte("p2"))
	if err != nil {
		t.Fatalf("append: %v", err)
	}
	if e1.Number != 1 || e2.Number != 2 {
		t.Fatalf("expected sequential numbers, got %d, %d", e1.Number, e2.Number)
	}
	idx, err := s.Index(ctx)
	if err != nil || idx != 2 {
		t.Fatalf("index = %d, err = %v", idx, err)
	}
}

func TestAppendDurableAcrossReopen(t *testing.T) {
	dir := t.TempDir()
	db, err := pebblestore.Open(pebblestore.Options{DataDir: dir, Fsync: pebblestore.FsyncModeAlways})
	if err != nil {
		t.Fatalf("open pebble: %v", err)
	}
	ctx := context.Background()
	s, err := Open(ctx, Options{DB: db})
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	if _, err := s.Append(ctx, "s1", "A", "t", 1, []byte("x")); err != nil {
		t.Fatalf("append: %v", err)
	}
	if err := db.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	db2, err := pebblestore.Open(pebblestore.Options{DataDir: dir, Fsync: pebblestore.FsyncModeAlways})
	if err != nil {
		t.Fatalf("reopen pebble: %v", err)
	}
	t.Cleanup(func() { _ = db2.Close() })
	s2, err := Open(ctx, Options{DB: db2})
	if err != nil {
		t.Fatalf("open store2: %v", err)
	}
	ev, err := s2.Append(ctx, "s1", "A", "t", 2, []byte("y"))
	if err != nil {
		t.Fatalf("append2: %v", err)
	}
	if ev.Number != 2 {
		t.Fatalf("expected number to resume at 2, got %d", ev.Number)
	}
}

func TestHandleUpsertAndGet(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	if _, ok, err := s.GetHandle(ctx, "h1"); ok || err != nil {
		t.Fatalf("expected no handle yet, ok=%v err=%v", ok, err)
	}

	if _, err := s.UpsertHandle(ctx, "h1", 5); err != nil {
		t.Fatalf("upsert: %v", err)
	}
	h, ok, err := s.GetHandle(ctx, "h1")
	if err != nil || !ok {
		t.Fatalf("expected handle, ok=%v err=%v", ok, err)
	}
	if h.Position != 5 {
		t.Fatalf("expected position 5, got %d", h.Position)
	}

	if _, err := s.UpsertHandle(ctx, "h1", 9); err != nil {
		t.Fatalf("upsert2: %v", err)
	}
	h, _, _ = s.GetHandle(ctx, "h1")
	if h.Position != 9 {
		t.Fatalf("expected position 9 after update, got %d", h.Position)
	}
}

func TestNotifyNewEventWakesOnAppend(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	ch := s.NotifyNewEvent()

	if _, err := s.Append(ctx, "s1", "A", "t", 1, []byte("x")); err != nil {
		t.Fatalf("append: %v", err)
	}

	select {
	case <-ch:
	case <-time.After(time.Second):
		t.Fatalf("notification channel never closed")
	}
}
