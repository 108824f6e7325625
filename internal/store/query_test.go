package store

import (
	"context"
	"testing"
)

func drain(t *testing.T, c EventCursor) []Event {
	t.Helper()
	ctx := context.Background()
	var out []Event
	for {
		ev, ok, err := c.Next(ctx)
		if err != nil {
			t.Fatalf("next: %v", err)
		}
		if !ok {
			break
		}
		out = append(out, ev)
	}
	if err := c.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	return out
}

func TestQueryEventsAscendingFromZero(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	for i, topic := range []string{"A", "B", "A", "C", "A"} {
		if _, err := s.Append(ctx, "s1", topic, "t", uint64(i+1), nil); err != nil {
			t.Fatalf("append: %v", err)
		}
	}
	c, err := s.QueryEvents(ctx, EventFilter{})
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	events := drain(t, c)
	if len(events) != 5 {
		t.Fatalf("expected 5 events, got %d", len(events))
	}
	for i, ev := range events {
		if ev.Number != uint64(i+1) {
			t.Fatalf("expected ascending numbers, got %v", events)
		}
	}
}

func TestQueryEventsTopicFilter(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	for _, topic := range []string{"A", "B", "A", "C", "A"} {
		if _, err := s.Append(ctx, "s1", topic, "t", 0, nil); err != nil {
			t.Fatalf("append: %v", err)
		}
	}
	c, err := s.QueryEvents(ctx, EventFilter{Topics: []string{"A"}})
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	events := drain(t, c)
	want := []uint64{1, 3, 5}
	if len(events) != len(want) {
		t.Fatalf("expected %d events, got %d", len(want), len(events))
	}
	for i, ev := range events {
		if ev.Number != want[i] {
			t.Fatalf("expected numbers %v, got %v", want, events)
		}
	}
}

func TestQueryEventsStreamScope(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	streams := []string{"X", "Y", "X"}
	for _, st := range streams {
		if _, err := s.Append(ctx, st, "A", "t", 0, nil); err != nil {
			t.Fatalf("append: %v", err)
		}
	}
	c, err := s.QueryEvents(ctx, EventFilter{Streams: []string{"X"}})
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	events := drain(t, c)
	want := []uint64{1, 3}
	if len(events) != len(want) {
		t.Fatalf("expected %d events, got %d", len(want), len(events))
	}
	for i, ev := range events {
		if ev.Number != want[i] {
			t.Fatalf("expected numbers %v, got %v", want, events)
		}
	}
}

func TestQueryEventsFromExclusive(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	for i := 0; i < 5; i++ {
		if _, err := s.Append(ctx, "s1", "A", "t", 0, nil); err != nil {
			t.Fatalf("append: %v", err)
		}
	}
	c, err := s.QueryEvents(ctx, EventFilter{From: 3})
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	events := drain(t, c)
	if len(events) != 2 || events[0].Number != 4 || events[1].Number != 5 {
		t.Fatalf("expected events 4,5, got %v", events)
	}
}

func TestQueryEventsBatchBoundaryCrossesCorrectly(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	// QueryEvents batches internally in groups of the configured size;
	// exceed the default (10) to ensure the cursor refills correctly.
	for i := 0; i < 25; i++ {
		if _, err := s.Append(ctx, "s1", "A", "t", 0, nil); err != nil {
			t.Fatalf("append: %v", err)
		}
	}
	c, err := s.QueryEvents(ctx, EventFilter{})
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	events := drain(t, c)
	if len(events) != 25 {
		t.Fatalf("expected 25 events, got %d", len(events))
	}
	for i, ev := range events {
		if ev.Number != uint64(i+1) {
			t.Fatalf("expected ascending numbers at %d, got %d", i, ev.Number)
		}
	}
}
