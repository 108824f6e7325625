package store

import (
	"context"
	"sync"
	"time"

	pebblestore "github.com/flowcursor/broker/internal/storage/pebble"
	"github.com/flowcursor/broker/pkg/log"
)

const defaultQueryBatchSize = 10

// Options configures a pebble-backed Store.
type Options struct {
	DB *pebblestore.DB
	// QueryBatchSize bounds how many decoded events QueryEvents buffers
	// from the underlying iterator at a time, capping memory for long
	// catch-up scans. Defaults to 10 when unset, matching the catch-up
	// worker's per-fetch row bound.
	QueryBatchSize int
	Logger         log.Logger
}

type pebbleStore struct {
	db     *pebblestore.DB
	batch  int
	logger log.Logger

	mu       sync.Mutex
	lastNum  uint64
	notifyCh chan struct{}
}

// Open constructs a Store backed by an already-open Pebble database and
// recovers the last assigned event number from its index row.
func Open(ctx context.Context, opts Options) (Store, error) {
	batch := opts.QueryBatchSize
	if batch <= 0 {
		batch = defaultQueryBatchSize
	}
	logger := opts.Logger
	if logger == nil {
		logger = log.NewLogger()
	}
	s := &pebbleStore{
		db:       opts.DB,
		batch:    batch,
		logger:   logger.WithComponent("store"),
		notifyCh: make(chan struct{}),
	}
	if raw, err := s.db.Get(indexKey); err == nil && len(raw) == 8 {
		s.lastNum = beUint64(raw)
	}
	return s, nil
}

func (s *pebbleStore) Index(ctx context.Context) (uint64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastNum, nil
}

func (s *pebbleStore) Append(ctx context.Context, streamID, topic, typ string, position uint64, payload []byte) (Event, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	number := s.lastNum + 1
	ev := Event{Number: number, Position: position, StreamID: streamID, Topic: topic, Type: typ, Payload: payload}

	b := s.db.NewBatch()
	defer b.Close()

	header := encodeEventHeader(ev)
	if err := b.Set(keyEvent(number), encodeRecord(header, payload), nil); err != nil {
		return Event{}, err
	}
	idx := appendBE8(nil, number)
	if err := b.Set(indexKey, idx, nil); err != nil {
		return Event{}, err
	}
	if err := s.db.CommitBatch(ctx, b); err != nil {
		return Event{}, err
	}

	s.lastNum = number
	close(s.notifyCh)
	s.notifyCh = make(chan struct{})
	s.logger.Debug("event appended", log.Uint64("number", number), log.Str("stream", streamID), log.Str("topic", topic))
	return ev, nil
}

func (s *pebbleStore) GetHandle(ctx context.Context, id string) (Handle, bool, error) {
	raw, err := s.db.Get(keyHandle(id))
	if err != nil {
		return Handle{}, false, nil
	}
	position, updatedAtNano, ok := decodeHandle(raw)
	if !ok {
		return Handle{}, false, nil
	}
	return Handle{ID: id, Position: position, UpdatedAt: time.Unix(0, updatedAtNano)}, true, nil
}

func (s *pebbleStore) UpsertHandle(ctx context.Context, id string, position uint64) (Handle, error) {
	now := time.Now()
	if err := s.db.Set(keyHandle(id), encodeHandle(position, now.UnixNano())); err != nil {
		s.logger.Error("handle upsert failed", log.Str("handle", id), log.ErrField(err))
		return Handle{}, err
	}
	return Handle{ID: id, Position: position, UpdatedAt: now}, nil
}

func (s *pebbleStore) QueryEvents(ctx context.Context, filter EventFilter) (EventCursor, error) {
	return newEventCursor(s.db, filter, s.batch)
}

func (s *pebbleStore) NotifyNewEvent() <-chan struct{} {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.notifyCh
}

func (s *pebbleStore) Close() error {
	return nil
}

func beUint64(b []byte) uint64 {
	var v uint64
	for _, c := range b {
		v = v<<8 | uint64(c)
	}
	return v
}
