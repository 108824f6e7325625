package store

import (
	"context"
	"slices"

	"github.com/cockroachdb/pebble"
	pebblestore "github.com/flowcursor/broker/internal/storage/pebble"
)

// eventCursor streams events ascending by Number from a Pebble snapshot
// taken at construction time, so concurrent appends never appear mid-scan.
// Decoded events are buffered in chunks of batchSize to cap memory on long
// catch-up scans, mirroring the append-only log's batched row fetches.
type eventCursor struct {
	snapshot *pebble.Snapshot
	iter     *pebble.Iterator
	filter   EventFilter
	batch    int

	buf    []Event
	bufPos int
	done   bool
}

func newEventCursor(db *pebblestore.DB, filter EventFilter, batchSize int) (EventCursor, error) {
	if batchSize <= 0 {
		batchSize = defaultQueryBatchSize
	}
	snap := db.NewSnapshot()
	iter, err := snap.NewIter(&pebble.IterOptions{
		LowerBound: keyEventLowerBound(),
		UpperBound: keyEventUpperBound(),
	})
	if err != nil {
		snap.Close()
		return nil, err
	}
	c := &eventCursor{snapshot: snap, iter: iter, filter: filter, batch: batchSize}
	start := keyEvent(filter.From + 1)
	if !iter.SeekGE(start) {
		c.done = true
	}
	return c, nil
}

// Next returns the next event matching the filter, fetching and
// filtering a fresh batch from the underlying iterator as needed.
func (c *eventCursor) Next(ctx context.Context) (Event, bool, error) {
	for {
		if c.bufPos < len(c.buf) {
			ev := c.buf[c.bufPos]
			c.bufPos++
			return ev, true, nil
		}
		if c.done {
			return Event{}, false, nil
		}
		if err := c.fillBuffer(); err != nil {
			return Event{}, false, err
		}
		if len(c.buf) == 0 && c.done {
			return Event{}, false, nil
		}
	}
}

func (c *eventCursor) fillBuffer() error {
	c.buf = c.buf[:0]
	c.bufPos = 0
	for len(c.buf) < c.batch {
		if !c.iter.Valid() {
			c.done = true
			return c.iter.Error()
		}
		key := c.iter.Key()
		number := beUint64(key[len(evtPrefix):])
		dec, ok := decodeRecord(c.iter.Value())
		if !ok {
			if !c.iter.Next() {
				c.done = true
				return c.iter.Error()
			}
			continue
		}
		ev, ok := decodeEventHeader(number, dec.Header, dec.Payload)
		if ok && c.matches(ev) {
			c.buf = append(c.buf, ev)
		}
		if !c.iter.Next() {
			c.done = true
			return c.iter.Error()
		}
	}
	return nil
}

func (c *eventCursor) matches(ev Event) bool {
	if len(c.filter.Streams) > 0 && !slices.Contains(c.filter.Streams, ev.StreamID) {
		return false
	}
	if len(c.filter.Topics) > 0 && !slices.Contains(c.filter.Topics, ev.Topic) {
		return false
	}
	return true
}

func (c *eventCursor) Close() error {
	err := c.iter.Close()
	c.snapshot.Close()
	return err
}
