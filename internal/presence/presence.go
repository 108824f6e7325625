// Package presence tracks consumer liveness for a broker handle via a
// TTL-backed index, letting a supervisor detect and drop consumers
// that stopped heartbeating instead of relying solely on Sink.Send
// failures (§7 item 4).
package presence

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/cockroachdb/pebble"
	pebblestore "github.com/flowcursor/broker/internal/storage/pebble"
)

const defaultTTL = 30 * time.Second

// Entry is a registered consumer's liveness record.
type Entry struct {
	HandleID   string `json:"handleId"`
	ConsumerID string `json:"consumerId"`
	ExpiresAt  int64  `json:"expiresAt"`
}

// Registry tracks consumer presence for every handle in a single
// Pebble database, keyed so expiry scans stay sorted and cheap.
type Registry struct {
	db  *pebblestore.DB
	ttl time.Duration
}

// New constructs a Registry. ttl <= 0 uses a 30s default.
func New(db *pebblestore.DB, ttl time.Duration) *Registry {
	if ttl <= 0 {
		ttl = defaultTTL
	}
	return &Registry{db: db, ttl: ttl}
}

// Touch registers or refreshes a consumer's liveness, returning its new
// expiry time.
func (r *Registry) Touch(ctx context.Context, handleID, consumerID string) (time.Time, error) {
	now := time.Now()
	expiresAt := now.Add(r.ttl).UnixMilli()

	key := entryKey(handleID, consumerID)
	if existing, err := r.db.Get(key); err == nil {
		var old Entry
		if json.Unmarshal(existing, &old) == nil && old.ExpiresAt != expiresAt {
			_ = r.db.Delete(indexKey(old.ExpiresAt, handleID, consumerID))
		}
	}

	entry := Entry{HandleID: handleID, ConsumerID: consumerID, ExpiresAt: expiresAt}
	data, err := json.Marshal(entry)
	if err != nil {
		return time.Time{}, fmt.Errorf("presence: marshal entry: %w", err)
	}

	b := r.db.NewBatch()
	defer b.Close()
	if err := b.Set(key, data, nil); err != nil {
		return time.Time{}, err
	}
	if err := b.Set(indexKey(expiresAt, handleID, consumerID), []byte(consumerID), nil); err != nil {
		return time.Time{}, err
	}
	if err := r.db.CommitBatch(ctx, b); err != nil {
		return time.Time{}, fmt.Errorf("presence: commit touch: %w", err)
	}
	return time.UnixMilli(expiresAt), nil
}

// Forget removes a consumer's liveness record, e.g. on a clean
// unsubscribe.
func (r *Registry) Forget(ctx context.Context, handleID, consumerID string) error {
	key := entryKey(handleID, consumerID)
	existing, err := r.db.Get(key)
	if err != nil {
		if errors.Is(err, pebble.ErrNotFound) {
			return nil
		}
		return err
	}
	var entry Entry
	if err := json.Unmarshal(existing, &entry); err != nil {
		return fmt.Errorf("presence: unmarshal entry: %w", err)
	}
	b := r.db.NewBatch()
	defer b.Close()
	if err := b.Delete(key, nil); err != nil {
		return err
	}
	if err := b.Delete(indexKey(entry.ExpiresAt, handleID, consumerID), nil); err != nil {
		return err
	}
	return r.db.CommitBatch(ctx, b)
}

// IsActive reports whether consumerID has a live, unexpired entry.
func (r *Registry) IsActive(handleID, consumerID string) bool {
	data, err := r.db.Get(entryKey(handleID, consumerID))
	if err != nil {
		return false
	}
	var entry Entry
	if json.Unmarshal(data, &entry) != nil {
		return false
	}
	return entry.ExpiresAt > time.Now().UnixMilli()
}

// Expired returns up to limit consumer ids for handleID whose entries
// have passed their TTL, in ascending expiry order.
func (r *Registry) Expired(handleID string, limit int) ([]string, error) {
	prefix := indexPrefix(handleID)
	upper := append(append([]byte(nil), prefix...), 0xff)
	iter, err := r.db.NewIter(&pebble.IterOptions{LowerBound: prefix, UpperBound: upper})
	if err != nil {
		return nil, fmt.Errorf("presence: new iterator: %w", err)
	}
	defer iter.Close()

	now := time.Now().UnixMilli()
	var ids []string
	for iter.First(); iter.Valid() && len(ids) < limit; iter.Next() {
		key := iter.Key()
		if len(key) < len(prefix)+8 {
			continue
		}
		expiresAt := int64(binary.BigEndian.Uint64(key[len(prefix) : len(prefix)+8]))
		if expiresAt > now {
			break
		}
		ids = append(ids, string(key[len(prefix)+8:]))
	}
	return ids, nil
}

// Sweep forgets every expired entry for handleID and returns how many
// were removed. Intended to be called periodically by a supervisor.
func (r *Registry) Sweep(ctx context.Context, handleID string, limit int) (int, error) {
	expired, err := r.Expired(handleID, limit)
	if err != nil {
		return 0, err
	}
	removed := 0
	for _, consumerID := range expired {
		if err := r.Forget(ctx, handleID, consumerID); err != nil {
			continue
		}
		removed++
	}
	return removed, nil
}
