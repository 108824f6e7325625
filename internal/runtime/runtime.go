package runtime

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/flowcursor/broker/internal/broker"
	cfgpkg "github.com/flowcursor/broker/internal/config"
	"github.com/flowcursor/broker/internal/presence"
	pebblestore "github.com/flowcursor/broker/internal/storage/pebble"
	"github.com/flowcursor/broker/internal/store"
	"github.com/flowcursor/broker/pkg/log"
)

// presenceSweepBatch bounds how many expired consumers are unsubscribed
// per handle on each sweep tick.
const presenceSweepBatch = 64

// Options configures a Runtime.
type Options struct {
	Config cfgpkg.Config
	Logger log.Logger
}

// Runtime wires storage, config, and a lazily-populated registry of
// per-handle Brokers for a single-node instance.
type Runtime struct {
	db       *pebblestore.DB
	store    store.Store
	presence *presence.Registry
	config   cfgpkg.Config
	logger   log.Logger

	mu      sync.Mutex
	brokers map[string]*broker.Broker

	sweepCancel context.CancelFunc
	sweepDone   chan struct{}
}

// Open initializes the underlying storage and returns a Runtime.
func Open(opts Options) (*Runtime, error) {
	cfg := opts.Config
	if cfg.DataDir == "" {
		cfg = cfgpkg.Default()
	}
	logger := opts.Logger
	if logger == nil {
		logger = log.NewLogger()
	}
	db, err := pebblestore.Open(pebblestore.Options{
		DataDir:       cfg.DataDir,
		Fsync:         cfg.Fsync,
		FsyncInterval: cfg.FsyncInterval,
	})
	if err != nil {
		return nil, err
	}
	st, err := store.Open(context.Background(), store.Options{
		DB:             db,
		QueryBatchSize: cfg.CatchUpBatchSize,
		Logger:         logger,
	})
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	sweepCtx, sweepCancel := context.WithCancel(context.Background())
	r := &Runtime{
		db:          db,
		store:       st,
		presence:    presence.New(db, cfg.PresenceTTL),
		config:      cfg,
		logger:      logger,
		brokers:     make(map[string]*broker.Broker),
		sweepCancel: sweepCancel,
		sweepDone:   make(chan struct{}),
	}
	go r.presenceSweepLoop(sweepCtx)
	return r, nil
}

// Close shuts down every broker this runtime has created, then closes
// the underlying storage.
func (r *Runtime) Close() error {
	r.sweepCancel()
	<-r.sweepDone

	r.mu.Lock()
	brokers := make([]*broker.Broker, 0, len(r.brokers))
	for _, b := range r.brokers {
		brokers = append(brokers, b)
	}
	r.brokers = make(map[string]*broker.Broker)
	r.mu.Unlock()

	ctx := context.Background()
	for _, b := range brokers {
		_ = b.Close(ctx)
	}
	if r.store != nil {
		if err := r.store.Close(); err != nil {
			return err
		}
	}
	if r.db == nil {
		return nil
	}
	return r.db.Close()
}

// CheckHealth performs a simple storage health check.
func (r *Runtime) CheckHealth(ctx context.Context) error {
	if r.db == nil {
		return errors.New("runtime: db not open")
	}
	it, err := r.db.NewIter(nil)
	if err != nil {
		return err
	}
	return it.Close()
}

// Broker returns the Broker for handleID, creating and caching it on
// first use (§1: a thin lazy registry, not a supervisor).
func (r *Runtime) Broker(ctx context.Context, handleID string) (*broker.Broker, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if b, ok := r.brokers[handleID]; ok {
		return b, nil
	}
	b, err := broker.New(ctx, broker.Options{
		ID:           handleID,
		Store:        r.store,
		CallTimeout:  r.config.SubscribeTimeout,
		CatchUpBatch: r.config.CatchUpBatchSize,
		Logger:       r.logger,
	})
	if err != nil {
		return nil, err
	}
	r.brokers[handleID] = b
	return b, nil
}

// Subscribe opens (or creates) handleID's Broker and subscribes
// consumerID, then touches the presence registry so the consumer counts
// as live until its next heartbeat (Subscribe or Ack) or its TTL lapses.
func (r *Runtime) Subscribe(ctx context.Context, handleID, consumerID string, sink broker.Sink, opts broker.SubscribeOptions) (broker.Subscription, error) {
	b, err := r.Broker(ctx, handleID)
	if err != nil {
		return broker.Subscription{}, err
	}
	sub, err := b.Subscribe(ctx, consumerID, sink, opts)
	if err != nil {
		return broker.Subscription{}, err
	}
	if _, err := r.presence.Touch(ctx, handleID, consumerID); err != nil {
		r.logger.Error("presence touch failed", log.Str("handle", handleID), log.Str("consumer", consumerID), log.ErrField(err))
	}
	return sub, nil
}

// Ack acknowledges delivery through handleID's Broker and refreshes
// consumerID's presence entry, since an ack is itself proof of life.
func (r *Runtime) Ack(ctx context.Context, handleID, consumerID string, number uint64) (uint64, error) {
	b, err := r.Broker(ctx, handleID)
	if err != nil {
		return 0, err
	}
	position, err := b.Ack(ctx, consumerID, number)
	if err != nil {
		return position, err
	}
	if _, err := r.presence.Touch(ctx, handleID, consumerID); err != nil {
		r.logger.Error("presence touch failed", log.Str("handle", handleID), log.Str("consumer", consumerID), log.ErrField(err))
	}
	return position, nil
}

// presenceSweepLoop periodically drops subscriptions whose consumers
// stopped heartbeating (§7 item 4), independent of the Sink.Send-error
// signal already handled inside the broker's dispatch loop.
func (r *Runtime) presenceSweepLoop(ctx context.Context) {
	defer close(r.sweepDone)
	interval := r.config.PresenceTTL
	if interval <= 0 {
		interval = 30 * time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.sweepExpiredConsumers(ctx)
		}
	}
}

func (r *Runtime) sweepExpiredConsumers(ctx context.Context) {
	r.mu.Lock()
	brokers := make(map[string]*broker.Broker, len(r.brokers))
	for id, b := range r.brokers {
		brokers[id] = b
	}
	r.mu.Unlock()

	for handleID, b := range brokers {
		expired, err := r.presence.Expired(handleID, presenceSweepBatch)
		if err != nil {
			r.logger.Error("presence expiry scan failed", log.Str("handle", handleID), log.ErrField(err))
			continue
		}
		for _, consumerID := range expired {
			if err := b.Unsubscribe(ctx, consumerID); err != nil {
				r.logger.Error("unsubscribe expired consumer failed", log.Str("handle", handleID), log.Str("consumer", consumerID), log.ErrField(err))
				continue
			}
			if err := r.presence.Forget(ctx, handleID, consumerID); err != nil {
				r.logger.Error("presence forget failed", log.Str("handle", handleID), log.Str("consumer", consumerID), log.ErrField(err))
				continue
			}
			r.logger.Info("dropped expired consumer", log.Str("handle", handleID), log.Str("consumer", consumerID))
		}
	}
}

// Store exposes the underlying event store (internal use only).
func (r *Runtime) Store() store.Store { return r.store }

// Presence exposes the consumer liveness registry.
func (r *Runtime) Presence() *presence.Registry { return r.presence }

// Config returns the runtime configuration.
func (r *Runtime) Config() cfgpkg.Config { return r.config }
