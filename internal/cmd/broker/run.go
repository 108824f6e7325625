// Package broker (internal/cmd/broker) holds the "serve" command's
// implementation, split out from cmd/broker/main.go so it can be unit
// tested without invoking cobra.
package broker

import (
	"context"
	"fmt"
	"time"

	brokerpkg "github.com/flowcursor/broker/internal/broker"
	cfgpkg "github.com/flowcursor/broker/internal/config"
	"github.com/flowcursor/broker/internal/runtime"
	"github.com/flowcursor/broker/internal/store"
	logpkg "github.com/flowcursor/broker/pkg/log"
)

// Options configures a Run invocation.
type Options struct {
	Config cfgpkg.Config
	Logger logpkg.Logger
}

// Run opens a Runtime against Options.Config and drives a publish +
// subscribe + ack demo scenario to completion or until ctx is
// cancelled. It exercises the full Broker lifecycle without standing
// up any network transport (out of scope for this spec).
func Run(ctx context.Context, opts Options) error {
	logger := opts.Logger
	if logger == nil {
		logger = logpkg.NewLogger()
	}

	rt, err := runtime.Open(runtime.Options{Config: opts.Config, Logger: logger})
	if err != nil {
		return fmt.Errorf("open runtime: %w", err)
	}
	defer func() {
		if err := rt.Close(); err != nil {
			logger.Error("runtime close failed", logpkg.ErrField(err))
		}
	}()

	const handleID = "demo"

	received := make(chan store.Event, 8)
	sink := brokerpkg.SinkFunc(func(ctx context.Context, ev store.Event) error {
		received <- ev
		return nil
	})

	sub, err := rt.Subscribe(ctx, handleID, "demo-consumer", sink, brokerpkg.SubscribeOptions{
		Start: brokerpkg.Genesis,
	})
	if err != nil {
		return fmt.Errorf("subscribe: %w", err)
	}
	logger.Info("subscribed", logpkg.Str("consumer", sub.ID), logpkg.Str("handle", handleID))

	st := rt.Store()
	for i := 0; i < 3; i++ {
		ev, err := st.Append(ctx, "demo-stream", "demo.tick", "demo.tick", 0, []byte(fmt.Sprintf(`{"i":%d}`, i)))
		if err != nil {
			return fmt.Errorf("append: %w", err)
		}
		logger.Debug("published", logpkg.Uint64("number", ev.Number))
	}

	for i := 0; i < 3; i++ {
		select {
		case ev := <-received:
			if _, err := rt.Ack(ctx, handleID, "demo-consumer", ev.Number); err != nil {
				return fmt.Errorf("ack: %w", err)
			}
			logger.Info("delivered", logpkg.Uint64("number", ev.Number), logpkg.Str("type", ev.Type))
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(5 * time.Second):
			return fmt.Errorf("timed out waiting for delivery %d", i)
		}
	}

	logger.Info("demo scenario complete")
	return nil
}
