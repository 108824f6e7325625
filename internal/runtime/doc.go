// Package runtime wires storage, config, and a lazy broker-by-handle
// registry into a single-node instance. It is deliberately thin: it
// opens the Pebble-backed Store once and hands out a Broker per handle
// id on first use, without supervising restarts or load-balancing
// across nodes (out of scope for this spec).
//
// Example:
//
//	cfg := config.Default()
//	rt, _ := runtime.Open(runtime.Options{Config: cfg})
//	defer rt.Close()
//	b, _ := rt.Broker(context.Background(), "orders")
//	sub, _ := b.Subscribe(ctx, "worker-1", sink, broker.SubscribeOptions{Start: broker.Genesis})
package runtime
