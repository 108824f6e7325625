package broker

import "context"

// durabilityCandidate decides whether an ack should advance the durable
// handle position (§4.5 step 6): only the subscription with the
// largest ack, if it is tracked, the acking subscriber, and ahead of
// the current position, qualifies.
func durabilityCandidate(s *subscriptionState, ackingID string, position uint64) bool {
	return s != nil && s.track && s.id == ackingID && s.ack > position
}

// persistPosition upserts the handle's durable position and, on
// success, updates the in-memory mirror. Errors are the caller's to
// surface.
func (b *Broker) persistPosition(ctx context.Context, position uint64) error {
	if _, err := b.store.UpsertHandle(ctx, b.id, position); err != nil {
		return err
	}
	b.position = position
	return nil
}

// resolveStart implements §4.6: a durable handle position always wins
// over the requested start; only an empty handle honors the request.
func (b *Broker) resolveStart(ctx context.Context, opts SubscribeOptions) (uint64, error) {
	if b.position > 0 {
		return b.position, nil
	}
	switch opts.Start {
	case Genesis:
		return 0, nil
	case Exact:
		return opts.At, nil
	default: // Current
		return b.store.Index(ctx)
	}
}
