package broker

import (
	"context"
	"errors"
	"time"

	"github.com/flowcursor/broker/internal/store"
	"github.com/flowcursor/broker/pkg/log"
)

// StartKind selects how a first-time subscription resolves its initial
// position (§4.6). Ignored once a handle already has a durable position.
type StartKind int

const (
	// Current resolves to the store's index at subscribe time: only
	// events appended after this call are delivered.
	Current StartKind = iota
	// Genesis resolves to 0: every retained event is delivered.
	Genesis
	// Exact resolves to SubscribeOptions.At verbatim.
	Exact
)

// Sink receives events pushed to a subscription. An error return is
// treated as consumer-dead: the broker drops the subscription.
type Sink interface {
	Send(ctx context.Context, ev store.Event) error
}

// SinkFunc adapts a function to Sink.
type SinkFunc func(ctx context.Context, ev store.Event) error

func (f SinkFunc) Send(ctx context.Context, ev store.Event) error { return f(ctx, ev) }

// SubscribeOptions configures a new subscription. Filter, if non-empty,
// is a CEL expression compiled at subscribe time.
type SubscribeOptions struct {
	Start  StartKind
	At     uint64
	Topics []string
	Stream string
	// Track selects whether this subscription's acks are eligible to
	// advance the durable handle position (§4.5). Defaults to true when
	// nil; pass Bool(false) to opt a subscriber out of tracking.
	Track  *bool
	Filter string
}

// Bool returns a pointer to b, for populating SubscribeOptions.Track.
func Bool(b bool) *bool { return &b }

// Subscription is a read-only snapshot of a subscriber's state.
type Subscription struct {
	ID       string
	HandleID string
	Ack      uint64
	Syn      uint64
	Track    bool
	Stream   string
	Topics   []string
}

// Errors surfaced to callers.
var (
	// ErrBrokerNotFound is the lookup error for an unknown handle id.
	// No code in this module returns it: runtime.Runtime.Broker creates
	// a broker lazily on first use instead of failing the lookup.
	ErrBrokerNotFound = errors.New("broker: not found")
	// ErrInvalidFilter is returned by Subscribe when opts.Filter fails
	// to compile.
	ErrInvalidFilter = errors.New("broker: invalid filter expression")
	// ErrClosed is returned by calls made after the broker has shut
	// down.
	ErrClosed = errors.New("broker: closed")
	// ErrSubscribeTimeout is returned when a call could not be
	// delivered to the broker's mailbox within the configured timeout.
	ErrSubscribeTimeout = errors.New("broker: subscribe call timed out")
)

// Options configures a single Broker instance.
type Options struct {
	ID           string
	Store        store.Store
	CallTimeout  time.Duration
	CatchUpBatch int
	Logger       log.Logger
}
