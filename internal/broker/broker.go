package broker

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/flowcursor/broker/internal/store"
	"github.com/flowcursor/broker/pkg/log"
)

const defaultCallTimeout = 5 * time.Second

type subscribeReq struct {
	consumerID string
	sink       Sink
	opts       SubscribeOptions
	reply      chan subscribeReply
}

type subscribeReply struct {
	sub Subscription
	err error
}

type unsubscribeReq struct {
	consumerID string
	reply      chan bool
}

type ackReq struct {
	consumerID string
	number     uint64
	reply      chan ackReply
}

type ackReply struct {
	position uint64
	err      error
}

type subscriptionReq struct {
	consumerID string
	reply      chan subscriptionReply
}

type subscriptionReply struct {
	sub Subscription
	ok  bool
}

type stateReq struct {
	field string
	reply chan any
}

type liveTailSignal struct{ gen uint64 }

// Broker is a single-threaded actor owning one handle's subscription
// table, durable cursor, overflow buffer, and at most one catch-up
// worker (§2, §5). All state below this comment is only ever touched
// from the run goroutine.
type Broker struct {
	id          string
	store       store.Store
	logger      log.Logger
	callTimeout time.Duration

	subscribeCh    chan *subscribeReq
	unsubscribeCh  chan *unsubscribeReq
	ackCh          chan *ackReq
	subscriptionCh chan *subscriptionReq
	stateCh        chan *stateReq
	closeCh        chan chan struct{}

	pushCh     chan workerPush
	doneCh     chan workerDone
	liveTailCh chan liveTailSignal

	ctx       context.Context
	cancel    context.CancelFunc
	stoppedCh chan struct{}

	subs    *subscriptionTable
	streams []string
	topics  []string
	buffer  []store.Event
	worker  *catchUpWorker
	gen     uint64
	ready   bool

	position         uint64
	workerStartIndex uint64
	horizon          uint64
}

// New constructs a Broker for a single handle id, loading its durable
// position (if any) and starting the run loop. The broker begins with
// no subscriptions and no worker; the first Subscribe call arms one.
func New(ctx context.Context, opts Options) (*Broker, error) {
	if opts.Store == nil {
		return nil, errors.New("broker: Options.Store is required")
	}
	if opts.ID == "" {
		return nil, errors.New("broker: Options.ID is required")
	}
	timeout := opts.CallTimeout
	if timeout <= 0 {
		timeout = defaultCallTimeout
	}
	logger := opts.Logger
	if logger == nil {
		logger = log.NewLogger()
	}
	h, ok, err := opts.Store.GetHandle(ctx, opts.ID)
	if err != nil {
		return nil, err
	}
	var position uint64
	if ok {
		position = h.Position
	}

	bctx, cancel := context.WithCancel(context.Background())
	b := &Broker{
		id:             opts.ID,
		store:          opts.Store,
		logger:         logger.WithComponent("broker").With(log.Str("handle", opts.ID)),
		callTimeout:    timeout,
		subscribeCh:    make(chan *subscribeReq),
		unsubscribeCh:  make(chan *unsubscribeReq),
		ackCh:          make(chan *ackReq),
		subscriptionCh: make(chan *subscriptionReq),
		stateCh:        make(chan *stateReq),
		closeCh:        make(chan chan struct{}),
		pushCh:         make(chan workerPush, 1),
		doneCh:         make(chan workerDone, 1),
		liveTailCh:     make(chan liveTailSignal, 1),
		ctx:            bctx,
		cancel:         cancel,
		stoppedCh:      make(chan struct{}),
		subs:           newSubscriptionTable(),
		ready:          true,
		position:       position,
	}
	go b.run()
	return b, nil
}

func (b *Broker) run() {
	defer close(b.stoppedCh)
	for {
		select {
		case req := <-b.subscribeCh:
			b.handleSubscribe(b.ctx, req)
		case req := <-b.unsubscribeCh:
			b.handleUnsubscribe(b.ctx, req)
		case req := <-b.ackCh:
			b.handleAck(b.ctx, req)
		case req := <-b.subscriptionCh:
			b.handleSubscriptionQuery(req)
		case req := <-b.stateCh:
			b.handleState(req)
		case msg := <-b.pushCh:
			b.handleWorkerPush(b.ctx, msg)
		case msg := <-b.doneCh:
			b.handleWorkerDone(b.ctx, msg)
		case msg := <-b.liveTailCh:
			b.handleLiveTailSignal(b.ctx, msg)
		case reply := <-b.closeCh:
			if b.worker != nil {
				b.worker.stop()
			}
			b.cancel()
			close(reply)
			return
		}
	}
}

// -- External API --------------------------------------------------

// Subscribe registers a new subscription, or returns the existing one
// unchanged if consumerID is already subscribed (§4.1, idempotent).
func (b *Broker) Subscribe(ctx context.Context, consumerID string, sink Sink, opts SubscribeOptions) (Subscription, error) {
	reply := make(chan subscribeReply, 1)
	req := &subscribeReq{consumerID: consumerID, sink: sink, opts: opts, reply: reply}
	if err := sendReq(b, ctx, b.subscribeCh, req); err != nil {
		return Subscription{}, err
	}
	r := <-reply
	return r.sub, r.err
}

// Unsubscribe removes a subscription, if present.
func (b *Broker) Unsubscribe(ctx context.Context, consumerID string) error {
	reply := make(chan bool, 1)
	req := &unsubscribeReq{consumerID: consumerID, reply: reply}
	if err := sendReq(b, ctx, b.unsubscribeCh, req); err != nil {
		return err
	}
	<-reply
	return nil
}

// Ack acknowledges delivery of number for consumerID, advancing the
// durable handle position when §4.5's durability gate holds. Unlike
// Subscribe/Unsubscribe, the caller's ctx is honored but no internal
// mailbox timeout is imposed.
func (b *Broker) Ack(ctx context.Context, consumerID string, number uint64) (uint64, error) {
	reply := make(chan ackReply, 1)
	req := &ackReq{consumerID: consumerID, number: number, reply: reply}
	select {
	case b.ackCh <- req:
	case <-ctx.Done():
		return 0, ctx.Err()
	case <-b.ctx.Done():
		return 0, ErrClosed
	}
	r := <-reply
	return r.position, r.err
}

// Subscription returns a read-only snapshot of consumerID's state.
func (b *Broker) Subscription(ctx context.Context, consumerID string) (Subscription, bool, error) {
	reply := make(chan subscriptionReply, 1)
	req := &subscriptionReq{consumerID: consumerID, reply: reply}
	if err := sendReq(b, ctx, b.subscriptionCh, req); err != nil {
		return Subscription{}, false, err
	}
	r := <-reply
	return r.sub, r.ok, nil
}

// State returns introspection data for one of: "ready", "position",
// "mode", "bufferLen", "subscriberCount".
func (b *Broker) State(ctx context.Context, field string) (any, error) {
	reply := make(chan any, 1)
	req := &stateReq{field: field, reply: reply}
	if err := sendReq(b, ctx, b.stateCh, req); err != nil {
		return nil, err
	}
	return <-reply, nil
}

// Close stops the run loop and any in-flight worker.
func (b *Broker) Close(ctx context.Context) error {
	reply := make(chan struct{})
	select {
	case b.closeCh <- reply:
	case <-ctx.Done():
		return ctx.Err()
	case <-b.stoppedCh:
		return nil
	}
	select {
	case <-reply:
	case <-b.stoppedCh:
	}
	return nil
}

// sendReq enqueues req on ch, bounded by the broker's configured call
// timeout (§5).
func sendReq[T any](b *Broker, ctx context.Context, ch chan T, req T) error {
	timer := time.NewTimer(b.callTimeout)
	defer timer.Stop()
	select {
	case ch <- req:
		return nil
	case <-timer.C:
		return ErrSubscribeTimeout
	case <-ctx.Done():
		return ctx.Err()
	case <-b.ctx.Done():
		return ErrClosed
	}
}

// -- Handlers (run goroutine only) ----------------------------------

func (b *Broker) handleSubscribe(ctx context.Context, req *subscribeReq) {
	if existing, ok := b.subs.get(req.consumerID); ok {
		req.reply <- subscribeReply{sub: existing.snapshot(b.id)}
		return
	}
	filt, err := newCELFilter(req.opts.Filter)
	if err != nil {
		req.reply <- subscribeReply{err: fmt.Errorf("%w: %v", ErrInvalidFilter, err)}
		return
	}
	start, err := b.resolveStart(ctx, req.opts)
	if err != nil {
		req.reply <- subscribeReply{err: err}
		return
	}
	track := true
	if req.opts.Track != nil {
		track = *req.opts.Track
	}
	state := &subscriptionState{
		id:        req.consumerID,
		sink:      req.sink,
		ack:       start,
		syn:       start,
		track:     track,
		stream:    req.opts.Stream,
		topics:    append([]string(nil), req.opts.Topics...),
		filter:    filt,
		filterSrc: req.opts.Filter,
	}
	b.subs.add(state)
	b.recomputeUnions()
	b.restartWorker(ctx)
	b.logger.Debug("subscribed", log.Str("consumer", req.consumerID), log.Uint64("start", start))
	req.reply <- subscribeReply{sub: state.snapshot(b.id)}
}

func (b *Broker) handleUnsubscribe(ctx context.Context, req *unsubscribeReq) {
	prevStreams, prevTopics := b.streams, b.topics
	removed := b.subs.remove(req.consumerID)
	if !removed {
		req.reply <- false
		return
	}
	b.recomputeUnions()
	b.logger.Debug("unsubscribed", log.Str("consumer", req.consumerID))

	if b.subs.len() == 0 {
		if b.worker != nil {
			b.worker.stop()
			b.worker = nil
		}
		b.gen++
		b.buffer = nil
		b.ready = true
		req.reply <- true
		return
	}
	if !stringSetsEqual(prevStreams, b.streams) || !stringSetsEqual(prevTopics, b.topics) {
		b.restartWorker(ctx)
	}
	req.reply <- true
}

func (b *Broker) handleAck(ctx context.Context, req *ackReq) {
	sub, ok := b.subs.get(req.consumerID)
	if !ok || sub.syn != req.number {
		req.reply <- ackReply{position: b.position}
		return
	}
	sub.ack = req.number
	maxAck := b.subs.maxAck()
	kept := b.buffer[:0]
	for _, ev := range b.buffer {
		if ev.Number > maxAck {
			kept = append(kept, ev)
		}
	}
	b.buffer = kept
	b.ready = true

	var persistErr error
	if candidate, ok := b.subs.maxAckSubscription(); ok && durabilityCandidate(candidate, req.consumerID, b.position) {
		if err := b.persistPosition(ctx, candidate.ack); err != nil {
			b.logger.Error("handle upsert failed", log.ErrField(err))
			persistErr = err
		}
	}
	b.schedNext(ctx)
	req.reply <- ackReply{position: b.position, err: persistErr}
}

func (b *Broker) handleSubscriptionQuery(req *subscriptionReq) {
	s, ok := b.subs.get(req.consumerID)
	if !ok {
		req.reply <- subscriptionReply{ok: false}
		return
	}
	req.reply <- subscriptionReply{sub: s.snapshot(b.id), ok: true}
}

func (b *Broker) handleState(req *stateReq) {
	var v any
	switch req.field {
	case "ready":
		v = b.ready
	case "position":
		v = b.position
	case "mode":
		switch {
		case b.worker != nil:
			v = "catchup"
		case len(b.buffer) > 0:
			v = "draining"
		default:
			v = "live-tail"
		}
	case "bufferLen":
		v = len(b.buffer)
	case "subscriberCount":
		v = b.subs.len()
	}
	req.reply <- v
}

func (b *Broker) handleWorkerPush(ctx context.Context, msg workerPush) {
	if b.worker == nil || msg.gen != b.gen {
		return
	}
	matched := b.dispatchEvent(ctx, msg.event)
	if !matched {
		b.worker.resume()
	}
}

func (b *Broker) handleWorkerDone(ctx context.Context, msg workerDone) {
	if b.worker == nil || msg.gen != b.gen {
		return
	}
	b.worker = nil
	if !msg.finished {
		return
	}
	b.reconcileAndArmLiveTail(ctx, msg.last)
}

func (b *Broker) handleLiveTailSignal(ctx context.Context, msg liveTailSignal) {
	if msg.gen != b.gen {
		return
	}
	filter := composeQuery(b.horizon, b.streams, b.topics)
	cursor, err := b.store.QueryEvents(ctx, filter)
	if err != nil {
		b.armLiveTail()
		return
	}
	for {
		ev, ok, qerr := cursor.Next(ctx)
		if qerr != nil || !ok {
			break
		}
		b.buffer = append(b.buffer, ev)
	}
	cursor.Close()
	if idx, err := b.store.Index(ctx); err == nil {
		b.horizon = idx
	}
	b.armLiveTail()
	b.schedNext(ctx)
}

// -- Dispatch & scheduling -------------------------------------------

// dispatchEvent implements the dispatch portion of §4.2: pick the first
// idle subscription whose filter accepts ev and send it. A send failure
// drops that subscription and retries against the next matching one,
// since the event itself may still have a live recipient. Reports
// whether an event was actually dispatched.
func (b *Broker) dispatchEvent(ctx context.Context, ev store.Event) bool {
	for {
		target := b.subs.firstMatch(func(s *subscriptionState) bool {
			return s.idle() && s.accepts(ev)
		})
		if target == nil {
			return false
		}
		if err := target.sink.Send(ctx, ev); err != nil {
			b.logger.Info("dropping subscription after send failure", log.Str("consumer", target.id), log.ErrField(err))
			b.subs.remove(target.id)
			b.recomputeUnions()
			continue
		}
		target.syn = ev.Number
		b.ready = false
		return true
	}
}

// schedNext implements §4.4.
func (b *Broker) schedNext(ctx context.Context) {
	if len(b.buffer) == 0 {
		if b.worker != nil && b.ready {
			b.worker.resume()
		}
		return
	}
	if !b.ready {
		return
	}
	if s, ok := b.subs.maxSynSubscription(); ok && s.syn != s.ack {
		return
	}
	e := b.buffer[0]
	b.buffer = b.buffer[1:]
	if !b.dispatchEvent(ctx, e) {
		b.schedNext(ctx)
	}
}

func (b *Broker) recomputeUnions() {
	b.streams, b.topics = b.subs.unions()
}

// restartWorker stops any current worker and starts a fresh one scoped
// to the broker's current streams/topics union, from the lowest syn
// among subscriptions (§4.2, §4.6).
func (b *Broker) restartWorker(ctx context.Context) {
	if b.worker != nil {
		b.worker.stop()
	}
	b.gen++
	gen := b.gen
	minSyn := b.subs.minSyn()
	if idx, err := b.store.Index(ctx); err == nil {
		b.workerStartIndex = idx
	}
	filter := composeQuery(minSyn, b.streams, b.topics)
	b.buffer = nil
	b.ready = true
	b.worker = startCatchUpWorker(b.ctx, gen, b.store, filter, b.pushCh, b.doneCh)
}

// reconcileAndArmLiveTail re-queries events committed since the
// finished worker's snapshot boundary (the later of the store index at
// worker launch and the last event the worker read), seeds the buffer
// with them, and arms live-tail notifications (§4.2 Catch-up → Live-tail).
func (b *Broker) reconcileAndArmLiveTail(ctx context.Context, workerLast uint64) {
	from := b.workerStartIndex
	if workerLast > from {
		from = workerLast
	}
	filter := composeQuery(from, b.streams, b.topics)
	horizon := from
	if cursor, err := b.store.QueryEvents(ctx, filter); err == nil {
		for {
			ev, ok, qerr := cursor.Next(ctx)
			if qerr != nil || !ok {
				break
			}
			b.buffer = append(b.buffer, ev)
			horizon = ev.Number
		}
		cursor.Close()
	}
	if idx, err := b.store.Index(ctx); err == nil && idx > horizon {
		horizon = idx
	}
	b.horizon = horizon
	b.armLiveTail()
	b.schedNext(ctx)
}

// armLiveTail registers a fresh watcher on the store's new-event
// notification channel, tagged with a new generation.
func (b *Broker) armLiveTail() {
	b.gen++
	gen := b.gen
	ch := b.store.NotifyNewEvent()
	go func() {
		select {
		case <-ch:
			select {
			case b.liveTailCh <- liveTailSignal{gen: gen}:
			case <-b.ctx.Done():
			}
		case <-b.ctx.Done():
		}
	}()
}

func stringSetsEqual(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	set := make(map[string]int, len(a))
	for _, v := range a {
		set[v]++
	}
	for _, v := range b {
		set[v]--
	}
	for _, n := range set {
		if n != 0 {
			return false
		}
	}
	return true
}
