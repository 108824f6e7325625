package broker

import (
	"context"

	"github.com/flowcursor/broker/internal/store"
)

// workerDirective is sent by the broker to an in-flight catch-up worker
// after it reports a pushed event.
type workerDirective int

const (
	directiveContinue workerDirective = iota
	directiveStop
)

// workerPush is a worker-to-broker message carrying one historical
// event. gen identifies the worker instance so the broker can discard
// messages from a worker it has since superseded.
type workerPush struct {
	gen   uint64
	event store.Event
}

// workerDone reports a worker's terminal state: either it ran out of
// rows (finished) or it was told to stop (in which case finished is
// false and last holds the number of the event it was holding, if any).
type workerDone struct {
	gen      uint64
	finished bool
	last     uint64
}

// catchUpWorker streams historical events from the store within a
// single snapshot-backed cursor, pushing them to the broker one at a
// time and blocking for a continue/stop directive between each (§4.7).
type catchUpWorker struct {
	gen       uint64
	directive chan workerDirective
	cancel    context.CancelFunc
}

// startCatchUpWorker launches a worker and returns its handle. pushCh
// and doneCh are the broker's mailbox channels; the worker's own
// messages are tagged with gen so stale replies can be ignored.
func startCatchUpWorker(parent context.Context, gen uint64, st store.Store, filter store.EventFilter, pushCh chan<- workerPush, doneCh chan<- workerDone) *catchUpWorker {
	ctx, cancel := context.WithCancel(parent)
	w := &catchUpWorker{gen: gen, directive: make(chan workerDirective), cancel: cancel}
	go w.run(ctx, st, filter, pushCh, doneCh)
	return w
}

func (w *catchUpWorker) run(ctx context.Context, st store.Store, filter store.EventFilter, pushCh chan<- workerPush, doneCh chan<- workerDone) {
	cursor, err := st.QueryEvents(ctx, filter)
	if err != nil {
		doneCh <- workerDone{gen: w.gen, finished: true}
		return
	}
	defer cursor.Close()

	var lastNumber uint64
	for {
		ev, ok, err := cursor.Next(ctx)
		if err != nil || !ok {
			doneCh <- workerDone{gen: w.gen, finished: true, last: lastNumber}
			return
		}
		lastNumber = ev.Number

		select {
		case pushCh <- workerPush{gen: w.gen, event: ev}:
		case <-ctx.Done():
			doneCh <- workerDone{gen: w.gen, finished: false, last: lastNumber}
			return
		}

		select {
		case d := <-w.directive:
			if d == directiveStop {
				doneCh <- workerDone{gen: w.gen, finished: false, last: lastNumber}
				return
			}
		case <-ctx.Done():
			doneCh <- workerDone{gen: w.gen, finished: false, last: lastNumber}
			return
		}
	}
}

// stop cancels the worker's context (unblocking it if it is in the
// middle of a storage read) and advisorially offers a stop directive
// in case it is currently waiting between rows.
func (w *catchUpWorker) stop() {
	w.cancel()
	select {
	case w.directive <- directiveStop:
	default:
	}
}

// resume sends a continue directive. Called only immediately after the
// broker has received this worker's push, when it is guaranteed to be
// blocked awaiting a directive.
func (w *catchUpWorker) resume() {
	w.directive <- directiveContinue
}
