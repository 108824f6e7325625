// Package broker implements a single handle's ordered, at-least-once
// event delivery to its subscribers.
//
// A Broker owns one subscription table and cycles between three modes:
// catch-up (a worker streams historical events from a store.Store
// snapshot), draining (a short buffer of events gathered while
// reconciling the tail), and live-tail (idle, woken by the store's
// NotifyNewEvent channel). All mutable state is confined to a single
// goroutine fed by typed mailbox channels, so no locks guard broker
// state; the public methods on Broker only enqueue requests and wait
// for a reply.
//
// Subscribers receive events one at a time: a subscription's syn marks
// the last delivered event number, and ack (supplied by the caller via
// Broker.Ack) must catch up to syn before the next event is dispatched
// to that subscriber. A tracked subscription additionally advances the
// handle's durable position once it holds the broker-wide maximum ack.
package broker
