package broker

import "github.com/flowcursor/broker/internal/store"

// composeQuery builds the store filter for a catch-up worker from the
// broker's current scope, starting strictly after minSyn (§4.8).
func composeQuery(minSyn uint64, streams, topics []string) store.EventFilter {
	return store.EventFilter{
		From:    minSyn,
		Streams: streams,
		Topics:  topics,
	}
}
