package broker

import "github.com/flowcursor/broker/internal/store"

// accepts implements the per-subscription, per-event predicate (§4.3).
// It does not check flow control (syn == ack); callers that dispatch
// from the buffer or worker push already guarantee single-in-flight via
// the broker's ready flag before calling this.
func (s *subscriptionState) accepts(ev store.Event) bool {
	if ev.Number <= s.ack {
		return false
	}
	if s.stream != "" && s.stream != ev.StreamID {
		return false
	}
	if len(s.topics) > 0 && !containsString(s.topics, ev.Topic) {
		return false
	}
	if s.filter.enabled && !s.filter.Eval(ev) {
		return false
	}
	return true
}

// idle reports whether s has no delivery in flight (syn == ack).
func (s *subscriptionState) idle() bool { return s.syn == s.ack }

func containsString(list []string, v string) bool {
	for _, x := range list {
		if x == v {
			return true
		}
	}
	return false
}
