package broker

// subscriptionState is the broker's private, mutable record for one
// subscriber. Subscription is the read-only snapshot derived from it.
type subscriptionState struct {
	id        string
	sink      Sink
	ack       uint64
	syn       uint64
	track     bool
	stream    string
	topics    []string
	filter    celFilter
	filterSrc string
}

func (s *subscriptionState) snapshot(handleID string) Subscription {
	topics := append([]string(nil), s.topics...)
	return Subscription{
		ID:       s.id,
		HandleID: handleID,
		Ack:      s.ack,
		Syn:      s.syn,
		Track:    s.track,
		Stream:   s.stream,
		Topics:   topics,
	}
}

// subscriptionTable holds all subscribers of a broker, preserving
// insertion order so dispatch scans are deterministic.
type subscriptionTable struct {
	order []string
	byID  map[string]*subscriptionState
}

func newSubscriptionTable() *subscriptionTable {
	return &subscriptionTable{byID: make(map[string]*subscriptionState)}
}

func (t *subscriptionTable) get(id string) (*subscriptionState, bool) {
	s, ok := t.byID[id]
	return s, ok
}

func (t *subscriptionTable) add(s *subscriptionState) {
	if _, exists := t.byID[s.id]; exists {
		return
	}
	t.byID[s.id] = s
	t.order = append(t.order, s.id)
}

func (t *subscriptionTable) remove(id string) bool {
	if _, ok := t.byID[id]; !ok {
		return false
	}
	delete(t.byID, id)
	for i, oid := range t.order {
		if oid == id {
			t.order = append(t.order[:i], t.order[i+1:]...)
			break
		}
	}
	return true
}

// each iterates subscriptions in insertion order.
func (t *subscriptionTable) each(fn func(*subscriptionState)) {
	for _, id := range t.order {
		fn(t.byID[id])
	}
}

func (t *subscriptionTable) len() int { return len(t.order) }

// unions recomputes the deduplicated stream/topic scope across all
// subscriptions. An empty subscription-level stream or topics widens to
// "any" for that subscription's contribution but the set stays an
// over-approximation for the worker query, never a restriction beyond
// what any single subscription allows.
func (t *subscriptionTable) unions() (streams []string, topics []string) {
	streamSet := map[string]struct{}{}
	topicSet := map[string]struct{}{}
	anyStream := false
	anyTopic := false
	t.each(func(s *subscriptionState) {
		if s.stream == "" {
			anyStream = true
		} else {
			streamSet[s.stream] = struct{}{}
		}
		if len(s.topics) == 0 {
			anyTopic = true
		} else {
			for _, tp := range s.topics {
				topicSet[tp] = struct{}{}
			}
		}
	})
	if !anyStream {
		for s := range streamSet {
			streams = append(streams, s)
		}
	}
	if !anyTopic {
		for tp := range topicSet {
			topics = append(topics, tp)
		}
	}
	return streams, topics
}

// minSyn returns the minimum syn across all subscriptions, or 0 if
// there are none.
func (t *subscriptionTable) minSyn() uint64 {
	first := true
	var min uint64
	t.each(func(s *subscriptionState) {
		if first || s.syn < min {
			min = s.syn
			first = false
		}
	})
	return min
}

// maxSynSubscription returns the subscription with the largest syn,
// preferring the earliest in insertion order on ties.
func (t *subscriptionTable) maxSynSubscription() (*subscriptionState, bool) {
	var best *subscriptionState
	t.each(func(s *subscriptionState) {
		if best == nil || s.syn > best.syn {
			best = s
		}
	})
	return best, best != nil
}

// allQuiescent reports whether every subscription has ack == syn.
func (t *subscriptionTable) allQuiescent() bool {
	quiescent := true
	t.each(func(s *subscriptionState) {
		if !s.idle() {
			quiescent = false
		}
	})
	return quiescent
}

// firstMatch returns the first subscription (in insertion order)
// satisfying pred, or nil if none does.
func (t *subscriptionTable) firstMatch(pred func(*subscriptionState) bool) *subscriptionState {
	for _, id := range t.order {
		if s := t.byID[id]; pred(s) {
			return s
		}
	}
	return nil
}

// maxAck returns the largest ack across all subscriptions, or 0 if
// there are none.
func (t *subscriptionTable) maxAck() uint64 {
	var max uint64
	t.each(func(s *subscriptionState) {
		if s.ack > max {
			max = s.ack
		}
	})
	return max
}

// maxAckSubscription returns the subscription with the largest ack,
// preferring the earliest in insertion order on ties.
func (t *subscriptionTable) maxAckSubscription() (*subscriptionState, bool) {
	var best *subscriptionState
	t.each(func(s *subscriptionState) {
		if best == nil || s.ack > best.ack {
			best = s
		}
	})
	return best, best != nil
}
