// Package hub provides in-process fan-out of run events to watch
// subscribers.
package hub

import "sync"

// Subscriber receives events for one run. C is closed when the hub shuts
// down or the subscriber falls too far behind.
type Subscriber struct {
	C     chan []byte
	runID string
}

// Hub routes published run events to subscribers keyed by run ID.
type Hub struct {
	mu          sync.RWMutex
	subscribers map[string]map[*Subscriber]bool
	closed      bool
}

// New creates a new Hub.
func New() *Hub {
	return &Hub{
		subscribers: make(map[string]map[*Subscriber]bool),
	}
}

// Subscribe registers interest in one run's events.
func (h *Hub) Subscribe(runID string) *Subscriber {
	sub := &Subscriber{
		C:     make(chan []byte, 64),
		runID: runID,
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		close(sub.C)
		return sub
	}
	if h.subscribers[runID] == nil {
		h.subscribers[runID] = make(map[*Subscriber]bool)
	}
	h.subscribers[runID][sub] = true
	return sub
}

// Unsubscribe removes a subscriber and closes its channel.
func (h *Hub) Unsubscribe(sub *Subscriber) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if subs, ok := h.subscribers[sub.runID]; ok && subs[sub] {
		delete(subs, sub)
		if len(subs) == 0 {
			delete(h.subscribers, sub.runID)
		}
		close(sub.C)
	}
}

// Publish delivers data to every subscriber of the run. Slow subscribers
// are dropped rather than blocking the publisher.
func (h *Hub) Publish(runID string, data []byte) {
	h.mu.RLock()
	var dropped []*Subscriber
	for sub := range h.subscribers[runID] {
		select {
		case sub.C <- data:
		default:
			dropped = append(dropped, sub)
		}
	}
	h.mu.RUnlock()

	for _, sub := range dropped {
		h.Unsubscribe(sub)
	}
}

// Close shuts the hub down and closes all subscriber channels.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return
	}
	h.closed = true
	for runID, subs := range h.subscribers {
		for sub := range subs {
			close(sub.C)
		}
		delete(h.subscribers, runID)
	}
}
