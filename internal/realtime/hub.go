// Package realtime pushes reservation events to connected owner
// dashboards, replacing periodic re-fetching of the pending list.
package realtime

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/labstack/gommon/log"

	"github.com/iliyamo/turf-reservation/internal/queue"
)

// Subscription receives the encoded events of one venue.  C is closed
// when the subscription is cancelled or the hub shuts down.
type Subscription struct {
	C       <-chan []byte
	venueID uint64
	ch      chan []byte
	hub     *Hub
}

// Close detaches the subscription from the hub.
func (s *Subscription) Close() { s.hub.unsubscribe(s) }

// Hub fans events out to subscribers grouped by venue.  A subscriber that
// falls behind loses messages rather than slowing publishers down.
type Hub struct {
	mu     sync.RWMutex
	subs   map[uint64]map[*Subscription]struct{}
	buffer int
	closed bool
}

// NewHub returns a hub whose subscribers buffer up to buffer messages.
func NewHub(buffer int) *Hub {
	if buffer <= 0 {
		buffer = 16
	}
	return &Hub{subs: make(map[uint64]map[*Subscription]struct{}), buffer: buffer}
}

// Subscribe registers a listener for venueID.
func (h *Hub) Subscribe(venueID uint64) *Subscription {
	ch := make(chan []byte, h.buffer)
	s := &Subscription{C: ch, venueID: venueID, ch: ch, hub: h}

	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		close(ch)
		return s
	}
	set := h.subs[venueID]
	if set == nil {
		set = make(map[*Subscription]struct{})
		h.subs[venueID] = set
	}
	set[s] = struct{}{}
	return s
}

func (h *Hub) unsubscribe(s *Subscription) {
	h.mu.Lock()
	defer h.mu.Unlock()
	set, ok := h.subs[s.venueID]
	if !ok {
		return
	}
	if _, ok := set[s]; !ok {
		return
	}
	delete(set, s)
	close(s.ch)
	if len(set) == 0 {
		delete(h.subs, s.venueID)
	}
}

// Subscribers returns the number of listeners for venueID.
func (h *Hub) Subscribers(venueID uint64) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs[venueID])
}

// Broadcast sends msg to every subscriber of venueID without blocking.
func (h *Hub) Broadcast(venueID uint64, msg []byte) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for s := range h.subs[venueID] {
		select {
		case s.ch <- msg:
		default:
			log.Warnf("realtime: subscriber of venue %d is full, dropping message", venueID)
		}
	}
}

// Notify implements service.Notifier.
func (h *Hub) Notify(_ context.Context, ev queue.ReservationEvent) {
	msg, err := json.Marshal(ev)
	if err != nil {
		log.Errorf("realtime: marshal event: %v", err)
		return
	}
	h.Broadcast(ev.VenueID, msg)
}

// Close closes every subscription.  Later subscriptions are closed
// immediately.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return
	}
	h.closed = true
	for venueID, set := range h.subs {
		for s := range set {
			close(s.ch)
		}
		delete(h.subs, venueID)
	}
}
