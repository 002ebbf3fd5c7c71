// Package hub fans supervisor events out to transport subscribers.
package hub

import (
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/loykin/devsup/internal/supervisor"
)

// DefaultBuffer is how many events a subscriber may lag behind before it is
// disconnected.
const DefaultBuffer = 1024

// Hub implements supervisor.EventSink. Every subscriber sees events in
// emission order or is closed; events are never skipped for a subscriber
// that stays connected.
type Hub struct {
	buffer int
	log    *slog.Logger

	mu   sync.RWMutex
	subs map[*Subscription]struct{}
}

// Subscription is one consumer of the event stream.
type Subscription struct {
	hub      *Hub
	ch       chan supervisor.Event
	overflow atomic.Bool
	once     sync.Once
}

func New(buffer int, log *slog.Logger) *Hub {
	if buffer <= 0 {
		buffer = DefaultBuffer
	}
	if log == nil {
		log = slog.Default()
	}
	return &Hub{buffer: buffer, log: log, subs: make(map[*Subscription]struct{})}
}

// Subscribe registers a new subscriber.
func (h *Hub) Subscribe() *Subscription {
	s := &Subscription{hub: h, ch: make(chan supervisor.Event, h.buffer)}
	h.mu.Lock()
	h.subs[s] = struct{}{}
	h.mu.Unlock()
	return s
}

// Emit delivers e to every subscriber without blocking.
func (h *Hub) Emit(e supervisor.Event) {
	var slow []*Subscription
	h.mu.RLock()
	for s := range h.subs {
		if s.overflow.Load() {
			continue
		}
		select {
		case s.ch <- e:
		default:
			s.overflow.Store(true)
			slow = append(slow, s)
		}
	}
	h.mu.RUnlock()
	for _, s := range slow {
		h.log.Warn("event subscriber too slow, disconnecting", "buffer", h.buffer)
		s.Close()
	}
}

// Len reports the number of live subscribers.
func (h *Hub) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs)
}

// Close disconnects every subscriber.
func (h *Hub) Close() {
	h.mu.RLock()
	all := make([]*Subscription, 0, len(h.subs))
	for s := range h.subs {
		all = append(all, s)
	}
	h.mu.RUnlock()
	for _, s := range all {
		s.Close()
	}
}

// Events is closed when the subscription ends.
func (s *Subscription) Events() <-chan supervisor.Event { return s.ch }

// Overflowed reports whether the subscription was closed for lagging.
func (s *Subscription) Overflowed() bool { return s.overflow.Load() }

// Close unregisters the subscription. Safe to call more than once.
func (s *Subscription) Close() {
	s.once.Do(func() {
		s.hub.mu.Lock()
		delete(s.hub.subs, s)
		close(s.ch)
		s.hub.mu.Unlock()
	})
}
