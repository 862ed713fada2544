package server

import (
	"sync"
	"time"

	"github.com/ayusman/berrywatch/internal/inspect"
)

// Snapshot is the latest processed frame as seen by HTTP clients.
type Snapshot struct {
	Seq        uint64
	JPEG       []byte
	Detections inspect.DetectionSet
	Mode       inspect.Mode
	At         time.Time
}

// Hub hands the newest annotated frame from the inspection loop to HTTP
// clients. Slow subscribers only ever see the most recent snapshot.
type Hub struct {
	mu     sync.RWMutex
	latest Snapshot
	subs   map[chan Snapshot]struct{}
}

// NewHub creates an empty hub.
func NewHub() *Hub {
	return &Hub{subs: make(map[chan Snapshot]struct{})}
}

// Update stores a new snapshot and notifies subscribers without blocking.
func (h *Hub) Update(jpeg []byte, set inspect.DetectionSet, mode inspect.Mode) {
	h.mu.Lock()
	h.latest = Snapshot{
		Seq:        h.latest.Seq + 1,
		JPEG:       jpeg,
		Detections: set,
		Mode:       mode,
		At:         time.Now(),
	}
	snap := h.latest
	subs := make([]chan Snapshot, 0, len(h.subs))
	for ch := range h.subs {
		subs = append(subs, ch)
	}
	h.mu.Unlock()

	for _, ch := range subs {
		// drop the stale snapshot, if any, so the newest one always fits
		select {
		case <-ch:
		default:
		}
		select {
		case ch <- snap:
		default:
		}
	}
}

// Latest returns the newest snapshot. Seq is zero before the first frame.
func (h *Hub) Latest() Snapshot {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.latest
}

// Subscribe returns a channel receiving new snapshots and a function that
// unsubscribes.
func (h *Hub) Subscribe() (<-chan Snapshot, func()) {
	ch := make(chan Snapshot, 1)

	h.mu.Lock()
	h.subs[ch] = struct{}{}
	h.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			h.mu.Lock()
			delete(h.subs, ch)
			h.mu.Unlock()
		})
	}
}

// Subscribers returns the number of active subscribers.
func (h *Hub) Subscribers() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs)
}
