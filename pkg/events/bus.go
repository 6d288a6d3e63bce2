// Package events implements the fire-and-forget event queue that the UTM
// core publishes into for external observers (§6 subscribe_events).
// Publication never blocks; each subscriber's queue is bounded at
// defaultSubscriberBuffer events, and once it is full the oldest unread
// event is dropped to make room for the new one. It generalizes the teacher's
// core.UpdateBuffer — which batches position updates into periodic flushes
// against an outbound HTTP client — into a lighter single-item publish,
// since the UTM core has no outbound API client of its own to batch
// against; draining is entirely the subscriber's responsibility.
package events

import (
	"sync"

	"github.com/picogrid/utm-core/pkg/models"
)

// defaultSubscriberBuffer bounds each subscriber's channel so one slow
// reader cannot grow without limit; Publish drops the oldest unread event
// for that subscriber rather than blocking the publisher, preserving the
// "never suspends the resolver" requirement from §5.
const defaultSubscriberBuffer = 256

// Bus is a multi-subscriber, non-blocking event fan-out.
type Bus struct {
	mu          sync.RWMutex
	subscribers map[int]chan models.Event
	nextID      int
}

// NewBus creates an empty event bus.
func NewBus() *Bus {
	return &Bus{subscribers: make(map[int]chan models.Event)}
}

// Subscribe registers a new listener and returns a receive-only channel of
// events plus an Unsubscribe func. The channel is closed when Unsubscribe
// is called.
func (b *Bus) Subscribe() (<-chan models.Event, func()) {
	b.mu.Lock()
	defer b.mu.Unlock()

	id := b.nextID
	b.nextID++
	ch := make(chan models.Event, defaultSubscriberBuffer)
	b.subscribers[id] = ch

	unsubscribe := func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		if c, ok := b.subscribers[id]; ok {
			delete(b.subscribers, id)
			close(c)
		}
	}

	return ch, unsubscribe
}

// Publish fans ev out to every current subscriber without blocking the
// caller: a subscriber whose buffer is full has its oldest pending event
// dropped to make room, rather than stalling the committer's critical
// section (§5 "Suspension points: only at I/O boundaries").
func (b *Bus) Publish(ev models.Event) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	for _, ch := range b.subscribers {
		select {
		case ch <- ev:
		default:
			select {
			case <-ch:
			default:
			}
			select {
			case ch <- ev:
			default:
			}
		}
	}
}

// SubscriberCount reports the number of active subscribers, for diagnostics.
func (b *Bus) SubscriberCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subscribers)
}
