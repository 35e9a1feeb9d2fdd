// Package bus is an in-process publish/subscribe event bus used to signal
// redraws from the model layer to the UI panes. Publish never blocks;
// subscribers drain their channel on the main loop tick.
package bus

import (
	"strings"
	"sync"
	"time"
)

// Bus fans events out to subscribers by kind-prefix namespace.
type Bus struct {
	mu   sync.RWMutex
	subs []*subscriber
	next int
}

type subscriber struct {
	id        int
	namespace string
	ch        chan Event
}

// New creates an empty bus.
func New() *Bus {
	return &Bus{}
}

// Signal publishes an event of the given kind with the current time.
func (b *Bus) Signal(kind string, payload any) {
	b.Publish(Event{Kind: kind, Timestamp: time.Now(), Payload: payload})
}

// Publish delivers the event to every subscriber whose namespace is a
// prefix of the event kind. A subscriber with a full channel misses the
// event; the UI treats any received event as "something changed", so a
// dropped duplicate is harmless.
func (b *Bus) Publish(evt Event) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	for _, sub := range b.subs {
		if !strings.HasPrefix(evt.Kind, sub.namespace) {
			continue
		}
		select {
		case sub.ch <- evt:
		default:
		}
	}
}

// Subscribe registers for events whose kind starts with namespace. The
// returned function removes the subscription.
func (b *Bus) Subscribe(namespace string, bufSize int) (<-chan Event, func()) {
	ch := make(chan Event, bufSize)

	b.mu.Lock()
	id := b.next
	b.next++
	b.subs = append(b.subs, &subscriber{id: id, namespace: namespace, ch: ch})
	b.mu.Unlock()

	return ch, func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		for i, sub := range b.subs {
			if sub.id == id {
				b.subs = append(b.subs[:i], b.subs[i+1:]...)
				return
			}
		}
	}
}
