// Package eventbus implements a small in-process publish/subscribe bus
// used to fan dispatch lifecycle events out to dashboards and tests.
package eventbus

import "sync"

// Event represents an arbitrary event passed on the bus.
type Event interface{}

// EventBus implements a simple publish/subscribe event bus.
type EventBus interface {
	Publish(Event)
	Subscribe() <-chan Event
	Unsubscribe(<-chan Event)
	Close()
}

const defaultBuffer = 16

// Bus is the default EventBus implementation using fan-out channels.
// Publishing never blocks: a subscriber that falls behind loses events
// rather than stalling the dispatch path.
type Bus struct {
	mu     sync.RWMutex
	buffer int
	subs   []chan Event
	closed bool
}

// New creates a Bus with the default subscriber buffer.
func New() *Bus { return &Bus{buffer: defaultBuffer} }

// NewBuffered creates a Bus whose subscriber channels hold up to n
// events. Values below one fall back to the default.
func NewBuffered(n int) *Bus {
	if n < 1 {
		n = defaultBuffer
	}
	return &Bus{buffer: n}
}

// Publish sends the event to all subscribers. Delivery is non-blocking.
func (b *Bus) Publish(e Event) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed {
		return
	}
	for _, ch := range b.subs {
		select {
		case ch <- e:
		default:
		}
	}
}

// Subscribe registers a new subscriber and returns its channel.
func (b *Bus) Subscribe() <-chan Event {
	ch := make(chan Event, b.buffer)
	b.mu.Lock()
	if b.closed {
		close(ch)
	} else {
		b.subs = append(b.subs, ch)
	}
	b.mu.Unlock()
	return ch
}

// Unsubscribe removes the subscriber and closes its channel.
func (b *Bus) Unsubscribe(sub <-chan Event) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for i, ch := range b.subs {
		if ch == sub {
			b.subs = append(b.subs[:i], b.subs[i+1:]...)
			if !b.closed {
				close(ch)
			}
			return
		}
	}
}

// Close closes all subscriber channels and clears the list.
func (b *Bus) Close() {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return
	}
	b.closed = true
	for _, ch := range b.subs {
		close(ch)
	}
	b.subs = nil
	b.mu.Unlock()
}
