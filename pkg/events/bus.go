package events

import (
	"log/slog"
	"sync"
	"sync/atomic"
)

// DefaultBufferSize is the per-subscriber channel capacity used when a
// subscriber asks for zero.
const DefaultBufferSize = 256

// Bus fans events out to subscribers. Delivery never blocks the publisher: a
// subscriber whose buffer is full misses the event and the drop is counted.
type Bus struct {
	source string
	logger *slog.Logger

	mu     sync.RWMutex
	subs   map[uint64]chan Event
	nextID uint64
	closed bool

	published atomic.Uint64
	dropped   atomic.Uint64
}

// NewBus returns a bus that tags events with source.
func NewBus(source string, logger *slog.Logger) *Bus {
	if logger == nil {
		logger = slog.Default()
	}
	return &Bus{
		source: source,
		logger: logger.With("component", "events.bus"),
		subs:   make(map[uint64]chan Event),
	}
}

// Subscribe registers a subscriber. The returned cancel function unregisters
// it and closes the channel; it is safe to call more than once.
func (b *Bus) Subscribe(buffer int) (<-chan Event, func()) {
	if buffer <= 0 {
		buffer = DefaultBufferSize
	}
	ch := make(chan Event, buffer)

	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		close(ch)
		return ch, func() {}
	}
	b.nextID++
	id := b.nextID
	b.subs[id] = ch
	b.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			b.mu.Lock()
			if c, ok := b.subs[id]; ok {
				delete(b.subs, id)
				close(c)
			}
			b.mu.Unlock()
		})
	}
}

// Publish implements Sink.
func (b *Bus) Publish(e Event) {
	e.Stamp()
	if e.Source == "" {
		e.Source = b.source
	}

	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed {
		return
	}
	b.published.Add(1)

	for _, ch := range b.subs {
		select {
		case ch <- e:
		default:
			if n := b.dropped.Add(1); n == 1 || n%1000 == 0 {
				b.logger.Warn("subscriber buffer full, dropping events",
					"event_type", e.Type,
					"dropped_total", n,
				)
			}
		}
	}
}

// Subscribers returns the number of active subscribers.
func (b *Bus) Subscribers() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs)
}

// Published returns the number of events accepted by Publish.
func (b *Bus) Published() uint64 {
	return b.published.Load()
}

// Dropped returns the number of deliveries skipped because a subscriber was
// full.
func (b *Bus) Dropped() uint64 {
	return b.dropped.Load()
}

// Close closes every subscriber channel. Later publishes are ignored.
func (b *Bus) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	b.closed = true
	for id, ch := range b.subs {
		delete(b.subs, id)
		close(ch)
	}
}
