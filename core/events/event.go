package events

import (
	"sync"

	"fall/core/types"
)

// Event represents a structured state change emitted by an engine.
type Event interface {
	EventType() string
	Event() *types.Event
}

// Emitter broadcasts events to downstream subscribers (e.g. websocket clients,
// the journal).
type Emitter interface {
	Emit(Event)
}

// NoopEmitter is a helper that satisfies the Emitter interface while discarding
// all events. It is useful when a component wants to optionally expose events.
type NoopEmitter struct{}

// Emit implements the Emitter interface.
func (NoopEmitter) Emit(Event) {}

// Buffer holds events raised during an operation until the operation commits.
type Buffer struct {
	events []Event
}

func (b *Buffer) Emit(e Event) {
	if e == nil {
		return
	}
	b.events = append(b.events, e)
}

// Events returns the buffered events in emission order.
func (b *Buffer) Events() []Event {
	return append([]Event(nil), b.events...)
}

// Flush forwards the buffered events and empties the buffer.
func (b *Buffer) Flush(to Emitter) {
	if to != nil {
		for _, e := range b.events {
			to.Emit(e)
		}
	}
	b.events = nil
}

// Broadcaster fans events out to subscribers. Slow subscribers drop events
// rather than block the writer.
type Broadcaster struct {
	mu     sync.RWMutex
	nextID int
	subs   map[int]chan *types.Event
}

func NewBroadcaster() *Broadcaster {
	return &Broadcaster{subs: make(map[int]chan *types.Event)}
}

func (b *Broadcaster) Emit(e Event) {
	if e == nil {
		return
	}
	rendered := e.Event()
	b.mu.RLock()
	defer b.mu.RUnlock()
	for _, ch := range b.subs {
		select {
		case ch <- rendered:
		default:
		}
	}
}

// Subscribe registers a subscriber with the given buffer size. The returned
// cancel function must be called to release it.
func (b *Broadcaster) Subscribe(buffer int) (<-chan *types.Event, func()) {
	if buffer <= 0 {
		buffer = 64
	}
	ch := make(chan *types.Event, buffer)
	b.mu.Lock()
	id := b.nextID
	b.nextID++
	b.subs[id] = ch
	b.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			b.mu.Lock()
			delete(b.subs, id)
			b.mu.Unlock()
			close(ch)
		})
	}
}

// Subscribers reports the number of active subscribers.
func (b *Broadcaster) Subscribers() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs)
}

// Fanout emits every event to each of its members.
type Fanout []Emitter

func (f Fanout) Emit(e Event) {
	for _, emitter := range f {
		if emitter != nil {
			emitter.Emit(e)
		}
	}
}
