package gateway

import (
	"context"
	"sync"

	"github.com/rs/zerolog/log"
)

// DefaultQueueSize is the dispatch queue size used by New
const DefaultQueueSize = 256

// Handler is a function that handles gateway events
type Handler func(Event)

type subscriber struct {
	id      uint64
	handler Handler
}

// Subscription is a handle for a single (event type, handler) registration.
// Closing it removes the handler; close is idempotent and safe after the
// bus itself has shut down.
type Subscription struct {
	bus   *Bus
	event EventType
	id    uint64
	once  sync.Once
}

// Close removes the subscription from the bus
func (s *Subscription) Close() {
	s.once.Do(func() {
		s.bus.unsubscribe(s.event, s.id)
	})
}

// Bus routes gateway events to subscribers. A single dispatcher goroutine
// delivers events in publish order, one event to completion before the next,
// so handlers for the same event type never overlap.
type Bus struct {
	mu      sync.RWMutex
	subs    map[EventType][]subscriber
	nextID  uint64
	queue   chan Event
	done    chan struct{}

	// Closing this channel signals publishers and the dispatcher to stop.
	// Using a channel in select is race-free (unlike mutex + bool)
	closing   chan struct{}
	closeOnce sync.Once
}

// New creates a new bus with the default queue size
func New() *Bus {
	return NewWithQueueSize(DefaultQueueSize)
}

// NewWithQueueSize creates a new bus with a custom dispatch queue size
func NewWithQueueSize(queueSize int) *Bus {
	if queueSize <= 0 {
		queueSize = DefaultQueueSize
	}
	b := &Bus{
		subs:    make(map[EventType][]subscriber),
		queue:   make(chan Event, queueSize),
		done:    make(chan struct{}),
		closing: make(chan struct{}),
	}

	go b.dispatch()

	log.Debug().Int("queue_size", queueSize).Msg("Gateway bus dispatcher started")
	return b
}

// dispatch delivers queued events sequentially with panic recovery.
// The queue channel is never closed; the dispatcher exits on the closing
// signal after draining whatever was queued before it, so a racing Publish
// can only ever drop an event, never panic on a closed channel.
func (b *Bus) dispatch() {
	defer close(b.done)

	for {
		select {
		case ev := <-b.queue:
			b.dispatchEvent(ev)
		case <-b.closing:
			for {
				select {
				case ev := <-b.queue:
					b.dispatchEvent(ev)
				default:
					return
				}
			}
		}
	}
}

func (b *Bus) dispatchEvent(ev Event) {
	b.mu.RLock()
	subs := make([]subscriber, len(b.subs[ev.Type]))
	copy(subs, b.subs[ev.Type])
	b.mu.RUnlock()

	for _, s := range subs {
		b.deliver(s, ev)
	}
}

func (b *Bus) deliver(s subscriber, ev Event) {
	defer func() {
		if r := recover(); r != nil {
			log.Error().
				Interface("panic", r).
				Str("event_type", string(ev.Type)).
				Msg("Gateway event handler panicked")
		}
	}()
	s.handler(ev)
}

// Subscribe registers a handler for an event type and returns a Subscription
// handle that removes it again
func (b *Bus) Subscribe(eventType EventType, handler Handler) *Subscription {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.nextID++
	id := b.nextID
	b.subs[eventType] = append(b.subs[eventType], subscriber{id: id, handler: handler})

	return &Subscription{bus: b, event: eventType, id: id}
}

func (b *Bus) unsubscribe(eventType EventType, id uint64) {
	b.mu.Lock()
	defer b.mu.Unlock()

	subs := b.subs[eventType]
	for i, s := range subs {
		if s.id == id {
			b.subs[eventType] = append(subs[:i], subs[i+1:]...)
			return
		}
	}
}

// HandlerCount returns the number of live subscriptions for an event type
func (b *Bus) HandlerCount(eventType EventType) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs[eventType])
}

// Publish queues an event for dispatch.
// Non-blocking: if the queue is full or the bus is closing, the event is dropped.
func (b *Bus) Publish(event Event) {
	// Checked up front so a publish after Close reliably warns instead of
	// racing the send case below
	select {
	case <-b.closing:
		log.Warn().Str("event_type", string(event.Type)).Msg("Gateway bus closing, dropping event")
		return
	default:
	}

	select {
	case <-b.closing:
		log.Warn().Str("event_type", string(event.Type)).Msg("Gateway bus closing, dropping event")
	case b.queue <- event:
		// Successfully queued
	default:
		log.Warn().Str("event_type", string(event.Type)).Msg("Gateway bus queue full, dropping event")
	}
}

// Closed reports whether Close has been called
func (b *Bus) Closed() bool {
	select {
	case <-b.closing:
		return true
	default:
		return false
	}
}

// Close shuts down the dispatcher gracefully.
// Signals publishers and the dispatcher to stop, then waits for the
// dispatcher to drain the queue, bounded by ctx.
func (b *Bus) Close(ctx context.Context) {
	b.closeOnce.Do(func() {
		close(b.closing)
	})

	select {
	case <-b.done:
		log.Debug().Msg("Gateway bus dispatcher stopped gracefully")
	case <-ctx.Done():
		log.Warn().Msg("Gateway bus shutdown timed out, some events may be lost")
	}
}
