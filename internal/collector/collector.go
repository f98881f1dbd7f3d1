// Package collector implements timed event collection over a gateway event
// stream: a collector accumulates a bounded, filtered, keyed subset of
// incoming events until a termination condition fires (explicit stop, item
// limit, absolute timeout or inactivity timeout), then reports the final
// set together with the reason it ended.
package collector

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/gatherkit/gatherd/internal/gateway"
)

// Reason explains why a collector ended
type Reason string

const (
	ReasonUser          Reason = "user"
	ReasonLimit         Reason = "limit"
	ReasonTimeout       Reason = "timeout"
	ReasonIdle          Reason = "idle"
	ReasonChannelDelete Reason = "channelDelete"
	ReasonGuildDelete   Reason = "guildDelete"
	ReasonMessageDelete Reason = "messageDelete"
)

// FilterFunc decides whether a candidate item is accepted.
// Returning an error counts as rejection; the item is dropped silently and
// the collector keeps running.
type FilterFunc[T any] func(item T) (bool, error)

// Options configures a collector
type Options[T any] struct {
	Max         int           // maximum accepted items, 0 = unbounded
	Filter      FilterFunc[T] // nil = accept all
	Dispose     bool          // evict collected items on matching removal events
	Timeout     time.Duration // absolute deadline from construction, 0 = none
	IdleTimeout time.Duration // inactivity window, re-armed per accepted item, 0 = none
}

// CollectHandler observes accepted (collect) or evicted (dispose) items
type CollectHandler[T any] func(key string, item T)

// EndHandler observes collector termination with the final set and reason
type EndHandler[T any] func(items *Store[T], reason Reason)

// strategy supplies the variant-specific parts of a collector: mapping a raw
// gateway event to a storage key and item (or rejecting it structurally), and
// mapping a removal event to the key it evicts.
type strategy[T any] struct {
	collect func(gateway.Event) (key string, item T, ok bool)
	dispose func(gateway.Event) (key string, item T, ok bool)
}

type handlerEntry[F any] struct {
	fn   F
	once bool
}

// takeEntries snapshots the callable handlers and drops the once-only ones
func takeEntries[F any](entries []handlerEntry[F]) (fns []F, kept []handlerEntry[F]) {
	fns = make([]F, 0, len(entries))
	for _, e := range entries {
		fns = append(fns, e.fn)
		if !e.once {
			kept = append(kept, e)
		}
	}
	return fns, kept
}

// Collector is the generic collection state machine. It owns its store and
// timers exclusively; the gateway bus is referenced only through the
// subscriptions bound at construction, all of which are closed on stop.
//
// The bus dispatches one event to completion before the next, so two collect
// evaluations never overlap. Timer callbacks run on their own goroutines and
// may race with event handling; the mutex plus the one-way ended flag make
// every such race resolve to exactly one stop.
type Collector[T any] struct {
	mu    sync.Mutex
	opts  Options[T]
	strat strategy[T]
	store *Store[T]

	subs []*gateway.Subscription

	collectHandlers []handlerEntry[CollectHandler[T]]
	disposeHandlers []handlerEntry[CollectHandler[T]]
	endHandlers     []handlerEntry[EndHandler[T]]

	timeoutTimer *time.Timer
	idleTimer    *time.Timer

	ended  bool
	reason Reason
	done   chan struct{}
}

func newCollector[T any](opts Options[T], strat strategy[T]) *Collector[T] {
	c := &Collector[T]{
		opts:  opts,
		strat: strat,
		store: NewStore[T](),
		done:  make(chan struct{}),
	}

	if opts.Timeout > 0 {
		c.timeoutTimer = time.AfterFunc(opts.Timeout, func() {
			c.StopWithReason(ReasonTimeout)
		})
	}
	if opts.IdleTimeout > 0 {
		c.idleTimer = time.AfterFunc(opts.IdleTimeout, func() {
			c.StopWithReason(ReasonIdle)
		})
	}

	return c
}

// bind attaches the gateway subscriptions that stop will tear down.
// If the collector already ended (a zero timeout can fire between
// construction and bind), the subscriptions are closed immediately.
func (c *Collector[T]) bind(subs ...*gateway.Subscription) {
	c.mu.Lock()
	if c.ended {
		c.mu.Unlock()
		for _, s := range subs {
			s.Close()
		}
		return
	}
	c.subs = append(c.subs, subs...)
	c.mu.Unlock()
}

// OnCollect registers a handler fired once per accepted item, after insertion
func (c *Collector[T]) OnCollect(fn CollectHandler[T]) {
	c.addHandler(&c.collectHandlers, fn, false)
}

// OnceCollect registers a collect handler removed after its first call
func (c *Collector[T]) OnceCollect(fn CollectHandler[T]) {
	c.addHandler(&c.collectHandlers, fn, true)
}

// OnDispose registers a handler fired once per evicted item.
// Dispose fires only when Options.Dispose is enabled.
func (c *Collector[T]) OnDispose(fn CollectHandler[T]) {
	c.addHandler(&c.disposeHandlers, fn, false)
}

// OnceDispose registers a dispose handler removed after its first call
func (c *Collector[T]) OnceDispose(fn CollectHandler[T]) {
	c.addHandler(&c.disposeHandlers, fn, true)
}

func (c *Collector[T]) addHandler(entries *[]handlerEntry[CollectHandler[T]], fn CollectHandler[T], once bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.ended {
		// Collect/dispose listeners are removed at stop; late
		// registrations would never fire either way.
		return
	}
	*entries = append(*entries, handlerEntry[CollectHandler[T]]{fn: fn, once: once})
}

// OnEnd registers a handler for the end event. It fires exactly once, with
// the final store and the termination reason. Handlers registered after the
// collector ended are not invoked; use Done or Wait to observe a collector
// that may already have stopped.
func (c *Collector[T]) OnEnd(fn EndHandler[T]) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.ended {
		return
	}
	c.endHandlers = append(c.endHandlers, handlerEntry[EndHandler[T]]{fn: fn})
}

// handleCollect is the collect path for a raw gateway event: structural
// strategy filter, then the user filter, then insertion and emission. The
// ended state is re-checked under the mutex right before insertion so an
// event that raced with stop is suppressed rather than emitted.
func (c *Collector[T]) handleCollect(ev gateway.Event) {
	key, item, ok := c.strat.collect(ev)
	if !ok {
		return
	}
	if c.Ended() {
		return
	}

	if f := c.opts.Filter; f != nil {
		accept, err := f(item)
		if err != nil {
			// A failing filter rejects the item, nothing more
			log.Debug().Err(err).Str("key", key).Msg("Collector filter failed, dropping item")
			return
		}
		if !accept {
			return
		}
	}

	c.mu.Lock()
	if c.ended {
		c.mu.Unlock()
		return
	}
	c.store.Set(key, item)
	fns, kept := takeEntries(c.collectHandlers)
	c.collectHandlers = kept
	if c.idleTimer != nil {
		c.idleTimer.Stop()
		c.idleTimer = time.AfterFunc(c.opts.IdleTimeout, func() {
			c.StopWithReason(ReasonIdle)
		})
	}
	limitReached := c.opts.Max > 0 && c.store.Len() >= c.opts.Max
	c.mu.Unlock()

	log.Debug().Str("key", key).Msg("Collector accepted item")
	for _, fn := range fns {
		fn(key, item)
	}

	if limitReached {
		c.StopWithReason(ReasonLimit)
	}
}

// handleDispose is the removal path: gated on Options.Dispose, it maps the
// event to a key and evicts it, emitting dispose only when the key was
// actually collected.
func (c *Collector[T]) handleDispose(ev gateway.Event) {
	if !c.opts.Dispose {
		return
	}
	key, item, ok := c.strat.dispose(ev)
	if !ok {
		return
	}

	c.mu.Lock()
	if c.ended {
		c.mu.Unlock()
		return
	}
	if _, present := c.store.Delete(key); !present {
		c.mu.Unlock()
		return
	}
	fns, kept := takeEntries(c.disposeHandlers)
	c.disposeHandlers = kept
	c.mu.Unlock()

	log.Debug().Str("key", key).Msg("Collector disposed item")
	for _, fn := range fns {
		fn(key, item)
	}
}

// evict removes a key directly, bypassing the Dispose gate and emitting
// nothing. Used for bulk deletions, which are deliberately silent.
func (c *Collector[T]) evict(key string) {
	c.mu.Lock()
	if !c.ended {
		c.store.Delete(key)
	}
	c.mu.Unlock()
}

// Stop ends the collector with the explicit user reason
func (c *Collector[T]) Stop() {
	c.StopWithReason(ReasonUser)
}

// StopWithReason ends the collector: cancels both timers, fixes the reason,
// closes all gateway subscriptions, emits end and removes collect/dispose
// handlers. Idempotent - every termination trigger routes through here and
// only the first one wins.
func (c *Collector[T]) StopWithReason(reason Reason) {
	c.mu.Lock()
	if c.ended {
		c.mu.Unlock()
		return
	}
	c.ended = true
	c.reason = reason
	if c.timeoutTimer != nil {
		c.timeoutTimer.Stop()
		c.timeoutTimer = nil
	}
	if c.idleTimer != nil {
		c.idleTimer.Stop()
		c.idleTimer = nil
	}
	subs := c.subs
	c.subs = nil
	fns, _ := takeEntries(c.endHandlers)
	c.endHandlers = nil
	c.collectHandlers = nil
	c.disposeHandlers = nil
	store := c.store
	close(c.done)
	c.mu.Unlock()

	for _, s := range subs {
		s.Close()
	}

	log.Info().Str("reason", string(reason)).Int("items", store.Len()).Msg("Collector ended")
	for _, fn := range fns {
		fn(store, reason)
	}
}

// Ended returns true once the collector has stopped
func (c *Collector[T]) Ended() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.ended
}

// EndReason returns the termination reason, empty while running
func (c *Collector[T]) EndReason() Reason {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.reason
}

// Collected returns the collector's store. The collector mutates it until
// the collector has ended; after that it is the final snapshot.
func (c *Collector[T]) Collected() *Store[T] {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.store
}

// Done returns a channel closed when the collector ends
func (c *Collector[T]) Done() <-chan struct{} {
	return c.done
}

// Wait blocks until the collector ends or ctx is cancelled, returning the
// final store and reason
func (c *Collector[T]) Wait(ctx context.Context) (*Store[T], Reason, error) {
	select {
	case <-ctx.Done():
		return nil, "", ctx.Err()
	case <-c.done:
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	return c.store, c.reason, nil
}
