package collector

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/gatherkit/gatherd/internal/gateway"
)

// newStringCollector builds an engine over plain string events: the event's
// Data is both key and item. No bus involved, events are fed directly.
func newStringCollector(opts Options[string]) *Collector[string] {
	pass := func(ev gateway.Event) (string, string, bool) {
		s, ok := ev.Data.(string)
		if !ok {
			return "", "", false
		}
		return s, s, true
	}
	return newCollector(opts, strategy[string]{collect: pass, dispose: pass})
}

func feed(c *Collector[string], key string) {
	c.handleCollect(gateway.Event{Type: gateway.EventMessageCreate, Data: key})
}

func remove(c *Collector[string], key string) {
	c.handleDispose(gateway.Event{Type: gateway.EventMessageDelete, Data: key})
}

func TestLimitStopsCollector(t *testing.T) {
	c := newStringCollector(Options[string]{Max: 3})

	var collected int
	c.OnCollect(func(string, string) { collected++ })

	var endCount int
	var endReason Reason
	var endLen int
	c.OnEnd(func(items *Store[string], reason Reason) {
		endCount++
		endReason = reason
		endLen = items.Len()
	})

	for _, k := range []string{"a", "b", "c", "d", "e"} {
		feed(c, k)
	}

	if collected != 3 {
		t.Errorf("collect fired %d times, want 3", collected)
	}
	if endCount != 1 {
		t.Fatalf("end fired %d times, want 1", endCount)
	}
	if endReason != ReasonLimit {
		t.Errorf("end reason = %q, want %q", endReason, ReasonLimit)
	}
	if endLen != 3 {
		t.Errorf("final size = %d, want 3", endLen)
	}
}

func TestStopIsIdempotent(t *testing.T) {
	c := newStringCollector(Options[string]{})

	var endCount int
	c.OnEnd(func(*Store[string], Reason) { endCount++ })

	c.StopWithReason(Reason("first"))
	c.StopWithReason(Reason("second"))
	c.Stop()

	if endCount != 1 {
		t.Errorf("end fired %d times after three stops, want 1", endCount)
	}
	if c.EndReason() != Reason("first") {
		t.Errorf("end reason = %q, the first stop should win", c.EndReason())
	}
}

func TestNoCollectAfterStop(t *testing.T) {
	c := newStringCollector(Options[string]{})

	var collected int
	c.OnCollect(func(string, string) { collected++ })

	feed(c, "a")
	c.Stop()
	feed(c, "b")

	if collected != 1 {
		t.Errorf("collect fired %d times, want 1 (events after stop are ignored)", collected)
	}
	if c.Collected().Len() != 1 {
		t.Errorf("store size = %d after stop, want 1", c.Collected().Len())
	}
}

func TestOverwriteSameKey(t *testing.T) {
	c := newStringCollector(Options[string]{})

	feed(c, "a")
	feed(c, "a")
	feed(c, "b")

	if c.Collected().Len() != 2 {
		t.Errorf("store size = %d, want 2 (same key overwrites)", c.Collected().Len())
	}
}

func TestFilterRejects(t *testing.T) {
	c := newStringCollector(Options[string]{
		Filter: func(item string) (bool, error) {
			return item != "skip", nil
		},
	})

	feed(c, "keep")
	feed(c, "skip")

	if c.Collected().Has("skip") {
		t.Error("rejected item must not be collected")
	}
	if !c.Collected().Has("keep") {
		t.Error("accepted item must be collected")
	}
}

func TestFilterErrorRejects(t *testing.T) {
	c := newStringCollector(Options[string]{
		Filter: func(string) (bool, error) {
			return true, errors.New("boom")
		},
	})

	feed(c, "a")

	if c.Collected().Len() != 0 {
		t.Error("a failing filter must reject the item, not collect it")
	}
	if c.Ended() {
		t.Error("a failing filter must not end the collector")
	}
}

func TestFilterStoppingCollectorSuppressesEmission(t *testing.T) {
	c := newStringCollector(Options[string]{})
	c.opts.Filter = func(string) (bool, error) {
		// Simulates a stop racing with an in-flight evaluation
		c.Stop()
		return true, nil
	}

	var collected int
	c.OnCollect(func(string, string) { collected++ })

	feed(c, "a")

	if collected != 0 {
		t.Error("collect emission must be suppressed when stop won the race")
	}
	if c.Collected().Len() != 0 {
		t.Error("item must not be inserted after stop")
	}
}

func TestDisposeEnabled(t *testing.T) {
	c := newStringCollector(Options[string]{Dispose: true})

	var disposed []string
	c.OnDispose(func(key string, _ string) { disposed = append(disposed, key) })

	feed(c, "a")
	remove(c, "a")
	remove(c, "a") // already gone, no second dispose

	if c.Collected().Has("a") {
		t.Error("disposed key must be removed from the store")
	}
	if len(disposed) != 1 || disposed[0] != "a" {
		t.Errorf("dispose fired for %v, want exactly [a]", disposed)
	}
}

func TestDisposeDisabled(t *testing.T) {
	c := newStringCollector(Options[string]{Dispose: false})

	var disposed int
	c.OnDispose(func(string, string) { disposed++ })

	feed(c, "a")
	remove(c, "a")

	if !c.Collected().Has("a") {
		t.Error("with dispose disabled the item must stay collected")
	}
	if disposed != 0 {
		t.Errorf("dispose fired %d times with dispose disabled, want 0", disposed)
	}
}

func TestOnceCollect(t *testing.T) {
	c := newStringCollector(Options[string]{})

	var once, always int
	c.OnceCollect(func(string, string) { once++ })
	c.OnCollect(func(string, string) { always++ })

	feed(c, "a")
	feed(c, "b")

	if once != 1 {
		t.Errorf("once handler fired %d times, want 1", once)
	}
	if always != 2 {
		t.Errorf("persistent handler fired %d times, want 2", always)
	}
}

func TestAbsoluteTimeoutFiresDespiteActivity(t *testing.T) {
	c := newStringCollector(Options[string]{Timeout: 120 * time.Millisecond})

	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < 10; i++ {
			feed(c, "k")
			time.Sleep(25 * time.Millisecond)
		}
	}()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	_, reason, err := c.Wait(ctx)
	if err != nil {
		t.Fatalf("Wait returned error: %v", err)
	}
	if reason != ReasonTimeout {
		t.Errorf("end reason = %q, want %q", reason, ReasonTimeout)
	}
	<-done
}

func TestIdleTimeoutResetsOnActivity(t *testing.T) {
	c := newStringCollector(Options[string]{IdleTimeout: 150 * time.Millisecond})

	// Keep feeding well inside the idle window; the collector must stay alive
	for i := 0; i < 4; i++ {
		feed(c, "k")
		time.Sleep(40 * time.Millisecond)
		if c.Ended() {
			t.Fatal("collector ended with idle while events kept arriving")
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	start := time.Now()
	_, reason, err := c.Wait(ctx)
	if err != nil {
		t.Fatalf("Wait returned error: %v", err)
	}
	if reason != ReasonIdle {
		t.Errorf("end reason = %q, want %q", reason, ReasonIdle)
	}
	if elapsed := time.Since(start); elapsed > time.Second {
		t.Errorf("idle end took %v after last event, want ~150ms", elapsed)
	}
}

func TestWaitRespectsContext(t *testing.T) {
	c := newStringCollector(Options[string]{})

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, _, err := c.Wait(ctx)
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("Wait error = %v, want deadline exceeded", err)
	}

	c.Stop()
	_, reason, err := c.Wait(context.Background())
	if err != nil {
		t.Fatalf("Wait after stop returned error: %v", err)
	}
	if reason != ReasonUser {
		t.Errorf("end reason = %q, want %q", reason, ReasonUser)
	}
}

func TestEvictIsSilent(t *testing.T) {
	c := newStringCollector(Options[string]{Dispose: false})

	var disposed int
	c.OnDispose(func(string, string) { disposed++ })

	feed(c, "a")
	c.evict("a")

	if c.Collected().Has("a") {
		t.Error("evicted key must be removed")
	}
	if disposed != 0 {
		t.Error("evict must not emit dispose")
	}
}
