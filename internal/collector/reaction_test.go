package collector

import (
	"context"
	"testing"
	"time"

	"github.com/gatherkit/gatherd/internal/gateway"
)

func publishReaction(bus *gateway.Bus, eventType gateway.EventType, emoji, messageID, userID string) {
	bus.Publish(gateway.Event{Type: eventType, Data: &gateway.ReactionEvent{
		Reaction: gateway.Reaction{Emoji: emoji, MessageID: messageID, ChannelID: "C1"},
		Message:  gateway.Message{ID: messageID, ChannelID: "C1"},
		User:     gateway.User{ID: userID},
	}})
}

func TestReactionCollectorEmojiKeyedLimit(t *testing.T) {
	bus := gateway.New()
	defer closeBus(t, bus)

	c := NewReactionCollector(bus, ReactionOptions{
		Options:   Options[*gateway.ReactionEvent]{Max: 2},
		MessageID: "M1",
	})

	var endCount int
	c.OnEnd(func(*Store[*gateway.ReactionEvent], Reason) { endCount++ })

	publishReaction(bus, gateway.EventReactionAdd, "🔥", "M1", "u1")
	publishReaction(bus, gateway.EventReactionAdd, "🔥", "M1", "u2") // same key, overwrites
	publishReaction(bus, gateway.EventReactionAdd, "👍", "M1", "u3") // second entry, hits the limit

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	items, reason, err := c.Wait(ctx)
	if err != nil {
		t.Fatalf("Wait returned error: %v", err)
	}

	if reason != ReasonLimit {
		t.Errorf("end reason = %q, want %q", reason, ReasonLimit)
	}
	if items.Len() != 2 {
		t.Fatalf("final size = %d, want 2", items.Len())
	}
	if re, _ := items.Get("🔥"); re.User.ID != "u2" {
		t.Errorf("re-adding the same emoji must overwrite, got user %q", re.User.ID)
	}

	drainBus(t, bus)
	if endCount != 1 {
		t.Errorf("end fired %d times, want 1", endCount)
	}
}

func TestReactionCollectorScopeRejectsOtherMessages(t *testing.T) {
	bus := gateway.New()
	defer closeBus(t, bus)

	c := NewReactionCollector(bus, ReactionOptions{MessageID: "M1"})

	publishReaction(bus, gateway.EventReactionAdd, "🔥", "M2", "u1")
	drainBus(t, bus)

	if c.Collected().Len() != 0 {
		t.Error("reaction on another message must not be collected")
	}

	c.Stop()
}

func TestReactionCollectorDisposeOnRemove(t *testing.T) {
	bus := gateway.New()
	defer closeBus(t, bus)

	c := NewReactionCollector(bus, ReactionOptions{
		Options:   Options[*gateway.ReactionEvent]{Dispose: true},
		MessageID: "M1",
	})

	var disposed []string
	c.OnDispose(func(key string, _ *gateway.ReactionEvent) { disposed = append(disposed, key) })

	publishReaction(bus, gateway.EventReactionAdd, "🔥", "M1", "u1")
	publishReaction(bus, gateway.EventReactionRemove, "🔥", "M1", "u1")
	drainBus(t, bus)

	if c.Collected().Has("🔥") {
		t.Error("removed reaction must be evicted with dispose enabled")
	}
	if len(disposed) != 1 || disposed[0] != "🔥" {
		t.Errorf("dispose fired for %v, want [🔥]", disposed)
	}

	c.Stop()
}

func TestReactionCollectorMessageDeleteStops(t *testing.T) {
	bus := gateway.New()
	defer closeBus(t, bus)

	c := NewReactionCollector(bus, ReactionOptions{MessageID: "M1"})

	bus.Publish(gateway.Event{Type: gateway.EventMessageDelete, Data: &gateway.Message{ID: "M1", ChannelID: "C1"}})
	drainBus(t, bus)

	if c.EndReason() != ReasonMessageDelete {
		t.Errorf("end reason = %q, want %q", c.EndReason(), ReasonMessageDelete)
	}
}

func TestReactionCollectorUnsubscribesOnStop(t *testing.T) {
	bus := gateway.New()
	defer closeBus(t, bus)

	c := NewReactionCollector(bus, ReactionOptions{MessageID: "M1", ChannelID: "C1", GuildID: "G1"})
	c.Stop()

	for _, et := range []gateway.EventType{
		gateway.EventReactionAdd,
		gateway.EventReactionRemove,
		gateway.EventMessageDelete,
		gateway.EventChannelDelete,
		gateway.EventThreadDelete,
		gateway.EventGuildDelete,
	} {
		if n := bus.HandlerCount(et); n != 0 {
			t.Errorf("%s has %d residual subscriptions after stop, want 0", et, n)
		}
	}
}
