package collector

import (
	"github.com/gatherkit/gatherd/internal/gateway"
)

// ReactionOptions configures a reaction collector
type ReactionOptions struct {
	Options[*gateway.ReactionEvent]

	MessageID string // only collect reactions on this message, "" = any
	ChannelID string // only collect reactions in this channel, "" = any
	GuildID   string // only collect reactions in this guild, "" = any
}

// NewReactionCollector collects reaction add events from the bus, keyed by
// the emoji string: distinct emoji on the same message are distinct entries,
// re-adding the same emoji overwrites the existing one. Reaction removals go
// through the dispose path. Deletion of the scoped message, channel (threads
// included) or guild ends the collector with messageDelete / channelDelete /
// guildDelete.
func NewReactionCollector(bus *gateway.Bus, opts ReactionOptions) *Collector[*gateway.ReactionEvent] {
	inScope := func(ev gateway.Event) (string, *gateway.ReactionEvent, bool) {
		re, ok := ev.Data.(*gateway.ReactionEvent)
		if !ok {
			return "", nil, false
		}
		if opts.MessageID != "" && re.Reaction.MessageID != opts.MessageID {
			return "", nil, false
		}
		if opts.ChannelID != "" && re.Reaction.ChannelID != opts.ChannelID {
			return "", nil, false
		}
		if opts.GuildID != "" && re.Reaction.GuildID != opts.GuildID {
			return "", nil, false
		}
		return re.Reaction.Emoji, re, true
	}

	c := newCollector(opts.Options, strategy[*gateway.ReactionEvent]{
		collect: inScope,
		dispose: inScope,
	})

	channelGone := func(ev gateway.Event) {
		ch, ok := ev.Data.(*gateway.Channel)
		if ok && opts.ChannelID != "" && ch.ID == opts.ChannelID {
			c.StopWithReason(ReasonChannelDelete)
		}
	}

	c.bind(
		bus.Subscribe(gateway.EventReactionAdd, c.handleCollect),
		bus.Subscribe(gateway.EventReactionRemove, c.handleDispose),
		bus.Subscribe(gateway.EventMessageDelete, func(ev gateway.Event) {
			msg, ok := ev.Data.(*gateway.Message)
			if ok && opts.MessageID != "" && msg.ID == opts.MessageID {
				c.StopWithReason(ReasonMessageDelete)
			}
		}),
		bus.Subscribe(gateway.EventChannelDelete, channelGone),
		bus.Subscribe(gateway.EventThreadDelete, channelGone),
		bus.Subscribe(gateway.EventGuildDelete, func(ev gateway.Event) {
			g, ok := ev.Data.(*gateway.Guild)
			if ok && opts.GuildID != "" && g.ID == opts.GuildID {
				c.StopWithReason(ReasonGuildDelete)
			}
		}),
	)

	return c
}
