package collector

import (
	"github.com/gatherkit/gatherd/internal/gateway"
)

// InteractionOptions configures an interaction collector
type InteractionOptions struct {
	Options[*gateway.Interaction]

	InteractionType gateway.InteractionType // only collect this kind, "" = any
	ComponentType   string                  // only collect components of this subtype, "" = any
	ChannelID       string                  // only collect interactions in this channel, "" = any
	GuildID         string                  // end on this guild's deletion, "" = none
}

// NewInteractionCollector collects interactions from the bus, keyed by
// interaction ID. Autocomplete interactions carry no channel, so a channel
// scope rejects them. Deletion of the scoped channel (threads included) or
// guild ends the collector with channelDelete / guildDelete.
func NewInteractionCollector(bus *gateway.Bus, opts InteractionOptions) *Collector[*gateway.Interaction] {
	c := newCollector(opts.Options, strategy[*gateway.Interaction]{
		collect: func(ev gateway.Event) (string, *gateway.Interaction, bool) {
			in, ok := ev.Data.(*gateway.Interaction)
			if !ok {
				return "", nil, false
			}
			if opts.InteractionType != "" && in.Type != opts.InteractionType {
				return "", nil, false
			}
			if opts.ChannelID != "" && in.ChannelID != opts.ChannelID {
				return "", nil, false
			}
			if opts.ComponentType != "" && in.ComponentType != opts.ComponentType {
				return "", nil, false
			}
			return in.ID, in, true
		},
		dispose: func(ev gateway.Event) (string, *gateway.Interaction, bool) {
			in, ok := ev.Data.(*gateway.Interaction)
			if !ok {
				return "", nil, false
			}
			return in.ID, in, true
		},
	})

	channelGone := func(ev gateway.Event) {
		ch, ok := ev.Data.(*gateway.Channel)
		if ok && opts.ChannelID != "" && ch.ID == opts.ChannelID {
			c.StopWithReason(ReasonChannelDelete)
		}
	}

	c.bind(
		bus.Subscribe(gateway.EventInteractionCreate, c.handleCollect),
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
