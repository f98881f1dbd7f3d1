package collector

import (
	"github.com/gatherkit/gatherd/internal/gateway"
)

// MessageOptions configures a message collector
type MessageOptions struct {
	Options[*gateway.Message]

	ChannelID string // only collect messages in this channel, "" = any
	GuildID   string // end on this guild's deletion, "" = none
}

// NewMessageCollector collects messages from the bus, keyed by message ID.
//
// Single message deletions go through the dispose path (gated on
// Options.Dispose); bulk deletions evict every listed ID silently regardless
// of the Dispose flag. Deletion of the scoped channel (threads included) or
// guild ends the collector with channelDelete / guildDelete.
func NewMessageCollector(bus *gateway.Bus, opts MessageOptions) *Collector[*gateway.Message] {
	asMessage := func(ev gateway.Event) (string, *gateway.Message, bool) {
		msg, ok := ev.Data.(*gateway.Message)
		if !ok {
			return "", nil, false
		}
		return msg.ID, msg, true
	}

	c := newCollector(opts.Options, strategy[*gateway.Message]{
		collect: func(ev gateway.Event) (string, *gateway.Message, bool) {
			key, msg, ok := asMessage(ev)
			if !ok {
				return "", nil, false
			}
			if opts.ChannelID != "" && msg.ChannelID != opts.ChannelID {
				return "", nil, false
			}
			return key, msg, true
		},
		dispose: asMessage,
	})

	channelGone := func(ev gateway.Event) {
		ch, ok := ev.Data.(*gateway.Channel)
		if ok && opts.ChannelID != "" && ch.ID == opts.ChannelID {
			c.StopWithReason(ReasonChannelDelete)
		}
	}

	c.bind(
		bus.Subscribe(gateway.EventMessageCreate, c.handleCollect),
		bus.Subscribe(gateway.EventMessageDelete, c.handleDispose),
		bus.Subscribe(gateway.EventMessageDeleteBulk, func(ev gateway.Event) {
			batch, ok := ev.Data.(*gateway.MessageBatch)
			if !ok {
				return
			}
			for _, id := range batch.IDs {
				c.evict(id)
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
