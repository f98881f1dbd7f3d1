// Package gateway defines the event catalogue of a chat gateway and an
// in-process event bus that dispatches those events to subscribers.
package gateway

// EventType represents the type of gateway event
type EventType string

const (
	EventMessageCreate     EventType = "messageCreate"
	EventMessageDelete     EventType = "messageDelete"
	EventMessageDeleteBulk EventType = "messageDeleteBulk"
	EventInteractionCreate EventType = "interactionCreate"
	EventReactionAdd       EventType = "reactionAdd"
	EventReactionRemove    EventType = "reactionRemove"
	EventChannelDelete     EventType = "channelDelete"
	EventThreadDelete      EventType = "threadDelete"
	EventGuildDelete       EventType = "guildDelete"
)

// InteractionType classifies an interaction payload
type InteractionType string

const (
	InteractionCommand      InteractionType = "command"
	InteractionAutocomplete InteractionType = "autocomplete"
	InteractionComponent    InteractionType = "component"
	InteractionModalSubmit  InteractionType = "modalSubmit"
)

// User is a gateway user reference
type User struct {
	ID       string `json:"id"`
	Username string `json:"username,omitempty"`
	Bot      bool   `json:"bot,omitempty"`
}

// Message is a chat message payload
type Message struct {
	ID        string `json:"id"`
	ChannelID string `json:"channel_id"`
	GuildID   string `json:"guild_id,omitempty"`
	Author    User   `json:"author"`
	Content   string `json:"content,omitempty"`
}

// Interaction is a command/component/modal interaction payload.
// Autocomplete interactions carry no channel reference.
type Interaction struct {
	ID            string          `json:"id"`
	Type          InteractionType `json:"type"`
	ComponentType string          `json:"component_type,omitempty"`
	ChannelID     string          `json:"channel_id,omitempty"`
	GuildID       string          `json:"guild_id,omitempty"`
	User          User            `json:"user"`
	CustomID      string          `json:"custom_id,omitempty"`
}

// Reaction is a single emoji reaction on a message
type Reaction struct {
	Emoji     string `json:"emoji"`
	MessageID string `json:"message_id"`
	ChannelID string `json:"channel_id"`
	GuildID   string `json:"guild_id,omitempty"`
	Count     int    `json:"count,omitempty"`
}

// ReactionEvent is the payload of reactionAdd/reactionRemove: the reaction,
// the message it targets and the user who (un)reacted.
type ReactionEvent struct {
	Reaction Reaction `json:"reaction"`
	Message  Message  `json:"message"`
	User     User     `json:"user"`
}

// Channel is a channel or thread reference
type Channel struct {
	ID      string `json:"id"`
	GuildID string `json:"guild_id,omitempty"`
	Name    string `json:"name,omitempty"`
}

// Guild is a guild reference
type Guild struct {
	ID   string `json:"id"`
	Name string `json:"name,omitempty"`
}

// MessageBatch is the payload of messageDeleteBulk
type MessageBatch struct {
	ChannelID string   `json:"channel_id"`
	GuildID   string   `json:"guild_id,omitempty"`
	IDs       []string `json:"ids"`
}

// Event is a single gateway event with its typed payload.
// Data holds a pointer to one of the payload types above, depending on Type.
type Event struct {
	Type EventType
	Data any
}
