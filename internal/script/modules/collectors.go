package modules

import (
	lua "github.com/yuin/gopher-lua"
)

// Collector kinds registrable from Lua
const (
	KindMessages     = "messages"
	KindInteractions = "interactions"
	KindReactions    = "reactions"
)

// CollectorSpec holds a collector registration made by the script.
// The actual collector is built later by the collector service, with the
// filter and on_end functions run through the Lua worker.
type CollectorSpec struct {
	Kind string

	// Scopes
	ChannelID       string
	GuildID         string
	MessageID       string
	InteractionType string
	ComponentType   string

	// Engine options
	Max       int
	Dispose   bool
	TimeoutMs int
	IdleMs    int

	Filter *lua.LFunction
	OnEnd  *lua.LFunction
}

// CollectorsModule provides the collectors Lua module
type CollectorsModule struct {
	specs []*CollectorSpec
}

// NewCollectorsModule creates a new collectors module
func NewCollectorsModule() *CollectorsModule {
	return &CollectorsModule{}
}

// Loader is the module loader for Lua
func (m *CollectorsModule) Loader(L *lua.LState) int {
	mod := L.NewTable()

	L.SetField(mod, "messages", L.NewFunction(m.messages))
	L.SetField(mod, "interactions", L.NewFunction(m.interactions))
	L.SetField(mod, "reactions", L.NewFunction(m.reactions))

	L.Push(mod)
	return 1
}

// collectors.messages{channel_id=..., guild_id=..., max=..., dispose=..., timeout_ms=..., idle_ms=..., filter=fn, on_end=fn}
func (m *CollectorsModule) messages(L *lua.LState) int {
	m.register(L, KindMessages)
	return 0
}

// collectors.interactions{interaction_type=..., component_type=..., channel_id=..., guild_id=..., ...}
func (m *CollectorsModule) interactions(L *lua.LState) int {
	m.register(L, KindInteractions)
	return 0
}

// collectors.reactions{message_id=..., channel_id=..., guild_id=..., ...}
func (m *CollectorsModule) reactions(L *lua.LState) int {
	m.register(L, KindReactions)
	return 0
}

func (m *CollectorsModule) register(L *lua.LState, kind string) {
	tbl := L.CheckTable(1)

	m.specs = append(m.specs, &CollectorSpec{
		Kind:            kind,
		ChannelID:       getString(tbl, "channel_id"),
		GuildID:         getString(tbl, "guild_id"),
		MessageID:       getString(tbl, "message_id"),
		InteractionType: getString(tbl, "interaction_type"),
		ComponentType:   getString(tbl, "component_type"),
		Max:             getInt(tbl, "max"),
		Dispose:         getBool(tbl, "dispose"),
		TimeoutMs:       getInt(tbl, "timeout_ms"),
		IdleMs:          getInt(tbl, "idle_ms"),
		Filter:          getFunction(tbl, "filter"),
		OnEnd:           getFunction(tbl, "on_end"),
	})
}

// Specs returns all collector registrations made by the script
func (m *CollectorsModule) Specs() []*CollectorSpec {
	return m.specs
}
