package modules

import (
	lua "github.com/yuin/gopher-lua"

	"github.com/gatherkit/gatherd/internal/gateway"
)

// getString reads an optional string field from a Lua table
func getString(tbl *lua.LTable, field string) string {
	if v, ok := tbl.RawGetString(field).(lua.LString); ok {
		return string(v)
	}
	return ""
}

// getInt reads an optional integer field from a Lua table
func getInt(tbl *lua.LTable, field string) int {
	if v, ok := tbl.RawGetString(field).(lua.LNumber); ok {
		return int(v)
	}
	return 0
}

// getBool reads an optional boolean field from a Lua table
func getBool(tbl *lua.LTable, field string) bool {
	if v, ok := tbl.RawGetString(field).(lua.LBool); ok {
		return bool(v)
	}
	return false
}

// getFunction reads an optional function field from a Lua table
func getFunction(tbl *lua.LTable, field string) *lua.LFunction {
	if v, ok := tbl.RawGetString(field).(*lua.LFunction); ok {
		return v
	}
	return nil
}

// UserToLua converts a gateway user to a Lua table
func UserToLua(L *lua.LState, u gateway.User) *lua.LTable {
	tbl := L.NewTable()
	tbl.RawSetString("id", lua.LString(u.ID))
	tbl.RawSetString("username", lua.LString(u.Username))
	tbl.RawSetString("bot", lua.LBool(u.Bot))
	return tbl
}

// MessageToLua converts a message to a Lua table
func MessageToLua(L *lua.LState, m *gateway.Message) lua.LValue {
	if m == nil {
		return lua.LNil
	}
	tbl := L.NewTable()
	tbl.RawSetString("id", lua.LString(m.ID))
	tbl.RawSetString("channel_id", lua.LString(m.ChannelID))
	tbl.RawSetString("guild_id", lua.LString(m.GuildID))
	tbl.RawSetString("author", UserToLua(L, m.Author))
	tbl.RawSetString("content", lua.LString(m.Content))
	return tbl
}

// InteractionToLua converts an interaction to a Lua table
func InteractionToLua(L *lua.LState, in *gateway.Interaction) lua.LValue {
	if in == nil {
		return lua.LNil
	}
	tbl := L.NewTable()
	tbl.RawSetString("id", lua.LString(in.ID))
	tbl.RawSetString("type", lua.LString(string(in.Type)))
	tbl.RawSetString("component_type", lua.LString(in.ComponentType))
	tbl.RawSetString("channel_id", lua.LString(in.ChannelID))
	tbl.RawSetString("guild_id", lua.LString(in.GuildID))
	tbl.RawSetString("user", UserToLua(L, in.User))
	tbl.RawSetString("custom_id", lua.LString(in.CustomID))
	return tbl
}

// ReactionEventToLua converts a reaction event to a Lua table
func ReactionEventToLua(L *lua.LState, re *gateway.ReactionEvent) lua.LValue {
	if re == nil {
		return lua.LNil
	}
	tbl := L.NewTable()
	tbl.RawSetString("emoji", lua.LString(re.Reaction.Emoji))
	tbl.RawSetString("message_id", lua.LString(re.Reaction.MessageID))
	tbl.RawSetString("channel_id", lua.LString(re.Reaction.ChannelID))
	tbl.RawSetString("guild_id", lua.LString(re.Reaction.GuildID))
	tbl.RawSetString("message", MessageToLua(L, &re.Message))
	tbl.RawSetString("user", UserToLua(L, re.User))
	return tbl
}
