package modules

import (
	"github.com/rs/zerolog/log"
	lua "github.com/yuin/gopher-lua"
)

// LogModule provides logging functions to Lua
type LogModule struct{}

// NewLogModule creates a new log module
func NewLogModule() *LogModule {
	return &LogModule{}
}

// Loader is the module loader for Lua
func (m *LogModule) Loader(L *lua.LState) int {
	mod := L.NewTable()

	L.SetField(mod, "debug", L.NewFunction(m.debug))
	L.SetField(mod, "info", L.NewFunction(m.info))
	L.SetField(mod, "warn", L.NewFunction(m.warn))
	L.SetField(mod, "error", L.NewFunction(m.errorLog))

	L.Push(mod)
	return 1
}

func (m *LogModule) debug(L *lua.LState) int {
	msg := L.CheckString(1)
	fields := m.parseFields(L, 2)

	event := log.Debug().Str("source", "lua")
	for k, v := range fields {
		event = event.Interface(k, v)
	}
	event.Msg(msg)

	return 0
}

func (m *LogModule) info(L *lua.LState) int {
	msg := L.CheckString(1)
	fields := m.parseFields(L, 2)

	event := log.Info().Str("source", "lua")
	for k, v := range fields {
		event = event.Interface(k, v)
	}
	event.Msg(msg)

	return 0
}

func (m *LogModule) warn(L *lua.LState) int {
	msg := L.CheckString(1)
	fields := m.parseFields(L, 2)

	event := log.Warn().Str("source", "lua")
	for k, v := range fields {
		event = event.Interface(k, v)
	}
	event.Msg(msg)

	return 0
}

func (m *LogModule) errorLog(L *lua.LState) int {
	msg := L.CheckString(1)
	fields := m.parseFields(L, 2)

	event := log.Error().Str("source", "lua")
	for k, v := range fields {
		event = event.Interface(k, v)
	}
	event.Msg(msg)

	return 0
}

// parseFields reads an optional table argument into structured log fields
func (m *LogModule) parseFields(L *lua.LState, idx int) map[string]any {
	tbl := L.OptTable(idx, nil)
	if tbl == nil {
		return nil
	}

	fields := make(map[string]any)
	tbl.ForEach(func(k, v lua.LValue) {
		switch val := v.(type) {
		case lua.LString:
			fields[lua.LVAsString(k)] = string(val)
		case lua.LNumber:
			fields[lua.LVAsString(k)] = float64(val)
		case lua.LBool:
			fields[lua.LVAsString(k)] = bool(val)
		default:
			fields[lua.LVAsString(k)] = v.String()
		}
	})

	return fields
}
