package app

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	lua "github.com/yuin/gopher-lua"

	"github.com/gatherkit/gatherd/internal/collector"
	"github.com/gatherkit/gatherd/internal/config"
	"github.com/gatherkit/gatherd/internal/gateway"
	"github.com/gatherkit/gatherd/internal/ledger"
	"github.com/gatherkit/gatherd/internal/script"
	"github.com/gatherkit/gatherd/internal/script/modules"
)

// CollectorService builds the collectors the Lua script registered and ties
// their lifecycle to the ledger. Script filters and end callbacks are
// executed through the Lua worker.
type CollectorService struct {
	cfg *config.Config
	bus *gateway.Bus
	led *ledger.Ledger
	lua *LuaService

	stops []func()
}

// NewCollectorService creates a new CollectorService.
func NewCollectorService(cfg *config.Config, bus *gateway.Bus, led *ledger.Ledger, luaSvc *LuaService) *CollectorService {
	return &CollectorService{
		cfg: cfg,
		bus: bus,
		led: led,
		lua: luaSvc,
	}
}

// Start instantiates all script-registered collectors.
// Must be called after the Lua script is loaded and the worker started.
func (s *CollectorService) Start(ctx context.Context) error {
	for _, spec := range s.lua.Runtime.Collectors().Specs() {
		if err := s.register(ctx, spec); err != nil {
			return err
		}
	}
	return nil
}

func (s *CollectorService) register(ctx context.Context, spec *modules.CollectorSpec) error {
	id := uuid.NewString()
	rt := s.lua.Runtime

	switch spec.Kind {
	case modules.KindMessages:
		c := collector.NewMessageCollector(s.bus, collector.MessageOptions{
			Options:   buildOptions(s.cfg, spec, luaFilter(ctx, rt, spec.Filter, modules.MessageToLua)),
			ChannelID: spec.ChannelID,
			GuildID:   spec.GuildID,
		})
		watchEnd(s, ctx, id, spec, c, modules.MessageToLua)

	case modules.KindInteractions:
		c := collector.NewInteractionCollector(s.bus, collector.InteractionOptions{
			Options:         buildOptions(s.cfg, spec, luaFilter(ctx, rt, spec.Filter, modules.InteractionToLua)),
			InteractionType: gateway.InteractionType(spec.InteractionType),
			ComponentType:   spec.ComponentType,
			ChannelID:       spec.ChannelID,
			GuildID:         spec.GuildID,
		})
		watchEnd(s, ctx, id, spec, c, modules.InteractionToLua)

	case modules.KindReactions:
		c := collector.NewReactionCollector(s.bus, collector.ReactionOptions{
			Options:   buildOptions(s.cfg, spec, luaFilter(ctx, rt, spec.Filter, modules.ReactionEventToLua)),
			MessageID: spec.MessageID,
			ChannelID: spec.ChannelID,
			GuildID:   spec.GuildID,
		})
		watchEnd(s, ctx, id, spec, c, modules.ReactionEventToLua)

	default:
		return fmt.Errorf("unknown collector kind %q", spec.Kind)
	}

	if err := s.led.AppendStarted(id, spec.Kind, map[string]any{
		"channel_id": spec.ChannelID,
		"guild_id":   spec.GuildID,
		"message_id": spec.MessageID,
		"max":        spec.Max,
	}); err != nil {
		log.Error().Err(err).Str("collector_id", id).Msg("Failed to record collector start")
	}

	log.Info().
		Str("collector_id", id).
		Str("kind", spec.Kind).
		Msg("Collector registered")

	return nil
}

// watchEnd hooks ledger recording and the script's on_end callback to a
// collector's end event, and keeps a stop handle for shutdown.
func watchEnd[T any](s *CollectorService, ctx context.Context, id string, spec *modules.CollectorSpec, c *collector.Collector[T], toLua func(*lua.LState, T) lua.LValue) {
	c.OnEnd(func(items *collector.Store[T], reason collector.Reason) {
		if err := s.led.AppendEnded(id, spec.Kind, string(reason), map[string]any{
			"items": items.Len(),
		}); err != nil {
			log.Error().Err(err).Str("collector_id", id).Msg("Failed to record collector end")
		}

		if spec.OnEnd == nil {
			return
		}
		s.lua.Runtime.Do(ctx, func(context.Context) {
			L := s.lua.Runtime.State()
			tbl := L.NewTable()
			items.Each(func(_ string, item T) bool {
				tbl.Append(toLua(L, item))
				return true
			})
			if err := L.CallByParam(lua.P{Fn: spec.OnEnd, NRet: 0, Protect: true}, tbl, lua.LString(string(reason))); err != nil {
				log.Error().Err(err).Str("collector_id", id).Msg("Collector on_end callback failed")
			}
		})
	})

	s.stops = append(s.stops, c.Stop)
}

// Close stops all running collectors.
func (s *CollectorService) Close() {
	for _, stop := range s.stops {
		stop()
	}
}

// buildOptions merges a script spec with configured defaults into engine options
func buildOptions[T any](cfg *config.Config, spec *modules.CollectorSpec, filter collector.FilterFunc[T]) collector.Options[T] {
	timeout := time.Duration(spec.TimeoutMs) * time.Millisecond
	if spec.TimeoutMs <= 0 {
		timeout = cfg.Collectors.DefaultTimeout.Duration()
	}
	idle := time.Duration(spec.IdleMs) * time.Millisecond
	if spec.IdleMs <= 0 {
		idle = cfg.Collectors.DefaultIdleTimeout.Duration()
	}

	return collector.Options[T]{
		Max:         spec.Max,
		Filter:      filter,
		Dispose:     spec.Dispose,
		Timeout:     timeout,
		IdleTimeout: idle,
	}
}

// luaFilter wraps a Lua filter function as an engine filter. The call is
// routed through the Lua worker and its result awaited, so the dispatching
// goroutine sees the accept/reject decision synchronously. A Lua error
// rejects the item.
func luaFilter[T any](ctx context.Context, rt *script.Runtime, fn *lua.LFunction, toLua func(*lua.LState, T) lua.LValue) collector.FilterFunc[T] {
	if fn == nil {
		return nil
	}
	return func(item T) (bool, error) {
		var accept bool
		err := rt.DoSyncWithResult(ctx, func(context.Context) error {
			L := rt.State()
			if err := L.CallByParam(lua.P{Fn: fn, NRet: 1, Protect: true}, toLua(L, item)); err != nil {
				return err
			}
			ret := L.Get(-1)
			L.Pop(1)
			accept = lua.LVAsBool(ret)
			return nil
		})
		if err != nil {
			return false, err
		}
		return accept, nil
	}
}
