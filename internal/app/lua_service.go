package app

import (
	"context"

	"github.com/gatherkit/gatherd/internal/config"
	"github.com/gatherkit/gatherd/internal/script"
)

// LuaService wraps the Lua runtime and provides thread-safe execution.
type LuaService struct {
	cfg     *config.Config
	Runtime *script.Runtime
}

// NewLuaService creates a new LuaService.
func NewLuaService(cfg *config.Config) *LuaService {
	return &LuaService{
		cfg:     cfg,
		Runtime: script.NewRuntime(),
	}
}

// LoadScript loads and executes the Lua script.
// Must be called before Start().
func (s *LuaService) LoadScript() error {
	return s.Runtime.LoadScript(s.cfg.Script)
}

// Start begins the Lua worker goroutine.
// This is the ONLY goroutine that touches the Lua state.
func (s *LuaService) Start(ctx context.Context) {
	go s.Runtime.Run(ctx)
}

// Close closes the Lua runtime.
func (s *LuaService) Close() {
	if s.Runtime != nil {
		s.Runtime.Close()
	}
}
