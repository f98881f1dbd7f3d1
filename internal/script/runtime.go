// Package script embeds a Lua runtime that lets a user script declare
// collectors, filters and end callbacks.
package script

import (
	"context"
	"fmt"
	"sync"

	"github.com/rs/zerolog/log"
	lua "github.com/yuin/gopher-lua"

	"github.com/gatherkit/gatherd/internal/script/modules"
)

// ErrRuntimeClosed is returned when the Lua runtime is closed
var ErrRuntimeClosed = fmt.Errorf("lua runtime closed")

// Work represents work to be executed on the Lua VM.
// All Lua execution MUST go through this to ensure thread safety.
type Work func(ctx context.Context)

// Runtime manages the Lua VM with single-threaded execution
type Runtime struct {
	L *lua.LState

	// Modules
	collectorsModule *modules.CollectorsModule

	// Work queue for thread-safe Lua execution
	workQueue chan Work

	// Shutdown signaling - closing this channel signals senders to stop.
	// Using a channel in select is race-free (unlike mutex + bool)
	closing   chan struct{}
	closeOnce sync.Once
}

// NewRuntime creates a new Lua runtime
func NewRuntime() *Runtime {
	L := lua.NewState()

	r := &Runtime{
		L:         L,
		workQueue: make(chan Work, 100),
		closing:   make(chan struct{}),
	}

	r.registerModules()

	return r
}

// registerModules registers all Lua modules
func (r *Runtime) registerModules() {
	// Log module
	logModule := modules.NewLogModule()
	r.L.PreloadModule("log", logModule.Loader)

	// Collectors module (collector registration from the script)
	r.collectorsModule = modules.NewCollectorsModule()
	r.L.PreloadModule("collectors", r.collectorsModule.Loader)
}

// Close signals the runtime to stop accepting new work and closes the Lua state.
// This is safe to call concurrently with Do/DoSync - they will see the closing signal.
func (r *Runtime) Close() {
	r.closeOnce.Do(func() {
		close(r.closing)
	})
	// Note: We don't close workQueue to avoid send-on-closed-channel panics.
	// Run() will exit when it sees the closing signal.
	r.L.Close()
}

// State returns the Lua state. Only touch it from within queued Work.
func (r *Runtime) State() *lua.LState {
	return r.L
}

// Collectors returns the collectors module with the script's registrations
func (r *Runtime) Collectors() *modules.CollectorsModule {
	return r.collectorsModule
}

// Do queues work to be executed on the Lua VM (thread-safe, non-blocking).
// Returns false if the runtime is closing, queue is full, or context is cancelled.
func (r *Runtime) Do(ctx context.Context, work Work) bool {
	select {
	case <-r.closing:
		log.Warn().Msg("Lua runtime closing, dropping work")
		return false
	case <-ctx.Done():
		log.Warn().Msg("Context cancelled, dropping Lua work")
		return false
	case r.workQueue <- work:
		return true
	default:
		log.Warn().Msg("Lua work queue full, dropping work")
		return false
	}
}

// DoSync queues work and blocks until there's space (thread-safe, blocking).
// Returns error if the runtime is closing or context is cancelled.
func (r *Runtime) DoSync(ctx context.Context, work Work) error {
	select {
	case <-r.closing:
		return ErrRuntimeClosed
	case <-ctx.Done():
		return ctx.Err()
	case r.workQueue <- work:
		return nil
	}
}

// DoSyncWithResult queues work, waits for space, and waits for the result.
// Used by collector filters so the accept/reject decision comes back to the
// dispatching goroutine.
func (r *Runtime) DoSyncWithResult(ctx context.Context, work func(context.Context) error) error {
	done := make(chan error, 1)
	wrapped := Work(func(c context.Context) {
		done <- work(c)
	})

	// Queue the work
	select {
	case <-r.closing:
		return ErrRuntimeClosed
	case <-ctx.Done():
		return ctx.Err()
	case r.workQueue <- wrapped:
		// Successfully queued
	}

	// Wait for result
	select {
	case <-r.closing:
		return ErrRuntimeClosed
	case <-ctx.Done():
		return ctx.Err()
	case err := <-done:
		return err
	}
}

// Run starts the Lua worker goroutine - this is the ONLY goroutine that touches Lua.
// It includes panic recovery to prevent crashes from killing the worker.
// Exits when context is cancelled or runtime is closed.
func (r *Runtime) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			r.drainQueue(ctx)
			return
		case <-r.closing:
			r.drainQueue(ctx)
			return
		case work := <-r.workQueue:
			r.executeWork(ctx, work)
		}
	}
}

// drainQueue processes any remaining work in the queue before exiting
func (r *Runtime) drainQueue(ctx context.Context) {
	for {
		select {
		case work := <-r.workQueue:
			r.executeWork(ctx, work)
		default:
			return
		}
	}
}

// executeWork runs a single work item with panic recovery
func (r *Runtime) executeWork(ctx context.Context, work Work) {
	defer func() {
		if rec := recover(); rec != nil {
			log.Error().
				Interface("panic", rec).
				Msg("Lua work panicked - worker continuing")
		}
	}()
	r.L.SetContext(ctx)
	work(ctx)
}

// LoadScript loads and executes a Lua script (must be called before Run)
func (r *Runtime) LoadScript(path string) error {
	log.Info().Str("path", path).Msg("Loading Lua script")

	if err := r.L.DoFile(path); err != nil {
		return fmt.Errorf("failed to execute Lua script: %w", err)
	}

	log.Info().Msg("Lua script loaded successfully")
	return nil
}
