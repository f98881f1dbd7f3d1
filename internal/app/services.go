package app

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/gatherkit/gatherd/internal/config"
	"github.com/gatherkit/gatherd/internal/db"
	"github.com/gatherkit/gatherd/internal/gateway"
	"github.com/gatherkit/gatherd/internal/ledger"
)

// Services is a container for all application services.
// It manages service initialization order and dependencies.
type Services struct {
	cfg *config.Config

	// Core infrastructure
	DB     *db.DB
	Ledger *ledger.Ledger
	Bus    *gateway.Bus

	// High-level services
	Lua        *LuaService
	Collectors *CollectorService
	Health     *HealthService
	Ingest     *IngestService
}

// NewServices creates all services with proper dependency injection.
func NewServices(cfg *config.Config) (*Services, error) {
	s := &Services{cfg: cfg}

	// Initialize database
	database, err := db.Open(cfg.Database.Path)
	if err != nil {
		return nil, err
	}
	s.DB = database

	// Initialize ledger
	s.Ledger = ledger.New(database.DB)

	// Initialize gateway bus
	s.Bus = gateway.NewWithQueueSize(cfg.Gateway.GetQueueSize())

	// Initialize Lua service
	s.Lua = NewLuaService(cfg)

	// Initialize collector service
	s.Collectors = NewCollectorService(cfg, s.Bus, s.Ledger, s.Lua)

	// Initialize health service
	s.Health = NewHealthService(cfg, s.DB, s.Bus)

	// Initialize ingest service
	s.Ingest = NewIngestService(cfg, s.Bus)

	return s, nil
}

// Start starts all services in the correct order.
func (s *Services) Start(ctx context.Context) error {
	// Load Lua script before starting the worker
	if err := s.Lua.LoadScript(); err != nil {
		return err
	}

	// Start the Lua worker, then build the collectors the script registered
	s.Lua.Start(ctx)
	if err := s.Collectors.Start(ctx); err != nil {
		return err
	}

	// Start background services
	s.Health.Start(ctx)
	s.Ingest.Start(ctx)
	go s.runLedgerCleanup(ctx)

	return nil
}

// runLedgerCleanup periodically removes ledger entries past retention
func (s *Services) runLedgerCleanup(ctx context.Context) {
	interval := s.cfg.Ledger.CleanupInterval.Duration()
	if interval <= 0 {
		return
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			removed, err := s.Ledger.Cleanup(s.cfg.Ledger.RetentionDays)
			if err != nil {
				log.Error().Err(err).Msg("Ledger cleanup failed")
				continue
			}
			if removed > 0 {
				log.Debug().Int64("removed", removed).Msg("Ledger cleanup done")
			}
		}
	}
}

// Stop gracefully stops all services.
func (s *Services) Stop() error {
	s.Close()
	return nil
}

// Close releases all resources.
func (s *Services) Close() {
	if s.Collectors != nil {
		s.Collectors.Close()
	}
	if s.Bus != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), s.cfg.GetShutdownTimeout())
		s.Bus.Close(shutdownCtx)
		cancel()
	}
	if s.Lua != nil {
		s.Lua.Close()
	}
	if s.DB != nil {
		s.DB.Close()
	}
}
