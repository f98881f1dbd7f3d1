package app

import (
	"context"

	"github.com/rs/zerolog/log"

	"github.com/gatherkit/gatherd/internal/config"
	"github.com/gatherkit/gatherd/internal/gateway"
	"github.com/gatherkit/gatherd/internal/ingest"
)

// IngestService runs the HTTP ingest server feeding the gateway bus.
type IngestService struct {
	cfg    *config.Config
	server *ingest.Server
}

// NewIngestService creates a new IngestService.
func NewIngestService(cfg *config.Config, bus *gateway.Bus) *IngestService {
	return &IngestService{
		cfg:    cfg,
		server: ingest.NewServer(cfg.Ingest.Host, cfg.Ingest.Port, bus),
	}
}

// Start begins the ingest server if enabled.
func (s *IngestService) Start(ctx context.Context) {
	if !s.cfg.Ingest.Enabled {
		return
	}

	go func() {
		if err := s.server.Run(ctx, s.cfg.GetShutdownTimeout()); err != nil {
			log.Error().Err(err).Msg("Ingest server error")
		}
	}()
}
