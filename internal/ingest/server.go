// Package ingest exposes an HTTP endpoint that feeds external gateway events
// into the bus.
package ingest

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/gatherkit/gatherd/internal/gateway"
)

// envelope is the wire format accepted on /v1/events
type envelope struct {
	Type    gateway.EventType `json:"type"`
	Payload json.RawMessage   `json:"payload"`
}

// Server is an HTTP server that receives gateway events and publishes them to the bus.
type Server struct {
	addr       string
	bus        *gateway.Bus
	httpServer *http.Server
}

// NewServer creates a new ingest server.
func NewServer(host string, port int, bus *gateway.Bus) *Server {
	return &Server{
		addr: fmt.Sprintf("%s:%d", host, port),
		bus:  bus,
	}
}

// Run starts the ingest server. It blocks until the context is cancelled.
func (s *Server) Run(ctx context.Context, shutdownTimeout time.Duration) error {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /v1/events", s.handleEvent)

	s.httpServer = &http.Server{
		Addr:    s.addr,
		Handler: mux,
	}

	log.Info().Str("addr", s.addr).Msg("Starting ingest server")

	// Handle graceful shutdown
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
			log.Error().Err(err).Msg("Ingest server shutdown error")
		}
	}()

	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}

	return nil
}

// handleEvent decodes an event envelope and publishes it to the bus.
func (s *Server) handleEvent(w http.ResponseWriter, r *http.Request) {
	var env envelope
	if err := json.NewDecoder(r.Body).Decode(&env); err != nil {
		http.Error(w, "invalid JSON body", http.StatusBadRequest)
		return
	}
	defer r.Body.Close()

	data, err := decodePayload(env.Type, env.Payload)
	if err != nil {
		log.Debug().Err(err).Str("event_type", string(env.Type)).Msg("Rejected ingest event")
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	eventID := uuid.NewString()

	log.Debug().
		Str("event_type", string(env.Type)).
		Str("event_id", eventID).
		Msg("Received gateway event")

	s.bus.Publish(gateway.Event{Type: env.Type, Data: data})

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusAccepted)
	fmt.Fprintf(w, `{"status":"accepted","event_id":%q}`, eventID)
}

// decodePayload maps an event type to its typed payload
func decodePayload(eventType gateway.EventType, raw json.RawMessage) (any, error) {
	var data any

	switch eventType {
	case gateway.EventMessageCreate, gateway.EventMessageDelete:
		data = &gateway.Message{}
	case gateway.EventMessageDeleteBulk:
		data = &gateway.MessageBatch{}
	case gateway.EventInteractionCreate:
		data = &gateway.Interaction{}
	case gateway.EventReactionAdd, gateway.EventReactionRemove:
		data = &gateway.ReactionEvent{}
	case gateway.EventChannelDelete, gateway.EventThreadDelete:
		data = &gateway.Channel{}
	case gateway.EventGuildDelete:
		data = &gateway.Guild{}
	default:
		return nil, fmt.Errorf("unknown event type %q", eventType)
	}

	if err := json.Unmarshal(raw, data); err != nil {
		return nil, fmt.Errorf("invalid payload for %s: %w", eventType, err)
	}

	return data, nil
}
