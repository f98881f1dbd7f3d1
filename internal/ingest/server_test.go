package ingest

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gatherkit/gatherd/internal/gateway"
)

func postEvent(t *testing.T, s *Server, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/v1/events", strings.NewReader(body))
	w := httptest.NewRecorder()
	s.handleEvent(w, req)
	return w
}

func TestHandleEventPublishes(t *testing.T) {
	bus := gateway.New()
	t.Cleanup(func() { bus.Close(context.Background()) })

	received := make(chan gateway.Event, 1)
	bus.Subscribe(gateway.EventMessageCreate, func(ev gateway.Event) { received <- ev })

	s := NewServer("127.0.0.1", 0, bus)
	w := postEvent(t, s, `{"type":"messageCreate","payload":{"id":"m1","channel_id":"C1","author":{"id":"u1"}}}`)

	if w.Code != http.StatusAccepted {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusAccepted)
	}

	select {
	case ev := <-received:
		msg, ok := ev.Data.(*gateway.Message)
		if !ok {
			t.Fatalf("published payload has type %T, want *gateway.Message", ev.Data)
		}
		if msg.ID != "m1" || msg.ChannelID != "C1" || msg.Author.ID != "u1" {
			t.Errorf("decoded message = %+v", msg)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for published event")
	}
}

func TestHandleEventRejectsUnknownType(t *testing.T) {
	bus := gateway.New()
	t.Cleanup(func() { bus.Close(context.Background()) })

	s := NewServer("127.0.0.1", 0, bus)
	w := postEvent(t, s, `{"type":"somethingElse","payload":{}}`)

	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d for unknown event type, want %d", w.Code, http.StatusBadRequest)
	}
}

func TestHandleEventRejectsBadJSON(t *testing.T) {
	bus := gateway.New()
	t.Cleanup(func() { bus.Close(context.Background()) })

	s := NewServer("127.0.0.1", 0, bus)
	w := postEvent(t, s, `{not json`)

	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d for invalid body, want %d", w.Code, http.StatusBadRequest)
	}
}

func TestDecodePayloadTypes(t *testing.T) {
	tests := []struct {
		eventType gateway.EventType
		payload   string
		wantType  string
	}{
		{gateway.EventMessageCreate, `{"id":"m1","channel_id":"C1"}`, "*gateway.Message"},
		{gateway.EventMessageDeleteBulk, `{"channel_id":"C1","ids":["m1","m2"]}`, "*gateway.MessageBatch"},
		{gateway.EventInteractionCreate, `{"id":"i1","type":"command"}`, "*gateway.Interaction"},
		{gateway.EventReactionAdd, `{"reaction":{"emoji":"🔥","message_id":"m1","channel_id":"C1"}}`, "*gateway.ReactionEvent"},
		{gateway.EventChannelDelete, `{"id":"C1"}`, "*gateway.Channel"},
		{gateway.EventGuildDelete, `{"id":"G1"}`, "*gateway.Guild"},
	}

	for _, tt := range tests {
		data, err := decodePayload(tt.eventType, []byte(tt.payload))
		if err != nil {
			t.Errorf("decodePayload(%s) failed: %v", tt.eventType, err)
			continue
		}
		if got := fmt.Sprintf("%T", data); got != tt.wantType {
			t.Errorf("decodePayload(%s) returned %s, want %s", tt.eventType, got, tt.wantType)
		}
	}
}
