package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	apperrors "github.com/fluxpro/relay-server-go/internal/errors"
	"github.com/fluxpro/relay-server-go/internal/sse"
)

type EventsHandler struct {
	broker *sse.Broker
}

func NewEventsHandler(broker *sse.Broker) *EventsHandler {
	return &EventsHandler{broker: broker}
}

// ServeHTTP streams subscriber events. The first event carries the
// connection id the browser later uses for /events/join and /auth.
func (h *EventsHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "Streaming not supported"})
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")

	client := h.broker.Connect()
	defer h.broker.Disconnect(client)

	ctx := r.Context()

	ownerID := strings.TrimSpace(r.URL.Query().Get("ownerId"))
	if ownerID != "" {
		if err := h.broker.Join(ctx, client.ID, ownerID); err != nil {
			log.Warn().Err(err).Str("connectionId", client.ID).Msg("failed to join room on connect")
			ownerID = ""
		}
	}

	if err := h.sendEvent(w, flusher, sse.EventConnected, map[string]any{
		"connectionId": client.ID,
		"ownerId":      ownerID,
	}); err != nil {
		return
	}

	heartbeat := time.NewTicker(sse.HeartbeatInterval)
	defer heartbeat.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Info().
				Str("connectionId", client.ID).
				Msg("sse connection closed by client")
			return

		case <-client.Done:
			log.Info().
				Str("connectionId", client.ID).
				Msg("sse connection closed by broker")
			return

		case event := <-client.Events:
			if err := h.sendRawEvent(w, flusher, event); err != nil {
				log.Error().Err(err).Msg("failed to send event")
				return
			}

		case <-heartbeat.C:
			if _, err := fmt.Fprintf(w, ": ping\n\n"); err != nil {
				log.Debug().
					Str("connectionId", client.ID).
					Msg("heartbeat failed, closing connection")
				return
			}
			flusher.Flush()
		}
	}
}

type JoinRequest struct {
	ConnectionID string `json:"connectionId"`
	OwnerID      string `json:"ownerId"`
}

// Join places a live connection in an owner's private room.
func (h *EventsHandler) Join(w http.ResponseWriter, r *http.Request) {
	var req JoinRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, apperrors.InvalidInput("body", "malformed JSON"))
		return
	}
	if req.ConnectionID == "" {
		writeError(w, apperrors.MissingRequired("connectionId"))
		return
	}
	if strings.TrimSpace(req.OwnerID) == "" {
		writeError(w, apperrors.MissingRequired("ownerId"))
		return
	}

	if err := h.broker.Join(r.Context(), req.ConnectionID, req.OwnerID); err != nil {
		if errors.Is(err, sse.ErrUnknownConnection) {
			writeError(w, apperrors.NotFound("Connection"))
			return
		}
		log.Error().Err(err).Str("connectionId", req.ConnectionID).Msg("failed to join room")
		writeError(w, apperrors.Internal("Failed to join room"))
		return
	}

	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}

func (h *EventsHandler) sendEvent(w http.ResponseWriter, flusher http.Flusher, eventType string, data any) error {
	jsonData, err := json.Marshal(data)
	if err != nil {
		return err
	}

	return h.sendRawEvent(w, flusher, sse.Event{Type: eventType, Data: jsonData})
}

func (h *EventsHandler) sendRawEvent(w http.ResponseWriter, flusher http.Flusher, event sse.Event) error {
	if _, err := fmt.Fprintf(w, "event: %s\n", event.Type); err != nil {
		return err
	}
	if _, err := fmt.Fprintf(w, "data: %s\n\n", event.Data); err != nil {
		return err
	}
	flusher.Flush()
	return nil
}
