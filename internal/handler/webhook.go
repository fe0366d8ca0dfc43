package handler

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/rs/zerolog/log"

	"github.com/fluxpro/relay-server-go/internal/audit"
	"github.com/fluxpro/relay-server-go/internal/model"
	"github.com/fluxpro/relay-server-go/internal/service"
)

const webhookAck = "EVENT_RECEIVED"

type InboundRouter interface {
	Route(ctx context.Context, payload *model.WebhookPayload) service.RouteResult
}

type WebhookHandler struct {
	router      InboundRouter
	verifyToken string
}

func NewWebhookHandler(router InboundRouter, verifyToken string) *WebhookHandler {
	return &WebhookHandler{
		router:      router,
		verifyToken: verifyToken,
	}
}

// Verify answers the subscription handshake by echoing hub.challenge.
func (h *WebhookHandler) Verify(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	mode := q.Get("hub.mode")
	token := q.Get("hub.verify_token")
	challenge := q.Get("hub.challenge")

	if mode == "" || token == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "Missing verification parameters"})
		return
	}

	if mode != "subscribe" || token != h.verifyToken {
		audit.LogFromRequest(r, audit.Event{
			Type:    audit.EventVerifyFailure,
			Details: map[string]interface{}{"mode": mode},
		})
		w.WriteHeader(http.StatusForbidden)
		return
	}

	log.Info().Msg("webhook verified")

	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(challenge))
}

// Receive routes a delivery and always acknowledges it once parsed: the
// platform redelivers on any non-2xx.
func (h *WebhookHandler) Receive(w http.ResponseWriter, r *http.Request) {
	var payload model.WebhookPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		log.Warn().Err(err).Msg("invalid webhook payload")
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "Invalid request body"})
		return
	}

	if !payload.IsMessaging() {
		log.Debug().Str("object", payload.Object).Msg("ignoring webhook for unsupported object")
		w.WriteHeader(http.StatusNotFound)
		return
	}

	// The batch must finish even if the platform drops the connection.
	ctx := context.WithoutCancel(r.Context())
	result := h.router.Route(ctx, &payload)

	log.Info().
		Str("object", payload.Object).
		Int("entries", len(payload.Entry)).
		Int("delivered", result.Delivered).
		Int("broadcasted", result.Broadcasted).
		Int("skipped", result.Skipped).
		Msg("webhook processed")

	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(webhookAck))
}
