package handler

import (
	"context"
	"encoding/json"
	"io"
	"net/http"

	"github.com/rs/zerolog/log"

	apperrors "github.com/fluxpro/relay-server-go/internal/errors"
	"github.com/fluxpro/relay-server-go/internal/model"
)

type PaymentEventHandler interface {
	HandleEvent(ctx context.Context, webhook model.PaymentWebhook, raw json.RawMessage) error
}

type PaymentHandler struct {
	payments PaymentEventHandler
}

func NewPaymentHandler(payments PaymentEventHandler) *PaymentHandler {
	return &PaymentHandler{payments: payments}
}

func (h *PaymentHandler) Webhook(w http.ResponseWriter, r *http.Request) {
	raw, err := io.ReadAll(r.Body)
	if err != nil {
		writeError(w, apperrors.InvalidInput("body", "unreadable"))
		return
	}

	var webhook model.PaymentWebhook
	if err := json.Unmarshal(raw, &webhook); err != nil {
		log.Warn().Err(err).Msg("invalid payment webhook payload")
		writeError(w, apperrors.InvalidInput("body", "malformed JSON"))
		return
	}

	if err := h.payments.HandleEvent(r.Context(), webhook, raw); err != nil {
		if apperrors.GetCode(err) == apperrors.ErrCodeStorageUnavailable {
			log.Error().Err(err).Str("event", webhook.Event).Msg("failed to handle payment webhook")
		}
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]bool{"received": true})
}
