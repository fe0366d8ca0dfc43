package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/rs/zerolog/log"

	apperrors "github.com/fluxpro/relay-server-go/internal/errors"
	"github.com/fluxpro/relay-server-go/internal/service"
)

const maxMessageLength = 2000

type Sender interface {
	Send(ctx context.Context, recipientID, text string) (*service.SendResult, error)
}

type SendMessageRequest struct {
	RecipientID string `json:"recipientId"`
	Text        string `json:"text"`
	// Texto is accepted from older dashboard builds.
	Texto string `json:"texto,omitempty"`
}

func (r *SendMessageRequest) body() string {
	if r.Text != "" {
		return r.Text
	}
	return r.Texto
}

type SendHandler struct {
	sender Sender
}

func NewSendHandler(sender Sender) *SendHandler {
	return &SendHandler{sender: sender}
}

func (h *SendHandler) SendMessage(w http.ResponseWriter, r *http.Request) {
	var req SendMessageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, apperrors.InvalidInput("body", "malformed JSON"))
		return
	}

	recipientID := strings.TrimSpace(req.RecipientID)
	text := req.body()

	if recipientID == "" {
		writeError(w, apperrors.MissingRequired("recipientId"))
		return
	}
	if strings.TrimSpace(text) == "" {
		writeError(w, apperrors.MissingRequired("text"))
		return
	}
	if len([]rune(text)) > maxMessageLength {
		writeError(w, apperrors.InvalidInput("text", "exceeds 2000 characters"))
		return
	}

	result, err := h.sender.Send(r.Context(), recipientID, text)
	if err != nil {
		log.Error().
			Err(err).
			Str("recipientId", recipientID).
			Str("code", string(apperrors.GetCode(err))).
			Msg("failed to send message")
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"id":      result.MessageID,
	})
}
