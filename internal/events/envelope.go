package events

import (
	"time"

	"github.com/google/uuid"
)

const (
	Producer = "fluxpro-relay"

	TypeChatInbound = "chat.inbound.v1"
)

type Meta struct {
	ID            string    `json:"id"`
	CorrelationID string    `json:"correlation_id,omitempty"`
	Producer      string    `json:"producer,omitempty"`
	Time          time.Time `json:"time"`
	Type          string    `json:"type"`
}

type Envelope struct {
	Meta Meta `json:"meta"`
	Data any  `json:"data"`
}

// NewEnvelope stamps a fresh event id. The correlation id defaults to the
// event id when empty.
func NewEnvelope(eventType, correlationID string, data any) Envelope {
	id := uuid.NewString()
	if correlationID == "" {
		correlationID = id
	}
	return Envelope{
		Meta: Meta{
			ID:            id,
			CorrelationID: correlationID,
			Producer:      Producer,
			Time:          time.Now().UTC(),
			Type:          eventType,
		},
		Data: data,
	}
}

// ChatInbound is the exported form of a routed inbound message.
type ChatInbound struct {
	AccountID  string    `json:"account_id"`
	OwnerID    string    `json:"owner_id,omitempty"`
	SenderID   string    `json:"sender_id"`
	MessageID  string    `json:"message_id,omitempty"`
	Kind       string    `json:"kind"`
	Body       string    `json:"body"`
	Broadcast  bool      `json:"broadcast"`
	ReceivedAt time.Time `json:"received_at"`
}
