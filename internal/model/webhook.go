package model

import "encoding/json"

const (
	WebhookObjectPage      = "page"
	WebhookObjectInstagram = "instagram"
)

// WebhookPayload is a Messenger/Instagram webhook delivery.
type WebhookPayload struct {
	Object string         `json:"object"`
	Entry  []WebhookEntry `json:"entry"`
}

// IsMessaging reports whether the payload is a page or instagram delivery.
func (p *WebhookPayload) IsMessaging() bool {
	return p.Object == WebhookObjectPage || p.Object == WebhookObjectInstagram
}

type WebhookEntry struct {
	ID        string           `json:"id"`
	Time      int64            `json:"time,omitempty"`
	Messaging []MessagingEvent `json:"messaging,omitempty"`
}

type MessagingEvent struct {
	Sender    WebhookParty    `json:"sender"`
	Recipient WebhookParty    `json:"recipient"`
	Timestamp int64           `json:"timestamp,omitempty"`
	Message   *WebhookMessage `json:"message,omitempty"`
}

type WebhookParty struct {
	ID string `json:"id"`
}

type WebhookMessage struct {
	MID         string              `json:"mid,omitempty"`
	Text        string              `json:"text,omitempty"`
	IsEcho      bool                `json:"is_echo,omitempty"`
	Attachments []WebhookAttachment `json:"attachments,omitempty"`
}

type WebhookAttachment struct {
	Type    string                   `json:"type"`
	Payload WebhookAttachmentPayload `json:"payload"`
}

type WebhookAttachmentPayload struct {
	URL string `json:"url,omitempty"`
}

func (p *WebhookPayload) ToJSON() json.RawMessage {
	data, _ := json.Marshal(p)
	return data
}
