package model

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeContent(t *testing.T) {
	tests := []struct {
		name string
		msg  *WebhookMessage
		want MessageContent
	}{
		{"nil message", nil, EmptyContent{}},
		{"text", &WebhookMessage{Text: "Oi"}, TextContent{Text: "Oi"}},
		{
			"text wins over attachments",
			&WebhookMessage{
				Text:        "look",
				Attachments: []WebhookAttachment{{Type: "image", Payload: WebhookAttachmentPayload{URL: "https://x/p.jpg"}}},
			},
			TextContent{Text: "look"},
		},
		{
			"first attachment only",
			&WebhookMessage{Attachments: []WebhookAttachment{
				{Type: "audio", Payload: WebhookAttachmentPayload{URL: "https://x/a.mp4"}},
				{Type: "image", Payload: WebhookAttachmentPayload{URL: "https://x/p.jpg"}},
			}},
			AttachmentContent{Kind: ContentKindAudio, URL: "https://x/a.mp4"},
		},
		{
			"attachment without url",
			&WebhookMessage{Attachments: []WebhookAttachment{{Type: "image"}}},
			EmptyContent{},
		},
		{"no body", &WebhookMessage{MID: "m_1"}, EmptyContent{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, DecodeContent(tt.msg))
		})
	}
}

func TestNewChatMessageEvent(t *testing.T) {
	received := time.Date(2026, 3, 1, 9, 30, 0, 0, time.FixedZone("BRT", -3*3600))
	msg := &InboundMessage{
		SenderID:   "S1",
		AccountID:  "A1",
		MessageID:  "m_1",
		Content:    AttachmentContent{Kind: ContentKindImage, URL: "https://x/p.jpg"},
		ReceivedAt: received,
	}

	event := NewChatMessageEvent(msg, Profile{Name: "Ana", AvatarURL: "https://x/ana.jpg"})

	assert.Equal(t, "S1", event.ID)
	assert.Equal(t, "image", event.Type)
	assert.Equal(t, "https://x/p.jpg", event.Text)
	assert.Equal(t, "2026-03-01T12:30:00Z", event.Timestamp)

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(event.ToJSON(), &decoded))
	assert.Equal(t, false, decoded["ehMinha"])
	assert.Equal(t, "Ana", decoded["name"])
	assert.Equal(t, "https://x/ana.jpg", decoded["avatar"])
	assert.Equal(t, "m_1", decoded["mid"])
}

func TestWebhookPayload_IsMessaging(t *testing.T) {
	assert.True(t, (&WebhookPayload{Object: "page"}).IsMessaging())
	assert.True(t, (&WebhookPayload{Object: "instagram"}).IsMessaging())
	assert.False(t, (&WebhookPayload{Object: "whatsapp_business_account"}).IsMessaging())
}

func TestWebhookPayload_Decode(t *testing.T) {
	body := `{"object":"page","entry":[{"id":"A1","time":1700000000000,"messaging":[
		{"sender":{"id":"S1"},"recipient":{"id":"A1"},"timestamp":1700000000000,
		 "message":{"mid":"m_1","attachments":[{"type":"image","payload":{"url":"https://x/p.jpg"}}]}}]}]}`

	var payload WebhookPayload
	require.NoError(t, json.Unmarshal([]byte(body), &payload))
	require.Len(t, payload.Entry, 1)
	require.Len(t, payload.Entry[0].Messaging, 1)

	ev := payload.Entry[0].Messaging[0]
	assert.Equal(t, "S1", ev.Sender.ID)
	assert.Equal(t, AttachmentContent{Kind: ContentKindImage, URL: "https://x/p.jpg"}, DecodeContent(ev.Message))
}

func TestProviderCredential_Usable(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	past := now.Add(-time.Minute)
	future := now.Add(time.Hour)
	refresh := "r"

	var missing *ProviderCredential
	assert.False(t, missing.Usable(now))
	assert.False(t, (&ProviderCredential{}).Usable(now))
	assert.True(t, (&ProviderCredential{AccessToken: "a"}).Usable(now))
	assert.True(t, (&ProviderCredential{AccessToken: "a", ExpiresAt: &future}).Usable(now))
	assert.False(t, (&ProviderCredential{AccessToken: "a", ExpiresAt: &past}).Usable(now))
	assert.True(t, (&ProviderCredential{AccessToken: "a", ExpiresAt: &past, RefreshToken: &refresh}).Usable(now))
}
