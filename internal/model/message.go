package model

import (
	"encoding/json"
	"time"
)

// MessageContent is the decoded body of an inbound message: TextContent,
// AttachmentContent or EmptyContent.
type MessageContent interface {
	isMessageContent()
}

type TextContent struct {
	Text string
}

type AttachmentContent struct {
	Kind ContentKind
	URL  string
}

type EmptyContent struct{}

func (TextContent) isMessageContent()       {}
func (AttachmentContent) isMessageContent() {}
func (EmptyContent) isMessageContent()      {}

// DecodeContent classifies a webhook message. Text wins over attachments; only
// the first attachment is considered and it must carry a URL.
func DecodeContent(msg *WebhookMessage) MessageContent {
	if msg == nil {
		return EmptyContent{}
	}
	if msg.Text != "" {
		return TextContent{Text: msg.Text}
	}
	if len(msg.Attachments) > 0 {
		att := msg.Attachments[0]
		if att.Payload.URL != "" {
			return AttachmentContent{Kind: ContentKind(att.Type), URL: att.Payload.URL}
		}
	}
	return EmptyContent{}
}

// InboundMessage is one decoded webhook notification. It is never persisted.
type InboundMessage struct {
	SenderID   string
	AccountID  string
	MessageID  string
	Content    MessageContent
	IsEcho     bool
	ReceivedAt time.Time
}

// Kind and Body flatten the content for the browser payload, where media
// messages carry their URL in the text field.
func (m *InboundMessage) Kind() ContentKind {
	switch c := m.Content.(type) {
	case TextContent:
		return ContentKindText
	case AttachmentContent:
		return c.Kind
	default:
		return ""
	}
}

func (m *InboundMessage) Body() string {
	switch c := m.Content.(type) {
	case TextContent:
		return c.Text
	case AttachmentContent:
		return c.URL
	default:
		return ""
	}
}

// ChatMessageEvent is the newMessage payload delivered to subscribers.
type ChatMessageEvent struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Avatar    string `json:"avatar"`
	Text      string `json:"text"`
	Timestamp string `json:"timestamp"`
	Type      string `json:"type"`
	EhMinha   bool   `json:"ehMinha"`
	MessageID string `json:"mid,omitempty"`
	AccountID string `json:"accountId,omitempty"`
}

func NewChatMessageEvent(msg *InboundMessage, profile Profile) ChatMessageEvent {
	return ChatMessageEvent{
		ID:        msg.SenderID,
		Name:      profile.Name,
		Avatar:    profile.AvatarURL,
		Text:      msg.Body(),
		Timestamp: msg.ReceivedAt.UTC().Format(time.RFC3339),
		Type:      string(msg.Kind()),
		EhMinha:   false,
		MessageID: msg.MessageID,
		AccountID: msg.AccountID,
	}
}

func (e ChatMessageEvent) ToJSON() json.RawMessage {
	data, _ := json.Marshal(e)
	return data
}

// Profile is the display decoration of a remote person.
type Profile struct {
	Name      string `json:"name"`
	AvatarURL string `json:"avatar"`
}
