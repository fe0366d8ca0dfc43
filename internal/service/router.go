package service

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/fluxpro/relay-server-go/internal/config"
	"github.com/fluxpro/relay-server-go/internal/events"
	"github.com/fluxpro/relay-server-go/internal/model"
	"github.com/fluxpro/relay-server-go/internal/sse"
)

// Notifier delivers events to subscriber connections.
type Notifier interface {
	EmitToRoom(ctx context.Context, ownerID string, event sse.Event) error
	Broadcast(ctx context.Context, event sse.Event) error
	EmitToConnection(ctx context.Context, connectionID string, event sse.Event) error
}

type RouteResult struct {
	Delivered   int
	Broadcasted int
	Skipped     int
}

// AccountFinder looks up the stored account a webhook entry belongs to.
type AccountFinder interface {
	GetAccount(ctx context.Context, accountID string) *model.IntegratedAccount
}

type InboundRouter struct {
	accounts      AccountFinder
	credentials   *CredentialResolver
	profiles      *ProfileResolver
	notifier      Notifier
	dedup         Deduplicator
	publisher     events.Publisher
	exportTimeout time.Duration
	now           func() time.Time
}

// NewInboundRouter builds a router. credentials is consulted only when the
// entry's account has no usable credential. dedup may be nil.
func NewInboundRouter(
	accounts AccountFinder,
	credentials *CredentialResolver,
	profiles *ProfileResolver,
	notifier Notifier,
	dedup Deduplicator,
	publisher events.Publisher,
) *InboundRouter {
	if publisher == nil {
		publisher = events.NopPublisher{}
	}
	return &InboundRouter{
		accounts:      accounts,
		credentials:   credentials,
		profiles:      profiles,
		notifier:      notifier,
		dedup:         dedup,
		publisher:     publisher,
		exportTimeout: config.EventExportTimeout,
		now:           time.Now,
	}
}

// Route processes every entry of a webhook payload in order. It never fails;
// per-event problems are logged and the event is skipped.
func (r *InboundRouter) Route(ctx context.Context, payload *model.WebhookPayload) RouteResult {
	var result RouteResult

	for _, entry := range payload.Entry {
		accountID := entry.ID

		// The owner comes from the record alone, whether or not its
		// credential is usable.
		var account *model.IntegratedAccount
		if accountID != "" {
			account = r.accounts.GetAccount(ctx, accountID)
		}
		ownerID := ""
		if account != nil {
			ownerID = account.OwnerID
		}

		cred, err := r.credentials.ResolveAccount(ctx, account)
		if err != nil {
			log.Warn().Str("accountId", accountID).Msg("no credential for inbound account, profiles will use placeholder")
		}

		for i := range entry.Messaging {
			if r.routeEvent(ctx, accountID, ownerID, cred.Token, &entry.Messaging[i]) {
				if ownerID != "" {
					result.Delivered++
				} else {
					result.Broadcasted++
				}
			} else {
				result.Skipped++
			}
		}
	}

	return result
}

func (r *InboundRouter) routeEvent(ctx context.Context, accountID, ownerID, token string, ev *model.MessagingEvent) bool {
	if ev.Message == nil || ev.Message.IsEcho {
		return false
	}

	content := model.DecodeContent(ev.Message)
	if _, empty := content.(model.EmptyContent); empty {
		return false
	}

	if r.dedup != nil && ev.Message.MID != "" && r.dedup.Seen(ctx, ev.Message.MID) {
		log.Debug().Str("messageId", ev.Message.MID).Msg("duplicate inbound message skipped")
		return false
	}

	msg := &model.InboundMessage{
		SenderID:   ev.Sender.ID,
		AccountID:  accountID,
		MessageID:  ev.Message.MID,
		Content:    content,
		IsEcho:     ev.Message.IsEcho,
		ReceivedAt: r.now(),
	}

	profile := r.profiles.Resolve(ctx, msg.SenderID, token)
	payload := model.NewChatMessageEvent(msg, profile)

	event, err := sse.NewEvent(sse.EventNewMessage, payload)
	if err != nil {
		log.Error().Err(err).Msg("failed to encode inbound event")
		return false
	}

	if ownerID != "" {
		err = r.notifier.EmitToRoom(ctx, ownerID, event)
	} else {
		err = r.notifier.Broadcast(ctx, event)
	}
	if err != nil {
		log.Error().Err(err).Str("accountId", accountID).Msg("failed to emit inbound message")
		if r.dedup != nil && msg.MessageID != "" {
			r.dedup.Forget(ctx, msg.MessageID)
		}
		return false
	}

	log.Info().
		Str("accountId", accountID).
		Str("ownerId", ownerID).
		Str("senderId", msg.SenderID).
		Str("messageId", msg.MessageID).
		Str("type", string(msg.Kind())).
		Bool("broadcast", ownerID == "").
		Msg("inbound message routed")

	r.export(ctx, msg, ownerID)
	return true
}

func (r *InboundRouter) export(ctx context.Context, msg *model.InboundMessage, ownerID string) {
	ctx, cancel := context.WithTimeout(ctx, r.exportTimeout)
	defer cancel()

	env := events.NewEnvelope(events.TypeChatInbound, msg.MessageID, events.ChatInbound{
		AccountID:  msg.AccountID,
		OwnerID:    ownerID,
		SenderID:   msg.SenderID,
		MessageID:  msg.MessageID,
		Kind:       string(msg.Kind()),
		Body:       msg.Body(),
		Broadcast:  ownerID == "",
		ReceivedAt: msg.ReceivedAt,
	})
	if err := r.publisher.Publish(ctx, events.TypeChatInbound, env); err != nil {
		log.Warn().Err(err).Str("messageId", msg.MessageID).Msg("failed to export inbound message")
	}
}
