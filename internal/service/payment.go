package service

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/rs/zerolog/log"

	apperrors "github.com/fluxpro/relay-server-go/internal/errors"
	"github.com/fluxpro/relay-server-go/internal/model"
	"github.com/fluxpro/relay-server-go/internal/repository"
)

// SubscriptionStatusFor maps a payment event to the subscription status it
// implies. ok is false for events that do not change the subscription.
func SubscriptionStatusFor(event string) (model.SubscriptionStatus, bool) {
	switch event {
	case model.PaymentEventConfirmed, model.PaymentEventReceived:
		return model.SubscriptionStatusActive, true
	case model.PaymentEventOverdue:
		return model.SubscriptionStatusOverdue, true
	case model.PaymentEventRefunded, model.PaymentEventDeleted, model.PaymentEventSubscriptionDeleted:
		return model.SubscriptionStatusCanceled, true
	default:
		return "", false
	}
}

type PaymentService struct {
	repo repository.PaymentRepository
}

func NewPaymentService(repo repository.PaymentRepository) *PaymentService {
	return &PaymentService{repo: repo}
}

// HandleEvent records a payment webhook and flips the subscription of the
// owner named by externalReference. Events are recorded once per
// (payment id, event).
func (s *PaymentService) HandleEvent(ctx context.Context, webhook model.PaymentWebhook, raw json.RawMessage) error {
	if webhook.Event == "" {
		return apperrors.MissingRequired("event")
	}
	if webhook.Payment.ID == "" {
		return apperrors.MissingRequired("payment.id")
	}

	created, err := s.repo.RecordEvent(ctx, model.PaymentEvent{
		PaymentID:         webhook.Payment.ID,
		Event:             webhook.Event,
		ExternalReference: webhook.Payment.ExternalReference,
		Value:             webhook.Payment.Value,
		Payload:           raw,
	})
	if err != nil {
		return apperrors.StorageUnavailable(fmt.Errorf("record payment event: %w", err))
	}
	if !created {
		// The provider only redelivers after a failed attempt, so the
		// subscription update is applied again.
		log.Info().
			Str("paymentId", webhook.Payment.ID).
			Str("event", webhook.Event).
			Msg("duplicate payment event")
	}

	status, ok := SubscriptionStatusFor(webhook.Event)
	if !ok || webhook.Payment.ExternalReference == "" {
		log.Info().
			Str("paymentId", webhook.Payment.ID).
			Str("event", webhook.Event).
			Msg("payment event recorded")
		return nil
	}

	if err := s.repo.UpsertSubscription(ctx, model.Subscription{
		OwnerID:       webhook.Payment.ExternalReference,
		Status:        status,
		LastPaymentID: webhook.Payment.ID,
		Value:         webhook.Payment.Value,
	}); err != nil {
		return apperrors.StorageUnavailable(fmt.Errorf("update subscription: %w", err))
	}

	log.Info().
		Str("paymentId", webhook.Payment.ID).
		Str("event", webhook.Event).
		Str("ownerId", webhook.Payment.ExternalReference).
		Str("status", string(status)).
		Msg("subscription updated")

	return nil
}
