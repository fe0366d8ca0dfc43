package repository

import (
	"context"

	"github.com/jmoiron/sqlx"

	"github.com/fluxpro/relay-server-go/internal/model"
)

type PaymentRepository interface {
	// RecordEvent stores a webhook delivery. It returns false when the same
	// (payment id, event) pair was already recorded.
	RecordEvent(ctx context.Context, event model.PaymentEvent) (bool, error)
	FindSubscription(ctx context.Context, ownerID string) (*model.Subscription, error)
	UpsertSubscription(ctx context.Context, sub model.Subscription) error
}

type paymentRepo struct {
	db sqlxDB
}

func NewPaymentRepository(db *sqlx.DB) PaymentRepository {
	return &paymentRepo{db: db}
}

func (r *paymentRepo) RecordEvent(ctx context.Context, event model.PaymentEvent) (bool, error) {
	payload := event.Payload
	if len(payload) == 0 {
		payload = []byte("null")
	}
	result, err := r.db.ExecContext(ctx, `
		INSERT INTO payment_events (payment_id, event, external_reference, value, payload)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (payment_id, event) DO NOTHING
	`, event.PaymentID, event.Event, event.ExternalReference, event.Value, []byte(payload))
	if err != nil {
		return false, err
	}
	n, err := result.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (r *paymentRepo) FindSubscription(ctx context.Context, ownerID string) (*model.Subscription, error) {
	var sub model.Subscription
	err := r.db.GetContext(ctx, &sub, `SELECT * FROM subscriptions WHERE owner_id = $1`, ownerID)
	return HandleNotFound(&sub, err)
}

func (r *paymentRepo) UpsertSubscription(ctx context.Context, sub model.Subscription) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO subscriptions (owner_id, status, last_payment_id, value, updated_at)
		VALUES ($1, $2, $3, $4, NOW())
		ON CONFLICT (owner_id) DO UPDATE SET
			status = EXCLUDED.status,
			last_payment_id = EXCLUDED.last_payment_id,
			value = EXCLUDED.value,
			updated_at = NOW()
	`, sub.OwnerID, sub.Status, sub.LastPaymentID, sub.Value)
	return err
}
