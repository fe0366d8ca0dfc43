package model

import (
	"encoding/json"
	"time"
)

const (
	PaymentEventConfirmed           = "PAYMENT_CONFIRMED"
	PaymentEventReceived            = "PAYMENT_RECEIVED"
	PaymentEventOverdue             = "PAYMENT_OVERDUE"
	PaymentEventRefunded            = "PAYMENT_REFUNDED"
	PaymentEventDeleted             = "PAYMENT_DELETED"
	PaymentEventSubscriptionDeleted = "SUBSCRIPTION_DELETED"
)

// PaymentWebhook is the payment provider's webhook body.
type PaymentWebhook struct {
	Event   string               `json:"event"`
	Payment PaymentWebhookDetail `json:"payment"`
}

type PaymentWebhookDetail struct {
	ID                string  `json:"id"`
	ExternalReference string  `json:"externalReference"`
	Value             float64 `json:"value"`
}

type PaymentEvent struct {
	PaymentID         string          `db:"payment_id" json:"paymentId" firestore:"paymentId"`
	Event             string          `db:"event" json:"event" firestore:"event"`
	ExternalReference string          `db:"external_reference" json:"externalReference" firestore:"externalReference"`
	Value             float64         `db:"value" json:"value" firestore:"value"`
	Payload           json.RawMessage `db:"payload" json:"payload" firestore:"-"`
	CreatedAt         time.Time       `db:"created_at" json:"createdAt" firestore:"createdAt"`
}

// Subscription is the billing state of one operator, keyed by the external
// reference the operator's checkout was created with.
type Subscription struct {
	OwnerID       string             `db:"owner_id" json:"ownerId" firestore:"ownerId"`
	Status        SubscriptionStatus `db:"status" json:"status" firestore:"status"`
	LastPaymentID string             `db:"last_payment_id" json:"lastPaymentId" firestore:"lastPaymentId"`
	Value         float64            `db:"value" json:"value" firestore:"value"`
	UpdatedAt     time.Time          `db:"updated_at" json:"updatedAt" firestore:"updatedAt"`
}
