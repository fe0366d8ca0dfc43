package model

import (
	"time"
)

// IntegratedAccount is one external page/channel connected to the relay.
// AccountID is assigned by the messaging platform and is the store key.
type IntegratedAccount struct {
	AccountID   string    `db:"account_id" json:"accountId" firestore:"accountId"`
	OwnerID     string    `db:"owner_id" json:"ownerId" firestore:"ownerId"`
	AccessToken string    `db:"access_token" json:"-" firestore:"accessToken"`
	DisplayName string    `db:"display_name" json:"displayName" firestore:"displayName"`
	UpdatedAt   time.Time `db:"updated_at" json:"updatedAt" firestore:"updatedAt"`
}

// HasOwner reports whether inbound traffic for the account can be routed privately.
func (a *IntegratedAccount) HasOwner() bool {
	return a != nil && a.OwnerID != ""
}

type UpsertAccountParams struct {
	AccountID   string
	OwnerID     string
	AccessToken string
	DisplayName string
}

// ManagedAccount is a page the authenticated operator can manage, as returned by
// the account enumeration endpoint.
type ManagedAccount struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	AccessToken string `json:"access_token"`
}
