package model

import (
	"time"
)

const (
	OAuthProviderFacebook = "facebook"
	OAuthProviderGoogle   = "google"
)

// ProviderCredential is an operator credential for a provider that has no
// account discovery step (Google calendar access).
type ProviderCredential struct {
	OwnerID      string     `db:"owner_id" json:"ownerId" firestore:"ownerId"`
	Provider     string     `db:"provider" json:"provider" firestore:"provider"`
	AccessToken  string     `db:"access_token" json:"-" firestore:"accessToken"`
	RefreshToken *string    `db:"refresh_token" json:"-" firestore:"refreshToken"`
	ExpiresAt    *time.Time `db:"expires_at" json:"expiresAt,omitempty" firestore:"expiresAt"`
	UpdatedAt    time.Time  `db:"updated_at" json:"updatedAt" firestore:"updatedAt"`
}

// Usable reports whether the credential can still authorize calls, either
// directly or through a refresh.
func (c *ProviderCredential) Usable(now time.Time) bool {
	if c == nil || c.AccessToken == "" {
		return false
	}
	if c.RefreshToken != nil && *c.RefreshToken != "" {
		return true
	}
	return c.ExpiresAt == nil || c.ExpiresAt.After(now)
}

type UpsertProviderCredentialParams struct {
	OwnerID      string
	Provider     string
	AccessToken  string
	RefreshToken *string
	ExpiresAt    *time.Time
}

// LoginState correlates an OAuth callback with the operator and subscriber
// connection that started the login. It travels signed in the state parameter.
type LoginState struct {
	Provider     string `json:"p"`
	OwnerID      string `json:"o,omitempty"`
	ConnectionID string `json:"c,omitempty"`
	Nonce        string `json:"n"`
	ExpiresAt    int64  `json:"e"`
}
