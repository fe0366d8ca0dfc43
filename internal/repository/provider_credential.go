package repository

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/fluxpro/relay-server-go/internal/model"
)

type ProviderCredentialRepository interface {
	Find(ctx context.Context, ownerID, provider string) (*model.ProviderCredential, error)
	// FindExpiring returns refreshable credentials of provider that expire before the given time.
	FindExpiring(ctx context.Context, provider string, before time.Time) ([]model.ProviderCredential, error)
	Upsert(ctx context.Context, params model.UpsertProviderCredentialParams) (*model.ProviderCredential, error)
}

type providerCredentialRepo struct {
	db sqlxDB
}

func NewProviderCredentialRepository(db *sqlx.DB) ProviderCredentialRepository {
	return &providerCredentialRepo{db: db}
}

func (r *providerCredentialRepo) Find(ctx context.Context, ownerID, provider string) (*model.ProviderCredential, error) {
	var cred model.ProviderCredential
	err := r.db.GetContext(ctx, &cred, `
		SELECT * FROM provider_credentials
		WHERE owner_id = $1 AND provider = $2
	`, ownerID, provider)
	return HandleNotFound(&cred, err)
}

func (r *providerCredentialRepo) FindExpiring(ctx context.Context, provider string, before time.Time) ([]model.ProviderCredential, error) {
	var creds []model.ProviderCredential
	err := r.db.SelectContext(ctx, &creds, `
		SELECT * FROM provider_credentials
		WHERE provider = $1
		  AND refresh_token IS NOT NULL AND refresh_token <> ''
		  AND expires_at IS NOT NULL AND expires_at < $2
		ORDER BY expires_at ASC
	`, provider, before)
	if err != nil {
		return nil, err
	}
	return creds, nil
}

// Upsert keeps a previously stored refresh token when the new grant omits one;
// providers only return it on the first consent.
func (r *providerCredentialRepo) Upsert(ctx context.Context, params model.UpsertProviderCredentialParams) (*model.ProviderCredential, error) {
	var cred model.ProviderCredential
	err := r.db.GetContext(ctx, &cred, `
		INSERT INTO provider_credentials (owner_id, provider, access_token, refresh_token, expires_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, NOW())
		ON CONFLICT (owner_id, provider) DO UPDATE SET
			access_token = EXCLUDED.access_token,
			refresh_token = COALESCE(EXCLUDED.refresh_token, provider_credentials.refresh_token),
			expires_at = EXCLUDED.expires_at,
			updated_at = NOW()
		RETURNING *
	`, params.OwnerID, params.Provider, params.AccessToken, params.RefreshToken, params.ExpiresAt)
	if err != nil {
		return nil, err
	}
	return &cred, nil
}
