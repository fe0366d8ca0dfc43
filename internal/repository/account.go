package repository

import (
	"context"
	"database/sql"

	"github.com/jmoiron/sqlx"

	"github.com/fluxpro/relay-server-go/internal/model"
)

type AccountRepository interface {
	FindByID(ctx context.Context, accountID string) (*model.IntegratedAccount, error)
	FindByOwner(ctx context.Context, ownerID string) (*model.IntegratedAccount, error)
	// FindMostRecent returns the most recently connected account, or nil when none exist.
	FindMostRecent(ctx context.Context) (*model.IntegratedAccount, error)
	Upsert(ctx context.Context, params model.UpsertAccountParams) (*model.IntegratedAccount, error)
}

type accountRepo struct {
	db sqlxDB
}

// sqlxDB is an interface satisfied by both *sqlx.DB and *sqlx.Tx
type sqlxDB interface {
	GetContext(ctx context.Context, dest interface{}, query string, args ...interface{}) error
	SelectContext(ctx context.Context, dest interface{}, query string, args ...interface{}) error
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
}

func NewAccountRepository(db *sqlx.DB) AccountRepository {
	return &accountRepo{db: db}
}

func (r *accountRepo) FindByID(ctx context.Context, accountID string) (*model.IntegratedAccount, error) {
	var account model.IntegratedAccount
	err := r.db.GetContext(ctx, &account, `
		SELECT * FROM integrated_accounts WHERE account_id = $1
	`, accountID)
	return HandleNotFound(&account, err)
}

func (r *accountRepo) FindByOwner(ctx context.Context, ownerID string) (*model.IntegratedAccount, error) {
	var account model.IntegratedAccount
	err := r.db.GetContext(ctx, &account, `
		SELECT * FROM integrated_accounts
		WHERE owner_id = $1
		ORDER BY updated_at DESC
		LIMIT 1
	`, ownerID)
	return HandleNotFound(&account, err)
}

func (r *accountRepo) FindMostRecent(ctx context.Context) (*model.IntegratedAccount, error) {
	var account model.IntegratedAccount
	err := r.db.GetContext(ctx, &account, `
		SELECT * FROM integrated_accounts
		ORDER BY updated_at DESC
		LIMIT 1
	`)
	return HandleNotFound(&account, err)
}

func (r *accountRepo) Upsert(ctx context.Context, params model.UpsertAccountParams) (*model.IntegratedAccount, error) {
	var account model.IntegratedAccount
	err := r.db.GetContext(ctx, &account, `
		INSERT INTO integrated_accounts (account_id, owner_id, access_token, display_name, updated_at)
		VALUES ($1, $2, $3, $4, NOW())
		ON CONFLICT (account_id) DO UPDATE SET
			owner_id = EXCLUDED.owner_id,
			access_token = EXCLUDED.access_token,
			display_name = EXCLUDED.display_name,
			updated_at = NOW()
		RETURNING *
	`, params.AccountID, params.OwnerID, params.AccessToken, params.DisplayName)
	if err != nil {
		return nil, err
	}
	return &account, nil
}
