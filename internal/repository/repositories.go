package repository

import (
	"cloud.google.com/go/firestore"
	"github.com/jmoiron/sqlx"
)

// Repositories groups the stores used by the relay so the storage driver can
// be chosen once at startup.
type Repositories struct {
	Accounts            AccountRepository
	ProviderCredentials ProviderCredentialRepository
	Settings            SettingRepository
	Payments            PaymentRepository
}

func NewPostgresRepositories(db *sqlx.DB) *Repositories {
	return &Repositories{
		Accounts:            NewAccountRepository(db),
		ProviderCredentials: NewProviderCredentialRepository(db),
		Settings:            NewSettingRepository(db),
		Payments:            NewPaymentRepository(db),
	}
}

func NewFirestoreRepositories(client *firestore.Client) *Repositories {
	return &Repositories{
		Accounts:            NewFirestoreAccountRepository(client),
		ProviderCredentials: NewFirestoreProviderCredentialRepository(client),
		Settings:            NewFirestoreSettingRepository(client),
		Payments:            NewFirestorePaymentRepository(client),
	}
}
