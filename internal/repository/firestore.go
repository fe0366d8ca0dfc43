package repository

import (
	"context"
	"errors"
	"time"

	"cloud.google.com/go/firestore"
	"google.golang.org/api/iterator"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/fluxpro/relay-server-go/internal/model"
)

const (
	collectionAccounts            = "integrated_accounts"
	collectionProviderCredentials = "provider_credentials"
	collectionSettings            = "settings"
	collectionPaymentEvents       = "payment_events"
	collectionSubscriptions       = "subscriptions"
)

// getDoc loads a document into T, mapping NotFound to a nil result the same
// way HandleNotFound does for sql.ErrNoRows.
func getDoc[T any](ctx context.Context, ref *firestore.DocumentRef) (*T, error) {
	snap, err := ref.Get(ctx)
	if status.Code(err) == codes.NotFound {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var result T
	if err := snap.DataTo(&result); err != nil {
		return nil, err
	}
	return &result, nil
}

// firstDoc returns the first document of a query, or nil when it is empty.
func firstDoc[T any](ctx context.Context, q firestore.Query) (*T, error) {
	iter := q.Limit(1).Documents(ctx)
	defer iter.Stop()

	snap, err := iter.Next()
	if errors.Is(err, iterator.Done) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var result T
	if err := snap.DataTo(&result); err != nil {
		return nil, err
	}
	return &result, nil
}

type firestoreAccountRepo struct {
	client *firestore.Client
}

func NewFirestoreAccountRepository(client *firestore.Client) AccountRepository {
	return &firestoreAccountRepo{client: client}
}

func (r *firestoreAccountRepo) FindByID(ctx context.Context, accountID string) (*model.IntegratedAccount, error) {
	return getDoc[model.IntegratedAccount](ctx, r.client.Collection(collectionAccounts).Doc(accountID))
}

func (r *firestoreAccountRepo) FindByOwner(ctx context.Context, ownerID string) (*model.IntegratedAccount, error) {
	q := r.client.Collection(collectionAccounts).
		Where("ownerId", "==", ownerID).
		OrderBy("updatedAt", firestore.Desc)
	return firstDoc[model.IntegratedAccount](ctx, q)
}

func (r *firestoreAccountRepo) FindMostRecent(ctx context.Context) (*model.IntegratedAccount, error) {
	q := r.client.Collection(collectionAccounts).OrderBy("updatedAt", firestore.Desc)
	return firstDoc[model.IntegratedAccount](ctx, q)
}

func (r *firestoreAccountRepo) Upsert(ctx context.Context, params model.UpsertAccountParams) (*model.IntegratedAccount, error) {
	account := model.IntegratedAccount{
		AccountID:   params.AccountID,
		OwnerID:     params.OwnerID,
		AccessToken: params.AccessToken,
		DisplayName: params.DisplayName,
		UpdatedAt:   time.Now().UTC(),
	}
	if _, err := r.client.Collection(collectionAccounts).Doc(params.AccountID).Set(ctx, account); err != nil {
		return nil, err
	}
	return &account, nil
}

type firestoreProviderCredentialRepo struct {
	client *firestore.Client
}

func NewFirestoreProviderCredentialRepository(client *firestore.Client) ProviderCredentialRepository {
	return &firestoreProviderCredentialRepo{client: client}
}

func providerCredentialDocID(ownerID, provider string) string {
	return provider + ":" + ownerID
}

func (r *firestoreProviderCredentialRepo) Find(ctx context.Context, ownerID, provider string) (*model.ProviderCredential, error) {
	ref := r.client.Collection(collectionProviderCredentials).Doc(providerCredentialDocID(ownerID, provider))
	return getDoc[model.ProviderCredential](ctx, ref)
}

func (r *firestoreProviderCredentialRepo) FindExpiring(ctx context.Context, provider string, before time.Time) ([]model.ProviderCredential, error) {
	iter := r.client.Collection(collectionProviderCredentials).
		Where("provider", "==", provider).
		Where("expiresAt", "<", before).
		Documents(ctx)
	defer iter.Stop()

	var creds []model.ProviderCredential
	for {
		snap, err := iter.Next()
		if errors.Is(err, iterator.Done) {
			break
		}
		if err != nil {
			return nil, err
		}
		var cred model.ProviderCredential
		if err := snap.DataTo(&cred); err != nil {
			return nil, err
		}
		if cred.RefreshToken == nil || *cred.RefreshToken == "" {
			continue
		}
		creds = append(creds, cred)
	}
	return creds, nil
}

func (r *firestoreProviderCredentialRepo) Upsert(ctx context.Context, params model.UpsertProviderCredentialParams) (*model.ProviderCredential, error) {
	ref := r.client.Collection(collectionProviderCredentials).Doc(providerCredentialDocID(params.OwnerID, params.Provider))
	cred := model.ProviderCredential{
		OwnerID:      params.OwnerID,
		Provider:     params.Provider,
		AccessToken:  params.AccessToken,
		RefreshToken: params.RefreshToken,
		ExpiresAt:    params.ExpiresAt,
		UpdatedAt:    time.Now().UTC(),
	}

	err := r.client.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		if cred.RefreshToken == nil {
			snap, err := tx.Get(ref)
			if err != nil && status.Code(err) != codes.NotFound {
				return err
			}
			if err == nil {
				var existing model.ProviderCredential
				if err := snap.DataTo(&existing); err != nil {
					return err
				}
				cred.RefreshToken = existing.RefreshToken
			}
		}
		return tx.Set(ref, cred)
	})
	if err != nil {
		return nil, err
	}
	return &cred, nil
}

type firestoreSettingRepo struct {
	client *firestore.Client
}

func NewFirestoreSettingRepository(client *firestore.Client) SettingRepository {
	return &firestoreSettingRepo{client: client}
}

type settingDoc struct {
	Value     string    `firestore:"value"`
	UpdatedAt time.Time `firestore:"updatedAt"`
}

func (r *firestoreSettingRepo) Get(ctx context.Context, key string) (*string, error) {
	doc, err := getDoc[settingDoc](ctx, r.client.Collection(collectionSettings).Doc(key))
	if err != nil || doc == nil {
		return nil, err
	}
	return &doc.Value, nil
}

func (r *firestoreSettingRepo) Set(ctx context.Context, key, value string) error {
	_, err := r.client.Collection(collectionSettings).Doc(key).Set(ctx, settingDoc{
		Value:     value,
		UpdatedAt: time.Now().UTC(),
	})
	return err
}

type firestorePaymentRepo struct {
	client *firestore.Client
}

func NewFirestorePaymentRepository(client *firestore.Client) PaymentRepository {
	return &firestorePaymentRepo{client: client}
}

func (r *firestorePaymentRepo) RecordEvent(ctx context.Context, event model.PaymentEvent) (bool, error) {
	event.CreatedAt = time.Now().UTC()
	ref := r.client.Collection(collectionPaymentEvents).Doc(event.PaymentID + ":" + event.Event)
	_, err := ref.Create(ctx, event)
	if status.Code(err) == codes.AlreadyExists {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

func (r *firestorePaymentRepo) FindSubscription(ctx context.Context, ownerID string) (*model.Subscription, error) {
	return getDoc[model.Subscription](ctx, r.client.Collection(collectionSubscriptions).Doc(ownerID))
}

func (r *firestorePaymentRepo) UpsertSubscription(ctx context.Context, sub model.Subscription) error {
	sub.UpdatedAt = time.Now().UTC()
	_, err := r.client.Collection(collectionSubscriptions).Doc(sub.OwnerID).Set(ctx, sub)
	return err
}
