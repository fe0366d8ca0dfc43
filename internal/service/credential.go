package service

import (
	"context"
	"sync"

	"github.com/rs/zerolog/log"

	apperrors "github.com/fluxpro/relay-server-go/internal/errors"
	"github.com/fluxpro/relay-server-go/internal/model"
	"github.com/fluxpro/relay-server-go/internal/repository"
	"github.com/fluxpro/relay-server-go/internal/util"
)

// CredentialCache holds the global fallback credential in memory.
type CredentialCache struct {
	mu    sync.RWMutex
	token string
}

func NewCredentialCache() *CredentialCache {
	return &CredentialCache{}
}

func (c *CredentialCache) Get() (string, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.token, c.token != ""
}

func (c *CredentialCache) Set(token string) {
	c.mu.Lock()
	c.token = token
	c.mu.Unlock()
}

// CredentialStore is the persistent account registry. Reads never fail:
// storage errors are logged and reported as "not found".
type CredentialStore struct {
	accounts      repository.AccountRepository
	settings      repository.SettingRepository
	cache         *CredentialCache
	encryptionKey string
}

func NewCredentialStore(
	accounts repository.AccountRepository,
	settings repository.SettingRepository,
	cache *CredentialCache,
	encryptionKey string,
) *CredentialStore {
	return &CredentialStore{
		accounts:      accounts,
		settings:      settings,
		cache:         cache,
		encryptionKey: encryptionKey,
	}
}

func (s *CredentialStore) GetAccount(ctx context.Context, accountID string) *model.IntegratedAccount {
	account, err := s.accounts.FindByID(ctx, accountID)
	if err != nil {
		log.Warn().Err(apperrors.StorageUnavailable(err)).Str("accountId", accountID).Msg("account lookup failed")
		return nil
	}
	return s.decrypt(account)
}

func (s *CredentialStore) GetAccountByOwner(ctx context.Context, ownerID string) *model.IntegratedAccount {
	account, err := s.accounts.FindByOwner(ctx, ownerID)
	if err != nil {
		log.Warn().Err(apperrors.StorageUnavailable(err)).Str("ownerId", ownerID).Msg("owner account lookup failed")
		return nil
	}
	return s.decrypt(account)
}

// GetAnyAccount returns the most recently connected account (last login wins).
func (s *CredentialStore) GetAnyAccount(ctx context.Context) *model.IntegratedAccount {
	account, err := s.accounts.FindMostRecent(ctx)
	if err != nil {
		log.Warn().Err(apperrors.StorageUnavailable(err)).Msg("any-account lookup failed")
		return nil
	}
	return s.decrypt(account)
}

// PutAccount upserts the account and makes its credential the global fallback,
// both in memory and in the persisted backup.
func (s *CredentialStore) PutAccount(ctx context.Context, accountID, ownerID, credential, displayName string) error {
	stored, err := util.EncryptField(s.encryptionKey, credential)
	if err != nil {
		return err
	}

	s.cache.Set(credential)

	if _, err := s.accounts.Upsert(ctx, model.UpsertAccountParams{
		AccountID:   accountID,
		OwnerID:     ownerID,
		AccessToken: stored,
		DisplayName: displayName,
	}); err != nil {
		return apperrors.StorageUnavailable(err)
	}

	if err := s.settings.Set(ctx, repository.SettingGlobalFallbackCredential, stored); err != nil {
		log.Warn().Err(err).Msg("failed to persist fallback credential backup")
	}

	log.Info().
		Str("accountId", accountID).
		Str("ownerId", ownerID).
		Str("displayName", displayName).
		Msg("integrated account stored")

	return nil
}

// LoadFallback seeds the cache at startup from the persisted backup, or from
// the configured static credential when no backup exists.
func (s *CredentialStore) LoadFallback(ctx context.Context, staticToken string) {
	value, err := s.settings.Get(ctx, repository.SettingGlobalFallbackCredential)
	if err != nil {
		log.Warn().Err(err).Msg("failed to read fallback credential backup")
	}
	if value != nil && *value != "" {
		token, err := util.DecryptField(s.encryptionKey, *value)
		if err == nil {
			s.cache.Set(token)
			log.Info().Str("source", "backup").Msg("fallback credential restored")
			return
		}
		log.Warn().Err(err).Msg("failed to decrypt fallback credential backup")
	}

	if staticToken != "" {
		s.cache.Set(staticToken)
		log.Info().Str("source", "config").Msg("fallback credential restored")
	}
}

func (s *CredentialStore) decrypt(account *model.IntegratedAccount) *model.IntegratedAccount {
	if account == nil {
		return nil
	}
	token, err := util.DecryptField(s.encryptionKey, account.AccessToken)
	if err != nil {
		// The record still names its owner; only the credential is unusable.
		log.Error().Err(err).Str("accountId", account.AccountID).Msg("failed to decrypt account credential")
		token = ""
	}
	account.AccessToken = token
	return account
}

// Credential is a usable access token plus where it came from.
type Credential struct {
	Token     string
	Source    string
	AccountID string
	OwnerID   string
}

type CredentialSource interface {
	Name() string
	Lookup(ctx context.Context, accountID string) (Credential, bool)
}

// CredentialResolver queries its sources in order and returns the first hit.
type CredentialResolver struct {
	sources []CredentialSource
}

func NewCredentialResolver(sources ...CredentialSource) *CredentialResolver {
	return &CredentialResolver{sources: sources}
}

func (r *CredentialResolver) Resolve(ctx context.Context, accountID string) (Credential, error) {
	for _, src := range r.sources {
		if cred, ok := src.Lookup(ctx, accountID); ok {
			cred.Source = src.Name()
			return cred, nil
		}
	}
	return Credential{}, apperrors.NoCredentialAvailable()
}

// ResolveAccount prefers the credential stored on account and walks the
// sources only when the account is unknown (nil) or its credential is unusable.
func (r *CredentialResolver) ResolveAccount(ctx context.Context, account *model.IntegratedAccount) (Credential, error) {
	if account != nil && account.AccessToken != "" {
		return Credential{
			Token:     account.AccessToken,
			Source:    "account",
			AccountID: account.AccountID,
			OwnerID:   account.OwnerID,
		}, nil
	}
	return r.Resolve(ctx, "")
}

// CacheSource resolves the global fallback credential.
type CacheSource struct {
	cache *CredentialCache
}

func NewCacheSource(cache *CredentialCache) *CacheSource {
	return &CacheSource{cache: cache}
}

func (s *CacheSource) Name() string { return "cache" }

func (s *CacheSource) Lookup(_ context.Context, _ string) (Credential, bool) {
	token, ok := s.cache.Get()
	return Credential{Token: token}, ok
}

// AnyAccountSource adopts the credential of any stored account and
// repopulates the cache with it. With a nil cache the lookup is read-only.
type AnyAccountSource struct {
	store *CredentialStore
	cache *CredentialCache
}

func NewAnyAccountSource(store *CredentialStore, cache *CredentialCache) *AnyAccountSource {
	return &AnyAccountSource{store: store, cache: cache}
}

func (s *AnyAccountSource) Name() string { return "any_account" }

func (s *AnyAccountSource) Lookup(ctx context.Context, _ string) (Credential, bool) {
	account := s.store.GetAnyAccount(ctx)
	if account == nil || account.AccessToken == "" {
		return Credential{}, false
	}
	if s.cache != nil {
		s.cache.Set(account.AccessToken)
		log.Info().Str("accountId", account.AccountID).Msg("fallback credential recovered from store")
	}
	return Credential{Token: account.AccessToken, AccountID: account.AccountID, OwnerID: account.OwnerID}, true
}

// StaticSource resolves a fixed configured credential.
type StaticSource struct {
	token string
}

func NewStaticSource(token string) *StaticSource {
	return &StaticSource{token: token}
}

func (s *StaticSource) Name() string { return "static" }

func (s *StaticSource) Lookup(_ context.Context, _ string) (Credential, bool) {
	return Credential{Token: s.token}, s.token != ""
}
