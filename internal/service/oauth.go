package service

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/facebook"
	"golang.org/x/oauth2/google"

	"github.com/fluxpro/relay-server-go/internal/config"
	apperrors "github.com/fluxpro/relay-server-go/internal/errors"
	"github.com/fluxpro/relay-server-go/internal/model"
	"github.com/fluxpro/relay-server-go/internal/repository"
	"github.com/fluxpro/relay-server-go/internal/sse"
	"github.com/fluxpro/relay-server-go/internal/util"
)

var (
	ErrProviderNotConfigured = errors.New("OAuth provider not configured")
	ErrNoManagedAccounts     = errors.New("operator manages no accounts")
)

var facebookScopes = []string{
	"pages_show_list",
	"pages_messaging",
	"pages_manage_metadata",
	"instagram_basic",
	"instagram_manage_messages",
}

var googleScopes = []string{
	"https://www.googleapis.com/auth/calendar.events",
}

type AccountLister interface {
	ListManagedAccounts(ctx context.Context, userToken string) ([]model.ManagedAccount, error)
}

// SelectAccount picks the account a login adopts from everything the operator
// manages. The first account is selected.
func SelectAccount(accounts []model.ManagedAccount) (*model.ManagedAccount, error) {
	if len(accounts) == 0 {
		return nil, ErrNoManagedAccounts
	}
	selected := accounts[0]
	return &selected, nil
}

type CallbackParams struct {
	Code             string
	State            string
	Error            string
	ErrorDescription string
}

// LoginResult records how far one login attempt got.
type LoginResult struct {
	Provider string
	Stage    model.LoginStage
	State    *model.LoginState
	Account  *model.ManagedAccount
	Err      error
}

// Denied reports a failure the operator must see: the provider refused or the
// callback could not be correlated with a login.
func (r *LoginResult) Denied() bool {
	return r.Err != nil && (apperrors.GetCode(r.Err) == apperrors.ErrCodeOAuthDenied ||
		apperrors.GetCode(r.Err) == apperrors.ErrCodeInvalidState)
}

type LoginSuccessPayload struct {
	Provider    string `json:"provider"`
	OwnerID     string `json:"ownerId,omitempty"`
	AccountID   string `json:"accountId,omitempty"`
	AccountName string `json:"accountName,omitempty"`
}

type StatusResult struct {
	Provider    string `json:"provider"`
	Connected   bool   `json:"connected"`
	OwnerID     string `json:"ownerId,omitempty"`
	AccountID   string `json:"accountId,omitempty"`
	DisplayName string `json:"displayName,omitempty"`
}

type OAuthCoordinator struct {
	cfg           *config.Config
	providers     map[string]*oauth2.Config
	signer        *StateSigner
	store         *CredentialStore
	available     *CredentialResolver
	providerCreds repository.ProviderCredentialRepository
	accounts      AccountLister
	notifier      Notifier
	httpClient    *http.Client
	now           func() time.Time
}

func NewOAuthCoordinator(
	cfg *config.Config,
	signer *StateSigner,
	store *CredentialStore,
	available *CredentialResolver,
	providerCreds repository.ProviderCredentialRepository,
	accounts AccountLister,
	notifier Notifier,
) *OAuthCoordinator {
	providers := make(map[string]*oauth2.Config)

	if cfg.MetaAppID != "" && cfg.MetaAppSecret != "" {
		endpoint := facebook.Endpoint
		endpoint.TokenURL = cfg.GraphURL("/oauth/access_token")
		providers[model.OAuthProviderFacebook] = &oauth2.Config{
			ClientID:     cfg.MetaAppID,
			ClientSecret: cfg.MetaAppSecret,
			Endpoint:     endpoint,
			RedirectURL:  cfg.CallbackURL(model.OAuthProviderFacebook),
			Scopes:       facebookScopes,
		}
	}

	if cfg.GoogleClientID != "" && cfg.GoogleClientSecret != "" {
		providers[model.OAuthProviderGoogle] = &oauth2.Config{
			ClientID:     cfg.GoogleClientID,
			ClientSecret: cfg.GoogleClientSecret,
			Endpoint:     google.Endpoint,
			RedirectURL:  cfg.CallbackURL(model.OAuthProviderGoogle),
			Scopes:       googleScopes,
		}
	}

	return &OAuthCoordinator{
		cfg:           cfg,
		providers:     providers,
		signer:        signer,
		store:         store,
		available:     available,
		providerCreds: providerCreds,
		accounts:      accounts,
		notifier:      notifier,
		httpClient:    &http.Client{Timeout: config.GraphRequestTimeout},
		now:           time.Now,
	}
}

func IsKnownProvider(provider string) bool {
	return provider == model.OAuthProviderFacebook || provider == model.OAuthProviderGoogle
}

func (c *OAuthCoordinator) provider(provider string) (*oauth2.Config, error) {
	if !IsKnownProvider(provider) {
		return nil, apperrors.NotFound("OAuth provider")
	}
	conf, ok := c.providers[provider]
	if !ok {
		return nil, apperrors.ProviderNotConfigured(provider).WithCause(ErrProviderNotConfigured)
	}
	return conf, nil
}

// AuthURL starts a login attempt. The owner and connection ids travel in the
// signed state so the callback can be correlated without a session.
func (c *OAuthCoordinator) AuthURL(provider, ownerID, connectionID string) (string, error) {
	conf, err := c.provider(provider)
	if err != nil {
		return "", err
	}

	nonce, err := util.GenerateToken()
	if err != nil {
		return "", fmt.Errorf("generate nonce: %w", err)
	}

	state, err := c.signer.Sign(model.LoginState{
		Provider:     provider,
		OwnerID:      ownerID,
		ConnectionID: connectionID,
		Nonce:        nonce,
		ExpiresAt:    c.now().Add(config.OAuthStateTTL).Unix(),
	})
	if err != nil {
		return "", fmt.Errorf("sign state: %w", err)
	}

	log.Info().
		Str("provider", provider).
		Str("ownerId", ownerID).
		Str("connectionId", connectionID).
		Str("stage", string(model.LoginStageInitiated)).
		Msg("oauth login initiated")

	if provider == model.OAuthProviderGoogle {
		return conf.AuthCodeURL(state, oauth2.AccessTypeOffline, oauth2.SetAuthURLParam("prompt", "consent")), nil
	}
	return conf.AuthCodeURL(state), nil
}

func (c *OAuthCoordinator) HandleCallback(ctx context.Context, provider string, params CallbackParams) *LoginResult {
	result := &LoginResult{Provider: provider, Stage: model.LoginStageCallbackReceived}

	if params.Error != "" {
		reason := params.ErrorDescription
		if reason == "" {
			reason = params.Error
		}
		result.Err = apperrors.OAuthDenied(reason)
		return result
	}

	conf, err := c.provider(provider)
	if err != nil {
		result.Err = err
		return result
	}

	state, err := c.signer.Verify(params.State, c.now())
	if err != nil || state.Provider != provider {
		result.Err = apperrors.InvalidState().WithCause(ErrInvalidState)
		return result
	}
	result.State = state

	if params.Code == "" {
		result.Err = apperrors.OAuthDenied("missing authorization code")
		return result
	}

	token, err := conf.Exchange(c.oauthContext(ctx), params.Code)
	if err != nil {
		c.fail(result, fmt.Errorf("exchange code: %w", err))
		return result
	}
	result.Stage = model.LoginStageCredentialObtained

	switch provider {
	case model.OAuthProviderFacebook:
		err = c.completeFacebook(ctx, result, token)
	case model.OAuthProviderGoogle:
		err = c.completeGoogle(ctx, result, token)
	}
	if err != nil {
		c.fail(result, err)
		return result
	}

	c.notify(ctx, result)
	return result
}

func (c *OAuthCoordinator) completeFacebook(ctx context.Context, result *LoginResult, token *oauth2.Token) error {
	accounts, err := c.accounts.ListManagedAccounts(ctx, token.AccessToken)
	if err != nil {
		return fmt.Errorf("list managed accounts: %w", err)
	}

	selected, err := SelectAccount(accounts)
	if err != nil {
		return err
	}
	result.Account = selected
	result.Stage = model.LoginStageAccountDiscovered

	if len(accounts) > 1 {
		log.Info().
			Int("accountCount", len(accounts)).
			Str("accountId", selected.ID).
			Msg("operator manages several accounts, first one selected")
	}

	if err := c.store.PutAccount(ctx, selected.ID, result.State.OwnerID, selected.AccessToken, selected.Name); err != nil {
		return fmt.Errorf("persist account: %w", err)
	}
	result.Stage = model.LoginStagePersisted
	return nil
}

func (c *OAuthCoordinator) completeGoogle(ctx context.Context, result *LoginResult, token *oauth2.Token) error {
	if _, err := c.saveProviderCredential(ctx, result.State.OwnerID, model.OAuthProviderGoogle, token); err != nil {
		return fmt.Errorf("persist credential: %w", err)
	}
	result.Stage = model.LoginStagePersisted
	return nil
}

func (c *OAuthCoordinator) saveProviderCredential(ctx context.Context, ownerID, provider string, token *oauth2.Token) (*model.ProviderCredential, error) {
	key := c.cfg.EncryptionKey

	access, err := util.EncryptField(key, token.AccessToken)
	if err != nil {
		return nil, err
	}

	params := model.UpsertProviderCredentialParams{
		OwnerID:     ownerID,
		Provider:    provider,
		AccessToken: access,
	}
	if token.RefreshToken != "" {
		refresh, err := util.EncryptField(key, token.RefreshToken)
		if err != nil {
			return nil, err
		}
		params.RefreshToken = &refresh
	}
	if !token.Expiry.IsZero() {
		expiry := token.Expiry
		params.ExpiresAt = &expiry
	}

	return c.providerCreds.Upsert(ctx, params)
}

// notify tells the owner room and the originating connection about the login.
// Without either, every subscriber is told.
func (c *OAuthCoordinator) notify(ctx context.Context, result *LoginResult) {
	payload := LoginSuccessPayload{Provider: result.Provider, OwnerID: result.State.OwnerID}
	if result.Account != nil {
		payload.AccountID = result.Account.ID
		payload.AccountName = result.Account.Name
	}

	event, err := sse.NewEvent(sse.EventLoginSuccess, payload)
	if err != nil {
		log.Error().Err(err).Msg("failed to encode login event")
		return
	}

	var emitErr error
	switch {
	case result.State.OwnerID != "" || result.State.ConnectionID != "":
		if result.State.OwnerID != "" {
			emitErr = errors.Join(emitErr, c.notifier.EmitToRoom(ctx, result.State.OwnerID, event))
		}
		if result.State.ConnectionID != "" {
			emitErr = errors.Join(emitErr, c.notifier.EmitToConnection(ctx, result.State.ConnectionID, event))
		}
	default:
		emitErr = c.notifier.Broadcast(ctx, event)
	}
	if emitErr != nil {
		log.Warn().Err(emitErr).Str("provider", result.Provider).Msg("failed to notify login success")
		return
	}

	result.Stage = model.LoginStageNotified

	log.Info().
		Str("provider", result.Provider).
		Str("ownerId", result.State.OwnerID).
		Str("accountId", payload.AccountID).
		Str("stage", string(result.Stage)).
		Msg("oauth login completed")
}

func (c *OAuthCoordinator) fail(result *LoginResult, err error) {
	result.Err = err
	ownerID := ""
	if result.State != nil {
		ownerID = result.State.OwnerID
	}
	log.Error().
		Err(err).
		Str("provider", result.Provider).
		Str("ownerId", ownerID).
		Str("stage", string(result.Stage)).
		Msg("oauth login failed")
}

func (c *OAuthCoordinator) oauthContext(ctx context.Context) context.Context {
	return context.WithValue(ctx, oauth2.HTTPClient, c.httpClient)
}

// Refresh renews a stored provider credential with its refresh token.
func (c *OAuthCoordinator) Refresh(ctx context.Context, cred model.ProviderCredential) error {
	conf, err := c.provider(cred.Provider)
	if err != nil {
		return err
	}
	if cred.RefreshToken == nil || *cred.RefreshToken == "" {
		return fmt.Errorf("credential for %s has no refresh token", cred.OwnerID)
	}

	key := c.cfg.EncryptionKey
	access, err := util.DecryptField(key, cred.AccessToken)
	if err != nil {
		return fmt.Errorf("decrypt access token: %w", err)
	}
	refresh, err := util.DecryptField(key, *cred.RefreshToken)
	if err != nil {
		return fmt.Errorf("decrypt refresh token: %w", err)
	}

	// A past expiry forces the token source to use the refresh token.
	current := &oauth2.Token{AccessToken: access, RefreshToken: refresh, Expiry: c.now().Add(-time.Minute)}
	token, err := conf.TokenSource(c.oauthContext(ctx), current).Token()
	if err != nil {
		return apperrors.UpstreamUnavailable(cred.Provider+" token refresh", err)
	}

	if _, err := c.saveProviderCredential(ctx, cred.OwnerID, cred.Provider, token); err != nil {
		return fmt.Errorf("persist refreshed credential: %w", err)
	}

	log.Info().
		Str("provider", cred.Provider).
		Str("ownerId", cred.OwnerID).
		Time("expiresAt", token.Expiry).
		Msg("provider credential refreshed")

	return nil
}

// RefreshExpiring refreshes every Google credential that expires before the
// given time. Individual failures are logged and do not stop the batch.
func (c *OAuthCoordinator) RefreshExpiring(ctx context.Context, before time.Time) (int, error) {
	if _, ok := c.providers[model.OAuthProviderGoogle]; !ok {
		return 0, nil
	}

	creds, err := c.providerCreds.FindExpiring(ctx, model.OAuthProviderGoogle, before)
	if err != nil {
		return 0, fmt.Errorf("find expiring credentials: %w", err)
	}

	refreshed := 0
	for _, cred := range creds {
		if err := c.Refresh(ctx, cred); err != nil {
			log.Warn().Err(err).Str("ownerId", cred.OwnerID).Msg("credential refresh failed")
			continue
		}
		refreshed++
	}
	return refreshed, nil
}

// Status reports whether the owner has a usable credential for provider.
// Without an owner it falls back to the global check: can an outbound
// credential be resolved at all. available must be built from read-only
// sources so a status poll never replaces the fallback credential.
func (c *OAuthCoordinator) Status(ctx context.Context, provider, ownerID string) (*StatusResult, error) {
	if !IsKnownProvider(provider) {
		return nil, apperrors.NotFound("OAuth provider")
	}

	result := &StatusResult{Provider: provider, OwnerID: ownerID}

	switch provider {
	case model.OAuthProviderFacebook:
		if ownerID == "" {
			_, err := c.available.Resolve(ctx, "")
			result.Connected = err == nil
			return result, nil
		}
		if account := c.store.GetAccountByOwner(ctx, ownerID); account != nil {
			result.Connected = account.AccessToken != ""
			result.AccountID = account.AccountID
			result.DisplayName = account.DisplayName
		}

	case model.OAuthProviderGoogle:
		if ownerID == "" {
			return result, nil
		}
		cred, err := c.providerCreds.Find(ctx, ownerID, provider)
		if err != nil {
			log.Warn().Err(apperrors.StorageUnavailable(err)).Str("ownerId", ownerID).Msg("provider credential lookup failed")
			return result, nil
		}
		result.Connected = cred.Usable(c.now())
	}

	return result, nil
}
