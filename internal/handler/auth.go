package handler

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"

	"github.com/fluxpro/relay-server-go/internal/audit"
	apperrors "github.com/fluxpro/relay-server-go/internal/errors"
	"github.com/fluxpro/relay-server-go/internal/service"
)

type LoginCoordinator interface {
	AuthURL(provider, ownerID, connectionID string) (string, error)
	HandleCallback(ctx context.Context, provider string, params service.CallbackParams) *service.LoginResult
	Status(ctx context.Context, provider, ownerID string) (*service.StatusResult, error)
}

type AuthHandler struct {
	coordinator LoginCoordinator
}

func NewAuthHandler(coordinator LoginCoordinator) *AuthHandler {
	return &AuthHandler{coordinator: coordinator}
}

func (h *AuthHandler) Routes() chi.Router {
	r := chi.NewRouter()

	r.Get("/{provider}", h.Start)
	r.Get("/{provider}/callback", h.Callback)

	return r
}

// Start redirects the login popup to the provider. ownerId and socketId
// identify who is logging in and which subscriber connection waits for the
// result.
func (h *AuthHandler) Start(w http.ResponseWriter, r *http.Request) {
	provider := chi.URLParam(r, "provider")
	ownerID := r.URL.Query().Get("ownerId")
	connectionID := r.URL.Query().Get("socketId")

	authURL, err := h.coordinator.AuthURL(provider, ownerID, connectionID)
	if err != nil {
		code := apperrors.GetCode(err)
		if code != apperrors.ErrCodeNotFound && code != apperrors.ErrCodeProviderNotConfigured {
			log.Error().Err(err).Str("provider", provider).Msg("failed to build auth URL")
		}
		writeError(w, err)
		return
	}

	http.Redirect(w, r, authURL, http.StatusTemporaryRedirect)
}

// Callback completes a login. Only denials and uncorrelated callbacks render
// the failure page; everything else closes the popup, even on a partial
// failure.
func (h *AuthHandler) Callback(w http.ResponseWriter, r *http.Request) {
	provider := chi.URLParam(r, "provider")
	if !service.IsKnownProvider(provider) {
		writeError(w, apperrors.NotFound("OAuth provider"))
		return
	}

	q := r.URL.Query()
	result := h.coordinator.HandleCallback(r.Context(), provider, service.CallbackParams{
		Code:             q.Get("code"),
		State:            q.Get("state"),
		Error:            q.Get("error"),
		ErrorDescription: q.Get("error_description"),
	})

	ownerID := ""
	if result.State != nil {
		ownerID = result.State.OwnerID
	}

	switch {
	case result.Err == nil:
		details := map[string]interface{}{"provider": provider}
		accountID := ""
		if result.Account != nil {
			accountID = result.Account.ID
			audit.LogFromRequest(r, audit.Event{
				Type:      audit.EventAccountConnect,
				OwnerID:   ownerID,
				AccountID: accountID,
				Details:   details,
			})
		}
		audit.LogFromRequest(r, audit.Event{
			Type:      audit.EventLoginSuccess,
			OwnerID:   ownerID,
			AccountID: accountID,
			Details:   details,
		})
		renderCallbackPage(w, http.StatusOK, closeWindowPage(provider))

	case apperrors.GetCode(result.Err) == apperrors.ErrCodeInvalidState:
		audit.LogFromRequest(r, audit.Event{
			Type:    audit.EventInvalidState,
			Details: map[string]interface{}{"provider": provider},
		})
		renderCallbackPage(w, http.StatusBadRequest, failurePage(provider, "A sessão de login expirou. Tente novamente."))

	case result.Denied():
		audit.LogFromRequest(r, audit.Event{
			Type:    audit.EventLoginDenied,
			OwnerID: ownerID,
			Details: map[string]interface{}{"provider": provider, "error": q.Get("error")},
		})
		renderCallbackPage(w, http.StatusForbidden, failurePage(provider, "A autorização foi cancelada."))

	case apperrors.GetCode(result.Err) == apperrors.ErrCodeProviderNotConfigured:
		writeError(w, result.Err)

	default:
		audit.LogFromRequest(r, audit.Event{
			Type:    audit.EventLoginFailure,
			OwnerID: ownerID,
			Details: map[string]interface{}{"provider": provider, "stage": string(result.Stage)},
		})
		renderCallbackPage(w, http.StatusOK, closeWindowPage(provider))
	}
}

type StatusHandler struct {
	coordinator LoginCoordinator
}

func NewStatusHandler(coordinator LoginCoordinator) *StatusHandler {
	return &StatusHandler{coordinator: coordinator}
}

func (h *StatusHandler) Status(w http.ResponseWriter, r *http.Request) {
	provider := chi.URLParam(r, "provider")
	ownerID := r.URL.Query().Get("ownerId")

	status, err := h.coordinator.Status(r.Context(), provider, ownerID)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, status)
}
