package middleware

import (
	"net/http"

	"github.com/rs/zerolog/log"

	"github.com/fluxpro/relay-server-go/internal/audit"
	apperrors "github.com/fluxpro/relay-server-go/internal/errors"
	"github.com/fluxpro/relay-server-go/internal/httputil"
	"github.com/fluxpro/relay-server-go/internal/util"
)

const PaymentTokenHeader = "asaas-access-token"

// PaymentTokenMiddleware authenticates payment webhooks with a shared header
// token. Without a configured token every request passes.
type PaymentTokenMiddleware struct {
	token string
}

func NewPaymentTokenMiddleware(token string) *PaymentTokenMiddleware {
	return &PaymentTokenMiddleware{token: token}
}

func (m *PaymentTokenMiddleware) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if m.token == "" {
			next.ServeHTTP(w, r)
			return
		}

		if !util.ConstantTimeEqual(r.Header.Get(PaymentTokenHeader), m.token) {
			log.Warn().Msg("payment webhook rejected: invalid access token")
			audit.LogFromRequest(r, audit.Event{Type: audit.EventPaymentAuthFailed})
			httputil.WriteError(w, apperrors.Unauthorized("Invalid access token"))
			return
		}

		next.ServeHTTP(w, r)
	})
}
