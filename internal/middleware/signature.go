package middleware

import (
	"bytes"
	"io"
	"net/http"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/fluxpro/relay-server-go/internal/audit"
	apperrors "github.com/fluxpro/relay-server-go/internal/errors"
	"github.com/fluxpro/relay-server-go/internal/httputil"
	"github.com/fluxpro/relay-server-go/internal/util"
)

const (
	SignatureHeader = "X-Hub-Signature-256"
	signaturePrefix = "sha256="
)

// WebhookSignatureMiddleware checks X-Hub-Signature-256 against the app
// secret. The body is restored for the next handler.
type WebhookSignatureMiddleware struct {
	appSecret string
}

func NewWebhookSignatureMiddleware(appSecret string) *WebhookSignatureMiddleware {
	return &WebhookSignatureMiddleware{appSecret: appSecret}
}

func (m *WebhookSignatureMiddleware) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if m.appSecret == "" {
			log.Warn().Msg("webhook signature verification bypassed: META_APP_SECRET is not configured")
			next.ServeHTTP(w, r)
			return
		}

		header := r.Header.Get(SignatureHeader)
		signature, ok := strings.CutPrefix(header, signaturePrefix)
		if !ok || signature == "" {
			log.Warn().Msg("webhook signature middleware: missing signature header")
			audit.LogFromRequest(r, audit.Event{Type: audit.EventSignatureFailure, Details: map[string]any{"reason": "missing"}})
			httputil.WriteError(w, apperrors.InvalidSignature())
			return
		}

		body, err := io.ReadAll(r.Body)
		if err != nil {
			log.Error().Err(err).Msg("webhook signature middleware: failed to read body")
			writeJSON(w, http.StatusBadRequest, map[string]string{
				"error": "Failed to read request body",
			})
			return
		}
		r.Body = io.NopCloser(bytes.NewReader(body))

		computed := util.HmacSHA256Bytes(m.appSecret, body)
		if !util.ConstantTimeEqual(computed, strings.ToLower(signature)) {
			log.Warn().Msg("webhook signature middleware: invalid signature")
			audit.LogFromRequest(r, audit.Event{Type: audit.EventSignatureFailure, Details: map[string]any{"reason": "mismatch"}})
			httputil.WriteError(w, apperrors.InvalidSignature())
			return
		}

		next.ServeHTTP(w, r)
	})
}
