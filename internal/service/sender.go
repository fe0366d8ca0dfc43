package service

import (
	"context"
	"errors"

	"github.com/rs/zerolog/log"

	apperrors "github.com/fluxpro/relay-server-go/internal/errors"
)

type MessageSender interface {
	SendText(ctx context.Context, token, recipientID, text string) (*SendResult, error)
}

// OutboundSender relays operator replies. It does not retry.
type OutboundSender struct {
	credentials *CredentialResolver
	graph       MessageSender
}

func NewOutboundSender(credentials *CredentialResolver, graph MessageSender) *OutboundSender {
	return &OutboundSender{credentials: credentials, graph: graph}
}

func (s *OutboundSender) Send(ctx context.Context, recipientID, text string) (*SendResult, error) {
	cred, err := s.credentials.Resolve(ctx, "")
	if err != nil {
		log.Warn().Str("recipientId", recipientID).Msg("no credential available for outbound send")
		return nil, err
	}

	result, err := s.graph.SendText(ctx, cred.Token, recipientID, text)
	if err != nil {
		var graphErr *GraphError
		if errors.As(err, &graphErr) {
			return nil, apperrors.UpstreamSendError(graphErr.Message).WithCause(err)
		}
		return nil, apperrors.UpstreamUnavailable("graph send", err)
	}

	log.Info().
		Str("recipientId", recipientID).
		Str("messageId", result.MessageID).
		Str("credentialSource", cred.Source).
		Msg("outbound message sent")

	return result, nil
}
