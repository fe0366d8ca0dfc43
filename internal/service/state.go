package service

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/fluxpro/relay-server-go/internal/model"
	"github.com/fluxpro/relay-server-go/internal/util"
)

var ErrInvalidState = errors.New("invalid or expired OAuth state")

// StateSigner encodes a LoginState into the OAuth state parameter as
// base64url(json) + "." + hex(hmac-sha256). No server-side storage is needed.
type StateSigner struct {
	secret string
}

func NewStateSigner(secret string) *StateSigner {
	return &StateSigner{secret: secret}
}

func (s *StateSigner) Sign(state model.LoginState) (string, error) {
	data, err := json.Marshal(state)
	if err != nil {
		return "", err
	}
	payload := base64.RawURLEncoding.EncodeToString(data)
	return payload + "." + util.HmacSHA256(s.secret, payload), nil
}

func (s *StateSigner) Verify(token string, now time.Time) (*model.LoginState, error) {
	payload, sig, ok := strings.Cut(token, ".")
	if !ok || payload == "" || sig == "" {
		return nil, ErrInvalidState
	}
	if !util.ConstantTimeEqual(sig, util.HmacSHA256(s.secret, payload)) {
		return nil, ErrInvalidState
	}

	data, err := base64.RawURLEncoding.DecodeString(payload)
	if err != nil {
		return nil, ErrInvalidState
	}

	var state model.LoginState
	if err := json.Unmarshal(data, &state); err != nil {
		return nil, ErrInvalidState
	}
	if now.Unix() > state.ExpiresAt {
		return nil, ErrInvalidState
	}
	return &state, nil
}
