package service

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/fluxpro/relay-server-go/internal/config"
	"github.com/fluxpro/relay-server-go/internal/model"
)

// GraphError is the error envelope returned by the Graph API.
type GraphError struct {
	Message    string `json:"message"`
	Type       string `json:"type"`
	Code       int    `json:"code"`
	StatusCode int    `json:"-"`
}

func (e *GraphError) Error() string {
	return fmt.Sprintf("graph api error %d (%s): %s", e.Code, e.Type, e.Message)
}

type graphErrorEnvelope struct {
	Error *GraphError `json:"error"`
}

type GraphProfile struct {
	Name       string `json:"name"`
	ProfilePic string `json:"profile_pic"`
}

type SendResult struct {
	MessageID   string `json:"message_id"`
	RecipientID string `json:"recipient_id"`
}

// GraphClient calls the profile, send and account enumeration endpoints.
type GraphClient struct {
	cfg    *config.Config
	client *http.Client
}

func NewGraphClient(cfg *config.Config) *GraphClient {
	return &GraphClient{
		cfg: cfg,
		client: &http.Client{
			Timeout: config.GraphRequestTimeout,
		},
	}
}

func (g *GraphClient) GetProfile(ctx context.Context, psid, token string) (*GraphProfile, error) {
	query := url.Values{
		"fields":       {"name,profile_pic"},
		"access_token": {token},
	}

	var profile GraphProfile
	if err := g.do(ctx, http.MethodGet, "/"+url.PathEscape(psid), query, nil, &profile); err != nil {
		return nil, err
	}
	return &profile, nil
}

func (g *GraphClient) SendText(ctx context.Context, token, recipientID, text string) (*SendResult, error) {
	body := map[string]any{
		"recipient": map[string]string{"id": recipientID},
		"message":   map[string]string{"text": text},
	}
	query := url.Values{"access_token": {token}}

	var result SendResult
	if err := g.do(ctx, http.MethodPost, "/me/messages", query, body, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// ListManagedAccounts enumerates the pages the operator token can manage.
func (g *GraphClient) ListManagedAccounts(ctx context.Context, userToken string) ([]model.ManagedAccount, error) {
	query := url.Values{
		"fields":       {"id,name,access_token"},
		"access_token": {userToken},
	}

	var resp struct {
		Data []model.ManagedAccount `json:"data"`
	}
	if err := g.do(ctx, http.MethodGet, "/me/accounts", query, nil, &resp); err != nil {
		return nil, err
	}
	return resp.Data, nil
}

// do issues a Graph API call. A *GraphError is returned when the API answers
// with an error envelope; any other error is a transport or decoding failure.
func (g *GraphClient) do(ctx context.Context, method, path string, query url.Values, payload, out any) error {
	endpoint := g.cfg.GraphURL(path) + "?" + query.Encode()

	var reqBody io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("marshal payload: %w", err)
		}
		reqBody = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, reqBody)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	start := time.Now()
	resp, err := g.client.Do(req)
	elapsed := time.Since(start)

	if err != nil {
		log.Error().
			Err(err).
			Str("method", method).
			Str("path", path).
			Dur("elapsed", elapsed).
			Msg("graph api request error")
		return fmt.Errorf("graph request failed: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	var envelope graphErrorEnvelope
	if err := json.Unmarshal(data, &envelope); err == nil && envelope.Error != nil {
		envelope.Error.StatusCode = resp.StatusCode
		log.Warn().
			Str("method", method).
			Str("path", path).
			Int("status", resp.StatusCode).
			Int("code", envelope.Error.Code).
			Str("error", envelope.Error.Message).
			Dur("elapsed", elapsed).
			Msg("graph api returned error")
		return envelope.Error
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		log.Warn().
			Str("method", method).
			Str("path", path).
			Int("status", resp.StatusCode).
			Dur("elapsed", elapsed).
			Msg("graph api request failed")
		return &GraphError{Message: fmt.Sprintf("unexpected status %d", resp.StatusCode), StatusCode: resp.StatusCode}
	}

	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}

	log.Debug().
		Str("method", method).
		Str("path", path).
		Int("status", resp.StatusCode).
		Dur("elapsed", elapsed).
		Msg("graph api request successful")

	return nil
}
