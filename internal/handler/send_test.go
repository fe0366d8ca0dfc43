package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	apperrors "github.com/fluxpro/relay-server-go/internal/errors"
	"github.com/fluxpro/relay-server-go/internal/service"
)

type mockSender struct {
	mock.Mock
}

func (m *mockSender) Send(ctx context.Context, recipientID, text string) (*service.SendResult, error) {
	args := m.Called(ctx, recipientID, text)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*service.SendResult), args.Error(1)
}

func postSend(h *SendHandler, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/api/send-message", strings.NewReader(body))
	rec := httptest.NewRecorder()
	h.SendMessage(rec, req)
	return rec
}

func TestSendHandler_SendMessage(t *testing.T) {
	t.Run("returns provider message id", func(t *testing.T) {
		sender := new(mockSender)
		sender.On("Send", mock.Anything, "S1", "Olá").
			Return(&service.SendResult{MessageID: "m_out", RecipientID: "S1"}, nil)

		rec := postSend(NewSendHandler(sender), `{"recipientId":"S1","text":"Olá"}`)

		assert.Equal(t, http.StatusOK, rec.Code)
		var resp map[string]any
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		assert.Equal(t, true, resp["success"])
		assert.Equal(t, "m_out", resp["id"])
	})

	t.Run("accepts legacy texto field", func(t *testing.T) {
		sender := new(mockSender)
		sender.On("Send", mock.Anything, "S1", "Olá").Return(&service.SendResult{MessageID: "m_out"}, nil)

		rec := postSend(NewSendHandler(sender), `{"recipientId":"S1","texto":"Olá"}`)

		assert.Equal(t, http.StatusOK, rec.Code)
	})

	t.Run("validation errors", func(t *testing.T) {
		sender := new(mockSender)
		h := NewSendHandler(sender)

		for _, body := range []string{
			`{"text":"Olá"}`,
			`{"recipientId":"S1"}`,
			`{"recipientId":"S1","text":"   "}`,
			`{"recipientId":"S1","text":"` + strings.Repeat("a", 2001) + `"}`,
			`not json`,
		} {
			rec := postSend(h, body)
			assert.Equal(t, http.StatusBadRequest, rec.Code, "body %.40s", body)
		}
		sender.AssertNotCalled(t, "Send", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("no credential is 500", func(t *testing.T) {
		sender := new(mockSender)
		sender.On("Send", mock.Anything, "S1", "Olá").Return(nil, apperrors.NoCredentialAvailable())

		rec := postSend(NewSendHandler(sender), `{"recipientId":"S1","text":"Olá"}`)

		assert.Equal(t, http.StatusInternalServerError, rec.Code)
		var resp map[string]any
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		assert.Equal(t, string(apperrors.ErrCodeNoCredentialAvailable), resp["code"])
	})

	t.Run("upstream error message is surfaced", func(t *testing.T) {
		sender := new(mockSender)
		sender.On("Send", mock.Anything, "S1", "Olá").
			Return(nil, apperrors.UpstreamSendError("(#100) No matching user found"))

		rec := postSend(NewSendHandler(sender), `{"recipientId":"S1","text":"Olá"}`)

		assert.Equal(t, http.StatusInternalServerError, rec.Code)
		assert.Contains(t, rec.Body.String(), "No matching user found")
	})
}
