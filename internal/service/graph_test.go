package service

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fluxpro/relay-server-go/internal/config"
)

func newTestGraphClient(t *testing.T, handler http.HandlerFunc) *GraphClient {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	return NewGraphClient(&config.Config{
		GraphAPIBaseURL: server.URL,
		GraphAPIVersion: "v21.0",
	})
}

func TestGraphClient_GetProfile(t *testing.T) {
	client := newTestGraphClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "/v21.0/S1", r.URL.Path)
		assert.Equal(t, "name,profile_pic", r.URL.Query().Get("fields"))
		assert.Equal(t, "TOKEN", r.URL.Query().Get("access_token"))

		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"name":"Ana","profile_pic":"https://cdn.example/ana.jpg","id":"S1"}`))
	})

	profile, err := client.GetProfile(context.Background(), "S1", "TOKEN")
	require.NoError(t, err)
	assert.Equal(t, "Ana", profile.Name)
	assert.Equal(t, "https://cdn.example/ana.jpg", profile.ProfilePic)
}

func TestGraphClient_SendText(t *testing.T) {
	t.Run("posts message body", func(t *testing.T) {
		client := newTestGraphClient(t, func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, http.MethodPost, r.Method)
			assert.Equal(t, "/v21.0/me/messages", r.URL.Path)
			assert.Equal(t, "TOKEN", r.URL.Query().Get("access_token"))
			assert.Equal(t, "application/json", r.Header.Get("Content-Type"))

			var body struct {
				Recipient struct {
					ID string `json:"id"`
				} `json:"recipient"`
				Message struct {
					Text string `json:"text"`
				} `json:"message"`
			}
			require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
			assert.Equal(t, "S1", body.Recipient.ID)
			assert.Equal(t, "Olá", body.Message.Text)

			w.Write([]byte(`{"recipient_id":"S1","message_id":"m_out"}`))
		})

		result, err := client.SendText(context.Background(), "TOKEN", "S1", "Olá")
		require.NoError(t, err)
		assert.Equal(t, "m_out", result.MessageID)
		assert.Equal(t, "S1", result.RecipientID)
	})

	t.Run("returns graph error envelope", func(t *testing.T) {
		client := newTestGraphClient(t, func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusBadRequest)
			w.Write([]byte(`{"error":{"message":"(#100) No matching user found","type":"OAuthException","code":100}}`))
		})

		_, err := client.SendText(context.Background(), "TOKEN", "S1", "Olá")
		require.Error(t, err)

		var graphErr *GraphError
		require.True(t, errors.As(err, &graphErr))
		assert.Equal(t, "(#100) No matching user found", graphErr.Message)
		assert.Equal(t, 100, graphErr.Code)
		assert.Equal(t, http.StatusBadRequest, graphErr.StatusCode)
	})

	t.Run("non-2xx without envelope is a graph error", func(t *testing.T) {
		client := newTestGraphClient(t, func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusBadGateway)
			w.Write([]byte(`upstream down`))
		})

		_, err := client.SendText(context.Background(), "TOKEN", "S1", "Olá")

		var graphErr *GraphError
		require.True(t, errors.As(err, &graphErr))
		assert.Equal(t, http.StatusBadGateway, graphErr.StatusCode)
	})
}

func TestGraphClient_ListManagedAccounts(t *testing.T) {
	client := newTestGraphClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v21.0/me/accounts", r.URL.Path)
		assert.Equal(t, "USER-TOKEN", r.URL.Query().Get("access_token"))

		w.Write([]byte(`{"data":[
			{"id":"A1","name":"Loja Centro","access_token":"PAGE-A1"},
			{"id":"A2","name":"Loja Norte","access_token":"PAGE-A2"}
		]}`))
	})

	accounts, err := client.ListManagedAccounts(context.Background(), "USER-TOKEN")
	require.NoError(t, err)
	require.Len(t, accounts, 2)
	assert.Equal(t, "A1", accounts[0].ID)
	assert.Equal(t, "Loja Centro", accounts[0].Name)
	assert.Equal(t, "PAGE-A1", accounts[0].AccessToken)
}
