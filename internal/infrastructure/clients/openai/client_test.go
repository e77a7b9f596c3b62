package openai

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/medqueue/backend/internal/domain/providers"
	"github.com/medqueue/backend/pkg/config"
)

func newTestClient(url string) *Client {
	return NewClient(&config.OpenAIConfig{
		HealthAPIKey:    "sk-health",
		EducationAPIKey: "sk-edu",
		BaseURL:         url,
	}, 2*time.Second)
}

func TestClient_CompleteSendsChatCompletion(t *testing.T) {
	var (
		gotAuth string
		gotBody chatCompletionRequest
	)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat/completions", r.URL.Path)
		gotAuth = r.Header.Get("Authorization")
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"choices":[{"message":{"role":"assistant","content":"Rest and hydrate."}}]}`))
	}))
	defer server.Close()

	msg, err := newTestClient(server.URL).Complete(context.Background(), providers.ChatRequest{
		Domain:       providers.ChatDomainEducation,
		SystemPrompt: "You are a Career Mentor.",
		Messages:     []providers.ChatMessage{{Role: "user", Content: "hi"}},
	})
	require.NoError(t, err)
	assert.Equal(t, &providers.ChatMessage{Role: "assistant", Content: "Rest and hydrate."}, msg)

	assert.Equal(t, "Bearer sk-edu", gotAuth)
	assert.Equal(t, "gpt-3.5-turbo", gotBody.Model)
	assert.Equal(t, 500, gotBody.MaxTokens)
	require.Len(t, gotBody.Messages, 2)
	assert.Equal(t, providers.ChatMessage{Role: "system", Content: "You are a Career Mentor."}, gotBody.Messages[0])
}

func TestClient_CompleteDefaultsToHealthKey(t *testing.T) {
	var gotAuth string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		_, _ = w.Write([]byte(`{"choices":[{"message":{"role":"assistant","content":"ok"}}]}`))
	}))
	defer server.Close()

	_, err := newTestClient(server.URL).Complete(context.Background(), providers.ChatRequest{Domain: "unknown"})
	require.NoError(t, err)
	assert.Equal(t, "Bearer sk-health", gotAuth)
}

func TestClient_CompleteErrors(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		payload string
	}{
		{"unauthorized", http.StatusUnauthorized, `{"error":{"message":"bad key"}}`},
		{"no choices", http.StatusOK, `{"choices":[]}`},
		{"malformed", http.StatusOK, `{"choices":`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.payload))
			}))
			defer server.Close()

			_, err := newTestClient(server.URL).Complete(context.Background(), providers.ChatRequest{})
			assert.Error(t, err)
		})
	}
}

func TestClient_CompleteWithoutKey(t *testing.T) {
	c := NewClient(&config.OpenAIConfig{HealthAPIKey: "sk-health"}, time.Second)

	_, err := c.Complete(context.Background(), providers.ChatRequest{Domain: providers.ChatDomainEducation})
	assert.ErrorIs(t, err, ErrNoAPIKey)
}
