package mlservice

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClient_ForwardsBodyUnchanged(t *testing.T) {
	var gotPath, gotBody string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		b, _ := io.ReadAll(r.Body)
		gotBody = string(b)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"estimated_wait_minutes":12.4,"confidence_score":0.92,"surge_detected":false}`))
	}))
	defer server.Close()

	c := NewClient(server.URL+"/", time.Second)
	out, err := c.PredictWaitTime(context.Background(), json.RawMessage(`{"current_queue_length":4}`))
	require.NoError(t, err)

	assert.Equal(t, "/predict/wait-time", gotPath)
	assert.JSONEq(t, `{"current_queue_length":4}`, gotBody)
	assert.JSONEq(t, `{"estimated_wait_minutes":12.4,"confidence_score":0.92,"surge_detected":false}`, string(out))
}

func TestClient_CareerMatchPath(t *testing.T) {
	var gotPath string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		_, _ = w.Write([]byte(`{"top_matches":[]}`))
	}))
	defer server.Close()

	_, err := NewClient(server.URL, time.Second).PredictCareerMatch(context.Background(), nil)
	require.NoError(t, err)
	assert.Equal(t, "/predict/career-match", gotPath)
}

func TestClient_Errors(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		payload string
	}{
		{"server error", http.StatusInternalServerError, `{"detail":"boom"}`},
		{"validation error", http.StatusUnprocessableEntity, `{"detail":[]}`},
		{"not json", http.StatusOK, `<html>`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.payload))
			}))
			defer server.Close()

			_, err := NewClient(server.URL, time.Second).PredictWaitTime(context.Background(), json.RawMessage(`{}`))
			assert.Error(t, err)
		})
	}
}

func TestClient_Unreachable(t *testing.T) {
	server := httptest.NewServer(http.NotFoundHandler())
	url := server.URL
	server.Close()

	c := NewClient(url, 200*time.Millisecond)
	_, err := c.PredictWaitTime(context.Background(), json.RawMessage(`{}`))
	assert.Error(t, err)
	assert.Error(t, c.Ping(context.Background()))
}
