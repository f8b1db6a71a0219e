package openai

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"conductor/internal/provider"
)

func TestBackend_SendPrompt(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer sk-test", r.Header.Get("Authorization"))

		var req chatRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "m1", req.Model)
		require.Len(t, req.Messages, 1)
		assert.Equal(t, "ping", req.Messages[0].Content)

		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"choices":[{"message":{"role":"assistant","content":"pong","reasoning_content":"trivial"}}]}`))
	}))
	defer server.Close()

	b := New(Config{BaseURL: server.URL + "/v1/", APIKey: "sk-test", Model: "m1"})
	assert.Equal(t, "openai", b.Name())

	reply, err := b.SendPrompt(context.Background(), "ping")
	require.NoError(t, err)
	assert.Equal(t, "pong", reply.Text)
	assert.Equal(t, "trivial", reply.Thinking)
}

func TestBackend_Errors(t *testing.T) {
	tests := []struct {
		name     string
		status   int
		body     string
		wantCode provider.ErrorCode
		httpCode int
	}{
		{"unauthorized", http.StatusUnauthorized, `{"error":{"message":"bad key"}}`, provider.ErrCodeAuthFailed, http.StatusBadGateway},
		{"rate limited", http.StatusTooManyRequests, `{"error":{"message":"slow down"}}`, provider.ErrCodeRateLimited, http.StatusServiceUnavailable},
		{"context length", http.StatusBadRequest, `{"error":{"message":"This model's maximum context length is 8192 tokens"}}`, provider.ErrCodeContextWindowExceeded, http.StatusBadRequest},
		{"bad request", http.StatusBadRequest, `{"error":{"message":"unknown field"}}`, provider.ErrCodeInvalidRequest, http.StatusBadRequest},
		{"no choices", http.StatusOK, `{"choices":[]}`, provider.ErrCodeEmptyResponse, http.StatusBadGateway},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(tt.status)
				w.Write([]byte(tt.body))
			}))
			defer server.Close()

			_, err := New(Config{BaseURL: server.URL}).SendPrompt(context.Background(), "x")
			require.Error(t, err)
			var pe *provider.ProviderError
			require.True(t, errors.As(err, &pe))
			assert.Equal(t, tt.wantCode, pe.Code)
			assert.Equal(t, tt.httpCode, provider.StatusCode(err))
		})
	}
}
