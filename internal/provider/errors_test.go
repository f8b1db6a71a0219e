package provider

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIsContextWindowExceeded(t *testing.T) {
	overflow := &ProviderError{Code: ErrCodeContextWindowExceeded, Message: "input too large", Provider: "ollama"}

	tests := []struct {
		name string
		err  error
		want bool
	}{
		{name: "nil", err: nil, want: false},
		{name: "typed", err: overflow, want: true},
		{name: "typed behind a wrap", err: fmt.Errorf("round 2: %w", overflow), want: true},
		{name: "other typed code", err: NewProviderError(ErrCodeRateLimited, "slow down", "openai", true), want: false},
		{name: "openai wording", err: errors.New("This model's maximum context length is 8192 tokens"), want: true},
		{name: "anthropic wording", err: errors.New("prompt is too long: 210000 tokens > 200000 maximum"), want: true},
		{name: "llama.cpp wording", err: errors.New("the request exceeds the available context window"), want: true},
		{name: "upper case", err: errors.New("TOO MANY TOKENS"), want: true},
		{name: "token limit", err: errors.New("token limit exceeded for this deployment"), want: true},
		{name: "unrelated", err: errors.New("rate limit exceeded"), want: false},
		{name: "bad request", err: errors.New("invalid request"), want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsContextWindowExceeded(tt.err))
		})
	}
}

func TestFromHTTPStatus(t *testing.T) {
	tests := []struct {
		status    int
		msg       string
		want      ErrorCode
		retryable bool
	}{
		{http.StatusUnauthorized, "", ErrCodeAuthFailed, false},
		{http.StatusTooManyRequests, "slow", ErrCodeRateLimited, true},
		{http.StatusNotFound, "no model", ErrCodeModelNotFound, false},
		{http.StatusGatewayTimeout, "", ErrCodeTimeout, true},
		{http.StatusBadRequest, "bad field", ErrCodeInvalidRequest, false},
		{http.StatusBadRequest, "too many tokens", ErrCodeContextWindowExceeded, false},
		{http.StatusInternalServerError, "boom", ErrCodeServiceUnavailable, true},
		{http.StatusTeapot, "", ErrCodeUnknown, false},
	}
	for _, tt := range tests {
		t.Run(http.StatusText(tt.status)+"/"+tt.msg, func(t *testing.T) {
			pe := FromHTTPStatus("x", tt.status, tt.msg)
			assert.Equal(t, tt.want, pe.Code)
			assert.Equal(t, tt.retryable, pe.Retryable)
			assert.NotEmpty(t, pe.Message)
		})
	}
}

func TestFromTransport(t *testing.T) {
	assert.Equal(t, ErrCodeTimeout, FromTransport("x", context.DeadlineExceeded).Code)
	assert.False(t, FromTransport("x", context.Canceled).Retryable)
	assert.True(t, FromTransport("x", errors.New("reset")).Retryable)
}

func TestStatusCode(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"nil", nil, http.StatusOK},
		{"typed unavailable", NewProviderError(ErrCodeServiceUnavailable, "down", "x", true), http.StatusServiceUnavailable},
		{"typed timeout wrapped", fmt.Errorf("round 1: %w", NewProviderError(ErrCodeTimeout, "slow", "x", true)), http.StatusServiceUnavailable},
		{"typed invalid", NewProviderError(ErrCodeInvalidRequest, "nope", "x", false), http.StatusBadRequest},
		{"typed auth", NewProviderError(ErrCodeAuthFailed, "key", "x", false), http.StatusBadGateway},
		{"deadline", fmt.Errorf("send: %w", context.DeadlineExceeded), http.StatusServiceUnavailable},
		{"refused text", errors.New("dial tcp: connection refused"), http.StatusServiceUnavailable},
		{"overloaded text", errors.New("model is overloaded"), http.StatusServiceUnavailable},
		{"context text", errors.New("maximum context length reached"), http.StatusBadRequest},
		{"invalid text", errors.New("Invalid parameter"), http.StatusBadRequest},
		{"other", errors.New("something odd"), http.StatusBadGateway},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, StatusCode(tt.err))
		})
	}
}
