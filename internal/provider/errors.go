package provider

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// ErrorCode defines Provider error codes
type ErrorCode string

const (
	// Authentication errors
	ErrCodeAuthFailed ErrorCode = "AUTH_FAILED"

	// Rate limiting and quota
	ErrCodeRateLimited   ErrorCode = "RATE_LIMITED"
	ErrCodeQuotaExceeded ErrorCode = "QUOTA_EXCEEDED"

	// Service availability
	ErrCodeServiceUnavailable ErrorCode = "SERVICE_UNAVAILABLE"
	ErrCodeModelNotFound      ErrorCode = "MODEL_NOT_FOUND"

	// Network and request
	ErrCodeNetworkError          ErrorCode = "NETWORK_ERROR"
	ErrCodeInvalidRequest        ErrorCode = "INVALID_REQUEST"
	ErrCodeTimeout               ErrorCode = "TIMEOUT"
	ErrCodeContextWindowExceeded ErrorCode = "CONTEXT_WINDOW_EXCEEDED"
	ErrCodeEmptyResponse         ErrorCode = "EMPTY_RESPONSE"

	ErrCodeUnknown ErrorCode = "UNKNOWN"
)

// ProviderError is a structured error for backend calls
type ProviderError struct {
	Code      ErrorCode `json:"code"`
	Message   string    `json:"message"`
	Provider  string    `json:"provider"`
	Retryable bool      `json:"retryable"`
}

// Error implements the error interface
func (e *ProviderError) Error() string {
	return fmt.Sprintf("[%s] %s: %s", e.Provider, e.Code, e.Message)
}

// NewProviderError creates a new ProviderError
func NewProviderError(code ErrorCode, message, provider string, retryable bool) *ProviderError {
	return &ProviderError{
		Code:      code,
		Message:   message,
		Provider:  provider,
		Retryable: retryable,
	}
}

// FromHTTPStatus classifies a non-200 backend response.
func FromHTTPStatus(provider string, status int, message string) *ProviderError {
	if message == "" {
		message = http.StatusText(status)
	}
	switch {
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return NewProviderError(ErrCodeAuthFailed, message, provider, false)
	case status == http.StatusTooManyRequests:
		return NewProviderError(ErrCodeRateLimited, message, provider, true)
	case status == http.StatusNotFound:
		return NewProviderError(ErrCodeModelNotFound, message, provider, false)
	case status == http.StatusRequestTimeout || status == http.StatusGatewayTimeout:
		return NewProviderError(ErrCodeTimeout, message, provider, true)
	case status == http.StatusBadRequest || status == http.StatusRequestEntityTooLarge ||
		status == http.StatusUnprocessableEntity:
		if IsContextWindowExceeded(errors.New(message)) {
			return NewProviderError(ErrCodeContextWindowExceeded, message, provider, false)
		}
		return NewProviderError(ErrCodeInvalidRequest, message, provider, false)
	case status >= 500:
		return NewProviderError(ErrCodeServiceUnavailable, message, provider, true)
	default:
		return NewProviderError(ErrCodeUnknown, message, provider, false)
	}
}

// FromTransport classifies an error returned before any response arrived.
func FromTransport(provider string, err error) *ProviderError {
	if errors.Is(err, context.DeadlineExceeded) {
		return NewProviderError(ErrCodeTimeout, "request timed out", provider, true)
	}
	if errors.Is(err, context.Canceled) {
		return NewProviderError(ErrCodeNetworkError, "request canceled", provider, false)
	}
	return NewProviderError(ErrCodeNetworkError, err.Error(), provider, true)
}

// IsContextWindowExceeded checks if the error indicates that the input
// exceeded the model's context window limit.  It first checks for a typed
// ProviderError with ErrCodeContextWindowExceeded, then falls back to
// keyword matching on the error message for untyped errors.
func IsContextWindowExceeded(err error) bool {
	if err == nil {
		return false
	}
	var pe *ProviderError
	if errors.As(err, &pe) && pe.Code == ErrCodeContextWindowExceeded {
		return true
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "context window") ||
		strings.Contains(msg, "context length exceeded") ||
		strings.Contains(msg, "maximum context length") ||
		strings.Contains(msg, "token limit exceeded") ||
		strings.Contains(msg, "too many tokens") ||
		strings.Contains(msg, "prompt is too long")
}

// IsRetryable checks if the error is a transient provider error that
// should be automatically retried (e.g., empty response, temporary
// service unavailability).
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	var pe *ProviderError
	if errors.As(err, &pe) {
		return pe.Retryable
	}
	return false
}

var (
	unavailableHints = []string{
		"connection refused", "no such host", "unreachable", "timeout", "timed out",
		"overloaded", "unavailable", "econnrefused", "connection reset",
	}
	badRequestHints = []string{
		"bad request", "invalid", "too long", "malformed",
	}
)

// StatusCode maps a backend failure to the HTTP status reported to callers:
// 503 when the backend is unreachable, slow or overloaded, 400 when the
// request itself was rejected, 502 for anything else.
func StatusCode(err error) int {
	if err == nil {
		return http.StatusOK
	}
	var pe *ProviderError
	if errors.As(err, &pe) {
		switch pe.Code {
		case ErrCodeServiceUnavailable, ErrCodeNetworkError, ErrCodeTimeout, ErrCodeRateLimited:
			return http.StatusServiceUnavailable
		case ErrCodeInvalidRequest, ErrCodeContextWindowExceeded:
			return http.StatusBadRequest
		}
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return http.StatusServiceUnavailable
	}
	if IsContextWindowExceeded(err) {
		return http.StatusBadRequest
	}

	msg := err.Error()
	if pe != nil {
		msg = pe.Message
	}
	msg = strings.ToLower(msg)
	for _, h := range unavailableHints {
		if strings.Contains(msg, h) {
			return http.StatusServiceUnavailable
		}
	}
	for _, h := range badRequestHints {
		if strings.Contains(msg, h) {
			return http.StatusBadRequest
		}
	}
	return http.StatusBadGateway
}
