// Package handlers implements the gateway's HTTP API.
package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"conductor/pkg/logger"
)

// RequestIDHeader carries the id the gateway assigns to every request.
// Error bodies repeat it so a client report can be matched to the logs.
const RequestIDHeader = "X-Request-ID"

// Chat bodies carry a message plus optional context; 4 MiB is ample.
const maxBodyBytes = 4 << 20

// Error codes returned in ErrorDetail.Code.
const (
	ErrCodeInvalidRequest     = "INVALID_REQUEST"
	ErrCodeNotFound           = "NOT_FOUND"
	ErrCodeRateLimited        = "RATE_LIMITED"
	ErrCodeInternalError      = "INTERNAL_ERROR"
	ErrCodeServiceUnavailable = "SERVICE_UNAVAILABLE"
	ErrCodeBadGateway         = "BAD_GATEWAY"
	ErrCodeStorageDisabled    = "STORAGE_DISABLED"
)

// ErrorResponse is the body of every non-2xx API response.
type ErrorResponse struct {
	Error ErrorDetail `json:"error"`
}

// ErrorDetail describes a failed request.
type ErrorDetail struct {
	Code      string `json:"code"`
	Message   string `json:"message"`
	RequestID string `json:"request_id,omitempty"`
}

// SendJSON writes v as the response body with status. A nil v sends the
// status alone. If v cannot be encoded the client gets a 500 instead of a
// truncated body.
func SendJSON(w http.ResponseWriter, status int, v any) {
	if v == nil {
		w.WriteHeader(status)
		return
	}

	body, err := json.Marshal(v)
	if err != nil {
		logger.Component("http").Error().Err(err).Int("status", status).Msg("encode response")
		status = http.StatusInternalServerError
		body, _ = json.Marshal(ErrorResponse{Error: ErrorDetail{
			Code:      ErrCodeInternalError,
			Message:   "response could not be encoded",
			RequestID: w.Header().Get(RequestIDHeader),
		}})
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(append(body, '\n'))
}

// SendError writes an ErrorResponse tagged with the request id.
func SendError(w http.ResponseWriter, status int, code, message string) {
	SendJSON(w, status, ErrorResponse{Error: ErrorDetail{
		Code:      code,
		Message:   message,
		RequestID: w.Header().Get(RequestIDHeader),
	}})
}

// DecodeJSON reads a bounded JSON body into v.
func DecodeJSON(r *http.Request, v any) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	if err := dec.Decode(v); err != nil {
		if errors.Is(err, io.EOF) {
			return errors.New("request body is empty")
		}
		return fmt.Errorf("invalid JSON body: %w", err)
	}
	return nil
}
