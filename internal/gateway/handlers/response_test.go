package handlers

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSendJSON(t *testing.T) {
	t.Run("encodes body", func(t *testing.T) {
		rec := httptest.NewRecorder()
		SendJSON(rec, http.StatusCreated, ToolInfo{Name: "read_file", Available: true})

		assert.Equal(t, http.StatusCreated, rec.Code)
		assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
		assert.True(t, strings.HasSuffix(rec.Body.String(), "\n"))
		assert.Contains(t, rec.Body.String(), `"read_file"`)
	})

	t.Run("nil body sends status only", func(t *testing.T) {
		rec := httptest.NewRecorder()
		SendJSON(rec, http.StatusNoContent, nil)

		assert.Equal(t, http.StatusNoContent, rec.Code)
		assert.Empty(t, rec.Body.String())
		assert.Empty(t, rec.Header().Get("Content-Type"))
	})

	t.Run("unencodable body becomes 500", func(t *testing.T) {
		rec := httptest.NewRecorder()
		rec.Header().Set(RequestIDHeader, "req-1")
		SendJSON(rec, http.StatusOK, map[string]any{"bad": func() {}})

		assert.Equal(t, http.StatusInternalServerError, rec.Code)
		detail := decodeError(t, rec)
		assert.Equal(t, ErrCodeInternalError, detail.Code)
		assert.Equal(t, "req-1", detail.RequestID)
	})
}

func TestSendError(t *testing.T) {
	tests := []struct {
		name      string
		requestID string
		want      string
	}{
		{name: "tagged with request id", requestID: "req-42", want: `{"error":{"code":"NOT_FOUND","message":"no such tool","request_id":"req-42"}}`},
		{name: "no request id", want: `{"error":{"code":"NOT_FOUND","message":"no such tool"}}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			if tt.requestID != "" {
				rec.Header().Set(RequestIDHeader, tt.requestID)
			}
			SendError(rec, http.StatusNotFound, ErrCodeNotFound, "no such tool")

			assert.Equal(t, http.StatusNotFound, rec.Code)
			assert.JSONEq(t, tt.want, rec.Body.String())
		})
	}
}

func TestDecodeJSON(t *testing.T) {
	var body struct {
		Message string `json:"message"`
	}

	tests := []struct {
		name    string
		in      string
		wantErr string
	}{
		{name: "valid", in: `{"message":"hi"}`},
		{name: "empty", in: "", wantErr: "request body is empty"},
		{name: "malformed", in: "{nope", wantErr: "invalid JSON body"},
		{name: "over the limit", in: `{"message":"` + strings.Repeat("x", maxBodyBytes) + `"}`, wantErr: "invalid JSON body"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodPost, "/api/v1/chat", strings.NewReader(tt.in))
			err := DecodeJSON(r, &body)
			if tt.wantErr == "" {
				require.NoError(t, err)
				assert.Equal(t, "hi", body.Message)
				return
			}
			assert.ErrorContains(t, err, tt.wantErr)
		})
	}
}
