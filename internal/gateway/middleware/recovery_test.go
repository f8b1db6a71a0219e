package middleware

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"conductor/internal/gateway/handlers"
)

func TestRecovery(t *testing.T) {
	t.Run("panic becomes 500 with the request id", func(t *testing.T) {
		logs := captureLogs(t)
		h := RequestID(Recovery(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			panic("tool registry corrupted")
		})))

		req := httptest.NewRequest(http.MethodPost, "/api/v1/chat", nil)
		req.Header.Set(handlers.RequestIDHeader, "req-7")
		rec := httptest.NewRecorder()
		require.NotPanics(t, func() { h.ServeHTTP(rec, req) })

		assert.Equal(t, http.StatusInternalServerError, rec.Code)
		var resp handlers.ErrorResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		assert.Equal(t, handlers.ErrCodeInternalError, resp.Error.Code)
		assert.Equal(t, "req-7", resp.Error.RequestID)

		assert.Contains(t, logs.String(), "tool registry corrupted")
		assert.Contains(t, logs.String(), `"request_id":"req-7"`)
		assert.Contains(t, logs.String(), `"stack"`)
	})

	t.Run("normal requests pass through", func(t *testing.T) {
		h := Recovery(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusCreated)
		}))
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
		assert.Equal(t, http.StatusCreated, rec.Code)
	})

	t.Run("abort handler is re-raised", func(t *testing.T) {
		h := Recovery(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			panic(http.ErrAbortHandler)
		}))
		assert.PanicsWithValue(t, http.ErrAbortHandler, func() {
			h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))
		})
	})
}
