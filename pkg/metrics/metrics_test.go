package metrics

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestObserveTool(t *testing.T) {
	before := testutil.ToFloat64(ToolCalls.WithLabelValues("read_file", "ok"))
	ObserveTool("read_file", "ok", 20*time.Millisecond)
	after := testutil.ToFloat64(ToolCalls.WithLabelValues("read_file", "ok"))
	assert.Equal(t, before+1, after)
}

func TestObserveModel(t *testing.T) {
	before := testutil.ToFloat64(ModelRequests.WithLabelValues("ollama", "error"))
	ObserveModel("ollama", errors.New("boom"), time.Second)
	assert.Equal(t, before+1, testutil.ToFloat64(ModelRequests.WithLabelValues("ollama", "error")))
}

func TestHandler(t *testing.T) {
	ObserveTool("calculate", "ok", time.Millisecond)

	rec := httptest.NewRecorder()
	Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, strings.Contains(rec.Body.String(), "conductor_tool_calls_total"))
}

func TestObserveHTTP(t *testing.T) {
	before := testutil.ToFloat64(HTTPRequests.WithLabelValues("GET", "/api/v1/tools", "200"))
	ObserveHTTP("GET", "/api/v1/tools", http.StatusOK, 5*time.Millisecond)
	assert.Equal(t, before+1, testutil.ToFloat64(HTTPRequests.WithLabelValues("GET", "/api/v1/tools", "200")))
}
