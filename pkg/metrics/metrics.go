// Package metrics holds the Prometheus collectors exported by conductor.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Registry is the process-wide registry served on /metrics.
var Registry = prometheus.NewRegistry()

func init() {
	Registry.MustRegister(
		ToolCalls, ToolDuration, LoopPrevented,
		Rounds, Conversations, ModelRequests, ModelLatency,
		HTTPRequests, HTTPDuration,
		WSClients, WSFrames,
	)
}

// ToolCalls counts executed tool calls by tool and outcome kind ("ok" or an error kind).
var ToolCalls = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "conductor_tool_calls_total",
		Help: "Tool calls by tool and outcome.",
	},
	[]string{"tool", "outcome"},
)

// ToolDuration is the dispatch time of tool calls in seconds.
var ToolDuration = prometheus.NewHistogramVec(
	prometheus.HistogramOpts{
		Name:    "conductor_tool_duration_seconds",
		Help:    "Tool dispatch duration in seconds.",
		Buckets: prometheus.DefBuckets,
	},
	[]string{"tool"},
)

// LoopPrevented counts commands refused by the repetition guard.
var LoopPrevented = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "conductor_loop_prevented_total",
		Help: "Commands refused by loop detection.",
	},
	[]string{"tool"},
)

// Rounds is the number of rounds a conversation took.
var Rounds = prometheus.NewHistogram(
	prometheus.HistogramOpts{
		Name:    "conductor_conversation_rounds",
		Help:    "Rounds per conversation.",
		Buckets: []float64{1, 2, 3, 4, 5, 8},
	},
)

// Conversations counts finished conversations by final outcome.
var Conversations = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "conductor_conversations_total",
		Help: "Conversations by outcome.",
	},
	[]string{"outcome"}, // done | round_limit | failed
)

// ModelRequests counts backend calls by backend and status.
var ModelRequests = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "conductor_model_requests_total",
		Help: "Model backend requests.",
	},
	[]string{"backend", "status"},
)

// ModelLatency is the model backend latency in seconds.
var ModelLatency = prometheus.NewHistogramVec(
	prometheus.HistogramOpts{
		Name:    "conductor_model_latency_seconds",
		Help:    "Model backend latency in seconds.",
		Buckets: []float64{0.1, 0.5, 1, 2.5, 5, 10, 30, 60, 120},
	},
	[]string{"backend"},
)

// HTTPRequests counts gateway requests by method, route template and status.
var HTTPRequests = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "conductor_http_requests_total",
		Help: "Gateway HTTP requests.",
	},
	[]string{"method", "route", "status"},
)

// HTTPDuration is the gateway request latency in seconds.
var HTTPDuration = prometheus.NewHistogramVec(
	prometheus.HistogramOpts{
		Name:    "conductor_http_request_duration_seconds",
		Help:    "Gateway HTTP request latency in seconds.",
		Buckets: prometheus.DefBuckets,
	},
	[]string{"method", "route"},
)

// WSClients is the number of attached websocket clients.
var WSClients = prometheus.NewGauge(
	prometheus.GaugeOpts{
		Name: "conductor_ws_clients",
		Help: "Attached websocket clients.",
	},
)

// WSFrames counts outbound websocket frames by outcome.
var WSFrames = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "conductor_ws_frames_total",
		Help: "Outbound websocket frames.",
	},
	[]string{"outcome"}, // queued | dropped
)

// ObserveHTTP records one served request.
func ObserveHTTP(method, route string, status int, d time.Duration) {
	HTTPRequests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	HTTPDuration.WithLabelValues(method, route).Observe(d.Seconds())
}

// ObserveTool records one finished tool call.
func ObserveTool(tool, outcome string, d time.Duration) {
	ToolCalls.WithLabelValues(tool, outcome).Inc()
	ToolDuration.WithLabelValues(tool).Observe(d.Seconds())
}

// ObserveModel records one backend request.
func ObserveModel(backend string, err error, d time.Duration) {
	status := "ok"
	if err != nil {
		status = "error"
	}
	ModelRequests.WithLabelValues(backend, status).Inc()
	ModelLatency.WithLabelValues(backend).Observe(d.Seconds())
}

// Handler serves the registry in the Prometheus text format.
func Handler() http.Handler {
	return promhttp.HandlerFor(Registry, promhttp.HandlerOpts{})
}
