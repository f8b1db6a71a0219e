package middleware

import (
	"bufio"
	"net"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/rs/zerolog"

	"conductor/pkg/logger"
	"conductor/pkg/metrics"
)

// statusRecorder remembers the status and body size of a response. It
// passes Hijack through for websocket upgrades and Flush for streaming.
type statusRecorder struct {
	http.ResponseWriter
	status int
	bytes  int
}

func (s *statusRecorder) WriteHeader(code int) {
	s.status = code
	s.ResponseWriter.WriteHeader(code)
}

func (s *statusRecorder) Write(p []byte) (int, error) {
	n, err := s.ResponseWriter.Write(p)
	s.bytes += n
	return n, err
}

func (s *statusRecorder) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	h, ok := s.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, http.ErrNotSupported
	}
	return h.Hijack()
}

func (s *statusRecorder) Flush() {
	if f, ok := s.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

// quietRoutes are scraped or polled often enough to drown the access log.
// They still count in the metrics.
var quietRoutes = map[string]bool{
	"/api/v1/health": true,
	"/metrics":       true,
}

// Logging writes one access log line per request and records it in the
// HTTP metrics, labelled by route template. Install it with Router.Use so
// the matched route is known.
func Logging(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}

		next.ServeHTTP(rec, r)

		elapsed := time.Since(start)
		route := routeLabel(r)
		metrics.ObserveHTTP(r.Method, route, rec.status, elapsed)
		if quietRoutes[route] {
			return
		}

		log := logger.FromContext(r.Context())
		log.WithLevel(accessLevel(rec.status)).
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Str("route", route).
			Int("status", rec.status).
			Int("bytes", rec.bytes).
			Dur("latency", elapsed).
			Msg("request served")
	})
}

// accessLevel raises the log level for failed requests.
func accessLevel(status int) zerolog.Level {
	switch {
	case status >= 500:
		return zerolog.ErrorLevel
	case status >= 400:
		return zerolog.WarnLevel
	default:
		return zerolog.InfoLevel
	}
}

func routeLabel(r *http.Request) string {
	if route := mux.CurrentRoute(r); route != nil {
		if tpl, err := route.GetPathTemplate(); err == nil {
			return tpl
		}
	}
	return "unmatched"
}
