package middleware

import (
	"net"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"conductor/internal/gateway/handlers"
	"conductor/pkg/logger"
)

const maxRequestIDLen = 64

// RequestID tags every request with an id. A well-formed X-Request-ID from
// the client is kept, anything else is replaced by a uuid. The id is echoed
// in the response header and carried by the request-scoped logger that
// logger.FromContext returns downstream.
func RequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(handlers.RequestIDHeader)
		if !validRequestID(id) {
			id = uuid.NewString()
		}
		w.Header().Set(handlers.RequestIDHeader, id)

		l := logger.Component("http").With().
			Str("request_id", id).
			Str("ip", clientIP(r)).
			Logger()
		next.ServeHTTP(w, r.WithContext(l.WithContext(r.Context())))
	})
}

func validRequestID(id string) bool {
	if id == "" || len(id) > maxRequestIDLen {
		return false
	}
	for _, c := range id {
		switch {
		case c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z', c >= '0' && c <= '9':
		case c == '-', c == '_', c == '.':
		default:
			return false
		}
	}
	return true
}

// clientIP prefers the first X-Forwarded-For hop, then X-Real-IP, then the
// connection host without its port.
func clientIP(r *http.Request) string {
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		first, _, _ := strings.Cut(fwd, ",")
		return strings.TrimSpace(first)
	}
	if realIP := r.Header.Get("X-Real-IP"); realIP != "" {
		return realIP
	}
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	return r.RemoteAddr
}
