package middleware

import (
	"net/http"
	"runtime/debug"

	"conductor/internal/gateway/handlers"
	"conductor/pkg/logger"
)

// Recovery answers 500 when a handler panics and logs the panic with its
// stack. http.ErrAbortHandler is re-raised so net/http can drop the
// connection silently.
func Recovery(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			v := recover()
			if v == nil {
				return
			}
			if v == http.ErrAbortHandler {
				panic(v)
			}

			log := logger.FromContext(r.Context())
			log.Error().
				Interface("panic", v).
				Str("method", r.Method).
				Str("path", r.URL.Path).
				Str("stack", string(debug.Stack())).
				Msg("handler panicked")
			handlers.SendError(w, http.StatusInternalServerError, handlers.ErrCodeInternalError, "internal server error")
		}()

		next.ServeHTTP(w, r)
	})
}
