package middleware

import (
	"fmt"
	"net/http"
	"runtime/debug"

	"github.com/rs/zerolog"
)

// Recover turns a handler panic into a 500 carrying the request id, so a
// remote orchestrator's failed job can be matched to the node's log line.
func Recover(log zerolog.Logger) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if rec := recover(); rec != nil {
					requestID := RequestIDFrom(r.Context())
					if requestID == "" {
						requestID = w.Header().Get(requestIDHeader)
					}
					log.Error().
						Interface("error", rec).
						Str("request_id", requestID).
						Str("method", r.Method).
						Str("path", r.URL.Path).
						Bytes("stack", debug.Stack()).
						Msg("http_panic")
					w.Header().Set("Content-Type", "application/json")
					w.WriteHeader(http.StatusInternalServerError)
					fmt.Fprintf(w, `{"error":{"code":"internal","message":%q,"request_id":%q}}`+"\n",
						http.StatusText(http.StatusInternalServerError), requestID)
				}
			}()
			next.ServeHTTP(w, r)
		})
	}
}
