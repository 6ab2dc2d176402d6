package middleware

import (
	"net/http"
	"runtime/debug"

	"github.com/thiagocrux/simcasi/internal"
	"github.com/thiagocrux/simcasi/pkg/logger"
)

// RecoveryMiddleware turns a panic into an opaque 500 and logs the stack.
func RecoveryMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				if rec == http.ErrAbortHandler {
					panic(rec)
				}
				logger.From(r.Context()).ErrorContext(r.Context(), "panic recovered",
					"error", rec,
					"method", r.Method,
					"path", r.URL.Path,
					"stack", string(debug.Stack()))

				status, body := internal.NewInternalError("Internal server error", nil).ToHTTPResponse()
				writeJSON(w, status, body)
			}
		}()

		next.ServeHTTP(w, r)
	})
}
