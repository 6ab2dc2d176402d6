package middleware

import (
	"encoding/json"
	"net/http"

	"github.com/thiagocrux/simcasi/internal"
	"github.com/thiagocrux/simcasi/pkg/logger"
)

// ClientContext stores the caller's IP and user agent in the request context
// and tags the request logger with them.
func ClientContext(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		client := internal.ClientInfoFromRequest(r)

		ctx := internal.ContextWithClient(r.Context(), client)
		ctx = logger.With(ctx, "ip_address", client.IPAddress)

		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
