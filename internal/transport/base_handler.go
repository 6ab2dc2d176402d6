package transport

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/thiagocrux/simcasi/internal"
	"github.com/thiagocrux/simcasi/pkg/logger"
)

// MaxRequestBodyBytes caps every JSON request body.
const MaxRequestBodyBytes = 1 << 20

// BaseHandler provides common functionality for HTTP handlers
type BaseHandler struct {
	Logger *slog.Logger
}

// NewBaseHandler creates a base handler with logger
func NewBaseHandler(lg *slog.Logger) *BaseHandler {
	if lg == nil {
		lg = logger.LoggerWrapper()
	}
	return &BaseHandler{Logger: lg}
}

// WriteJSON writes a JSON response
func (h *BaseHandler) WriteJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.Logger.Error("failed to encode JSON response", "error", err)
	}
}

// WriteError writes an error response
func (h *BaseHandler) WriteError(w http.ResponseWriter, status int, message string) {
	h.WriteJSON(w, status, map[string]interface{}{
		"code":    status,
		"message": message,
	})
}

// WriteAppError renders err with its taxonomy code. Anything that is not an
// AppError becomes an opaque 500.
func (h *BaseHandler) WriteAppError(w http.ResponseWriter, r *http.Request, err error) {
	appErr, ok := internal.IsAppError(err)
	if !ok {
		appErr = internal.NewInternalError("Internal server error", err)
	}

	lg := logger.From(r.Context())
	if appErr.StatusCode >= http.StatusInternalServerError {
		lg.ErrorContext(r.Context(), "request failed", "code", appErr.Code, "error", err)
		// never leak the cause to the client
		appErr = internal.NewInternalError("Internal server error", nil)
	} else {
		lg.DebugContext(r.Context(), "request rejected", "code", appErr.Code, "status", appErr.StatusCode)
	}

	status, body := appErr.ToHTTPResponse()
	h.WriteJSON(w, status, body)
}

// DecodeJSON reads a JSON body of at most MaxRequestBodyBytes into dst,
// answering 400 on malformed or oversized input.
func (h *BaseHandler) DecodeJSON(w http.ResponseWriter, r *http.Request, dst interface{}) bool {
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, MaxRequestBodyBytes)).Decode(dst); err != nil {
		h.WriteAppError(w, r, internal.NewValidationError("invalid request body", internal.ErrCodeValidationFailed))
		return false
	}
	return true
}
