package middleware

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/middleware"
	"github.com/thiagocrux/simcasi/pkg/logger"
)

// maxLoggedBody bounds how much of a request or response body is kept for logging.
const maxLoggedBody = 4 << 10

// sensitiveFields filter any field or header whose name contains them
var sensitiveFields = []string{
	"password",
	"passwd",
	"token",
	"authorization",
	"secret",
	"api_key",
	"api-key",
	"private_key",
	"credential",
	"cookie",
}

// sensitiveNames are too generic for substring matching, e.g. "session" must
// not hide session_id
var sensitiveNames = map[string]bool{
	"key":     true,
	"session": true,
	"auth":    true,
}

func isSensitive(name string) bool {
	name = strings.ToLower(name)
	if sensitiveNames[name] {
		return true
	}
	for _, field := range sensitiveFields {
		if strings.Contains(name, field) {
			return true
		}
	}
	return false
}

// LoggingMiddleware logs each request and response through the request
// logger, with credentials filtered out of headers and bodies. Bodies are
// only read at debug level and never beyond maxLoggedBody.
func LoggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		lg := logger.From(r.Context())
		reqID := middleware.GetReqID(r.Context())
		debug := lg.Enabled(r.Context(), slog.LevelDebug)

		if debug {
			logRequest(lg, r, reqID)
		}

		ww := &responseWriter{
			ResponseWriter: w,
			capture:        debug,
		}

		next.ServeHTTP(ww, r)

		duration := time.Since(start)
		logResponse(r, lg, ww, duration, reqID)
	})
}

// responseWriter wraps http.ResponseWriter to record the status, the size
// and, at debug level, the head of the response body
type responseWriter struct {
	http.ResponseWriter
	statusCode int
	size       int
	capture    bool
	body       bytes.Buffer
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

func (rw *responseWriter) Write(b []byte) (int, error) {
	if room := maxLoggedBody - rw.body.Len(); rw.capture && room > 0 {
		rw.body.Write(b[:min(room, len(b))])
	}
	n, err := rw.ResponseWriter.Write(b)
	rw.size += n
	return n, err
}

type replayBody struct {
	io.Reader
	io.Closer
}

// logRequest logs the incoming HTTP request with sensitive data filtered.
// Only the head of the body is read; the handler still sees all of it.
func logRequest(logger *slog.Logger, r *http.Request, reqID string) {
	var head []byte
	if r.Body != nil && r.Body != http.NoBody {
		head, _ = io.ReadAll(io.LimitReader(r.Body, maxLoggedBody))
		r.Body = replayBody{Reader: io.MultiReader(bytes.NewReader(head), r.Body), Closer: r.Body}
	}

	headers := filterSensitiveHeaders(r.Header)

	filteredBody := filterSensitiveBody(head)

	logger.DebugContext(r.Context(), "incoming request",
		"request_id", reqID,
		"method", r.Method,
		"path", r.URL.Path,
		"query", r.URL.RawQuery,
		"user_agent", r.UserAgent(),
		"headers", headers,
		"body", filteredBody,
		"body_truncated", len(head) == maxLoggedBody,
	)
}

func logResponse(r *http.Request, logger *slog.Logger, rw *responseWriter, duration time.Duration, reqID string) {
	statusCode := rw.statusCode
	if statusCode == 0 {
		statusCode = 200
	}

	logLevel := slog.LevelInfo
	if statusCode >= 400 && statusCode < 500 {
		logLevel = slog.LevelWarn
	} else if statusCode >= 500 {
		logLevel = slog.LevelError
	}

	attrs := []any{
		"request_id", reqID,
		"status_code", statusCode,
		"duration_ms", duration.Milliseconds(),
		"response_size", rw.size,
		"set_cookie", len(rw.Header().Values("Set-Cookie")) > 0,
	}
	if rw.capture {
		attrs = append(attrs, "body", filterSensitiveBody(rw.body.Bytes()))
	}

	logger.Log(r.Context(), logLevel, "response", attrs...)
}

// filterSensitiveHeaders removes or masks sensitive headers
func filterSensitiveHeaders(headers http.Header) map[string]string {
	filtered := make(map[string]string)

	for name, values := range headers {
		if isSensitive(name) {
			filtered[name] = "[FILTERED]"
		} else {
			filtered[name] = strings.Join(values, ", ")
		}
	}

	return filtered
}

// filterSensitiveBody removes or masks sensitive fields from JSON body
func filterSensitiveBody(body []byte) string {
	if len(body) == 0 {
		return ""
	}

	// Try to parse as JSON
	var jsonData interface{}
	if err := json.Unmarshal(body, &jsonData); err != nil {
		// Not JSON, or truncated JSON: only logged when nothing looks sensitive
		lowerBody := strings.ToLower(string(body))
		for _, sensitiveField := range sensitiveFields {
			if strings.Contains(lowerBody, sensitiveField) {
				return "[FILTERED - Contains sensitive data]"
			}
		}
		for name := range sensitiveNames {
			if strings.Contains(lowerBody, name) {
				return "[FILTERED - Contains sensitive data]"
			}
		}
		return string(body)
	}

	// Filter sensitive fields from JSON
	filtered := filterSensitiveJSON(jsonData)

	// Convert back to JSON string
	filteredBytes, err := json.Marshal(filtered)
	if err != nil {
		return "[ERROR - Failed to marshal filtered JSON]"
	}

	return string(filteredBytes)
}

// filterSensitiveJSON recursively filters sensitive fields from JSON data
func filterSensitiveJSON(data interface{}) interface{} {
	switch v := data.(type) {
	case map[string]interface{}:
		filtered := make(map[string]interface{})
		for key, value := range v {
			if isSensitive(key) {
				filtered[key] = "[FILTERED]"
			} else {
				filtered[key] = filterSensitiveJSON(value)
			}
		}
		return filtered
	case []interface{}:
		filtered := make([]interface{}, len(v))
		for i, item := range v {
			filtered[i] = filterSensitiveJSON(item)
		}
		return filtered
	default:
		return v
	}
}
