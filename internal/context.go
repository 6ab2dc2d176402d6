package internal

import (
	"context"
	"net/http"
	"strings"
	"time"
)

type ctxKey string

const contextClientKey ctxKey = "client"

// UnknownClientValue fills client metadata the request did not provide.
const UnknownClientValue = "unknown"

// ClientInfo is the caller metadata attached to sessions and audit entries.
type ClientInfo struct {
	IPAddress string
	UserAgent string
}

func NewClientInfo(ip, userAgent string) ClientInfo {
	ip = strings.TrimSpace(ip)
	userAgent = strings.TrimSpace(userAgent)
	if ip == "" {
		ip = UnknownClientValue
	}
	if userAgent == "" {
		userAgent = UnknownClientValue
	}
	return ClientInfo{IPAddress: ip, UserAgent: userAgent}
}

// ClientInfoFromRequest reads the first X-Forwarded-For hop and the User-Agent header.
func ClientInfoFromRequest(r *http.Request) ClientInfo {
	ip := r.Header.Get("X-Forwarded-For")
	if i := strings.IndexByte(ip, ','); i >= 0 {
		ip = ip[:i]
	}
	return NewClientInfo(ip, r.Header.Get("User-Agent"))
}

func ContextWithClient(ctx context.Context, client ClientInfo) context.Context {
	return context.WithValue(ctx, contextClientKey, client)
}

func ClientFromContext(ctx context.Context) ClientInfo {
	if ctx != nil {
		if client, ok := ctx.Value(contextClientKey).(ClientInfo); ok {
			return client
		}
	}
	return NewClientInfo("", "")
}

// WithTimeout returns a context with timeout, defaulting to 5 seconds if duration is zero or negative.
func WithTimeout(ctx context.Context, duration time.Duration) (context.Context, context.CancelFunc) {
	if duration <= 0 {
		duration = 5 * time.Second
	}
	return context.WithTimeout(ctx, duration)
}

// Detached keeps ctx values but drops its cancellation, then bounds the result with a timeout.
// A client disconnect must not abort a session rotation halfway.
func Detached(ctx context.Context, duration time.Duration) (context.Context, context.CancelFunc) {
	return WithTimeout(context.WithoutCancel(ctx), duration)
}
