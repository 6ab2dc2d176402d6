package audit

import (
	"context"

	"github.com/thiagocrux/simcasi/internal"
)

// Context is the identity and client metadata attributed to writes made
// during one protected operation. It is stored by value, so scopes never alias.
type Context struct {
	UserID    string
	RoleID    string
	RoleCode  string
	IPAddress string
	UserAgent string
}

type contextKey struct{}

// Anonymous is the scope used before the caller is known, such as during a refresh.
func Anonymous(client internal.ClientInfo) Context {
	return Context{
		IPAddress: client.IPAddress,
		UserAgent: client.UserAgent,
	}
}

func (c Context) Authenticated() bool {
	return c.UserID != ""
}

func WithContext(ctx context.Context, ac Context) context.Context {
	if ac.IPAddress == "" {
		ac.IPAddress = internal.UnknownClientValue
	}
	if ac.UserAgent == "" {
		ac.UserAgent = internal.UnknownClientValue
	}
	return context.WithValue(ctx, contextKey{}, ac)
}

// FromContext returns the active scope. Outside any scope it falls back to an
// anonymous context built from the request's client metadata.
func FromContext(ctx context.Context) (Context, bool) {
	if ctx != nil {
		if ac, ok := ctx.Value(contextKey{}).(Context); ok {
			return ac, true
		}
	}
	return Anonymous(internal.ClientFromContext(ctx)), false
}
