package secured

import (
	"context"
	"log/slog"

	"github.com/thiagocrux/simcasi/internal"
	"github.com/thiagocrux/simcasi/internal/audit"
	"github.com/thiagocrux/simcasi/internal/auth"
	"github.com/thiagocrux/simcasi/pkg/logger"
	"github.com/thiagocrux/simcasi/pkg/metrics"
)

type Authenticator interface {
	Authenticate(ctx context.Context, accessToken string) (*auth.Principal, error)
}

type Authorizer interface {
	Authorize(ctx context.Context, roleID string, required []string) error
}

type Rotator interface {
	Refresh(ctx context.Context, refreshToken string, client internal.ClientInfo) (*auth.RotationResult, error)
}

// CredentialStore is the caller's persisted token pair, e.g. its cookies.
type CredentialStore interface {
	AccessToken() string
	RefreshToken() string
	Save(pair auth.TokenPair)
	Clear()
}

// Operation is the business function a protected call runs.
type Operation[T any] func(ctx context.Context) (T, error)

// Wrapper holds what every protected operation needs: authentication,
// authorization and the refresh flow used to recover from an expired access token.
type Wrapper struct {
	authn   Authenticator
	authz   Authorizer
	rotator Rotator
	metrics *metrics.Metrics
	logger  *slog.Logger
}

func NewWrapper(authn Authenticator, authz Authorizer, rotator Rotator, m *metrics.Metrics, lg *slog.Logger) *Wrapper {
	if lg == nil {
		lg = slog.Default()
	}
	return &Wrapper{
		authn:   authn,
		authz:   authz,
		rotator: rotator,
		metrics: m,
		logger:  lg,
	}
}

// Run authenticates, authorizes and runs fn inside an audit scope. When the
// access token has expired and a refresh token is stored, it rotates once and
// runs the whole sequence one more time. Any other failure is returned as is.
func Run[T any](ctx context.Context, w *Wrapper, creds CredentialStore, client internal.ClientInfo, required []string, fn Operation[T]) (T, error) {
	result, err := w.attempt(ctx, creds, client, required, wrap(fn))
	if err == nil || !internal.HasCode(err, internal.ErrCodeTokenExpired) {
		return unwrap[T](result), err
	}

	refreshToken := creds.RefreshToken()
	if refreshToken == "" {
		return unwrap[T](result), err
	}

	rotation, rerr := w.rotator.Refresh(audit.WithContext(ctx, audit.Anonymous(client)), refreshToken, client)
	if rerr != nil {
		w.metrics.ObserveRetry("error")
		w.logger.ErrorContext(ctx, "silent refresh failed", "error", rerr)
		return unwrap[T](nil), rerr
	}
	if !rotation.Rotated() {
		creds.Clear()
		w.metrics.ObserveRetry(string(rotation.Outcome))
		w.logger.InfoContext(ctx, "silent refresh rejected, credentials cleared", "outcome", rotation.Outcome)
		return unwrap[T](nil), rotation.Err()
	}

	creds.Save(rotation.Tokens)
	w.metrics.ObserveRetry(string(rotation.Outcome))

	result, err = w.attempt(ctx, creds, client, required, wrap(fn))
	return unwrap[T](result), err
}

func (w *Wrapper) attempt(ctx context.Context, creds CredentialStore, client internal.ClientInfo, required []string, fn Operation[any]) (any, error) {
	token := creds.AccessToken()
	if token == "" {
		if creds.RefreshToken() == "" {
			return nil, internal.ErrUnauthenticated
		}
		// the short-lived access cookie lapsed before the refresh cookie
		return nil, internal.ErrTokenExpired
	}

	principal, err := w.authn.Authenticate(ctx, token)
	if err != nil {
		return nil, err
	}

	if err := w.authz.Authorize(ctx, principal.RoleID, required); err != nil {
		return nil, err
	}

	ctx = audit.WithContext(ctx, audit.Context{
		UserID:    principal.UserID,
		RoleID:    principal.RoleID,
		RoleCode:  principal.RoleCode,
		IPAddress: client.IPAddress,
		UserAgent: client.UserAgent,
	})
	ctx = auth.ContextWithPrincipal(ctx, *principal)
	ctx = logger.With(ctx, "user_id", principal.UserID, "session_id", principal.SessionID)

	return fn(ctx)
}

func wrap[T any](fn Operation[T]) Operation[any] {
	return func(ctx context.Context) (any, error) {
		return fn(ctx)
	}
}

func unwrap[T any](v any) T {
	if t, ok := v.(T); ok {
		return t
	}
	var zero T
	return zero
}
