package auth

import (
	"context"
	"log/slog"

	"github.com/thiagocrux/simcasi/internal"
)

// Gate checks a role against the permission codes an operation requires.
type Gate struct {
	resolver *PermissionResolver
	logger   *slog.Logger
}

func NewGate(resolver *PermissionResolver, logger *slog.Logger) *Gate {
	return &Gate{
		resolver: resolver,
		logger:   logger,
	}
}

func (g *Gate) HasPermission(ctx context.Context, roleID, code string) (bool, error) {
	return g.resolver.HasPermission(ctx, roleID, code)
}

// Authorize passes when required is empty or the role holds any one of the codes.
func (g *Gate) Authorize(ctx context.Context, roleID string, required []string) error {
	if len(required) == 0 {
		return nil
	}

	allowed, err := g.resolver.HasAnyPermission(ctx, roleID, required)
	if err != nil {
		g.logger.ErrorContext(ctx, "authorization check failed", "error", err, "role_id", roleID)
		return internal.NewInternalError("failed to check permissions", err)
	}

	if !allowed {
		g.logger.WarnContext(ctx, "access denied: insufficient permissions",
			"role_id", roleID,
			"required_permissions", required)
		return internal.ErrForbidden
	}
	return nil
}
