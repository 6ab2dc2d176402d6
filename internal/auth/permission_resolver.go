package auth

import (
	"context"
	"fmt"
)

// PermissionResolver maps a role to its permission codes. It reads the store
// on every call, so role changes apply to the very next request.
type PermissionResolver struct {
	permissions PermissionRepository
}

func NewPermissionResolver(permissions PermissionRepository) *PermissionResolver {
	return &PermissionResolver{permissions: permissions}
}

func (r *PermissionResolver) PermissionCodes(ctx context.Context, roleID string) ([]string, error) {
	if roleID == "" {
		return []string{}, nil
	}
	perms, err := r.permissions.FindByRoleID(ctx, roleID)
	if err != nil {
		return nil, fmt.Errorf("find permissions for role %s: %w", roleID, err)
	}
	codes := make([]string, 0, len(perms))
	for _, p := range perms {
		codes = append(codes, p.Code)
	}
	return codes, nil
}

func (r *PermissionResolver) HasPermission(ctx context.Context, roleID, code string) (bool, error) {
	return r.HasAnyPermission(ctx, roleID, []string{code})
}

func (r *PermissionResolver) HasAnyPermission(ctx context.Context, roleID string, required []string) (bool, error) {
	codes, err := r.PermissionCodes(ctx, roleID)
	if err != nil {
		return false, err
	}
	return HasAnyPermission(codes, required), nil
}

func HasAnyPermission(granted []string, required []string) bool {
	for _, g := range granted {
		for _, r := range required {
			if g == r {
				return true
			}
		}
	}
	return false
}
