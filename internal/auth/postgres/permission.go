package postgres

import (
	"context"

	userDatamodel "github.com/thiagocrux/simcasi/internal/core/datamodel/user"
	"gorm.io/gorm"
)

type PermissionRepository struct {
	db *gorm.DB
}

func NewPermissionRepository(db *gorm.DB) *PermissionRepository {
	return &PermissionRepository{db: db}
}

func (r *PermissionRepository) FindByRoleID(ctx context.Context, roleID string) ([]userDatamodel.Permission, error) {
	var perms []userDatamodel.Permission
	err := r.db.WithContext(ctx).
		Table("permissions").
		Select("permissions.*").
		Joins("JOIN role_permissions rp ON rp.permission_id = permissions.id").
		Where("rp.role_id = ? AND permissions.deleted_at IS NULL", roleID).
		Order("permissions.code ASC").
		Find(&perms).Error
	return perms, err
}
