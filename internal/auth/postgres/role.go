package postgres

import (
	"context"
	"errors"

	userDatamodel "github.com/thiagocrux/simcasi/internal/core/datamodel/user"
	"gorm.io/gorm"
)

type RoleRepository struct {
	db *gorm.DB
}

func NewRoleRepository(db *gorm.DB) *RoleRepository {
	return &RoleRepository{db: db}
}

func (r *RoleRepository) FindByID(ctx context.Context, id string) (*userDatamodel.Role, error) {
	var role userDatamodel.Role
	err := r.db.WithContext(ctx).Where("id = ? AND deleted_at IS NULL", id).First(&role).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &role, nil
}

func (r *RoleRepository) FindByCode(ctx context.Context, code string) (*userDatamodel.Role, error) {
	var role userDatamodel.Role
	err := r.db.WithContext(ctx).Where("code = ? AND deleted_at IS NULL", code).First(&role).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &role, nil
}
