package postgres

import (
	"context"
	"errors"
	"time"

	userDatamodel "github.com/thiagocrux/simcasi/internal/core/datamodel/user"
	"gorm.io/gorm"
)

type UserRepository struct {
	db *gorm.DB
}

func NewUserRepository(db *gorm.DB) *UserRepository {
	return &UserRepository{db: db}
}

// FindByID returns soft-deleted rows too; callers decide what a deleted user means.
func (r *UserRepository) FindByID(ctx context.Context, id string) (*userDatamodel.User, error) {
	var u userDatamodel.User
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&u).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &u, nil
}

func (r *UserRepository) FindByEmail(ctx context.Context, email string) (*userDatamodel.User, error) {
	var u userDatamodel.User
	err := r.db.WithContext(ctx).Where("email = ? AND deleted_at IS NULL", email).First(&u).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &u, nil
}

func (r *UserRepository) List(ctx context.Context) ([]userDatamodel.User, error) {
	var users []userDatamodel.User
	err := r.db.WithContext(ctx).Where("deleted_at IS NULL").Order("name ASC").Find(&users).Error
	return users, err
}

func (r *UserRepository) Create(ctx context.Context, u *userDatamodel.User) error {
	return r.db.WithContext(ctx).Create(u).Error
}

func (r *UserRepository) Update(ctx context.Context, u *userDatamodel.User) error {
	return r.db.WithContext(ctx).
		Model(&userDatamodel.User{}).
		Where("id = ? AND deleted_at IS NULL", u.ID).
		Updates(map[string]interface{}{
			"name":       u.Name,
			"email":      u.Email,
			"role_id":    u.RoleID,
			"updated_at": u.UpdatedAt,
		}).Error
}

func (r *UserRepository) UpdatePassword(ctx context.Context, id, passwordHash string) error {
	return r.db.WithContext(ctx).
		Model(&userDatamodel.User{}).
		Where("id = ? AND deleted_at IS NULL", id).
		Updates(map[string]interface{}{
			"password_hash": passwordHash,
			"updated_at":    time.Now().UTC(),
		}).Error
}

func (r *UserRepository) SoftDelete(ctx context.Context, id string) (bool, error) {
	now := time.Now().UTC()
	res := r.db.WithContext(ctx).
		Model(&userDatamodel.User{}).
		Where("id = ? AND deleted_at IS NULL", id).
		Updates(map[string]interface{}{
			"deleted_at": now,
			"updated_at": now,
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}
