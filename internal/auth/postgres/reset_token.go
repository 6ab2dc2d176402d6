package postgres

import (
	"context"
	"errors"
	"time"

	sessionDatamodel "github.com/thiagocrux/simcasi/internal/core/datamodel/session"
	"gorm.io/gorm"
)

type ResetTokenRepository struct {
	db *gorm.DB
}

func NewResetTokenRepository(db *gorm.DB) *ResetTokenRepository {
	return &ResetTokenRepository{db: db}
}

func (r *ResetTokenRepository) Create(ctx context.Context, token *sessionDatamodel.PasswordResetToken) error {
	return r.db.WithContext(ctx).Create(token).Error
}

func (r *ResetTokenRepository) FindActiveByHash(ctx context.Context, tokenHash string, now time.Time) (*sessionDatamodel.PasswordResetToken, error) {
	var token sessionDatamodel.PasswordResetToken
	err := r.db.WithContext(ctx).
		Where("token_hash = ? AND used_at IS NULL AND deleted_at IS NULL AND expires_at > ?", tokenHash, now).
		First(&token).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &token, nil
}

// InvalidateForUser retires every outstanding token of the user.
func (r *ResetTokenRepository) InvalidateForUser(ctx context.Context, userID string) (int64, error) {
	res := r.db.WithContext(ctx).
		Model(&sessionDatamodel.PasswordResetToken{}).
		Where("user_id = ? AND used_at IS NULL AND deleted_at IS NULL", userID).
		Update("deleted_at", time.Now().UTC())
	return res.RowsAffected, res.Error
}

// MarkUsed consumes the token; false means it was already used or retired.
func (r *ResetTokenRepository) MarkUsed(ctx context.Context, id string) (bool, error) {
	res := r.db.WithContext(ctx).
		Model(&sessionDatamodel.PasswordResetToken{}).
		Where("id = ? AND used_at IS NULL AND deleted_at IS NULL", id).
		Update("used_at", time.Now().UTC())
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

func (r *ResetTokenRepository) DeleteExpired(ctx context.Context, before time.Time) (int64, error) {
	res := r.db.WithContext(ctx).
		Where("expires_at < ?", before).
		Delete(&sessionDatamodel.PasswordResetToken{})
	return res.RowsAffected, res.Error
}
