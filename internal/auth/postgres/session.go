package postgres

import (
	"context"
	"errors"
	"time"

	sessionDatamodel "github.com/thiagocrux/simcasi/internal/core/datamodel/session"
	"gorm.io/gorm"
)

type SessionRepository struct {
	db *gorm.DB
}

func NewSessionRepository(db *gorm.DB) *SessionRepository {
	return &SessionRepository{db: db}
}

func (r *SessionRepository) FindByID(ctx context.Context, id string, includeDeleted bool) (*sessionDatamodel.Session, error) {
	query := r.db.WithContext(ctx).Where("id = ?", id)
	if !includeDeleted {
		query = query.Where("deleted_at IS NULL")
	}

	var session sessionDatamodel.Session
	if err := query.First(&session).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &session, nil
}

func (r *SessionRepository) Create(ctx context.Context, session *sessionDatamodel.Session) error {
	return r.db.WithContext(ctx).Create(session).Error
}

// SoftDelete only touches a row that is still active. Zero rows affected means
// another caller retired it first.
func (r *SessionRepository) SoftDelete(ctx context.Context, id string) (bool, error) {
	res := r.db.WithContext(ctx).
		Model(&sessionDatamodel.Session{}).
		Where("id = ? AND deleted_at IS NULL", id).
		Update("deleted_at", time.Now().UTC())
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

func (r *SessionRepository) RevokeAllByUserID(ctx context.Context, userID string) (int64, error) {
	res := r.db.WithContext(ctx).
		Model(&sessionDatamodel.Session{}).
		Where("user_id = ? AND deleted_at IS NULL", userID).
		Update("deleted_at", time.Now().UTC())
	return res.RowsAffected, res.Error
}

// DeleteExpired hard-deletes sessions, active or retired, that expired before the cutoff.
func (r *SessionRepository) DeleteExpired(ctx context.Context, before time.Time) (int64, error) {
	res := r.db.WithContext(ctx).
		Where("expires_at < ?", before).
		Delete(&sessionDatamodel.Session{})
	return res.RowsAffected, res.Error
}

func (r *SessionRepository) CountActiveByUserID(ctx context.Context, userID string) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&sessionDatamodel.Session{}).
		Where("user_id = ? AND deleted_at IS NULL AND expires_at > ?", userID, time.Now().UTC()).
		Count(&count).Error
	return count, err
}
