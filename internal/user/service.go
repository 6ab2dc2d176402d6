package user

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/thiagocrux/simcasi/internal"
	"github.com/thiagocrux/simcasi/internal/audit"
	"github.com/thiagocrux/simcasi/internal/auth"
	userDatamodel "github.com/thiagocrux/simcasi/internal/core/datamodel/user"
)

const entityName = "user"

type Repository interface {
	FindByID(ctx context.Context, id string) (*userDatamodel.User, error)
	FindByEmail(ctx context.Context, email string) (*userDatamodel.User, error)
	List(ctx context.Context) ([]userDatamodel.User, error)
	Create(ctx context.Context, u *userDatamodel.User) error
	Update(ctx context.Context, u *userDatamodel.User) error
	UpdatePassword(ctx context.Context, id, passwordHash string) error
	SoftDelete(ctx context.Context, id string) (bool, error)
}

type RoleLookup interface {
	FindByID(ctx context.Context, id string) (*userDatamodel.Role, error)
}

type SessionRevoker interface {
	RevokeAllByUserID(ctx context.Context, userID string) (int64, error)
}

type PermissionLister interface {
	PermissionCodes(ctx context.Context, roleID string) ([]string, error)
}

type AuditRecorder interface {
	Record(ctx context.Context, e audit.Entry) error
}

type ServiceAPI interface {
	GetByID(ctx context.Context, id string) (*User, error)
	List(ctx context.Context) ([]*User, error)
	Me(ctx context.Context, id string) (*Profile, error)
	Create(ctx context.Context, dto CreateUserDTO) (*User, error)
	UpdateRole(ctx context.Context, id string, dto UpdateRoleDTO) (*User, error)
	ChangePassword(ctx context.Context, id string, dto ChangePasswordDTO) error
	Delete(ctx context.Context, id string) error
}

// Service administers users. Every mutation records exactly one audit entry
// attributed to the audit scope in ctx; reads record none.
type Service struct {
	repo        Repository
	roles       RoleLookup
	sessions    SessionRevoker
	permissions PermissionLister
	hasher      auth.HashProvider
	audit       AuditRecorder
	now         func() time.Time
}

func NewService(repo Repository, roles RoleLookup, sessions SessionRevoker, permissions PermissionLister, hasher auth.HashProvider, recorder AuditRecorder) *Service {
	return &Service{
		repo:        repo,
		roles:       roles,
		sessions:    sessions,
		permissions: permissions,
		hasher:      hasher,
		audit:       recorder,
		now:         time.Now,
	}
}

func (s *Service) find(ctx context.Context, id string) (*User, error) {
	row, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, internal.NewInternalError("failed to get user", err)
	}
	if row == nil || row.IsDeleted() {
		return nil, internal.ErrUserNotFound
	}
	return FromDataModel(row), nil
}

func (s *Service) GetByID(ctx context.Context, id string) (*User, error) {
	return s.find(ctx, id)
}

func (s *Service) List(ctx context.Context) ([]*User, error) {
	rows, err := s.repo.List(ctx)
	if err != nil {
		return nil, internal.NewInternalError("failed to list users", err)
	}
	users := make([]*User, 0, len(rows))
	for i := range rows {
		users = append(users, FromDataModel(&rows[i]))
	}
	return users, nil
}

func (s *Service) Me(ctx context.Context, id string) (*Profile, error) {
	u, err := s.find(ctx, id)
	if err != nil {
		return nil, err
	}
	codes, err := s.permissions.PermissionCodes(ctx, u.RoleID)
	if err != nil {
		return nil, internal.NewInternalError("failed to resolve permissions", err)
	}
	return &Profile{User: u, Permissions: codes}, nil
}

func (s *Service) Create(ctx context.Context, dto CreateUserDTO) (*User, error) {
	if err := dto.Validate(); err != nil {
		return nil, err
	}

	email := auth.NormalizeEmail(dto.Email)
	existing, err := s.repo.FindByEmail(ctx, email)
	if err != nil {
		return nil, internal.NewInternalError("failed to check email", err)
	}
	if existing != nil {
		return nil, internal.ErrEmailTaken
	}

	if err := s.requireRole(ctx, dto.RoleID); err != nil {
		return nil, err
	}

	digest, err := s.hasher.Hash(dto.Password)
	if err != nil {
		return nil, internal.NewInternalError("failed to hash password", err)
	}

	now := s.now().UTC()
	u := &User{
		ID:           uuid.NewString(),
		Name:         dto.Name,
		Email:        email,
		PasswordHash: digest,
		RoleID:       dto.RoleID,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.repo.Create(ctx, ToDataModel(u)); err != nil {
		return nil, internal.NewInternalError("failed to create user", err)
	}

	if err := s.record(ctx, audit.ActionCreate, u.ID, nil, u.Snapshot()); err != nil {
		return nil, err
	}
	return u, nil
}

func (s *Service) UpdateRole(ctx context.Context, id string, dto UpdateRoleDTO) (*User, error) {
	if err := dto.Validate(); err != nil {
		return nil, err
	}

	u, err := s.find(ctx, id)
	if err != nil {
		return nil, err
	}
	if u.IsSystem {
		return nil, internal.ErrSystemAccount
	}
	if err := s.requireRole(ctx, dto.RoleID); err != nil {
		return nil, err
	}

	before := u.Snapshot()
	u.RoleID = dto.RoleID
	u.UpdatedAt = s.now().UTC()
	if err := s.repo.Update(ctx, ToDataModel(u)); err != nil {
		return nil, internal.NewInternalError("failed to update user", err)
	}

	if err := s.record(ctx, audit.ActionUpdate, u.ID, before, u.Snapshot()); err != nil {
		return nil, err
	}
	return u, nil
}

// ChangePassword requires the current password and signs the user out of every session.
func (s *Service) ChangePassword(ctx context.Context, id string, dto ChangePasswordDTO) error {
	if err := dto.Validate(); err != nil {
		return err
	}

	u, err := s.find(ctx, id)
	if err != nil {
		return err
	}

	match, err := s.hasher.Compare(dto.CurrentPassword, u.PasswordHash)
	if err != nil {
		return internal.NewInternalError("failed to verify password", err)
	}
	if !match {
		return internal.NewValidationFieldError("current_password", "current password is incorrect", internal.ErrCodeInvalidPassword)
	}

	digest, err := s.hasher.Hash(dto.NewPassword)
	if err != nil {
		return internal.NewInternalError("failed to hash password", err)
	}
	if err := s.repo.UpdatePassword(ctx, u.ID, digest); err != nil {
		return internal.NewInternalError("failed to update password", err)
	}
	if _, err := s.sessions.RevokeAllByUserID(ctx, u.ID); err != nil {
		return internal.NewInternalError("failed to revoke sessions", err)
	}

	return s.record(ctx, audit.ActionUpdate, u.ID, nil, map[string]interface{}{
		"id":                  u.ID,
		"password_changed_at": s.now().UTC(),
	})
}

// Delete soft-deletes the user and revokes their sessions. System accounts are immutable.
func (s *Service) Delete(ctx context.Context, id string) error {
	u, err := s.find(ctx, id)
	if err != nil {
		return err
	}
	if u.IsSystem {
		return internal.ErrSystemAccount
	}

	deleted, err := s.repo.SoftDelete(ctx, u.ID)
	if err != nil {
		return internal.NewInternalError("failed to delete user", err)
	}
	if !deleted {
		return internal.ErrUserNotFound
	}
	if _, err := s.sessions.RevokeAllByUserID(ctx, u.ID); err != nil {
		return internal.NewInternalError("failed to revoke sessions", err)
	}

	return s.record(ctx, audit.ActionDelete, u.ID, u.Snapshot(), nil)
}

func (s *Service) requireRole(ctx context.Context, roleID string) error {
	role, err := s.roles.FindByID(ctx, roleID)
	if err != nil {
		return internal.NewInternalError("failed to load role", err)
	}
	if role == nil {
		return internal.ErrRoleNotFound
	}
	return nil
}

func (s *Service) record(ctx context.Context, action, id string, before, after interface{}) error {
	err := s.audit.Record(ctx, audit.Entry{
		Action:     action,
		EntityName: entityName,
		EntityID:   id,
		Before:     before,
		After:      after,
	})
	if err != nil {
		return internal.NewInternalError("failed to write audit log", err)
	}
	return nil
}
