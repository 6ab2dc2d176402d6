package user

import (
	"time"

	userDatamodel "github.com/thiagocrux/simcasi/internal/core/datamodel/user"
)

// User represents the internal user model
type User struct {
	ID           string     `json:"id"`
	Name         string     `json:"name"`
	Email        string     `json:"email"`
	PasswordHash string     `json:"-"` // Never expose password hash
	RoleID       string     `json:"role_id"`
	IsSystem     bool       `json:"is_system"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
	DeletedAt    *time.Time `json:"-"`
}

// Profile is the current user with the permission codes of their role.
type Profile struct {
	*User
	Permissions []string `json:"permissions"`
}

// snapshot is what audit entries record about a user.
type snapshot struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Email    string `json:"email"`
	RoleID   string `json:"role_id"`
	IsSystem bool   `json:"is_system"`
}

func (u *User) Snapshot() interface{} {
	return snapshot{
		ID:       u.ID,
		Name:     u.Name,
		Email:    u.Email,
		RoleID:   u.RoleID,
		IsSystem: u.IsSystem,
	}
}

func ToDataModel(u *User) *userDatamodel.User {
	return &userDatamodel.User{
		ID:           u.ID,
		Name:         u.Name,
		Email:        u.Email,
		PasswordHash: u.PasswordHash,
		RoleID:       u.RoleID,
		IsSystem:     u.IsSystem,
		CreatedAt:    u.CreatedAt,
		UpdatedAt:    u.UpdatedAt,
		DeletedAt:    u.DeletedAt,
	}
}

func FromDataModel(u *userDatamodel.User) *User {
	return &User{
		ID:           u.ID,
		Name:         u.Name,
		Email:        u.Email,
		PasswordHash: u.PasswordHash,
		RoleID:       u.RoleID,
		IsSystem:     u.IsSystem,
		CreatedAt:    u.CreatedAt,
		UpdatedAt:    u.UpdatedAt,
		DeletedAt:    u.DeletedAt,
	}
}
