package user

import (
	"github.com/thiagocrux/simcasi/internal/auth"
	"github.com/thiagocrux/simcasi/internal/core/common/validation"
)

type CreateUserDTO struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
	RoleID   string `json:"role_id"`
}

func (d CreateUserDTO) Validate() error {
	v := validation.NewValidator()
	v.Field("name", d.Name).Required()
	v.Field("email", d.Email).Email()
	v.Field("role_id", d.RoleID).Required()
	auth.PasswordRules(v.Field("password", d.Password))
	return v.Validate()
}

type UpdateRoleDTO struct {
	RoleID string `json:"role_id"`
}

func (d UpdateRoleDTO) Validate() error {
	v := validation.NewValidator()
	v.Field("role_id", d.RoleID).Required()
	return v.Validate()
}

type ChangePasswordDTO struct {
	CurrentPassword string `json:"current_password"`
	NewPassword     string `json:"new_password"`
}

func (d ChangePasswordDTO) Validate() error {
	v := validation.NewValidator()
	v.Field("current_password", d.CurrentPassword).Required()
	auth.PasswordRules(v.Field("new_password", d.NewPassword))
	return v.Validate()
}
