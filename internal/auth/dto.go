package auth

import (
	"strings"

	"github.com/thiagocrux/simcasi/internal"
	"github.com/thiagocrux/simcasi/internal/core/common/validation"
)

const (
	MinPasswordLength = 8
	// bcrypt ignores input past 72 bytes.
	MaxPasswordLength = 72
)

// LoginDTO is the transport shape used by the HTTP handler to accept login requests.
type LoginDTO struct {
	Email      string `json:"email"`
	Password   string `json:"password"`
	RememberMe bool   `json:"remember_me"`
}

// RefreshTokenDTO for refresh token requests. Browser clients send the cookie instead.
type RefreshTokenDTO struct {
	RefreshToken string `json:"refresh_token"`
}

type ForgotPasswordDTO struct {
	Email string `json:"email"`
}

type ResetPasswordDTO struct {
	Token       string `json:"token"`
	NewPassword string `json:"new_password"`
}

func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func (d LoginDTO) Validate() error {
	v := validation.NewValidator()
	v.Field("email", d.Email).Required()
	v.Field("password", d.Password).Required()
	return v.Validate()
}

func (d ForgotPasswordDTO) Validate() error {
	v := validation.NewValidator()
	v.Field("email", d.Email).Email()
	return v.Validate()
}

func (d ResetPasswordDTO) Validate() error {
	v := validation.NewValidator()
	v.Field("token", d.Token).Required()
	PasswordRules(v.Field("new_password", d.NewPassword))
	return v.Validate()
}

// PasswordRules adds the length bounds shared by every password-setting flow.
func PasswordRules(fv *validation.FieldValidator) *validation.FieldValidator {
	return fv.
		MinLength(MinPasswordLength, internal.ErrCodeInvalidPassword).
		MaxLength(MaxPasswordLength, internal.ErrCodeInvalidPassword)
}
