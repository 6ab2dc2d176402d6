package auth

import (
	"context"
	"time"

	"github.com/thiagocrux/simcasi/internal"
	sessionDatamodel "github.com/thiagocrux/simcasi/internal/core/datamodel/session"
	userDatamodel "github.com/thiagocrux/simcasi/internal/core/datamodel/user"
)

// UserRepository is the slice of the user store the auth flows read and write.
// FindByEmail only matches active users; FindByID returns soft-deleted rows too.
type UserRepository interface {
	FindByID(ctx context.Context, id string) (*userDatamodel.User, error)
	FindByEmail(ctx context.Context, email string) (*userDatamodel.User, error)
	UpdatePassword(ctx context.Context, id, passwordHash string) error
}

type SessionRepository interface {
	FindByID(ctx context.Context, id string, includeDeleted bool) (*sessionDatamodel.Session, error)
	Create(ctx context.Context, session *sessionDatamodel.Session) error
	// SoftDelete retires an active session and reports whether this call did it.
	SoftDelete(ctx context.Context, id string) (bool, error)
	RevokeAllByUserID(ctx context.Context, userID string) (int64, error)
}

type RoleRepository interface {
	FindByID(ctx context.Context, id string) (*userDatamodel.Role, error)
}

type PermissionRepository interface {
	FindByRoleID(ctx context.Context, roleID string) ([]userDatamodel.Permission, error)
}

type ResetTokenRepository interface {
	Create(ctx context.Context, token *sessionDatamodel.PasswordResetToken) error
	FindActiveByHash(ctx context.Context, tokenHash string, now time.Time) (*sessionDatamodel.PasswordResetToken, error)
	InvalidateForUser(ctx context.Context, userID string) (int64, error)
	MarkUsed(ctx context.Context, id string) (bool, error)
}

type ServiceAPI interface {
	Login(ctx context.Context, dto LoginDTO, client internal.ClientInfo) (*LoginResult, error)
	Refresh(ctx context.Context, refreshToken string, client internal.ClientInfo) (*RotationResult, error)
	Logout(ctx context.Context, sessionID string) error
	Authenticate(ctx context.Context, accessToken string) (*Principal, error)
	SessionIDFromTokens(accessToken, refreshToken string) string
	RequestPasswordReset(ctx context.Context, dto ForgotPasswordDTO, client internal.ClientInfo) error
	ResetPassword(ctx context.Context, dto ResetPasswordDTO, client internal.ClientInfo) error
}

// PublicUser is the profile returned to clients. It never carries the password hash.
type PublicUser struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	RoleID    string    `json:"role_id"`
	RoleCode  string    `json:"role_code,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func NewPublicUser(u *userDatamodel.User, roleCode string) PublicUser {
	return PublicUser{
		ID:        u.ID,
		Name:      u.Name,
		Email:     u.Email,
		RoleID:    u.RoleID,
		RoleCode:  roleCode,
		CreatedAt: u.CreatedAt,
		UpdatedAt: u.UpdatedAt,
	}
}

// Principal is the authenticated caller resolved from an access token.
type Principal struct {
	UserID    string
	RoleID    string
	RoleCode  string
	SessionID string
}

type TokenPair struct {
	AccessToken      string `json:"access_token"`
	RefreshToken     string `json:"refresh_token"`
	AccessExpiresIn  int64  `json:"access_expires_in"`
	RefreshExpiresIn int64  `json:"refresh_expires_in"`
	RememberMe       bool   `json:"remember_me"`
}

type LoginResult struct {
	TokenPair
	SessionID   string     `json:"-"`
	User        PublicUser `json:"user"`
	Permissions []string   `json:"permissions"`
}

type RotationOutcome string

const (
	RotationRotated        RotationOutcome = "ROTATED"
	RotationInvalidToken   RotationOutcome = "INVALID_TOKEN"
	RotationSessionExpired RotationOutcome = "SESSION_EXPIRED"
	RotationBreachDetected RotationOutcome = "BREACH_DETECTED"
	RotationUserInactive   RotationOutcome = "USER_INACTIVE"
)

// RotationResult is the resolved state of one refresh attempt.
// Tokens and User are set only when Outcome is RotationRotated.
type RotationResult struct {
	Outcome   RotationOutcome
	Tokens    TokenPair
	SessionID string
	User      PublicUser
}

func (r *RotationResult) Rotated() bool {
	return r != nil && r.Outcome == RotationRotated
}

// Err maps a non-rotated outcome onto the error taxonomy.
func (r *RotationResult) Err() error {
	if r == nil {
		return internal.ErrInvalidToken
	}
	switch r.Outcome {
	case RotationRotated:
		return nil
	case RotationSessionExpired:
		return internal.ErrSessionExpired
	case RotationBreachDetected:
		return internal.ErrSecurityBreach
	case RotationUserInactive:
		return internal.ErrUserInactive
	default:
		return internal.ErrInvalidToken
	}
}
