package session

import "time"

// Session backs one refresh token. A non-nil DeletedAt retires it for good.
type Session struct {
	ID        string     `gorm:"primaryKey;column:id"`
	UserID    string     `gorm:"column:user_id;index;not null"`
	IssuedAt  time.Time  `gorm:"column:issued_at;not null"`
	ExpiresAt time.Time  `gorm:"column:expires_at;index;not null"`
	IPAddress string     `gorm:"column:ip_address"`
	UserAgent string     `gorm:"column:user_agent"`
	CreatedAt time.Time  `gorm:"column:created_at"`
	DeletedAt *time.Time `gorm:"column:deleted_at;index"`
}

func (Session) TableName() string { return "sessions" }

func (s *Session) IsDeleted() bool { return s.DeletedAt != nil }

type PasswordResetToken struct {
	ID        string     `gorm:"primaryKey;column:id"`
	UserID    string     `gorm:"column:user_id;index;not null"`
	TokenHash string     `gorm:"column:token_hash;uniqueIndex;not null"`
	ExpiresAt time.Time  `gorm:"column:expires_at;index;not null"`
	UsedAt    *time.Time `gorm:"column:used_at"`
	CreatedAt time.Time  `gorm:"column:created_at"`
	DeletedAt *time.Time `gorm:"column:deleted_at;index"`
}

func (PasswordResetToken) TableName() string { return "password_reset_tokens" }
