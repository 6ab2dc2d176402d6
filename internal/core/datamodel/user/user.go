package user

import "time"

type User struct {
	ID           string     `gorm:"primaryKey;column:id"`
	Name         string     `gorm:"column:name;not null"`
	Email        string     `gorm:"column:email;index;not null"`
	PasswordHash string     `gorm:"column:password_hash;not null"`
	RoleID       string     `gorm:"column:role_id;index;not null"`
	IsSystem     bool       `gorm:"column:is_system;not null;default:false"`
	CreatedAt    time.Time  `gorm:"column:created_at"`
	UpdatedAt    time.Time  `gorm:"column:updated_at"`
	DeletedAt    *time.Time `gorm:"column:deleted_at;index"`
}

func (User) TableName() string { return "users" }

func (u *User) IsDeleted() bool { return u.DeletedAt != nil }

type Role struct {
	ID        string     `gorm:"primaryKey;column:id"`
	Code      string     `gorm:"column:code;uniqueIndex;not null"`
	Label     string     `gorm:"column:label"`
	CreatedAt time.Time  `gorm:"column:created_at"`
	UpdatedAt time.Time  `gorm:"column:updated_at"`
	DeletedAt *time.Time `gorm:"column:deleted_at;index"`
}

func (Role) TableName() string { return "roles" }

type Permission struct {
	ID        string     `gorm:"primaryKey;column:id"`
	Code      string     `gorm:"column:code;uniqueIndex;not null"`
	Label     string     `gorm:"column:label"`
	CreatedAt time.Time  `gorm:"column:created_at"`
	UpdatedAt time.Time  `gorm:"column:updated_at"`
	DeletedAt *time.Time `gorm:"column:deleted_at;index"`
}

func (Permission) TableName() string { return "permissions" }

type RolePermission struct {
	RoleID       string    `gorm:"primaryKey;column:role_id"`
	PermissionID string    `gorm:"primaryKey;column:permission_id"`
	CreatedAt    time.Time `gorm:"column:created_at"`
}

func (RolePermission) TableName() string { return "role_permissions" }
