package model

import (
	"time"
)

// AccountStatus 账号状态，取代 is_active / email_verified 两个布尔值
type AccountStatus string

const (
	StatusRegistered AccountStatus = "registered" // 已注册，尚未发出确认邮件
	StatusEmailSent  AccountStatus = "email_sent" // 确认邮件已发出
	StatusActive     AccountStatus = "active"     // 邮箱已确认，终态
)

// Role 用户角色
type Role string

const (
	RoleUser  Role = "user"
	RoleStaff Role = "staff"
	RoleAdmin Role = "admin"
)

// IsStaff 管理员同时具备 staff 权限
func (r Role) IsStaff() bool {
	return r == RoleStaff || r == RoleAdmin
}

// IsAdmin 是否管理员
func (r Role) IsAdmin() bool {
	return r == RoleAdmin
}

// Valid 是否为已知角色
func (r Role) Valid() bool {
	switch r {
	case RoleUser, RoleStaff, RoleAdmin:
		return true
	}
	return false
}

// User 用户模型
type User struct {
	ID              int           `json:"id" db:"id" gorm:"primaryKey"`
	Username        string        `json:"username" db:"username" gorm:"size:150;uniqueIndex;not null"`
	Email           string        `json:"email" db:"email" gorm:"size:254;uniqueIndex;not null"`
	PasswordHash    string        `json:"-" db:"password_hash" gorm:"not null"`
	Status          AccountStatus `json:"status" db:"status" gorm:"size:20;not null;index"`
	Role            Role          `json:"role" db:"role" gorm:"size:20;not null"`
	EmailVerifiedAt *time.Time    `json:"email_verified_at,omitempty" db:"email_verified_at"`
	CreatedAt       time.Time     `json:"created_at" db:"created_at"`
	UpdatedAt       time.Time     `json:"updated_at" db:"updated_at"`
}

// IsActive 只有邮箱确认后的账号才能登录
func (u *User) IsActive() bool {
	return u.Status == StatusActive
}

// EmailConfirmation 邮箱确认令牌，只保存明文 key 的 SHA-256
type EmailConfirmation struct {
	ID         int        `json:"id" db:"id" gorm:"primaryKey"`
	UserID     int        `json:"user_id" db:"user_id" gorm:"not null;index"`
	TokenHash  string     `json:"-" db:"token_hash" gorm:"size:64;uniqueIndex;not null"`
	ExpiresAt  time.Time  `json:"expires_at" db:"expires_at" gorm:"not null;index"`
	ConsumedAt *time.Time `json:"consumed_at,omitempty" db:"consumed_at"`
	CreatedAt  time.Time  `json:"created_at" db:"created_at"`
}

// Expired 是否已过期
func (e *EmailConfirmation) Expired(now time.Time) bool {
	return !now.Before(e.ExpiresAt)
}

// Consumed 是否已被使用
func (e *EmailConfirmation) Consumed() bool {
	return e.ConsumedAt != nil
}
