package model

import (
	"strings"
	"time"
)

// UserModel 登录账号（成员、机构和工作人员共用）
type UserModel struct {
	Id        int64     `json:"id" gorm:"primaryKey"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	Email        string `json:"email" gorm:"uniqueIndex;not null"`
	PasswordHash string `json:"-" gorm:"not null"`
	FirstName    string `json:"first_name"`
	LastName     string `json:"last_name"`
	IsActive     bool   `json:"is_active"`
	IsStaff      bool   `json:"is_staff" gorm:"default:false"`
}

// TableName 自定义表名
func (UserModel) TableName() string {
	return "app_user"
}

// SessionModel 登录会话
type SessionModel struct {
	Id        int64     `json:"id" gorm:"primaryKey"`
	CreatedAt time.Time `json:"created_at"`

	Token     string    `json:"token" gorm:"uniqueIndex;not null"`
	UserId    int64     `json:"user_id" gorm:"index;not null"`
	ExpiresAt time.Time `json:"expires_at" gorm:"not null"`

	User UserModel `json:"-" gorm:"foreignKey:UserId"`
}

// TableName 自定义表名
func (SessionModel) TableName() string {
	return "session"
}

// MemberModel 募捐志愿者
type MemberModel struct {
	Id        int64     `json:"id" gorm:"primaryKey"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	Email     string `json:"email" gorm:"uniqueIndex;not null"`
	FirstName string `json:"first_name" gorm:"not null"`
	LastName  string `json:"last_name"`
	// 当前选中的 membership
	Current int64 `json:"current" gorm:"default:0"`
}

// TableName 自定义表名
func (MemberModel) TableName() string {
	return "member"
}

func (m MemberModel) String() string {
	return strings.TrimSpace(m.FirstName + " " + m.LastName)
}
