package model

import (
	"errors"
	"time"
)

// 用户角色
const (
	RoleUser       = "user"
	RolePurchasing = "purchasing"
	RoleHeadOfDept = "head_of_dept"
	RoleManager    = "manager"
	RoleSuperadmin = "superadmin"
)

// UserModel 用户
type UserModel struct {
	ID           string    `gorm:"primaryKey;type:varchar(64)" json:"id"`
	Username     string    `gorm:"type:varchar(64);not null;uniqueIndex" json:"username"`
	Name         string    `gorm:"type:varchar(255)" json:"name"`
	Email        string    `gorm:"type:varchar(255);index" json:"email"`
	Role         string    `gorm:"type:varchar(32);not null;default:'user'" json:"role"`
	PasswordHash string    `gorm:"type:varchar(255)" json:"-"`
	Signature    string    `gorm:"type:varchar(255)" json:"signature,omitempty"` // 个人签名文件名
	Avatar       string    `gorm:"type:varchar(255)" json:"avatar,omitempty"`
	CreatedAt    time.Time `gorm:"not null" json:"created"`
	UpdatedAt    time.Time `gorm:"not null" json:"updated"`
}

// TableName 指定表名
func (UserModel) TableName() string {
	return "users"
}

// DisplayName 显示名, 未设置姓名时使用用户名
func (u *UserModel) DisplayName() string {
	if u.Name != "" {
		return u.Name
	}
	return u.Username
}

// Validate 验证用户模型
func (u *UserModel) Validate() error {
	if u.ID == "" {
		return errors.New("user ID is required")
	}
	if u.Username == "" {
		return errors.New("username is required")
	}
	switch u.Role {
	case RoleUser, RolePurchasing, RoleHeadOfDept, RoleManager, RoleSuperadmin:
	default:
		return errors.New("invalid role")
	}
	return nil
}
