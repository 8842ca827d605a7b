// Package model 定义了与数据库表对应的数据结构
package model

import (
	"time"
)

// AccountStatus 账号状态常量
const (
	AccountStatusDisabled int8 = 0 // 禁用
	AccountStatusActive   int8 = 1 // 正常
)

// Account 登录账号模型
// 对应数据库表 accounts
// 身份认证侧的数据，保存登录凭据；业务数据侧的镜像见 User
type Account struct {
	// ID 账号唯一标识，UUID 字符串，与 users.id 一致
	ID string `gorm:"primaryKey;size:64" json:"id"`

	// Email 登录邮箱，全局唯一
	Email string `gorm:"size:255;uniqueIndex;not null" json:"email"`

	// PasswordHash 密码的 bcrypt 哈希值
	PasswordHash string `gorm:"size:255;not null" json:"-"`

	// Name 显示名称
	Name string `gorm:"size:100" json:"name"`

	// Status 账号状态
	// 1: 正常
	// 0: 禁用
	Status int8 `gorm:"default:1" json:"status"`

	// LastLoginAt 最近登录时间
	LastLoginAt *time.Time `json:"lastLoginAt,omitempty"`

	CreatedAt time.Time `gorm:"autoCreateTime" json:"createdAt"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updatedAt"`
}

// TableName 指定表名
func (Account) TableName() string {
	return "accounts"
}
