// Package model 定义了与数据库表对应的数据结构
// 这些结构体类似于 Java 中的 Entity 类
package model

import (
	"time"
)

// User 用户模型
// 对应数据库表 users
// 聊天数据侧的用户记录，在第一次创建会话时按 ID 幂等写入
type User struct {
	// ID 用户唯一标识，与登录账号 ID 相同
	ID string `gorm:"primaryKey;size:64" json:"id"`

	// Email 用户邮箱
	Email string `gorm:"size:255" json:"email"`

	// Name 显示名称
	Name string `gorm:"size:100" json:"name"`

	// CreatedAt 创建时间，由 GORM 自动填充
	CreatedAt time.Time `gorm:"autoCreateTime" json:"createdAt"`

	// UpdatedAt 更新时间，由 GORM 自动更新
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updatedAt"`
}

// TableName 指定表名
// GORM 会使用这个方法返回的表名，而不是默认的复数形式
func (User) TableName() string {
	return "users"
}
