package model

import (
	"time"
)

// Thread 会话模型
// 对应数据库表 threads
// 一个会话属于唯一的组织范围（organization_id），个人模式下即用户自己的 ID
type Thread struct {
	// ID 会话唯一标识，由客户端生成
	ID string `gorm:"primaryKey;size:64" json:"id"`

	// OrganizationID 所属组织范围
	OrganizationID string `gorm:"size:64;index:idx_threads_scope;not null" json:"organizationId"`

	// UserID 创建者
	UserID string `gorm:"size:64;index:idx_threads_scope;not null" json:"userId"`

	// Title 会话标题
	// 由第一条用户消息生成，只设置一次；NULL 表示尚未生成
	Title *string `gorm:"size:255" json:"title"`

	CreatedAt time.Time `gorm:"autoCreateTime" json:"createdAt"`

	// UpdatedAt 每次写入新消息时刷新，用于列表排序
	UpdatedAt time.Time `gorm:"autoUpdateTime;index" json:"updatedAt"`
}

// TableName 指定表名
func (Thread) TableName() string {
	return "threads"
}
