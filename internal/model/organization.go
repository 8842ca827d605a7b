package model

import (
	"time"
)

// MemberRole 成员角色常量
const (
	MemberRoleOwner  = "owner"  // 创建者
	MemberRoleMember = "member" // 普通成员
)

// Organization 组织模型
// 对应数据库表 organizations
// 个人组织的 ID 与用户 ID 相同，Personal 为 true
type Organization struct {
	// ID 组织唯一标识
	ID string `gorm:"primaryKey;size:64" json:"id"`

	// Name 组织名称
	Name string `gorm:"size:100;not null" json:"name"`

	// Personal 是否为用户的个人组织
	Personal bool `gorm:"default:false" json:"personal"`

	// OwnerID 创建者用户 ID
	OwnerID string `gorm:"size:64;index;not null" json:"ownerId"`

	CreatedAt time.Time `gorm:"autoCreateTime" json:"createdAt"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updatedAt"`
}

// TableName 指定表名
func (Organization) TableName() string {
	return "organizations"
}

// Member 组织成员关系
// 对应数据库表 members，(organization_id, user_id) 为联合主键
type Member struct {
	OrganizationID string    `gorm:"primaryKey;size:64" json:"organizationId"`
	UserID         string    `gorm:"primaryKey;size:64;index" json:"userId"`
	Role           string    `gorm:"size:20;not null" json:"role"`
	CreatedAt      time.Time `gorm:"autoCreateTime" json:"createdAt"`
}

// TableName 指定表名
func (Member) TableName() string {
	return "members"
}
