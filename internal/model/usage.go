package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// UsageRecord 用量记录
// 对应数据库表 usage_records
// 每条完成的助手回复记一行，按组织范围归属
type UsageRecord struct {
	ID             int64           `gorm:"primaryKey" json:"id"`
	OrganizationID string          `gorm:"size:64;index;not null" json:"organizationId"`
	UserID         string          `gorm:"size:64;not null" json:"userId"`
	ThreadID       string          `gorm:"size:64;not null" json:"threadId"`
	MessageID      string          `gorm:"size:64;uniqueIndex;not null" json:"messageId"`
	Characters     int             `gorm:"not null" json:"characters"`
	Cost           decimal.Decimal `gorm:"type:decimal(20,8);not null" json:"cost"`
	CreatedAt      time.Time       `gorm:"autoCreateTime" json:"createdAt"`
}

// TableName 指定表名
func (UsageRecord) TableName() string {
	return "usage_records"
}
