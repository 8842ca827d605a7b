package repository

import (
	"context"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"pocket-chat-server/internal/model"
)

// UsageSummary 组织范围内的用量汇总
type UsageSummary struct {
	OrganizationID string          `json:"organizationId"`
	Messages       int             `json:"messages"`
	Characters     int             `json:"characters"`
	Cost           decimal.Decimal `json:"cost"`
}

// UsageRepository 用量记录访问层
type UsageRepository struct {
	db *gorm.DB
}

// NewUsageRepository 创建 UsageRepository 实例
func NewUsageRepository(db *gorm.DB) *UsageRepository {
	return &UsageRepository{db: db}
}

// Record 写入一条用量记录
// 同一条消息只计一次：ON CONFLICT (message_id) DO NOTHING
func (r *UsageRepository) Record(ctx context.Context, record *model.UsageRecord) error {
	err := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "message_id"}},
			DoNothing: true,
		}).
		Create(record).Error
	if err != nil && !IsDuplicateKey(err) {
		return errors.Wrap(err, "record usage")
	}
	return nil
}

// Summarize 汇总组织范围内的用量
// 金额在内存中用 decimal 累加，避免不同数据库的数值类型差异
func (r *UsageRepository) Summarize(ctx context.Context, organizationID string) (*UsageSummary, error) {
	var records []model.UsageRecord
	err := r.db.WithContext(ctx).
		Where("organization_id = ?", organizationID).
		Find(&records).Error
	if err != nil {
		return nil, errors.Wrap(err, "summarize usage")
	}

	summary := &UsageSummary{OrganizationID: organizationID, Cost: decimal.Zero}
	for _, rec := range records {
		summary.Messages++
		summary.Characters += rec.Characters
		summary.Cost = summary.Cost.Add(rec.Cost)
	}
	return summary, nil
}
