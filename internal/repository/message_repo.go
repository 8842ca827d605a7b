package repository

import (
	"context"

	"github.com/pkg/errors"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"pocket-chat-server/internal/model"
)

// MessageRepository 消息数据访问层
// 负责消息相关的所有数据库操作
type MessageRepository struct {
	db *gorm.DB
}

// NewMessageRepository 创建 MessageRepository 实例
func NewMessageRepository(db *gorm.DB) *MessageRepository {
	return &MessageRepository{db: db}
}

// Upsert 按消息 ID 写入
// INSERT ... ON CONFLICT (id) DO UPDATE，重试同一条消息不会产生重复行，冲突字段以后写为准
// 只覆盖同一会话下的已有行，ID 属于其他会话时不做任何修改
// 参数:
//   - ctx: 上下文
//   - message: 消息对象，ID 必填
//
// 返回:
//   - error: 数据库错误
func (r *MessageRepository) Upsert(ctx context.Context, message *model.Message) error {
	sameThread := clause.Where{Exprs: []clause.Expression{
		clause.Expr{SQL: "messages.thread_id = excluded.thread_id"},
	}}
	err := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "id"}},
			DoUpdates: clause.AssignmentColumns([]string{"role", "content", "metadata"}),
			Where:     sameThread,
		}).
		Create(message).Error
	return errors.Wrap(err, "upsert message")
}

// GetByID 根据 ID 获取消息，未找到返回 nil
func (r *MessageRepository) GetByID(ctx context.Context, id string) (*model.Message, error) {
	var message model.Message
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&message).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, errors.Wrap(err, "get message")
	}
	return &message, nil
}

// GetByThreadID 获取会话的所有消息
// 按创建时间正序排列（最早的在前）
// 参数:
//   - ctx: 上下文
//   - threadID: 会话ID
//
// 返回:
//   - []model.Message: 消息列表
//   - error: 数据库错误
func (r *MessageRepository) GetByThreadID(ctx context.Context, threadID string) ([]model.Message, error) {
	var messages []model.Message
	err := r.db.WithContext(ctx).
		Where("thread_id = ?", threadID).
		Order("created_at ASC").
		Find(&messages).Error
	if err != nil {
		return nil, errors.Wrap(err, "list messages")
	}
	return messages, nil
}
