package repository

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"pocket-chat-server/internal/model"
)

// ThreadRepository 会话数据访问层
// 所有读写都带上组织范围和用户条件，避免跨范围访问
type ThreadRepository struct {
	db *gorm.DB
}

// NewThreadRepository 创建 ThreadRepository 实例
func NewThreadRepository(db *gorm.DB) *ThreadRepository {
	return &ThreadRepository{db: db}
}

// Insert 插入会话
// INSERT ... ON CONFLICT (id) DO NOTHING
// 参数:
//   - ctx: 上下文
//   - thread: 会话对象，Title 为 nil
//
// 返回:
//   - bool: 是否真正插入了新行
//   - error: 数据库错误
func (r *ThreadRepository) Insert(ctx context.Context, thread *model.Thread) (bool, error) {
	result := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "id"}},
			DoNothing: true,
		}).
		Create(thread)
	if result.Error != nil {
		if IsDuplicateKey(result.Error) {
			return false, nil
		}
		return false, errors.Wrap(result.Error, "insert thread")
	}
	return result.RowsAffected > 0, nil
}

// Get 按范围获取会话
// 参数:
//   - ctx: 上下文
//   - scope: 组织范围与用户
//   - id: 会话ID
//
// 返回:
//   - *model.Thread: 会话对象，不存在或不属于该范围时返回 nil
//   - error: 数据库错误
func (r *ThreadRepository) Get(ctx context.Context, scope Scope, id string) (*model.Thread, error) {
	var thread model.Thread
	err := r.scoped(ctx, scope).Where("id = ?", id).First(&thread).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, errors.Wrap(err, "get thread")
	}
	return &thread, nil
}

// List 获取范围内的会话列表
// 按更新时间倒序，其次按创建时间倒序
func (r *ThreadRepository) List(ctx context.Context, scope Scope) ([]model.Thread, error) {
	var threads []model.Thread
	err := r.scoped(ctx, scope).
		Order("updated_at DESC").
		Order("created_at DESC").
		Find(&threads).Error
	if err != nil {
		return nil, errors.Wrap(err, "list threads")
	}
	return threads, nil
}

// Touch 刷新会话的更新时间
func (r *ThreadRepository) Touch(ctx context.Context, scope Scope, id string) error {
	err := r.scoped(ctx, scope).
		Model(&model.Thread{}).
		Where("id = ?", id).
		UpdateColumn("updated_at", time.Now()).Error
	return errors.Wrap(err, "touch thread")
}

// SetTitleIfEmpty 仅在标题为 NULL 时设置标题
// 条件写在 WHERE 中，并发请求也只有第一个生效
//
// 返回:
//   - bool: 是否设置成功
func (r *ThreadRepository) SetTitleIfEmpty(ctx context.Context, scope Scope, id, title string) (bool, error) {
	result := r.scoped(ctx, scope).
		Model(&model.Thread{}).
		Where("id = ? AND title IS NULL", id).
		UpdateColumn("title", title)
	if result.Error != nil {
		return false, errors.Wrap(result.Error, "set thread title")
	}
	return result.RowsAffected > 0, nil
}

// UpdateTitle 修改标题并刷新更新时间
//
// 返回:
//   - bool: 会话是否存在
func (r *ThreadRepository) UpdateTitle(ctx context.Context, scope Scope, id, title string) (bool, error) {
	result := r.scoped(ctx, scope).
		Model(&model.Thread{}).
		Where("id = ?", id).
		UpdateColumns(map[string]interface{}{
			"title":      title,
			"updated_at": time.Now(),
		})
	if result.Error != nil {
		return false, errors.Wrap(result.Error, "update thread title")
	}
	return result.RowsAffected > 0, nil
}

// Delete 删除会话及其所有消息
//
// 返回:
//   - bool: 会话是否存在
func (r *ThreadRepository) Delete(ctx context.Context, scope Scope, id string) (bool, error) {
	var deleted bool
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var thread model.Thread
		err := tx.Where("id = ? AND organization_id = ? AND user_id = ?", id, scope.OrganizationID, scope.UserID).
			First(&thread).Error
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return nil
			}
			return err
		}

		if err := tx.Where("thread_id = ?", id).Delete(&model.Message{}).Error; err != nil {
			return err
		}
		if err := tx.Delete(&thread).Error; err != nil {
			return err
		}
		deleted = true
		return nil
	})
	if err != nil {
		return false, errors.Wrap(err, "delete thread")
	}
	return deleted, nil
}

func (r *ThreadRepository) scoped(ctx context.Context, scope Scope) *gorm.DB {
	return r.db.WithContext(ctx).
		Where("organization_id = ? AND user_id = ?", scope.OrganizationID, scope.UserID)
}
