package repository

import (
	"context"

	"github.com/pkg/errors"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"pocket-chat-server/internal/model"
)

// UserRepository 聊天数据侧的用户访问层
type UserRepository struct {
	db *gorm.DB
}

// NewUserRepository 创建 UserRepository 实例
func NewUserRepository(db *gorm.DB) *UserRepository {
	return &UserRepository{db: db}
}

// Ensure 确保用户记录存在
// INSERT ... ON CONFLICT (id) DO NOTHING，已存在时不修改任何字段
// 参数:
//   - ctx: 上下文
//   - user: 用户对象，ID 必填
//
// 返回:
//   - error: 唯一约束冲突之外的数据库错误
func (r *UserRepository) Ensure(ctx context.Context, user *model.User) error {
	err := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "id"}},
			DoNothing: true,
		}).
		Create(user).Error
	if err != nil && !IsDuplicateKey(err) {
		return errors.Wrap(err, "ensure user")
	}
	return nil
}

// UpdateProfile 同步账号资料变更
func (r *UserRepository) UpdateProfile(ctx context.Context, id, name string) error {
	return r.db.WithContext(ctx).Model(&model.User{}).Where("id = ?", id).Update("name", name).Error
}
