package repository

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"gorm.io/gorm"

	"pocket-chat-server/internal/model"
)

// AccountRepository 登录账号数据访问层
// 负责账号相关的所有数据库操作
type AccountRepository struct {
	db *gorm.DB // GORM 数据库连接实例
}

// NewAccountRepository 创建 AccountRepository 实例
// 参数:
//   - db: GORM 数据库连接
//
// 返回:
//   - *AccountRepository: 账号仓库实例
func NewAccountRepository(db *gorm.DB) *AccountRepository {
	return &AccountRepository{db: db}
}

// Create 创建新账号
// 参数:
//   - ctx: 上下文，用于控制请求生命周期
//   - account: 账号对象
//
// 返回:
//   - error: 邮箱重复时返回的错误可以用 IsDuplicateKey 判断
func (r *AccountRepository) Create(ctx context.Context, account *model.Account) error {
	return r.db.WithContext(ctx).Create(account).Error
}

// GetByID 根据 ID 获取账号
// 参数:
//   - ctx: 上下文
//   - id: 账号ID
//
// 返回:
//   - *model.Account: 账号对象，如果未找到返回 nil
//   - error: 数据库错误（不包括记录未找到）
func (r *AccountRepository) GetByID(ctx context.Context, id string) (*model.Account, error) {
	var account model.Account
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&account).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil // 未找到返回 nil，不当作错误
		}
		return nil, errors.Wrap(err, "get account")
	}
	return &account, nil
}

// GetByEmail 根据邮箱获取账号
// 用于登录验证
func (r *AccountRepository) GetByEmail(ctx context.Context, email string) (*model.Account, error) {
	var account model.Account
	err := r.db.WithContext(ctx).Where("email = ?", email).First(&account).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, errors.Wrap(err, "get account by email")
	}
	return &account, nil
}

// ExistsByEmail 检查邮箱是否已注册
func (r *AccountRepository) ExistsByEmail(ctx context.Context, email string) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&model.Account{}).Where("email = ?", email).Count(&count).Error
	return count > 0, err
}

// UpdateFields 更新指定字段
// 参数:
//   - ctx: 上下文
//   - id: 账号ID
//   - fields: 要更新的字段映射，如 {"name": "alice"}
func (r *AccountRepository) UpdateFields(ctx context.Context, id string, fields map[string]interface{}) error {
	return r.db.WithContext(ctx).Model(&model.Account{}).Where("id = ?", id).Updates(fields).Error
}

// UpdateLastLogin 记录最近登录时间
func (r *AccountRepository) UpdateLastLogin(ctx context.Context, id string) error {
	now := time.Now()
	return r.db.WithContext(ctx).Model(&model.Account{}).Where("id = ?", id).Update("last_login_at", &now).Error
}
