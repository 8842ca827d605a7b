package service

import (
	"context"
	"strings"

	"pocket-chat-server/internal/model"
	"pocket-chat-server/internal/repository"
	"pocket-chat-server/pkg/util"
)

// UserService 用户服务
// 处理账号资料的查询和更新，并同步到聊天数据侧的用户记录
type UserService struct {
	accountRepo *repository.AccountRepository // 账号数据访问层
	userRepo    *repository.UserRepository    // 聊天数据侧用户
}

// NewUserService 创建 UserService 实例
func NewUserService(accountRepo *repository.AccountRepository, userRepo *repository.UserRepository) *UserService {
	return &UserService{
		accountRepo: accountRepo,
		userRepo:    userRepo,
	}
}

// GetProfile 获取账号资料
// 参数:
//   - ctx: 上下文
//   - userID: 用户ID
//
// 返回:
//   - *model.Account: 账号信息
//   - error: 账号不存在返回错误
func (s *UserService) GetProfile(ctx context.Context, userID string) (*model.Account, error) {
	account, err := s.accountRepo.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if account == nil {
		return nil, ErrAccountNotFound
	}
	return account, nil
}

// UpdateProfileRequest 更新资料请求
type UpdateProfileRequest struct {
	Name *string `json:"name" binding:"omitempty,max=100"` // 显示名称
}

// UpdateProfile 更新账号资料
// 参数:
//   - ctx: 上下文
//   - userID: 用户ID
//   - req: 更新请求
//
// 返回:
//   - *model.Account: 更新后的账号信息
//   - error: 操作错误
func (s *UserService) UpdateProfile(ctx context.Context, userID string, req *UpdateProfileRequest) (*model.Account, error) {
	// 1. 获取当前账号
	account, err := s.GetProfile(ctx, userID)
	if err != nil {
		return nil, err
	}

	// 2. 没有要更新的字段，直接返回
	if req.Name == nil {
		return account, nil
	}
	name := strings.TrimSpace(*req.Name)
	if name == account.Name {
		return account, nil
	}

	// 3. 更新账号
	if err := s.accountRepo.UpdateFields(ctx, userID, map[string]interface{}{"name": name}); err != nil {
		return nil, err
	}

	// 4. 同步聊天数据侧的用户名，记录可能还未创建
	if err := s.userRepo.UpdateProfile(ctx, userID, name); err != nil {
		return nil, err
	}

	return s.accountRepo.GetByID(ctx, userID)
}

// ChangePasswordRequest 修改密码请求
type ChangePasswordRequest struct {
	OldPassword string `json:"oldPassword" binding:"required"`       // 旧密码
	NewPassword string `json:"newPassword" binding:"required,min=6"` // 新密码
}

// ChangePassword 修改密码
// 参数:
//   - ctx: 上下文
//   - userID: 用户ID
//   - req: 修改密码请求
//
// 返回:
//   - error: 旧密码错误等情况返回错误
func (s *UserService) ChangePassword(ctx context.Context, userID string, req *ChangePasswordRequest) error {
	// 1. 获取账号
	account, err := s.GetProfile(ctx, userID)
	if err != nil {
		return err
	}

	// 2. 验证旧密码
	if !util.CheckPassword(req.OldPassword, account.PasswordHash) {
		return ErrPasswordWrong
	}

	// 3. 对新密码进行哈希
	newHash, err := util.HashPassword(req.NewPassword)
	if err != nil {
		return err
	}

	// 4. 更新密码
	return s.accountRepo.UpdateFields(ctx, userID, map[string]interface{}{
		"password_hash": newHash,
	})
}
