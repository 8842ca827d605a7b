package service

import (
	"context"
	"errors"
	"strings"

	"pocket-chat-server/internal/model"
	"pocket-chat-server/internal/repository"
	"pocket-chat-server/pkg/jwt"
	"pocket-chat-server/pkg/util"
)

// 定义业务错误
var (
	ErrEmailExists     = errors.New("邮箱已被注册")
	ErrAccountNotFound = errors.New("账号不存在")
	ErrPasswordWrong   = errors.New("密码错误")
	ErrAccountDisabled = errors.New("账号已被禁用")
)

// AuthService 认证服务
// 处理账号注册、登录、登出以及 Token 刷新
type AuthService struct {
	accountRepo *repository.AccountRepository      // 账号数据访问层
	orgRepo     *repository.OrganizationRepository // 组织数据访问层
	blacklist   TokenBlacklist                     // Token 黑名单
	jwtService  *jwt.JWTService                    // JWT 服务
}

// NewAuthService 创建 AuthService 实例
func NewAuthService(
	accountRepo *repository.AccountRepository,
	orgRepo *repository.OrganizationRepository,
	blacklist TokenBlacklist,
	jwtService *jwt.JWTService,
) *AuthService {
	return &AuthService{
		accountRepo: accountRepo,
		orgRepo:     orgRepo,
		blacklist:   blacklist,
		jwtService:  jwtService,
	}
}

// RegisterRequest 注册请求
type RegisterRequest struct {
	Email    string `json:"email" binding:"required,email"`    // 邮箱
	Password string `json:"password" binding:"required,min=6"` // 密码
	Name     string `json:"name" binding:"omitempty,max=100"`  // 显示名称（可选）
}

// RegisterResponse 注册响应
type RegisterResponse struct {
	UserID string `json:"userId"`
	Email  string `json:"email"`
}

// Register 账号注册
// 参数:
//   - ctx: 上下文
//   - req: 注册请求
//
// 返回:
//   - *RegisterResponse: 注册成功返回账号信息
//   - error: 注册失败返回错误（邮箱已存在等）
func (s *AuthService) Register(ctx context.Context, req *RegisterRequest) (*RegisterResponse, error) {
	email := util.NormalizeEmail(req.Email)

	// 1. 检查邮箱是否已存在
	exists, err := s.accountRepo.ExistsByEmail(ctx, email)
	if err != nil {
		return nil, err
	}
	if exists {
		return nil, ErrEmailExists
	}

	// 2. 对密码进行哈希
	passwordHash, err := util.HashPassword(req.Password)
	if err != nil {
		return nil, err
	}

	// 3. 创建账号，名称缺省时取邮箱前缀
	name := req.Name
	if name == "" {
		name, _, _ = strings.Cut(email, "@")
	}
	account := &model.Account{
		ID:           util.NewID(),
		Email:        email,
		PasswordHash: passwordHash,
		Name:         name,
		Status:       model.AccountStatusActive,
	}
	if err := s.accountRepo.Create(ctx, account); err != nil {
		// 并发注册同一邮箱时唯一索引兜底
		if repository.IsDuplicateKey(err) {
			return nil, ErrEmailExists
		}
		return nil, err
	}

	return &RegisterResponse{
		UserID: account.ID,
		Email:  account.Email,
	}, nil
}

// LoginRequest 登录请求
type LoginRequest struct {
	Email    string `json:"email" binding:"required"`    // 邮箱
	Password string `json:"password" binding:"required"` // 密码
}

// LoginResponse 登录响应
type LoginResponse struct {
	AccessToken  string         `json:"accessToken"`  // 访问令牌
	RefreshToken string         `json:"refreshToken"` // 刷新令牌
	ExpiresIn    int64          `json:"expiresIn"`    // 过期时间（秒）
	User         *model.Account `json:"user"`         // 账号信息
}

// Login 账号登录
// 参数:
//   - ctx: 上下文
//   - req: 登录请求
//
// 返回:
//   - *LoginResponse: 登录成功返回 Token 和账号信息
//   - error: 登录失败返回错误（账号不存在/密码错误/已禁用）
func (s *AuthService) Login(ctx context.Context, req *LoginRequest) (*LoginResponse, error) {
	// 1. 根据邮箱查找账号
	account, err := s.accountRepo.GetByEmail(ctx, util.NormalizeEmail(req.Email))
	if err != nil {
		return nil, err
	}
	if account == nil {
		return nil, ErrAccountNotFound
	}

	// 2. 验证密码
	if !util.CheckPassword(req.Password, account.PasswordHash) {
		return nil, ErrPasswordWrong
	}

	// 3. 检查账号状态
	if account.Status != model.AccountStatusActive {
		return nil, ErrAccountDisabled
	}

	// 4. 生成 Token，登录后默认进入个人模式
	resp, err := s.issue(account, "")
	if err != nil {
		return nil, err
	}

	// 5. 记录登录时间，失败不影响登录
	_ = s.accountRepo.UpdateLastLogin(ctx, account.ID)

	return resp, nil
}

// LogoutRequest 登出请求
// RefreshToken 可选，传入时一并失效
type LogoutRequest struct {
	RefreshToken string `json:"refreshToken"`
}

// Logout 登出
// 将当前会话 Token 和请求中的 Refresh Token 加入黑名单
// 参数:
//   - ctx: 上下文
//   - ec: 执行上下文
//   - req: 登出请求，可以为 nil
//
// 返回:
//   - error: 操作错误
func (s *AuthService) Logout(ctx context.Context, ec *ExecutionContext, req *LogoutRequest) error {
	if s.blacklist == nil {
		return nil
	}
	// TTL 设为 Token 的剩余有效期
	if err := s.blacklist.BlacklistToken(ctx, util.HashToken(ec.Token), ec.ExpiresAt); err != nil {
		return err
	}

	if req == nil || req.RefreshToken == "" {
		return nil
	}
	// 无效或属于其他用户的 Refresh Token 忽略
	claims, err := s.jwtService.ValidateRefreshToken(req.RefreshToken)
	if err != nil || claims.UserID != ec.UserID || claims.ExpiresAt == nil {
		return nil
	}
	return s.blacklist.BlacklistToken(ctx, util.HashToken(req.RefreshToken), claims.ExpiresAt.Time)
}

// RefreshTokenRequest 刷新 Token 请求
type RefreshTokenRequest struct {
	RefreshToken string `json:"refreshToken" binding:"required"`
}

// RefreshToken 用 Refresh Token 换取新的 Token
// 保留 Refresh Token 中记录的当前组织；已经不是成员时回到个人模式
// 参数:
//   - ctx: 上下文
//   - refreshToken: Refresh Token
//
// 返回:
//   - *LoginResponse: 新的 Token
//   - error: 刷新失败返回错误
func (s *AuthService) RefreshToken(ctx context.Context, refreshToken string) (*LoginResponse, error) {
	// 1. 验证 Refresh Token
	claims, err := s.jwtService.ValidateRefreshToken(refreshToken)
	if err != nil {
		return nil, err
	}
	if s.blacklist != nil && s.blacklist.IsTokenBlacklisted(ctx, util.HashToken(refreshToken)) {
		return nil, jwt.ErrInvalidToken
	}

	// 2. 检查账号是否仍然存在且正常
	account, err := s.accountRepo.GetByID(ctx, claims.UserID)
	if err != nil {
		return nil, err
	}
	if account == nil {
		return nil, ErrAccountNotFound
	}
	if account.Status != model.AccountStatusActive {
		return nil, ErrAccountDisabled
	}

	// 3. 确认仍是组织成员
	activeOrgID := claims.ActiveOrganizationID
	if activeOrgID != "" {
		member, err := s.orgRepo.GetMember(ctx, activeOrgID, account.ID)
		if err != nil {
			return nil, err
		}
		if member == nil {
			activeOrgID = ""
		}
	}

	return s.issue(account, activeOrgID)
}

// issue 签发一对 Token
func (s *AuthService) issue(account *model.Account, activeOrgID string) (*LoginResponse, error) {
	accessToken, err := s.jwtService.GenerateAccessToken(account.ID, account.Email, account.Name, activeOrgID)
	if err != nil {
		return nil, err
	}
	refreshToken, err := s.jwtService.GenerateRefreshToken(account.ID, account.Email, account.Name, activeOrgID)
	if err != nil {
		return nil, err
	}
	return &LoginResponse{
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		ExpiresIn:    int64(s.jwtService.GetAccessExpire().Seconds()),
		User:         account,
	}, nil
}

// SessionResponse 当前会话信息
type SessionResponse struct {
	UserID         string `json:"userId"`
	Email          string `json:"email"`
	Name           string `json:"name"`
	OrganizationID string `json:"organizationId"`
	Personal       bool   `json:"personal"`
	ExpiresAt      int64  `json:"expiresAt"`
}

// Session 返回当前会话信息
func (s *AuthService) Session(ec *ExecutionContext) *SessionResponse {
	return &SessionResponse{
		UserID:         ec.UserID,
		Email:          ec.Email,
		Name:           ec.Name,
		OrganizationID: ec.OrgScopeID,
		Personal:       ec.Personal(),
		ExpiresAt:      ec.ExpiresAt.Unix(),
	}
}
