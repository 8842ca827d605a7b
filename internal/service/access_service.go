package service

import (
	"context"
	"errors"
	"log/slog"

	"pocket-chat-server/internal/repository"
	"pocket-chat-server/pkg/jwt"
	"pocket-chat-server/pkg/util"
)

// ErrUnauthorized 会话无效或无法建立数据访问
var ErrUnauthorized = errors.New("unauthorized")

// AccessService 会话校验与数据访问授权
// 把会话 Token 换成限定组织范围的数据存储客户端
type AccessService struct {
	jwtService *jwt.JWTService       // JWT 服务
	datastore  *repository.Datastore // 数据存储
	blacklist  TokenBlacklist        // Token 黑名单，可为 nil
	logger     *slog.Logger
}

// NewAccessService 创建 AccessService 实例
func NewAccessService(
	jwtService *jwt.JWTService,
	datastore *repository.Datastore,
	blacklist TokenBlacklist,
	logger *slog.Logger,
) *AccessService {
	return &AccessService{
		jwtService: jwtService,
		datastore:  datastore,
		blacklist:  blacklist,
		logger:     logger,
	}
}

// Authorize 校验会话并打开数据存储客户端
// 参数:
//   - ctx: 上下文
//   - rc: 请求上下文
//
// 返回:
//   - *ExecutionContext: 执行上下文
//   - error: 任何一步失败都返回 ErrUnauthorized
func (s *AccessService) Authorize(ctx context.Context, rc *RequestContext) (*ExecutionContext, error) {
	if rc == nil || rc.SessionToken == "" {
		return nil, ErrUnauthorized
	}

	// 1. 校验会话 Token
	claims, err := s.jwtService.ValidateToken(rc.SessionToken)
	if err != nil {
		s.logger.DebugContext(ctx, "session token rejected", "error", err)
		return nil, ErrUnauthorized
	}
	if claims.UserID == "" {
		return nil, ErrUnauthorized
	}

	// 2. 检查是否已登出
	if s.blacklist != nil && s.blacklist.IsTokenBlacklisted(ctx, util.HashToken(rc.SessionToken)) {
		return nil, ErrUnauthorized
	}

	// 3. 确定组织范围，没有选择组织时使用个人范围
	orgScopeID := claims.ActiveOrganizationID
	if orgScopeID == "" {
		orgScopeID = claims.UserID
	}

	// 4. 签发数据存储 Token 并打开客户端
	dsToken, err := s.jwtService.GenerateDatastoreToken(claims.UserID, orgScopeID)
	if err != nil {
		s.logger.ErrorContext(ctx, "generate datastore token failed", "error", err)
		return nil, ErrUnauthorized
	}
	client, err := s.datastore.Open(ctx, dsToken)
	if err != nil {
		s.logger.ErrorContext(ctx, "open datastore failed", "error", err, "user_id", claims.UserID)
		return nil, ErrUnauthorized
	}

	ec := &ExecutionContext{
		UserID:     claims.UserID,
		Email:      claims.Email,
		Name:       claims.Name,
		OrgScopeID: orgScopeID,
		Token:      rc.SessionToken,
		Datastore:  client,
	}
	if claims.ExpiresAt != nil {
		ec.ExpiresAt = claims.ExpiresAt.Time
	}
	return ec, nil
}
