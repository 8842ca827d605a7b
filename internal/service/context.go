// Package service 提供业务逻辑层的实现
// 服务层封装具体的业务逻辑，协调 Repository 和 Cache
package service

import (
	"context"
	"net/http"
	"strings"
	"time"

	"pocket-chat-server/internal/cache"
	"pocket-chat-server/internal/repository"
)

// SessionCookieName 浏览器端保存会话 Token 的 Cookie 名
const SessionCookieName = "session_token"

// RequestContext 一次请求里与认证相关的输入
type RequestContext struct {
	SessionToken string      // 会话 Token，来自 Authorization 头或 Cookie
	Headers      http.Header // 原始请求头
}

// NewRequestContext 从 HTTP 请求中提取会话 Token
// Authorization: Bearer 优先，其次是 session_token Cookie
func NewRequestContext(r *http.Request) *RequestContext {
	rc := &RequestContext{Headers: r.Header}

	authHeader := r.Header.Get("Authorization")
	if token, ok := strings.CutPrefix(authHeader, "Bearer "); ok {
		rc.SessionToken = strings.TrimSpace(token)
	}
	if rc.SessionToken == "" {
		if cookie, err := r.Cookie(SessionCookieName); err == nil {
			rc.SessionToken = cookie.Value
		}
	}
	return rc
}

// ExecutionContext 认证通过后的执行上下文
// Datastore 已经限定在 OrgScopeID 范围内
type ExecutionContext struct {
	UserID     string
	Email      string
	Name       string
	OrgScopeID string // 当前组织，个人模式下等于 UserID

	Token     string    // 原始会话 Token，登出时加入黑名单
	ExpiresAt time.Time // 会话 Token 过期时间

	Datastore *repository.Client
}

// Personal 是否为个人模式
func (ec *ExecutionContext) Personal() bool {
	return ec.OrgScopeID == ec.UserID
}

// TokenBlacklist Token 黑名单，由 cache.RedisCache 实现
type TokenBlacklist interface {
	BlacklistToken(ctx context.Context, tokenHash string, expireAt time.Time) error
	IsTokenBlacklisted(ctx context.Context, tokenHash string) bool
}

// EventPublisher 会话事件发布，由 cache.RedisCache 实现
type EventPublisher interface {
	PublishThreadEvent(ctx context.Context, event *cache.ThreadEvent) error
}
