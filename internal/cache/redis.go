// Package cache 提供 Redis 缓存操作的封装
// 处理 JWT 黑名单以及会话变更事件的跨实例广播
package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"pocket-chat-server/internal/config"
)

// 会话事件类型
const (
	EventThreadCreated  = "thread.created"
	EventThreadUpdated  = "thread.updated"
	EventThreadDeleted  = "thread.deleted"
	EventMessageCreated = "message.created"
)

const threadChannelPrefix = "threads:user:"

// ThreadEvent 会话变更事件
// 推送给同一用户的其他在线客户端，用于刷新侧边栏
type ThreadEvent struct {
	Type           string  `json:"type"`
	ThreadID       string  `json:"threadId"`
	OrganizationID string  `json:"organizationId"`
	UserID         string  `json:"userId"`
	Title          *string `json:"title,omitempty"`
	MessageID      string  `json:"messageId,omitempty"`
	Timestamp      int64   `json:"timestamp"`
}

// RedisCache 封装 Redis 客户端，提供业务相关的缓存操作
type RedisCache struct {
	client *redis.Client // Redis 客户端实例
}

// NewRedisCache 创建 RedisCache 实例
// 参数:
//   - cfg: Redis 连接配置
//
// 返回:
//   - *RedisCache: 缓存实例
//   - error: 连接错误
func NewRedisCache(cfg *config.RedisConfig) (*RedisCache, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Username: cfg.Username,
		Password: cfg.Password,
		DB:       cfg.DB,
		PoolSize: cfg.PoolSize,
	})

	// 测试连接
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	return &RedisCache{client: client}, nil
}

// Close 关闭 Redis 连接
func (c *RedisCache) Close() error {
	return c.client.Close()
}

// Ping 检查 Redis 连接
func (c *RedisCache) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

// ==================== JWT 黑名单 ====================

// BlacklistToken 将 Token 加入黑名单
// 登出时调用，使当前 Token 失效
// 参数:
//   - ctx: 上下文
//   - tokenHash: Token 的哈希值（不存储原始 Token）
//   - expireAt: Token 的原始过期时间
//
// 返回:
//   - error: Redis 操作错误
func (c *RedisCache) BlacklistToken(ctx context.Context, tokenHash string, expireAt time.Time) error {
	ttl := time.Until(expireAt)
	if ttl <= 0 {
		// Token 已过期，无需加入黑名单
		return nil
	}

	// TTL 设置为 Token 的剩余有效期，过期后自动删除
	return c.client.Set(ctx, blacklistKey(tokenHash), "1", ttl).Err()
}

// IsTokenBlacklisted 检查 Token 是否在黑名单中
// 参数:
//   - ctx: 上下文
//   - tokenHash: Token 的哈希值
//
// 返回:
//   - bool: 是否在黑名单中
func (c *RedisCache) IsTokenBlacklisted(ctx context.Context, tokenHash string) bool {
	// EXISTS 命令返回存在的 Key 数量
	return c.client.Exists(ctx, blacklistKey(tokenHash)).Val() > 0
}

func blacklistKey(tokenHash string) string {
	return fmt.Sprintf("jwt:blacklist:%s", tokenHash)
}

// ==================== Pub/Sub ====================
// 用于多服务实例间的会话事件广播

// PublishThreadEvent 发布会话事件到用户频道
// 参数:
//   - ctx: 上下文
//   - event: 事件内容（会被 JSON 序列化）
//
// 返回:
//   - error: Redis 操作错误
func (c *RedisCache) PublishThreadEvent(ctx context.Context, event *ThreadEvent) error {
	if event.Timestamp == 0 {
		event.Timestamp = time.Now().UnixMilli()
	}
	data, err := json.Marshal(event)
	if err != nil {
		return err
	}
	return c.client.Publish(ctx, ThreadChannel(event.UserID), data).Err()
}

// SubscribeThreadEvents 按模式订阅所有用户的会话事件
// 每个服务实例只需要一个订阅，由 websocket.Hub 分发给本地连接
// 返回 PubSub 对象，调用方负责关闭
func (c *RedisCache) SubscribeThreadEvents(ctx context.Context) *redis.PubSub {
	return c.client.PSubscribe(ctx, threadChannelPrefix+"*")
}

// ThreadChannel 用户的会话事件频道名
func ThreadChannel(userID string) string {
	return threadChannelPrefix + userID
}

// UserIDFromChannel 从频道名解析用户 ID
func UserIDFromChannel(channel string) (string, bool) {
	userID, ok := strings.CutPrefix(channel, threadChannelPrefix)
	return userID, ok && userID != ""
}
