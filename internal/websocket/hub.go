package websocket

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"pocket-chat-server/internal/cache"
)

// Hub 是 WebSocket 连接的中心管理器
// 负责：
// 1. 管理所有浏览器连接，按用户分组
// 2. 把会话事件分发给同一用户、同一组织范围的连接
// 3. 多实例部署时从 Redis 订阅其他实例发布的事件
type Hub struct {
	// 客户端映射：userID -> 连接集合
	// 一个用户可能同时打开多个标签页
	clients map[string]map[*Client]struct{}

	register   chan *Client
	unregister chan *Client
	done       chan struct{}

	// 互斥锁，保护 clients
	mu sync.RWMutex

	logger *slog.Logger
}

// NewHub 创建 Hub 实例
func NewHub(logger *slog.Logger) *Hub {
	return &Hub{
		clients:    make(map[string]map[*Client]struct{}),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		done:       make(chan struct{}),
		logger:     logger,
	}
}

// Run 启动 Hub 的主循环
// 应该在单独的 goroutine 中运行，ctx 取消后关闭所有连接
func (h *Hub) Run(ctx context.Context) {
	defer close(h.done)

	for {
		select {
		case client := <-h.register:
			h.registerClient(client)

		case client := <-h.unregister:
			h.unregisterClient(client)

		case <-ctx.Done():
			h.closeAll()
			return
		}
	}
}

// Register 注册客户端
func (h *Hub) Register(client *Client) {
	select {
	case h.register <- client:
	case <-h.done:
		client.Close()
	}
}

// Unregister 注销客户端
func (h *Hub) Unregister(client *Client) {
	select {
	case h.unregister <- client:
	case <-h.done:
	}
}

func (h *Hub) registerClient(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	set, ok := h.clients[client.userID]
	if !ok {
		set = make(map[*Client]struct{})
		h.clients[client.userID] = set
	}
	set[client] = struct{}{}
	client.logger.Debug("websocket client registered", "connections", len(set))
}

func (h *Hub) unregisterClient(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	set := h.clients[client.userID]
	if _, ok := set[client]; !ok {
		return
	}
	delete(set, client)
	if len(set) == 0 {
		delete(h.clients, client.userID)
	}
	client.Close()
	client.logger.Debug("websocket client unregistered")
}

func (h *Hub) closeAll() {
	h.mu.Lock()
	defer h.mu.Unlock()

	for userID, set := range h.clients {
		for client := range set {
			client.Close()
		}
		delete(h.clients, userID)
	}
}

// Dispatch 把事件推送给本实例上匹配的连接
// 只推送给事件所属用户在同一组织范围内的连接
// 返回:
//   - int: 收到事件的连接数
func (h *Hub) Dispatch(event *cache.ThreadEvent) int {
	h.mu.RLock()
	defer h.mu.RUnlock()

	msg := NewMessage(TypeThreadEvent, event)
	delivered := 0
	for client := range h.clients[event.UserID] {
		if client.orgScopeID != event.OrganizationID {
			continue
		}
		if err := client.SendMessage(msg); err == nil {
			delivered++
		}
	}
	return delivered
}

// PublishThreadEvent 单实例部署时直接分发事件
// 与 cache.RedisCache 实现同一个发布接口
func (h *Hub) PublishThreadEvent(ctx context.Context, event *cache.ThreadEvent) error {
	if event.Timestamp == 0 {
		event.Timestamp = time.Now().UnixMilli()
	}
	h.Dispatch(event)
	return nil
}

// Subscribe 消费 Redis 上的会话事件并分发
// 阻塞直到 ctx 取消或订阅关闭
func (h *Hub) Subscribe(ctx context.Context, pubsub *redis.PubSub) {
	ch := pubsub.Channel()
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-ch:
			if !ok {
				return
			}
			h.handlePubSubMessage(msg)
		}
	}
}

func (h *Hub) handlePubSubMessage(msg *redis.Message) {
	userID, ok := cache.UserIDFromChannel(msg.Channel)
	if !ok {
		return
	}

	var event cache.ThreadEvent
	if err := json.Unmarshal([]byte(msg.Payload), &event); err != nil {
		h.logger.Warn("invalid thread event", "error", err, "channel", msg.Channel)
		return
	}
	// 以频道为准，防止事件体里的用户与频道不一致
	event.UserID = userID
	h.Dispatch(&event)
}

// ClientCount 用户当前的连接数
func (h *Hub) ClientCount(userID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients[userID])
}
