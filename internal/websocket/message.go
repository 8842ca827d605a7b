// Package websocket 提供会话事件的实时推送
// 浏览器通过 /ws/threads 建立连接，服务端把同一用户、同一组织范围内的
// 会话变更（新建、改标题、删除、新消息）推送给所有在线标签页
package websocket

import (
	"time"
)

// MessageType 消息类型常量
const (
	// 服务端 → 客户端
	TypeThreadEvent = "thread:event" // 会话变更事件
	TypeError       = "error"        // 错误消息

	// 客户端 → 服务端
	TypePing = "ping" // 应用层心跳

	// 服务端 → 客户端
	TypePong = "pong" // 心跳响应
)

// Message WebSocket 消息结构
// 所有消息都使用这个统一的结构
type Message struct {
	Type      string `json:"type"`              // 消息类型
	Payload   any    `json:"payload,omitempty"` // 消息内容
	Timestamp int64  `json:"timestamp"`         // 时间戳（毫秒）
}

// NewMessage 创建新消息
func NewMessage(msgType string, payload any) *Message {
	return &Message{
		Type:      msgType,
		Payload:   payload,
		Timestamp: time.Now().UnixMilli(),
	}
}

// ErrorPayload 错误消息 Payload
type ErrorPayload struct {
	Message string `json:"message"` // 错误信息
}
