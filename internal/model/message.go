package model

import (
	"time"

	"gorm.io/datatypes"
)

// MessageRole 消息角色常量
const (
	MessageRoleUser      = "user"      // 用户消息
	MessageRoleAssistant = "assistant" // AI 助手响应
	MessageRoleSystem    = "system"    // 系统消息
)

// MessagePart 消息的结构化片段
type MessagePart struct {
	Type string `json:"type"`
	Text string `json:"text,omitempty"`
}

// MessageMetadata 消息的附加信息，以 JSON 列存储
type MessageMetadata struct {
	Parts []MessagePart `json:"parts,omitempty"`
}

// Message 消息模型
// 对应数据库表 messages
// 以 ID 为幂等键，重复写入同一 ID 不会产生新行
type Message struct {
	// ID 消息唯一标识，由客户端提供或服务端生成
	ID string `gorm:"primaryKey;size:64" json:"id"`

	// ThreadID 所属会话ID
	ThreadID string `gorm:"size:64;index;not null" json:"threadId"`

	// Role 消息角色
	// user: 用户发送的消息
	// assistant: AI 助手的响应
	Role string `gorm:"size:20;not null" json:"role"`

	// Content 消息内容，纯文本
	Content string `gorm:"type:text;not null" json:"content"`

	// Metadata 结构化附加信息
	Metadata datatypes.JSONType[MessageMetadata] `json:"metadata"`

	// CreatedAt 消息创建时间
	CreatedAt time.Time `gorm:"autoCreateTime;index" json:"createdAt"`
}

// TableName 指定表名
func (Message) TableName() string {
	return "messages"
}
