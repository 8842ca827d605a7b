// Package relay 把模型的流式输出转成 SSE 推给浏览器，同时累积完整回复用于落库
package relay

import (
	"bytes"
	"encoding/json"
	"strings"

	"github.com/samber/lo"

	"pocket-chat-server/internal/agent"
	"pocket-chat-server/internal/model"
	"pocket-chat-server/pkg/util"
)

// 标题规则
const (
	TitleMaxLength = 48
	TitleEllipsis  = "…"
	DefaultTitle   = "New Chat"
)

// ContentPart 消息内容片段
type ContentPart struct {
	Type string `json:"type"`
	Text string `json:"text,omitempty"`
}

// ChatMessage 客户端提交的一条消息
// content 可以是字符串，也可以是 {type,text} 片段数组；只有 parts 时按 parts 取文本
type ChatMessage struct {
	ID      string          `json:"id,omitempty"`
	Role    string          `json:"role"`
	Content json.RawMessage `json:"content,omitempty"`
	Parts   []ContentPart   `json:"parts,omitempty"`
}

// Text 返回消息的纯文本
// 字符串原样返回；片段数组按顺序拼接，非 text 片段记为空串
func (m *ChatMessage) Text() string {
	raw := bytes.TrimSpace(m.Content)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return flattenParts(m.Parts)
	}

	switch raw[0] {
	case '"':
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return ""
		}
		return s
	case '[':
		var parts []ContentPart
		if err := json.Unmarshal(raw, &parts); err != nil {
			return ""
		}
		return flattenParts(parts)
	default:
		return ""
	}
}

// MetadataParts 返回要保存到 metadata 的片段
func (m *ChatMessage) MetadataParts() []model.MessagePart {
	return lo.Map(m.Parts, func(p ContentPart, _ int) model.MessagePart {
		return model.MessagePart{Type: p.Type, Text: p.Text}
	})
}

func flattenParts(parts []ContentPart) string {
	return strings.Join(lo.Map(parts, func(p ContentPart, _ int) string {
		if p.Type != "text" {
			return ""
		}
		return p.Text
	}), "")
}

// LastUserMessage 返回列表中最后一条 user 消息
func LastUserMessage(messages []ChatMessage) (*ChatMessage, bool) {
	msg, _, ok := lo.FindLastIndexOf(messages, func(m ChatMessage) bool {
		return m.Role == agent.RoleUser
	})
	if !ok {
		return nil, false
	}
	return &msg, true
}

// DeriveTitle 由第一条用户消息生成会话标题
// 只含空白时使用 "New Chat"；否则对原文按 48 个字符硬截断并追加省略号
func DeriveTitle(text string) string {
	if strings.TrimSpace(text) == "" {
		return DefaultTitle
	}
	return util.TruncateRunes(text, TitleMaxLength, TitleEllipsis)
}

// History 把客户端消息转换为模型请求的历史
// 只保留 user/assistant 的非空消息，limit > 0 时只取最后 limit 条
func History(messages []ChatMessage, limit int) []agent.Message {
	history := lo.FilterMap(messages, func(m ChatMessage, _ int) (agent.Message, bool) {
		if m.Role != agent.RoleUser && m.Role != agent.RoleAssistant {
			return agent.Message{}, false
		}
		text := m.Text()
		return agent.Message{Role: m.Role, Text: text}, text != ""
	})
	if limit > 0 && len(history) > limit {
		history = history[len(history)-limit:]
	}
	return history
}
