// Package agent 封装大模型的流式补全
// 上层只依赖 Agent 和 Stream 接口，具体厂商在各自的适配器中实现
package agent

import (
	"context"
	"fmt"

	"pocket-chat-server/internal/config"
)

// 消息角色
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Message 发送给模型的一条历史消息
type Message struct {
	Role string
	Text string
}

// Request 一次补全请求
type Request struct {
	System    string
	Messages  []Message
	MaxTokens int
}

// Stream 模型输出的文本流
// 用法与 bufio.Scanner 相同：循环 Next，取 Text，结束后检查 Err
type Stream interface {
	Next() bool
	Text() string
	Err() error
	Close() error
}

// Agent 可以流式生成回复的模型
type Agent interface {
	// Name 厂商名称，用于日志
	Name() string
	// Stream 发起补全请求
	// 请求本身失败（鉴权、额度、网络）时返回错误，此时不会返回 Stream
	Stream(ctx context.Context, req *Request) (Stream, error)
}

// New 根据配置创建 Agent
func New(cfg *config.AIConfig) (Agent, error) {
	switch cfg.Provider {
	case ProviderOpenAI, "":
		return NewOpenAI(cfg.OpenAIAPIKey, cfg.OpenAIBaseURL, cfg.OpenAIModel, cfg.MaxTokens), nil
	case ProviderAnthropic:
		return NewAnthropic(cfg.AnthropicAPIKey, cfg.AnthropicModel, cfg.MaxTokens), nil
	default:
		return nil, fmt.Errorf("unknown ai provider %q", cfg.Provider)
	}
}
