package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"pocket-chat-server/internal/agent"
	"pocket-chat-server/internal/relay"
	"pocket-chat-server/pkg/util"
)

// ErrGenerate 打开模型流失败，此时还没有写出任何字节
var ErrGenerate = errors.New("failed to generate response")

// defaultHistoryLength 发送给模型的历史消息条数上限
const defaultHistoryLength = 20

// ChatRequest 聊天请求
type ChatRequest struct {
	ThreadID           string              `json:"threadId"`
	AssistantMessageID string              `json:"assistantMessageId,omitempty"`
	Messages           []relay.ChatMessage `json:"messages"`
}

// ChatService 聊天服务
// 会话和用户消息落库后，把模型的流式输出以 SSE 转发给客户端
type ChatService struct {
	threads      *ThreadService // 会话服务
	agent        agent.Agent    // 模型
	bridge       *relay.Bridge  // SSE 转发
	systemPrompt string
	historyLimit int
	logger       *slog.Logger
}

// NewChatService 创建 ChatService 实例
// 参数:
//   - threads: 会话服务
//   - ag: 模型
//   - systemPrompt: 系统提示词，可为空
//   - historyLimit: 历史消息条数上限，<=0 时使用默认值
//   - logger: 日志
func NewChatService(threads *ThreadService, ag agent.Agent, systemPrompt string, historyLimit int, logger *slog.Logger) *ChatService {
	if historyLimit <= 0 {
		historyLimit = defaultHistoryLength
	}
	return &ChatService{
		threads:      threads,
		agent:        ag,
		bridge:       relay.NewBridge(logger),
		systemPrompt: systemPrompt,
		historyLimit: historyLimit,
		logger:       logger,
	}
}

// Stream 处理一次聊天请求
// 会话和用户消息在写出任何字节之前同步落库
// 参数:
//   - ctx: 请求上下文，客户端断开时取消
//   - ec: 执行上下文
//   - req: 聊天请求，ThreadID 已校验
//   - w: HTTP 响应
//
// 返回:
//   - error: 只在还没有写出任何字节时返回（ErrThreadCreate / ErrMessageSave / ErrGenerate）
func (s *ChatService) Stream(ctx context.Context, ec *ExecutionContext, req *ChatRequest, w http.ResponseWriter) error {
	// 1. 会话和用户消息
	thread, err := s.threads.EnsureThread(ctx, ec, req.ThreadID)
	if err != nil {
		return err
	}
	userText, err := s.threads.RecordUserMessage(ctx, ec, thread, req.Messages)
	if err != nil {
		return err
	}

	// 2. 转发模型输出
	assistantID := req.AssistantMessageID
	if assistantID == "" {
		assistantID = util.NewID()
	}
	agentReq := &agent.Request{
		System:   s.systemPrompt,
		Messages: relay.History(req.Messages, s.historyLimit),
	}

	state, err := s.bridge.Run(ctx, relay.Run{
		Writer: relay.NewWriter(w),
		Open: func(ctx context.Context) (agent.Stream, error) {
			return s.agent.Stream(ctx, agentReq)
		},
		Persist: func(ctx context.Context, reply relay.Reply) error {
			return s.threads.RecordAssistantMessage(ctx, ec, thread.ID, assistantID, reply)
		},
		UserText: userText,
	})

	s.logger.InfoContext(ctx, "chat stream finished",
		"thread_id", thread.ID,
		"user_id", ec.UserID,
		"agent", s.agent.Name(),
		"state", state,
	)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrGenerate, err)
	}
	return nil
}
