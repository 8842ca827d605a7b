// Package handler 提供 HTTP 请求处理器
package handler

import (
	"errors"
	"log/slog"
	"strings"

	"github.com/gin-gonic/gin"

	"pocket-chat-server/internal/middleware"
	"pocket-chat-server/internal/service"
	"pocket-chat-server/pkg/response"
)

// 错误信息
const (
	MsgInvalidBody        = "Invalid request body"
	MsgThreadIDRequired   = "threadId is required"
	MsgThreadCreateFailed = "Failed to create thread"
	MsgMessageSaveFailed  = "Failed to save message"
	MsgGenerateFailed     = "Failed to generate response"
	MsgThreadNotFound     = "Thread not found"
	MsgTitleRequired      = "Title is required"
	MsgThreadListFailed   = "Failed to list threads"
	MsgMessageListFailed  = "Failed to list messages"
	MsgThreadDeleteFailed = "Failed to delete thread"
	MsgThreadRenameFailed = "Failed to rename thread"
)

// ChatHandler 聊天请求处理器
type ChatHandler struct {
	chatService   *service.ChatService
	accessService *service.AccessService
	logger        *slog.Logger
}

// NewChatHandler 创建 ChatHandler 实例
func NewChatHandler(chatService *service.ChatService, accessService *service.AccessService, logger *slog.Logger) *ChatHandler {
	return &ChatHandler{
		chatService:   chatService,
		accessService: accessService,
		logger:        logger,
	}
}

// Chat 发送消息并以 SSE 流式返回回复
// 先校验参数再认证：缺少 threadId 时返回 400，不触碰会话
// @Summary 聊天
// @Tags 聊天
// @Accept json
// @Produce text/event-stream
// @Param body body service.ChatRequest true "聊天请求"
// @Router /api/chat [post]
func (h *ChatHandler) Chat(c *gin.Context) {
	// 1. 解析请求参数
	var req service.ChatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, MsgInvalidBody)
		return
	}
	req.ThreadID = strings.TrimSpace(req.ThreadID)
	if req.ThreadID == "" {
		response.BadRequest(c, MsgThreadIDRequired)
		return
	}

	// 2. 认证
	ec, ok := middleware.Authorize(c, h.accessService)
	if !ok {
		return
	}
	middleware.SetExecutionContext(c, ec)

	// 3. 流式转发，出错时还没有写出任何字节
	err := h.chatService.Stream(c.Request.Context(), ec, &req, c.Writer)
	if err == nil {
		return
	}
	h.logger.ErrorContext(c.Request.Context(), "chat failed", "error", err, "thread_id", req.ThreadID)
	switch {
	case errors.Is(err, service.ErrThreadCreate):
		response.InternalError(c, MsgThreadCreateFailed)
	case errors.Is(err, service.ErrMessageSave):
		response.InternalError(c, MsgMessageSaveFailed)
	default:
		response.InternalError(c, MsgGenerateFailed)
	}
}
