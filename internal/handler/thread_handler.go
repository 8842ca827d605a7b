package handler

import (
	"errors"

	"github.com/gin-gonic/gin"

	"pocket-chat-server/internal/middleware"
	"pocket-chat-server/internal/service"
	"pocket-chat-server/pkg/response"
)

// ThreadHandler 会话请求处理器
// 路由经过 SessionMiddleware，执行上下文一定存在
type ThreadHandler struct {
	threadService *service.ThreadService
}

// NewThreadHandler 创建 ThreadHandler 实例
func NewThreadHandler(threadService *service.ThreadService) *ThreadHandler {
	return &ThreadHandler{
		threadService: threadService,
	}
}

// CreateThread 创建空会话
// @Summary 创建会话
// @Tags 会话
// @Produce json
// @Success 200 {object} map[string]string "{threadId}"
// @Router /api/chat/threads [post]
func (h *ThreadHandler) CreateThread(c *gin.Context) {
	ec := middleware.GetExecutionContext(c)

	thread, err := h.threadService.CreateThread(c.Request.Context(), ec, "")
	if err != nil {
		_ = c.Error(err)
		response.InternalError(c, MsgThreadCreateFailed)
		return
	}

	response.Success(c, gin.H{"threadId": thread.ID})
}

// ListThreads 获取会话列表
// 按更新时间倒序，其次按创建时间倒序
// @Summary 会话列表
// @Tags 会话
// @Produce json
// @Router /api/chat/threads [get]
func (h *ThreadHandler) ListThreads(c *gin.Context) {
	ec := middleware.GetExecutionContext(c)

	threads, err := h.threadService.ListThreads(c.Request.Context(), ec)
	if err != nil {
		_ = c.Error(err)
		response.InternalError(c, MsgThreadListFailed)
		return
	}

	response.Success(c, gin.H{"threads": threads})
}

// ListMessages 获取会话的消息
// @Summary 消息列表
// @Tags 会话
// @Produce json
// @Param id path string true "会话ID"
// @Router /api/chat/threads/{id}/messages [get]
func (h *ThreadHandler) ListMessages(c *gin.Context) {
	ec := middleware.GetExecutionContext(c)

	messages, err := h.threadService.ListMessages(c.Request.Context(), ec, c.Param("id"))
	if err != nil {
		if errors.Is(err, service.ErrThreadNotFound) {
			response.NotFound(c, MsgThreadNotFound)
			return
		}
		_ = c.Error(err)
		response.InternalError(c, MsgMessageListFailed)
		return
	}

	response.Success(c, gin.H{"messages": messages})
}

// RenameThreadRequest 修改标题请求
type RenameThreadRequest struct {
	Title string `json:"title"`
}

// RenameThread 修改会话标题
// @Summary 修改标题
// @Tags 会话
// @Accept json
// @Produce json
// @Param id path string true "会话ID"
// @Param body body RenameThreadRequest true "新标题"
// @Router /api/chat/threads/{id} [patch]
func (h *ThreadHandler) RenameThread(c *gin.Context) {
	ec := middleware.GetExecutionContext(c)

	var req RenameThreadRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, MsgInvalidBody)
		return
	}

	err := h.threadService.RenameThread(c.Request.Context(), ec, c.Param("id"), req.Title)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrTitleRequired):
			response.BadRequest(c, MsgTitleRequired)
		case errors.Is(err, service.ErrThreadNotFound):
			response.NotFound(c, MsgThreadNotFound)
		default:
			_ = c.Error(err)
			response.InternalError(c, MsgThreadRenameFailed)
		}
		return
	}

	response.OK(c)
}

// DeleteThread 删除会话及其消息
// @Summary 删除会话
// @Tags 会话
// @Produce json
// @Param id path string true "会话ID"
// @Router /api/chat/threads/{id} [delete]
func (h *ThreadHandler) DeleteThread(c *gin.Context) {
	ec := middleware.GetExecutionContext(c)

	err := h.threadService.DeleteThread(c.Request.Context(), ec, c.Param("id"))
	if err != nil {
		if errors.Is(err, service.ErrThreadNotFound) {
			response.NotFound(c, MsgThreadNotFound)
			return
		}
		_ = c.Error(err)
		response.InternalError(c, MsgThreadDeleteFailed)
		return
	}

	response.OK(c)
}
