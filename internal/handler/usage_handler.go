package handler

import (
	"github.com/gin-gonic/gin"

	"pocket-chat-server/internal/middleware"
	"pocket-chat-server/internal/service"
	"pocket-chat-server/pkg/response"
)

// UsageHandler 用量请求处理器
type UsageHandler struct {
	usageService *service.UsageService
}

// NewUsageHandler 创建 UsageHandler 实例
func NewUsageHandler(usageService *service.UsageService) *UsageHandler {
	return &UsageHandler{usageService: usageService}
}

// Summary 当前组织范围的用量汇总
// @Summary 用量汇总
// @Tags 用量
// @Produce json
// @Success 200 {object} repository.UsageSummary
// @Router /api/usage [get]
func (h *UsageHandler) Summary(c *gin.Context) {
	ec := middleware.GetExecutionContext(c)

	summary, err := h.usageService.Summary(c.Request.Context(), ec)
	if err != nil {
		_ = c.Error(err)
		response.InternalError(c, "Failed to get usage")
		return
	}

	response.Success(c, summary)
}
