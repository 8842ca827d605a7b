package handler

import (
	"errors"

	"github.com/gin-gonic/gin"

	"pocket-chat-server/internal/middleware"
	"pocket-chat-server/internal/service"
	"pocket-chat-server/pkg/response"
)

// UserHandler 用户请求处理器
type UserHandler struct {
	userService *service.UserService
}

// NewUserHandler 创建 UserHandler 实例
func NewUserHandler(userService *service.UserService) *UserHandler {
	return &UserHandler{
		userService: userService,
	}
}

// GetProfile 获取当前用户资料
// @Summary 获取当前用户资料
// @Tags 用户
// @Produce json
// @Success 200 {object} model.Account
// @Router /api/users/me [get]
func (h *UserHandler) GetProfile(c *gin.Context) {
	ec := middleware.GetExecutionContext(c)

	account, err := h.userService.GetProfile(c.Request.Context(), ec.UserID)
	if err != nil {
		if errors.Is(err, service.ErrAccountNotFound) {
			response.NotFound(c, "Account not found")
			return
		}
		_ = c.Error(err)
		response.InternalError(c, "Failed to get profile")
		return
	}

	response.Success(c, account)
}

// UpdateProfile 更新当前用户资料
// @Summary 更新用户资料
// @Tags 用户
// @Accept json
// @Produce json
// @Param body body service.UpdateProfileRequest true "要更新的字段"
// @Success 200 {object} model.Account
// @Router /api/users/me [put]
func (h *UserHandler) UpdateProfile(c *gin.Context) {
	ec := middleware.GetExecutionContext(c)

	var req service.UpdateProfileRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, MsgInvalidBody)
		return
	}

	account, err := h.userService.UpdateProfile(c.Request.Context(), ec.UserID, &req)
	if err != nil {
		if errors.Is(err, service.ErrAccountNotFound) {
			response.NotFound(c, "Account not found")
			return
		}
		_ = c.Error(err)
		response.InternalError(c, "Failed to update profile")
		return
	}

	response.Success(c, account)
}

// ChangePassword 修改密码
// @Summary 修改密码
// @Tags 用户
// @Accept json
// @Produce json
// @Param body body service.ChangePasswordRequest true "新旧密码"
// @Router /api/users/me/password [put]
func (h *UserHandler) ChangePassword(c *gin.Context) {
	ec := middleware.GetExecutionContext(c)

	var req service.ChangePasswordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, MsgInvalidBody)
		return
	}

	if err := h.userService.ChangePassword(c.Request.Context(), ec.UserID, &req); err != nil {
		switch {
		case errors.Is(err, service.ErrPasswordWrong):
			response.BadRequest(c, "Old password is incorrect")
		case errors.Is(err, service.ErrAccountNotFound):
			response.NotFound(c, "Account not found")
		default:
			_ = c.Error(err)
			response.InternalError(c, "Failed to change password")
		}
		return
	}

	response.OK(c)
}
