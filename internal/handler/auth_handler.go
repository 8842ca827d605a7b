package handler

import (
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"pocket-chat-server/internal/middleware"
	"pocket-chat-server/internal/service"
	"pocket-chat-server/pkg/response"
)

// AuthHandler 认证请求处理器
// 处理账号注册、登录、登出以及 Token 刷新
// 登录成功后同时写入 session_token Cookie，浏览器端无需自己携带 Authorization 头
type AuthHandler struct {
	authService  *service.AuthService
	cookieSecure bool
}

// NewAuthHandler 创建 AuthHandler 实例
func NewAuthHandler(authService *service.AuthService, cookieSecure bool) *AuthHandler {
	return &AuthHandler{
		authService:  authService,
		cookieSecure: cookieSecure,
	}
}

// Register 账号注册
// @Summary 账号注册
// @Tags 认证
// @Accept json
// @Produce json
// @Param body body service.RegisterRequest true "注册信息"
// @Success 201 {object} service.RegisterResponse
// @Router /api/auth/register [post]
func (h *AuthHandler) Register(c *gin.Context) {
	// 1. 解析请求参数
	var req service.RegisterRequest
	// ShouldBindJSON 会自动验证 binding 标签中的规则
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, MsgInvalidBody)
		return
	}

	// 2. 调用服务层处理注册
	result, err := h.authService.Register(c.Request.Context(), &req)
	if err != nil {
		if errors.Is(err, service.ErrEmailExists) {
			response.Conflict(c, "Email already registered")
			return
		}
		_ = c.Error(err)
		response.InternalError(c, "Failed to register")
		return
	}

	response.Created(c, result)
}

// Login 账号登录
// @Summary 账号登录
// @Tags 认证
// @Accept json
// @Produce json
// @Param body body service.LoginRequest true "登录信息"
// @Success 200 {object} service.LoginResponse
// @Router /api/auth/login [post]
func (h *AuthHandler) Login(c *gin.Context) {
	var req service.LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, MsgInvalidBody)
		return
	}

	result, err := h.authService.Login(c.Request.Context(), &req)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrAccountNotFound), errors.Is(err, service.ErrPasswordWrong):
			// 不区分账号不存在和密码错误
			response.Error(c, http.StatusUnauthorized, "Invalid email or password")
		case errors.Is(err, service.ErrAccountDisabled):
			response.Forbidden(c, "Account disabled")
		default:
			_ = c.Error(err)
			response.InternalError(c, "Failed to login")
		}
		return
	}

	setSessionCookie(c, result.AccessToken, int(result.ExpiresIn), h.cookieSecure)
	response.Success(c, result)
}

// Logout 登出
// 将当前 Token 加入黑名单并清除 Cookie，请求体可选携带 Refresh Token
// @Summary 登出
// @Tags 认证
// @Accept json
// @Produce json
// @Param body body service.LogoutRequest false "Refresh Token"
// @Router /api/auth/logout [post]
func (h *AuthHandler) Logout(c *gin.Context) {
	ec := middleware.GetExecutionContext(c)

	var req service.LogoutRequest
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		response.BadRequest(c, MsgInvalidBody)
		return
	}

	if err := h.authService.Logout(c.Request.Context(), ec, &req); err != nil {
		_ = c.Error(err)
		response.InternalError(c, "Failed to logout")
		return
	}

	setSessionCookie(c, "", -1, h.cookieSecure)
	response.OK(c)
}

// RefreshToken 刷新 Token
// @Summary 刷新 Token
// @Tags 认证
// @Accept json
// @Produce json
// @Param body body service.RefreshTokenRequest true "Refresh Token"
// @Success 200 {object} service.LoginResponse
// @Router /api/auth/refresh [post]
func (h *AuthHandler) RefreshToken(c *gin.Context) {
	var req service.RefreshTokenRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, MsgInvalidBody)
		return
	}

	result, err := h.authService.RefreshToken(c.Request.Context(), req.RefreshToken)
	if err != nil {
		if errors.Is(err, service.ErrAccountDisabled) {
			response.Forbidden(c, "Account disabled")
			return
		}
		// Refresh Token 无效、已过期或账号已删除
		response.Unauthorized(c)
		return
	}

	setSessionCookie(c, result.AccessToken, int(result.ExpiresIn), h.cookieSecure)
	response.Success(c, result)
}

// Session 当前会话信息
// @Summary 当前会话
// @Tags 认证
// @Produce json
// @Success 200 {object} service.SessionResponse
// @Router /api/auth/session [get]
func (h *AuthHandler) Session(c *gin.Context) {
	response.Success(c, h.authService.Session(middleware.GetExecutionContext(c)))
}

// setSessionCookie 写入或清除会话 Cookie
// maxAge < 0 表示删除
func setSessionCookie(c *gin.Context, token string, maxAge int, secure bool) {
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(service.SessionCookieName, token, maxAge, "/", "", secure, true)
}
