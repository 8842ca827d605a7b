// Package middleware 提供 HTTP 请求的中间件
// 包括会话认证、CORS 跨域、日志记录等
package middleware

import (
	"github.com/gin-gonic/gin"

	"pocket-chat-server/internal/service"
	"pocket-chat-server/pkg/response"
)

// execContextKey 执行上下文在 gin.Context 中的键
const execContextKey = "exec"

// SessionMiddleware 创建会话认证中间件
// 从 Authorization 头或 session_token Cookie 读取会话 Token，
// 校验通过后把执行上下文存入 gin.Context
// 参数:
//   - access: 会话校验服务
//
// 返回:
//   - gin.HandlerFunc: Gin 中间件函数
func SessionMiddleware(access *service.AccessService) gin.HandlerFunc {
	return func(c *gin.Context) {
		ec, ok := Authorize(c, access)
		if !ok {
			return
		}
		SetExecutionContext(c, ec)
		c.Next()
	}
}

// Authorize 校验当前请求的会话
// 失败时已经写出 401 并终止请求
// 需要先做参数校验再认证的处理器直接调用它
func Authorize(c *gin.Context, access *service.AccessService) (*service.ExecutionContext, bool) {
	ec, err := access.Authorize(c.Request.Context(), service.NewRequestContext(c.Request))
	if err != nil {
		// 不区分失败原因，统一返回 Unauthorized
		response.Unauthorized(c)
		c.Abort()
		return nil, false
	}
	return ec, true
}

// SetExecutionContext 把执行上下文存入 gin.Context
func SetExecutionContext(c *gin.Context, ec *service.ExecutionContext) {
	c.Set(execContextKey, ec)
}

// GetExecutionContext 从上下文获取执行上下文
// 返回:
//   - *service.ExecutionContext: 未经过 SessionMiddleware 时返回 nil
func GetExecutionContext(c *gin.Context) *service.ExecutionContext {
	v, exists := c.Get(execContextKey)
	if !exists {
		return nil
	}
	ec, _ := v.(*service.ExecutionContext)
	return ec
}
