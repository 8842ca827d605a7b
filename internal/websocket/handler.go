package websocket

import (
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/samber/lo"

	"pocket-chat-server/internal/service"
	"pocket-chat-server/pkg/response"
)

// Handler 处理 WebSocket 连接
type Handler struct {
	hub      *Hub
	access   *service.AccessService
	upgrader websocket.Upgrader
	logger   *slog.Logger
}

// NewHandler 创建 WebSocket Handler
// 参数:
//   - hub: 连接管理器
//   - access: 会话校验服务
//   - allowedOrigins: 允许的来源，包含 "*" 或为空时不限制
//   - logger: 日志器
func NewHandler(hub *Hub, access *service.AccessService, allowedOrigins []string, logger *slog.Logger) *Handler {
	anyOrigin := len(allowedOrigins) == 0 || lo.Contains(allowedOrigins, "*")
	return &Handler{
		hub:    hub,
		access: access,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				origin := r.Header.Get("Origin")
				return anyOrigin || origin == "" || lo.Contains(allowedOrigins, origin)
			},
		},
		logger: logger,
	}
}

// HandleThreadsWS 订阅当前用户的会话事件
// 路由: GET /ws/threads
// 认证: session_token Cookie、Authorization 头或 token 查询参数
func (h *Handler) HandleThreadsWS(c *gin.Context) {
	rc := service.NewRequestContext(c.Request)
	if rc.SessionToken == "" {
		// 非浏览器客户端无法设置 Cookie 时使用查询参数
		rc.SessionToken = c.Query("token")
	}

	ec, err := h.access.Authorize(c.Request.Context(), rc)
	if err != nil {
		response.Unauthorized(c)
		return
	}

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		// Upgrade 已经写出错误响应
		h.logger.Warn("websocket upgrade failed", "error", err)
		return
	}

	client := NewClient(h.hub, conn, ec.UserID, ec.OrgScopeID, h.logger)
	h.hub.Register(client)

	go client.WritePump()
	go client.ReadPump()
}

// RegisterRoutes 注册 WebSocket 路由
func (h *Handler) RegisterRoutes(r *gin.Engine) {
	// WebSocket 路由不经过会话中间件，认证在升级前完成
	ws := r.Group("/ws")
	{
		ws.GET("/threads", h.HandleThreadsWS)
	}
}
