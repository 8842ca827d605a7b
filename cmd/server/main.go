// Package main 是服务端的入口点
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"pocket-chat-server/internal/agent"
	"pocket-chat-server/internal/cache"
	"pocket-chat-server/internal/config"
	"pocket-chat-server/internal/handler"
	"pocket-chat-server/internal/middleware"
	"pocket-chat-server/internal/mylog"
	"pocket-chat-server/internal/repository"
	"pocket-chat-server/internal/service"
	"pocket-chat-server/internal/websocket"
	"pocket-chat-server/pkg/jwt"
)

func main() {
	// 加载配置
	cfg, err := config.Load("./configs")
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := mylog.NewLogger(cfg.Log.Level, cfg.Log.Format)
	slog.SetDefault(logger)

	if err := run(cfg, logger); err != nil {
		logger.Error("server exited with error", "error", err)
		os.Exit(1)
	}
	logger.Info("server exited")
}

func run(cfg *config.Config, logger *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// 初始化数据库
	db, err := repository.Open(&cfg.Database, cfg.Server.Mode == "debug")
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	if cfg.Database.AutoMigrate {
		if err := repository.AutoMigrate(db); err != nil {
			return fmt.Errorf("migrate database: %w", err)
		}
	}

	// 初始化 JWT 服务
	jwtService := jwt.NewJWTService(cfg.JWT.Secret, cfg.JWT.AccessExpire, cfg.JWT.RefreshExpire).
		WithDatastore(cfg.JWT.DatastoreSecret, cfg.JWT.DatastoreExpire)

	// 初始化 WebSocket Hub
	wsHub := websocket.NewHub(logger)
	go wsHub.Run(ctx)

	// Redis 可选：未配置时单实例运行，事件直接交给本地 Hub，登出不做黑名单
	var (
		blacklist  service.TokenBlacklist
		publisher  service.EventPublisher = wsHub
		redisCache *cache.RedisCache
	)
	if cfg.Redis.Host != "" {
		redisCache, err = cache.NewRedisCache(&cfg.Redis)
		if err != nil {
			return fmt.Errorf("connect redis: %w", err)
		}
		defer redisCache.Close()

		blacklist = redisCache
		publisher = redisCache

		pubsub := redisCache.SubscribeThreadEvents(ctx)
		defer pubsub.Close()
		go wsHub.Subscribe(ctx, pubsub)
	} else {
		logger.Warn("redis not configured, running in single instance mode")
	}

	// 初始化模型
	ag, err := agent.New(&cfg.AI)
	if err != nil {
		return err
	}

	// 初始化 Repository 层
	accountRepo := repository.NewAccountRepository(db)
	userRepo := repository.NewUserRepository(db)
	orgRepo := repository.NewOrganizationRepository(db)
	datastore := repository.NewDatastore(db, jwtService)

	// 初始化 Service 层
	usageService, err := service.NewUsageService(cfg.Billing.PricePer1KChars)
	if err != nil {
		return err
	}
	accessService := service.NewAccessService(jwtService, datastore, blacklist, logger)
	authService := service.NewAuthService(accountRepo, orgRepo, blacklist, jwtService)
	userService := service.NewUserService(accountRepo, userRepo)
	orgService := service.NewOrganizationService(orgRepo, jwtService)
	threadService := service.NewThreadService(usageService, publisher, logger)
	chatService := service.NewChatService(threadService, ag, cfg.AI.SystemPrompt, cfg.AI.HistoryMaxLength, logger)

	// 初始化 Handler 层
	hs := &routeHandlers{
		auth:   handler.NewAuthHandler(authService, cfg.Server.CookieSecure),
		user:   handler.NewUserHandler(userService),
		org:    handler.NewOrganizationHandler(orgService, cfg.Server.CookieSecure),
		chat:   handler.NewChatHandler(chatService, accessService, logger),
		thread: handler.NewThreadHandler(threadService),
		usage:  handler.NewUsageHandler(usageService),
		ws:     websocket.NewHandler(wsHub, accessService, cfg.Server.CORS, logger),
	}

	// 设置 Gin 模式
	if cfg.Server.Mode == "release" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(middleware.RecoveryMiddleware(logger))
	router.Use(middleware.LoggerMiddleware(logger))
	router.Use(middleware.CORSMiddleware(middleware.DefaultCORSConfig(cfg.Server.CORS...)))

	registerRoutes(router, middleware.SessionMiddleware(accessService), hs, redisCache)

	// 创建 HTTP 服务器
	// WriteTimeout 默认为 0，SSE 回复可能持续较长时间
	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("server starting", "addr", server.Addr, "ai_provider", ag.Name())
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logger.Info("shutting down server")

	// 优雅关闭，进行中的 SSE 回复最多等待 10 秒
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}

	if sqlDB, err := db.DB(); err == nil {
		_ = sqlDB.Close()
	}
	return nil
}

// routeHandlers 所有 HTTP 处理器
type routeHandlers struct {
	auth   *handler.AuthHandler
	user   *handler.UserHandler
	org    *handler.OrganizationHandler
	chat   *handler.ChatHandler
	thread *handler.ThreadHandler
	usage  *handler.UsageHandler
	ws     *websocket.Handler
}

// registerRoutes 注册所有路由
// redisCache 为 nil 时健康检查不检查 Redis
func registerRoutes(r *gin.Engine, session gin.HandlerFunc, h *routeHandlers, redisCache *cache.RedisCache) {
	// 健康检查
	r.GET("/health", func(c *gin.Context) {
		if redisCache != nil {
			if err := redisCache.Ping(c.Request.Context()); err != nil {
				c.JSON(http.StatusServiceUnavailable, gin.H{"status": "degraded", "redis": err.Error()})
				return
			}
		}
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	api := r.Group("/api")

	// 认证路由
	auth := api.Group("/auth")
	{
		auth.POST("/register", h.auth.Register)
		auth.POST("/login", h.auth.Login)
		auth.POST("/refresh", h.auth.RefreshToken)
		auth.POST("/logout", session, h.auth.Logout)
		auth.GET("/session", session, h.auth.Session)
	}

	// 用户路由
	users := api.Group("/users", session)
	{
		users.GET("/me", h.user.GetProfile)
		users.PUT("/me", h.user.UpdateProfile)
		users.PUT("/me/password", h.user.ChangePassword)
	}

	// 组织路由
	orgs := api.Group("/organizations", session)
	{
		orgs.POST("", h.org.Create)
		orgs.GET("", h.org.List)
		orgs.PUT("/active", h.org.SwitchActive)
	}

	// 聊天路由
	// POST /api/chat 先校验参数再认证，不挂会话中间件
	api.POST("/chat", h.chat.Chat)
	threads := api.Group("/chat/threads", session)
	{
		threads.POST("", h.thread.CreateThread)
		threads.GET("", h.thread.ListThreads)
		threads.GET("/:id/messages", h.thread.ListMessages)
		threads.PATCH("/:id", h.thread.RenameThread)
		threads.DELETE("/:id", h.thread.DeleteThread)
	}

	api.GET("/usage", session, h.usage.Summary)

	// WebSocket 路由
	h.ws.RegisterRoutes(r)
}
