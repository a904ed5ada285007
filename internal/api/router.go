package api

import (
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/tanmayk/relaychat/internal/api/assistant"
	"github.com/tanmayk/relaychat/internal/api/chats"
	"github.com/tanmayk/relaychat/internal/api/middleware"
	"github.com/tanmayk/relaychat/internal/service"
)

// RouterConfig holds configuration for the router
type RouterConfig struct {
	AllowOrigins []string
	MaxBodyBytes int64
}

// SetupRouter sets up the Gin router
func SetupRouter(
	chatService *service.ChatService,
	assistantService *service.AssistantService,
	cfg RouterConfig,
	logger *zap.Logger,
) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middleware.RequestLogger(logger))
	r.Use(middleware.CORS(cfg.AllowOrigins))
	r.Use(middleware.BodyLimit(cfg.MaxBodyBytes))

	// Health check
	r.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})

	// Chat registry API
	chatsHandler := chats.NewHandler(chatService, logger)
	chatsGroup := r.Group("/api/chats")
	chatsHandler.RegisterRoutes(chatsGroup)

	// Assistant streaming API
	assistantHandler := assistant.NewHandler(assistantService, logger)
	botGroup := r.Group("/api/bot")
	assistantHandler.RegisterRoutes(botGroup)

	return r
}
