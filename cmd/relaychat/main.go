package main

import (
	"context"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/tanmayk/relaychat/internal/api"
	"github.com/tanmayk/relaychat/internal/config"
	"github.com/tanmayk/relaychat/internal/llm"
	"github.com/tanmayk/relaychat/internal/repository"
	"github.com/tanmayk/relaychat/internal/service"
)

var (
	configPath = flag.String("config", "", "Path to config file")
)

func main() {
	flag.Parse()

	// Load .env if present, then configuration
	_ = godotenv.Load()
	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// Initialize logger
	logger, err := zap.NewProduction()
	if err != nil {
		log.Fatalf("Failed to create logger: %v", err)
	}
	defer logger.Sync()

	// Connect to Postgres before accepting traffic
	db, err := repository.NewDB(&cfg.Database)
	if err != nil {
		logger.Fatal("Failed to initialize database", zap.Error(err))
	}

	// Initialize repositories
	chatRepo := repository.NewChatRepository(db)
	messageRepo := repository.NewMessageRepository(db)

	// Initialize inference backend client
	ollamaClient, err := llm.New(&cfg.Ollama, logger)
	if err != nil {
		logger.Fatal("Failed to initialize ollama client", zap.Error(err))
	}

	// Initialize services
	chatService := service.NewChatService(chatRepo, messageRepo, logger)
	assistantService := service.NewAssistantService(messageRepo, ollamaClient, logger)

	// Setup router
	router := api.SetupRouter(chatService, assistantService, api.RouterConfig{
		AllowOrigins: cfg.Server.AllowedOrigins,
		MaxBodyBytes: cfg.Server.MaxBodyBytes,
	}, logger)

	// Create HTTP server. No WriteTimeout: SSE responses outlive any fixed
	// deadline.
	srv := &http.Server{
		Addr:        cfg.Address(),
		Handler:     router,
		ReadTimeout: 30 * time.Second,
		IdleTimeout: 120 * time.Second,
	}

	// Start server in goroutine
	go func() {
		logger.Info("Starting relaychat server",
			zap.String("address", cfg.Address()),
			zap.String("ollama_host", cfg.Ollama.Host),
		)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down server...")

	// Graceful shutdown: stop accepting, drain in-flight requests, then
	// close the storage pool.
	ctx, cancel := context.WithTimeout(context.Background(),
		time.Duration(cfg.Server.ShutdownTimeout)*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Error("Server forced to shutdown", zap.Error(err))
	}

	if err := db.Close(); err != nil {
		logger.Error("Failed to close database", zap.Error(err))
	}

	logger.Info("Server exited")
}
