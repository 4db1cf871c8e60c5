package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"filechat/chatstate"
	"filechat/config"
	"filechat/database"
	"filechat/extract"
	"filechat/llmclient"
	"filechat/storage"
	"filechat/web"
	"filechat/web/services"
	"filechat/youtube"

	"go.uber.org/zap"
)

func main() {
	ctx := context.Background()

	// Initialize logger with default level to load config
	tempLogger, err := config.InitLogger("info")
	if err != nil {
		fmt.Printf("Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}

	// Load config (which includes log level setting)
	cfg := config.Load(tempLogger)

	// Re-initialize logger with configured level
	logger, err := config.InitLogger(cfg.LogLevel)
	if err != nil {
		fmt.Printf("Failed to re-initialize logger with configured level: %v\n", err)
		os.Exit(1)
	}
	defer config.Cleanup()

	store, err := database.NewPostgresStore(cfg.DatabaseURL)
	if err != nil {
		logger.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer store.Close()

	// --- Ensure Schema Exists ---
	if err := store.EnsureSchema(ctx); err != nil {
		logger.Fatal("Failed to ensure database schema", zap.Error(err))
	}

	objects, err := storage.NewObjectStore(cfg, logger)
	if err != nil {
		logger.Fatal("Failed to initialize object storage", zap.Error(err))
	}
	if err := objects.EnsureBucket(ctx); err != nil {
		logger.Fatal("Failed to ensure storage bucket", zap.Error(err))
	}

	llm, err := llmclient.New(cfg, logger)
	if err != nil {
		logger.Fatal("Failed to initialize LLM client", zap.Error(err))
	}

	retry := chatstate.RetryConfig{
		Attempts:    cfg.ReadRetryAttempts,
		Delay:       cfg.ReadRetryDelaySeconds,
		MaxDelay:    cfg.ReadRetryMaxSeconds,
		JitterRatio: cfg.ReadRetryJitterRatio,
	}
	chats, err := chatstate.New(store, retry, cfg.ChatCacheSize, logger)
	if err != nil {
		logger.Fatal("Failed to initialize chat cache", zap.Error(err))
	}

	extractor := extract.New(logger, cfg.MaxContextChars)
	youtubeClient := youtube.NewClient(cfg.YouTubeTimeout, logger)

	fileService := services.NewFileService(store, objects, extractor, youtubeClient, cfg.MaxUploadMB, logger)
	chatService := services.NewChatService(chats, fileService, llm, logger)

	// Create context that listens for interrupt signals
	ctx, cancel := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer cancel()

	// Initialize cleanup service and start background cleanup routine
	cleanupService := web.NewCleanupService(store, objects, logger)
	go web.StartFileCleanup(ctx, cfg, cleanupService, logger)

	// Initialize web server
	webServer := web.NewServer(store, chatService, fileService, logger, cfg)

	// Start web server
	port := fmt.Sprintf(":%d", cfg.WebPort)
	logger.Info("Starting FileChat web server", zap.String("port", port))
	if err := webServer.Start(ctx, port); err != nil {
		logger.Error("Web server error", zap.Error(err))
		os.Exit(1)
	}
}
