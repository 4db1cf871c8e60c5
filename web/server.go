package web

import (
	"context"
	"net/http"

	"filechat/config"
	"filechat/database"
	"filechat/web/handlers"
	"filechat/web/middleware"
	"filechat/web/services"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type Server struct {
	router      *gin.Engine
	store       *database.PostgresStore
	chats       *services.ChatService
	files       *services.FileService
	rateLimiter *middleware.UserRateLimiter
	logger      *zap.Logger
	config      *config.Config
}

func NewServer(
	store *database.PostgresStore,
	chats *services.ChatService,
	files *services.FileService,
	logger *zap.Logger,
	config *config.Config,
) *Server {
	// Set Gin mode based on environment
	gin.SetMode(gin.ReleaseMode)

	router := gin.New()

	// Add middleware
	router.Use(gin.Recovery())
	router.Use(func(c *gin.Context) {
		// Add logger to context
		c.Set("logger", logger)
		c.Next()
	})

	rateLimiter := middleware.NewUserRateLimiter(middleware.RateLimiterConfig{
		MessagesPerMinute: config.RateLimitMessagesPerMin,
		FilesPerHour:      config.RateLimitFilesPerHour,
		BurstSize:         config.RateLimitBurstSize,
		CleanupInterval:   config.CleanupInterval,
	}, logger)

	server := &Server{
		router:      router,
		store:       store,
		chats:       chats,
		files:       files,
		rateLimiter: rateLimiter,
		logger:      logger,
		config:      config,
	}

	server.setupRoutes()
	return server
}

func (s *Server) setupRoutes() {
	healthHandler := handlers.NewHealthHandler(s.store, s.logger)
	chatHandler := handlers.NewChatHandler(s.chats, s.logger)
	fileHandler := handlers.NewFileHandler(s.files, s.config.MaxUploadMB, s.logger)

	s.router.GET("/health", healthHandler.Check)

	api := s.router.Group("/api")
	api.Use(middleware.AuthMiddleware(s.config))

	api.GET("/chats", chatHandler.List)
	api.POST("/chats", chatHandler.Create)
	api.GET("/chats/:chatID", chatHandler.Get)
	api.PATCH("/chats/:chatID", chatHandler.Rename)
	api.DELETE("/chats/:chatID", chatHandler.Delete)
	api.POST("/chats/:chatID/messages",
		middleware.RateLimitMiddleware(s.rateLimiter, "message"),
		chatHandler.SendMessage)

	api.GET("/files", fileHandler.List)
	api.GET("/files/:fileID", fileHandler.Get)
	api.DELETE("/files/:fileID", fileHandler.Delete)
	api.POST("/files",
		middleware.RateLimitMiddleware(s.rateLimiter, "file"),
		fileHandler.Upload)
}

func (s *Server) Start(ctx context.Context, addr string) error {
	s.logger.Info("Starting web server", zap.String("address", addr))

	srv := &http.Server{
		Addr:    addr,
		Handler: s.router,
	}

	// Start server in a goroutine
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			s.logger.Error("Web server failed to start", zap.Error(err))
		}
	}()

	// Wait for context cancellation
	<-ctx.Done()

	s.logger.Info("Shutting down web server")
	s.rateLimiter.Stop()
	return srv.Shutdown(context.Background())
}
