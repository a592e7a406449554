package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"contact_hub/internal/config"
	"contact_hub/internal/database"
	"contact_hub/internal/domain"
	"contact_hub/internal/handler"
	"contact_hub/internal/metrics"
	"contact_hub/internal/middleware"
	"contact_hub/internal/realtime"
	"contact_hub/internal/service"
	"contact_hub/pkg/logger"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func main() {
	// Загрузка конфигурации
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	appLogger := logger.New(cfg.Log.Level)
	defer appLogger.Sync() //nolint:errcheck

	metrics.Register()

	startCtx, cancelStart := context.WithTimeout(context.Background(), 30*time.Second)
	storage, err := database.Open(startCtx, cfg, appLogger)
	if err != nil {
		cancelStart()
		appLogger.Fatal("Failed to open storage", "error", err)
	}
	defer storage.Close()

	if err := storage.Migrate(startCtx); err != nil {
		cancelStart()
		appLogger.Fatal("Failed to apply schema", "error", err)
	}
	cancelStart()

	hub := realtime.NewHub(appLogger)
	services := service.NewServices(storage.Repos, cfg, service.Deps{Notifier: hub}, appLogger)

	authMiddleware := middleware.NewAuthMiddleware(cfg.JWT.AdminSecret, cfg.JWT.Issuer, appLogger)
	rateLimitMiddleware := middleware.NewRateLimitMiddleware(services.RateLimit, appLogger)

	health := handler.NewHealthHandler(cfg.Storage.Driver, storage.Checks())
	handlers := handler.NewHandlers(services, hub, health, appLogger)

	router := setupRouter(handlers, authMiddleware, rateLimitMiddleware, cfg, appLogger)

	srv := &http.Server{
		Addr:         cfg.Addr(),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  60 * time.Second,
	}

	// Graceful shutdown
	go func() {
		appLogger.Info("Starting server", "addr", srv.Addr, "storage", cfg.Storage.Driver)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			appLogger.Fatal("Failed to start server", "error", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	appLogger.Info("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		appLogger.Error("Server forced to shutdown", "error", err)
	}

	appLogger.Info("Server exited")
}

func setupRouter(
	handlers *handler.Handlers,
	authMiddleware *middleware.AuthMiddleware,
	rateLimitMiddleware *middleware.RateLimitMiddleware,
	cfg *config.Config,
	log logger.Logger,
) *gin.Engine {
	if cfg.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.CORS())
	router.Use(middleware.RequestLogger(log))
	router.Use(middleware.ErrorHandler(log))

	router.GET("/health", handlers.Health.Check)
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	v1 := router.Group("/api/v1")
	{
		// Адаптеры каналов
		inbound := v1.Group("/inbound")
		inbound.Use(middleware.RequireInboundToken(cfg.Inbound.Token), rateLimitMiddleware.Limit(domain.RateLimitRule{
			Scope:  domain.RateLimitScopeInbound,
			Limit:  cfg.Inbound.RateLimit,
			Window: cfg.Inbound.RateWindow,
		}))
		{
			inbound.POST("/:channel", handlers.Inbound.Receive)
		}

		protected := v1.Group("")
		protected.Use(authMiddleware.RequireStaff())
		{
			contacts := protected.Group("/contacts")
			{
				contacts.POST("/lookup", handlers.Contact.Lookup)
				contacts.GET("/:id", handlers.Contact.GetByID)
				contacts.PATCH("/:id", handlers.Contact.Update)
				contacts.POST("/merge", authMiddleware.RequireRole(domain.StaffRoleAdmin), handlers.Contact.Merge)
			}

			conversations := protected.Group("/conversations")
			{
				conversations.GET("", handlers.Conversation.List)
				conversations.GET("/:id/messages", handlers.Conversation.Messages)
				conversations.POST("/:id/messages", handlers.Conversation.Send)
			}

			messages := protected.Group("/messages")
			{
				messages.GET("", handlers.Conversation.SearchMessages)
				messages.GET("/:id", handlers.Conversation.GetMessage)
			}
		}
	}

	router.GET("/ws/events", authMiddleware.RequireStaff(), handlers.WebSocket.HandleEvents)

	return router
}
