package main

import (
	"context"
	"net"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/compress"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/recover"

	"github.com/minidrive/minidrive/internal/blob"
	"github.com/minidrive/minidrive/internal/config"
	"github.com/minidrive/minidrive/internal/handler"
	"github.com/minidrive/minidrive/internal/repository"
	"github.com/minidrive/minidrive/internal/service"
	"github.com/minidrive/minidrive/pkg/database"
	"github.com/minidrive/minidrive/pkg/logger"
)

func main() {
	logLevel := os.Getenv("LOG_LEVEL")
	if logLevel == "" {
		logLevel = "info"
	}
	logFormat := os.Getenv("LOG_FORMAT")
	if logFormat == "" {
		logFormat = "json"
	}
	logger.Init(logger.Config{
		Level:  logLevel,
		Format: logFormat,
		Output: os.Stdout,
	})

	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		logger.Fatal().Err(err).Msg("Configuration error")
	}

	logger.Info().
		Str("bind_address", cfg.Server.BindAddress).
		Str("port", cfg.Server.Port).
		Str("storage_backend", cfg.Storage.Backend).
		Msg("Starting minidrive server")

	db, err := database.Initialize(cfg.Database.Path)
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to initialize database")
	}
	if err := database.InitSchema(db); err != nil {
		logger.Fatal().Err(err).Msg("Failed to initialize schema")
	}
	logger.Info().Str("path", cfg.Database.Path).Msg("Database initialized")

	// Blob backend
	var store blob.Store
	var fsStoragePath string
	switch cfg.Storage.Backend {
	case "s3":
		s3Store, err := blob.NewS3Store(context.Background(), cfg.Storage.S3)
		if err != nil {
			logger.Fatal().Err(err).Msg("Failed to initialize S3 blob store")
		}
		store = s3Store
		logger.Info().Str("bucket", cfg.Storage.S3.Bucket).Msg("S3 blob store initialized")
	default:
		fsStore, err := blob.NewFSStore(cfg.Storage.Path)
		if err != nil {
			logger.Fatal().Err(err).Msg("Failed to initialize filesystem blob store")
		}
		store = fsStore
		fsStoragePath = cfg.Storage.Path
		logger.Info().Str("path", cfg.Storage.Path).Msg("Filesystem blob store initialized")
	}

	// Repositories
	userRepo := repository.NewUserRepository(db)
	fileRepo := repository.NewFileRepository(db)
	folderRepo := repository.NewFolderRepository(db)

	// Services
	authSvc := service.NewAuthService(userRepo, cfg.Auth.JWTSecret,
		time.Duration(cfg.Auth.TokenTTLMinutes)*time.Minute, cfg.Quota.DefaultLimitBytes)
	gatewaySvc := service.NewGatewayService(fileRepo, userRepo, store, cfg.Quota.MaxFileSizeBytes)
	linkSvc := service.NewLinkService(fileRepo, cfg.Share.TokenSecret,
		time.Duration(cfg.Share.MaxTTLMinutes)*time.Minute)
	metricsSvc := service.NewMetricsService(userRepo, fileRepo)
	folderSvc := service.NewFolderService(folderRepo, fileRepo)

	// Rebuild quota counters before serving traffic so reservations leaked by
	// a previous crash do not linger.
	if err := gatewaySvc.ReconcileQuotaUsage(); err != nil {
		logger.Warn().Err(err).Msg("Failed to reconcile quota usage at startup")
	}
	updateStorageGauge(metricsSvc)

	// Handlers
	authHandler := handler.NewAuthHandler(authSvc, gatewaySvc)
	fileHandler := handler.NewFileHandler(gatewaySvc, linkSvc, cfg.Server.PublicBaseURL)
	shareHandler := handler.NewShareHandler(linkSvc, gatewaySvc)
	adminHandler := handler.NewAdminHandler(metricsSvc, gatewaySvc)
	folderHandler := handler.NewFolderHandler(folderSvc)

	app := fiber.New(fiber.Config{
		BodyLimit:               int(cfg.Quota.MaxFileSizeBytes) + 1024*1024,
		ReadTimeout:             10 * time.Second,
		WriteTimeout:            30 * time.Second,
		IdleTimeout:             60 * time.Second,
		ProxyHeader:             fiber.HeaderXForwardedFor,
		EnableTrustedProxyCheck: true,
		TrustedProxies:          cfg.Server.TrustedProxies,
		EnableIPValidation:      true,
		StreamRequestBody:       true,
	})

	// Middleware
	app.Use(recover.New())
	app.Use(compress.New(compress.Config{
		Level: compress.LevelDefault,
	}))
	app.Use(handler.SecurityHeadersMiddleware())
	app.Use(handler.RequestIDMiddleware())
	app.Use(handler.MetricsMiddleware())
	app.Use(cors.New(cors.Config{
		AllowOrigins:     cfg.Server.AllowOrigins,
		AllowHeaders:     "Origin, Content-Type, Accept, Authorization, X-Request-ID",
		AllowMethods:     "GET, POST, PUT, DELETE, OPTIONS",
		AllowCredentials: true,
		MaxAge:           3600,
	}))
	app.Use(logger.Middleware())

	api := app.Group("/api/v1")

	// Rate limiters: auth uses IP-only (runs before auth), file uses IP+UserID.
	// Backed by DB to persist counters across restarts and shared replicas.
	authRateLimiter := handler.NewPersistentRateLimiter(db, "auth", 10, 1*time.Minute)
	fileRateLimiter := handler.NewPersistentRateLimiterWithKey(db, "file", 60, 1*time.Minute, handler.IPAndUserKey)
	shareRateLimiter := handler.NewPersistentRateLimiter(db, "share", 30, 1*time.Minute)

	jsonBodyLimit := handler.BodyLimitMiddleware(1 * 1024 * 1024)

	// Auth routes
	auth := api.Group("/auth")
	auth.Post("/register", jsonBodyLimit, authRateLimiter.Middleware(), authHandler.Register)
	auth.Post("/login", jsonBodyLimit, authRateLimiter.Middleware(), authHandler.Login)
	auth.Get("/me", handler.AuthMiddleware(authSvc), authHandler.Me)
	auth.Get("/storage", handler.AuthMiddleware(authSvc), authHandler.Storage)

	// File routes
	files := api.Group("/files", handler.AuthMiddleware(authSvc))
	files.Post("/", fileRateLimiter.Middleware(), fileHandler.Upload)
	files.Get("/", fileHandler.List)
	files.Get("/:id", fileHandler.Get)
	files.Get("/:id/download", fileRateLimiter.Middleware(), fileHandler.Download)
	files.Delete("/:id", fileHandler.Delete)
	files.Post("/:id/share", jsonBodyLimit, fileHandler.CreateShare)
	files.Delete("/:id/share", fileHandler.RevokeShares)

	// Folder routes
	folders := api.Group("/folders", handler.AuthMiddleware(authSvc))
	folders.Post("/", jsonBodyLimit, folderHandler.Create)
	folders.Get("/", folderHandler.List)
	folders.Put("/:id", jsonBodyLimit, folderHandler.Rename)
	folders.Put("/:id/move", jsonBodyLimit, folderHandler.Move)
	folders.Delete("/:id", folderHandler.Delete)

	// Share routes (anonymous)
	shares := api.Group("/shares")
	shares.Get("/:token/info", shareRateLimiter.Middleware(), shareHandler.Info)
	shares.Get("/:token", shareRateLimiter.Middleware(), shareHandler.Download)

	// Admin routes
	admin := api.Group("/admin", handler.AuthMiddleware(authSvc), handler.AdminMiddleware(authSvc))
	admin.Get("/summary", adminHandler.Summary)
	admin.Get("/users", adminHandler.ListUsers)
	admin.Post("/reconcile", adminHandler.Reconcile)

	// Health checks
	healthHandler := handler.NewHealthHandler(db, store, fsStoragePath)
	app.Get("/health", healthHandler.Liveness)
	app.Get("/health/ready", healthHandler.Readiness)

	// Metrics endpoint
	metricsHandler := handler.NewMetricsHandler()
	if cfg.Observability.MetricsEnabled {
		if cfg.IsProduction {
			app.Get("/metrics", handler.BearerTokenMiddleware(cfg.Observability.MetricsToken), metricsHandler.Handler())
		} else {
			app.Get("/metrics", metricsHandler.Handler())
		}
	} else {
		logger.Info().Msg("Metrics endpoint disabled")
	}

	// Hourly reconciliation keeps the quota ledger honest against crashes and
	// keeps the storage gauge fresh.
	reconcileStop := make(chan struct{})
	go func() {
		ticker := time.NewTicker(1 * time.Hour)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				if err := gatewaySvc.ReconcileQuotaUsage(); err != nil {
					logger.Error().Err(err).Msg("Failed to reconcile quota usage")
				}
				updateStorageGauge(metricsSvc)
			case <-reconcileStop:
				return
			}
		}
	}()

	go func() {
		addr := net.JoinHostPort(cfg.Server.BindAddress, cfg.Server.Port)
		logger.Info().
			Str("address", addr).
			Bool("metrics_enabled", cfg.Observability.MetricsEnabled).
			Msg("HTTP server listening")
		if err := app.Listen(addr); err != nil {
			logger.Error().Err(err).Msg("Server stopped")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	sig := <-quit
	logger.Info().Str("signal", sig.String()).Msg("Received shutdown signal")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	logger.Info().Msg("Stopping background jobs...")
	close(reconcileStop)
	authRateLimiter.Stop()
	fileRateLimiter.Stop()
	shareRateLimiter.Stop()

	logger.Info().Msg("Shutting down HTTP server...")
	if err := app.ShutdownWithContext(ctx); err != nil {
		logger.Error().Err(err).Msg("Error during shutdown")
	}

	logger.Info().Msg("Closing database connection...")
	if err := db.Close(); err != nil {
		logger.Error().Err(err).Msg("Error closing database")
	}

	logger.Info().Msg("Server stopped gracefully")
}

func updateStorageGauge(metricsSvc *service.MetricsService) {
	total, err := metricsSvc.TotalBytes()
	if err != nil {
		logger.Warn().Err(err).Msg("Failed to compute total storage used")
		return
	}
	handler.UpdateStorageUsed(float64(total))
}
