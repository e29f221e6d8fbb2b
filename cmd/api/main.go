package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/websocket/v2"
	"go.uber.org/zap"

	"github.com/duduar89/2.1-Procesamiento-OCR-Facturas-sub001/internal/api/handlers"
	"github.com/duduar89/2.1-Procesamiento-OCR-Facturas-sub001/internal/app"
	"github.com/duduar89/2.1-Procesamiento-OCR-Facturas-sub001/internal/metrics"
	"github.com/duduar89/2.1-Procesamiento-OCR-Facturas-sub001/internal/middleware/ratelimit"
	"github.com/duduar89/2.1-Procesamiento-OCR-Facturas-sub001/internal/middleware/security"
	"github.com/duduar89/2.1-Procesamiento-OCR-Facturas-sub001/internal/middleware/validation"
	"github.com/duduar89/2.1-Procesamiento-OCR-Facturas-sub001/pkg/config"
	appLogger "github.com/duduar89/2.1-Procesamiento-OCR-Facturas-sub001/pkg/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		os.Exit(1)
	}

	err = appLogger.Init(cfg.Logging.Level, cfg.Logging.Format, cfg.Logging.OutputPath)
	if err != nil {
		fmt.Printf("Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer appLogger.Sync()

	appLogger.Info("Starting purchasing assistant API server")

	if cfg.Metrics.Enabled {
		metrics.Init()
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	a, err := app.Build(ctx, cfg)
	cancel()
	if err != nil {
		appLogger.Fatal("Failed to wire application", zap.Error(err))
	}
	defer a.Close()

	checks := map[string]handlers.Pinger{
		"postgres": a.Postgres,
		"sqlite":   a.SQLite,
	}
	if a.Cache != nil {
		checks["redis"] = a.Cache
	}

	queryHandler := handlers.NewQueryHandler(a.Assistant)
	wsHandler := handlers.NewWebSocketHandler(a.Assistant, time.Duration(cfg.Server.WriteTimeout)*time.Second)
	healthHandler := handlers.NewHealthHandler(checks)

	limiter := ratelimit.New(ratelimit.Config{
		MaxRequestsPerMinute: cfg.Server.RateLimitPerMin,
		Logger:               appLogger.GetLogger(),
	})
	defer limiter.Stop()

	fiberApp := fiber.New(fiber.Config{
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
		BodyLimit:    cfg.Server.BodyLimit,
	})

	fiberApp.Use(recover.New())
	fiberApp.Use(logger.New())
	fiberApp.Use(cors.New(cors.Config{
		AllowOrigins: cfg.Server.AllowedOrigins,
		AllowHeaders: "Origin, Content-Type, Accept, Authorization, " + ratelimit.TenantHeader,
		AllowMethods: "GET, POST, OPTIONS",
	}))
	fiberApp.Use(security.HeadersMiddleware(security.HeadersConfig{
		AllowedOrigins: strings.Split(cfg.Server.AllowedOrigins, ","),
		IsDevelopment:  cfg.IsDevelopment(),
	}))

	if cfg.Metrics.Enabled {
		fiberApp.Get("/metrics", metrics.MetricsHandler())
	}

	api := fiberApp.Group("/api/v1")

	api.Get("/health", healthHandler.Health)
	api.Get("/ready", healthHandler.Ready)

	api.Use("/query", limiter.Middleware(), validation.Middleware(validation.Config{
		Logger: appLogger.GetLogger(),
	}))
	api.Post("/query", queryHandler.HandleQuery)
	api.Post("/query/sql", queryHandler.HandleSQLQuery)
	api.Get("/query/history", queryHandler.GetQueryHistory)
	api.Get("/query/report", queryHandler.GetQualityReport)
	api.Post("/query/feedback", queryHandler.SubmitFeedback)

	fiberApp.Use("/ws", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})
	fiberApp.Get("/ws", websocket.New(wsHandler.HandleConnection))

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	appLogger.Info("Server starting", zap.String("address", addr))

	go func() {
		if err := fiberApp.Listen(addr); err != nil {
			appLogger.Fatal("Server failed to start", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	appLogger.Info("Server shutting down gracefully...")
	if err := fiberApp.ShutdownWithTimeout(10 * time.Second); err != nil {
		appLogger.Error("Server shutdown failed", zap.Error(err))
	}
	appLogger.Info("Server stopped")
}
