package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/compress"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/limiter"
	fiberlogger "github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"go.uber.org/zap"

	"trendcast-api/internal/app"
	"trendcast-api/internal/config"
	"trendcast-api/internal/handlers"
	"trendcast-api/internal/logger"
	"trendcast-api/internal/scheduler"
)

func main() {
	// Load configuration
	cfg, err := config.LoadFromEnv()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	appLogger, err := logger.NewLoggerWithLevel(cfg.Log.Level)
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer func() { _ = appLogger.Sync() }()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Initialize services
	services, err := app.New(ctx, cfg, appLogger)
	if err != nil {
		appLogger.Fatal("Failed to initialize services", zap.Error(err))
	}
	defer services.Close()

	// Periodic cache warm-up
	if cfg.Schedule.WarmCron != "" {
		sched := scheduler.NewScheduler(ctx, services.Orchestrator, appLogger)
		if err := sched.Register(cfg.Schedule.WarmCron); err != nil {
			appLogger.Fatal("Failed to register warm-up", zap.Error(err))
		}
		sched.Start()
		defer sched.Stop()

		if os.Getenv("RUN_ON_START") == "true" {
			go sched.RunNow()
		}
	}

	// Initialize handlers
	forecastHandler := handlers.NewForecastHandler(services.Orchestrator)
	healthHandler := handlers.NewHealthHandler(services.MarketData.Provider(), services.Model.Name(), services.Checks())

	// Create Fiber app with optimized config
	server := fiber.New(fiber.Config{
		Prefork:       false,
		StrictRouting: true,
		CaseSensitive: true,
		ServerHeader:  "Trendcast-API",
		AppName:       "Trendcast " + handlers.Version,
		ReadTimeout:   cfg.Server.ReadTimeout,
		WriteTimeout:  2 * cfg.Forecast.Timeout,
		BodyLimit:     1 * 1024 * 1024, // 1MB
		ErrorHandler:  handlers.CustomErrorHandler,
	})

	// Middleware stack
	server.Use(recover.New())
	server.Use(requestid.New())
	server.Use(fiberlogger.New(fiberlogger.Config{
		Format: "[${time}] ${status} - ${latency} ${method} ${path}\n",
	}))
	server.Use(compress.New(compress.Config{
		Level: compress.LevelBestSpeed,
	}))
	server.Use(cors.New(cors.Config{
		AllowOrigins:     "*",
		AllowMethods:     "GET,POST,OPTIONS",
		AllowHeaders:     "Origin,Content-Type,Accept,Authorization",
		AllowCredentials: false,
		MaxAge:           3600,
	}))
	if cfg.Server.RateLimit > 0 {
		server.Use(limiter.New(limiter.Config{
			Max:        cfg.Server.RateLimit,
			Expiration: 1 * time.Minute,
			LimitReached: func(c *fiber.Ctx) error {
				return c.Status(fiber.StatusTooManyRequests).JSON(fiber.Map{
					"error": "Rate limit exceeded. Please try again later.",
				})
			},
		}))
	}

	// Routes
	server.Get("/", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"service": "Trendcast API",
			"version": handlers.Version,
			"status":  "running",
			"tickers": cfg.MarketData.Tickers,
		})
	})

	server.Get("/health", healthHandler.Health)
	server.Get("/health/ready", healthHandler.Ready)

	// API v1 routes
	forecastHandler.Register(server.Group("/v1"))

	// Graceful shutdown
	go func() {
		if err := server.Listen(":" + cfg.Server.Port); err != nil {
			appLogger.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	appLogger.Info("Trendcast API started",
		zap.String("port", cfg.Server.Port),
		zap.String("environment", cfg.Server.Environment),
		zap.String("provider", services.MarketData.Provider()),
		zap.String("model", services.Model.Name()),
		zap.String("start_date", cfg.MarketData.StartDate))

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	appLogger.Info("Shutting down gracefully...")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := server.ShutdownWithContext(shutdownCtx); err != nil {
		appLogger.Error("Server forced to shutdown", zap.Error(err))
		return
	}

	appLogger.Info("Server shutdown complete")
}
