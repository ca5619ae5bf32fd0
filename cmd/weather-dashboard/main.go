package main

import (
	"context"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"go.uber.org/zap"

	httpapi "github.com/i474232898/weather-dashboard/internal/api/http"
	"github.com/i474232898/weather-dashboard/internal/catalog"
	"github.com/i474232898/weather-dashboard/internal/config"
	"github.com/i474232898/weather-dashboard/internal/logging"
	"github.com/i474232898/weather-dashboard/internal/metrics"
	"github.com/i474232898/weather-dashboard/internal/scheduler"
	"github.com/i474232898/weather-dashboard/internal/store"
	"github.com/i474232898/weather-dashboard/internal/weather"
	"github.com/i474232898/weather-dashboard/internal/weather/providers"
)

func main() {
	// Load configuration.
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logr, err := logging.New(cfg.LogLevel, cfg.LogFile)
	if err != nil {
		log.Fatalf("failed to create logger: %v", err)
	}
	defer logr.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	m := metrics.New()

	// Cache, optionally backed by SQLite so entries survive restarts.
	cacheOpts := []store.Option{store.WithObserver(m), store.WithLogger(logr)}
	if cfg.CachePath != "" {
		persister, err := store.OpenSQLite(cfg.CachePath, logr)
		if err != nil {
			logr.Fatal("failed to open cache database", zap.String("path", cfg.CachePath), zap.Error(err))
		}
		defer persister.Close()
		cacheOpts = append(cacheOpts, store.WithPersister(persister))
	}
	cache := store.NewCacheStore(weather.CacheTTL, cacheOpts...)
	if n, err := cache.Restore(ctx); err != nil {
		logr.Warn("failed to restore cache", zap.Error(err))
	} else {
		logr.Info("cache restored", zap.Int("entries", n))
	}

	// Shared HTTP client for outbound provider calls; per-attempt timeouts
	// are applied by the transport.
	httpClient := &http.Client{}
	transport := providers.NewTransport(httpClient, providers.RetryPolicy{
		MaxAttempts:    cfg.RetryAttempts,
		BackoffFactor:  cfg.RetryBackoffFactor,
		MaxInterval:    cfg.RetryMaxInterval,
		Jitter:         cfg.RetryJitter,
		AttemptTimeout: cfg.HTTPTimeout,
	}, providers.WithTransportObserver(m), providers.WithTransportLogger(logr))

	gateway := providers.NewOpenMeteoGateway(cfg.ProviderBaseURL, cache, transport, logr)

	locs, err := catalog.Parse(cfg.Locations, catalog.GoogleResolver{APIKey: cfg.GeocoderAPIKey})
	if err != nil {
		logr.Fatal("failed to parse locations", zap.Error(err))
	}
	cat, err := catalog.NewStatic(locs)
	if err != nil {
		logr.Fatal("invalid location catalog", zap.Error(err))
	}

	service := weather.NewService(gateway, cat, logr,
		weather.WithConcurrency(cfg.FetchConcurrency),
		weather.WithFailureObserver(m),
	)

	// Background warmer keeping the cache hot.
	warmer := scheduler.New(cat, gateway, cfg.WarmInterval, m, logr)
	if err := warmer.Start(ctx); err != nil {
		logr.Fatal("failed to start cache warmer", zap.Error(err))
	}
	defer warmer.Stop()

	// Basic app configuration
	app := fiber.New(fiber.Config{
		AppName:               "weather-dashboard",
		DisableStartupMessage: true,
		ReadTimeout:           10 * time.Second,
		WriteTimeout:          60 * time.Second,
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			// Centralized error response
			code := fiber.StatusInternalServerError
			if e, ok := err.(*fiber.Error); ok {
				code = e.Code
			}
			return c.Status(code).JSON(fiber.Map{
				"error":   true,
				"message": err.Error(),
			})
		},
	})

	// Global middleware
	app.Use(logger.New())
	app.Use(recover.New())

	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"status":  "ok",
			"service": "weather-dashboard",
			"warmer":  warmer.State().String(),
			"cached":  cache.Len(),
		})
	})
	app.Get("/metrics", adaptor.HTTPHandler(m.Handler()))

	// API routes.
	httpapi.RegisterRoutes(app, service)

	go func() {
		if err := app.Listen(":" + cfg.Port); err != nil {
			logr.Error("fiber server stopped", zap.Error(err))
		}
	}()
	logr.Info("listening", zap.String("port", cfg.Port), zap.Int("locations", len(locs)))

	// Wait for termination signal
	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := app.ShutdownWithContext(shutdownCtx); err != nil {
		logr.Error("error during shutdown", zap.Error(err))
	}
}
