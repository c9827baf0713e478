package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/irfndi/carprice-ai-go/internal/api"
	"github.com/irfndi/carprice-ai-go/internal/api/handlers"
	"github.com/irfndi/carprice-ai-go/internal/app"
	"github.com/irfndi/carprice-ai-go/internal/config"
	"github.com/irfndi/carprice-ai-go/internal/logging"
	"github.com/irfndi/carprice-ai-go/internal/observability"
	"github.com/irfndi/carprice-ai-go/internal/telemetry"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Application failed: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	logger := logging.NewLogger(cfg.LogLevel, cfg.Environment)
	if cfg.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	if err := observability.InitSentry(cfg.Sentry, telemetry.ServiceVersion, cfg.Environment); err != nil {
		logger.WithError(err).Warn("Failed to initialize Sentry")
	}
	defer func() {
		flushCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		observability.Flush(flushCtx)
	}()

	ctx := context.Background()
	shutdownTelemetry, err := telemetry.InitTelemetry(ctx, telemetry.TelemetryConfig{
		Enabled:        cfg.Telemetry.Enabled,
		ServiceName:    serviceName(cfg),
		ServiceVersion: telemetry.ServiceVersion,
		Environment:    cfg.Environment,
		OTLPEndpoint:   cfg.Telemetry.OTLPEndpoint,
		SampleRate:     cfg.Telemetry.SampleRate,
	})
	if err != nil {
		logger.WithError(err).Warn("Failed to initialize telemetry, continuing without tracing")
		shutdownTelemetry = func(context.Context) error { return nil }
	}
	defer func() {
		tctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTelemetry(tctx); err != nil {
			logger.WithError(err).Warn("Failed to shut down telemetry")
		}
	}()

	c, err := app.New(ctx, cfg, logger)
	if err != nil {
		return fmt.Errorf("failed to initialize application: %w", err)
	}
	defer c.Close()

	startupLog := logging.WithComponent(logger, "startup")
	report, err := c.Maintenance.StartupReset(ctx)
	if err != nil {
		return fmt.Errorf("failed to reset result cache: %w", err)
	}
	startupLog.WithFields(logrus.Fields{
		"mode":    report.Mode,
		"deleted": report.Deleted,
		"seeded":  report.Seeded,
	}).Info("Result cache reset")

	router := api.NewRouter(serviceName(cfg), cfg.Server.AllowedOrigins, buildHandlers(c), logger)

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:           router,
		ReadTimeout:       10 * time.Second,
		ReadHeaderTimeout: 5 * time.Second,
		// an uncached prediction runs several model rounds
		WriteTimeout: 120 * time.Second,
		IdleTimeout:  15 * time.Second,
	}

	serverErr := make(chan error, 1)
	go func() {
		logging.LogStartup(logger, serviceName(cfg), telemetry.ServiceVersion, cfg.Server.Port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-serverErr:
		return fmt.Errorf("server failed: %w", err)
	case sig := <-quit:
		logging.LogShutdown(logger, serviceName(cfg), sig.String())
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}

	logger.Info("Server exited")
	return nil
}

func buildHandlers(c *app.Container) api.Handlers {
	return api.Handlers{
		Health:         handlers.NewHealthHandler(c.Health, telemetry.ServiceVersion),
		Recommendation: handlers.NewRecommendationHandler(c.Recommendations, c.Logger),
		Market:         handlers.NewMarketHandler(c.Market, c.Logger),
		Cache:          handlers.NewCacheHandler(c.Maintenance, c.Logger),
	}
}

func serviceName(cfg *config.Config) string {
	if cfg.Telemetry.ServiceName != "" {
		return cfg.Telemetry.ServiceName
	}
	return telemetry.ServiceName
}
