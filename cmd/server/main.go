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
	"go.uber.org/zap"

	"github.com/ad-tracker/youtube-trending-ingestion-go/internal/app"
	"github.com/ad-tracker/youtube-trending-ingestion-go/internal/config"
	"github.com/ad-tracker/youtube-trending-ingestion-go/internal/handler"
	"github.com/ad-tracker/youtube-trending-ingestion-go/internal/middleware"
	"github.com/ad-tracker/youtube-trending-ingestion-go/internal/router"
	"github.com/ad-tracker/youtube-trending-ingestion-go/pkg/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	if err := logger.Init(cfg.Logging.Level, cfg.Logging.File); err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()

	if err := run(cfg); err != nil {
		logger.L().Error("server exited with error", zap.Error(err))
		_ = logger.Sync()
		os.Exit(1)
	}
}

func run(cfg *config.Config) error {
	ctx := context.Background()

	a, err := app.New(ctx, cfg)
	if err != nil {
		return err
	}
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		a.Close(closeCtx)
	}()

	if cfg.Jobs.EnsureOnStartup {
		ensureCtx, cancel := context.WithTimeout(ctx, cfg.Store.WriteTimeout)
		err := a.Ingest.EnsureIndexes(ensureCtx)
		cancel()
		if err != nil {
			return fmt.Errorf("failed to ensure indexes: %w", err)
		}
	}

	var cachePinger handler.Pinger
	if a.Cache.Enabled() {
		cachePinger = a.Cache
	}

	gin.SetMode(gin.ReleaseMode)
	engine := router.Setup(router.Handlers{
		Health:    handler.NewHealthHandler(a.Store, a.Publisher, cachePinger),
		Jobs:      handler.NewJobsHandler(a.Ingest, cfg.Jobs.Regions),
		Dashboard: handler.NewDashboardHandler(a.Dashboard),
		Auth:      middleware.NewAPIKeyAuth(cfg.Server.APIKeys),
	}, cfg.Server.CORSOrigins)

	// Batch jobs call the upstream once per region, so writes get a generous timeout.
	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      engine,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 5 * time.Minute,
		IdleTimeout:  60 * time.Second,
	}

	serverErrors := make(chan error, 1)
	go func() {
		logger.L().Info("Server starting",
			zap.Int("port", cfg.Server.Port),
			zap.String("store", cfg.Store.Driver),
			zap.String("events", cfg.Events.Driver),
		)
		serverErrors <- server.ListenAndServe()
	}()

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-serverErrors:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("server error: %w", err)
	case sig := <-shutdown:
		logger.L().Info("Shutdown signal received", zap.String("signal", sig.String()))

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			_ = server.Close()
			return fmt.Errorf("graceful shutdown failed: %w", err)
		}

		logger.L().Info("Server stopped gracefully")
		return nil
	}
}
