package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"go.uber.org/zap"

	"github.com/ad-tracker/youtube-trending-ingestion-go/internal/config"
	"github.com/ad-tracker/youtube-trending-ingestion-go/internal/store"
	"github.com/ad-tracker/youtube-trending-ingestion-go/pkg/logger"
)

func main() {
	var (
		driver  string
		timeout time.Duration
	)

	flag.StringVar(&driver, "driver", "", "Store driver to provision: mongo or postgres (defaults to store.driver)")
	flag.DurationVar(&timeout, "timeout", 2*time.Minute, "Time limit for index creation")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}
	if driver != "" {
		cfg.Store.Driver = driver
	}

	if err := logger.Init(cfg.Logging.Level, cfg.Logging.File); err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()

	if err := provision(cfg, timeout); err != nil {
		logger.L().Error("Provisioning failed", zap.Error(err))
		_ = logger.Sync()
		os.Exit(1)
	}
}

func provision(cfg *config.Config, timeout time.Duration) error {
	if err := cfg.Validate(); err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	st, err := store.Open(ctx, cfg)
	if err != nil {
		return fmt.Errorf("failed to open store: %w", err)
	}
	defer func() { _ = st.Close(context.Background()) }()

	if err := st.EnsureIndexes(ctx); err != nil {
		return fmt.Errorf("failed to ensure indexes: %w", err)
	}

	logger.L().Info("Indexes provisioned", zap.String("driver", cfg.Store.Driver))
	return nil
}
