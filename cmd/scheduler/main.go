package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/ad-tracker/youtube-trending-ingestion-go/internal/app"
	"github.com/ad-tracker/youtube-trending-ingestion-go/internal/config"
	"github.com/ad-tracker/youtube-trending-ingestion-go/internal/models"
	"github.com/ad-tracker/youtube-trending-ingestion-go/pkg/logger"
)

func main() {
	once := flag.Bool("once", false, "Run a single batch and exit")
	flag.Parse()

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

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := app.New(ctx, cfg)
	if err != nil {
		logger.L().Error("failed to initialize", zap.Error(err))
		_ = logger.Sync()
		os.Exit(1)
	}
	defer a.Close(context.Background())

	if cfg.Jobs.EnsureOnStartup {
		if err := a.Ingest.EnsureIndexes(ctx); err != nil {
			logger.L().Error("failed to ensure indexes", zap.Error(err))
			_ = logger.Sync()
			os.Exit(1)
		}
	}

	s := &Scheduler{
		ingester:   a.Ingest,
		regions:    cfg.Jobs.Regions,
		maxResults: cfg.Jobs.MaxResults,
		timeout:    batchTimeout(cfg),
		logger:     logger.L(),
	}

	logger.L().Info("Trending scheduler starting",
		zap.Strings("regions", s.regions),
		zap.Int("maxResults", s.maxResults),
		zap.Duration("interval", cfg.Jobs.Interval),
		zap.Bool("once", *once),
	)

	if *once {
		s.RunOnce(ctx)
		return
	}

	s.Run(ctx, cfg.Jobs.Interval)
	logger.L().Info("Trending scheduler stopped gracefully")
}

// batchTimeout bounds one batch so a hung region cannot stall the next tick.
func batchTimeout(cfg *config.Config) time.Duration {
	perRegion := cfg.YouTube.Timeout + cfg.Store.WriteTimeout
	return time.Duration(len(cfg.Jobs.Regions)+1) * perRegion
}

// BatchRunner is the part of the ingest service the scheduler drives.
type BatchRunner interface {
	RunBatch(ctx context.Context, regions []string, maxResults int) *models.BatchResult
}

// Scheduler runs the batch job on a fixed interval.
type Scheduler struct {
	ingester   BatchRunner
	regions    []string
	maxResults int
	timeout    time.Duration
	logger     *zap.Logger
}

// Run executes a batch immediately and then on every tick until ctx is cancelled.
func (s *Scheduler) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	s.logger.Info("Running initial batch")
	s.RunOnce(ctx)

	for {
		select {
		case <-ticker.C:
			s.logger.Info("Running scheduled batch")
			s.RunOnce(ctx)
		case <-ctx.Done():
			s.logger.Info("Shutdown signal received")
			return
		}
	}
}

// RunOnce runs one batch and logs a summary line per region.
func (s *Scheduler) RunOnce(ctx context.Context) *models.BatchResult {
	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	batch := s.ingester.RunBatch(ctx, s.regions, s.maxResults)

	succeeded, failed := 0, 0
	for _, o := range batch.Outcomes {
		if o.Succeeded() {
			succeeded++
			s.logger.Info("Region summary",
				zap.String("region", o.Region),
				zap.Int("fetched", o.Result.Fetched),
				zap.Int64("upserted", o.Result.Upserted),
				zap.Int64("modified", o.Result.Modified),
				zap.String("capturedAt", o.Result.CapturedAt),
			)
			continue
		}
		failed++
		s.logger.Error("Region failed", zap.String("region", o.Region), zap.Error(o.Err))
	}

	s.logger.Info("Batch job complete",
		zap.String("batchId", batch.ID.String()),
		zap.Int("total", len(batch.Outcomes)),
		zap.Int("successful", succeeded),
		zap.Int("failed", failed),
	)

	return batch
}
