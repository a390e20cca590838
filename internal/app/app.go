// Package app wires configuration into the long-lived components shared by the commands.
package app

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/ad-tracker/youtube-trending-ingestion-go/internal/cache"
	"github.com/ad-tracker/youtube-trending-ingestion-go/internal/config"
	"github.com/ad-tracker/youtube-trending-ingestion-go/internal/dashboard"
	"github.com/ad-tracker/youtube-trending-ingestion-go/internal/events"
	"github.com/ad-tracker/youtube-trending-ingestion-go/internal/service"
	"github.com/ad-tracker/youtube-trending-ingestion-go/internal/service/quota"
	"github.com/ad-tracker/youtube-trending-ingestion-go/internal/service/youtube"
	"github.com/ad-tracker/youtube-trending-ingestion-go/internal/store"
	"github.com/ad-tracker/youtube-trending-ingestion-go/pkg/logger"
)

// App holds the process-wide components. Close releases them in reverse order.
type App struct {
	Config    *config.Config
	Store     store.RecordStore
	Publisher events.Publisher
	Cache     *cache.SummaryCache
	Quota     *quota.Manager
	Ingest    *service.IngestService
	Dashboard *dashboard.Service
}

// New connects the store, the event publisher and the cache, and builds the services on top.
func New(ctx context.Context, cfg *config.Config) (*App, error) {
	st, err := store.Open(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s store: %w", cfg.Store.Driver, err)
	}
	logger.L().Info("Record store connected", zap.String("driver", cfg.Store.Driver))

	publisher, err := events.New(cfg)
	if err != nil {
		_ = st.Close(ctx)
		return nil, fmt.Errorf("failed to connect %s publisher: %w", cfg.Events.Driver, err)
	}

	summaryCache := cache.New(cfg.Cache.RedisURL, cfg.Cache.TTL)

	var quotaManager *quota.Manager
	if cfg.YouTube.DailyQuota > 0 {
		var counter quota.Counter = quota.NewMemoryCounter()
		if summaryCache.Enabled() {
			counter = quota.NewRedisCounter(summaryCache.Client())
		}
		quotaManager = quota.NewManager(counter, cfg.YouTube.DailyQuota, cfg.YouTube.QuotaThresholdPercent)
	}

	fetcher := youtube.NewClient(youtube.Config{
		APIKey:           cfg.YouTube.APIKey,
		BaseURL:          cfg.YouTube.BaseURL,
		Timeout:          cfg.YouTube.Timeout,
		BreakerFailures:  cfg.YouTube.BreakerFailures,
		BreakerOpenDelay: cfg.YouTube.BreakerOpenDelay,
	})
	if cfg.YouTube.APIKey == "" {
		logger.L().Warn("YouTube API key not configured (YOUTUBE_API_KEY); jobs will fail with a configuration error")
	}

	opts := []service.Option{
		service.WithPublisher(publisher),
		service.WithRegionRate(cfg.Jobs.RegionsPerSec),
		service.WithQuota(quotaManager),
	}
	var dashCache dashboard.Cache
	if summaryCache.Enabled() {
		opts = append(opts, service.WithInvalidator(summaryCache))
		dashCache = summaryCache
	}

	return &App{
		Config:    cfg,
		Store:     st,
		Publisher: publisher,
		Cache:     summaryCache,
		Quota:     quotaManager,
		Ingest:    service.NewIngestService(fetcher, st, opts...),
		Dashboard: dashboard.NewService(st, dashCache),
	}, nil
}

// Close shuts down the publisher, the cache and the store.
func (a *App) Close(ctx context.Context) {
	if err := a.Publisher.Close(); err != nil {
		logger.L().Warn("Failed to close event publisher", zap.Error(err))
	}
	if err := a.Cache.Close(); err != nil {
		logger.L().Warn("Failed to close cache", zap.Error(err))
	}
	if err := a.Store.Close(ctx); err != nil {
		logger.L().Warn("Failed to close store", zap.Error(err))
	}
}
