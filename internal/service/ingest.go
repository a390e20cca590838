// Package service composes the ingestion pipeline: fetch, normalize and upsert per region.
package service

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/ad-tracker/youtube-trending-ingestion-go/internal/events"
	"github.com/ad-tracker/youtube-trending-ingestion-go/internal/metrics"
	"github.com/ad-tracker/youtube-trending-ingestion-go/internal/models"
	"github.com/ad-tracker/youtube-trending-ingestion-go/internal/parser"
	"github.com/ad-tracker/youtube-trending-ingestion-go/internal/service/quota"
	"github.com/ad-tracker/youtube-trending-ingestion-go/internal/service/youtube"
	"github.com/ad-tracker/youtube-trending-ingestion-go/internal/store"
	"github.com/ad-tracker/youtube-trending-ingestion-go/pkg/logger"
)

// maxLoggedFailures bounds how many item failures one job logs individually.
const maxLoggedFailures = 5

// Invalidator drops cached reads for a region after its data changed.
type Invalidator interface {
	InvalidateRegion(ctx context.Context, region string) error
}

// Ingester is the surface the HTTP layer and the scheduler drive.
type Ingester interface {
	RunJob(ctx context.Context, region string, maxResults int) (*models.JobResult, error)
	RunBatch(ctx context.Context, regions []string, maxResults int) *models.BatchResult
	EnsureIndexes(ctx context.Context) error
}

// IngestService runs single-region and batch ingestion jobs.
type IngestService struct {
	fetcher     youtube.Fetcher
	store       store.Store
	publisher   events.Publisher
	limiter     *rate.Limiter
	quota       *quota.Manager
	invalidator Invalidator
	now         func() time.Time
}

// Option configures an IngestService.
type Option func(*IngestService)

// WithPublisher sends a JobCompletedEvent after every successful job.
func WithPublisher(p events.Publisher) Option {
	return func(s *IngestService) {
		if p != nil {
			s.publisher = p
		}
	}
}

// WithRegionRate spaces batch regions at perSecond. Zero or less disables spacing.
func WithRegionRate(perSecond float64) Option {
	return func(s *IngestService) {
		if perSecond > 0 {
			s.limiter = rate.NewLimiter(rate.Limit(perSecond), 1)
		}
	}
}

// WithQuota refuses fetches once the daily API threshold is spent.
func WithQuota(m *quota.Manager) Option {
	return func(s *IngestService) { s.quota = m }
}

// WithInvalidator clears cached dashboard reads for regions whose records changed.
func WithInvalidator(inv Invalidator) Option {
	return func(s *IngestService) { s.invalidator = inv }
}

// NewIngestService creates an IngestService. The store is long-lived and shared by every job.
func NewIngestService(fetcher youtube.Fetcher, st store.Store, opts ...Option) *IngestService {
	s := &IngestService{
		fetcher:   fetcher,
		store:     st,
		publisher: events.NoopPublisher{},
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// EnsureIndexes provisions the store's lookup indexes. It is safe to call on every startup.
func (s *IngestService) EnsureIndexes(ctx context.Context) error {
	start := time.Now()
	if err := s.store.EnsureIndexes(ctx); err != nil {
		logger.L().Error("Failed to ensure indexes", zap.Error(err))
		return err
	}
	logger.L().Info("Indexes ensured", zap.Duration("duration", time.Since(start)))
	return nil
}

// RunJob fetches, normalizes and upserts one region. Fetch and store errors are returned unchanged.
func (s *IngestService) RunJob(ctx context.Context, region string, maxResults int) (*models.JobResult, error) {
	return s.runJob(ctx, region, maxResults, nil)
}

// RunBatch runs RunJob for each region in order. A failed region is recorded in its outcome
// and never stops the regions after it.
func (s *IngestService) RunBatch(ctx context.Context, regions []string, maxResults int) *models.BatchResult {
	batch := &models.BatchResult{
		ID:        uuid.New(),
		StartedAt: s.now().UTC(),
		Outcomes:  make([]models.RegionOutcome, 0, len(regions)),
	}
	batchID := batch.ID.String()

	for _, region := range regions {
		if s.limiter != nil {
			if err := s.limiter.Wait(ctx); err != nil {
				batch.Outcomes = append(batch.Outcomes, models.RegionOutcome{Region: region, Err: err})
				continue
			}
		}

		result, err := s.runJob(ctx, region, maxResults, &batchID)
		batch.Outcomes = append(batch.Outcomes, models.RegionOutcome{Region: region, Result: result, Err: err})
	}

	batch.FinishedAt = s.now().UTC()

	succeeded := len(batch.Jobs())
	logger.L().Info("Batch completed",
		zap.String("batchId", batchID),
		zap.Int("regions", len(regions)),
		zap.Int("succeeded", succeeded),
		zap.Int("failed", len(regions)-succeeded),
		zap.Duration("duration", batch.FinishedAt.Sub(batch.StartedAt)),
	)

	return batch
}

func (s *IngestService) runJob(ctx context.Context, region string, maxResults int, batchID *string) (*models.JobResult, error) {
	start := time.Now()
	defer func() {
		metrics.JobDuration.WithLabelValues(region).Observe(time.Since(start).Seconds())
	}()

	if err := s.fetcher.Configured(); err != nil {
		return nil, s.fail(region, "config", err)
	}

	if err := s.checkQuota(ctx, region); err != nil {
		return nil, s.fail(region, "quota", err)
	}

	capture, err := s.fetcher.FetchTrending(ctx, region, maxResults)
	s.recordQuota(ctx, err)
	if err != nil {
		return nil, s.fail(region, "fetch", err)
	}

	records := parser.Normalize(capture)
	metrics.RecordsFetched.WithLabelValues(region).Add(float64(len(records)))

	res, err := s.store.UpsertRecords(ctx, records)
	if err != nil {
		return nil, s.fail(region, "upsert", err)
	}

	result := &models.JobResult{
		Region:     region,
		CapturedAt: capture.CapturedAt,
		Fetched:    len(records),
		Upserted:   res.Upserted,
		Matched:    res.Matched,
		Modified:   res.Modified,
		Failed:     len(res.Failures),
	}

	metrics.JobsTotal.WithLabelValues(region, "success").Inc()
	metrics.RecordsWritten.WithLabelValues(region, "upserted").Add(float64(res.Upserted))
	metrics.RecordsWritten.WithLabelValues(region, "modified").Add(float64(res.Modified))
	metrics.RecordsWritten.WithLabelValues(region, "failed").Add(float64(len(res.Failures)))

	for i, f := range res.Failures {
		if i == maxLoggedFailures {
			logger.L().Warn("Further item failures omitted", zap.String("region", region), zap.Int("total", len(res.Failures)))
			break
		}
		logger.L().Warn("Record rejected by store",
			zap.String("region", region),
			zap.Int("index", f.Index),
			zap.String("videoId", f.VideoID),
			zap.String("reason", f.Reason),
		)
	}

	logger.L().Info("Region ingested",
		zap.String("region", region),
		zap.String("capturedAt", result.CapturedAt),
		zap.Int("fetched", result.Fetched),
		zap.Int64("upserted", result.Upserted),
		zap.Int64("modified", result.Modified),
		zap.Int("failed", result.Failed),
		zap.Duration("duration", time.Since(start)),
	)

	if s.invalidator != nil && result.Upserted+result.Modified > 0 {
		if err := s.invalidator.InvalidateRegion(ctx, region); err != nil {
			logger.L().Warn("Failed to invalidate dashboard cache", zap.String("region", region), zap.Error(err))
		}
	}

	s.publish(ctx, result, batchID)

	return result, nil
}

func (s *IngestService) fail(region, stage string, err error) error {
	metrics.JobsTotal.WithLabelValues(region, "failed").Inc()
	logger.L().Error("Region job failed",
		zap.String("region", region),
		zap.String("stage", stage),
		zap.Error(err),
	)
	return err
}

func (s *IngestService) checkQuota(ctx context.Context, region string) error {
	if s.quota == nil {
		return nil
	}

	ok, _, err := s.quota.CheckAvailable(ctx, quota.TrendingListCost)
	if err != nil {
		// An unreadable counter must not stop ingestion.
		logger.L().Warn("Quota check failed, continuing", zap.String("region", region), zap.Error(err))
		return nil
	}
	if !ok {
		return &models.UpstreamError{Region: region, Cause: quota.ErrThresholdReached}
	}
	return nil
}

// recordQuota charges the call when it reached the API.
func (s *IngestService) recordQuota(ctx context.Context, fetchErr error) {
	if s.quota == nil {
		return
	}

	var upstreamErr *models.UpstreamError
	reached := fetchErr == nil || (errors.As(fetchErr, &upstreamErr) && upstreamErr.StatusCode != 0)
	if !reached {
		return
	}

	if err := s.quota.Record(ctx, quota.TrendingListCost, "videos.list"); err != nil {
		logger.L().Warn("Failed to record quota usage", zap.Error(err))
	}
}

func (s *IngestService) publish(ctx context.Context, result *models.JobResult, batchID *string) {
	event := &models.JobCompletedEvent{
		ID:         uuid.New(),
		BatchID:    batchID,
		Region:     result.Region,
		CapturedAt: result.CapturedAt,
		Fetched:    result.Fetched,
		Upserted:   result.Upserted,
		Modified:   result.Modified,
		Failed:     result.Failed,
		OccurredAt: s.now().UTC(),
	}

	if err := s.publisher.Publish(ctx, event); err != nil {
		logger.L().Warn("Failed to publish job event",
			zap.String("eventId", event.ID.String()),
			zap.String("region", result.Region),
			zap.Error(err),
		)
	}
}
