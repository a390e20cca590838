package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/ad-tracker/youtube-trending-ingestion-go/internal/metrics"
	"github.com/ad-tracker/youtube-trending-ingestion-go/internal/models"
	"github.com/ad-tracker/youtube-trending-ingestion-go/pkg/logger"
)

// PostgresConfig holds the database configuration parameters.
type PostgresConfig struct {
	Host            string
	Port            int
	User            string
	Password        string
	Database        string
	SSLMode         string
	MaxConns        int32
	MinConns        int32
	MaxConnLifetime time.Duration
	MaxConnIdleTime time.Duration
}

// ConnString renders the config as a libpq keyword/value string.
func (c *PostgresConfig) ConnString() string {
	sslMode := c.SSLMode
	if sslMode == "" {
		sslMode = "disable"
	}
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Database, sslMode,
	)
}

// NewPool creates a new PostgreSQL connection pool with the given configuration.
func NewPool(ctx context.Context, cfg *PostgresConfig) (*pgxpool.Pool, error) {
	poolConfig, err := pgxpool.ParseConfig(cfg.ConnString())
	if err != nil {
		return nil, fmt.Errorf("parse connection string: %w", err)
	}

	if cfg.MaxConns > 0 {
		poolConfig.MaxConns = cfg.MaxConns
	}
	if cfg.MinConns > 0 {
		poolConfig.MinConns = cfg.MinConns
	}
	if cfg.MaxConnLifetime > 0 {
		poolConfig.MaxConnLifetime = cfg.MaxConnLifetime
	}
	if cfg.MaxConnIdleTime > 0 {
		poolConfig.MaxConnIdleTime = cfg.MaxConnIdleTime
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("create connection pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	return pool, nil
}

// provisionLockKey serializes concurrent EnsureIndexes calls across processes.
const provisionLockKey int64 = 0x7974_7472_656e_64 // "ytrend"

var provisionStatements = []string{
	`CREATE TABLE IF NOT EXISTS trending_videos (
		id            BIGSERIAL PRIMARY KEY,
		doc_key       TEXT NOT NULL,
		video_id      TEXT NOT NULL,
		title         TEXT,
		channel_id    TEXT,
		channel_title TEXT,
		category_id   TEXT,
		published_at  TEXT,
		views         BIGINT NOT NULL DEFAULT 0 CHECK (views >= 0),
		likes         BIGINT NOT NULL DEFAULT 0 CHECK (likes >= 0),
		comments      BIGINT NOT NULL DEFAULT 0 CHECK (comments >= 0),
		region_code   TEXT NOT NULL,
		captured_at   TEXT NOT NULL,
		created_at    TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		updated_at    TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE UNIQUE INDEX IF NOT EXISTS idx_trending_videos_doc_key ON trending_videos (doc_key)`,
	`CREATE INDEX IF NOT EXISTS idx_trending_videos_region_captured ON trending_videos (region_code, captured_at DESC)`,
	`CREATE INDEX IF NOT EXISTS idx_trending_videos_channel ON trending_videos (channel_id)`,
}

const upsertSQL = `
	INSERT INTO trending_videos (
		doc_key, video_id, title, channel_id, channel_title, category_id,
		published_at, views, likes, comments, region_code, captured_at
	) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
	ON CONFLICT (doc_key) DO UPDATE SET
		video_id = EXCLUDED.video_id,
		title = EXCLUDED.title,
		channel_id = EXCLUDED.channel_id,
		channel_title = EXCLUDED.channel_title,
		category_id = EXCLUDED.category_id,
		published_at = EXCLUDED.published_at,
		views = EXCLUDED.views,
		likes = EXCLUDED.likes,
		comments = EXCLUDED.comments,
		region_code = EXCLUDED.region_code,
		captured_at = EXCLUDED.captured_at,
		updated_at = NOW()
	WHERE (trending_videos.video_id, trending_videos.title, trending_videos.channel_id,
	       trending_videos.channel_title, trending_videos.category_id, trending_videos.published_at,
	       trending_videos.views, trending_videos.likes, trending_videos.comments,
	       trending_videos.region_code, trending_videos.captured_at)
	IS DISTINCT FROM
	      (EXCLUDED.video_id, EXCLUDED.title, EXCLUDED.channel_id,
	       EXCLUDED.channel_title, EXCLUDED.category_id, EXCLUDED.published_at,
	       EXCLUDED.views, EXCLUDED.likes, EXCLUDED.comments,
	       EXCLUDED.region_code, EXCLUDED.captured_at)
	RETURNING (xmax = 0) AS inserted`

const selectColumns = `video_id, title, channel_id, channel_title, category_id, published_at,
	views, likes, comments, region_code, captured_at, doc_key`

// PostgresStore keeps records in the trending_videos table.
type PostgresStore struct {
	pool         *pgxpool.Pool
	writeTimeout time.Duration
	ownsPool     bool
}

// NewPostgresStore opens a pool owned by the store.
func NewPostgresStore(ctx context.Context, cfg *PostgresConfig, writeTimeout time.Duration) (*PostgresStore, error) {
	pool, err := NewPool(ctx, cfg)
	if err != nil {
		return nil, &models.StoreError{Op: "connect", Cause: err}
	}

	s := NewPostgresStoreFromPool(pool, writeTimeout)
	s.ownsPool = true

	logger.L().Info("Connected to PostgreSQL",
		zap.String("host", cfg.Host),
		zap.String("database", cfg.Database),
	)
	return s, nil
}

// NewPostgresStoreFromPool wraps a pool owned by the caller.
func NewPostgresStoreFromPool(pool *pgxpool.Pool, writeTimeout time.Duration) *PostgresStore {
	if writeTimeout <= 0 {
		writeTimeout = defaultWriteTimeout
	}
	return &PostgresStore{pool: pool, writeTimeout: writeTimeout}
}

// UpsertRecords applies the batch in one transaction with a savepoint per record,
// so a record rejected by the database rolls back alone and the rest commit.
func (s *PostgresStore) UpsertRecords(ctx context.Context, records []models.TrendingRecord) (*models.UpsertResult, error) {
	if len(records) == 0 {
		return &models.UpsertResult{}, nil
	}

	valid, failures := prepare(records)
	result := &models.UpsertResult{Failures: failures}
	if len(valid) == 0 {
		return result, nil
	}

	ctx, cancel := context.WithTimeout(ctx, s.writeTimeout)
	defer cancel()

	start := time.Now()
	defer func() {
		metrics.StoreOperationDuration.WithLabelValues(DriverPostgres, "upsert").Observe(time.Since(start).Seconds())
	}()

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		metrics.StoreOperationsTotal.WithLabelValues(DriverPostgres, "upsert", "error").Inc()
		return nil, &models.StoreError{Op: "begin", Cause: err}
	}
	defer func() { _ = tx.Rollback(ctx) }()

	var applied models.UpsertResult
	for _, kr := range valid {
		inserted, changed, err := upsertOne(ctx, tx, &kr.record)
		if err != nil {
			if !isItemError(err) {
				metrics.StoreOperationsTotal.WithLabelValues(DriverPostgres, "upsert", "error").Inc()
				return nil, &models.StoreError{Op: "upsert", Cause: err}
			}
			result.Failures = append(result.Failures, models.ItemFailure{
				Index:   kr.index,
				VideoID: kr.record.VideoID,
				Reason:  WrapError(err, "upsert").Error(),
			})
			continue
		}

		switch {
		case inserted:
			applied.Upserted++
		case changed:
			applied.Matched++
			applied.Modified++
		default:
			applied.Matched++
		}
	}

	if err := tx.Commit(ctx); err != nil {
		metrics.StoreOperationsTotal.WithLabelValues(DriverPostgres, "upsert", "error").Inc()
		return nil, &models.StoreError{Op: "commit", Cause: err}
	}

	result.Matched = applied.Matched
	result.Modified = applied.Modified
	result.Upserted = applied.Upserted

	status := "ok"
	if len(result.Failures) > 0 {
		status = "partial"
	}
	metrics.StoreOperationsTotal.WithLabelValues(DriverPostgres, "upsert", status).Inc()

	return sortFailures(result), nil
}

// upsertOne runs inside a nested pgx transaction, which pgx implements as a savepoint.
func upsertOne(ctx context.Context, tx pgx.Tx, r *models.TrendingRecord) (inserted, changed bool, err error) {
	sp, err := tx.Begin(ctx)
	if err != nil {
		return false, false, err
	}

	err = sp.QueryRow(ctx, upsertSQL,
		r.DocKey, r.VideoID, r.Title, r.ChannelID, r.ChannelTitle, r.CategoryID,
		r.PublishedAt, r.Views, r.Likes, r.Comments, r.RegionCode, r.CapturedAt,
	).Scan(&inserted)

	switch {
	case errors.Is(err, pgx.ErrNoRows):
		// Conflict with identical values: the WHERE clause suppressed the update.
		return false, false, sp.Commit(ctx)
	case err != nil:
		_ = sp.Rollback(ctx)
		return false, false, err
	}

	return inserted, !inserted, sp.Commit(ctx)
}

func isItemError(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && isItemLevelCode(pgErr.Code)
}

// EnsureIndexes creates the table and its indexes under a transaction-scoped advisory lock.
func (s *PostgresStore) EnsureIndexes(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, s.writeTimeout)
	defer cancel()

	err := pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `SELECT pg_advisory_xact_lock($1)`, provisionLockKey); err != nil {
			return fmt.Errorf("acquire provision lock: %w", err)
		}
		for _, stmt := range provisionStatements {
			if _, err := tx.Exec(ctx, stmt); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		metrics.StoreOperationsTotal.WithLabelValues(DriverPostgres, "ensure_indexes", "error").Inc()
		return &models.StoreError{Op: "ensure indexes", Cause: WrapError(err, "provision")}
	}

	metrics.StoreOperationsTotal.WithLabelValues(DriverPostgres, "ensure_indexes", "ok").Inc()
	logger.L().Info("Indexes ensured", zap.String("table", "trending_videos"))
	return nil
}

func (s *PostgresStore) FindRecords(ctx context.Context, q Query) ([]models.TrendingRecord, error) {
	sql := `SELECT ` + selectColumns + ` FROM trending_videos
		WHERE region_code = $1 AND left(captured_at, length($2)) = $2
		ORDER BY captured_at DESC, doc_key`
	args := []any{q.Region, q.CapturedPrefix}
	if q.Limit > 0 {
		sql += ` LIMIT $3`
		args = append(args, q.Limit)
	}

	rows, err := s.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, &models.StoreError{Op: "find", Cause: err}
	}

	records, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (models.TrendingRecord, error) {
		var r models.TrendingRecord
		err := row.Scan(&r.VideoID, &r.Title, &r.ChannelID, &r.ChannelTitle, &r.CategoryID, &r.PublishedAt,
			&r.Views, &r.Likes, &r.Comments, &r.RegionCode, &r.CapturedAt, &r.DocKey)
		return r, err
	})
	if err != nil {
		return nil, &models.StoreError{Op: "scan", Cause: err}
	}

	return records, nil
}

func (s *PostgresStore) ListRegions(ctx context.Context) ([]string, error) {
	rows, err := s.pool.Query(ctx, `SELECT DISTINCT region_code FROM trending_videos ORDER BY region_code`)
	if err != nil {
		return nil, &models.StoreError{Op: "distinct regions", Cause: err}
	}

	regions, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, &models.StoreError{Op: "scan", Cause: err}
	}
	return regions, nil
}

func (s *PostgresStore) Ping(ctx context.Context) error {
	if err := s.pool.Ping(ctx); err != nil {
		return &models.StoreError{Op: "ping", Cause: err}
	}
	return nil
}

func (s *PostgresStore) Close(ctx context.Context) error {
	if s.ownsPool {
		s.pool.Close()
	}
	return nil
}
