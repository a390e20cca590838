// Package cache is a Redis cache-aside layer for dashboard reads.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/ad-tracker/youtube-trending-ingestion-go/internal/metrics"
	"github.com/ad-tracker/youtube-trending-ingestion-go/pkg/logger"
)

const (
	DefaultTTL = 5 * time.Minute

	keyPrefix      = "dashboard:"
	regionSetKeyFn = keyPrefix + "keys:%s"
)

// SummaryCache stores dashboard responses keyed by query. A nil Redis client makes every operation a no-op.
type SummaryCache struct {
	rdb *redis.Client
	ttl time.Duration
}

// New connects to redisURL. An empty URL, a bad URL or a failed ping all disable caching rather than fail startup.
func New(redisURL string, ttl time.Duration) *SummaryCache {
	if redisURL == "" {
		logger.L().Info("redis: no URL configured, caching disabled")
		return &SummaryCache{ttl: ttl}
	}

	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		logger.L().Warn("redis: invalid URL, caching disabled", zap.Error(err))
		return &SummaryCache{ttl: ttl}
	}

	rdb := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	if err := rdb.Ping(ctx).Err(); err != nil {
		logger.L().Warn("redis: connection failed, caching disabled", zap.Error(err))
		_ = rdb.Close()
		return &SummaryCache{ttl: ttl}
	}

	logger.L().Info("redis: connected, caching enabled", zap.Duration("ttl", ttl))
	return NewFromClient(rdb, ttl)
}

func NewFromClient(rdb *redis.Client, ttl time.Duration) *SummaryCache {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &SummaryCache{rdb: rdb, ttl: ttl}
}

func (c *SummaryCache) Enabled() bool {
	return c != nil && c.rdb != nil
}

// Key builds the cache key for a dashboard query. Empty parts are kept so distinct queries never collide.
func Key(kind string, parts ...string) string {
	return keyPrefix + kind + ":" + strings.Join(parts, ":")
}

// Get decodes the cached value into dest. It reports false on a miss or when caching is disabled.
func (c *SummaryCache) Get(ctx context.Context, key string, dest any) (bool, error) {
	if !c.Enabled() {
		return false, nil
	}

	data, err := c.rdb.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		metrics.CacheLookups.WithLabelValues("miss").Inc()
		return false, nil
	}
	if err != nil {
		metrics.CacheLookups.WithLabelValues("error").Inc()
		return false, fmt.Errorf("failed to read cache key %s: %w", key, err)
	}

	if err := json.Unmarshal(data, dest); err != nil {
		metrics.CacheLookups.WithLabelValues("error").Inc()
		return false, fmt.Errorf("failed to decode cache key %s: %w", key, err)
	}

	metrics.CacheLookups.WithLabelValues("hit").Inc()
	return true, nil
}

// Set stores value under key and records the key in the region's index set for later invalidation.
func (c *SummaryCache) Set(ctx context.Context, region, key string, value any) error {
	if !c.Enabled() {
		return nil
	}

	b, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("failed to encode cache value: %w", err)
	}

	setKey := regionSetKey(region)
	pipe := c.rdb.TxPipeline()
	pipe.Set(ctx, key, b, c.ttl)
	pipe.SAdd(ctx, setKey, key)
	pipe.Expire(ctx, setKey, c.ttl)

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to write cache key %s: %w", key, err)
	}
	return nil
}

// InvalidateRegion drops every cached response recorded for region.
func (c *SummaryCache) InvalidateRegion(ctx context.Context, region string) error {
	if !c.Enabled() {
		return nil
	}

	setKey := regionSetKey(region)
	keys, err := c.rdb.SMembers(ctx, setKey).Result()
	if err != nil {
		return fmt.Errorf("failed to list cached keys for %s: %w", region, err)
	}

	pipe := c.rdb.Pipeline()
	if len(keys) > 0 {
		pipe.Del(ctx, keys...)
	}
	pipe.Del(ctx, setKey)

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to invalidate cache for %s: %w", region, err)
	}

	logger.L().Debug("Invalidated dashboard cache", zap.String("region", region), zap.Int("keys", len(keys)))
	return nil
}

// Ping reports Redis reachability. A disabled cache is always healthy.
func (c *SummaryCache) Ping(ctx context.Context) error {
	if !c.Enabled() {
		return nil
	}
	return c.rdb.Ping(ctx).Err()
}

func (c *SummaryCache) Close() error {
	if !c.Enabled() {
		return nil
	}
	return c.rdb.Close()
}

func regionSetKey(region string) string {
	return fmt.Sprintf(regionSetKeyFn, strings.ToUpper(region))
}

// Client returns the underlying Redis client for components that share the connection. May be nil.
func (c *SummaryCache) Client() *redis.Client {
	if c == nil {
		return nil
	}
	return c.rdb
}
