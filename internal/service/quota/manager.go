// Package quota tracks YouTube Data API units spent per quota day.
package quota

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/ad-tracker/youtube-trending-ingestion-go/pkg/logger"
)

const (
	// DefaultDailyLimit is the YouTube Data API v3 default allocation.
	DefaultDailyLimit = 10000
	// DefaultThresholdPercent stops fetching once this share of the allocation is used.
	DefaultThresholdPercent = 90
	// TrendingListCost is the unit cost of one videos.list call.
	TrendingListCost = 1

	counterTTL = 48 * time.Hour
)

// ErrThresholdReached is returned in place of a fetch once the day's threshold is spent.
var ErrThresholdReached = errors.New("daily YouTube API quota threshold reached")

// Counter persists per-day usage.
type Counter interface {
	Used(ctx context.Context, day string) (int, error)
	Add(ctx context.Context, day string, units int) (int, error)
}

// Info is the usage for one quota day.
type Info struct {
	Day       string  `json:"day"`
	Used      int     `json:"used"`
	Limit     int     `json:"limit"`
	Threshold int     `json:"threshold"`
	Remaining int     `json:"remaining"`
	UsedPct   float64 `json:"usedPct"`
}

// Manager decides whether a call fits in the remaining quota and records what was spent.
type Manager struct {
	counter          Counter
	dailyLimit       int
	thresholdPercent int
	loc              *time.Location
	now              func() time.Time
}

// NewManager creates a Manager. Non-positive limits fall back to the defaults.
func NewManager(counter Counter, dailyLimit, thresholdPercent int) *Manager {
	if dailyLimit <= 0 {
		dailyLimit = DefaultDailyLimit
	}
	if thresholdPercent <= 0 || thresholdPercent > 100 {
		thresholdPercent = DefaultThresholdPercent
	}

	// The allocation resets at midnight Pacific time.
	loc, err := time.LoadLocation("America/Los_Angeles")
	if err != nil {
		loc = time.UTC
	}

	return &Manager{
		counter:          counter,
		dailyLimit:       dailyLimit,
		thresholdPercent: thresholdPercent,
		loc:              loc,
		now:              time.Now,
	}
}

func (m *Manager) day() string {
	return m.now().In(m.loc).Format("2006-01-02")
}

func (m *Manager) threshold() int {
	return (m.dailyLimit * m.thresholdPercent) / 100
}

// CheckAvailable reports whether required units fit under the threshold.
func (m *Manager) CheckAvailable(ctx context.Context, required int) (bool, *Info, error) {
	info, err := m.Info(ctx)
	if err != nil {
		return false, nil, err
	}

	if info.Used+required > info.Threshold {
		logger.L().Warn("YouTube quota threshold reached",
			zap.Int("used", info.Used),
			zap.Int("required", required),
			zap.Int("threshold", info.Threshold),
			zap.Int("limit", info.Limit),
		)
		return false, info, nil
	}

	return true, info, nil
}

// Record adds units to today's usage.
func (m *Manager) Record(ctx context.Context, units int, operation string) error {
	used, err := m.counter.Add(ctx, m.day(), units)
	if err != nil {
		return fmt.Errorf("failed to record quota usage: %w", err)
	}

	logger.L().Debug("YouTube quota used",
		zap.String("operation", operation),
		zap.Int("cost", units),
		zap.Int("used", used),
		zap.Int("limit", m.dailyLimit),
	)
	return nil
}

// Info returns today's usage.
func (m *Manager) Info(ctx context.Context) (*Info, error) {
	day := m.day()
	used, err := m.counter.Used(ctx, day)
	if err != nil {
		return nil, fmt.Errorf("failed to get quota info: %w", err)
	}

	threshold := m.threshold()
	remaining := threshold - used
	if remaining < 0 {
		remaining = 0
	}

	return &Info{
		Day:       day,
		Used:      used,
		Limit:     m.dailyLimit,
		Threshold: threshold,
		Remaining: remaining,
		UsedPct:   float64(used) / float64(m.dailyLimit) * 100,
	}, nil
}

// MemoryCounter keeps usage in process memory.
type MemoryCounter struct {
	mu   sync.Mutex
	days map[string]int
}

func NewMemoryCounter() *MemoryCounter {
	return &MemoryCounter{days: make(map[string]int)}
}

func (c *MemoryCounter) Used(_ context.Context, day string) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.days[day], nil
}

func (c *MemoryCounter) Add(_ context.Context, day string, units int) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.days[day] += units
	return c.days[day], nil
}

// RedisCounter shares usage across processes with one INCRBY key per day.
type RedisCounter struct {
	rdb *redis.Client
}

func NewRedisCounter(rdb *redis.Client) *RedisCounter {
	return &RedisCounter{rdb: rdb}
}

func counterKey(day string) string {
	return "youtube:quota:" + day
}

func (c *RedisCounter) Used(ctx context.Context, day string) (int, error) {
	v, err := c.rdb.Get(ctx, counterKey(day)).Result()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	return strconv.Atoi(v)
}

func (c *RedisCounter) Add(ctx context.Context, day string, units int) (int, error) {
	key := counterKey(day)
	pipe := c.rdb.TxPipeline()
	incr := pipe.IncrBy(ctx, key, int64(units))
	pipe.Expire(ctx, key, counterTTL)
	if _, err := pipe.Exec(ctx); err != nil {
		return 0, err
	}
	return int(incr.Val()), nil
}
