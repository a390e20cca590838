// Package dashboard builds the read-side views over stored trending records.
package dashboard

import (
	"context"
	"errors"
	"sort"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/ad-tracker/youtube-trending-ingestion-go/internal/cache"
	"github.com/ad-tracker/youtube-trending-ingestion-go/internal/models"
	"github.com/ad-tracker/youtube-trending-ingestion-go/internal/store"
	"github.com/ad-tracker/youtube-trending-ingestion-go/pkg/logger"
)

const (
	DefaultLimit = 500
	MinLimit     = 100
	MaxLimit     = 2000

	topVideos     = 10
	topAggregates = 8
	titleMaxLen   = 40
)

// FallbackRegions is served when the store has no regions or cannot be read.
var FallbackRegions = []string{"AU", "US", "IN", "GB", "CA"}

// ErrNoData is returned when no records match the requested filters.
var ErrNoData = errors.New("no data for the chosen filters; run the ingestion job for this region/date or pick another date")

// Cache is the optional response cache in front of the store.
type Cache interface {
	Get(ctx context.Context, key string, dest any) (bool, error)
	Set(ctx context.Context, region, key string, value any) error
}

// Query selects the records a summary is built from. Zero values pick the defaults.
type Query struct {
	Region  string
	Date    string
	Channel string
	Limit   int
}

// KPIs are the headline figures of a summary.
//
//nolint:govet // fieldalignment: Accept minor memory overhead for better readability
type KPIs struct {
	TopVideo         string  `json:"topVideo"`
	TopChannel       string  `json:"topChannel"`
	TopCategory      string  `json:"topCategory"`
	TotalViews       int64   `json:"totalViews"`
	AvgEngagementPct float64 `json:"avgEngagementPct"`
}

// VideoRow is one record enriched for display.
//
//nolint:govet // fieldalignment: Accept minor memory overhead for better readability
type VideoRow struct {
	VideoID        string  `json:"videoId"`
	Title          string  `json:"title"`
	Channel        string  `json:"channel"`
	Category       string  `json:"category"`
	Views          int64   `json:"views"`
	Likes          int64   `json:"likes"`
	Comments       int64   `json:"comments"`
	EngagementRate float64 `json:"engagementRate"`
	Thumbnail      string  `json:"thumbnail"`
	URL            string  `json:"url"`
}

// Aggregate is a group total by views.
type Aggregate struct {
	Name  string `json:"name"`
	Views int64  `json:"views"`
}

// Summary is the dashboard overview for one region and capture date.
//
//nolint:govet // fieldalignment: Accept minor memory overhead for better readability
type Summary struct {
	Region        string      `json:"region"`
	Date          string      `json:"date"`
	Channel       string      `json:"channel,omitempty"`
	LastUpdated   string      `json:"lastUpdated"`
	Records       int         `json:"records"`
	Channels      []string    `json:"channels"`
	KPIs          KPIs        `json:"kpis"`
	TopVideos     []VideoRow  `json:"topVideos"`
	TopCategories []Aggregate `json:"topCategories"`
	TopChannels   []Aggregate `json:"topChannels"`
}

// Service answers dashboard queries.
type Service struct {
	reader store.Reader
	cache  Cache
	now    func() time.Time
}

// NewService creates a Service. cache may be nil.
func NewService(reader store.Reader, c Cache) *Service {
	return &Service{
		reader: reader,
		cache:  c,
		now:    time.Now,
	}
}

// Regions lists stored region codes, or FallbackRegions when there are none.
func (s *Service) Regions(ctx context.Context) []string {
	regions, err := s.reader.ListRegions(ctx)
	if err != nil {
		logger.L().Warn("Failed to list regions, using fallback", zap.Error(err))
		return append([]string(nil), FallbackRegions...)
	}
	if len(regions) == 0 {
		return append([]string(nil), FallbackRegions...)
	}
	return regions
}

// Records returns up to limit records for region captured on date (YYYY-MM-DD).
func (s *Service) Records(ctx context.Context, region, date string, limit int) ([]models.TrendingRecord, error) {
	q := s.normalize(ctx, Query{Region: region, Date: date, Limit: limit})
	return s.reader.FindRecords(ctx, store.Query{
		Region:         q.Region,
		CapturedPrefix: q.Date,
		Limit:          q.Limit,
	})
}

// Summary builds the overview for q, serving from the cache when it can.
func (s *Service) Summary(ctx context.Context, q Query) (*Summary, error) {
	q = s.normalize(ctx, q)
	key := cache.Key("summary", q.Region, q.Date, q.Channel, strconv.Itoa(q.Limit))

	if s.cache != nil {
		var cached Summary
		hit, err := s.cache.Get(ctx, key, &cached)
		if err != nil {
			logger.L().Warn("Dashboard cache read failed", zap.String("key", key), zap.Error(err))
		}
		if hit {
			return &cached, nil
		}
	}

	records, err := s.reader.FindRecords(ctx, store.Query{
		Region:         q.Region,
		CapturedPrefix: q.Date,
		Limit:          q.Limit,
	})
	if err != nil {
		return nil, err
	}

	summary, err := Summarize(records, q)
	if err != nil {
		return nil, err
	}

	if s.cache != nil {
		if err := s.cache.Set(ctx, q.Region, key, summary); err != nil {
			logger.L().Warn("Dashboard cache write failed", zap.String("key", key), zap.Error(err))
		}
	}

	return summary, nil
}

func (s *Service) normalize(ctx context.Context, q Query) Query {
	if q.Region == "" {
		q.Region = s.Regions(ctx)[0]
	}
	if q.Date == "" {
		q.Date = s.now().UTC().Format("2006-01-02")
	}
	q.Limit = ClampLimit(q.Limit)
	return q
}

// ClampLimit applies the default and the bounds to a requested row limit.
func ClampLimit(limit int) int {
	switch {
	case limit <= 0:
		return DefaultLimit
	case limit < MinLimit:
		return MinLimit
	case limit > MaxLimit:
		return MaxLimit
	default:
		return limit
	}
}

// Summarize computes the overview from records. It returns ErrNoData when nothing is left after filtering.
func Summarize(records []models.TrendingRecord, q Query) (*Summary, error) {
	if len(records) == 0 {
		return nil, ErrNoData
	}

	summary := &Summary{
		Region:   q.Region,
		Date:     q.Date,
		Channel:  q.Channel,
		Channels: channelTitles(records),
	}

	rows := make([]VideoRow, 0, len(records))
	for i := range records {
		r := &records[i]
		if r.CapturedAt > summary.LastUpdated {
			summary.LastUpdated = r.CapturedAt
		}
		if q.Channel != "" && deref(r.ChannelTitle) != q.Channel {
			continue
		}
		rows = append(rows, toRow(r))
	}

	if len(rows) == 0 {
		return nil, ErrNoData
	}
	summary.Records = len(rows)

	var engagement float64
	byChannel := make(map[string]int64)
	byCategory := make(map[string]int64)
	for _, row := range rows {
		summary.KPIs.TotalViews += row.Views
		engagement += row.EngagementRate
		byChannel[row.Channel] += row.Views
		byCategory[row.Category] += row.Views
	}
	summary.KPIs.AvgEngagementPct = engagement / float64(len(rows)) * 100

	sort.SliceStable(rows, func(i, j int) bool {
		return rows[i].Views > rows[j].Views
	})

	summary.KPIs.TopVideo = truncateTitle(rows[0].Title)
	summary.TopVideos = rows[:min(topVideos, len(rows))]

	summary.TopChannels = topByViews(byChannel, topAggregates)
	summary.TopCategories = topByViews(byCategory, topAggregates)
	summary.KPIs.TopChannel = summary.TopChannels[0].Name
	summary.KPIs.TopCategory = summary.TopCategories[0].Name

	return summary, nil
}

// EngagementRate is (likes+comments)/views, or 0 for a video with no views.
func EngagementRate(views, likes, comments int64) float64 {
	if views == 0 {
		return 0
	}
	return float64(likes+comments) / float64(views)
}

// ThumbnailURL and WatchURL build the public YouTube links for a video.
func ThumbnailURL(videoID string) string { return "https://img.youtube.com/vi/" + videoID + "/0.jpg" }

func WatchURL(videoID string) string { return "https://youtube.com/watch?v=" + videoID }

func toRow(r *models.TrendingRecord) VideoRow {
	return VideoRow{
		VideoID:        r.VideoID,
		Title:          deref(r.Title),
		Channel:        deref(r.ChannelTitle),
		Category:       CategoryName(r.CategoryID),
		Views:          r.Views,
		Likes:          r.Likes,
		Comments:       r.Comments,
		EngagementRate: EngagementRate(r.Views, r.Likes, r.Comments),
		Thumbnail:      ThumbnailURL(r.VideoID),
		URL:            WatchURL(r.VideoID),
	}
}

func truncateTitle(title string) string {
	runes := []rune(title)
	if len(runes) > titleMaxLen {
		return string(runes[:titleMaxLen-3]) + "..."
	}
	return title
}

// topByViews ranks groups by total views, breaking ties by name.
func topByViews(totals map[string]int64, n int) []Aggregate {
	out := make([]Aggregate, 0, len(totals))
	for name, views := range totals {
		out = append(out, Aggregate{Name: name, Views: views})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Views != out[j].Views {
			return out[i].Views > out[j].Views
		}
		return out[i].Name < out[j].Name
	})
	if len(out) > n {
		out = out[:n]
	}
	return out
}

func channelTitles(records []models.TrendingRecord) []string {
	seen := make(map[string]struct{})
	out := make([]string, 0)
	for i := range records {
		title := deref(records[i].ChannelTitle)
		if title == "" {
			continue
		}
		if _, ok := seen[title]; ok {
			continue
		}
		seen[title] = struct{}{}
		out = append(out, title)
	}
	sort.Strings(out)
	return out
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
