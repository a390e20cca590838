// Package parser turns raw YouTube Data API responses into flat trending records.
package parser

import (
	"bytes"
	"encoding/json"
	"math"
	"strconv"
	"strings"

	"github.com/ad-tracker/youtube-trending-ingestion-go/internal/models"
)

// Normalize flattens a videos.list response into one record per item.
// It never fails: an unreadable body or a missing items array yields no records,
// and a missing or malformed field degrades to nil (strings) or 0 (counts).
// Every record carries the capture's CapturedAt and Region, in upstream order.
func Normalize(capture *models.RawCapture) []models.TrendingRecord {
	if capture == nil {
		return []models.TrendingRecord{}
	}

	items := decodeItems(capture.Payload)
	records := make([]models.TrendingRecord, 0, len(items))

	for _, raw := range items {
		item, ok := raw.(map[string]any)
		if !ok {
			continue
		}

		snippet := object(item, "snippet")
		stats := object(item, "statistics")

		records = append(records, models.TrendingRecord{
			VideoID:      videoID(item["id"]),
			Title:        optionalString(snippet["title"]),
			ChannelID:    optionalString(snippet["channelId"]),
			ChannelTitle: optionalString(snippet["channelTitle"]),
			CategoryID:   optionalString(snippet["categoryId"]),
			PublishedAt:  optionalString(snippet["publishedAt"]),
			Views:        count(stats["viewCount"]),
			Likes:        count(stats["likeCount"]),
			Comments:     count(stats["commentCount"]),
			RegionCode:   capture.Region,
			CapturedAt:   capture.CapturedAt,
		})
	}

	return records
}

func decodeItems(payload []byte) []any {
	if len(payload) == 0 {
		return nil
	}

	dec := json.NewDecoder(bytes.NewReader(payload))
	dec.UseNumber()

	var body map[string]any
	if err := dec.Decode(&body); err != nil {
		return nil
	}

	items, _ := body["items"].([]any)
	return items
}

func object(m map[string]any, key string) map[string]any {
	if v, ok := m[key].(map[string]any); ok {
		return v
	}
	return map[string]any{}
}

// videoID accepts both the videos.list form ("id": "abc") and the search form ("id": {"videoId": "abc"}).
func videoID(v any) string {
	switch id := v.(type) {
	case string:
		return id
	case json.Number:
		return id.String()
	case map[string]any:
		if s, ok := id["videoId"].(string); ok {
			return s
		}
	}
	return ""
}

func optionalString(v any) *string {
	switch s := v.(type) {
	case string:
		return &s
	case json.Number:
		str := s.String()
		return &str
	}
	return nil
}

func count(v any) int64 {
	var n int64

	switch c := v.(type) {
	case json.Number:
		if i, err := c.Int64(); err == nil {
			n = i
		} else if f, err := c.Float64(); err == nil {
			n = fromFloat(f)
		}
	case string:
		n = parseCount(c)
	case float64:
		n = fromFloat(c)
	}

	if n < 0 {
		return 0
	}
	return n
}

// parseCount accepts only base-10 integers; "12.7" and "1.5e3" count as non-numeric.
func parseCount(s string) int64 {
	n, err := strconv.ParseInt(strings.TrimSpace(s), 10, 64)
	if err != nil {
		return 0
	}
	return n
}

func fromFloat(f float64) int64 {
	if math.IsNaN(f) || math.IsInf(f, 0) || f > math.MaxInt64 {
		return 0
	}
	return int64(f)
}
