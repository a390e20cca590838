// Package store persists trending records keyed by their identity key.
package store

import (
	"context"
	"fmt"
	"sort"

	"github.com/ad-tracker/youtube-trending-ingestion-go/internal/models"
)

// Store is the write side used by ingestion jobs.
type Store interface {
	// UpsertRecords replaces every record whose identity key already exists and inserts the rest.
	// Item-level failures are reported in the result while the remaining items commit.
	UpsertRecords(ctx context.Context, records []models.TrendingRecord) (*models.UpsertResult, error)
	// EnsureIndexes creates the unique identity index and the lookup indexes. It is idempotent.
	EnsureIndexes(ctx context.Context) error
	Ping(ctx context.Context) error
	Close(ctx context.Context) error
}

// Reader is the read side used by the dashboard.
type Reader interface {
	FindRecords(ctx context.Context, q Query) ([]models.TrendingRecord, error)
	ListRegions(ctx context.Context) ([]string, error)
}

// RecordStore is implemented by every backend.
type RecordStore interface {
	Store
	Reader
}

// Query selects records for one region whose CapturedAt starts with CapturedPrefix, newest first.
type Query struct {
	Region         string
	CapturedPrefix string
	Limit          int
}

const (
	DriverMongo    = "mongo"
	DriverPostgres = "postgres"
	DriverMemory   = "memory"
)

// keyedRecord is a record that produced a valid identity key, with its position in the caller's batch.
type keyedRecord struct {
	index  int
	record models.TrendingRecord
}

// prepare stamps identity keys and splits out records that cannot produce one.
func prepare(records []models.TrendingRecord) ([]keyedRecord, []models.ItemFailure) {
	valid := make([]keyedRecord, 0, len(records))
	var failures []models.ItemFailure

	for i, r := range records {
		key, err := r.Key()
		if err != nil {
			failures = append(failures, models.ItemFailure{
				Index:   i,
				VideoID: r.VideoID,
				Reason:  fmt.Sprintf("%v (capturedAt=%q)", err, r.CapturedAt),
			})
			continue
		}
		r.DocKey = key
		valid = append(valid, keyedRecord{index: i, record: r})
	}

	return valid, failures
}

// sortFailures orders failures by their position in the caller's batch.
func sortFailures(r *models.UpsertResult) *models.UpsertResult {
	sort.SliceStable(r.Failures, func(i, j int) bool {
		return r.Failures[i].Index < r.Failures[j].Index
	})
	return r
}
