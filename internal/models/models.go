// Package models contains the data models and DTOs for the YouTube trending ingestion service.
package models

import (
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
)

// CapturedAtLayout is the UTC layout used for capture timestamps.
const CapturedAtLayout = "2006-01-02T15:04:05.000000Z"

// ErrMalformedIdentity is returned when a record cannot produce an identity key.
var ErrMalformedIdentity = errors.New("malformed record identity")

// RawCapture is one upstream response together with the moment and region it was fetched for.
type RawCapture struct {
	Payload    json.RawMessage
	CapturedAt string
	Region     string
}

// TrendingRecord is the persisted unit, one per video per capture day per region.
//
//nolint:govet // fieldalignment: Accept minor memory overhead for better readability
type TrendingRecord struct {
	VideoID      string  `json:"videoId" bson:"videoId"`
	Title        *string `json:"title" bson:"title"`
	ChannelID    *string `json:"channelId" bson:"channelId"`
	ChannelTitle *string `json:"channelTitle" bson:"channelTitle"`
	CategoryID   *string `json:"categoryId" bson:"categoryId"`
	PublishedAt  *string `json:"publishedAt" bson:"publishedAt"`
	Views        int64   `json:"views" bson:"views"`
	Likes        int64   `json:"likes" bson:"likes"`
	Comments     int64   `json:"comments" bson:"comments"`
	RegionCode   string  `json:"regionCode" bson:"regionCode"`
	CapturedAt   string  `json:"capturedAt" bson:"capturedAt"`
	DocKey       string  `json:"docKey,omitempty" bson:"docKey"`
}

// IdentityKey derives the deduplication key {videoId}::{YYYY-MM-DD}::{region}.
func IdentityKey(videoID, capturedAt, region string) (string, error) {
	if videoID == "" || len(capturedAt) < 10 {
		return "", ErrMalformedIdentity
	}
	return videoID + "::" + capturedAt[:10] + "::" + region, nil
}

// Key returns the identity key of the record.
func (r *TrendingRecord) Key() (string, error) {
	return IdentityKey(r.VideoID, r.CapturedAt, r.RegionCode)
}

// ItemFailure describes one record the store refused while the rest of the batch committed.
type ItemFailure struct {
	Index   int    `json:"index"`
	VideoID string `json:"videoId"`
	Reason  string `json:"reason"`
}

// UpsertResult reports exactly what one batch write applied.
type UpsertResult struct {
	Matched  int64         `json:"matched"`
	Modified int64         `json:"modified"`
	Upserted int64         `json:"upserted"`
	Failures []ItemFailure `json:"failures,omitempty"`
}

// JobResult summarizes one single-region ingestion.
//
//nolint:govet // fieldalignment: Accept minor memory overhead for better readability
type JobResult struct {
	Region     string `json:"region"`
	CapturedAt string `json:"capturedAt"`
	Fetched    int    `json:"fetched"`
	Upserted   int64  `json:"upserted"`
	Matched    int64  `json:"matched"`
	Modified   int64  `json:"modified"`
	Failed     int    `json:"failed"`
}

// RegionOutcome is either a successful JobResult or the error that aborted the region.
type RegionOutcome struct {
	Region string
	Result *JobResult
	Err    error
}

// Succeeded reports whether the region's job completed.
func (o RegionOutcome) Succeeded() bool {
	return o.Err == nil && o.Result != nil
}

// RegionFailure is the serializable form of a failed RegionOutcome.
type RegionFailure struct {
	Region string `json:"region"`
	Error  string `json:"error"`
}

// BatchResult holds one outcome per requested region, in request order.
//
//nolint:govet // fieldalignment: Accept minor memory overhead for better readability
type BatchResult struct {
	ID         uuid.UUID       `json:"id"`
	StartedAt  time.Time       `json:"startedAt"`
	FinishedAt time.Time       `json:"finishedAt"`
	Outcomes   []RegionOutcome `json:"-"`
}

// Jobs returns the successful results in request order.
func (b *BatchResult) Jobs() []JobResult {
	jobs := make([]JobResult, 0, len(b.Outcomes))
	for _, o := range b.Outcomes {
		if o.Succeeded() {
			jobs = append(jobs, *o.Result)
		}
	}
	return jobs
}

// Failures returns the failed regions in request order.
func (b *BatchResult) Failures() []RegionFailure {
	var failures []RegionFailure
	for _, o := range b.Outcomes {
		if !o.Succeeded() {
			msg := "unknown error"
			if o.Err != nil {
				msg = o.Err.Error()
			}
			failures = append(failures, RegionFailure{Region: o.Region, Error: msg})
		}
	}
	return failures
}

// BatchResponseDTO is the HTTP shape of a batch run.
//
//nolint:govet // fieldalignment: Accept minor memory overhead for better readability
type BatchResponseDTO struct {
	BatchID  uuid.UUID       `json:"batchId"`
	Jobs     []JobResult     `json:"jobs"`
	Failures []RegionFailure `json:"failures"`
}

// JobCompletedEvent is published after each successful region job.
//
//nolint:govet // fieldalignment: Accept minor memory overhead for better readability
type JobCompletedEvent struct {
	ID         uuid.UUID `json:"id"`
	BatchID    *string   `json:"batchId,omitempty"`
	Region     string    `json:"region"`
	CapturedAt string    `json:"capturedAt"`
	Fetched    int       `json:"fetched"`
	Upserted   int64     `json:"upserted"`
	Modified   int64     `json:"modified"`
	Failed     int       `json:"failed"`
	OccurredAt time.Time `json:"occurredAt"`
}

// ErrorResponse represents an error response.
//
//nolint:govet // fieldalignment: Accept minor memory overhead for better readability
type ErrorResponse struct {
	Timestamp time.Time `json:"timestamp"`
	Status    int       `json:"status"`
	Error     string    `json:"error"`
	Message   string    `json:"message"`
	Path      string    `json:"path"`
}
