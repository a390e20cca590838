package models

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIdentityKey(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		videoID    string
		capturedAt string
		region     string
		want       string
		wantErr    bool
	}{
		{
			name:       "date portion of timestamp",
			videoID:    "V",
			capturedAt: "2024-03-01T10:00:00",
			region:     "AU",
			want:       "V::2024-03-01::AU",
		},
		{
			name:       "microsecond UTC timestamp",
			videoID:    "vid1",
			capturedAt: "2024-06-01T00:00:00.000000Z",
			region:     "US",
			want:       "vid1::2024-06-01::US",
		},
		{
			name:       "bare date",
			videoID:    "x",
			capturedAt: "2024-06-01",
			region:     "IN",
			want:       "x::2024-06-01::IN",
		},
		{
			name:       "empty video id",
			capturedAt: "2024-06-01T00:00:00",
			region:     "US",
			wantErr:    true,
		},
		{
			name:       "short timestamp",
			videoID:    "x",
			capturedAt: "2024-06",
			region:     "US",
			wantErr:    true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			got, err := IdentityKey(tt.videoID, tt.capturedAt, tt.region)
			if tt.wantErr {
				require.Error(t, err)
				assert.ErrorIs(t, err, ErrMalformedIdentity)
				return
			}

			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestIdentityKey_Deterministic(t *testing.T) {
	t.Parallel()

	r := TrendingRecord{VideoID: "V", CapturedAt: "2024-03-01T10:00:00", RegionCode: "AU"}
	for i := 0; i < 5; i++ {
		key, err := r.Key()
		require.NoError(t, err)
		assert.Equal(t, "V::2024-03-01::AU", key)
	}
}

func TestBatchResult(t *testing.T) {
	t.Parallel()

	batch := &BatchResult{Outcomes: []RegionOutcome{
		{Region: "AU", Result: &JobResult{Region: "AU", Fetched: 2}},
		{Region: "XX", Err: &UpstreamError{Region: "XX", StatusCode: 400, Body: "bad region"}},
		{Region: "US", Result: &JobResult{Region: "US", Fetched: 0}},
	}}

	jobs := batch.Jobs()
	require.Len(t, jobs, 2)
	assert.Equal(t, "AU", jobs[0].Region)
	assert.Equal(t, "US", jobs[1].Region)

	failures := batch.Failures()
	require.Len(t, failures, 1)
	assert.Equal(t, "XX", failures[0].Region)
	assert.Contains(t, failures[0].Error, "status 400")
}

func TestErrorHelpers(t *testing.T) {
	t.Parallel()

	cause := errors.New("connection refused")

	upstream := fmt.Errorf("job: %w", &UpstreamError{Region: "US", Cause: cause})
	assert.True(t, IsUpstreamError(upstream))
	assert.False(t, IsStoreError(upstream))
	assert.ErrorIs(t, upstream, cause)

	store := &StoreError{Op: "bulk write", Cause: cause}
	assert.True(t, IsStoreError(store))
	assert.Contains(t, store.Error(), "bulk write")

	cfg := &ConfigurationError{Setting: "youtube.apikey", Message: "not set"}
	assert.True(t, IsConfigurationError(cfg))
	assert.Equal(t, "configuration error: youtube.apikey: not set", cfg.Error())
}
