package store

import (
	"errors"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"go.mongodb.org/mongo-driver/mongo"
)

func TestWrapError(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		err      error
		sentinel error
		contains string
	}{
		{
			name:     "pg unique violation",
			err:      &pgconn.PgError{Code: "23505", ConstraintName: "idx_trending_videos_doc_key"},
			sentinel: ErrDuplicateKey,
			contains: "idx_trending_videos_doc_key",
		},
		{
			name:     "pg check violation",
			err:      &pgconn.PgError{Code: "23514", Message: "views_check"},
			sentinel: ErrInvalidRecord,
			contains: "23514",
		},
		{
			name:     "pg data exception",
			err:      &pgconn.PgError{Code: "22001", Message: "value too long"},
			sentinel: ErrInvalidRecord,
		},
		{
			name:     "mongo duplicate key",
			err:      mongo.WriteException{WriteErrors: []mongo.WriteError{{Code: 11000, Message: "E11000 duplicate key"}}},
			sentinel: ErrDuplicateKey,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			got := WrapError(tt.err, "upsert")
			assert.ErrorIs(t, got, tt.sentinel)
			assert.Contains(t, got.Error(), "upsert")
			if tt.contains != "" {
				assert.Contains(t, got.Error(), tt.contains)
			}
		})
	}
}

func TestWrapError_Passthrough(t *testing.T) {
	t.Parallel()

	assert.NoError(t, WrapError(nil, "noop"))

	cause := errors.New("broken pipe")
	got := WrapError(cause, "ping")
	assert.ErrorIs(t, got, cause)
	assert.False(t, IsDuplicateKey(got))

	connErr := WrapError(&pgconn.PgError{Code: "08006"}, "upsert")
	assert.False(t, IsInvalidRecord(connErr))
	assert.Contains(t, connErr.Error(), "08006")
}

func TestIsItemError(t *testing.T) {
	t.Parallel()

	assert.True(t, isItemError(&pgconn.PgError{Code: "23514"}))
	assert.True(t, isItemError(&pgconn.PgError{Code: "22P02"}))
	assert.False(t, isItemError(&pgconn.PgError{Code: "57014"}))
	assert.False(t, isItemError(errors.New("conn reset")))
}
