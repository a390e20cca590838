package store

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"sort"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"

	"github.com/ad-tracker/youtube-trending-ingestion-go/internal/metrics"
	"github.com/ad-tracker/youtube-trending-ingestion-go/internal/models"
	"github.com/ad-tracker/youtube-trending-ingestion-go/pkg/logger"
)

const defaultWriteTimeout = 30 * time.Second

// MongoConfig holds the connection settings for MongoStore.
type MongoConfig struct {
	URI            string
	Database       string
	Collection     string
	ConnectTimeout time.Duration
	WriteTimeout   time.Duration
}

// MongoStore stores one document per identity key in a single collection.
type MongoStore struct {
	client       *mongo.Client
	coll         *mongo.Collection
	writeTimeout time.Duration
}

// NewMongoStore connects to MongoDB and verifies the connection.
func NewMongoStore(ctx context.Context, cfg MongoConfig) (*MongoStore, error) {
	connectTimeout := cfg.ConnectTimeout
	if connectTimeout <= 0 {
		connectTimeout = 10 * time.Second
	}

	ctx, cancel := context.WithTimeout(ctx, connectTimeout)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(cfg.URI))
	if err != nil {
		return nil, &models.StoreError{Op: "connect", Cause: err}
	}

	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, &models.StoreError{Op: "ping", Cause: err}
	}

	s := NewMongoStoreFromCollection(client.Database(cfg.Database).Collection(cfg.Collection), cfg.WriteTimeout)
	s.client = client

	logger.L().Info("Connected to MongoDB",
		zap.String("database", cfg.Database),
		zap.String("collection", cfg.Collection),
	)

	return s, nil
}

// NewMongoStoreFromCollection wraps an existing collection. Close is then a no-op.
func NewMongoStoreFromCollection(coll *mongo.Collection, writeTimeout time.Duration) *MongoStore {
	if writeTimeout <= 0 {
		writeTimeout = defaultWriteTimeout
	}
	return &MongoStore{coll: coll, writeTimeout: writeTimeout}
}

// UpsertRecords sends one unordered bulk write of ReplaceOne upserts filtered by docKey.
func (s *MongoStore) UpsertRecords(ctx context.Context, records []models.TrendingRecord) (*models.UpsertResult, error) {
	if len(records) == 0 {
		return &models.UpsertResult{}, nil
	}

	valid, failures := prepare(records)
	result := &models.UpsertResult{Failures: failures}
	if len(valid) == 0 {
		return result, nil
	}

	writes := make([]mongo.WriteModel, 0, len(valid))
	for _, kr := range valid {
		writes = append(writes, mongo.NewReplaceOneModel().
			SetFilter(bson.D{{Key: "docKey", Value: kr.record.DocKey}}).
			SetReplacement(kr.record).
			SetUpsert(true))
	}

	ctx, cancel := context.WithTimeout(ctx, s.writeTimeout)
	defer cancel()

	start := time.Now()
	res, err := s.coll.BulkWrite(ctx, writes, options.BulkWrite().SetOrdered(false))
	metrics.StoreOperationDuration.WithLabelValues(DriverMongo, "upsert").Observe(time.Since(start).Seconds())

	if res != nil {
		result.Matched = res.MatchedCount
		result.Modified = res.ModifiedCount
		result.Upserted = res.UpsertedCount
	}

	if err != nil {
		var bwe mongo.BulkWriteException
		if !errors.As(err, &bwe) || bwe.WriteConcernError != nil || len(bwe.WriteErrors) == 0 {
			metrics.StoreOperationsTotal.WithLabelValues(DriverMongo, "upsert", "error").Inc()
			return nil, &models.StoreError{Op: "bulk write", Cause: err}
		}

		for _, we := range bwe.WriteErrors {
			failure := models.ItemFailure{Index: we.Index, Reason: WrapError(we, "replace").Error()}
			if we.Index >= 0 && we.Index < len(valid) {
				failure.Index = valid[we.Index].index
				failure.VideoID = valid[we.Index].record.VideoID
			}
			result.Failures = append(result.Failures, failure)
		}

		logger.L().Warn("Bulk write applied with item failures",
			zap.Int("failed", len(bwe.WriteErrors)),
			zap.Int64("upserted", result.Upserted),
			zap.Int64("modified", result.Modified),
		)
		metrics.StoreOperationsTotal.WithLabelValues(DriverMongo, "upsert", "partial").Inc()
	} else {
		metrics.StoreOperationsTotal.WithLabelValues(DriverMongo, "upsert", "ok").Inc()
	}

	return sortFailures(result), nil
}

// EnsureIndexes creates the unique docKey index, the (regionCode, capturedAt) index and the channelId index.
// Creating an index that already exists with the same definition is a no-op on the server.
func (s *MongoStore) EnsureIndexes(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, s.writeTimeout)
	defer cancel()

	indexes := []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "docKey", Value: 1}},
			Options: options.Index().SetUnique(true),
		},
		{
			Keys: bson.D{
				{Key: "regionCode", Value: 1},
				{Key: "capturedAt", Value: 1},
			},
		},
		{
			Keys: bson.D{{Key: "channelId", Value: 1}},
		},
	}

	names, err := s.coll.Indexes().CreateMany(ctx, indexes)
	if err != nil {
		metrics.StoreOperationsTotal.WithLabelValues(DriverMongo, "ensure_indexes", "error").Inc()
		return &models.StoreError{Op: "ensure indexes", Cause: err}
	}

	metrics.StoreOperationsTotal.WithLabelValues(DriverMongo, "ensure_indexes", "ok").Inc()
	logger.L().Info("Indexes ensured", zap.Strings("indexes", names))
	return nil
}

// FindRecords matches capturedAt by anchored prefix so a bare date selects the whole day.
func (s *MongoStore) FindRecords(ctx context.Context, q Query) ([]models.TrendingRecord, error) {
	filter := bson.D{{Key: "regionCode", Value: q.Region}}
	if q.CapturedPrefix != "" {
		filter = append(filter, bson.E{Key: "capturedAt", Value: bson.D{
			{Key: "$regex", Value: "^" + regexp.QuoteMeta(q.CapturedPrefix)},
		}})
	}

	opts := options.Find().SetSort(bson.D{{Key: "capturedAt", Value: -1}, {Key: "docKey", Value: 1}})
	if q.Limit > 0 {
		opts.SetLimit(int64(q.Limit))
	}

	cursor, err := s.coll.Find(ctx, filter, opts)
	if err != nil {
		return nil, &models.StoreError{Op: "find", Cause: err}
	}
	defer cursor.Close(ctx)

	records := make([]models.TrendingRecord, 0)
	if err := cursor.All(ctx, &records); err != nil {
		return nil, &models.StoreError{Op: "decode", Cause: err}
	}

	return records, nil
}

func (s *MongoStore) ListRegions(ctx context.Context) ([]string, error) {
	values, err := s.coll.Distinct(ctx, "regionCode", bson.D{})
	if err != nil {
		return nil, &models.StoreError{Op: "distinct regions", Cause: err}
	}

	regions := make([]string, 0, len(values))
	for _, v := range values {
		if region, ok := v.(string); ok && region != "" {
			regions = append(regions, region)
		}
	}
	sort.Strings(regions)
	return regions, nil
}

func (s *MongoStore) Ping(ctx context.Context) error {
	if err := s.coll.Database().Client().Ping(ctx, nil); err != nil {
		return &models.StoreError{Op: "ping", Cause: err}
	}
	return nil
}

func (s *MongoStore) Close(ctx context.Context) error {
	if s.client == nil {
		return nil
	}
	if err := s.client.Disconnect(ctx); err != nil {
		return fmt.Errorf("disconnect mongo: %w", err)
	}
	return nil
}
