package store

import (
	"context"
	"fmt"

	"github.com/ad-tracker/youtube-trending-ingestion-go/internal/config"
)

// Open builds the backend selected by store.driver. The caller owns the returned store and must Close it.
func Open(ctx context.Context, cfg *config.Config) (RecordStore, error) {
	switch cfg.Store.Driver {
	case DriverMongo:
		return NewMongoStore(ctx, MongoConfig{
			URI:            cfg.Mongo.URI,
			Database:       cfg.Mongo.Database,
			Collection:     cfg.Mongo.Collection,
			ConnectTimeout: cfg.Mongo.ConnectTimeout,
			WriteTimeout:   cfg.Store.WriteTimeout,
		})
	case DriverPostgres:
		return NewPostgresStore(ctx, &PostgresConfig{
			Host:            cfg.Database.Host,
			Port:            cfg.Database.Port,
			User:            cfg.Database.User,
			Password:        cfg.Database.Password,
			Database:        cfg.Database.Name,
			SSLMode:         cfg.Database.SSLMode,
			MaxConns:        int32(cfg.Database.MaxConnections),
			MinConns:        int32(cfg.Database.MinConnections),
			MaxConnLifetime: cfg.Database.MaxLifetime,
			MaxConnIdleTime: cfg.Database.MaxIdleTime,
		}, cfg.Store.WriteTimeout)
	case DriverMemory:
		return NewMemoryStore(), nil
	default:
		return nil, fmt.Errorf("unknown store driver %q", cfg.Store.Driver)
	}
}
