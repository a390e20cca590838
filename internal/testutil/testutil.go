// Package testutil starts throwaway backing services for integration tests.
package testutil

import (
	"context"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/mongodb"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const (
	testDatabase = "yt_tracker_test"
	testUser     = "test"
	testPassword = "test"
)

// TestDatabase represents a test PostgreSQL instance.
type TestDatabase struct {
	Pool      *pgxpool.Pool
	Container *postgres.PostgresContainer
	ConnStr   string
}

// SetupTestDatabase creates a PostgreSQL container and returns a connection pool.
// The schema is not created here; stores provision it through EnsureIndexes.
func SetupTestDatabase(t *testing.T) *TestDatabase {
	ctx := context.Background()

	pgContainer, err := postgres.Run(ctx,
		"postgres:17-alpine",
		postgres.WithDatabase(testDatabase),
		postgres.WithUsername(testUser),
		postgres.WithPassword(testPassword),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second)),
	)
	require.NoError(t, err)

	connStr, err := pgContainer.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	pool, err := pgxpool.New(ctx, connStr)
	require.NoError(t, err)
	require.NoError(t, pool.Ping(ctx))

	return &TestDatabase{
		Pool:      pool,
		Container: pgContainer,
		ConnStr:   connStr,
	}
}

// Cleanup closes the pool and terminates the container.
func (td *TestDatabase) Cleanup(t *testing.T) {
	ctx := context.Background()

	if td.Pool != nil {
		td.Pool.Close()
	}
	if td.Container != nil {
		require.NoError(t, td.Container.Terminate(ctx))
	}
}

// TruncateTables empties the trending table for test isolation.
func (td *TestDatabase) TruncateTables(t *testing.T) {
	_, err := td.Pool.Exec(context.Background(), `TRUNCATE TABLE trending_videos RESTART IDENTITY`)
	require.NoError(t, err)
}

// TestMongo represents a test MongoDB instance.
type TestMongo struct {
	Client    *mongo.Client
	Container *mongodb.MongoDBContainer
	URI       string
}

// SetupTestMongo creates a MongoDB container and returns a connected client.
func SetupTestMongo(t *testing.T) *TestMongo {
	ctx := context.Background()

	container, err := mongodb.Run(ctx, "mongo:7")
	require.NoError(t, err)

	uri, err := container.ConnectionString(ctx)
	require.NoError(t, err)

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	require.NoError(t, err)
	require.NoError(t, client.Ping(ctx, nil))

	return &TestMongo{
		Client:    client,
		Container: container,
		URI:       uri,
	}
}

// Collection returns a fresh collection in the test database.
func (tm *TestMongo) Collection(t *testing.T, name string) *mongo.Collection {
	coll := tm.Client.Database(testDatabase).Collection(name)
	require.NoError(t, coll.Drop(context.Background()))
	return coll
}

// Cleanup disconnects the client and terminates the container.
func (tm *TestMongo) Cleanup(t *testing.T) {
	ctx := context.Background()

	if tm.Client != nil {
		_ = tm.Client.Disconnect(ctx)
	}
	if tm.Container != nil {
		require.NoError(t, tm.Container.Terminate(ctx))
	}
}
