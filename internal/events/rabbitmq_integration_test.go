//go:build integration
// +build integration

package events

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/rabbitmq"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/ad-tracker/youtube-trending-ingestion-go/internal/config"
	"github.com/ad-tracker/youtube-trending-ingestion-go/internal/models"
	"github.com/ad-tracker/youtube-trending-ingestion-go/pkg/logger"
)

var (
	loggerInitOnce sync.Once
	loggerInitErr  error
)

func initTestLogger() error {
	loggerInitOnce.Do(func() {
		loggerInitErr = logger.Init("debug", "")
	})
	return loggerInitErr
}

func setupTestRabbitMQ(t *testing.T) (*config.RabbitMQConfig, func()) {
	require.NoError(t, initTestLogger())

	ctx := context.Background()

	rabbitmqContainer, err := rabbitmq.Run(ctx,
		"rabbitmq:3.13-alpine",
		testcontainers.WithWaitStrategy(
			wait.ForLog("Server startup complete").
				WithStartupTimeout(60*time.Second)),
	)
	if err != nil {
		t.Fatalf("Failed to start rabbitmq container: %v", err)
	}

	host, err := rabbitmqContainer.Host(ctx)
	require.NoError(t, err)

	port, err := rabbitmqContainer.MappedPort(ctx, "5672/tcp")
	require.NoError(t, err)

	cfg := &config.RabbitMQConfig{
		Host:       host,
		Port:       port.Int(),
		User:       "guest",
		Password:   "guest",
		Exchange:   "test.trending",
		Queue:      "test.trending.jobs",
		RoutingKey: "job.completed",
	}

	cleanup := func() {
		if err := rabbitmqContainer.Terminate(ctx); err != nil {
			t.Logf("Failed to terminate container: %v", err)
		}
	}

	return cfg, cleanup
}

func TestRabbitMQPublisher_Integration(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test")
	}

	cfg, cleanup := setupTestRabbitMQ(t)
	defer cleanup()

	// Allow some time for RabbitMQ to be fully ready
	time.Sleep(2 * time.Second)

	p, err := NewRabbitMQPublisher(cfg)
	require.NoError(t, err)
	defer p.Close()

	assert.True(t, p.IsHealthy())

	batchID := uuid.NewString()
	event := &models.JobCompletedEvent{
		ID:         uuid.New(),
		BatchID:    &batchID,
		Region:     "US",
		CapturedAt: "2024-06-01T12:00:00.000000Z",
		Fetched:    20,
		Upserted:   18,
		Modified:   2,
		OccurredAt: time.Now().UTC(),
	}

	require.NoError(t, p.Publish(context.Background(), event))

	// Read the message back off the bound queue.
	conn, err := amqp.Dial(fmt.Sprintf("amqp://guest:guest@%s:%d/", cfg.Host, cfg.Port))
	require.NoError(t, err)
	defer conn.Close()
	ch, err := conn.Channel()
	require.NoError(t, err)
	defer ch.Close()

	var msg amqp.Delivery
	require.Eventually(t, func() bool {
		var ok bool
		msg, ok, err = ch.Get(cfg.Queue, true)
		return err == nil && ok
	}, 10*time.Second, 200*time.Millisecond)

	assert.Equal(t, event.ID.String(), msg.MessageId)
	assert.Equal(t, "application/json", msg.ContentType)

	var got models.JobCompletedEvent
	require.NoError(t, json.Unmarshal(msg.Body, &got))
	assert.Equal(t, "US", got.Region)
	assert.Equal(t, int64(18), got.Upserted)
	require.NotNil(t, got.BatchID)
	assert.Equal(t, batchID, *got.BatchID)

	require.NoError(t, p.Close())
	assert.False(t, p.IsHealthy())
	assert.Error(t, p.Publish(context.Background(), event))
}
