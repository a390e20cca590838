package events

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ad-tracker/youtube-trending-ingestion-go/internal/config"
	"github.com/ad-tracker/youtube-trending-ingestion-go/internal/models"
)

func TestNoopPublisher(t *testing.T) {
	var p Publisher = NoopPublisher{}

	err := p.Publish(context.Background(), &models.JobCompletedEvent{ID: uuid.New(), Region: "US"})
	assert.NoError(t, err)
	assert.True(t, p.IsHealthy())
	assert.NoError(t, p.Close())
}

func TestNew(t *testing.T) {
	tests := []struct {
		name    string
		driver  string
		wantErr bool
		noop    bool
	}{
		{name: "none", driver: DriverNone, noop: true},
		{name: "empty defaults to none", driver: "", noop: true},
		{name: "unknown driver", driver: "kafka", wantErr: true},
		{name: "nats unreachable", driver: DriverNATS, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := &config.Config{
				Events: config.EventsConfig{Driver: tt.driver},
				NATS:   config.NATSConfig{URL: "nats://127.0.0.1:1", Subject: "trending.job.completed"},
			}

			p, err := New(cfg)
			if tt.wantErr {
				require.Error(t, err)
				assert.Nil(t, p)
				return
			}
			require.NoError(t, err)
			if tt.noop {
				assert.IsType(t, NoopPublisher{}, p)
			}
		})
	}
}

func TestNewRabbitMQPublisher_Unreachable(t *testing.T) {
	cfg := &config.RabbitMQConfig{
		Host:       "127.0.0.1",
		Port:       1,
		User:       "guest",
		Password:   "guest",
		Exchange:   "youtube.trending",
		Queue:      "youtube.trending.jobs",
		RoutingKey: "job.completed",
	}

	start := time.Now()
	p, err := NewRabbitMQPublisher(cfg)
	require.Error(t, err)
	assert.Nil(t, p)
	assert.Contains(t, err.Error(), "failed to connect to RabbitMQ")
	assert.Less(t, time.Since(start), 30*time.Second)
}

func TestNATSPublisher_NilConn(t *testing.T) {
	p := NewNATSPublisherFromConn(nil, "trending.job.completed")
	assert.False(t, p.IsHealthy())
	assert.NoError(t, p.Close())
}
