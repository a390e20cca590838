// Package events publishes job-completed notifications to a message broker.
package events

import (
	"context"
	"fmt"

	"github.com/ad-tracker/youtube-trending-ingestion-go/internal/config"
	"github.com/ad-tracker/youtube-trending-ingestion-go/internal/models"
)

// Publisher sends job-completed events. Publish failures never fail the job that produced them.
type Publisher interface {
	Publish(ctx context.Context, event *models.JobCompletedEvent) error
	IsHealthy() bool
	Close() error
}

const (
	DriverNone     = "none"
	DriverRabbitMQ = "rabbitmq"
	DriverNATS     = "nats"
)

// NoopPublisher discards events.
type NoopPublisher struct{}

func (NoopPublisher) Publish(context.Context, *models.JobCompletedEvent) error { return nil }
func (NoopPublisher) IsHealthy() bool                                        { return true }
func (NoopPublisher) Close() error                                           { return nil }

// New connects the publisher selected by events.driver.
func New(cfg *config.Config) (Publisher, error) {
	switch cfg.Events.Driver {
	case DriverNone, "":
		return NoopPublisher{}, nil
	case DriverRabbitMQ:
		return NewRabbitMQPublisher(&cfg.RabbitMQ)
	case DriverNATS:
		return NewNATSPublisher(&cfg.NATS)
	default:
		return nil, fmt.Errorf("unknown events driver %q", cfg.Events.Driver)
	}
}
