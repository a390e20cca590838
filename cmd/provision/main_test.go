package main

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/ad-tracker/youtube-trending-ingestion-go/internal/config"
)

func validConfig(driver string) *config.Config {
	return &config.Config{
		Store:  config.StoreConfig{Driver: driver},
		Events: config.EventsConfig{Driver: "none"},
		Jobs:   config.JobsConfig{MaxResults: 50, Interval: time.Hour},
	}
}

func TestProvision(t *testing.T) {
	assert.NoError(t, provision(validConfig("memory"), time.Second))
	assert.Error(t, provision(validConfig("cassandra"), time.Second))
}
