// Package config provides configuration management for the application.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds all configuration for the application.
//
//nolint:govet // fieldalignment: Accept minor memory overhead for better readability
type Config struct {
	Server   ServerConfig
	YouTube  YouTubeConfig
	Store    StoreConfig
	Mongo    MongoConfig
	Database DatabaseConfig
	Jobs     JobsConfig
	Events   EventsConfig
	RabbitMQ RabbitMQConfig
	NATS     NATSConfig
	Cache    CacheConfig
	Logging  LoggingConfig
}

// ServerConfig contains HTTP server configuration.
//
//nolint:govet // fieldalignment: Accept minor memory overhead for better readability
type ServerConfig struct {
	Port            int
	ShutdownTimeout time.Duration
	APIKeys         []string
	CORSOrigins     []string
}

// YouTubeConfig contains YouTube Data API settings.
//
//nolint:govet // fieldalignment: Accept minor memory overhead for better readability
type YouTubeConfig struct {
	APIKey           string
	BaseURL          string
	Timeout          time.Duration
	BreakerFailures  uint32
	BreakerOpenDelay time.Duration
	// DailyQuota is the API unit allocation; 0 disables quota tracking.
	DailyQuota            int
	QuotaThresholdPercent int
}

// StoreConfig selects the record store backend: mongo, postgres or memory.
type StoreConfig struct {
	Driver       string
	WriteTimeout time.Duration
}

// MongoConfig contains MongoDB connection configuration.
type MongoConfig struct {
	URI            string
	Database       string
	Collection     string
	ConnectTimeout time.Duration
}

// DatabaseConfig contains PostgreSQL connection configuration.
//
//nolint:govet // fieldalignment: Accept minor memory overhead for better readability
type DatabaseConfig struct {
	Host           string
	Name           string
	User           string
	Password       string
	SSLMode        string
	Port           int
	MaxConnections int
	MinConnections int
	MaxIdleTime    time.Duration
	MaxLifetime    time.Duration
}

// JobsConfig contains ingestion job settings.
//
//nolint:govet // fieldalignment: Accept minor memory overhead for better readability
type JobsConfig struct {
	Regions         []string
	MaxResults      int
	Interval        time.Duration
	RegionsPerSec   float64
	EnsureOnStartup bool
}

// EventsConfig selects where job-completed events go: none, rabbitmq or nats.
type EventsConfig struct {
	Driver string
}

// RabbitMQConfig contains RabbitMQ connection and queue configuration.
//
//nolint:govet // fieldalignment: Accept minor memory overhead for better readability
type RabbitMQConfig struct {
	Host       string
	User       string
	Password   string
	Exchange   string
	Queue      string
	RoutingKey string
	Port       int
}

// NATSConfig contains NATS connection configuration.
type NATSConfig struct {
	URL     string
	Subject string
}

// CacheConfig contains dashboard cache configuration. An empty RedisURL disables caching.
type CacheConfig struct {
	RedisURL string
	TTL      time.Duration
}

// LoggingConfig contains logging configuration.
type LoggingConfig struct {
	Level string
	File  string
}

// envAliases maps config keys to the plain variable names used by existing deployments.
var envAliases = map[string][]string{
	"youtube.apikey":  {"APP_YOUTUBE_APIKEY", "YOUTUBE_API_KEY"},
	"youtube.baseurl": {"APP_YOUTUBE_BASEURL"},
	"mongo.uri":       {"APP_MONGO_URI", "MONGO_URI"},
	"mongo.database":  {"APP_MONGO_DATABASE", "MONGO_DB"},
	"jobs.regions":    {"APP_JOBS_REGIONS", "YT_REGIONS"},
	"server.apikeys":  {"APP_SERVER_APIKEYS", "API_KEYS"},
	"cache.redisurl":  {"APP_CACHE_REDISURL", "REDIS_URL"},
	"store.driver":    {"APP_STORE_DRIVER"},
	"events.driver":   {"APP_EVENTS_DRIVER"},
	"nats.url":        {"APP_NATS_URL", "NATS_URL"},
	"server.port":     {"APP_SERVER_PORT", "PORT"},
	"logging.level":   {"APP_LOGGING_LEVEL", "LOG_LEVEL"},
}

// Load loads configuration from .env, config file and environment variables.
func Load() (*Config, error) {
	// A missing .env is normal outside local development.
	_ = godotenv.Load()

	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")
	viper.AddConfigPath("./config")

	setDefaults()

	viper.SetEnvPrefix("APP")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	for key, names := range envAliases {
		args := append([]string{key}, names...)
		if err := viper.BindEnv(args...); err != nil {
			return nil, fmt.Errorf("failed to bind env for %s: %w", key, err)
		}
	}

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	cfg.Jobs.Regions = splitList(cfg.Jobs.Regions)
	cfg.Server.APIKeys = splitList(cfg.Server.APIKeys)
	cfg.Server.CORSOrigins = splitList(cfg.Server.CORSOrigins)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Validate checks values that would otherwise fail later at connection time.
func (c *Config) Validate() error {
	switch c.Store.Driver {
	case "mongo", "postgres", "memory":
	default:
		return fmt.Errorf("invalid store.driver %q (must be mongo, postgres or memory)", c.Store.Driver)
	}

	switch c.Events.Driver {
	case "none", "rabbitmq", "nats":
	default:
		return fmt.Errorf("invalid events.driver %q (must be none, rabbitmq or nats)", c.Events.Driver)
	}

	if c.Jobs.MaxResults < 1 || c.Jobs.MaxResults > 50 {
		return fmt.Errorf("jobs.maxresults must be between 1 and 50, got %d", c.Jobs.MaxResults)
	}

	if c.Jobs.Interval <= 0 {
		return fmt.Errorf("jobs.interval must be positive, got %s", c.Jobs.Interval)
	}

	return nil
}

// splitList accepts both YAML lists and comma-separated env values.
func splitList(in []string) []string {
	out := make([]string, 0, len(in))
	for _, item := range in {
		for _, part := range strings.Split(item, ",") {
			if trimmed := strings.TrimSpace(part); trimmed != "" {
				out = append(out, trimmed)
			}
		}
	}
	return out
}

func setDefaults() {
	// Server
	viper.SetDefault("server.port", 8080)
	viper.SetDefault("server.shutdowntimeout", 30*time.Second)
	viper.SetDefault("server.apikeys", []string{})
	viper.SetDefault("server.corsorigins", []string{"*"})

	// YouTube
	viper.SetDefault("youtube.apikey", "")
	viper.SetDefault("youtube.baseurl", "https://www.googleapis.com/youtube/v3")
	viper.SetDefault("youtube.timeout", 20*time.Second)
	viper.SetDefault("youtube.breakerfailures", 5)
	viper.SetDefault("youtube.breakeropendelay", 2*time.Minute)
	viper.SetDefault("youtube.dailyquota", 10000)
	viper.SetDefault("youtube.quotathresholdpercent", 90)

	// Store
	viper.SetDefault("store.driver", "mongo")
	viper.SetDefault("store.writetimeout", 30*time.Second)

	// MongoDB
	viper.SetDefault("mongo.uri", "mongodb://localhost:27017")
	viper.SetDefault("mongo.database", "yt_tracker")
	viper.SetDefault("mongo.collection", "videos")
	viper.SetDefault("mongo.connecttimeout", 10*time.Second)

	// PostgreSQL
	viper.SetDefault("database.host", "localhost")
	viper.SetDefault("database.port", 5432)
	viper.SetDefault("database.name", "yt_tracker")
	viper.SetDefault("database.user", "postgres")
	viper.SetDefault("database.password", "postgres")
	viper.SetDefault("database.sslmode", "disable")
	viper.SetDefault("database.maxconnections", 10)
	viper.SetDefault("database.minconnections", 2)
	viper.SetDefault("database.maxidletime", 10*time.Minute)
	viper.SetDefault("database.maxlifetime", 1*time.Hour)

	// Jobs
	viper.SetDefault("jobs.regions", []string{"AU", "IN", "US", "CA", "GB"})
	viper.SetDefault("jobs.maxresults", 50)
	viper.SetDefault("jobs.interval", 1*time.Hour)
	viper.SetDefault("jobs.regionspersec", 1.0)
	viper.SetDefault("jobs.ensureonstartup", true)

	// Events
	viper.SetDefault("events.driver", "none")

	// RabbitMQ
	viper.SetDefault("rabbitmq.host", "localhost")
	viper.SetDefault("rabbitmq.port", 5672)
	viper.SetDefault("rabbitmq.user", "guest")
	viper.SetDefault("rabbitmq.password", "guest")
	viper.SetDefault("rabbitmq.exchange", "youtube.trending")
	viper.SetDefault("rabbitmq.queue", "youtube.trending.jobs")
	viper.SetDefault("rabbitmq.routingkey", "job.completed")

	// NATS
	viper.SetDefault("nats.url", "nats://localhost:4222")
	viper.SetDefault("nats.subject", "trending.job.completed")

	// Cache
	viper.SetDefault("cache.redisurl", "")
	viper.SetDefault("cache.ttl", 5*time.Minute)

	// Logging
	viper.SetDefault("logging.level", "info")
	viper.SetDefault("logging.file", "")
}
