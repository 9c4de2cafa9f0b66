// Package config loads service configuration from the environment.
package config

import (
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config is the root configuration of the service.
type Config struct {
	AppEnv    string
	OrgID     string
	Server    ServerConfig
	Mongo     MongoConfig
	Redis     RedisConfig
	Logging   LoggingConfig
	Scheduler SchedulerConfig
	Render    RenderConfig
	Tracing   TracingConfig
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host            string
	Port            int
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration
}

// MongoConfig holds document store connection settings.
type MongoConfig struct {
	Username   string
	Password   string
	Host       string
	Port       int
	AuthSource string
	Database   string
}

// URI renders the connection string for the driver.
func (m MongoConfig) URI() string {
	if m.Username != "" {
		return fmt.Sprintf("mongodb://%s:%s@%s:%d/?authSource=%s",
			url.QueryEscape(m.Username), url.QueryEscape(m.Password), m.Host, m.Port, m.AuthSource)
	}
	return fmt.Sprintf("mongodb://%s:%d", m.Host, m.Port)
}

// RedisConfig holds optional cache settings. An empty URL disables the cache.
type RedisConfig struct {
	URL      string
	PoolSize int
}

// LoggingConfig holds log level and format.
type LoggingConfig struct {
	Level   string
	Format  string
	LokiURL string
}

// SchedulerConfig holds the delay sweep settings.
type SchedulerConfig struct {
	TickInterval time.Duration
	ClaimLimit   int
}

// RenderConfig holds the outbound renderer endpoint.
type RenderConfig struct {
	URL     string
	Timeout time.Duration
}

// TracingConfig holds the optional OTLP trace exporter endpoint.
type TracingConfig struct {
	OTLPEndpoint string
}

// Load reads configuration from the environment, honoring a local .env file
// when present.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		AppEnv: getEnv("APP_ENV", "development"),
		OrgID:  os.Getenv("ORG_ID"),
		Server: ServerConfig{
			Host:            getEnv("HOST", "0.0.0.0"),
			Port:            getEnvInt("PORT", 8018),
			ReadTimeout:     getEnvDuration("READ_TIMEOUT", 15*time.Second),
			WriteTimeout:    getEnvDuration("WRITE_TIMEOUT", 15*time.Second),
			ShutdownTimeout: getEnvDuration("SHUTDOWN_TIMEOUT", 30*time.Second),
		},
		Mongo: MongoConfig{
			Username:   os.Getenv("MONGO_USERNAME"),
			Password:   os.Getenv("MONGO_PASSWORD"),
			Host:       getEnv("MONGO_HOST", "localhost"),
			Port:       getEnvInt("MONGO_PORT", 27017),
			AuthSource: getEnv("MONGO_AUTH_SOURCE", "admin"),
			Database:   getEnv("MONGO_DATABASE", "agentflow"),
		},
		Redis: RedisConfig{
			URL:      os.Getenv("REDIS_URL"),
			PoolSize: getEnvInt("REDIS_POOL_SIZE", 10),
		},
		Logging: LoggingConfig{
			Level:   defaultLogLevel(),
			Format:  getEnv("LOG_FORMAT", "json"),
			LokiURL: os.Getenv("LOKI_URL"),
		},
		Scheduler: SchedulerConfig{
			TickInterval: time.Duration(getEnvInt("DELAY_TICK_SECONDS", 20)) * time.Second,
			ClaimLimit:   getEnvInt("DELAY_CLAIM_LIMIT", 100),
		},
		Render: RenderConfig{
			URL:     os.Getenv("RENDER_URL"),
			Timeout: getEnvDuration("RENDER_TIMEOUT", 10*time.Second),
		},
		Tracing: TracingConfig{
			OTLPEndpoint: os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT"),
		},
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid PORT: %d", c.Server.Port)
	}
	if c.Mongo.Host == "" {
		return fmt.Errorf("MONGO_HOST is required")
	}
	if c.Scheduler.TickInterval <= 0 {
		return fmt.Errorf("DELAY_TICK_SECONDS must be positive")
	}
	return nil
}

func defaultLogLevel() string {
	if isTruthy(os.Getenv("DEBUG")) {
		return "debug"
	}
	return getEnv("LOG_LEVEL", "info")
}

func isTruthy(v string) bool {
	switch strings.ToLower(v) {
	case "1", "true", "yes", "on":
		return true
	}
	return false
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return fallback
	}
	return d
}
