package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

func init() {
	// Load .env file if it exists (silent fail if not)
	_ = godotenv.Load()
}

// Config holds all application configuration loaded from environment variables.
type Config struct {
	Server     ServerConfig
	App        AppConfig
	Gateway    GatewayConfig
	Session    SessionConfig
	Cache      CacheConfig
	Batch      BatchConfig
	ActivityDB ActivityDBConfig
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host            string        `envconfig:"SERVER_HOST" default:"0.0.0.0"`
	Port            int           `envconfig:"SERVER_PORT" default:"8080"`
	ReadTimeout     time.Duration `envconfig:"SERVER_READ_TIMEOUT" default:"15s"`
	WriteTimeout    time.Duration `envconfig:"SERVER_WRITE_TIMEOUT" default:"60s"`
	ShutdownTimeout time.Duration `envconfig:"SERVER_SHUTDOWN_TIMEOUT" default:"30s"`
	AllowedOrigins  []string      `envconfig:"CORS_ALLOWED_ORIGINS" default:"*"`
}

// AppConfig holds application-level settings.
type AppConfig struct {
	Name        string `envconfig:"APP_NAME" default:"raffle-storefront"`
	Environment string `envconfig:"APP_ENV" default:"development"`
	Debug       bool   `envconfig:"APP_DEBUG" default:"false"`
	Version     string `envconfig:"APP_VERSION" default:"1.0.0"`
	LoginKey    string `envconfig:"LOGIN_KEY" default:""` // Admin stats key
}

// GatewayConfig points at the remote raffle service.
type GatewayConfig struct {
	BaseURL  string        `envconfig:"GATEWAY_BASE_URL" default:"http://localhost:3000"`
	Timeout  time.Duration `envconfig:"GATEWAY_TIMEOUT" default:"10s"`
	PageSize int           `envconfig:"GATEWAY_PAGE_SIZE" default:"100"`
}

// SessionConfig holds session store settings.
type SessionConfig struct {
	Store         string        `envconfig:"SESSION_STORE" default:"memory"` // memory or redis
	TTL           time.Duration `envconfig:"SESSION_TTL" default:"12h"`
	SweepInterval time.Duration `envconfig:"SESSION_SWEEP_INTERVAL" default:"5m"` // release expired live sessions
}

// CacheConfig holds Redis settings shared by the session store and the activity buffer.
type CacheConfig struct {
	RedisHost     string `envconfig:"REDIS_HOST" default:"localhost"`
	RedisPort     int    `envconfig:"REDIS_PORT" default:"6379"`
	RedisPassword string `envconfig:"REDIS_PASSWORD" default:""`
	RedisDB       int    `envconfig:"REDIS_DB" default:"0"`
	KeyPrefix     string `envconfig:"REDIS_KEY_PREFIX" default:"raffle-storefront"`
}

// BatchConfig tunes the batch sell/purchase aggregator.
type BatchConfig struct {
	CloseDelay     time.Duration `envconfig:"BATCH_CLOSE_DELAY" default:"1500ms"`
	MaxConcurrency int           `envconfig:"BATCH_MAX_CONCURRENCY" default:"16"`
}

// ActivityDBConfig holds activity journal database settings.
type ActivityDBConfig struct {
	Type string `envconfig:"ACTIVITY_DB_TYPE" default:"sqlite"` // sqlite, mysql or postgres
	Path string `envconfig:"ACTIVITY_DB_PATH" default:"./data/activity.db"`
	// MySQL / PostgreSQL settings
	Host     string `envconfig:"ACTIVITY_DB_HOST" default:"localhost"`
	Port     int    `envconfig:"ACTIVITY_DB_PORT" default:"0"`
	Name     string `envconfig:"ACTIVITY_DB_NAME" default:"raffles"`
	User     string `envconfig:"ACTIVITY_DB_USER" default:"root"`
	Password string `envconfig:"ACTIVITY_DB_PASS" default:""`
	SSLMode  string `envconfig:"ACTIVITY_DB_SSLMODE" default:"disable"`

	Retention     time.Duration `envconfig:"ACTIVITY_RETENTION" default:"720h"`
	CleanupEvery  time.Duration `envconfig:"ACTIVITY_CLEANUP_INTERVAL" default:"1h"`
	Buffered      bool          `envconfig:"ACTIVITY_BUFFERED" default:"false"`
	FlushInterval time.Duration `envconfig:"ACTIVITY_FLUSH_INTERVAL" default:"10s"`
}

// MySQLDSN returns the MySQL data source name.
func (a *ActivityDBConfig) MySQLDSN() string {
	port := a.Port
	if port == 0 {
		port = 3306
	}
	return fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?parseTime=true",
		a.User, a.Password, a.Host, port, a.Name)
}

// PostgresDSN returns the PostgreSQL connection string.
func (a *ActivityDBConfig) PostgresDSN() string {
	port := a.Port
	if port == 0 {
		port = 5432
	}
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s",
		a.User, a.Password, a.Host, port, a.Name, a.SSLMode)
}

// Address returns the server address in host:port format.
func (s *ServerConfig) Address() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// RedisAddress returns the Redis address in host:port format.
func (c *CacheConfig) RedisAddress() string {
	return fmt.Sprintf("%s:%d", c.RedisHost, c.RedisPort)
}

// IsDevelopment returns true if running in development mode.
func (a *AppConfig) IsDevelopment() bool {
	return a.Environment == "development"
}

// IsProduction returns true if running in production mode.
func (a *AppConfig) IsProduction() bool {
	return a.Environment == "production"
}

// Validate rejects combinations envconfig cannot express.
func (c *Config) Validate() error {
	if c.Gateway.BaseURL == "" {
		return fmt.Errorf("GATEWAY_BASE_URL is required")
	}
	if c.Gateway.PageSize <= 0 {
		return fmt.Errorf("GATEWAY_PAGE_SIZE must be positive, got %d", c.Gateway.PageSize)
	}
	if c.Batch.MaxConcurrency <= 0 {
		return fmt.Errorf("BATCH_MAX_CONCURRENCY must be positive, got %d", c.Batch.MaxConcurrency)
	}
	switch strings.ToLower(c.Session.Store) {
	case "memory", "redis":
	default:
		return fmt.Errorf("unknown SESSION_STORE %q", c.Session.Store)
	}
	switch strings.ToLower(c.ActivityDB.Type) {
	case "sqlite", "mysql", "postgres", "postgresql":
	default:
		return fmt.Errorf("unknown ACTIVITY_DB_TYPE %q", c.ActivityDB.Type)
	}
	return nil
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	var cfg Config

	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &cfg, nil
}

// MustLoad loads configuration or panics on error.
func MustLoad() *Config {
	cfg, err := Load()
	if err != nil {
		panic(err)
	}
	return cfg
}
