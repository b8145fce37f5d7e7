package config

import (
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

// Config holds all application configuration
type Config struct {
	// NBA stats API
	NBAStatsBaseURL          string        `envconfig:"NBA_STATS_BASE_URL" default:"https://stats.nba.com/stats"`
	NBAStatsTimeout          time.Duration `envconfig:"NBA_STATS_TIMEOUT" default:"30s"`
	NBAMaxConcurrentRequests int           `envconfig:"NBA_MAX_CONCURRENT_REQUESTS" default:"4"`

	// Database
	DatabaseHost     string `envconfig:"DATABASE_HOST" default:"localhost"`
	DatabasePort     int    `envconfig:"DATABASE_PORT" default:"5432"`
	DatabaseName     string `envconfig:"DATABASE_NAME" default:"nbafirst"`
	DatabaseUser     string `envconfig:"DATABASE_USER" default:"nbafirst_user"`
	DatabasePassword string `envconfig:"DATABASE_PASSWORD" required:"true"`
	DatabaseSSLMode  string `envconfig:"DATABASE_SSL_MODE" default:"disable"`

	// Redis
	RedisHost     string `envconfig:"REDIS_HOST" default:"localhost"`
	RedisPort     int    `envconfig:"REDIS_PORT" default:"6379"`
	RedisPassword string `envconfig:"REDIS_PASSWORD" default:""`
	RedisDB       int    `envconfig:"REDIS_DB" default:"0"`

	// Application
	AppEnv   string `envconfig:"APP_ENV" default:"development"`
	LogLevel string `envconfig:"LOG_LEVEL" default:"info"`

	// Scheduler
	EnableScheduler    bool          `envconfig:"ENABLE_SCHEDULER" default:"true"`
	InitialSyncEnabled bool          `envconfig:"INITIAL_SYNC_ENABLED" default:"true"`
	NightlyRefreshCron string        `envconfig:"NIGHTLY_REFRESH_CRON" default:"0 2 * * *"`
	PredictionInterval time.Duration `envconfig:"PREDICTION_INTERVAL" default:"1h"`
	WatermarkMaxAge    time.Duration `envconfig:"WATERMARK_MAX_AGE" default:"24h"`
	HistoricalSeasons  int           `envconfig:"HISTORICAL_SEASONS" default:"2"`

	// Model
	HalfLifeDays              float64 `envconfig:"HALF_LIFE_DAYS" default:"30"`
	ConfidenceHighThreshold   float64 `envconfig:"CONFIDENCE_HIGH_THRESHOLD" default:"0.12"`
	ConfidenceMediumThreshold float64 `envconfig:"CONFIDENCE_MEDIUM_THRESHOLD" default:"0.07"`

	// Export
	ExportDir string `envconfig:"EXPORT_DIR" default:"data"`

	// Caching TTL (in seconds)
	CacheTTLPredictions int `envconfig:"CACHE_TTL_PREDICTIONS" default:"3600"` // 1 hour

	// Monitoring
	EnableMetrics bool `envconfig:"ENABLE_METRICS" default:"true"`
	MetricsPort   int  `envconfig:"METRICS_PORT" default:"9090"`
}

// Load loads configuration from environment variables
// It first attempts to load from .env file if in development mode
func Load() (*Config, error) {
	// Try to load .env file (ignore error if doesn't exist)
	_ = godotenv.Load()

	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to process environment config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.DatabasePassword == "" {
		return fmt.Errorf("DATABASE_PASSWORD is required")
	}

	if c.HalfLifeDays <= 0 {
		return fmt.Errorf("HALF_LIFE_DAYS must be positive")
	}

	if c.ConfidenceMediumThreshold <= 0 || c.ConfidenceHighThreshold <= c.ConfidenceMediumThreshold {
		return fmt.Errorf("confidence thresholds must satisfy 0 < medium < high")
	}

	if c.HistoricalSeasons < 1 {
		return fmt.Errorf("HISTORICAL_SEASONS must be at least 1")
	}

	return nil
}

// DatabaseDSN returns the PostgreSQL connection string
func (c *Config) DatabaseDSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.DatabaseHost,
		c.DatabasePort,
		c.DatabaseUser,
		c.DatabasePassword,
		c.DatabaseName,
		c.DatabaseSSLMode,
	)
}

// RedisAddr returns the Redis address
func (c *Config) RedisAddr() string {
	return fmt.Sprintf("%s:%d", c.RedisHost, c.RedisPort)
}

// IsDevelopment returns true if running in development mode
func (c *Config) IsDevelopment() bool {
	return c.AppEnv == "development"
}

// IsProduction returns true if running in production mode
func (c *Config) IsProduction() bool {
	return c.AppEnv == "production"
}

// MustLoad loads configuration or panics on error
// Use this in main() where we want to fail fast
func MustLoad() *Config {
	cfg, err := Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}
	return cfg
}
