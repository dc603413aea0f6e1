package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all configuration for the application. All environment
// variables are read here and nowhere else.
type Config struct {
	Env string // development, staging, production

	// Redis
	Redis RedisConfig

	// External services
	DXLink     DXLinkConfig
	MarketREST MarketRESTConfig

	// Market session
	Market MarketConfig

	// Cache tuning
	Cache CacheConfig

	// Logging
	LogLevel  string
	LogFormat string

	// Monitoring
	MetricsEnabled bool
	MetricsPort    string
}

// RedisConfig holds Redis configuration.
type RedisConfig struct {
	Host     string
	Port     string
	Password string
	DB       int
	Enabled  bool
}

// DXLinkConfig holds the streaming venue configuration.
type DXLinkConfig struct {
	URL               string        // websocket endpoint
	TokenURL          string        // session-token issuing endpoint
	ClientID          string
	ClientSecret      string
	KeepaliveTimeout  time.Duration // session timeout negotiated in SETUP
	AggregationPeriod time.Duration // feed aggregation period
}

// MarketRESTConfig holds the snapshot/aggregates REST vendor configuration.
type MarketRESTConfig struct {
	BaseURL string
	APIKey  string
	Timeout time.Duration
}

// MarketConfig describes the exchange session this scanner trades.
type MarketConfig struct {
	MIC        string // ISO 10383 market identifier, e.g. "xnys"
	EODCapture string // exchange-local HH:MM for the once-daily EOD snapshot
}

// CacheConfig tunes the cache tiers.
type CacheConfig struct {
	QuoteFreshness  time.Duration // live quote freshness threshold
	QuoteGraceWait  time.Duration // wait after a live subscribe before reading
	BarTTL          time.Duration // rolling bar cache TTL
	BarLookbackDays int           // trading days kept in the rolling cache
	BarMinDays      int           // refresh rejected below this many days
	EODTTL          time.Duration
	UniverseTTL     time.Duration
	FetchPoolSize   int // max in-flight upstream fetches during a scan
}

// Load reads configuration from environment variables. This is the only
// function in the repository that calls os.Getenv.
func Load() (*Config, error) {
	loadEnvFile()

	cfg := &Config{
		Env: getEnv("ENV", "development"),

		Redis: RedisConfig{
			Host:     getEnv("REDIS_HOST", "localhost"),
			Port:     getEnv("REDIS_PORT", "6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvAsInt("REDIS_DB", 0),
			Enabled:  getEnvAsBool("REDIS_ENABLED", true),
		},

		DXLink: DXLinkConfig{
			URL:               getEnv("DXLINK_URL", "wss://tasty-openapi-ws.dxfeed.com/realtime"),
			TokenURL:          getEnv("DXLINK_TOKEN_URL", ""),
			ClientID:          getEnv("DXLINK_CLIENT_ID", ""),
			ClientSecret:      getEnv("DXLINK_CLIENT_SECRET", ""),
			KeepaliveTimeout:  getEnvAsDuration("DXLINK_KEEPALIVE_TIMEOUT", "60s"),
			AggregationPeriod: getEnvAsDuration("DXLINK_AGGREGATION_PERIOD", "1s"),
		},

		MarketREST: MarketRESTConfig{
			BaseURL: getEnv("MARKET_REST_BASE_URL", "https://api.polygon.io"),
			APIKey:  getEnv("MARKET_REST_API_KEY", ""),
			Timeout: getEnvAsDuration("MARKET_REST_TIMEOUT", "15s"),
		},

		Market: MarketConfig{
			MIC:        getEnv("MARKET_MIC", "xnys"),
			EODCapture: getEnv("MARKET_EOD_CAPTURE", "16:15"),
		},

		Cache: CacheConfig{
			QuoteFreshness:  getEnvAsDuration("CACHE_QUOTE_FRESHNESS", "10s"),
			QuoteGraceWait:  getEnvAsDuration("CACHE_QUOTE_GRACE_WAIT", "1500ms"),
			BarTTL:          getEnvAsDuration("CACHE_BAR_TTL", "24h"),
			BarLookbackDays: getEnvAsInt("CACHE_BAR_LOOKBACK_DAYS", 30),
			BarMinDays:      getEnvAsInt("CACHE_BAR_MIN_DAYS", 20),
			EODTTL:          getEnvAsDuration("CACHE_EOD_TTL", "24h"),
			UniverseTTL:     getEnvAsDuration("CACHE_UNIVERSE_TTL", "6h"),
			FetchPoolSize:   getEnvAsInt("SCAN_FETCH_POOL_SIZE", 8),
		},

		LogLevel:  getEnv("LOG_LEVEL", "info"),
		LogFormat: getEnv("LOG_FORMAT", "json"),

		MetricsEnabled: getEnvAsBool("METRICS_ENABLED", true),
		MetricsPort:    getEnv("METRICS_PORT", "9090"),
	}

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

// validate checks if required configuration values are set
func (c *Config) validate() error {
	if c.Env != "development" && c.Env != "staging" && c.Env != "production" {
		return fmt.Errorf("ENV must be one of: development, staging, production")
	}

	if c.Cache.BarMinDays <= 0 {
		return fmt.Errorf("CACHE_BAR_MIN_DAYS must be positive")
	}
	if c.Cache.BarLookbackDays < c.Cache.BarMinDays {
		return fmt.Errorf("CACHE_BAR_LOOKBACK_DAYS must be >= CACHE_BAR_MIN_DAYS")
	}
	if c.Cache.FetchPoolSize <= 0 {
		return fmt.Errorf("SCAN_FETCH_POOL_SIZE must be positive")
	}

	if _, err := time.Parse("15:04", c.Market.EODCapture); err != nil {
		return fmt.Errorf("MARKET_EOD_CAPTURE must be HH:MM: %w", err)
	}

	return nil
}

// Helper functions (private, only used within this file)

// loadEnvFile tries to load .env from multiple locations
func loadEnvFile() {
	paths := []string{
		".env",
	}

	// Also try relative to executable
	if exe, err := os.Executable(); err == nil {
		exeDir := filepath.Dir(exe)
		paths = append(paths,
			filepath.Join(exeDir, ".env"),
			filepath.Join(exeDir, "..", ".env"),
		)
	}

	for _, path := range paths {
		if _, err := os.Stat(path); err == nil {
			_ = godotenv.Load(path)
			return
		}
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}

	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return defaultValue
	}

	return value
}

func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}

	value, err := strconv.ParseBool(valueStr)
	if err != nil {
		return defaultValue
	}

	return value
}

func getEnvAsDuration(key string, defaultValue string) time.Duration {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		valueStr = defaultValue
	}

	duration, err := time.ParseDuration(valueStr)
	if err != nil {
		duration, _ = time.ParseDuration(defaultValue)
	}

	return duration
}
