package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type Config struct {
	Environment string          `mapstructure:"environment"`
	LogLevel    string          `mapstructure:"log_level"`
	Server      ServerConfig    `mapstructure:"server"`
	Database    DatabaseConfig  `mapstructure:"database"`
	Redis       RedisConfig     `mapstructure:"redis"`
	OpenAI      OpenAIConfig    `mapstructure:"openai"`
	Valuation   ValuationConfig `mapstructure:"valuation"`
	Agent       AgentConfig     `mapstructure:"agent"`
	Advisory    AdvisoryConfig  `mapstructure:"advisory"`
	Cache       CacheConfig     `mapstructure:"cache"`
	Forecast    ForecastConfig  `mapstructure:"forecast"`
	Market      MarketConfig    `mapstructure:"market"`
	Sentry      SentryConfig    `mapstructure:"sentry"`
	Telemetry   TelemetryConfig `mapstructure:"telemetry"`
}

type ServerConfig struct {
	Port           int      `mapstructure:"port"`
	AllowedOrigins []string `mapstructure:"allowed_origins"`
}

type DatabaseConfig struct {
	Host            string `mapstructure:"host"`
	Port            int    `mapstructure:"port"`
	User            string `mapstructure:"user"`
	Password        string `mapstructure:"password"`
	DBName          string `mapstructure:"dbname"`
	SSLMode         string `mapstructure:"sslmode"`
	DatabaseURL     string `mapstructure:"database_url"`
	MaxOpenConns    int    `mapstructure:"max_open_conns"`
	MaxIdleConns    int    `mapstructure:"max_idle_conns"`
	ConnMaxLifetime string `mapstructure:"conn_max_lifetime"`
	ConnMaxIdleTime string `mapstructure:"conn_max_idle_time"`
}

type RedisConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// OpenAIConfig configures the chat completion API used for advisory
// forecasts and for orchestrating the analysis.
type OpenAIConfig struct {
	APIKey      string        `mapstructure:"api_key" json:"-" yaml:"-"`
	BaseURL     string        `mapstructure:"base_url"`
	Model       string        `mapstructure:"model"`
	Temperature float32       `mapstructure:"temperature"`
	Timeout     time.Duration `mapstructure:"timeout"`
}

// ValuationConfig configures the model server client.
type ValuationConfig struct {
	ServiceURL     string        `mapstructure:"service_url"`
	Timeout        time.Duration `mapstructure:"timeout"`
	MaxRetries     uint64        `mapstructure:"max_retries"`
	RequestsPerSec int           `mapstructure:"requests_per_sec"`
}

type AgentConfig struct {
	MaxRounds int `mapstructure:"max_rounds"`
}

type AdvisoryConfig struct {
	Timeout                 time.Duration `mapstructure:"timeout"`
	BreakerFailureThreshold int           `mapstructure:"breaker_failure_threshold"`
	BreakerTimeout          time.Duration `mapstructure:"breaker_timeout"`
}

// CacheConfig selects the result cache backend and its lifetimes.
// Backend is one of redis, postgres or memory; ResetMode is applied once at
// startup and is one of full or forecast_errors.
type CacheConfig struct {
	Backend    string        `mapstructure:"backend"`
	TTL        time.Duration `mapstructure:"ttl"`
	SeedTTL    time.Duration `mapstructure:"seed_ttl"`
	ResetMode  string        `mapstructure:"reset_mode"`
	MemorySize int           `mapstructure:"memory_size"`
}

type ForecastConfig struct {
	DefaultLastPrice   float64 `mapstructure:"default_last_price"`
	DefaultMonthlyRate float64 `mapstructure:"default_monthly_rate"`
	SmoothingMinPoints int     `mapstructure:"smoothing_min_points"`
}

// MarketConfig holds the market reference prices. RegionalAveragePrices maps
// a lower-case region to the average price used in place of the industry
// average when positioning a valuation.
type MarketConfig struct {
	IndustryAveragePrice  float64            `mapstructure:"industry_average_price"`
	IndustryMinPrice      float64            `mapstructure:"industry_min_price"`
	IndustryMaxPrice      float64            `mapstructure:"industry_max_price"`
	RegionalAveragePrices map[string]float64 `mapstructure:"regional_average_prices"`
}

type SentryConfig struct {
	Enabled          bool    `mapstructure:"enabled"`
	DSN              string  `mapstructure:"dsn" json:"-" yaml:"-"`
	Environment      string  `mapstructure:"environment"`
	Release          string  `mapstructure:"release"`
	TracesSampleRate float64 `mapstructure:"traces_sample_rate"`
}

type TelemetryConfig struct {
	Enabled      bool    `mapstructure:"enabled"`
	OTLPEndpoint string  `mapstructure:"otlp_endpoint"`
	ServiceName  string  `mapstructure:"service_name"`
	SampleRate   float64 `mapstructure:"sample_rate"`
}

// Cache backends
const (
	CacheBackendRedis    = "redis"
	CacheBackendPostgres = "postgres"
	CacheBackendMemory   = "memory"
)

func Load() (*Config, error) {
	// A missing .env file is fine; real environment variables still apply.
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env file: %w", err)
	}

	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath("./configs")
	viper.AddConfigPath(".")

	// Set default values
	setDefaults()

	// Enable environment variable support
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	// Bind specific environment variables
	if err := viper.BindEnv("openai.api_key", "OPENAI_API_KEY"); err != nil {
		return nil, fmt.Errorf("failed to bind OPENAI_API_KEY environment variable: %w", err)
	}
	if err := viper.BindEnv("sentry.dsn", "SENTRY_DSN"); err != nil {
		return nil, fmt.Errorf("failed to bind SENTRY_DSN environment variable: %w", err)
	}
	if err := viper.BindEnv("database.database_url", "DATABASE_URL"); err != nil {
		return nil, fmt.Errorf("failed to bind DATABASE_URL environment variable: %w", err)
	}

	// Read config file
	if err := viper.ReadInConfig(); err != nil {
		// Config file not found, use defaults and environment variables
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, err
		}
	}

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, err
	}

	// Normalize environment to lowercase for consistent comparison
	config.Environment = strings.ToLower(config.Environment)
	config.Cache.Backend = strings.ToLower(strings.TrimSpace(config.Cache.Backend))

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return &config, nil
}

// Validate checks the settings that have no safe fallback.
func (c *Config) Validate() error {
	if c.Environment != "development" && c.OpenAI.APIKey == "" {
		return errors.New("OPENAI_API_KEY environment variable is required in non-development environments")
	}

	switch c.Cache.Backend {
	case CacheBackendRedis, CacheBackendPostgres, CacheBackendMemory:
	default:
		return fmt.Errorf("unknown cache backend %q", c.Cache.Backend)
	}

	switch strings.ToLower(strings.TrimSpace(c.Cache.ResetMode)) {
	case "", "full", "forecast_errors":
	default:
		return fmt.Errorf("unknown cache reset mode %q", c.Cache.ResetMode)
	}

	if c.Cache.TTL <= 0 || c.Cache.SeedTTL <= 0 {
		return errors.New("cache ttl and seed_ttl must be positive")
	}

	if c.Agent.MaxRounds < 1 {
		return fmt.Errorf("agent max_rounds must be at least 1, got %d", c.Agent.MaxRounds)
	}

	if c.Valuation.ServiceURL == "" {
		return errors.New("valuation service_url is required")
	}

	if c.Market.IndustryMinPrice > c.Market.IndustryMaxPrice {
		return fmt.Errorf("market industry_min_price %.2f exceeds industry_max_price %.2f",
			c.Market.IndustryMinPrice, c.Market.IndustryMaxPrice)
	}

	if c.Sentry.TracesSampleRate < 0 || c.Sentry.TracesSampleRate > 1 {
		return fmt.Errorf("sentry traces_sample_rate must be between 0 and 1, got %v", c.Sentry.TracesSampleRate)
	}

	return nil
}

func setDefaults() {
	// Environment
	viper.SetDefault("environment", "development")
	viper.SetDefault("log_level", "info")

	// Server
	viper.SetDefault("server.port", 8080)
	viper.SetDefault("server.allowed_origins", []string{"http://localhost:3000"})

	// Set database defaults
	viper.SetDefault("database.host", "localhost")
	viper.SetDefault("database.port", 5432)
	viper.SetDefault("database.user", "postgres")
	viper.SetDefault("database.password", "postgres")
	viper.SetDefault("database.dbname", "carprice")
	viper.SetDefault("database.sslmode", "disable")
	viper.SetDefault("database.database_url", "")
	viper.SetDefault("database.max_open_conns", 25)
	viper.SetDefault("database.max_idle_conns", 5)
	viper.SetDefault("database.conn_max_lifetime", "300s")
	viper.SetDefault("database.conn_max_idle_time", "60s")

	// Redis
	viper.SetDefault("redis.host", "localhost")
	viper.SetDefault("redis.port", 6379)
	viper.SetDefault("redis.password", "")
	viper.SetDefault("redis.db", 0)

	// OpenAI
	viper.SetDefault("openai.api_key", "")
	viper.SetDefault("openai.base_url", "")
	viper.SetDefault("openai.model", "gpt-4o-mini")
	viper.SetDefault("openai.temperature", 0.2)
	viper.SetDefault("openai.timeout", "60s")

	// Valuation model server
	viper.SetDefault("valuation.service_url", "http://localhost:8000")
	viper.SetDefault("valuation.timeout", "10s")
	viper.SetDefault("valuation.max_retries", 2)
	viper.SetDefault("valuation.requests_per_sec", 20)

	// Agent
	viper.SetDefault("agent.max_rounds", 12)

	// Advisory
	viper.SetDefault("advisory.timeout", "20s")
	viper.SetDefault("advisory.breaker_failure_threshold", 5)
	viper.SetDefault("advisory.breaker_timeout", "60s")

	// Cache
	viper.SetDefault("cache.backend", CacheBackendRedis)
	viper.SetDefault("cache.ttl", "1h")
	viper.SetDefault("cache.seed_ttl", "2160h")
	viper.SetDefault("cache.reset_mode", "full")
	viper.SetDefault("cache.memory_size", 1024)

	// Forecast
	viper.SetDefault("forecast.default_last_price", 18500.0)
	viper.SetDefault("forecast.default_monthly_rate", 0.003)
	viper.SetDefault("forecast.smoothing_min_points", 6)

	// Market
	viper.SetDefault("market.industry_average_price", 19384.0)
	viper.SetDefault("market.industry_min_price", 7995.0)
	viper.SetDefault("market.industry_max_price", 45000.0)
	viper.SetDefault("market.regional_average_prices", map[string]float64{})

	// Sentry
	viper.SetDefault("sentry.enabled", false)
	viper.SetDefault("sentry.dsn", "")
	viper.SetDefault("sentry.environment", "")
	viper.SetDefault("sentry.release", "")
	viper.SetDefault("sentry.traces_sample_rate", 0.1)

	// Telemetry
	viper.SetDefault("telemetry.enabled", false)
	viper.SetDefault("telemetry.otlp_endpoint", "http://localhost:4318")
	viper.SetDefault("telemetry.service_name", "carprice-ai")
	viper.SetDefault("telemetry.sample_rate", 1.0)
}
