package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// loadIn runs Load from an empty working directory so no stray config.yaml
// or .env file is picked up.
func loadIn(t *testing.T, dir string) (*Config, error) {
	t.Helper()
	viper.Reset()
	t.Cleanup(viper.Reset)

	wd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { _ = os.Chdir(wd) })

	return Load()
}

func validConfig() Config {
	return Config{
		Environment: "production",
		OpenAI:      OpenAIConfig{APIKey: "sk-test"},
		Valuation:   ValuationConfig{ServiceURL: "http://ml:8000"},
		Agent:       AgentConfig{MaxRounds: 12},
		Cache:       CacheConfig{Backend: CacheBackendRedis, TTL: time.Hour, SeedTTL: 2160 * time.Hour, ResetMode: "full"},
		Market:      MarketConfig{IndustryMinPrice: 7995, IndustryMaxPrice: 45000},
	}
}

func TestLoad_DefaultValues(t *testing.T) {
	config, err := loadIn(t, t.TempDir())
	require.NoError(t, err)
	require.NotNil(t, config)

	assert.Equal(t, "development", config.Environment)
	assert.Equal(t, "info", config.LogLevel)
	assert.Equal(t, 8080, config.Server.Port)
	assert.Equal(t, []string{"http://localhost:3000"}, config.Server.AllowedOrigins)
	assert.Equal(t, "localhost", config.Database.Host)
	assert.Equal(t, 5432, config.Database.Port)
	assert.Equal(t, "carprice", config.Database.DBName)
	assert.Equal(t, "disable", config.Database.SSLMode)
	assert.Equal(t, 6379, config.Redis.Port)

	assert.Equal(t, "gpt-4o-mini", config.OpenAI.Model)
	assert.Equal(t, 60*time.Second, config.OpenAI.Timeout)
	assert.Equal(t, "http://localhost:8000", config.Valuation.ServiceURL)
	assert.Equal(t, 10*time.Second, config.Valuation.Timeout)
	assert.Equal(t, uint64(2), config.Valuation.MaxRetries)
	assert.Equal(t, 12, config.Agent.MaxRounds)
	assert.Equal(t, 20*time.Second, config.Advisory.Timeout)
	assert.Equal(t, 5, config.Advisory.BreakerFailureThreshold)

	assert.Equal(t, CacheBackendRedis, config.Cache.Backend)
	assert.Equal(t, time.Hour, config.Cache.TTL)
	assert.Equal(t, 90*24*time.Hour, config.Cache.SeedTTL)
	assert.Equal(t, "full", config.Cache.ResetMode)

	assert.Equal(t, 18500.0, config.Forecast.DefaultLastPrice)
	assert.Equal(t, 0.003, config.Forecast.DefaultMonthlyRate)
	assert.Equal(t, 19384.0, config.Market.IndustryAveragePrice)
	assert.Equal(t, 7995.0, config.Market.IndustryMinPrice)
	assert.Equal(t, 45000.0, config.Market.IndustryMaxPrice)

	assert.False(t, config.Sentry.Enabled)
	assert.False(t, config.Telemetry.Enabled)
	assert.Equal(t, "carprice-ai", config.Telemetry.ServiceName)
}

func TestLoad_WithEnvironmentVariables(t *testing.T) {
	t.Setenv("ENVIRONMENT", "Production")
	t.Setenv("LOG_LEVEL", "error")
	t.Setenv("SERVER_PORT", "9000")
	t.Setenv("DATABASE_HOST", "prod-db.example.com")
	t.Setenv("REDIS_DB", "1")
	t.Setenv("OPENAI_API_KEY", "sk-prod")
	t.Setenv("OPENAI_MODEL", "gpt-4o")
	t.Setenv("VALUATION_SERVICE_URL", "http://ml.internal:8000")
	t.Setenv("AGENT_MAX_ROUNDS", "8")
	t.Setenv("CACHE_BACKEND", "Postgres")
	t.Setenv("CACHE_TTL", "30m")
	t.Setenv("CACHE_RESET_MODE", "forecast_errors")
	t.Setenv("SENTRY_DSN", "https://key@sentry.example.com/1")

	config, err := loadIn(t, t.TempDir())
	require.NoError(t, err)

	assert.Equal(t, "production", config.Environment)
	assert.Equal(t, "error", config.LogLevel)
	assert.Equal(t, 9000, config.Server.Port)
	assert.Equal(t, "prod-db.example.com", config.Database.Host)
	assert.Equal(t, 1, config.Redis.DB)
	assert.Equal(t, "sk-prod", config.OpenAI.APIKey)
	assert.Equal(t, "gpt-4o", config.OpenAI.Model)
	assert.Equal(t, "http://ml.internal:8000", config.Valuation.ServiceURL)
	assert.Equal(t, 8, config.Agent.MaxRounds)
	assert.Equal(t, CacheBackendPostgres, config.Cache.Backend)
	assert.Equal(t, 30*time.Minute, config.Cache.TTL)
	assert.Equal(t, "forecast_errors", config.Cache.ResetMode)
	assert.Equal(t, "https://key@sentry.example.com/1", config.Sentry.DSN)
}

func TestLoad_ConfigFile(t *testing.T) {
	dir := t.TempDir()
	yaml := `
environment: development
cache:
  backend: memory
  memory_size: 64
market:
  regional_average_prices:
    california: 21000
    texas: 18750
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(yaml), 0o600))

	config, err := loadIn(t, dir)
	require.NoError(t, err)

	assert.Equal(t, CacheBackendMemory, config.Cache.Backend)
	assert.Equal(t, 64, config.Cache.MemorySize)
	assert.Equal(t, 21000.0, config.Market.RegionalAveragePrices["california"])
	assert.Equal(t, 18750.0, config.Market.RegionalAveragePrices["texas"])
}

func TestLoad_DotEnv(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".env"), []byte("AGENT_MAX_ROUNDS=4\n"), 0o600))
	t.Cleanup(func() { _ = os.Unsetenv("AGENT_MAX_ROUNDS") })

	config, err := loadIn(t, dir)
	require.NoError(t, err)

	assert.Equal(t, 4, config.Agent.MaxRounds)
}

func TestLoad_ProductionRequiresAPIKey(t *testing.T) {
	t.Setenv("ENVIRONMENT", "production")
	t.Setenv("OPENAI_API_KEY", "")

	_, err := loadIn(t, t.TempDir())

	assert.ErrorContains(t, err, "OPENAI_API_KEY")
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{name: "valid", mutate: func(*Config) {}},
		{name: "development without key", mutate: func(c *Config) {
			c.Environment = "development"
			c.OpenAI.APIKey = ""
		}},
		{name: "unknown backend", mutate: func(c *Config) { c.Cache.Backend = "mongo" }, wantErr: "unknown cache backend"},
		{name: "unknown reset mode", mutate: func(c *Config) { c.Cache.ResetMode = "nuke" }, wantErr: "unknown cache reset mode"},
		{name: "zero ttl", mutate: func(c *Config) { c.Cache.TTL = 0 }, wantErr: "ttl"},
		{name: "zero rounds", mutate: func(c *Config) { c.Agent.MaxRounds = 0 }, wantErr: "max_rounds"},
		{name: "missing valuation url", mutate: func(c *Config) { c.Valuation.ServiceURL = "" }, wantErr: "service_url"},
		{name: "inverted industry range", mutate: func(c *Config) { c.Market.IndustryMinPrice = 50000 }, wantErr: "industry_min_price"},
		{name: "bad sample rate", mutate: func(c *Config) { c.Sentry.TracesSampleRate = 2 }, wantErr: "traces_sample_rate"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := validConfig()
			tt.mutate(&c)
			err := c.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			assert.ErrorContains(t, err, tt.wantErr)
		})
	}
}
