package app

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/irfndi/carprice-ai-go/internal/advisory"
	"github.com/irfndi/carprice-ai-go/internal/agent"
	"github.com/irfndi/carprice-ai-go/internal/cache"
	"github.com/irfndi/carprice-ai-go/internal/config"
	"github.com/irfndi/carprice-ai-go/internal/database"
	"github.com/irfndi/carprice-ai-go/internal/forecast"
	"github.com/irfndi/carprice-ai-go/internal/llm"
	"github.com/irfndi/carprice-ai-go/internal/recommendation"
	"github.com/irfndi/carprice-ai-go/internal/resilience"
	"github.com/irfndi/carprice-ai-go/internal/services"
	"github.com/irfndi/carprice-ai-go/internal/valuation"
)

// Container owns every long-lived component. Components receive their
// dependencies through constructors; nothing is global.
type Container struct {
	Config *config.Config
	Logger *logrus.Logger

	Postgres *database.PostgresDB
	Redis    *database.RedisClient

	ResultCache  *cache.ResultCache
	Orchestrator *agent.Orchestrator

	Recommendations *services.RecommendationService
	Market          *services.MarketService
	Maintenance     *services.CacheMaintenanceService
	Health          *services.HealthService
}

// Infrastructure holds the connections a container is built on.
type Infrastructure struct {
	Pool     database.DatabasePool
	Postgres *database.PostgresDB
	Redis    *database.RedisClient
	// Store overrides the backend selected by config.
	Store cache.Store
}

// New connects to Postgres (and Redis when it backs the cache), ensures the
// schema and builds the container.
func New(ctx context.Context, cfg *config.Config, logger *logrus.Logger) (*Container, error) {
	pg, err := database.NewPostgresConnection(ctx, cfg.Database)
	if err != nil {
		return nil, err
	}
	if err := database.EnsureSchema(ctx, pg.Pool); err != nil {
		pg.Close()
		return nil, err
	}

	infra := Infrastructure{Pool: pg.Pool, Postgres: pg}
	if cfg.Cache.Backend == config.CacheBackendRedis {
		rc, err := database.NewRedisConnection(ctx, cfg.Redis)
		if err != nil {
			pg.Close()
			return nil, err
		}
		infra.Redis = rc
	}

	c, err := Build(cfg, logger, infra)
	if err != nil {
		infra.close()
		return nil, err
	}
	return c, nil
}

// Build wires the components over already open infrastructure.
func Build(cfg *config.Config, logger *logrus.Logger, infra Infrastructure) (*Container, error) {
	if logger == nil {
		logger = logrus.New()
	}

	store := infra.Store
	if store == nil {
		var err error
		store, err = newStore(cfg, logger, infra)
		if err != nil {
			return nil, err
		}
	}

	resultCache := cache.NewResultCache(store, cache.Config{
		TTL:     cfg.Cache.TTL,
		SeedTTL: cfg.Cache.SeedTTL,
	}, logger)

	resetMode, err := cache.ParseResetMode(cfg.Cache.ResetMode)
	if err != nil {
		return nil, err
	}

	history := database.NewHistoryRepository(infra.Pool)
	market := database.NewMarketRepository(infra.Pool, database.MarketConfig{
		IndustryMinPrice: cfg.Market.IndustryMinPrice,
		IndustryMaxPrice: cfg.Market.IndustryMaxPrice,
	})

	engine := forecast.NewEngine(forecast.Config{
		DefaultLastPrice:   cfg.Forecast.DefaultLastPrice,
		DefaultMonthlyRate: cfg.Forecast.DefaultMonthlyRate,
	}, history, forecast.NewTrendSeasonalModel(cfg.Forecast.SmoothingMinPoints), logger)

	llmClient := llm.NewClient(llm.Config{
		APIKey:      cfg.OpenAI.APIKey,
		BaseURL:     cfg.OpenAI.BaseURL,
		Model:       cfg.OpenAI.Model,
		Temperature: cfg.OpenAI.Temperature,
		Timeout:     cfg.OpenAI.Timeout,
	}, logger)

	breaker := resilience.NewCircuitBreaker("advisory", resilience.CircuitBreakerConfig{
		FailureThreshold: cfg.Advisory.BreakerFailureThreshold,
		Timeout:          cfg.Advisory.BreakerTimeout,
	}, logger)

	registry, err := agent.NewDefaultRegistry(agent.Dependencies{
		Forecaster: engine,
		Valuation: valuation.NewClient(valuation.Options{
			BaseURL:        cfg.Valuation.ServiceURL,
			Timeout:        cfg.Valuation.Timeout,
			MaxRetries:     cfg.Valuation.MaxRetries,
			RequestsPerSec: cfg.Valuation.RequestsPerSec,
		}, logger),
		Market:   market,
		Advisory: advisory.NewProvider(llmClient, breaker, cfg.Advisory.Timeout, logger),
		Synthesizer: recommendation.NewSynthesizer(recommendation.Config{
			IndustryAveragePrice:  cfg.Market.IndustryAveragePrice,
			RegionalAveragePrices: cfg.Market.RegionalAveragePrices,
			DefaultLastPrice:      cfg.Forecast.DefaultLastPrice,
		}),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to build action registry: %w", err)
	}

	orchestrator := agent.NewOrchestrator(llmClient, registry, agent.Config{MaxRounds: cfg.Agent.MaxRounds}, logger)

	health := services.NewHealthService("postgres", 5*time.Second)
	if infra.Postgres != nil {
		health.Register("postgres", infra.Postgres)
	}
	if infra.Redis != nil {
		health.Register("redis", infra.Redis)
	}

	return &Container{
		Config:          cfg,
		Logger:          logger,
		Postgres:        infra.Postgres,
		Redis:           infra.Redis,
		ResultCache:     resultCache,
		Orchestrator:    orchestrator,
		Recommendations: services.NewRecommendationService(resultCache, orchestrator, logger),
		Market:          services.NewMarketService(resultCache, market, logger),
		Maintenance:     services.NewCacheMaintenanceService(resultCache, resetMode, logger),
		Health:          health,
	}, nil
}

func newStore(cfg *config.Config, logger *logrus.Logger, infra Infrastructure) (cache.Store, error) {
	switch cfg.Cache.Backend {
	case config.CacheBackendRedis:
		if infra.Redis == nil {
			return nil, fmt.Errorf("cache backend %q needs a redis connection", cfg.Cache.Backend)
		}
		return cache.NewRedisStore(infra.Redis.Client, logger), nil
	case config.CacheBackendPostgres:
		if infra.Pool == nil {
			return nil, fmt.Errorf("cache backend %q needs a postgres pool", cfg.Cache.Backend)
		}
		return database.NewRecommendationRepository(infra.Pool), nil
	case config.CacheBackendMemory:
		store, err := cache.NewMemoryStore(cfg.Cache.MemorySize)
		if err != nil {
			return nil, err
		}
		return store, nil
	}
	return nil, fmt.Errorf("unknown cache backend %q", cfg.Cache.Backend)
}

func (i Infrastructure) close() {
	if i.Redis != nil {
		i.Redis.Close()
	}
	if i.Postgres != nil {
		i.Postgres.Close()
	}
}

// Close releases the connections the container opened.
func (c *Container) Close() {
	Infrastructure{Postgres: c.Postgres, Redis: c.Redis}.close()
}
