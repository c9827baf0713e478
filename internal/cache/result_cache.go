package cache

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/irfndi/carprice-ai-go/internal/models"
)

// Default lifetimes of cached analyses and seeds.
const (
	DefaultTTL     = time.Hour
	DefaultSeedTTL = 90 * 24 * time.Hour
)

// Config holds the result cache lifetimes
type Config struct {
	TTL     time.Duration
	SeedTTL time.Duration
}

// Stats tracks result cache lookups
type Stats struct {
	Hits     int64 `json:"hits"`
	Misses   int64 `json:"misses"`
	Rejected int64 `json:"rejected"`
	Sets     int64 `json:"sets"`
}

// ResetReport describes what a reset removed and refreshed
type ResetReport struct {
	Mode    ResetMode `json:"mode"`
	Deleted int       `json:"deleted"`
	Seeded  int       `json:"seeded"`
}

// ResultCache applies the staleness policy on top of a Store.
type ResultCache struct {
	store  Store
	config Config
	seeds  []Seed
	logger *logrus.Logger
	now    func() time.Time

	mu    sync.Mutex
	stats Stats
}

// NewResultCache creates a result cache over store with the built-in seeds.
func NewResultCache(store Store, cfg Config, logger *logrus.Logger) *ResultCache {
	if cfg.TTL <= 0 {
		cfg.TTL = DefaultTTL
	}
	if cfg.SeedTTL <= 0 {
		cfg.SeedTTL = DefaultSeedTTL
	}
	if logger == nil {
		logger = logrus.New()
	}
	return &ResultCache{
		store:  store,
		config: cfg,
		seeds:  DefaultSeeds(),
		logger: logger,
		now:    time.Now,
	}
}

// Seeds returns the seed definitions this cache maintains.
func (c *ResultCache) Seeds() []Seed {
	return append([]Seed(nil), c.seeds...)
}

// Lookup returns a copy of the cached analysis for q when it may be reused.
// Store failures are logged and reported as a miss.
func (c *ResultCache) Lookup(ctx context.Context, q models.VehicleQuery) (*models.AnalysisResult, bool) {
	key := Key(q)
	entry, err := c.store.Get(ctx, key)
	if err != nil {
		if !errors.Is(err, ErrNotFound) {
			c.logger.WithFields(logrus.Fields{
				"cache_key": key,
				"error":     err.Error(),
			}).Warn("Result cache lookup failed")
		}
		c.record(func(s *Stats) { s.Misses++ })
		return nil, false
	}

	if !Reusable(*entry, c.now()) {
		c.logger.WithFields(logrus.Fields{
			"cache_key":      key,
			"recommendation": entry.Result.Recommendation.Signal,
		}).Debug("Cached analysis rejected as stale")
		c.record(func(s *Stats) { s.Rejected++ })
		return nil, false
	}

	c.record(func(s *Stats) { s.Hits++ })
	result := entry.Result.Clone()
	return &result, true
}

// Save stores result under the key of q for the configured TTL, replacing
// any previous entry.
func (c *ResultCache) Save(ctx context.Context, q models.VehicleQuery, result models.AnalysisResult) (models.CacheEntry, error) {
	now := c.now()
	entry := models.CacheEntry{
		Key:       Key(q),
		Query:     q.Normalize(),
		Result:    result.Clone(),
		CreatedAt: now,
		ExpiresAt: now.Add(c.config.TTL),
	}
	if err := c.store.Put(ctx, entry); err != nil {
		return models.CacheEntry{}, fmt.Errorf("failed to save analysis: %w", err)
	}
	c.record(func(s *Stats) { s.Sets++ })
	return entry.Clone(), nil
}

// SeedMarket writes the seed entries. Without force, seeds that are present
// and unexpired are left alone. It returns the number written.
func (c *ResultCache) SeedMarket(ctx context.Context, force bool) (int, error) {
	now := c.now()
	seeded := 0
	for _, seed := range c.seeds {
		entry := seed.Entry(now, c.config.SeedTTL)
		if !force {
			existing, err := c.store.Get(ctx, entry.Key)
			if err == nil && !existing.Expired(now) {
				continue
			}
			if err != nil && !errors.Is(err, ErrNotFound) {
				return seeded, fmt.Errorf("failed to check seed %s: %w", entry.Key, err)
			}
		}
		if err := c.store.Put(ctx, entry); err != nil {
			return seeded, fmt.Errorf("failed to write seed %s: %w", entry.Key, err)
		}
		seeded++
	}
	return seeded, nil
}

// Reset clears the cache according to mode. ResetFull removes every
// non-seed entry and force-refreshes the seeds; ResetForecastErrors removes
// only entries whose forecast step errored and fills missing seeds.
func (c *ResultCache) Reset(ctx context.Context, mode ResetMode) (ResetReport, error) {
	report := ResetReport{Mode: mode}

	var pred Predicate
	force := false
	switch mode {
	case ResetFull:
		pred = func(e models.CacheEntry) bool { return !e.IsSeed }
		force = true
	case ResetForecastErrors:
		pred = func(e models.CacheEntry) bool { return ForecastErrored(e.Result) }
	default:
		return report, fmt.Errorf("unknown cache reset mode %q", mode)
	}

	deleted, err := c.store.DeleteWhere(ctx, pred)
	if err != nil {
		return report, fmt.Errorf("failed to delete cache entries: %w", err)
	}
	report.Deleted = deleted

	seeded, err := c.SeedMarket(ctx, force)
	report.Seeded = seeded
	if err != nil {
		return report, err
	}

	c.logger.WithFields(logrus.Fields{
		"mode":    mode,
		"deleted": deleted,
		"seeded":  seeded,
	}).Info("Result cache reset")
	return report, nil
}

// Clear deletes every entry, seeds included.
func (c *ResultCache) Clear(ctx context.Context) (int, error) {
	deleted, err := c.store.DeleteWhere(ctx, All)
	if err != nil {
		return 0, fmt.Errorf("failed to clear cache: %w", err)
	}
	return deleted, nil
}

// Entries returns copies of every unexpired entry.
func (c *ResultCache) Entries(ctx context.Context) ([]models.CacheEntry, error) {
	all, err := c.store.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list cache entries: %w", err)
	}
	now := c.now()
	out := make([]models.CacheEntry, 0, len(all))
	for _, e := range all {
		if !e.Expired(now) {
			out = append(out, e.Clone())
		}
	}
	return out, nil
}

// CountBuySignals counts unexpired BUY entries.
func (c *ResultCache) CountBuySignals(ctx context.Context) (int, error) {
	now := c.now()
	return c.store.Count(ctx, func(e models.CacheEntry) bool {
		return !e.Expired(now) && e.Result.Recommendation.Signal == models.SignalBuy
	})
}

// CountSeeds counts unexpired seed BUY entries.
func (c *ResultCache) CountSeeds(ctx context.Context) (int, error) {
	now := c.now()
	return c.store.Count(ctx, func(e models.CacheEntry) bool {
		return e.IsSeed && !e.Expired(now) && e.Result.Recommendation.Signal == models.SignalBuy
	})
}

// GetStats returns a snapshot of the lookup counters.
func (c *ResultCache) GetStats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.stats
}

func (c *ResultCache) record(fn func(*Stats)) {
	c.mu.Lock()
	fn(&c.stats)
	c.mu.Unlock()
}
