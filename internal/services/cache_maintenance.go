package services

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/irfndi/carprice-ai-go/internal/cache"
	"github.com/irfndi/carprice-ai-go/internal/telemetry"
)

// SeedReport is the outcome of a forced seed refresh.
type SeedReport struct {
	Seeded          int    `json:"seeded"`
	TotalBuySignals int    `json:"total_buy_signals"`
	Message         string `json:"message"`
}

// ClearReport is the outcome of clearing the result cache.
type ClearReport struct {
	Deleted int    `json:"deleted"`
	Message string `json:"message"`
}

// CacheMaintenanceService handles startup resets, seeding and clearing of
// the result cache.
type CacheMaintenanceService struct {
	cache  *cache.ResultCache
	mode   cache.ResetMode
	tracer *telemetry.BusinessTracer
	logger *logrus.Logger
}

// NewCacheMaintenanceService creates a maintenance service resetting with mode.
func NewCacheMaintenanceService(resultCache *cache.ResultCache, mode cache.ResetMode, logger *logrus.Logger) *CacheMaintenanceService {
	if mode == "" {
		mode = cache.ResetFull
	}
	if logger == nil {
		logger = logrus.New()
	}
	return &CacheMaintenanceService{
		cache:  resultCache,
		mode:   mode,
		tracer: telemetry.NewBusinessTracer(),
		logger: logger,
	}
}

// StartupReset applies the configured reset mode. It runs once before the
// server accepts requests.
func (s *CacheMaintenanceService) StartupReset(ctx context.Context) (cache.ResetReport, error) {
	return s.Reset(ctx, s.mode)
}

// Reset removes the entries selected by mode and re-seeds the market.
func (s *CacheMaintenanceService) Reset(ctx context.Context, mode cache.ResetMode) (cache.ResetReport, error) {
	ctx, span := s.tracer.TraceCacheMaintenance(ctx, "reset")
	defer span.Finish()

	start := time.Now()
	report, err := s.cache.Reset(ctx, mode)
	s.tracer.RecordCacheMaintenance(span, report.Deleted, report.Seeded, err)
	if err != nil {
		return report, fmt.Errorf("cache reset: %w", err)
	}

	s.logger.WithFields(logrus.Fields{
		"mode":        report.Mode,
		"deleted":     report.Deleted,
		"seeded":      report.Seeded,
		"duration_ms": time.Since(start).Milliseconds(),
	}).Info("Cleared stale prediction cache entries")
	return report, nil
}

// SeedMarket force-refreshes every seed and reports the BUY signals now cached.
func (s *CacheMaintenanceService) SeedMarket(ctx context.Context) (*SeedReport, error) {
	ctx, span := s.tracer.TraceCacheMaintenance(ctx, "seed")
	defer span.Finish()

	seeded, err := s.cache.SeedMarket(ctx, true)
	if err != nil {
		s.tracer.RecordCacheMaintenance(span, 0, seeded, err)
		return nil, fmt.Errorf("seed market: %w", err)
	}
	total, err := s.cache.CountBuySignals(ctx)
	s.tracer.RecordCacheMaintenance(span, 0, seeded, err)
	if err != nil {
		return nil, fmt.Errorf("count buy signals: %w", err)
	}

	return &SeedReport{
		Seeded:          seeded,
		TotalBuySignals: total,
		Message:         fmt.Sprintf("Refreshed %d seed entries. %d total BUY signals in cache.", seeded, total),
	}, nil
}

// Clear removes every cached analysis, seeds included.
func (s *CacheMaintenanceService) Clear(ctx context.Context) (*ClearReport, error) {
	ctx, span := s.tracer.TraceCacheMaintenance(ctx, "clear")
	defer span.Finish()

	deleted, err := s.cache.Clear(ctx)
	s.tracer.RecordCacheMaintenance(span, deleted, 0, err)
	if err != nil {
		return nil, err
	}

	s.logger.WithField("deleted", deleted).Info("Predictions cache cleared")
	return &ClearReport{Deleted: deleted, Message: "Predictions cache cleared"}, nil
}

// Stats returns the result cache lookup counters.
func (s *CacheMaintenanceService) Stats() cache.Stats {
	return s.cache.GetStats()
}
