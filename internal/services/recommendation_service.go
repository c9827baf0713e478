package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/sirupsen/logrus"

	"github.com/irfndi/carprice-ai-go/internal/cache"
	"github.com/irfndi/carprice-ai-go/internal/logging"
	"github.com/irfndi/carprice-ai-go/internal/models"
	"github.com/irfndi/carprice-ai-go/internal/observability"
	"github.com/irfndi/carprice-ai-go/internal/telemetry"
)

// Query defaults applied when a caller leaves a listing attribute out.
const (
	DefaultMileage   = 50000
	DefaultCondition = "good"
	DefaultRegion    = "california"
)

// ErrInvalidQuery is returned for queries that fail validation.
var ErrInvalidQuery = errors.New("invalid vehicle query")

// Analyzer runs one full analysis for a query.
type Analyzer interface {
	Run(ctx context.Context, q models.VehicleQuery) (*models.AnalysisResult, error)
}

// RecommendationService is the request boundary: it consults the result
// cache, runs the analyzer on a miss and stores what it produced.
type RecommendationService struct {
	cache    *cache.ResultCache
	analyzer Analyzer
	validate *validator.Validate
	tracer   *telemetry.BusinessTracer
	logger   *logrus.Logger
}

// NewRecommendationService creates a recommendation service.
func NewRecommendationService(resultCache *cache.ResultCache, analyzer Analyzer, logger *logrus.Logger) *RecommendationService {
	if logger == nil {
		logger = logrus.New()
	}
	return &RecommendationService{
		cache:    resultCache,
		analyzer: analyzer,
		validate: validator.New(),
		tracer:   telemetry.NewBusinessTracer(),
		logger:   logger,
	}
}

// WithDefaults fills the condition and region a caller left empty. Mileage is
// left alone: zero is a real odometer reading, so absence has to be detected
// where the query is parsed.
func WithDefaults(q models.VehicleQuery) models.VehicleQuery {
	if strings.TrimSpace(q.Condition) == "" {
		q.Condition = DefaultCondition
	}
	if strings.TrimSpace(q.Region) == "" {
		q.Region = DefaultRegion
	}
	return q
}

// Validate normalizes q and checks it against the model constraints.
func (s *RecommendationService) Validate(q models.VehicleQuery) (models.VehicleQuery, error) {
	q = q.Normalize()
	if err := s.validate.Struct(q); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			fe := verrs[0]
			return q, fmt.Errorf("%w: %s failed %s", ErrInvalidQuery, strings.ToLower(fe.Field()), fe.Tag())
		}
		return q, fmt.Errorf("%w: %v", ErrInvalidQuery, err)
	}
	return q, nil
}

// Predict returns the recommendation for q, from the cache when a reusable
// entry exists. Valuation and reasoning failures are returned wrapped.
func (s *RecommendationService) Predict(ctx context.Context, q models.VehicleQuery) (*models.Prediction, error) {
	q, err := s.Validate(q)
	if err != nil {
		return nil, err
	}

	ctx, span := s.tracer.TraceAnalysis(ctx, q)
	defer span.Finish()

	lookupStart := time.Now()
	cached, ok := s.cache.Lookup(ctx, q)
	logging.LogCacheOperation(s.logger, "lookup", cache.Key(q), ok, time.Since(lookupStart).Milliseconds())
	if ok {
		s.tracer.RecordAnalysis(span, cached, true)
		p := models.NewPrediction(q, *cached)
		p.Cached = true
		return &p, nil
	}

	start := time.Now()
	result, err := s.analyzer.Run(ctx, q)
	if err != nil {
		s.tracer.RecordAnalysis(span, nil, false)
		observability.CaptureException(ctx, err)
		s.logger.WithFields(logrus.Fields{
			"item":  q.ItemKey.String(),
			"error": err.Error(),
		}).Error("Analysis failed")
		return nil, fmt.Errorf("analysis failed: %w", err)
	}
	s.tracer.RecordAnalysis(span, result, false)

	if _, err := s.cache.Save(ctx, q, *result); err != nil {
		s.logger.WithFields(logrus.Fields{
			"item":  q.ItemKey.String(),
			"error": err.Error(),
		}).Warn("Failed to cache analysis")
	}

	s.logger.WithFields(logrus.Fields{
		"item":           q.ItemKey.String(),
		"recommendation": result.Recommendation.Signal,
		"rounds":         result.Rounds,
		"duration_ms":    time.Since(start).Milliseconds(),
	}).Info("Analysis completed")

	p := models.NewPrediction(q, *result)
	return &p, nil
}
