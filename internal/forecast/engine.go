package forecast

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/irfndi/carprice-ai-go/internal/models"
)

const (
	horizon30 = 30
	horizon90 = 90
)

// HistoryProvider supplies monthly price series.
// An empty slice is a valid answer meaning "no data".
type HistoryProvider interface {
	GetHistory(ctx context.Context, item models.ItemKey) ([]models.HistoryPoint, error)
	GetMarketWideHistory(ctx context.Context) ([]models.HistoryPoint, error)
}

// Config holds the fallback constants the tiers fall back to
type Config struct {
	DefaultLastPrice   float64
	DefaultMonthlyRate float64
}

// DefaultConfig returns the industry constants.
func DefaultConfig() Config {
	return Config{
		DefaultLastPrice:   models.DefaultLastPrice,
		DefaultMonthlyRate: models.DefaultMonthlyRate,
	}
}

// Engine selects a forecasting tier from the amount of history available
type Engine struct {
	config  Config
	history HistoryProvider
	model   SeasonalModel
	logger  *logrus.Logger
}

// NewEngine creates a new forecast engine.
func NewEngine(cfg Config, history HistoryProvider, model SeasonalModel, logger *logrus.Logger) *Engine {
	if cfg.DefaultLastPrice <= 0 {
		cfg.DefaultLastPrice = models.DefaultLastPrice
	}
	if cfg.DefaultMonthlyRate == 0 {
		cfg.DefaultMonthlyRate = models.DefaultMonthlyRate
	}
	if model == nil {
		model = NewTrendSeasonalModel(0)
	}
	if logger == nil {
		logger = logrus.New()
	}
	return &Engine{config: cfg, history: history, model: model, logger: logger}
}

// History returns the item's monthly series as stored.
func (e *Engine) History(ctx context.Context, item models.ItemKey) ([]models.HistoryPoint, error) {
	points, err := e.history.GetHistory(ctx, item.Normalize())
	if err != nil {
		return nil, fmt.Errorf("failed to get price history: %w", err)
	}
	return points, nil
}

// ForecastItem fetches the item history (and the market-wide series when the
// item has none) and runs Forecast over it.
func (e *Engine) ForecastItem(ctx context.Context, item models.ItemKey) (models.ForecastResult, error) {
	points, err := e.History(ctx, item)
	if err != nil {
		return models.ForecastResult{}, err
	}

	var marketWide []models.HistoryPoint
	if len(validPoints(points)) == 0 {
		marketWide, err = e.history.GetMarketWideHistory(ctx)
		if err != nil {
			return models.ForecastResult{}, fmt.Errorf("failed to get market-wide history: %w", err)
		}
	}

	result := e.Forecast(points, marketWide)
	e.logger.WithFields(logrus.Fields{
		"item":    item.String(),
		"points":  len(points),
		"method":  result.Method,
		"pct_30d": result.TrendPct30d,
	}).Debug("Forecast computed")
	return result, nil
}

// Forecast picks the tier from the count of valid points and produces a
// fully populated result. It never fails; a seasonal fit error degrades to
// the linear tier and is recorded in the result's Error marker.
func (e *Engine) Forecast(history, marketWide []models.HistoryPoint) models.ForecastResult {
	points := validPoints(history)
	n := len(points)

	switch {
	case n == 0:
		market := validPoints(marketWide)
		if len(market) == 0 {
			return compound(e.config.DefaultLastPrice, e.config.DefaultMonthlyRate,
				models.MethodIndustryDefault, "Industry default estimate (no market data yet)")
		}
		last := market[len(market)-1].AveragePrice
		rate := e.config.DefaultMonthlyRate
		if len(market) >= 2 {
			if prev := market[len(market)-2].AveragePrice; prev != 0 {
				rate = (last - prev) / prev
			}
		}
		return compound(last, rate, models.MethodMarketAvg,
			"Market-wide trend estimate (no model-specific price history)")

	case n < 3:
		return e.linear(points)

	default:
		result, err := e.seasonal(points)
		if err != nil {
			e.logger.WithError(err).Warn("Seasonal model failed, using linear extrapolation")
			fallback := e.linear(points)
			fallback.Error = err.Error()
			return fallback
		}
		return result
	}
}

func (e *Engine) linear(points []models.HistoryPoint) models.ForecastResult {
	first := points[0].AveragePrice
	last := points[len(points)-1].AveragePrice
	rate := e.config.DefaultMonthlyRate
	if first != 0 {
		months := math.Max(1, float64(len(points)-1))
		rate = (last - first) / first / months
	}
	return compound(last, rate, models.MethodLinear,
		fmt.Sprintf("Linear extrapolation (only %d months of data)", len(points)))
}

func (e *Engine) seasonal(points []models.HistoryPoint) (models.ForecastResult, error) {
	preds, err := e.model.Predict(points, horizon90)
	if err != nil {
		return models.ForecastResult{}, fmt.Errorf("seasonal model: %w", err)
	}
	if len(preds) == 0 {
		return models.ForecastResult{}, fmt.Errorf("seasonal model: %w", ErrInsufficientHistory)
	}

	lastPrice := points[len(points)-1].AveragePrice
	lastDate := points[len(points)-1].Period

	f30 := models.Round2(nearest(preds, lastDate.AddDate(0, 0, horizon30)))
	f90 := models.Round2(nearest(preds, lastDate.AddDate(0, 0, horizon90)))
	pct30 := models.PctChange(lastPrice, f30)
	pct90 := models.PctChange(lastPrice, f90)

	peak := preds[0]
	for _, p := range preds[1:] {
		if p.Date.After(lastDate) && p.Price > peak.Price {
			peak = p
		}
	}

	return models.ForecastResult{
		LastKnownPrice:  models.Round2(lastPrice),
		Forecast30d:     f30,
		Forecast90d:     f90,
		TrendDirection:  direction(pct30),
		TrendPct30d:     pct30,
		TrendPct90d:     pct90,
		SeasonalityNote: fmt.Sprintf("Prices expected to peak around %s in the forecast window", peak.Date.Month()),
		Method:          models.MethodSeasonalModel,
	}, nil
}

// compound projects last by rate per month for one and three months.
func compound(last, rate float64, method models.ForecastMethod, note string) models.ForecastResult {
	growth90 := math.Pow(1+rate, 3)
	pct30 := models.Round2(rate * 100)
	return models.ForecastResult{
		LastKnownPrice:  models.Round2(last),
		Forecast30d:     models.Round2(last * (1 + rate)),
		Forecast90d:     models.Round2(last * growth90),
		TrendDirection:  direction(pct30),
		TrendPct30d:     pct30,
		TrendPct90d:     models.Round2((growth90 - 1) * 100),
		SeasonalityNote: note,
		Method:          method,
	}
}

func direction(pct30 float64) models.TrendDirection {
	if pct30 > 0 {
		return models.TrendRising
	}
	return models.TrendFalling
}

// nearest returns the predicted price on the day closest to target.
func nearest(preds []Prediction, target time.Time) float64 {
	best := preds[0]
	bestGap := math.Abs(preds[0].Date.Sub(target).Hours())
	for _, p := range preds[1:] {
		if gap := math.Abs(p.Date.Sub(target).Hours()); gap < bestGap {
			best, bestGap = p, gap
		}
	}
	return best.Price
}

// validPoints drops points without a usable period or price.
func validPoints(points []models.HistoryPoint) []models.HistoryPoint {
	out := make([]models.HistoryPoint, 0, len(points))
	for _, p := range points {
		if p.Period.IsZero() || math.IsNaN(p.AveragePrice) || math.IsInf(p.AveragePrice, 0) || p.AveragePrice < 0 {
			continue
		}
		out = append(out, p)
	}
	return out
}
