package recommendation

import (
	"fmt"
	"math"
	"strings"

	"github.com/irfndi/carprice-ai-go/internal/models"
)

// Input is everything the synthesizer decides on. Zero values mean "not available".
type Input struct {
	TrendDirection   models.TrendDirection `json:"trend_direction" validate:"required"`
	TrendPct         float64               `json:"trend_pct_change"`
	PriceVsMedianPct float64               `json:"price_vs_median_pct"`
	InventoryTrend   models.TrendDirection `json:"inventory_trend" validate:"required"`
	PredictedPrice   float64               `json:"predicted_price" validate:"gte=0"`
	Region           string                `json:"region,omitempty"`

	StatForecast30d float64 `json:"stat_forecast_30d" validate:"gte=0"`
	StatForecast90d float64 `json:"stat_forecast_90d" validate:"gte=0"`

	AdvisoryForecast30d float64               `json:"llm_forecast_30d" validate:"gte=0"`
	AdvisoryForecast90d float64               `json:"llm_forecast_90d" validate:"gte=0"`
	AdvisoryTrend       models.TrendDirection `json:"llm_trend_direction,omitempty"`
	AdvisoryBestTime    models.BestTimeToBuy  `json:"llm_best_time_to_buy,omitempty"`
	AdvisoryKeyInsight  string                `json:"llm_key_insight,omitempty"`
}

// Config holds the market reference used when no market data exists for an item
type Config struct {
	IndustryAveragePrice float64
	// RegionalAveragePrices overrides IndustryAveragePrice for a region (lower-case name).
	RegionalAveragePrices map[string]float64
	DefaultLastPrice      float64
}

// Synthesizer turns forecasts and market position into a signal.
// It holds only configuration, so Synthesize is a pure function of its input.
type Synthesizer struct {
	config Config
}

// NewSynthesizer creates a Synthesizer, filling unset references with industry constants.
func NewSynthesizer(cfg Config) *Synthesizer {
	if cfg.IndustryAveragePrice <= 0 {
		cfg.IndustryAveragePrice = models.IndustryAveragePrice
	}
	if cfg.DefaultLastPrice <= 0 {
		cfg.DefaultLastPrice = models.DefaultLastPrice
	}
	regional := make(map[string]float64, len(cfg.RegionalAveragePrices))
	for region, price := range cfg.RegionalAveragePrices {
		if price > 0 {
			regional[strings.ToLower(strings.TrimSpace(region))] = price
		}
	}
	cfg.RegionalAveragePrices = regional
	return &Synthesizer{config: cfg}
}

type blended struct {
	forecast30d float64
	forecast90d float64
	method      models.BlendMethod
	trend       models.TrendDirection
	pct         float64
}

// Synthesize produces the recommendation for in.
func (s *Synthesizer) Synthesize(in Input) models.Recommendation {
	b := s.blend(in)
	pctVsMedian := s.marketPosition(in)
	trendPct := b.pct

	var signal models.Signal
	var confidence models.Confidence
	var rationale string

	switch {
	case b.trend == models.TrendRising && pctVsMedian < 0:
		signal = models.SignalBuy
		confidence = models.ConfidenceModerate
		if pctVsMedian < models.HighConfidenceDiscountPct {
			confidence = models.ConfidenceHigh
		}
		if in.AdvisoryBestTime == models.BuyNow && confidence == models.ConfidenceModerate {
			confidence = models.ConfidenceHigh
		}
		rationale = fmt.Sprintf("Prices are %s (%+.1f%% over 30 days) and this listing is %.1f%% below the market median, so buy before prices climb further.",
			b.trend, trendPct, math.Abs(pctVsMedian))

	case b.trend == models.TrendFalling && trendPct < models.WaitTrendPct:
		signal = models.SignalWait
		confidence = models.ConfidenceModerate
		if trendPct < models.HighConfidenceFallPct {
			confidence = models.ConfidenceHigh
		}
		rationale = fmt.Sprintf("Prices are falling (%+.1f%% over 30 days); waiting could save you money in the near term.", trendPct)

	default:
		signal = models.SignalNeutral
		confidence = models.ConfidenceLow
		rationale = fmt.Sprintf("Market trend is flat (%+.1f%%) and this listing is %+.1f%% vs the median, with no strong signal either way.",
			trendPct, pctVsMedian)
		switch {
		case in.AdvisoryBestTime == models.BuyNow && pctVsMedian < models.AdvisoryBuyDiscountPct:
			signal, confidence = models.SignalBuy, models.ConfidenceModerate
			rationale = fmt.Sprintf("Market trend is flat (%+.1f%%), but the advisory forecast says buy now and this listing is %.1f%% below the median.",
				trendPct, math.Abs(pctVsMedian))
		case in.AdvisoryBestTime == models.BuyWait && trendPct < 0:
			signal, confidence = models.SignalWait, models.ConfidenceModerate
			rationale = fmt.Sprintf("Market trend is flat (%+.1f%%), but prices are edging down and the advisory forecast says waiting should pay off.",
				trendPct)
		}
	}

	if in.AdvisoryKeyInsight != "" {
		rationale += " " + in.AdvisoryKeyInsight
	}

	return models.Recommendation{
		Signal:           signal,
		Confidence:       confidence,
		Rationale:        rationale,
		PredictedPrice:   models.Round2(in.PredictedPrice),
		Forecast30d:      b.forecast30d,
		Forecast90d:      b.forecast90d,
		ForecastMethod:   b.method,
		KeyInsight:       in.AdvisoryKeyInsight,
		PriceVsMedianPct: pctVsMedian,
	}
}

// blend combines statistical and advisory forecasts and derives the
// effective trend the decision rules run on.
func (s *Synthesizer) blend(in Input) blended {
	switch {
	case in.AdvisoryForecast30d > 0 && in.StatForecast30d > 0:
		b := blended{
			forecast30d: models.Round2(models.StatWeight30d*in.StatForecast30d + models.AdvisoryWeight30d*in.AdvisoryForecast30d),
			forecast90d: models.Round2(models.StatWeight90d*in.StatForecast90d + models.AdvisoryWeight90d*in.AdvisoryForecast90d),
			method:      models.BlendLLM,
			trend:       in.TrendDirection,
			pct:         in.TrendPct,
		}
		if in.AdvisoryTrend != "" {
			b.trend = in.AdvisoryTrend
		}
		if in.PredictedPrice != 0 {
			b.pct = models.PctChange(in.PredictedPrice, b.forecast30d)
		}
		return b

	case in.StatForecast30d > 0:
		return blended{
			forecast30d: models.Round2(in.StatForecast30d),
			forecast90d: models.Round2(in.StatForecast90d),
			method:      models.BlendStatistical,
			trend:       in.TrendDirection,
			pct:         in.TrendPct,
		}

	default:
		p := in.PredictedPrice
		if p == 0 {
			p = s.config.DefaultLastPrice
		}
		growth := 1 + in.TrendPct/100
		return blended{
			forecast30d: models.Round2(p * growth),
			forecast90d: models.Round2(p * math.Pow(growth, 3)),
			method:      models.BlendEstimated,
			trend:       in.TrendDirection,
			pct:         in.TrendPct,
		}
	}
}

// marketPosition returns the percent-vs-median to decide on, substituting a
// valuation-vs-average proxy when the market context carries no data.
func (s *Synthesizer) marketPosition(in Input) float64 {
	noMarketData := in.InventoryTrend == models.TrendUnknown && in.PriceVsMedianPct == 0 && in.PredictedPrice > 0
	if !noMarketData {
		return in.PriceVsMedianPct
	}
	return models.PctChange(s.referencePrice(in.Region), in.PredictedPrice)
}

func (s *Synthesizer) referencePrice(region string) float64 {
	if price, ok := s.config.RegionalAveragePrices[strings.ToLower(strings.TrimSpace(region))]; ok {
		return price
	}
	return s.config.IndustryAveragePrice
}
