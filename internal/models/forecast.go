package models

import "time"

// TrendDirection is the direction of a forecast or advisory trend call
type TrendDirection string

const (
	TrendRising  TrendDirection = "rising"
	TrendFalling TrendDirection = "falling"
	TrendStable  TrendDirection = "stable"
	TrendUnknown TrendDirection = "unknown"
)

// ForecastMethod records which tier produced a ForecastResult
type ForecastMethod string

const (
	MethodIndustryDefault ForecastMethod = "industry_default"
	MethodMarketAvg       ForecastMethod = "market_avg"
	MethodLinear          ForecastMethod = "linear"
	MethodSeasonalModel   ForecastMethod = "seasonal_model"
)

// HistoryPoint represents one monthly price snapshot for an item
type HistoryPoint struct {
	Period       time.Time `json:"period" db:"period"`
	AveragePrice float64   `json:"avg_price" db:"avg_price"`
	MedianPrice  float64   `json:"median_price" db:"median_price"`
	ListingCount int       `json:"listing_count" db:"listing_count"`
}

// ForecastResult represents the statistical 30/90-day forecast for an item
type ForecastResult struct {
	LastKnownPrice  float64        `json:"last_known_price"`
	Forecast30d     float64        `json:"forecast_30d"`
	Forecast90d     float64        `json:"forecast_90d"`
	TrendDirection  TrendDirection `json:"trend_direction"`
	TrendPct30d     float64        `json:"trend_pct_change"`
	TrendPct90d     float64        `json:"trend_pct_90d"`
	SeasonalityNote string         `json:"seasonality_note"`
	Method          ForecastMethod `json:"method"`
	// Error is set when the forecast step could not run; cached results
	// carrying it are never reused.
	Error string `json:"error,omitempty"`
}
