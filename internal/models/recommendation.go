package models

import "encoding/json"

// Signal is the buy decision handed to the user
type Signal string

const (
	SignalBuy     Signal = "BUY"
	SignalWait    Signal = "WAIT"
	SignalNeutral Signal = "NEUTRAL"
)

// Valid reports whether s is one of the three recognised signals.
func (s Signal) Valid() bool {
	switch s {
	case SignalBuy, SignalWait, SignalNeutral:
		return true
	}
	return false
}

// Confidence grades a signal or an advisory forecast
type Confidence string

const (
	ConfidenceHigh     Confidence = "HIGH"
	ConfidenceModerate Confidence = "MODERATE"
	ConfidenceLow      Confidence = "LOW"
)

// BestTimeToBuy is the advisory timing hint
type BestTimeToBuy string

const (
	BuyNow       BestTimeToBuy = "now"
	Buy30Days    BestTimeToBuy = "30_days"
	Buy90Days    BestTimeToBuy = "90_days"
	BuyWait      BestTimeToBuy = "wait"
	BuyNoOpinion BestTimeToBuy = "neutral"
)

// AdvisoryMethod tells whether the advisory forecast came from the reasoning service
type AdvisoryMethod string

const (
	AdvisoryLLM      AdvisoryMethod = "llm_analysis"
	AdvisoryFallback AdvisoryMethod = "llm_fallback"
)

// BlendMethod records how the final 30/90-day figures were derived
type BlendMethod string

const (
	BlendLLM         BlendMethod = "llm_blended"
	BlendStatistical BlendMethod = "statistical"
	BlendEstimated   BlendMethod = "estimated"
)

// AdvisoryForecast represents the reasoning service's constrained forecast
type AdvisoryForecast struct {
	Forecast30d    float64        `json:"forecast_30d"`
	Forecast90d    float64        `json:"forecast_90d"`
	TrendDirection TrendDirection `json:"trend_direction"`
	Confidence     Confidence     `json:"confidence"`
	KeyInsight     string         `json:"key_insight"`
	BestTimeToBuy  BestTimeToBuy  `json:"best_time_to_buy"`
	Method         AdvisoryMethod `json:"method"`
}

// Factor represents one ranked contribution to a valuation
type Factor struct {
	Feature string `json:"feature"`
	// Value is the feature value as the model server sent it: a number for
	// encoded features, a string for raw categorical ones.
	Value     json.RawMessage `json:"value,omitempty"`
	Impact    float64         `json:"impact"`
	Direction string          `json:"direction"`
}

// Valuation represents the point price estimate for a query
type Valuation struct {
	PredictedPrice float64  `json:"predicted_price"`
	Factors        []Factor `json:"shap_factors"`
}

// Recommendation represents the synthesized signal. Treat it as a value:
// copies are handed out, never shared for mutation.
type Recommendation struct {
	Signal           Signal      `json:"recommendation"`
	Confidence       Confidence  `json:"confidence"`
	Rationale        string      `json:"rationale"`
	PredictedPrice   float64     `json:"predicted_price"`
	Forecast30d      float64     `json:"forecast_30d"`
	Forecast90d      float64     `json:"forecast_90d"`
	ForecastMethod   BlendMethod `json:"forecast_method"`
	KeyInsight       string      `json:"llm_key_insight"`
	PriceVsMedianPct float64     `json:"price_vs_median_pct"`
}

// DefaultRecommendation is returned when a run ends before a synthesis was captured.
func DefaultRecommendation() Recommendation {
	return Recommendation{
		Signal:         SignalNeutral,
		Confidence:     ConfidenceLow,
		ForecastMethod: BlendStatistical,
	}
}
