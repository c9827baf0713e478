package models

// Industry reference values used whenever the database has nothing better.
// Figures come from the cleaned used-car listing dump (328k listings) the
// valuation model was trained on, and from US used-car market averages.
const (
	// DefaultLastPrice is the US median used-car price, used as the
	// industry_default forecast anchor and as the estimate base when no
	// valuation is available.
	DefaultLastPrice = 18500.0

	// DefaultMonthlyRate is the month-over-month appreciation assumed when
	// momentum cannot be measured (~3.6% annualised).
	DefaultMonthlyRate = 0.003

	// IndustryAveragePrice is the mean listing price of the training dump and
	// the reference for the percent-vs-median proxy.
	IndustryAveragePrice = 19384.0

	// IndustryMinPrice and IndustryMaxPrice bound the regional range shown
	// when neither item nor market-wide snapshots exist.
	IndustryMinPrice = 7995.0
	IndustryMaxPrice = 45000.0

	// IndustryMoMPct is the month-over-month change reported by the market
	// overview when no live predictions exist yet.
	IndustryMoMPct = 0.3
)

// Blending weights for statistical vs advisory forecasts.
const (
	StatWeight30d     = 0.4
	AdvisoryWeight30d = 0.6
	StatWeight90d     = 0.3
	AdvisoryWeight90d = 0.7
)

// Decision thresholds, all in percent.
const (
	HighConfidenceDiscountPct = -5.0
	WaitTrendPct              = -2.0
	HighConfidenceFallPct     = -5.0
	AdvisoryBuyDiscountPct    = -3.0
	StaleNeutralDiscountPct   = -10.0
)

// MonthlySeasonality is the fallback US used-car seasonality curve served by
// the market overview.
var MonthlySeasonality = []SeasonalityPoint{
	{Month: 1, AveragePrice: 16200},
	{Month: 2, AveragePrice: 16500},
	{Month: 3, AveragePrice: 17200},
	{Month: 4, AveragePrice: 17800},
	{Month: 5, AveragePrice: 18100},
	{Month: 6, AveragePrice: 18300},
	{Month: 7, AveragePrice: 18100},
	{Month: 8, AveragePrice: 18200},
	{Month: 9, AveragePrice: 17800},
	{Month: 10, AveragePrice: 17500},
	{Month: 11, AveragePrice: 17000},
	{Month: 12, AveragePrice: 16600},
}
