package models

import "time"

// PriceRange represents the min/max average price seen for an item or market
type PriceRange struct {
	Min float64 `json:"min"`
	Max float64 `json:"max"`
}

// MarketContext represents inventory and price positioning for an item
type MarketContext struct {
	InventoryCount   int            `json:"current_inventory_count"`
	InventoryTrend   TrendDirection `json:"inventory_trend"`
	PriceVsMedianPct float64        `json:"price_vs_median_pct"`
	RegionalRange    PriceRange     `json:"regional_price_range"`
}

// PriceSnapshot represents a stored monthly aggregate row
type PriceSnapshot struct {
	Make         string    `json:"make" db:"make"`
	Model        string    `json:"model" db:"model"`
	Year         int       `json:"year" db:"year"`
	Period       time.Time `json:"period" db:"period"`
	AveragePrice float64   `json:"avg_price" db:"avg_price"`
	MedianPrice  float64   `json:"median_price" db:"median_price"`
	ListingCount int       `json:"listing_count" db:"listing_count"`
}

// SeasonalityPoint represents the typical average price for a calendar month
type SeasonalityPoint struct {
	Month        int     `json:"month"`
	AveragePrice float64 `json:"avg_price"`
}

// MarketOverview represents the dashboard summary of cached signals
type MarketOverview struct {
	AveragePriceThisMonth float64            `json:"avg_price_this_month"`
	MoMChangePct          float64            `json:"mom_change_pct"`
	PriceSource           string             `json:"price_source"`
	TopBuys               []Prediction       `json:"top_buys"`
	SeasonalityData       []SeasonalityPoint `json:"seasonality_data"`
	SeasonalitySource     string             `json:"seasonality_source"`
	UpdatedAt             string             `json:"updated_at"`
}
