package cache

import (
	"crypto/md5"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/irfndi/carprice-ai-go/internal/agent"
	"github.com/irfndi/carprice-ai-go/internal/models"
)

// ResetMode selects what a cache reset removes
type ResetMode string

const (
	// ResetFull deletes every non-seed entry and force-refreshes the seeds.
	ResetFull ResetMode = "full"
	// ResetForecastErrors deletes only entries whose forecast step errored.
	ResetForecastErrors ResetMode = "forecast_errors"
)

// ParseResetMode validates a configured reset mode. Empty means ResetFull.
func ParseResetMode(s string) (ResetMode, error) {
	switch ResetMode(strings.ToLower(strings.TrimSpace(s))) {
	case "", ResetFull:
		return ResetFull, nil
	case ResetForecastErrors:
		return ResetForecastErrors, nil
	}
	return "", fmt.Errorf("unknown cache reset mode %q", s)
}

// Key is the cache key of a query: hex md5 of its normalized attributes.
func Key(q models.VehicleQuery) string {
	n := q.Normalize()
	sum := md5.Sum([]byte(fmt.Sprintf("%s|%s|%d|%d|%s|%s", n.Make, n.Model, n.Year, n.Mileage, n.Condition, n.Region)))
	return hex.EncodeToString(sum[:])
}

// SeedKey is the cache key of a built-in seed for item.
func SeedKey(item models.ItemKey) string {
	n := item.Normalize()
	return fmt.Sprintf("seed_%s_%s_%d", n.Make, n.Model, n.Year)
}

// Reusable reports whether a cached entry may be served at now instead of
// recomputing the analysis.
func Reusable(e models.CacheEntry, now time.Time) bool {
	if e.Expired(now) {
		return false
	}
	rec := e.Result.Recommendation
	if !rec.Signal.Valid() {
		return false
	}
	if ForecastErrored(e.Result) {
		return false
	}
	if rec.Signal == models.SignalNeutral && !e.IsSeed && recordedPriceVsMedian(e.Result) <= models.StaleNeutralDiscountPct {
		return false
	}
	return true
}

// ForecastErrored reports whether the recorded forecast output carries an error marker.
func ForecastErrored(r models.AnalysisResult) bool {
	raw, ok := r.ActionOutputs[agent.ActionForecast]
	if !ok {
		return false
	}
	var out struct {
		Error interface{} `json:"error"`
	}
	if err := json.Unmarshal(raw, &out); err != nil {
		return true
	}
	switch v := out.Error.(type) {
	case nil:
		return false
	case string:
		return v != ""
	default:
		return true
	}
}

// recordedPriceVsMedian reads the recorded market context output and falls
// back to the figure on the recommendation when that output is missing or
// carries no percentage.
func recordedPriceVsMedian(r models.AnalysisResult) float64 {
	if raw, ok := r.ActionOutputs[agent.ActionMarketContext]; ok {
		var mc struct {
			PriceVsMedianPct *float64 `json:"price_vs_median_pct"`
		}
		if err := json.Unmarshal(raw, &mc); err == nil && mc.PriceVsMedianPct != nil {
			return *mc.PriceVsMedianPct
		}
	}
	return r.Recommendation.PriceVsMedianPct
}
