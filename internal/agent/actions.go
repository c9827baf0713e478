package agent

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/irfndi/carprice-ai-go/internal/advisory"
	"github.com/irfndi/carprice-ai-go/internal/models"
	"github.com/irfndi/carprice-ai-go/internal/recommendation"
	"github.com/irfndi/carprice-ai-go/internal/valuation"
)

// Action names exposed to the reasoner.
const (
	ActionPriceHistory  = "get_price_history"
	ActionForecast      = "run_forecast"
	ActionValuation     = "run_price_prediction"
	ActionMarketContext = "get_market_context"
	ActionAdvisory      = "run_llm_price_analysis"
	ActionSynthesize    = "synthesize_recommendation"
)

// Forecaster reads an item's price series and forecasts it.
type Forecaster interface {
	History(ctx context.Context, item models.ItemKey) ([]models.HistoryPoint, error)
	ForecastItem(ctx context.Context, item models.ItemKey) (models.ForecastResult, error)
}

// MarketContextProvider describes an item's current market position.
type MarketContextProvider interface {
	GetMarketContext(ctx context.Context, item models.ItemKey) (*models.MarketContext, error)
}

// AdvisoryProvider returns an advisory forecast or its fallback.
type AdvisoryProvider interface {
	Request(ctx context.Context, req advisory.Request) advisory.Outcome
}

// RecommendationSynthesizer turns the collected figures into a signal.
type RecommendationSynthesizer interface {
	Synthesize(in recommendation.Input) models.Recommendation
}

// Dependencies are the components the built-in actions dispatch to.
type Dependencies struct {
	Forecaster  Forecaster
	Valuation   valuation.Provider
	Market      MarketContextProvider
	Advisory    AdvisoryProvider
	Synthesizer RecommendationSynthesizer
}

// DefaultActions returns the six analysis actions in the order the reasoner
// is asked to call them.
func DefaultActions(deps Dependencies) []Action {
	return []Action{
		&priceHistoryAction{forecaster: deps.Forecaster},
		&forecastAction{forecaster: deps.Forecaster},
		&valuationAction{provider: deps.Valuation},
		&marketContextAction{market: deps.Market},
		&advisoryAction{provider: deps.Advisory},
		&synthesizeAction{synthesizer: deps.Synthesizer},
	}
}

// NewDefaultRegistry builds the registry of the six analysis actions.
func NewDefaultRegistry(deps Dependencies) (*Registry, error) {
	return NewRegistry(DefaultActions(deps)...)
}

func str(description string) map[string]interface{} {
	if description == "" {
		return map[string]interface{}{"type": "string"}
	}
	return map[string]interface{}{"type": "string", "description": description}
}

func integer(description string) map[string]interface{} {
	if description == "" {
		return map[string]interface{}{"type": "integer"}
	}
	return map[string]interface{}{"type": "integer", "description": description}
}

func number(description string) map[string]interface{} {
	return map[string]interface{}{"type": "number", "description": description}
}

func itemSchema() map[string]interface{} {
	return map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"make":  str("Car manufacturer, e.g. 'toyota'"),
			"model": str("Car model, e.g. 'camry'"),
			"year":  integer("Model year, e.g. 2018"),
		},
		"required": []string{"make", "model", "year"},
	}
}

func queryProperties() map[string]interface{} {
	return map[string]interface{}{
		"make":      str(""),
		"model":     str(""),
		"year":      integer(""),
		"mileage":   integer("Odometer reading in miles"),
		"condition": str("e.g. good, excellent, fair"),
		"region":    str("US state or region, e.g. california"),
	}
}

type historyRow struct {
	Date         string  `json:"date"`
	AvgPrice     float64 `json:"avg_price"`
	MedianPrice  float64 `json:"median_price"`
	ListingCount int     `json:"listing_count"`
}

type historyOutput struct {
	Points []historyRow `json:"points"`
	Note   string       `json:"note,omitempty"`
}

type priceHistoryAction struct {
	forecaster Forecaster
}

func (a *priceHistoryAction) Name() string { return ActionPriceHistory }

func (a *priceHistoryAction) Description() string {
	return "Fetch monthly average price history for a specific make/model/year."
}

func (a *priceHistoryAction) Schema() map[string]interface{} { return itemSchema() }

func (a *priceHistoryAction) Execute(ctx context.Context, raw json.RawMessage) (interface{}, error) {
	item, err := decodeArgs[models.ItemKey](raw)
	if err != nil {
		return nil, err
	}
	points, err := a.forecaster.History(ctx, item)
	if err != nil {
		return nil, err
	}

	out := historyOutput{Points: make([]historyRow, 0, len(points))}
	for _, p := range points {
		out.Points = append(out.Points, historyRow{
			Date:         p.Period.Format("2006-01"),
			AvgPrice:     models.Round2(p.AveragePrice),
			MedianPrice:  models.Round2(p.MedianPrice),
			ListingCount: p.ListingCount,
		})
	}
	if len(out.Points) == 0 {
		n := item.Normalize()
		out.Note = fmt.Sprintf("No price history for %d %s %s", n.Year, n.Make, n.Model)
	}
	return out, nil
}

type forecastAction struct {
	forecaster Forecaster
}

func (a *forecastAction) Name() string { return ActionForecast }

func (a *forecastAction) Description() string {
	return "Fetch price history and run a time-series forecast. Returns 30/90-day forecasts and trend direction."
}

func (a *forecastAction) Schema() map[string]interface{} { return itemSchema() }

func (a *forecastAction) Execute(ctx context.Context, raw json.RawMessage) (interface{}, error) {
	item, err := decodeArgs[models.ItemKey](raw)
	if err != nil {
		return nil, err
	}
	return a.forecaster.ForecastItem(ctx, item)
}

type valuationAction struct {
	provider valuation.Provider
}

func (a *valuationAction) Name() string { return ActionValuation }

func (a *valuationAction) Description() string {
	return "Run the valuation model to predict fair market price and return the top contributing factors."
}

func (a *valuationAction) Schema() map[string]interface{} {
	return map[string]interface{}{
		"type":       "object",
		"properties": queryProperties(),
		"required":   []string{"make", "model", "year", "mileage", "condition", "region"},
	}
}

func (a *valuationAction) Execute(ctx context.Context, raw json.RawMessage) (interface{}, error) {
	q, err := decodeArgs[models.VehicleQuery](raw)
	if err != nil {
		return nil, err
	}
	return a.provider.Predict(ctx, q)
}

type marketContextAction struct {
	market MarketContextProvider
}

func (a *marketContextAction) Name() string { return ActionMarketContext }

func (a *marketContextAction) Description() string {
	return "Fetch inventory count, trend (rising/falling), price-vs-median %, and regional price range."
}

func (a *marketContextAction) Schema() map[string]interface{} {
	return map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"make":  str(""),
			"model": str(""),
			"year":  integer(""),
		},
		"required": []string{"make", "model", "year"},
	}
}

func (a *marketContextAction) Execute(ctx context.Context, raw json.RawMessage) (interface{}, error) {
	item, err := decodeArgs[models.ItemKey](raw)
	if err != nil {
		return nil, err
	}
	return a.market.GetMarketContext(ctx, item)
}

type advisoryArgs struct {
	models.VehicleQuery
	CurrentPrice     float64               `json:"current_price" validate:"gte=0"`
	StatForecast30d  float64               `json:"stat_forecast_30d" validate:"gte=0"`
	StatForecast90d  float64               `json:"stat_forecast_90d" validate:"gte=0"`
	TrendDirection   models.TrendDirection `json:"trend_direction" validate:"required"`
	TrendPct30d      float64               `json:"trend_pct_30d"`
	InventoryTrend   models.TrendDirection `json:"inventory_trend" validate:"required"`
	PriceVsMedianPct float64               `json:"price_vs_median_pct"`
}

type advisoryAction struct {
	provider AdvisoryProvider
}

func (a *advisoryAction) Name() string { return ActionAdvisory }

func (a *advisoryAction) Description() string {
	return "AI-enhanced price analysis. Call this AFTER run_forecast, run_price_prediction, and get_market_context. " +
		"Returns 30/90-day forecasts that account for depreciation curves, seasonal patterns and regional demand, " +
		"plus a best-time-to-buy signal."
}

func (a *advisoryAction) Schema() map[string]interface{} {
	props := queryProperties()
	props["current_price"] = number("predicted_price from run_price_prediction")
	props["stat_forecast_30d"] = number("forecast_30d from run_forecast")
	props["stat_forecast_90d"] = number("forecast_90d from run_forecast")
	props["trend_direction"] = str("trend_direction from run_forecast")
	props["trend_pct_30d"] = number("trend_pct_change from run_forecast")
	props["inventory_trend"] = str("inventory_trend from get_market_context")
	props["price_vs_median_pct"] = number("price_vs_median_pct from get_market_context")
	return map[string]interface{}{
		"type":       "object",
		"properties": props,
		"required": []string{
			"make", "model", "year", "mileage", "condition", "region",
			"current_price", "stat_forecast_30d", "stat_forecast_90d",
			"trend_direction", "trend_pct_30d", "inventory_trend", "price_vs_median_pct",
		},
	}
}

func (a *advisoryAction) Execute(ctx context.Context, raw json.RawMessage) (interface{}, error) {
	args, err := decodeArgs[advisoryArgs](raw)
	if err != nil {
		return nil, err
	}
	outcome := a.provider.Request(ctx, advisory.Request{
		Query:            args.VehicleQuery.Normalize(),
		CurrentPrice:     args.CurrentPrice,
		StatForecast30d:  args.StatForecast30d,
		StatForecast90d:  args.StatForecast90d,
		TrendDirection:   args.TrendDirection,
		TrendPct30d:      args.TrendPct30d,
		InventoryTrend:   args.InventoryTrend,
		PriceVsMedianPct: args.PriceVsMedianPct,
	})
	return outcome.Forecast, nil
}

type synthesizeAction struct {
	synthesizer RecommendationSynthesizer
}

func (a *synthesizeAction) Name() string { return ActionSynthesize }

func (a *synthesizeAction) Description() string {
	return "Rule-based BUY/WAIT/NEUTRAL signal with LLM-blended forecasts. " +
		"Call this LAST, after all other tools including run_llm_price_analysis."
}

func (a *synthesizeAction) Schema() map[string]interface{} {
	return map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"trend_direction":      str("'rising' or 'falling' from run_forecast"),
			"trend_pct_change":     number("trend_pct_change from run_forecast"),
			"price_vs_median_pct":  number("price_vs_median_pct from get_market_context"),
			"inventory_trend":      str("'rising', 'falling' or 'unknown' from get_market_context"),
			"predicted_price":      number("predicted_price from run_price_prediction"),
			"region":               str("region of the query"),
			"stat_forecast_30d":    number("forecast_30d from run_forecast"),
			"stat_forecast_90d":    number("forecast_90d from run_forecast"),
			"llm_forecast_30d":     number("forecast_30d from run_llm_price_analysis"),
			"llm_forecast_90d":     number("forecast_90d from run_llm_price_analysis"),
			"llm_trend_direction":  str("trend_direction from run_llm_price_analysis"),
			"llm_best_time_to_buy": str("best_time_to_buy from run_llm_price_analysis"),
			"llm_key_insight":      str("key_insight from run_llm_price_analysis"),
		},
		"required": []string{
			"trend_direction", "trend_pct_change",
			"price_vs_median_pct", "inventory_trend", "predicted_price",
		},
	}
}

func (a *synthesizeAction) Execute(_ context.Context, raw json.RawMessage) (interface{}, error) {
	in, err := decodeArgs[recommendation.Input](raw)
	if err != nil {
		return nil, err
	}
	return a.synthesizer.Synthesize(in), nil
}
