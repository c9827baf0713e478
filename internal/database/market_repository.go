package database

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/irfndi/carprice-ai-go/internal/models"
)

// MarketConfig holds the industry price range reported when no snapshots exist
type MarketConfig struct {
	IndustryMinPrice float64
	IndustryMaxPrice float64
}

// MarketRepository answers market context and catalogue questions from the
// listings and price_snapshots tables.
type MarketRepository struct {
	pool   DatabasePool
	config MarketConfig
}

// NewMarketRepository creates a new market repository.
func NewMarketRepository(pool DatabasePool, cfg MarketConfig) *MarketRepository {
	if cfg.IndustryMinPrice <= 0 {
		cfg.IndustryMinPrice = models.IndustryMinPrice
	}
	if cfg.IndustryMaxPrice <= 0 {
		cfg.IndustryMaxPrice = models.IndustryMaxPrice
	}
	return &MarketRepository{pool: pool, config: cfg}
}

type priceAggregate struct {
	average *float64
	min     *float64
	max     *float64
}

func (a priceAggregate) empty() bool {
	return a.average == nil || a.min == nil || a.max == nil
}

// GetMarketContext returns inventory and price positioning for item.
//
// Inventory trend compares the listing counts of the two latest snapshots.
// Price vs median compares the latest snapshot average to the item's overall
// average. The price range falls back from the item to all snapshots to the
// configured industry range; without item snapshots the percentage stays 0.
func (r *MarketRepository) GetMarketContext(ctx context.Context, item models.ItemKey) (*models.MarketContext, error) {
	if r.pool == nil {
		return nil, ErrNoPool
	}
	item = item.Normalize()
	mc := &models.MarketContext{InventoryTrend: models.TrendUnknown}

	countQuery := `
		SELECT COUNT(*) FROM listings
		WHERE make = $1 AND model = $2 AND year = $3
	`
	if err := r.pool.QueryRow(ctx, countQuery, item.Make, item.Model, item.Year).Scan(&mc.InventoryCount); err != nil {
		return nil, fmt.Errorf("failed to count listings: %w", err)
	}

	recentQuery := `
		SELECT listing_count, avg_price
		FROM price_snapshots
		WHERE make = $1 AND model = $2 AND year = $3
		ORDER BY period DESC
		LIMIT 2
	`
	rows, err := r.pool.Query(ctx, recentQuery, item.Make, item.Model, item.Year)
	if err != nil {
		return nil, fmt.Errorf("failed to query recent snapshots: %w", err)
	}
	type recent struct {
		count int
		avg   float64
	}
	var latest []recent
	for rows.Next() {
		var rc recent
		if err := rows.Scan(&rc.count, &rc.avg); err != nil {
			rows.Close()
			return nil, fmt.Errorf("failed to scan snapshot: %w", err)
		}
		latest = append(latest, rc)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating snapshots: %w", err)
	}

	if len(latest) == 2 {
		if latest[0].count >= latest[1].count {
			mc.InventoryTrend = models.TrendRising
		} else {
			mc.InventoryTrend = models.TrendFalling
		}
	}

	itemAgg, err := r.aggregate(ctx, `
		SELECT AVG(avg_price), MIN(avg_price), MAX(avg_price)
		FROM price_snapshots
		WHERE make = $1 AND model = $2 AND year = $3
	`, item.Make, item.Model, item.Year)
	if err != nil {
		return nil, err
	}

	if !itemAgg.empty() {
		overall := *itemAgg.average
		latestAvg := overall
		if len(latest) > 0 {
			latestAvg = latest[0].avg
		}
		if overall != 0 {
			mc.PriceVsMedianPct = models.Round2((latestAvg - overall) / overall * 100)
		}
		mc.RegionalRange = models.PriceRange{Min: models.Round2(*itemAgg.min), Max: models.Round2(*itemAgg.max)}
		return mc, nil
	}

	globalAgg, err := r.aggregate(ctx, `
		SELECT AVG(avg_price), MIN(avg_price), MAX(avg_price)
		FROM price_snapshots
	`)
	if err != nil {
		return nil, err
	}
	if !globalAgg.empty() {
		mc.RegionalRange = models.PriceRange{Min: models.Round2(*globalAgg.min), Max: models.Round2(*globalAgg.max)}
	} else {
		mc.RegionalRange = models.PriceRange{Min: r.config.IndustryMinPrice, Max: r.config.IndustryMaxPrice}
	}
	return mc, nil
}

func (r *MarketRepository) aggregate(ctx context.Context, query string, args ...interface{}) (priceAggregate, error) {
	var agg priceAggregate
	err := r.pool.QueryRow(ctx, query, args...).Scan(&agg.average, &agg.min, &agg.max)
	if err != nil && !errors.Is(err, pgx.ErrNoRows) {
		return agg, fmt.Errorf("failed to aggregate snapshot prices: %w", err)
	}
	return agg, nil
}

// ListCars returns the distinct make/model/year combinations with listings,
// sorted by make, model and newest year first.
func (r *MarketRepository) ListCars(ctx context.Context) ([]models.CarListing, error) {
	if r.pool == nil {
		return []models.CarListing{}, nil
	}
	query := `
		SELECT DISTINCT make, model, year
		FROM listings
		ORDER BY make ASC, model ASC, year DESC
	`

	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list cars: %w", err)
	}
	defer rows.Close()

	cars := []models.CarListing{}
	for rows.Next() {
		var car models.CarListing
		if err := rows.Scan(&car.Make, &car.Model, &car.Year); err != nil {
			return nil, fmt.Errorf("failed to scan car: %w", err)
		}
		cars = append(cars, car)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating cars: %w", err)
	}
	return cars, nil
}
