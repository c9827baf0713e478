package database

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/irfndi/carprice-ai-go/internal/models"
)

// MarketWideMonths is how many recent months the market-wide series covers.
const MarketWideMonths = 3

// HistoryRepository reads monthly price aggregates from price_snapshots.
type HistoryRepository struct {
	pool DatabasePool
}

// NewHistoryRepository creates a new history repository.
func NewHistoryRepository(pool DatabasePool) *HistoryRepository {
	return &HistoryRepository{pool: pool}
}

// GetHistory returns the item's snapshots, oldest first. An item without
// snapshots yields an empty slice.
func (r *HistoryRepository) GetHistory(ctx context.Context, item models.ItemKey) ([]models.HistoryPoint, error) {
	if r.pool == nil {
		return nil, ErrNoPool
	}
	item = item.Normalize()
	query := `
		SELECT period, avg_price, median_price, listing_count
		FROM price_snapshots
		WHERE make = $1 AND model = $2 AND year = $3
		ORDER BY period ASC
	`

	rows, err := r.pool.Query(ctx, query, item.Make, item.Model, item.Year)
	if err != nil {
		return nil, fmt.Errorf("failed to query price history: %w", err)
	}
	return scanHistory(rows)
}

// GetMarketWideHistory averages every item's snapshot per month and returns
// the most recent MarketWideMonths months, oldest first.
func (r *HistoryRepository) GetMarketWideHistory(ctx context.Context) ([]models.HistoryPoint, error) {
	if r.pool == nil {
		return nil, ErrNoPool
	}
	query := `
		SELECT period, avg_price, median_price, listing_count FROM (
			SELECT period,
			       AVG(avg_price) AS avg_price,
			       AVG(median_price) AS median_price,
			       SUM(listing_count)::int AS listing_count
			FROM price_snapshots
			GROUP BY period
			ORDER BY period DESC
			LIMIT $1
		) recent
		ORDER BY period ASC
	`

	rows, err := r.pool.Query(ctx, query, MarketWideMonths)
	if err != nil {
		return nil, fmt.Errorf("failed to query market-wide history: %w", err)
	}
	return scanHistory(rows)
}

func scanHistory(rows pgx.Rows) ([]models.HistoryPoint, error) {
	defer rows.Close()

	points := []models.HistoryPoint{}
	for rows.Next() {
		var p models.HistoryPoint
		if err := rows.Scan(&p.Period, &p.AveragePrice, &p.MedianPrice, &p.ListingCount); err != nil {
			return nil, fmt.Errorf("failed to scan price snapshot: %w", err)
		}
		points = append(points, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating price snapshots: %w", err)
	}
	return points, nil
}
