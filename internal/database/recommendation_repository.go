package database

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/irfndi/carprice-ai-go/internal/cache"
	"github.com/irfndi/carprice-ai-go/internal/models"
)

// RecommendationRepository persists cached analyses in predictions_cache.
// It implements cache.Store.
type RecommendationRepository struct {
	pool DatabasePool
}

// NewRecommendationRepository creates a new recommendation repository.
func NewRecommendationRepository(pool DatabasePool) *RecommendationRepository {
	return &RecommendationRepository{pool: pool}
}

const selectEntryColumns = `SELECT cache_key, query, result, is_seed, created_at, expires_at FROM predictions_cache`

func (r *RecommendationRepository) Get(ctx context.Context, key string) (*models.CacheEntry, error) {
	row := r.pool.QueryRow(ctx, selectEntryColumns+` WHERE cache_key = $1`, key)
	entry, err := scanEntry(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, cache.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get cached analysis: %w", err)
	}
	return entry, nil
}

func (r *RecommendationRepository) Put(ctx context.Context, entry models.CacheEntry) error {
	query, err := json.Marshal(entry.Query)
	if err != nil {
		return fmt.Errorf("failed to encode query: %w", err)
	}
	result, err := json.Marshal(entry.Result)
	if err != nil {
		return fmt.Errorf("failed to encode result: %w", err)
	}

	var expiresAt *time.Time
	if !entry.ExpiresAt.IsZero() {
		expiresAt = &entry.ExpiresAt
	}

	sql := `
		INSERT INTO predictions_cache (cache_key, query, result, recommendation, predicted_price, is_seed, created_at, expires_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (cache_key) DO UPDATE SET
			query = EXCLUDED.query,
			result = EXCLUDED.result,
			recommendation = EXCLUDED.recommendation,
			predicted_price = EXCLUDED.predicted_price,
			is_seed = EXCLUDED.is_seed,
			created_at = EXCLUDED.created_at,
			expires_at = EXCLUDED.expires_at
	`
	_, err = r.pool.Exec(ctx, sql,
		entry.Key,
		query,
		result,
		string(entry.Result.Recommendation.Signal),
		entry.Result.Recommendation.PredictedPrice,
		entry.IsSeed,
		entry.CreatedAt,
		expiresAt,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert cached analysis: %w", err)
	}
	return nil
}

func (r *RecommendationRepository) Delete(ctx context.Context, key string) (bool, error) {
	tag, err := r.pool.Exec(ctx, `DELETE FROM predictions_cache WHERE cache_key = $1`, key)
	if err != nil {
		return false, fmt.Errorf("failed to delete cached analysis: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

func (r *RecommendationRepository) List(ctx context.Context) ([]models.CacheEntry, error) {
	rows, err := r.pool.Query(ctx, selectEntryColumns+` ORDER BY created_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("failed to list cached analyses: %w", err)
	}
	defer rows.Close()

	entries := []models.CacheEntry{}
	for rows.Next() {
		entry, err := scanEntry(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan cached analysis: %w", err)
		}
		entries = append(entries, *entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating cached analyses: %w", err)
	}
	return entries, nil
}

func (r *RecommendationRepository) DeleteWhere(ctx context.Context, pred cache.Predicate) (int, error) {
	entries, err := r.List(ctx)
	if err != nil {
		return 0, err
	}

	var keys []string
	for _, e := range entries {
		if pred(e) {
			keys = append(keys, e.Key)
		}
	}
	if len(keys) == 0 {
		return 0, nil
	}

	tag, err := r.pool.Exec(ctx, `DELETE FROM predictions_cache WHERE cache_key = ANY($1)`, keys)
	if err != nil {
		return 0, fmt.Errorf("failed to delete cached analyses: %w", err)
	}
	return int(tag.RowsAffected()), nil
}

func (r *RecommendationRepository) Count(ctx context.Context, pred cache.Predicate) (int, error) {
	entries, err := r.List(ctx)
	if err != nil {
		return 0, err
	}
	count := 0
	for _, e := range entries {
		if pred(e) {
			count++
		}
	}
	return count, nil
}

func scanEntry(row pgx.Row) (*models.CacheEntry, error) {
	var (
		entry     models.CacheEntry
		query     []byte
		result    []byte
		expiresAt *time.Time
	)
	if err := row.Scan(&entry.Key, &query, &result, &entry.IsSeed, &entry.CreatedAt, &expiresAt); err != nil {
		return nil, err
	}
	if err := json.Unmarshal(query, &entry.Query); err != nil {
		return nil, fmt.Errorf("failed to decode query of %s: %w", entry.Key, err)
	}
	if err := json.Unmarshal(result, &entry.Result); err != nil {
		return nil, fmt.Errorf("failed to decode result of %s: %w", entry.Key, err)
	}
	if expiresAt != nil {
		entry.ExpiresAt = *expiresAt
	}
	return &entry, nil
}
