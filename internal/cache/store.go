package cache

import (
	"context"
	"errors"

	"github.com/irfndi/carprice-ai-go/internal/models"
)

// ErrNotFound is returned by Store.Get when no entry exists for the key.
var ErrNotFound = errors.New("cache entry not found")

// Predicate selects cache entries.
type Predicate func(models.CacheEntry) bool

// Store persists cache entries. Implementations hand out copies and never
// expose entries for shared mutation.
type Store interface {
	// Get returns the entry stored under key, or ErrNotFound.
	Get(ctx context.Context, key string) (*models.CacheEntry, error)
	// Put inserts or replaces the entry under entry.Key.
	Put(ctx context.Context, entry models.CacheEntry) error
	// Delete removes the entry under key and reports whether it existed.
	Delete(ctx context.Context, key string) (bool, error)
	// List returns every stored entry in no particular order.
	List(ctx context.Context) ([]models.CacheEntry, error)
	// DeleteWhere removes every entry matching pred and returns the count.
	DeleteWhere(ctx context.Context, pred Predicate) (int, error)
	// Count returns the number of entries matching pred.
	Count(ctx context.Context, pred Predicate) (int, error)
}

// All matches every entry.
func All(models.CacheEntry) bool { return true }
