package cache

import (
	"context"
	"fmt"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/irfndi/carprice-ai-go/internal/models"
)

// DefaultMemorySize bounds the in-process store when no size is configured.
const DefaultMemorySize = 1024

// MemoryStore is an in-process LRU store. The least recently used entry is
// evicted once size is reached.
type MemoryStore struct {
	entries *lru.Cache[string, models.CacheEntry]
	now     func() time.Time
}

// NewMemoryStore creates an LRU store holding at most size entries.
func NewMemoryStore(size int) (*MemoryStore, error) {
	if size <= 0 {
		size = DefaultMemorySize
	}
	entries, err := lru.New[string, models.CacheEntry](size)
	if err != nil {
		return nil, fmt.Errorf("failed to create lru cache: %w", err)
	}
	return &MemoryStore{entries: entries, now: time.Now}, nil
}

func (s *MemoryStore) Get(_ context.Context, key string) (*models.CacheEntry, error) {
	entry, ok := s.entries.Get(key)
	if !ok {
		return nil, ErrNotFound
	}
	if entry.Expired(s.now()) {
		s.entries.Remove(key)
		return nil, ErrNotFound
	}
	out := entry.Clone()
	return &out, nil
}

func (s *MemoryStore) Put(_ context.Context, entry models.CacheEntry) error {
	s.entries.Add(entry.Key, entry.Clone())
	return nil
}

func (s *MemoryStore) Delete(_ context.Context, key string) (bool, error) {
	return s.entries.Remove(key), nil
}

func (s *MemoryStore) List(_ context.Context) ([]models.CacheEntry, error) {
	keys := s.entries.Keys()
	out := make([]models.CacheEntry, 0, len(keys))
	for _, key := range keys {
		if entry, ok := s.entries.Peek(key); ok {
			out = append(out, entry.Clone())
		}
	}
	return out, nil
}

func (s *MemoryStore) DeleteWhere(_ context.Context, pred Predicate) (int, error) {
	deleted := 0
	for _, key := range s.entries.Keys() {
		entry, ok := s.entries.Peek(key)
		if ok && pred(entry) && s.entries.Remove(key) {
			deleted++
		}
	}
	return deleted, nil
}

func (s *MemoryStore) Count(_ context.Context, pred Predicate) (int, error) {
	count := 0
	for _, key := range s.entries.Keys() {
		if entry, ok := s.entries.Peek(key); ok && pred(entry) {
			count++
		}
	}
	return count, nil
}
