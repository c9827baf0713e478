package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"github.com/irfndi/carprice-ai-go/internal/models"
)

// RedisStore keeps cache entries as JSON values whose Redis TTL follows the
// entry's ExpiresAt.
type RedisStore struct {
	redis  *redis.Client
	prefix string
	logger *logrus.Logger
	now    func() time.Time
}

// NewRedisStore creates a Redis-backed store
func NewRedisStore(redisClient *redis.Client, logger *logrus.Logger) *RedisStore {
	if logger == nil {
		logger = logrus.New()
	}
	return &RedisStore{
		redis:  redisClient,
		prefix: "recommendation:",
		logger: logger,
		now:    time.Now,
	}
}

// Get retrieves an entry from Redis
func (s *RedisStore) Get(ctx context.Context, key string) (*models.CacheEntry, error) {
	data, err := s.redis.Get(ctx, s.prefix+key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("redis get %s: %w", key, err)
	}

	var entry models.CacheEntry
	if err := json.Unmarshal(data, &entry); err != nil {
		return nil, fmt.Errorf("decode cache entry %s: %w", key, err)
	}
	return &entry, nil
}

// Put stores an entry. An entry that has already expired is removed instead.
func (s *RedisStore) Put(ctx context.Context, entry models.CacheEntry) error {
	var ttl time.Duration
	if !entry.ExpiresAt.IsZero() {
		ttl = entry.ExpiresAt.Sub(s.now())
		if ttl <= 0 {
			_, err := s.Delete(ctx, entry.Key)
			return err
		}
	}

	data, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("encode cache entry %s: %w", entry.Key, err)
	}
	if err := s.redis.Set(ctx, s.prefix+entry.Key, data, ttl).Err(); err != nil {
		return fmt.Errorf("redis set %s: %w", entry.Key, err)
	}
	return nil
}

// Delete removes an entry
func (s *RedisStore) Delete(ctx context.Context, key string) (bool, error) {
	n, err := s.redis.Del(ctx, s.prefix+key).Result()
	if err != nil {
		return false, fmt.Errorf("redis del %s: %w", key, err)
	}
	return n > 0, nil
}

// keys returns all Redis keys under the store prefix using SCAN.
func (s *RedisStore) keys(ctx context.Context) ([]string, error) {
	var keys []string
	iter := s.redis.Scan(ctx, 0, s.prefix+"*", 0).Iterator()
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("error scanning cache keys: %w", err)
	}
	return keys, nil
}

type storedEntry struct {
	redisKey string
	entry    models.CacheEntry
}

func (s *RedisStore) scan(ctx context.Context) ([]storedEntry, error) {
	keys, err := s.keys(ctx)
	if err != nil || len(keys) == 0 {
		return nil, err
	}

	values, err := s.redis.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, fmt.Errorf("redis mget: %w", err)
	}

	out := make([]storedEntry, 0, len(values))
	for i, v := range values {
		raw, ok := v.(string)
		if !ok {
			// expired between SCAN and MGET
			continue
		}
		var entry models.CacheEntry
		if err := json.Unmarshal([]byte(raw), &entry); err != nil {
			s.logger.WithFields(logrus.Fields{
				"key":   keys[i],
				"error": err.Error(),
			}).Warn("Skipping undecodable cache entry")
			continue
		}
		out = append(out, storedEntry{redisKey: keys[i], entry: entry})
	}
	return out, nil
}

// List returns every decodable entry under the prefix
func (s *RedisStore) List(ctx context.Context) ([]models.CacheEntry, error) {
	stored, err := s.scan(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]models.CacheEntry, 0, len(stored))
	for _, se := range stored {
		out = append(out, se.entry)
	}
	return out, nil
}

// DeleteWhere removes every entry matching pred
func (s *RedisStore) DeleteWhere(ctx context.Context, pred Predicate) (int, error) {
	stored, err := s.scan(ctx)
	if err != nil {
		return 0, err
	}

	var keys []string
	for _, se := range stored {
		if pred(se.entry) {
			keys = append(keys, se.redisKey)
		}
	}
	if len(keys) == 0 {
		return 0, nil
	}

	n, err := s.redis.Del(ctx, keys...).Result()
	if err != nil {
		return 0, fmt.Errorf("error clearing cache: %w", err)
	}
	s.logger.WithField("deleted", n).Debug("Deleted cache entries")
	return int(n), nil
}

// Count returns the number of entries matching pred
func (s *RedisStore) Count(ctx context.Context, pred Predicate) (int, error) {
	stored, err := s.scan(ctx)
	if err != nil {
		return 0, err
	}
	count := 0
	for _, se := range stored {
		if pred(se.entry) {
			count++
		}
	}
	return count, nil
}
