package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/whale-tracker/internal/models"
)

const (
	metricsKey      = "metrics:latest"
	topWhalesKey    = "whales:top"
	defaultStatsTTL = 24 * time.Hour
)

// StatsCache keeps the last known good analytics snapshot in Redis so the API
// can answer metrics requests while the analytics store is unreachable.
type StatsCache struct {
	cache *RedisCache
	ttl   time.Duration
}

// NewStatsCache creates a stats cache over a Redis connection
func NewStatsCache(cache *RedisCache) *StatsCache {
	return &StatsCache{cache: cache, ttl: defaultStatsTTL}
}

// MetricsSnapshot is the cached analytics payload with its capture time
type MetricsSnapshot struct {
	Analytics  *Analytics `json:"analytics"`
	WhaleCount int        `json:"whaleCount"`
	CachedAt   time.Time  `json:"cachedAt"`
}

// StoreMetrics caches the latest analytics snapshot
func (s *StatsCache) StoreMetrics(ctx context.Context, snapshot *MetricsSnapshot) error {
	snapshot.CachedAt = time.Now()

	data, err := json.Marshal(snapshot)
	if err != nil {
		return fmt.Errorf("failed to marshal metrics snapshot: %w", err)
	}
	return s.cache.Set(ctx, metricsKey, data, s.ttl)
}

// LoadMetrics returns the last cached analytics snapshot. Returns nil without
// error when nothing has been cached yet.
func (s *StatsCache) LoadMetrics(ctx context.Context) (*MetricsSnapshot, error) {
	data, err := s.cache.Get(ctx, metricsKey)
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to load metrics snapshot: %w", err)
	}

	var snapshot MetricsSnapshot
	if err := json.Unmarshal([]byte(data), &snapshot); err != nil {
		return nil, fmt.Errorf("failed to unmarshal metrics snapshot: %w", err)
	}
	return &snapshot, nil
}

// StoreTopWhales caches the current top whale ranking
func (s *StatsCache) StoreTopWhales(ctx context.Context, whales []*models.Whale) error {
	data, err := json.Marshal(whales)
	if err != nil {
		return fmt.Errorf("failed to marshal top whales: %w", err)
	}
	return s.cache.Set(ctx, topWhalesKey, data, s.ttl)
}

// LoadTopWhales returns the last cached top whale ranking. Returns nil without
// error on a cache miss.
func (s *StatsCache) LoadTopWhales(ctx context.Context) ([]*models.Whale, error) {
	data, err := s.cache.Get(ctx, topWhalesKey)
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to load top whales: %w", err)
	}

	var whales []*models.Whale
	if err := json.Unmarshal([]byte(data), &whales); err != nil {
		return nil, fmt.Errorf("failed to unmarshal top whales: %w", err)
	}
	return whales, nil
}
