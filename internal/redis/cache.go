package redis

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"

	"dispatch/internal/domain"
)

// RateConfigCacheTTL bounds how stale a cached RateConfig may be.
const RateConfigCacheTTL = 30 * time.Second

const rateConfigKey = "cache:settings:rate_config"

// CacheStore caches the RateConfig singleton in Redis.
type CacheStore struct {
	client *redis.Client
	ttl    time.Duration
}

// NewCacheStore creates a new CacheStore. A non-positive ttl uses RateConfigCacheTTL.
func NewCacheStore(client *redis.Client, ttl time.Duration) *CacheStore {
	if ttl <= 0 {
		ttl = RateConfigCacheTTL
	}
	return &CacheStore{client: client, ttl: ttl}
}

// GetRateConfig returns the cached config, or nil on a cache miss.
func (s *CacheStore) GetRateConfig(ctx context.Context) (*domain.RateConfig, error) {
	data, err := s.client.Get(ctx, rateConfigKey).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, err
	}

	var cfg domain.RateConfig
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// SetRateConfig stores cfg in the cache.
func (s *CacheStore) SetRateConfig(ctx context.Context, cfg *domain.RateConfig) error {
	data, err := json.Marshal(cfg)
	if err != nil {
		return err
	}
	return s.client.Set(ctx, rateConfigKey, data, s.ttl).Err()
}

// InvalidateRateConfig removes the cached config.
func (s *CacheStore) InvalidateRateConfig(ctx context.Context) error {
	return s.client.Del(ctx, rateConfigKey).Err()
}
