package redis

import (
	"context"
	"time"

	"dispatch/internal/domain"
)

// LocationStoreInterface defines the interface for agent location mirroring.
type LocationStoreInterface interface {
	UpdateLocation(ctx context.Context, agentID string, lat, lng float64) error
}

// LockStoreInterface defines the interface for advisory agent locks.
type LockStoreInterface interface {
	AcquireAgentLock(ctx context.Context, agentID string, ttl time.Duration) (token string, ok bool, err error)
	ReleaseAgentLock(ctx context.Context, agentID, token string) error
}

// CacheStoreInterface defines the interface for RateConfig caching.
type CacheStoreInterface interface {
	GetRateConfig(ctx context.Context) (*domain.RateConfig, error)
	SetRateConfig(ctx context.Context, cfg *domain.RateConfig) error
	InvalidateRateConfig(ctx context.Context) error
}

// Ensure concrete types implement interfaces.
var (
	_ LocationStoreInterface = (*LocationStore)(nil)
	_ LockStoreInterface     = (*LockStore)(nil)
	_ CacheStoreInterface    = (*CacheStore)(nil)
)
