package service

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"dispatch/internal/config"
	"dispatch/internal/domain"
	"dispatch/internal/redis"
	"dispatch/internal/repository/memory"
)

func TestSettingsService_MissingConfig(t *testing.T) {
	svc := NewSettingsService(memory.NewStore().Settings(), nil, zap.NewNop())
	_, err := svc.Current(context.Background())
	assert.ErrorIs(t, err, ErrConfigMissing)
}

func TestSettingsService_CachedReads(t *testing.T) {
	ctx := context.Background()
	mr := miniredis.RunT(t)
	client := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	repo := memory.NewStore().Settings()
	svc := NewSettingsService(repo, redis.NewCacheStore(client, time.Minute), zap.NewNop())

	require.NoError(t, svc.Update(ctx, config.DefaultRateConfig()))
	cfg, err := svc.Current(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2.0, cfg.BaseDeliveryFee)
	require.NotEmpty(t, mr.Keys(), "first read fills the cache")

	// A write that bypasses the service is hidden by the cache.
	direct := config.DefaultRateConfig()
	direct.BaseDeliveryFee = 9
	require.NoError(t, repo.Put(ctx, direct))
	cfg, err = svc.Current(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2.0, cfg.BaseDeliveryFee)

	// Updates through the service invalidate it.
	next := config.DefaultRateConfig()
	next.BaseDeliveryFee = 3
	require.NoError(t, svc.Update(ctx, next))
	cfg, err = svc.Current(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3.0, cfg.BaseDeliveryFee)
}

func TestSettingsService_CacheOutageFallsBackToStore(t *testing.T) {
	ctx := context.Background()
	mr := miniredis.RunT(t)
	client := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	repo := memory.NewStore().Settings()
	require.NoError(t, repo.Put(ctx, config.DefaultRateConfig()))
	svc := NewSettingsService(repo, redis.NewCacheStore(client, time.Minute), zap.NewNop())

	mr.Close()
	cfg, err := svc.Current(ctx)
	require.NoError(t, err)
	assert.Equal(t, "USD", cfg.Currency)
}

func TestValidateRateConfig(t *testing.T) {
	assert.NoError(t, ValidateRateConfig(config.DefaultRateConfig()))
	assert.ErrorIs(t, ValidateRateConfig(nil), ErrConfigMissing)

	tests := map[string]func(c *domain.RateConfig){
		"no currency":         func(c *domain.RateConfig) { c.Currency = "" },
		"negative base":       func(c *domain.RateConfig) { c.BaseDeliveryFee = -1 },
		"zero peak":           func(c *domain.RateConfig) { c.PeakHoursMultiplier = 0 },
		"commission above 1":  func(c *domain.RateConfig) { c.CommissionDeductionRate = 1.5 },
		"inverted withdrawal": func(c *domain.RateConfig) { c.Withdrawals.MaximumAmount = 1 },
	}
	for name, mutate := range tests {
		t.Run(name, func(t *testing.T) {
			cfg := config.DefaultRateConfig()
			mutate(cfg)
			assert.ErrorIs(t, ValidateRateConfig(cfg), ErrInvalidRateConfig)
		})
	}
}
