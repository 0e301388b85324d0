package redis

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dispatch/internal/domain"
)

func newTestClient(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return mr, client
}

func TestLockStore_AcquireRelease(t *testing.T) {
	mr, client := newTestClient(t)
	store := NewLockStore(client)
	ctx := context.Background()

	token, ok, err := store.AcquireAgentLock(ctx, "a1", 10*time.Second)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.NotEmpty(t, token)

	_, ok, err = store.AcquireAgentLock(ctx, "a1", 10*time.Second)
	require.NoError(t, err)
	assert.False(t, ok, "second acquire must fail while held")

	require.NoError(t, store.ReleaseAgentLock(ctx, "a1", token))
	_, ok, err = store.AcquireAgentLock(ctx, "a1", 10*time.Second)
	require.NoError(t, err)
	assert.True(t, ok)

	mr.FastForward(11 * time.Second)
	_, ok, err = store.AcquireAgentLock(ctx, "a1", 10*time.Second)
	require.NoError(t, err)
	assert.True(t, ok, "lock expires after ttl")
}

func TestLockStore_StaleTokenDoesNotRelease(t *testing.T) {
	mr, client := newTestClient(t)
	store := NewLockStore(client)
	ctx := context.Background()

	stale, ok, err := store.AcquireAgentLock(ctx, "a1", time.Second)
	require.NoError(t, err)
	require.True(t, ok)

	mr.FastForward(2 * time.Second)
	current, ok, err := store.AcquireAgentLock(ctx, "a1", time.Minute)
	require.NoError(t, err)
	require.True(t, ok)

	require.NoError(t, store.ReleaseAgentLock(ctx, "a1", stale))
	_, ok, err = store.AcquireAgentLock(ctx, "a1", time.Minute)
	require.NoError(t, err)
	assert.False(t, ok, "stale owner must not free the current lock")

	require.NoError(t, store.ReleaseAgentLock(ctx, "a1", current))
	assert.False(t, mr.Exists(agentLockKey("a1")))
}

func TestLocationStore_UpdateLocation(t *testing.T) {
	_, client := newTestClient(t)
	store := NewLocationStore(client)
	ctx := context.Background()

	require.NoError(t, store.UpdateLocation(ctx, "a1", 41.3111, 69.2797))

	pos, err := client.GeoPos(ctx, agentLocationKey, "a1").Result()
	require.NoError(t, err)
	require.Len(t, pos, 1)
	require.NotNil(t, pos[0])
	assert.InDelta(t, 41.3111, pos[0].Latitude, 0.001)
	assert.InDelta(t, 69.2797, pos[0].Longitude, 0.001)
}

func TestCacheStore_RateConfig(t *testing.T) {
	mr, client := newTestClient(t)
	store := NewCacheStore(client, 5*time.Second)
	ctx := context.Background()

	got, err := store.GetRateConfig(ctx)
	require.NoError(t, err)
	assert.Nil(t, got, "empty cache is a miss")

	cfg := &domain.RateConfig{Currency: "USD", BaseDeliveryFee: 2, ZoneMultipliers: map[string]float64{"centro": 1.1}}
	require.NoError(t, store.SetRateConfig(ctx, cfg))

	got, err = store.GetRateConfig(ctx)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, 2.0, got.BaseDeliveryFee)
	assert.Equal(t, 1.1, got.ZoneMultiplier("centro"))

	mr.FastForward(6 * time.Second)
	got, err = store.GetRateConfig(ctx)
	require.NoError(t, err)
	assert.Nil(t, got, "entry expires after ttl")

	require.NoError(t, store.SetRateConfig(ctx, cfg))
	require.NoError(t, store.InvalidateRateConfig(ctx))
	got, err = store.GetRateConfig(ctx)
	require.NoError(t, err)
	assert.Nil(t, got)
}
