package service

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"dispatch/internal/domain"
	"dispatch/internal/redis"
)

func TestAssignOrder_PicksNearestInZone(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.addAgent(t, "far", "downtown", domain.Coordinates{Lat: 41.40, Lng: 69.40})
	f.addAgent(t, "near", "downtown", domain.Coordinates{Lat: 41.312, Lng: 69.281})
	f.addAgent(t, "other-zone", "airport", pickupPoint)

	res, err := f.dispatch.AssignOrder(ctx, assignRequest("downtown"))
	require.NoError(t, err)

	assert.Equal(t, "near", res.AgentID)
	assert.Equal(t, res.Order.ID, res.DeliveryOrderID)
	assert.Equal(t, "USD", res.PaymentInfo.Currency)
	assert.False(t, res.PaymentInfo.IsPaid)
	assert.Greater(t, res.PaymentInfo.TotalPayment, 0.0)

	order, err := f.store.Orders().GetByID(ctx, res.DeliveryOrderID)
	require.NoError(t, err)
	assert.Equal(t, domain.OrderStatusAssigned, order.Status)
	assert.Equal(t, domain.PriorityNormal, order.Metadata.Priority)
	assert.Equal(t, domain.WeatherNormal, order.Metadata.Weather)
	assert.Equal(t, f.clock.Now(), order.Tracking.AssignedAt)
	assert.Equal(t,
		order.Tracking.AssignedAt.Add(time.Duration(order.Performance.EstimatedTime)*time.Minute),
		order.Tracking.EstimatedDeliveryAt)
	assert.InDelta(t, DistanceKm(order.Pickup.Coordinates, order.Dropoff.Coordinates), order.Performance.DistanceKm, 1e-9)

	assert.Equal(t, domain.AgentStatusBusy, f.agent(t, "near").Status)
	assert.Equal(t, domain.AgentStatusAvailable, f.agent(t, "far").Status)
	assert.Contains(t, f.notifier.kinds(), NotificationOrderAssigned)
	assert.NotEmpty(t, f.audit.byLevel(domain.AuditLevelInfo))
}

func TestAssignOrder_NoCandidate(t *testing.T) {
	f := newFixture(t)
	f.addAgent(t, "a1", "airport", pickupPoint)

	_, err := f.dispatch.AssignOrder(context.Background(), assignRequest("downtown"))
	assert.ErrorIs(t, err, ErrNoCandidateAvailable)
	assert.Len(t, f.audit.byLevel(domain.AuditLevelWarning), 1)
}

func TestAssignOrder_Validation(t *testing.T) {
	f := newFixture(t)
	f.addAgent(t, "a1", "downtown", pickupPoint)

	tests := []struct {
		name    string
		mutate  func(*AssignOrderRequest)
		wantErr error
	}{
		{"missing marketplace order", func(r *AssignOrderRequest) { r.MarketplaceOrderID = "" }, ErrInvalidOrderID},
		{"missing zone", func(r *AssignOrderRequest) { r.Zone = "" }, ErrInvalidZone},
		{"bad pickup", func(r *AssignOrderRequest) { r.Pickup.Coordinates.Lat = 91 }, ErrInvalidLocation},
		{"bad dropoff", func(r *AssignOrderRequest) { r.Dropoff.Coordinates.Lng = -181 }, ErrInvalidLocation},
		{"negative value", func(r *AssignOrderRequest) { r.OrderValue = -1 }, ErrInvalidAmount},
		{"unknown priority", func(r *AssignOrderRequest) { r.Priority = "asap" }, ErrInvalidPriority},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := assignRequest("downtown")
			tt.mutate(&req)
			_, err := f.dispatch.AssignOrder(context.Background(), req)
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
	assert.Equal(t, domain.AgentStatusAvailable, f.agent(t, "a1").Status, "rejected requests must not mutate")
}

func TestAssignOrder_ConfigMissing(t *testing.T) {
	f := newFixture(t)
	f.addAgent(t, "a1", "downtown", pickupPoint)
	f.rates.set(nil)

	_, err := f.dispatch.AssignOrder(context.Background(), assignRequest("downtown"))
	assert.ErrorIs(t, err, ErrConfigMissing)
	assert.Equal(t, domain.AgentStatusAvailable, f.agent(t, "a1").Status)
}

func TestAssignOrder_ConcurrentSingleAgent(t *testing.T) {
	f := newFixture(t)
	f.addAgent(t, "only", "downtown", pickupPoint)

	const n = 20
	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		successes int
		rejected  int
	)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			req := assignRequest("downtown")
			req.MarketplaceOrderID = fmt.Sprintf("mp-%d", i)
			_, err := f.dispatch.AssignOrder(context.Background(), req)

			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				successes++
			case assert.ErrorIs(t, err, ErrNoCandidateAvailable):
				rejected++
			}
		}(i)
	}
	wg.Wait()

	assert.Equal(t, 1, successes)
	assert.Equal(t, n-1, rejected)

	active, err := f.store.Orders().GetActiveByAgentID(context.Background(), "only")
	require.NoError(t, err)
	require.NotNil(t, active)
}

func TestAssignOrder_LoserRetriesNextCandidate(t *testing.T) {
	f := newFixture(t)
	f.addAgent(t, "a1", "downtown", pickupPoint)
	f.addAgent(t, "a2", "downtown", domain.Coordinates{Lat: 41.32, Lng: 69.29})
	f.addAgent(t, "a3", "downtown", domain.Coordinates{Lat: 41.33, Lng: 69.30})

	var wg sync.WaitGroup
	results := make([]*AssignOrderResult, 3)
	errs := make([]error, 3)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			req := assignRequest("downtown")
			req.MarketplaceOrderID = fmt.Sprintf("mp-%d", i)
			results[i], errs[i] = f.dispatch.AssignOrder(context.Background(), req)
		}(i)
	}
	wg.Wait()

	// Every request may see a different snapshot, but no agent is ever assigned twice.
	seen := map[string]bool{}
	for i, err := range errs {
		if err != nil {
			assert.ErrorIs(t, err, ErrNoCandidateAvailable)
			continue
		}
		assert.False(t, seen[results[i].AgentID], "agent %s assigned twice", results[i].AgentID)
		seen[results[i].AgentID] = true
	}
	assert.NotEmpty(t, seen)
}

func TestAssignOrder_SkipsLockedAgent(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.addAgent(t, "near", "downtown", pickupPoint)
	f.addAgent(t, "far", "downtown", domain.Coordinates{Lat: 41.35, Lng: 69.35})

	mr := miniredis.RunT(t)
	client := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	locks := redis.NewLockStore(client)

	svc := NewDispatchService(f.store.Agents(), f.store.Orders(), f.rates, locks, nil, nil, zap.NewNop(), time.Second)

	_, held, err := locks.AcquireAgentLock(ctx, "near", time.Minute)
	require.NoError(t, err)
	require.True(t, held)

	res, err := svc.AssignOrder(ctx, assignRequest("downtown"))
	require.NoError(t, err)
	assert.Equal(t, "far", res.AgentID)

	// The lock taken for "far" is released after assignment.
	_, ok, err := locks.AcquireAgentLock(ctx, "far", time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)
}
