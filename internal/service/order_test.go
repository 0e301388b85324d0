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

	"dispatch/internal/domain"
	"dispatch/internal/redis"
	"dispatch/internal/repository"
)

func TestCanTransition(t *testing.T) {
	tests := []struct {
		from, to domain.OrderStatus
		want     bool
	}{
		{domain.OrderStatusAssigned, domain.OrderStatusPickedUp, true},
		{domain.OrderStatusAssigned, domain.OrderStatusCancelled, true},
		{domain.OrderStatusAssigned, domain.OrderStatusInTransit, false},
		{domain.OrderStatusAssigned, domain.OrderStatusDelivered, false},
		{domain.OrderStatusAssigned, domain.OrderStatusFailed, false},
		{domain.OrderStatusPickedUp, domain.OrderStatusInTransit, true},
		{domain.OrderStatusPickedUp, domain.OrderStatusFailed, true},
		{domain.OrderStatusPickedUp, domain.OrderStatusDelivered, false},
		{domain.OrderStatusInTransit, domain.OrderStatusDelivered, true},
		{domain.OrderStatusInTransit, domain.OrderStatusCancelled, true},
		{domain.OrderStatusDelivered, domain.OrderStatusCancelled, false},
		{domain.OrderStatusCancelled, domain.OrderStatusAssigned, false},
		{domain.OrderStatusFailed, domain.OrderStatusPickedUp, false},
	}
	for _, tt := range tests {
		t.Run(string(tt.from)+"->"+string(tt.to), func(t *testing.T) {
			assert.Equal(t, tt.want, CanTransition(tt.from, tt.to))
		})
	}
}

// assignTo assigns a fresh order to the only agent in zone "downtown".
func (f *fixture) assignTo(t *testing.T, agentID string) *domain.DeliveryOrder {
	t.Helper()
	f.addAgent(t, agentID, "downtown", pickupPoint)
	res, err := f.dispatch.AssignOrder(context.Background(), assignRequest("downtown"))
	require.NoError(t, err)
	require.Equal(t, agentID, res.AgentID)
	return res.Order
}

func (f *fixture) step(t *testing.T, order *domain.DeliveryOrder, to domain.OrderStatus) *domain.DeliveryOrder {
	t.Helper()
	out, err := f.orders.Transition(context.Background(), TransitionRequest{
		OrderID: order.ID,
		AgentID: order.AgentID,
		To:      to,
	})
	require.NoError(t, err)
	return out
}

func TestTransition_FullLifecycle(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	mr := miniredis.RunT(t)
	client := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	f.orders.locationStore = redis.NewLocationStore(client)

	order := f.assignTo(t, "a1")

	f.clock.Advance(4 * time.Minute)
	order = f.step(t, order, domain.OrderStatusPickedUp)
	require.NotNil(t, order.Tracking.PickedUpAt)

	f.clock.Advance(2 * time.Minute)
	here := domain.Coordinates{Lat: 41.30, Lng: 69.25}
	order, err := f.orders.Transition(ctx, TransitionRequest{
		OrderID:  order.ID,
		AgentID:  "a1",
		To:       domain.OrderStatusInTransit,
		Location: &here,
	})
	require.NoError(t, err)
	require.NotNil(t, order.Tracking.InTransitAt)

	pos, err := client.GeoPos(ctx, "agents:locations", "a1").Result()
	require.NoError(t, err)
	require.NotNil(t, pos[0])
	assert.InDelta(t, here.Lat, pos[0].Latitude, 0.001)
	assert.InDelta(t, here.Lng, pos[0].Longitude, 0.001)
	assert.Equal(t, here, f.agent(t, "a1").Location.Coordinates)

	f.clock.Advance(6 * time.Minute)
	order, err = f.orders.Transition(ctx, TransitionRequest{
		OrderID:  order.ID,
		AgentID:  "a1",
		To:       domain.OrderStatusDelivered,
		Rating:   ptr(5.0),
		Feedback: "fast",
	})
	require.NoError(t, err)

	assert.Equal(t, domain.OrderStatusDelivered, order.Status)
	require.NotNil(t, order.Performance.ActualTime)
	assert.Equal(t, 8, *order.Performance.ActualTime)
	require.NotNil(t, order.Performance.OnTime)
	assert.True(t, *order.Performance.OnTime)
	assert.True(t, order.PaymentInfo.IsPaid)
	assert.Greater(t, order.PaymentInfo.Bonus, 0.0, "a fast five-star delivery earns a bonus")

	stored, err := f.orders.GetOrder(ctx, order.ID)
	require.NoError(t, err)
	assert.True(t, stored.PaymentInfo.IsPaid)
	assert.Equal(t, domain.OrderStatusDelivered, stored.Status)

	w := f.wallet(t, "a1")
	assert.InDelta(t, order.PaymentInfo.TotalPayment, w.CurrentBalance, 1e-9)
	assert.InDelta(t, order.PaymentInfo.TotalPayment, w.TotalEarned, 1e-9)

	a := f.agent(t, "a1")
	assert.Equal(t, domain.AgentStatusAvailable, a.Status)
	assert.Equal(t, 1, a.Performance.CompletedDeliveries)
	assert.Equal(t, 1, a.Performance.OnTimeDeliveries)
	assert.InDelta(t, 5.0, a.Performance.AverageRating, 1e-9)
	assert.InDelta(t, 8.0, a.Performance.AverageDeliveryTime, 1e-9)
	assert.InDelta(t, order.PaymentInfo.TotalPayment, a.Performance.TotalEarnings, 1e-9)

	active, err := f.store.Orders().GetActiveByAgentID(ctx, "a1")
	require.NoError(t, err)
	assert.Nil(t, active)

	assert.Contains(t, f.notifier.kinds(), NotificationOrderDelivered)
	assert.Contains(t, f.notifier.kinds(), NotificationPaymentCredited)
}

func TestTransition_IllegalStepLeavesOrderUnchanged(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	order := f.assignTo(t, "a1")

	for _, to := range []domain.OrderStatus{domain.OrderStatusInTransit, domain.OrderStatusDelivered, domain.OrderStatusFailed} {
		_, err := f.orders.Transition(ctx, TransitionRequest{OrderID: order.ID, AgentID: "a1", To: to})
		assert.ErrorIs(t, err, ErrInvalidTransition, "assigned -> %s", to)
	}

	stored, err := f.orders.GetOrder(ctx, order.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.OrderStatusAssigned, stored.Status)
	assert.Nil(t, stored.Tracking.DeliveredAt)
	assert.Zero(t, f.wallet(t, "a1").CurrentBalance)
}

func TestTransition_WrongAgent(t *testing.T) {
	f := newFixture(t)
	order := f.assignTo(t, "a1")

	_, err := f.orders.Transition(context.Background(), TransitionRequest{
		OrderID: order.ID,
		AgentID: "intruder",
		To:      domain.OrderStatusPickedUp,
	})
	assert.ErrorIs(t, err, ErrInvalidTransition)

	stored, err := f.orders.GetOrder(context.Background(), order.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.OrderStatusAssigned, stored.Status)
}

func TestTransition_Validation(t *testing.T) {
	f := newFixture(t)
	order := f.assignTo(t, "a1")
	bad := domain.Coordinates{Lat: 100}

	tests := []struct {
		name    string
		req     TransitionRequest
		wantErr error
	}{
		{"missing order", TransitionRequest{AgentID: "a1", To: domain.OrderStatusPickedUp}, ErrInvalidOrderID},
		{"missing agent", TransitionRequest{OrderID: order.ID, To: domain.OrderStatusPickedUp}, ErrInvalidAgentID},
		{"unknown state", TransitionRequest{OrderID: order.ID, AgentID: "a1", To: "lost"}, ErrUnknownState},
		{"bad location", TransitionRequest{OrderID: order.ID, AgentID: "a1", To: domain.OrderStatusPickedUp, Location: &bad}, ErrInvalidLocation},
		{"rating too high", TransitionRequest{OrderID: order.ID, AgentID: "a1", To: domain.OrderStatusPickedUp, Rating: ptr(6.0)}, ErrInvalidRating},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.orders.Transition(context.Background(), tt.req)
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestTransition_TerminalFreesAgent(t *testing.T) {
	tests := []struct {
		name string
		path []domain.OrderStatus
	}{
		{"cancel from assigned", []domain.OrderStatus{domain.OrderStatusCancelled}},
		{"cancel in transit", []domain.OrderStatus{domain.OrderStatusPickedUp, domain.OrderStatusInTransit, domain.OrderStatusCancelled}},
		{"fail after pickup", []domain.OrderStatus{domain.OrderStatusPickedUp, domain.OrderStatusFailed}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			order := f.assignTo(t, "a1")
			for _, to := range tt.path {
				f.clock.Advance(time.Minute)
				order = f.step(t, order, to)
			}

			assert.True(t, order.Status.IsTerminal())
			assert.Equal(t, domain.AgentStatusAvailable, f.agent(t, "a1").Status)
			assert.Zero(t, f.wallet(t, "a1").CurrentBalance, "only delivered orders are paid")

			// The freed agent can take the next order.
			res, err := f.dispatch.AssignOrder(context.Background(), assignRequest("downtown"))
			require.NoError(t, err)
			assert.Equal(t, "a1", res.AgentID)
		})
	}
}

func TestTransition_FailedIsAuditedAsWarning(t *testing.T) {
	f := newFixture(t)
	order := f.assignTo(t, "a1")
	order = f.step(t, order, domain.OrderStatusPickedUp)

	_, err := f.orders.Transition(context.Background(), TransitionRequest{
		OrderID: order.ID,
		AgentID: "a1",
		To:      domain.OrderStatusFailed,
		Reason:  "customer unreachable",
	})
	require.NoError(t, err)

	warnings := f.audit.byLevel(domain.AuditLevelWarning)
	require.NotEmpty(t, warnings)
	last := warnings[len(warnings)-1]
	assert.Equal(t, domain.AuditCategoryLifecycle, last.Category)
	assert.Equal(t, "customer unreachable", last.Metadata["reason"])
}

func TestTransition_DuplicateDeliverPaysOnce(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	order := f.assignTo(t, "a1")
	order = f.step(t, order, domain.OrderStatusPickedUp)
	order = f.step(t, order, domain.OrderStatusInTransit)
	order = f.step(t, order, domain.OrderStatusDelivered)
	paid := f.wallet(t, "a1").CurrentBalance
	require.Greater(t, paid, 0.0)

	_, err := f.orders.Transition(ctx, TransitionRequest{OrderID: order.ID, AgentID: "a1", To: domain.OrderStatusDelivered})
	assert.ErrorIs(t, err, ErrInvalidTransition)
	assert.Equal(t, paid, f.wallet(t, "a1").CurrentBalance)
	assert.Equal(t, 1, f.agent(t, "a1").Performance.CompletedDeliveries)
}

func TestTransition_SettlementFailureLeavesOrderInTransit(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	order := f.assignTo(t, "a1")
	order = f.step(t, order, domain.OrderStatusPickedUp)
	order = f.step(t, order, domain.OrderStatusInTransit)

	// An earlier payment for the same order makes settlement a duplicate.
	_, err := f.ledger.Credit(ctx, CreditRequest{
		AgentID: "a1",
		Type:    domain.TransactionDeliveryPayment,
		Amount:  1,
		OrderID: order.ID,
	})
	require.NoError(t, err)

	_, err = f.orders.Transition(ctx, TransitionRequest{OrderID: order.ID, AgentID: "a1", To: domain.OrderStatusDelivered})
	require.ErrorIs(t, err, ErrDuplicateSettlement)

	stored, err := f.orders.GetOrder(ctx, order.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.OrderStatusInTransit, stored.Status)
	assert.False(t, stored.PaymentInfo.IsPaid)
	assert.Nil(t, stored.Tracking.DeliveredAt)

	a := f.agent(t, "a1")
	assert.Equal(t, domain.AgentStatusBusy, a.Status)
	assert.Zero(t, a.Performance.CompletedDeliveries)
	assert.InDelta(t, 1.0, f.wallet(t, "a1").CurrentBalance, 1e-9)
	assert.NotEmpty(t, f.audit.byLevel(domain.AuditLevelError))
}

func TestTransition_DeliverWithoutWalletIsRetryable(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	now := f.clock.Now()
	require.NoError(t, f.store.Agents().Create(ctx, &domain.Agent{
		ID:        "a1",
		Name:      "Agent a1",
		Status:    domain.AgentStatusAvailable,
		Zones:     []string{"downtown"},
		Location:  &domain.KnownLocation{Coordinates: pickupPoint, UpdatedAt: now},
		IsActive:  true,
		CreatedAt: now,
		UpdatedAt: now,
	}))
	res, err := f.dispatch.AssignOrder(ctx, assignRequest("downtown"))
	require.NoError(t, err)
	order := f.step(t, res.Order, domain.OrderStatusPickedUp)
	order = f.step(t, order, domain.OrderStatusInTransit)

	_, err = f.orders.Transition(ctx, TransitionRequest{OrderID: order.ID, AgentID: "a1", To: domain.OrderStatusDelivered})
	require.ErrorIs(t, err, repository.ErrNotFound)

	stored, err := f.orders.GetOrder(ctx, order.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.OrderStatusInTransit, stored.Status)
	assert.Equal(t, domain.AgentStatusBusy, f.agent(t, "a1").Status)
	assert.Zero(t, f.agent(t, "a1").Performance.CompletedDeliveries)

	require.NoError(t, f.store.Ledger().CreateWallet(ctx, &domain.WalletAccount{
		AgentID:   "a1",
		Currency:  "USD",
		IsActive:  true,
		CreatedAt: now,
		UpdatedAt: now,
	}))
	delivered := f.step(t, order, domain.OrderStatusDelivered)
	assert.True(t, delivered.PaymentInfo.IsPaid)
	assert.InDelta(t, delivered.PaymentInfo.TotalPayment, f.wallet(t, "a1").CurrentBalance, 1e-9)
	assert.Equal(t, domain.AgentStatusAvailable, f.agent(t, "a1").Status)
	assert.Equal(t, 1, f.agent(t, "a1").Performance.CompletedDeliveries)
}

// deliverUnpaid stores order as delivered without crediting the agent.
func (f *fixture) deliverUnpaid(t *testing.T, order *domain.DeliveryOrder) {
	t.Helper()
	delivered := *order
	now := f.clock.Now()
	delivered.Status = domain.OrderStatusDelivered
	delivered.Tracking.DeliveredAt = &now
	delivered.Performance.ActualTime = ptr(22)
	delivered.Performance.OnTime = ptr(true)
	require.NoError(t, f.store.Orders().ApplyTransition(context.Background(), &delivered, order.Status))
}

func TestSettleDelivered_CreditsUnpaidOrder(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	order := f.assignTo(t, "a1")
	order = f.step(t, order, domain.OrderStatusPickedUp)
	order = f.step(t, order, domain.OrderStatusInTransit)
	f.deliverUnpaid(t, order)

	settled, err := f.orders.SettleDelivered(ctx, order.ID, "ops-1")
	require.NoError(t, err)
	assert.True(t, settled.PaymentInfo.IsPaid)
	assert.Greater(t, settled.PaymentInfo.TotalPayment, 0.0)
	assert.InDelta(t, settled.PaymentInfo.TotalPayment, f.wallet(t, "a1").CurrentBalance, 1e-9)

	a := f.agent(t, "a1")
	assert.Equal(t, 1, a.Performance.CompletedDeliveries)
	assert.Equal(t, 1, a.Performance.OnTimeDeliveries)

	stored, err := f.orders.GetOrder(ctx, order.ID)
	require.NoError(t, err)
	assert.True(t, stored.PaymentInfo.IsPaid)

	_, err = f.orders.SettleDelivered(ctx, order.ID, "ops-1")
	assert.ErrorIs(t, err, ErrDuplicateSettlement)
	assert.InDelta(t, settled.PaymentInfo.TotalPayment, f.wallet(t, "a1").CurrentBalance, 1e-9)
}

func TestSettleDelivered_AlreadyCreditedOnlyMarksPaid(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	order := f.assignTo(t, "a1")
	order = f.step(t, order, domain.OrderStatusPickedUp)
	order = f.step(t, order, domain.OrderStatusInTransit)
	f.deliverUnpaid(t, order)
	_, err := f.ledger.Credit(ctx, CreditRequest{
		AgentID: "a1",
		Type:    domain.TransactionDeliveryPayment,
		Amount:  3,
		OrderID: order.ID,
	})
	require.NoError(t, err)

	settled, err := f.orders.SettleDelivered(ctx, order.ID, "ops-1")
	require.NoError(t, err)
	assert.True(t, settled.PaymentInfo.IsPaid)
	assert.InDelta(t, 3.0, f.wallet(t, "a1").CurrentBalance, 1e-9)
	assert.Zero(t, f.agent(t, "a1").Performance.CompletedDeliveries)
}

func TestSettleDelivered_RejectsUndeliveredOrder(t *testing.T) {
	f := newFixture(t)
	order := f.assignTo(t, "a1")

	_, err := f.orders.SettleDelivered(context.Background(), order.ID, "ops-1")
	assert.ErrorIs(t, err, ErrInvalidTransition)
	assert.Zero(t, f.wallet(t, "a1").CurrentBalance)
}

func TestTransition_DeliverWithoutConfig(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	order := f.assignTo(t, "a1")
	order = f.step(t, order, domain.OrderStatusPickedUp)
	order = f.step(t, order, domain.OrderStatusInTransit)

	f.rates.set(nil)
	_, err := f.orders.Transition(ctx, TransitionRequest{OrderID: order.ID, AgentID: "a1", To: domain.OrderStatusDelivered})
	assert.ErrorIs(t, err, ErrConfigMissing)

	stored, err := f.orders.GetOrder(ctx, order.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.OrderStatusInTransit, stored.Status)
	assert.Equal(t, domain.AgentStatusBusy, f.agent(t, "a1").Status)
}

func TestTransition_NotifierFailureDoesNotRollBack(t *testing.T) {
	f := newFixture(t)
	order := f.assignTo(t, "a1")
	f.notifier.fails = true

	order = f.step(t, order, domain.OrderStatusPickedUp)
	assert.Equal(t, domain.OrderStatusPickedUp, order.Status)
}

func TestGetOrder_NotFound(t *testing.T) {
	svc := NewOrderService(newFixture(t).store.Orders(), nil, nil, nil, nil, nil, nil, nil, nil, zap.NewNop())
	_, err := svc.GetOrder(context.Background(), "missing")
	assert.Error(t, err)

	_, err = svc.GetOrder(context.Background(), "")
	assert.ErrorIs(t, err, ErrInvalidOrderID)
}
