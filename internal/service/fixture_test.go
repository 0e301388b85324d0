package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"dispatch/internal/config"
	"dispatch/internal/domain"
	"dispatch/internal/repository/memory"
)

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type recordingAudit struct {
	mu      sync.Mutex
	entries []domain.AuditEntry
}

func (a *recordingAudit) Append(ctx context.Context, e domain.AuditEntry) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.entries = append(a.entries, e)
	return nil
}

func (a *recordingAudit) byLevel(level domain.AuditLevel) []domain.AuditEntry {
	a.mu.Lock()
	defer a.mu.Unlock()
	var out []domain.AuditEntry
	for _, e := range a.entries {
		if e.Level == level {
			out = append(out, e)
		}
	}
	return out
}

type recordingNotifier struct {
	mu    sync.Mutex
	sent  []Notification
	fails bool
}

func (n *recordingNotifier) Notify(ctx context.Context, msg Notification) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.sent = append(n.sent, msg)
	if n.fails {
		return context.DeadlineExceeded
	}
	return nil
}

func (n *recordingNotifier) kinds() []NotificationKind {
	n.mu.Lock()
	defer n.mu.Unlock()
	out := make([]NotificationKind, 0, len(n.sent))
	for _, m := range n.sent {
		out = append(out, m.Kind)
	}
	return out
}

// fixtureRates is a RateConfigSource backed by a plain value.
type fixtureRates struct {
	mu  sync.Mutex
	cfg *domain.RateConfig
}

func (r *fixtureRates) Current(ctx context.Context) (*domain.RateConfig, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.cfg == nil {
		return nil, ErrConfigMissing
	}
	return r.cfg, nil
}

func (r *fixtureRates) set(cfg *domain.RateConfig) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.cfg = cfg
}

type fixture struct {
	store       *memory.Store
	clock       *testClock
	rates       *fixtureRates
	payout      *MockPayout
	audit       *recordingAudit
	notifier    *recordingNotifier
	dispatch    *DispatchService
	orders      *OrderService
	ledger      *LedgerService
	performance *PerformanceService
}

// Downtown Tashkent, used as the default pickup.
var pickupPoint = domain.Coordinates{Lat: 41.3111, Lng: 69.2797}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	logger := zap.NewNop()

	f := &fixture{
		store:    memory.NewStore(),
		clock:    &testClock{now: time.Date(2026, 3, 11, 14, 0, 0, 0, time.UTC)}, // Wednesday
		rates:    &fixtureRates{cfg: config.DefaultRateConfig()},
		payout:   NewMockPayout(),
		audit:    &recordingAudit{},
		notifier: &recordingNotifier{},
	}

	f.performance = NewPerformanceService(f.store.Agents(), logger)
	f.performance.now = f.clock.Now

	f.ledger = NewLedgerService(f.store.Ledger(), f.rates, f.payout, f.notifier, f.audit, logger, time.Second)
	f.ledger.now = f.clock.Now

	f.dispatch = NewDispatchService(f.store.Agents(), f.store.Orders(), f.rates, nil, f.notifier, f.audit, logger, 0)
	f.dispatch.now = f.clock.Now

	volume := NewVolumeCounter(f.store.Ledger(), time.UTC)
	f.orders = NewOrderService(f.store.Orders(), f.store.Agents(), f.rates, volume, f.ledger, f.performance, nil, f.notifier, f.audit, logger)
	f.orders.now = f.clock.Now

	return f
}

// addAgent creates an available agent in zone at loc with an empty active wallet.
func (f *fixture) addAgent(t *testing.T, id, zone string, loc domain.Coordinates) {
	t.Helper()
	ctx := context.Background()
	now := f.clock.Now()

	require.NoError(t, f.store.Agents().Create(ctx, &domain.Agent{
		ID:        id,
		Name:      "Agent " + id,
		Status:    domain.AgentStatusAvailable,
		Zones:     []string{zone},
		Location:  &domain.KnownLocation{Coordinates: loc, UpdatedAt: now},
		IsActive:  true,
		CreatedAt: now,
		UpdatedAt: now,
	}))
	require.NoError(t, f.store.Ledger().CreateWallet(ctx, &domain.WalletAccount{
		AgentID:   id,
		Currency:  "USD",
		IsActive:  true,
		CreatedAt: now,
		UpdatedAt: now,
	}))
	// Distinct creation times keep candidate order deterministic.
	f.clock.Advance(time.Second)
}

// fund credits amount to the agent's wallet as an adjustment.
func (f *fixture) fund(t *testing.T, agentID string, amount float64) {
	t.Helper()
	_, err := f.ledger.Credit(context.Background(), CreditRequest{
		AgentID: agentID,
		Type:    domain.TransactionAdjustment,
		Amount:  amount,
	})
	require.NoError(t, err)
}

func (f *fixture) wallet(t *testing.T, agentID string) *domain.WalletAccount {
	t.Helper()
	w, err := f.store.Ledger().GetWallet(context.Background(), agentID)
	require.NoError(t, err)
	return w
}

func (f *fixture) agent(t *testing.T, agentID string) *domain.Agent {
	t.Helper()
	a, err := f.store.Agents().GetByID(context.Background(), agentID)
	require.NoError(t, err)
	return a
}

func assignRequest(zone string) AssignOrderRequest {
	return AssignOrderRequest{
		MarketplaceOrderID: "mp-1",
		Pickup:             domain.Stop{Address: "Amir Temur 1", Coordinates: pickupPoint},
		Dropoff:            domain.Stop{Address: "Chilonzor 9", Coordinates: domain.Coordinates{Lat: 41.2856, Lng: 69.2034}},
		OrderValue:         40,
		Zone:               zone,
	}
}

func ptr[T any](v T) *T { return &v }
