// Package memory provides an in-process implementation of the repository
// interfaces. All collections share one lock, so operations that touch
// several records (assign order + mark agent busy, debit + append entry) are
// atomic with respect to each other.
package memory

import (
	"sync"

	"dispatch/internal/domain"
)

// Store holds the four collections and the RateConfig singleton.
type Store struct {
	mu sync.RWMutex

	agents       map[string]*domain.Agent
	orders       map[string]*domain.DeliveryOrder
	wallets      map[string]*domain.WalletAccount
	transactions map[string]*domain.LedgerTransaction
	txOrder      []string          // insertion order of transaction ids
	txKeys       map[string]string // idempotency key -> transaction id
	settings     *domain.RateConfig
}

// NewStore creates an empty store.
func NewStore() *Store {
	return &Store{
		agents:       make(map[string]*domain.Agent),
		orders:       make(map[string]*domain.DeliveryOrder),
		wallets:      make(map[string]*domain.WalletAccount),
		transactions: make(map[string]*domain.LedgerTransaction),
		txKeys:       make(map[string]string),
	}
}

// Agents returns the agent repository view of the store.
func (s *Store) Agents() *AgentRepository { return &AgentRepository{s: s} }

// Orders returns the order repository view of the store.
func (s *Store) Orders() *OrderRepository { return &OrderRepository{s: s} }

// Ledger returns the ledger repository view of the store.
func (s *Store) Ledger() *LedgerRepository { return &LedgerRepository{s: s} }

// Settings returns the settings repository view of the store.
func (s *Store) Settings() *SettingsRepository { return &SettingsRepository{s: s} }

func copyAgent(a *domain.Agent) *domain.Agent {
	c := *a
	c.Zones = append([]string(nil), a.Zones...)
	if a.Location != nil {
		loc := *a.Location
		c.Location = &loc
	}
	return &c
}

func copyOrder(o *domain.DeliveryOrder) *domain.DeliveryOrder {
	c := *o
	c.Items = append([]domain.OrderItem(nil), o.Items...)
	c.Tracking = copyTracking(o.Tracking)
	c.Performance = copyOrderPerformance(o.Performance)
	return &c
}

func copyTracking(t domain.Tracking) domain.Tracking {
	c := t
	c.PickedUpAt = copyTime(t.PickedUpAt)
	c.InTransitAt = copyTime(t.InTransitAt)
	c.DeliveredAt = copyTime(t.DeliveredAt)
	c.CancelledAt = copyTime(t.CancelledAt)
	c.FailedAt = copyTime(t.FailedAt)
	return c
}

func copyOrderPerformance(p domain.OrderPerformance) domain.OrderPerformance {
	c := p
	if p.ActualTime != nil {
		v := *p.ActualTime
		c.ActualTime = &v
	}
	if p.Rating != nil {
		v := *p.Rating
		c.Rating = &v
	}
	if p.OnTime != nil {
		v := *p.OnTime
		c.OnTime = &v
	}
	return c
}

func copyWallet(w *domain.WalletAccount) *domain.WalletAccount {
	c := *w
	return &c
}

func copyTransaction(t *domain.LedgerTransaction) *domain.LedgerTransaction {
	c := *t
	c.CompletedAt = copyTime(t.CompletedAt)
	return &c
}

func copySettings(cfg *domain.RateConfig) *domain.RateConfig {
	c := *cfg
	if cfg.ZoneMultipliers != nil {
		c.ZoneMultipliers = make(map[string]float64, len(cfg.ZoneMultipliers))
		for k, v := range cfg.ZoneMultipliers {
			c.ZoneMultipliers[k] = v
		}
	}
	c.Bonuses.Special.Conditions = append([]domain.SpecialCondition(nil), cfg.Bonuses.Special.Conditions...)
	return &c
}
