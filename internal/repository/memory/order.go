package memory

import (
	"context"
	"time"

	"dispatch/internal/domain"
	"dispatch/internal/repository"
)

// OrderRepository is an in-memory implementation of repository.OrderRepository.
type OrderRepository struct {
	s *Store
}

// CreateAssigned marks the agent busy and stores the order in one critical section.
func (r *OrderRepository) CreateAssigned(ctx context.Context, order *domain.DeliveryOrder) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	a, ok := r.s.agents[order.AgentID]
	if !ok {
		return repository.ErrNotFound
	}
	if !a.IsActive || a.Status != domain.AgentStatusAvailable {
		return repository.ErrAgentUnavailable
	}

	a.Status = domain.AgentStatusBusy
	a.UpdatedAt = time.Now()
	r.s.orders[order.ID] = copyOrder(order)
	return nil
}

// GetByID retrieves an order by ID.
func (r *OrderRepository) GetByID(ctx context.Context, id string) (*domain.DeliveryOrder, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	o, ok := r.s.orders[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return copyOrder(o), nil
}

// GetActiveByAgentID returns the non-terminal order of an agent, or nil.
func (r *OrderRepository) GetActiveByAgentID(ctx context.Context, agentID string) (*domain.DeliveryOrder, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	for _, o := range r.s.orders {
		if o.AgentID == agentID && !o.Status.IsTerminal() {
			return copyOrder(o), nil
		}
	}
	return nil, nil
}

// ApplyTransition replaces the stored order if it is still in state from.
func (r *OrderRepository) ApplyTransition(ctx context.Context, order *domain.DeliveryOrder, from domain.OrderStatus) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	cur, ok := r.s.orders[order.ID]
	if !ok {
		return repository.ErrNotFound
	}
	if cur.Status != from || cur.AgentID != order.AgentID {
		return repository.ErrStaleState
	}

	r.s.orders[order.ID] = copyOrder(order)
	if order.Status.IsTerminal() {
		if a, ok := r.s.agents[order.AgentID]; ok {
			a.Status = domain.AgentStatusAvailable
			a.UpdatedAt = time.Now()
		}
	}
	return nil
}

// CompleteDelivery stores the delivered order, credits payment, applies
// aggregate and frees the agent in one critical section.
func (r *OrderRepository) CompleteDelivery(ctx context.Context, order *domain.DeliveryOrder, from domain.OrderStatus, payment *domain.LedgerTransaction,
	aggregate func(domain.AgentPerformance) domain.AgentPerformance) (*domain.WalletAccount, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	cur, ok := r.s.orders[order.ID]
	if !ok {
		return nil, repository.ErrNotFound
	}
	if cur.Status != from || cur.AgentID != order.AgentID {
		return nil, repository.ErrStaleState
	}
	w, err := r.s.creditLocked(payment)
	if err != nil {
		return nil, err
	}
	r.s.orders[order.ID] = copyOrder(order)
	if a, ok := r.s.agents[order.AgentID]; ok {
		if aggregate != nil {
			a.Performance = aggregate(a.Performance)
		}
		a.Status = domain.AgentStatusAvailable
		a.UpdatedAt = time.Now()
	}
	return copyWallet(w), nil
}

// UpdatePaymentInfo stores the payment breakdown of an order.
func (r *OrderRepository) UpdatePaymentInfo(ctx context.Context, id string, info domain.PaymentInfo) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	o, ok := r.s.orders[id]
	if !ok {
		return repository.ErrNotFound
	}
	o.PaymentInfo = info
	o.UpdatedAt = time.Now()
	return nil
}

var _ repository.OrderRepository = (*OrderRepository)(nil)
