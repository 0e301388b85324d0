package repository

import (
	"context"

	"dispatch/internal/domain"
)

// OrderRepository defines the persistence operations for delivery orders.
type OrderRepository interface {
	// CreateAssigned atomically flips the order's agent from available to busy
	// and persists the order. Returns ErrAgentUnavailable if the agent was not
	// available, in which case nothing is written.
	CreateAssigned(ctx context.Context, order *domain.DeliveryOrder) error

	// GetByID retrieves an order by ID.
	GetByID(ctx context.Context, id string) (*domain.DeliveryOrder, error)

	// GetActiveByAgentID returns the non-terminal order of an agent, or nil.
	GetActiveByAgentID(ctx context.Context, agentID string) (*domain.DeliveryOrder, error)

	// ApplyTransition stores order if the persisted row still has status from and
	// belongs to order.AgentID. When order.Status is terminal the agent is set
	// available in the same unit of work. Returns ErrStaleState otherwise.
	ApplyTransition(ctx context.Context, order *domain.DeliveryOrder, from domain.OrderStatus) error

	// CompleteDelivery settles a delivery in one unit of work: it stores order if
	// the persisted row still has status from and belongs to order.AgentID,
	// credits payment to the agent's wallet, applies aggregate to the agent's
	// performance and sets the agent available. ErrStaleState, ErrNotFound (no
	// wallet) and ErrDuplicateTransaction leave nothing written.
	CompleteDelivery(ctx context.Context, order *domain.DeliveryOrder, from domain.OrderStatus, payment *domain.LedgerTransaction,
		aggregate func(domain.AgentPerformance) domain.AgentPerformance) (*domain.WalletAccount, error)

	// UpdatePaymentInfo stores the payment breakdown of an order.
	UpdatePaymentInfo(ctx context.Context, id string, info domain.PaymentInfo) error
}
