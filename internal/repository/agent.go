package repository

import (
	"context"

	"dispatch/internal/domain"
)

// AgentRepository defines the persistence operations for agents.
type AgentRepository interface {
	// Create adds a new agent.
	Create(ctx context.Context, agent *domain.Agent) error

	// CreateWithWallet adds a new agent together with its wallet. Either both
	// are stored or neither is; a collision returns ErrAlreadyExists.
	CreateWithWallet(ctx context.Context, agent *domain.Agent, wallet *domain.WalletAccount) error

	// GetByID retrieves an agent by ID.
	GetByID(ctx context.Context, id string) (*domain.Agent, error)

	// ListAvailableInZone returns active agents with status available serving zone,
	// in a stable order.
	ListAvailableInZone(ctx context.Context, zone string) ([]*domain.Agent, error)

	// UpdateStatus sets the availability status of an agent.
	UpdateStatus(ctx context.Context, id string, status domain.AgentStatus) error

	// UpdateLocation stores the last known position of an agent.
	UpdateLocation(ctx context.Context, id string, loc domain.KnownLocation) error

	// UpdatePerformance applies fn to the current performance under a row lock
	// and stores the result.
	UpdatePerformance(ctx context.Context, id string, fn func(domain.AgentPerformance) domain.AgentPerformance) (*domain.AgentPerformance, error)
}
