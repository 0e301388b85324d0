package memory

import (
	"context"
	"sort"
	"time"

	"dispatch/internal/domain"
	"dispatch/internal/repository"
)

// AgentRepository is an in-memory implementation of repository.AgentRepository.
type AgentRepository struct {
	s *Store
}

// Create adds a new agent.
func (r *AgentRepository) Create(ctx context.Context, agent *domain.Agent) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	r.s.agents[agent.ID] = copyAgent(agent)
	return nil
}

// CreateWithWallet adds a new agent and its wallet in one critical section.
func (r *AgentRepository) CreateWithWallet(ctx context.Context, agent *domain.Agent, wallet *domain.WalletAccount) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.agents[agent.ID]; ok {
		return repository.ErrAlreadyExists
	}
	if _, ok := r.s.wallets[wallet.AgentID]; ok {
		return repository.ErrAlreadyExists
	}
	r.s.agents[agent.ID] = copyAgent(agent)
	r.s.wallets[wallet.AgentID] = copyWallet(wallet)
	return nil
}

// GetByID retrieves an agent by ID.
func (r *AgentRepository) GetByID(ctx context.Context, id string) (*domain.Agent, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	a, ok := r.s.agents[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return copyAgent(a), nil
}

// ListAvailableInZone returns available agents serving zone, ordered by creation time then ID.
func (r *AgentRepository) ListAvailableInZone(ctx context.Context, zone string) ([]*domain.Agent, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	var out []*domain.Agent
	for _, a := range r.s.agents {
		if !a.IsActive || a.Status != domain.AgentStatusAvailable || !a.ServesZone(zone) {
			continue
		}
		out = append(out, copyAgent(a))
	}
	sort.SliceStable(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

// UpdateStatus sets the availability status of an agent.
func (r *AgentRepository) UpdateStatus(ctx context.Context, id string, status domain.AgentStatus) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	a, ok := r.s.agents[id]
	if !ok {
		return repository.ErrNotFound
	}
	a.Status = status
	a.UpdatedAt = time.Now()
	return nil
}

// UpdateLocation stores the last known position of an agent.
func (r *AgentRepository) UpdateLocation(ctx context.Context, id string, loc domain.KnownLocation) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	a, ok := r.s.agents[id]
	if !ok {
		return repository.ErrNotFound
	}
	a.Location = &loc
	a.UpdatedAt = time.Now()
	return nil
}

// UpdatePerformance applies fn to the stored performance.
func (r *AgentRepository) UpdatePerformance(ctx context.Context, id string, fn func(domain.AgentPerformance) domain.AgentPerformance) (*domain.AgentPerformance, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	a, ok := r.s.agents[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	a.Performance = fn(a.Performance)
	a.UpdatedAt = time.Now()
	p := a.Performance
	return &p, nil
}

var _ repository.AgentRepository = (*AgentRepository)(nil)
