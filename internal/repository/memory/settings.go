package memory

import (
	"context"

	"dispatch/internal/domain"
	"dispatch/internal/repository"
)

// SettingsRepository is an in-memory implementation of repository.SettingsRepository.
type SettingsRepository struct {
	s *Store
}

// Get returns the stored RateConfig.
func (r *SettingsRepository) Get(ctx context.Context) (*domain.RateConfig, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	if r.s.settings == nil {
		return nil, repository.ErrNotFound
	}
	return copySettings(r.s.settings), nil
}

// Put replaces the stored RateConfig.
func (r *SettingsRepository) Put(ctx context.Context, cfg *domain.RateConfig) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	r.s.settings = copySettings(cfg)
	return nil
}

var _ repository.SettingsRepository = (*SettingsRepository)(nil)
