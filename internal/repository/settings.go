package repository

import (
	"context"

	"dispatch/internal/domain"
)

// SettingsRepository stores the RateConfig singleton.
type SettingsRepository interface {
	// Get returns the current RateConfig or ErrNotFound when none is stored.
	Get(ctx context.Context) (*domain.RateConfig, error)

	// Put replaces the stored RateConfig.
	Put(ctx context.Context, cfg *domain.RateConfig) error
}
