package app

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"dispatch/internal/config"
	"dispatch/internal/repository"
)

// BootstrapSettings stores the seed RateConfig when the settings store is empty.
// An existing configuration is never overwritten.
func BootstrapSettings(ctx context.Context, repo repository.SettingsRepository, logger *zap.Logger) error {
	_, err := repo.Get(ctx)
	if err == nil {
		return nil
	}
	if !errors.Is(err, repository.ErrNotFound) {
		return fmt.Errorf("read settings: %w", err)
	}

	seed := config.SeedRateConfig()
	if err := repo.Put(ctx, seed); err != nil {
		return fmt.Errorf("seed settings: %w", err)
	}
	logger.Info("seeded rate config", zap.String("currency", seed.Currency))
	return nil
}
