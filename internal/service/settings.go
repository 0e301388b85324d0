package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"dispatch/internal/domain"
	"dispatch/internal/redis"
	"dispatch/internal/repository"
)

// RateConfigSource yields the RateConfig in force.
type RateConfigSource interface {
	Current(ctx context.Context) (*domain.RateConfig, error)
}

// SettingsService reads and replaces the RateConfig singleton, fronted by an
// optional Redis cache.
type SettingsService struct {
	settingsRepo repository.SettingsRepository
	cache        redis.CacheStoreInterface
	logger       *zap.Logger
	now          func() time.Time
}

// NewSettingsService creates a new SettingsService. cache may be nil.
func NewSettingsService(settingsRepo repository.SettingsRepository, cache redis.CacheStoreInterface, logger *zap.Logger) *SettingsService {
	return &SettingsService{
		settingsRepo: settingsRepo,
		cache:        cache,
		logger:       logger.Named("settings"),
		now:          time.Now,
	}
}

var _ RateConfigSource = (*SettingsService)(nil)

// Current returns the stored RateConfig, or ErrConfigMissing.
func (s *SettingsService) Current(ctx context.Context) (*domain.RateConfig, error) {
	if s.cache != nil {
		cfg, err := s.cache.GetRateConfig(ctx)
		if err != nil {
			s.logger.Warn("rate config cache read failed", zap.Error(err))
		} else if cfg != nil {
			return cfg, nil
		}
	}

	cfg, err := s.settingsRepo.Get(ctx)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrConfigMissing
		}
		return nil, fmt.Errorf("load rate config: %w", err)
	}

	if s.cache != nil {
		if err := s.cache.SetRateConfig(ctx, cfg); err != nil {
			s.logger.Warn("rate config cache write failed", zap.Error(err))
		}
	}
	return cfg, nil
}

// Update validates and stores cfg, then drops the cached copy.
func (s *SettingsService) Update(ctx context.Context, cfg *domain.RateConfig) error {
	if err := ValidateRateConfig(cfg); err != nil {
		return err
	}
	cfg.UpdatedAt = s.now()

	if err := s.settingsRepo.Put(ctx, cfg); err != nil {
		return fmt.Errorf("store rate config: %w", err)
	}
	if s.cache != nil {
		if err := s.cache.InvalidateRateConfig(ctx); err != nil {
			s.logger.Warn("rate config cache invalidation failed", zap.Error(err))
		}
	}
	s.logger.Info("rate config updated", zap.String("currency", cfg.Currency))
	return nil
}

// ValidateRateConfig rejects configs that would price below zero or allow no withdrawal.
func ValidateRateConfig(cfg *domain.RateConfig) error {
	if cfg == nil {
		return ErrConfigMissing
	}
	switch {
	case cfg.Currency == "":
		return fmt.Errorf("%w: currency is required", ErrInvalidRateConfig)
	case cfg.BaseDeliveryFee < 0, cfg.MinimumDeliveryFee < 0, cfg.DistanceRate < 0, cfg.TimeRate < 0:
		return fmt.Errorf("%w: fees and rates must be non-negative", ErrInvalidRateConfig)
	case cfg.PeakHoursMultiplier <= 0, cfg.WeatherMultiplier <= 0:
		return fmt.Errorf("%w: multipliers must be positive", ErrInvalidRateConfig)
	case cfg.CommissionDeductionRate < 0, cfg.CommissionDeductionRate > 1:
		return fmt.Errorf("%w: commission rate must be within [0, 1]", ErrInvalidRateConfig)
	case cfg.Withdrawals.MinimumAmount < 0, cfg.Withdrawals.MaximumAmount < cfg.Withdrawals.MinimumAmount:
		return fmt.Errorf("%w: withdrawal limits are inconsistent", ErrInvalidRateConfig)
	}
	return nil
}
