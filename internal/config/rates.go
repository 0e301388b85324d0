package config

import (
	"time"

	"dispatch/internal/domain"
)

// DefaultRateConfig returns the documented default rates. It seeds the memory
// store and tests; deployed stores read their RateConfig from settings.
func DefaultRateConfig() *domain.RateConfig {
	return &domain.RateConfig{
		Currency:                "USD",
		BaseDeliveryFee:         2.0,
		MinimumDeliveryFee:      1.0,
		DistanceRate:            0.5,
		TimeRate:                0,
		PeakHoursMultiplier:     1.5,
		WeatherMultiplier:       1.2,
		CommissionDeductionRate: 0.1,
		ZoneMultipliers:         map[string]float64{},
		Bonuses: domain.BonusRules{
			Performance: domain.PerformanceBonusRule{Enabled: true, MinRating: 4.5, BonusAmount: 1.0},
			Speed:       domain.SpeedBonusRule{Enabled: true, MaxDeliveryTime: 15, BonusAmount: 0.5},
			Volume: domain.VolumeBonusRule{
				Enabled:      true,
				DailyTarget:  10,
				DailyBonus:   5.0,
				WeeklyTarget: 50,
				WeeklyBonus:  25.0,
				WeekStartsOn: time.Monday,
			},
			Special: domain.SpecialBonusRule{
				Enabled: true,
				Conditions: []domain.SpecialCondition{
					{Name: domain.ConditionHighValueOrder, BonusAmount: 2.0},
					{Name: domain.ConditionLongDistance, BonusAmount: 1.5},
					{Name: domain.ConditionBadWeather, BonusAmount: 1.0},
					{Name: domain.ConditionPeakHours, BonusAmount: 0.5},
				},
			},
		},
		Withdrawals: domain.WithdrawalLimits{MinimumAmount: 20, MaximumAmount: 500},
	}
}

// SeedRateConfig returns DefaultRateConfig with RATE_* environment overrides.
// It is written to settings only when SETTINGS_BOOTSTRAP is enabled and no
// RateConfig is stored yet.
func SeedRateConfig() *domain.RateConfig {
	cfg := DefaultRateConfig()
	cfg.Currency = getEnv("RATE_CURRENCY", cfg.Currency)
	cfg.BaseDeliveryFee = getFloatEnv("RATE_BASE_DELIVERY_FEE", cfg.BaseDeliveryFee)
	cfg.MinimumDeliveryFee = getFloatEnv("RATE_MINIMUM_DELIVERY_FEE", cfg.MinimumDeliveryFee)
	cfg.DistanceRate = getFloatEnv("RATE_DISTANCE_RATE", cfg.DistanceRate)
	cfg.TimeRate = getFloatEnv("RATE_TIME_RATE", cfg.TimeRate)
	cfg.PeakHoursMultiplier = getFloatEnv("RATE_PEAK_MULTIPLIER", cfg.PeakHoursMultiplier)
	cfg.WeatherMultiplier = getFloatEnv("RATE_WEATHER_MULTIPLIER", cfg.WeatherMultiplier)
	cfg.CommissionDeductionRate = getFloatEnv("RATE_COMMISSION_RATE", cfg.CommissionDeductionRate)
	cfg.Withdrawals.MinimumAmount = getFloatEnv("RATE_WITHDRAWAL_MIN", cfg.Withdrawals.MinimumAmount)
	cfg.Withdrawals.MaximumAmount = getFloatEnv("RATE_WITHDRAWAL_MAX", cfg.Withdrawals.MaximumAmount)
	return cfg
}

// SettingsBootstrap reports whether an empty settings store may be seeded at startup.
func SettingsBootstrap() bool {
	return getBoolEnv("SETTINGS_BOOTSTRAP", false)
}
