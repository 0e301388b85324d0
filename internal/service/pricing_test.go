package service

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dispatch/internal/domain"
)

// baseRates returns the rates used by the documented pricing scenarios, with
// every bonus disabled.
func baseRates() *domain.RateConfig {
	return &domain.RateConfig{
		Currency:            "USD",
		BaseDeliveryFee:     2.0,
		MinimumDeliveryFee:  1.0,
		DistanceRate:        0.5,
		TimeRate:            0,
		PeakHoursMultiplier: 1.5,
		WeatherMultiplier:   1.2,
	}
}

func TestPrice_ScenarioA(t *testing.T) {
	fee, err := Price(PricingInput{
		DistanceKm: 10,
		Zone:       "centro",
		Weather:    domain.WeatherNormal,
		Priority:   domain.PriorityNormal,
	}, baseRates())
	require.NoError(t, err)

	assert.Equal(t, 2.0, fee.BaseFee)
	assert.Equal(t, 2.5, fee.DistanceFee)
	assert.Equal(t, 0.0, fee.TimeFee)
	assert.Equal(t, 4.5, fee.BasePayment)
	assert.Equal(t, 4.5, fee.TotalPayment)
	assert.Equal(t, 20, fee.EstimatedTime)
}

func TestPrice_ScenarioB(t *testing.T) {
	fee, err := Price(PricingInput{
		DistanceKm: 10,
		Zone:       "centro",
		PeakHours:  true,
		Weather:    domain.WeatherNormal,
		Priority:   domain.PriorityNormal,
	}, baseRates())
	require.NoError(t, err)

	assert.Equal(t, 6.75, fee.BasePayment)
	assert.Equal(t, 30, fee.EstimatedTime)
}

func TestPrice_ScenarioCBonus(t *testing.T) {
	cfg := baseRates()
	cfg.Bonuses.Performance = domain.PerformanceBonusRule{Enabled: true, MinRating: 4.5, BonusAmount: 1.0}
	cfg.Bonuses.Speed = domain.SpeedBonusRule{Enabled: true, MaxDeliveryTime: 15, BonusAmount: 0.5}

	fee, err := Price(PricingInput{
		DistanceKm:          10,
		Weather:             domain.WeatherNormal,
		DeliveryTimeMinutes: ptr(12),
		Rating:              ptr(5.0),
	}, cfg)
	require.NoError(t, err)

	assert.Equal(t, 1.5, fee.Bonus.Amount)
	assert.Equal(t, domain.BonusPerformance, fee.Bonus.Type)
	assert.Equal(t, 6.0, fee.TotalPayment)
}

func TestPrice_Factors(t *testing.T) {
	tests := []struct {
		name       string
		cfg        func(*domain.RateConfig)
		in         PricingInput
		wantBase   float64
		wantMinute int
	}{
		{
			name:       "minimum fee floors base fee",
			cfg:        func(c *domain.RateConfig) { c.BaseDeliveryFee = 0.5 },
			in:         PricingInput{DistanceKm: 3},
			wantBase:   1.0,
			wantMinute: 15,
		},
		{
			name:       "time fee when duration known",
			cfg:        func(c *domain.RateConfig) { c.TimeRate = 0.1 },
			in:         PricingInput{DistanceKm: 4, DeliveryTimeMinutes: ptr(25)},
			wantBase:   4.5,
			wantMinute: 15,
		},
		{
			name:       "urgent priority",
			in:         PricingInput{DistanceKm: 5, Priority: domain.PriorityUrgent},
			wantBase:   3.0,
			wantMinute: 15,
		},
		{
			name:       "high priority",
			in:         PricingInput{DistanceKm: 5, Priority: domain.PriorityHigh},
			wantBase:   2.4,
			wantMinute: 15,
		},
		{
			name:       "bad weather scales fee and time",
			in:         PricingInput{DistanceKm: 10, Weather: domain.WeatherStorm},
			wantBase:   5.4,
			wantMinute: 32,
		},
		{
			name:       "zone multiplier scales time only",
			cfg:        func(c *domain.RateConfig) { c.ZoneMultipliers = map[string]float64{"old-town": 1.5} },
			in:         PricingInput{DistanceKm: 10, Zone: "old-town"},
			wantBase:   4.5,
			wantMinute: 30,
		},
		{
			name:       "all multipliers stack",
			in:         PricingInput{DistanceKm: 10, PeakHours: true, Weather: domain.WeatherRain, Priority: domain.PriorityUrgent},
			wantBase:   12.15,
			wantMinute: 39,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := baseRates()
			if tt.cfg != nil {
				tt.cfg(cfg)
			}
			fee, err := Price(tt.in, cfg)
			require.NoError(t, err)
			assert.Equal(t, tt.wantBase, fee.BasePayment)
			assert.Equal(t, tt.wantMinute, fee.EstimatedTime)
		})
	}
}

func TestPrice_Commission(t *testing.T) {
	cfg := baseRates()
	cfg.CommissionDeductionRate = 0.15

	fee, err := Price(PricingInput{DistanceKm: 10, PeakHours: true}, cfg)
	require.NoError(t, err)
	assert.Equal(t, 6.75, fee.TotalPayment)
	assert.Equal(t, 1.01, fee.CommissionDeduction)
}

func TestPrice_ConfigMissing(t *testing.T) {
	_, err := Price(PricingInput{DistanceKm: 1}, nil)
	assert.ErrorIs(t, err, ErrConfigMissing)
}

func TestFeeBreakdown_PaymentInfo(t *testing.T) {
	fee := FeeBreakdown{BaseFee: 2, BasePayment: 4.5, Bonus: Bonus{Amount: 1, Type: domain.BonusSpecial}, TotalPayment: 5.5}
	info := fee.PaymentInfo("USD", domain.PaymentMethodCard)

	assert.Equal(t, 5.5, info.TotalPayment)
	assert.Equal(t, 1.0, info.Bonus)
	assert.Equal(t, domain.BonusSpecial, info.BonusType)
	assert.Equal(t, domain.PaymentMethodCard, info.PaymentMethod)
	assert.False(t, info.IsPaid)
}
