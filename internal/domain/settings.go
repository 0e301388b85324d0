package domain

import "time"

// BonusType labels the bonus category reported on a payment.
type BonusType string

const (
	BonusNone        BonusType = ""
	BonusPerformance BonusType = "performance"
	BonusSpeed       BonusType = "speed"
	BonusVolume      BonusType = "volume"
	BonusSpecial     BonusType = "special"
)

// Special condition names, evaluated in this order.
const (
	ConditionHighValueOrder = "high_value_order"
	ConditionLongDistance   = "long_distance"
	ConditionBadWeather     = "bad_weather"
	ConditionPeakHours      = "peak_hours"
)

// PerformanceBonusRule pays a fixed amount for highly rated deliveries.
type PerformanceBonusRule struct {
	Enabled     bool    `json:"enabled"`
	MinRating   float64 `json:"min_rating"`
	BonusAmount float64 `json:"bonus_amount"`
}

// SpeedBonusRule pays a fixed amount for fast deliveries.
type SpeedBonusRule struct {
	Enabled         bool    `json:"enabled"`
	MaxDeliveryTime int     `json:"max_delivery_time"` // minutes
	BonusAmount     float64 `json:"bonus_amount"`
}

// VolumeBonusRule pays for reaching daily and weekly delivery targets.
type VolumeBonusRule struct {
	Enabled      bool         `json:"enabled"`
	DailyTarget  int          `json:"daily_target"`
	DailyBonus   float64      `json:"daily_bonus"`
	WeeklyTarget int          `json:"weekly_target"`
	WeeklyBonus  float64      `json:"weekly_bonus"`
	WeekStartsOn time.Weekday `json:"week_starts_on"`
}

// SpecialCondition is one named condition with its bonus.
type SpecialCondition struct {
	Name        string  `json:"name"`
	BonusAmount float64 `json:"bonus_amount"`
}

// SpecialBonusRule pays the bonus of the first matching condition.
type SpecialBonusRule struct {
	Enabled    bool               `json:"enabled"`
	Conditions []SpecialCondition `json:"conditions"`
}

// BonusRules groups the four bonus categories.
type BonusRules struct {
	Performance PerformanceBonusRule `json:"performance"`
	Speed       SpeedBonusRule       `json:"speed"`
	Volume      VolumeBonusRule      `json:"volume"`
	Special     SpecialBonusRule     `json:"special"`
}

// WithdrawalLimits bounds a single withdrawal request.
type WithdrawalLimits struct {
	MinimumAmount float64 `json:"minimum_amount"`
	MaximumAmount float64 `json:"maximum_amount"`
}

// RateConfig is the deployment-wide pricing and payout configuration.
type RateConfig struct {
	Currency                string             `json:"currency"`
	BaseDeliveryFee         float64            `json:"base_delivery_fee"`
	MinimumDeliveryFee      float64            `json:"minimum_delivery_fee"`
	DistanceRate            float64            `json:"distance_rate"` // per km beyond the free radius
	TimeRate                float64            `json:"time_rate"`     // per minute
	PeakHoursMultiplier     float64            `json:"peak_hours_multiplier"`
	WeatherMultiplier       float64            `json:"weather_multiplier"`
	CommissionDeductionRate float64            `json:"commission_deduction_rate"`
	ZoneMultipliers         map[string]float64 `json:"zone_multipliers"`
	Bonuses                 BonusRules         `json:"bonuses"`
	Withdrawals             WithdrawalLimits   `json:"withdrawals"`
	UpdatedAt               time.Time          `json:"updated_at"`
}

// ZoneMultiplier returns the travel-time multiplier of zone, 1.0 when unset.
func (c *RateConfig) ZoneMultiplier(zone string) float64 {
	if m, ok := c.ZoneMultipliers[zone]; ok && m > 0 {
		return m
	}
	return 1.0
}
