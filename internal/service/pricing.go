package service

import (
	"math"

	"dispatch/internal/domain"
	"dispatch/internal/money"
)

const (
	freeDistanceKm    = 5.0
	minEstimatedTime  = 15 // minutes
	minutesPerKm      = 2.0
	peakTimeAdjust    = 1.5
	urgentMultiplier  = 1.5
	highPriorityMulti = 1.2
)

// weatherTimeAdjust scales the travel-time estimate per weather condition.
var weatherTimeAdjust = map[string]float64{
	domain.WeatherRain:    1.3,
	domain.WeatherStorm:   1.6,
	domain.WeatherExtreme: 2.0,
}

// PricingInput holds the factors that price a delivery. DeliveryTimeMinutes
// and Rating are nil until the order is delivered; Volume is nil when the
// agent's history is not consulted.
type PricingInput struct {
	DistanceKm          float64
	OrderValue          float64
	Zone                string
	PeakHours           bool
	Weather             string
	Priority            domain.Priority
	DeliveryTimeMinutes *int
	Rating              *float64
	Volume              *VolumeCounts
}

// FeeBreakdown is the output of Price.
type FeeBreakdown struct {
	BaseFee             float64
	DistanceFee         float64
	TimeFee             float64
	BasePayment         float64
	Bonus               Bonus
	TotalPayment        float64
	CommissionDeduction float64
	EstimatedTime       int // minutes
}

// Price computes the fee breakdown of a delivery under cfg.
func Price(in PricingInput, cfg *domain.RateConfig) (FeeBreakdown, error) {
	if cfg == nil {
		return FeeBreakdown{}, ErrConfigMissing
	}

	distance := math.Max(0, in.DistanceKm)

	baseFee := math.Max(cfg.BaseDeliveryFee, cfg.MinimumDeliveryFee)
	distanceFee := math.Max(0, distance-freeDistanceKm) * cfg.DistanceRate
	timeFee := 0.0
	if in.DeliveryTimeMinutes != nil {
		timeFee = float64(*in.DeliveryTimeMinutes) * cfg.TimeRate
	}

	multiplier := 1.0
	if in.PeakHours {
		multiplier *= cfg.PeakHoursMultiplier
	}
	if !isNormalWeather(in.Weather) {
		multiplier *= cfg.WeatherMultiplier
	}
	multiplier *= priorityMultiplier(in.Priority)

	basePayment := money.Round(math.Max(0, (baseFee+distanceFee+timeFee)*multiplier))

	bonus := EvaluateBonus(BonusInput{
		Rating:              in.Rating,
		DeliveryTimeMinutes: in.DeliveryTimeMinutes,
		Volume:              in.Volume,
		OrderValue:          in.OrderValue,
		DistanceKm:          distance,
		Weather:             in.Weather,
		PeakHours:           in.PeakHours,
	}, cfg.Bonuses)

	total := money.Add(basePayment, bonus.Amount)

	return FeeBreakdown{
		BaseFee:             money.Round(baseFee),
		DistanceFee:         money.Round(distanceFee),
		TimeFee:             money.Round(timeFee),
		BasePayment:         basePayment,
		Bonus:               bonus,
		TotalPayment:        total,
		CommissionDeduction: money.Mul(total, cfg.CommissionDeductionRate),
		EstimatedTime:       estimateMinutes(distance, cfg.ZoneMultiplier(in.Zone), in.PeakHours, in.Weather),
	}, nil
}

// estimateMinutes returns the travel-time estimate, never below minEstimatedTime.
func estimateMinutes(distanceKm, zoneMultiplier float64, peak bool, weather string) int {
	adjust := zoneMultiplier
	if peak {
		adjust *= peakTimeAdjust
	}
	if w, ok := weatherTimeAdjust[weather]; ok {
		adjust *= w
	}
	minutes := int(math.Round(distanceKm * minutesPerKm * adjust))
	if minutes < minEstimatedTime {
		return minEstimatedTime
	}
	return minutes
}

func priorityMultiplier(p domain.Priority) float64 {
	switch p {
	case domain.PriorityUrgent:
		return urgentMultiplier
	case domain.PriorityHigh:
		return highPriorityMulti
	default:
		return 1
	}
}

func isNormalWeather(w string) bool {
	return w == "" || w == domain.WeatherNormal
}

// PaymentInfo converts the breakdown into the record stored on an order.
func (f FeeBreakdown) PaymentInfo(currency string, method domain.PaymentMethod) domain.PaymentInfo {
	return domain.PaymentInfo{
		BaseFee:             f.BaseFee,
		DistanceFee:         f.DistanceFee,
		TimeFee:             f.TimeFee,
		BasePayment:         f.BasePayment,
		Bonus:               f.Bonus.Amount,
		BonusType:           f.Bonus.Type,
		TotalPayment:        f.TotalPayment,
		CommissionDeduction: f.CommissionDeduction,
		Currency:            currency,
		PaymentMethod:       method,
	}
}
