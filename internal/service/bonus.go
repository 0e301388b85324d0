package service

import (
	"context"
	"fmt"
	"time"

	"dispatch/internal/domain"
	"dispatch/internal/money"
	"dispatch/internal/repository"
)

const (
	highValueOrderThreshold = 100.0
	longDistanceThresholdKm = 15.0
)

// VolumeCounts is the agent's completed deliveries in the current day and week.
type VolumeCounts struct {
	Daily  int
	Weekly int
}

// BonusInput holds the facts bonus rules are evaluated against.
type BonusInput struct {
	Rating              *float64
	DeliveryTimeMinutes *int
	Volume              *VolumeCounts
	OrderValue          float64
	DistanceKm          float64
	Weather             string
	PeakHours           bool
}

// Bonus is the summed bonus amount and the label of its first contributor.
type Bonus struct {
	Amount float64
	Type   domain.BonusType
	// Condition names the special condition that matched, if any.
	Condition string
}

func (b *Bonus) add(t domain.BonusType, amount float64) {
	if amount <= 0 {
		return
	}
	b.Amount = money.Add(b.Amount, amount)
	if b.Type == domain.BonusNone {
		b.Type = t
	}
}

// EvaluateBonus sums the performance, speed and volume bonuses and the first
// matching special condition. The reported type is the first category that
// contributed, in that order.
func EvaluateBonus(in BonusInput, rules domain.BonusRules) Bonus {
	var b Bonus

	if r := rules.Performance; r.Enabled && in.Rating != nil && *in.Rating >= r.MinRating {
		b.add(domain.BonusPerformance, r.BonusAmount)
	}

	if r := rules.Speed; r.Enabled && in.DeliveryTimeMinutes != nil && *in.DeliveryTimeMinutes <= r.MaxDeliveryTime {
		b.add(domain.BonusSpeed, r.BonusAmount)
	}

	if r := rules.Volume; r.Enabled && in.Volume != nil {
		if r.DailyTarget > 0 && in.Volume.Daily >= r.DailyTarget {
			b.add(domain.BonusVolume, r.DailyBonus)
		}
		if r.WeeklyTarget > 0 && in.Volume.Weekly >= r.WeeklyTarget {
			b.add(domain.BonusVolume, r.WeeklyBonus)
		}
	}

	if r := rules.Special; r.Enabled {
		for _, c := range r.Conditions {
			if !specialConditionHolds(c.Name, in) {
				continue
			}
			b.add(domain.BonusSpecial, c.BonusAmount)
			b.Condition = c.Name
			break
		}
	}

	return b
}

func specialConditionHolds(name string, in BonusInput) bool {
	switch name {
	case domain.ConditionHighValueOrder:
		return in.OrderValue >= highValueOrderThreshold
	case domain.ConditionLongDistance:
		return in.DistanceKm >= longDistanceThresholdKm
	case domain.ConditionBadWeather:
		return !isNormalWeather(in.Weather)
	case domain.ConditionPeakHours:
		return in.PeakHours
	default:
		return false
	}
}

// VolumeCounter counts an agent's completed deliveries from the ledger using
// calendar boundaries in a fixed timezone.
type VolumeCounter struct {
	ledgerRepo repository.LedgerRepository
	loc        *time.Location
}

// NewVolumeCounter creates a new VolumeCounter. A nil loc means UTC.
func NewVolumeCounter(ledgerRepo repository.LedgerRepository, loc *time.Location) *VolumeCounter {
	if loc == nil {
		loc = time.UTC
	}
	return &VolumeCounter{ledgerRepo: ledgerRepo, loc: loc}
}

// Count returns the agent's completed delivery payments for the day and week containing now.
func (c *VolumeCounter) Count(ctx context.Context, agentID string, now time.Time, weekStartsOn time.Weekday) (VolumeCounts, error) {
	dayStart, weekStart := CalendarBounds(now, c.loc, weekStartsOn)

	daily, err := c.ledgerRepo.CountCompleted(ctx, agentID, domain.TransactionDeliveryPayment, dayStart, dayStart.AddDate(0, 0, 1))
	if err != nil {
		return VolumeCounts{}, fmt.Errorf("count daily deliveries: %w", err)
	}
	weekly, err := c.ledgerRepo.CountCompleted(ctx, agentID, domain.TransactionDeliveryPayment, weekStart, weekStart.AddDate(0, 0, 7))
	if err != nil {
		return VolumeCounts{}, fmt.Errorf("count weekly deliveries: %w", err)
	}
	return VolumeCounts{Daily: daily, Weekly: weekly}, nil
}

// CalendarBounds returns local midnight of now's day and of the most recent weekStartsOn.
func CalendarBounds(now time.Time, loc *time.Location, weekStartsOn time.Weekday) (dayStart, weekStart time.Time) {
	local := now.In(loc)
	dayStart = time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, loc)
	offset := (int(dayStart.Weekday()) - int(weekStartsOn) + 7) % 7
	weekStart = dayStart.AddDate(0, 0, -offset)
	return dayStart, weekStart
}
