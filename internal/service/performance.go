package service

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"dispatch/internal/domain"
	"dispatch/internal/money"
	"dispatch/internal/repository"
)

// DeliveryOutcome is what a completed order contributes to an agent's statistics.
type DeliveryOutcome struct {
	ActualTime   int // minutes
	Rating       *float64
	OnTime       bool
	TotalPayment float64
	DistanceKm   float64
}

// AggregatePerformance folds one completed delivery into p using incremental means.
func AggregatePerformance(p domain.AgentPerformance, o DeliveryOutcome, now time.Time) domain.AgentPerformance {
	prev := float64(p.CompletedDeliveries)
	p.CompletedDeliveries++
	p.AverageDeliveryTime = (p.AverageDeliveryTime*prev + float64(o.ActualTime)) / float64(p.CompletedDeliveries)

	if o.Rating != nil {
		prevRated := float64(p.RatedDeliveries)
		p.RatedDeliveries++
		p.AverageRating = (p.AverageRating*prevRated + *o.Rating) / float64(p.RatedDeliveries)
	}
	if o.OnTime {
		p.OnTimeDeliveries++
	}

	p.TotalEarnings = money.Add(p.TotalEarnings, o.TotalPayment)
	p.TotalDistanceKm += o.DistanceKm
	p.LastActiveDate = now
	return p
}

// PerformanceService updates agent statistics after completed deliveries.
type PerformanceService struct {
	agentRepo repository.AgentRepository
	logger    *zap.Logger
	now       func() time.Time
}

// NewPerformanceService creates a new PerformanceService.
func NewPerformanceService(agentRepo repository.AgentRepository, logger *zap.Logger) *PerformanceService {
	return &PerformanceService{
		agentRepo: agentRepo,
		logger:    logger.Named("performance"),
		now:       time.Now,
	}
}

// Record applies o to the agent's stored statistics.
func (s *PerformanceService) Record(ctx context.Context, agentID string, o DeliveryOutcome) (*domain.AgentPerformance, error) {
	now := s.now()
	perf, err := s.agentRepo.UpdatePerformance(ctx, agentID, func(p domain.AgentPerformance) domain.AgentPerformance {
		return AggregatePerformance(p, o, now)
	})
	if err != nil {
		return nil, fmt.Errorf("update performance of agent %s: %w", agentID, err)
	}

	s.logger.Debug("performance updated",
		zap.String("agent_id", agentID),
		zap.Int("completed_deliveries", perf.CompletedDeliveries),
		zap.Float64("average_delivery_time", perf.AverageDeliveryTime),
	)
	return perf, nil
}

// Aggregator returns the update Record would apply, for callers that store it
// together with other changes.
func (s *PerformanceService) Aggregator(o DeliveryOutcome) func(domain.AgentPerformance) domain.AgentPerformance {
	now := s.now()
	return func(p domain.AgentPerformance) domain.AgentPerformance {
		return AggregatePerformance(p, o, now)
	}
}
