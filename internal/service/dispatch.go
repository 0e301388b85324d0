package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"dispatch/internal/domain"
	"dispatch/internal/monitoring"
	"dispatch/internal/redis"
	"dispatch/internal/repository"
)

const defaultAgentLockTTL = 10 * time.Second

// DispatchService assigns incoming orders to the nearest available agent.
type DispatchService struct {
	agentRepo repository.AgentRepository
	orderRepo repository.OrderRepository
	rates     RateConfigSource
	lockStore redis.LockStoreInterface
	notifier  Notifier
	audit     auditor
	logger    *zap.Logger
	lockTTL   time.Duration
	now       func() time.Time
}

// NewDispatchService creates a new DispatchService. lockStore and notifier may be nil.
func NewDispatchService(
	agentRepo repository.AgentRepository,
	orderRepo repository.OrderRepository,
	rates RateConfigSource,
	lockStore redis.LockStoreInterface,
	notifier Notifier,
	auditLog AuditLog,
	logger *zap.Logger,
	lockTTL time.Duration,
) *DispatchService {
	if lockTTL <= 0 {
		lockTTL = defaultAgentLockTTL
	}
	logger = logger.Named("dispatch")
	return &DispatchService{
		agentRepo: agentRepo,
		orderRepo: orderRepo,
		rates:     rates,
		lockStore: lockStore,
		notifier:  notifier,
		audit:     auditor{log: auditLog, logger: logger, now: time.Now},
		logger:    logger,
		lockTTL:   lockTTL,
		now:       time.Now,
	}
}

// AssignOrderRequest contains the details of an order to dispatch.
type AssignOrderRequest struct {
	MarketplaceOrderID string
	Pickup             domain.Stop
	Dropoff            domain.Stop
	Items              []domain.OrderItem
	OrderValue         float64
	PaymentMethod      domain.PaymentMethod
	Zone               string
	Weather            string
	PeakHours          bool
	Priority           domain.Priority
	PrincipalID        string
}

// AssignOrderResult contains the outcome of a successful assignment.
type AssignOrderResult struct {
	DeliveryOrderID string
	AgentID         string
	PaymentInfo     domain.PaymentInfo
	Order           *domain.DeliveryOrder
}

func (r *AssignOrderRequest) normalize() error {
	if r.MarketplaceOrderID == "" {
		return ErrInvalidOrderID
	}
	if r.Zone == "" {
		return ErrInvalidZone
	}
	if !r.Pickup.Coordinates.Valid() || !r.Dropoff.Coordinates.Valid() {
		return ErrInvalidLocation
	}
	if r.OrderValue < 0 {
		return ErrInvalidAmount
	}
	if r.Priority == "" {
		r.Priority = domain.PriorityNormal
	}
	if !r.Priority.Valid() {
		return ErrInvalidPriority
	}
	if r.Weather == "" {
		r.Weather = domain.WeatherNormal
	}
	if r.PaymentMethod == "" {
		r.PaymentMethod = domain.PaymentMethodCash
	}
	return nil
}

// AssignOrder prices the order and assigns it to the nearest available agent
// in its zone. When another request takes the chosen agent first, the next
// nearest candidate is tried until the candidate set is exhausted.
func (s *DispatchService) AssignOrder(ctx context.Context, req AssignOrderRequest) (*AssignOrderResult, error) {
	if err := req.normalize(); err != nil {
		return nil, err
	}

	cfg, err := s.rates.Current(ctx)
	if err != nil {
		return nil, err
	}

	distance := DistanceKm(req.Pickup.Coordinates, req.Dropoff.Coordinates)
	fee, err := Price(PricingInput{
		DistanceKm: distance,
		OrderValue: req.OrderValue,
		Zone:       req.Zone,
		PeakHours:  req.PeakHours,
		Weather:    req.Weather,
		Priority:   req.Priority,
	}, cfg)
	if err != nil {
		return nil, err
	}

	candidates, err := s.agentRepo.ListAvailableInZone(ctx, req.Zone)
	if err != nil {
		return nil, fmt.Errorf("list candidates: %w", err)
	}

	for {
		agent, err := SelectNearest(candidates, req.Pickup.Coordinates)
		if err != nil {
			monitoring.AssignmentsTotal.WithLabelValues(monitoring.OutcomeRejected).Inc()
			s.audit.record(ctx, domain.AuditCategoryDispatch, domain.AuditLevelWarning,
				domain.ActorRefs{PrincipalID: req.PrincipalID},
				"no candidate available",
				map[string]any{"marketplace_order_id": req.MarketplaceOrderID, "zone": req.Zone},
			)
			return nil, err
		}

		order := s.newOrder(req, agent.ID, cfg.Currency, distance, fee)
		err = s.tryAssign(ctx, order)
		if errors.Is(err, repository.ErrAgentUnavailable) {
			monitoring.AssignmentRetriesTotal.Inc()
			s.logger.Debug("candidate taken, retrying",
				zap.String("agent_id", agent.ID),
				zap.String("marketplace_order_id", req.MarketplaceOrderID),
			)
			candidates = withoutAgent(candidates, agent.ID)
			continue
		}
		if err != nil {
			monitoring.AssignmentsTotal.WithLabelValues(monitoring.OutcomeFailure).Inc()
			s.audit.record(ctx, domain.AuditCategoryDispatch, domain.AuditLevelError,
				domain.ActorRefs{AgentID: agent.ID, OrderID: order.ID, PrincipalID: req.PrincipalID},
				"order assignment failed",
				map[string]any{"error": err.Error(), "marketplace_order_id": req.MarketplaceOrderID},
			)
			return nil, fmt.Errorf("assign order: %w", err)
		}

		monitoring.AssignmentsTotal.WithLabelValues(monitoring.OutcomeSuccess).Inc()
		s.logger.Info("order assigned",
			zap.String("order_id", order.ID),
			zap.String("agent_id", agent.ID),
			zap.Float64("distance_km", distance),
			zap.Float64("amount", order.PaymentInfo.TotalPayment),
		)
		s.audit.record(ctx, domain.AuditCategoryDispatch, domain.AuditLevelInfo,
			domain.ActorRefs{AgentID: agent.ID, OrderID: order.ID, PrincipalID: req.PrincipalID},
			"order assigned",
			map[string]any{
				"marketplace_order_id": req.MarketplaceOrderID,
				"zone":                 req.Zone,
				"distance_km":          distance,
				"total_payment":        order.PaymentInfo.TotalPayment,
			},
		)
		notify(ctx, s.notifier, s.logger, orderNotification(order))

		return &AssignOrderResult{
			DeliveryOrderID: order.ID,
			AgentID:         agent.ID,
			PaymentInfo:     order.PaymentInfo,
			Order:           order,
		}, nil
	}
}

// tryAssign takes the advisory agent lock when configured, then performs the
// atomic busy-flip and insert.
func (s *DispatchService) tryAssign(ctx context.Context, order *domain.DeliveryOrder) error {
	if s.lockStore != nil {
		token, locked, err := s.lockStore.AcquireAgentLock(ctx, order.AgentID, s.lockTTL)
		if err != nil {
			return fmt.Errorf("acquire agent lock: %w", err)
		}
		if !locked {
			return repository.ErrAgentUnavailable
		}
		defer func() {
			if err := s.lockStore.ReleaseAgentLock(context.WithoutCancel(ctx), order.AgentID, token); err != nil {
				s.logger.Warn("release agent lock failed", zap.String("agent_id", order.AgentID), zap.Error(err))
			}
		}()
	}
	return s.orderRepo.CreateAssigned(ctx, order)
}

func (s *DispatchService) newOrder(req AssignOrderRequest, agentID, currency string, distance float64, fee FeeBreakdown) *domain.DeliveryOrder {
	now := s.now()
	return &domain.DeliveryOrder{
		ID:                 uuid.NewString(),
		MarketplaceOrderID: req.MarketplaceOrderID,
		AgentID:            agentID,
		Pickup:             req.Pickup,
		Dropoff:            req.Dropoff,
		Items:              req.Items,
		OrderValue:         req.OrderValue,
		PaymentInfo:        fee.PaymentInfo(currency, req.PaymentMethod),
		Status:             domain.OrderStatusAssigned,
		Tracking: domain.Tracking{
			AssignedAt:          now,
			EstimatedDeliveryAt: now.Add(time.Duration(fee.EstimatedTime) * time.Minute),
		},
		Performance: domain.OrderPerformance{
			DistanceKm:    distance,
			EstimatedTime: fee.EstimatedTime,
		},
		Metadata: domain.OrderMetadata{
			Zone:      req.Zone,
			Weather:   req.Weather,
			PeakHours: req.PeakHours,
			Priority:  req.Priority,
		},
		CreatedAt: now,
		UpdatedAt: now,
	}
}

func withoutAgent(agents []*domain.Agent, id string) []*domain.Agent {
	out := make([]*domain.Agent, 0, len(agents))
	for _, a := range agents {
		if a.ID != id {
			out = append(out, a)
		}
	}
	return out
}
