package service

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"go.uber.org/zap"

	"dispatch/internal/domain"
	"dispatch/internal/monitoring"
	"dispatch/internal/redis"
	"dispatch/internal/repository"
)

// onTimeGrace is how late a delivery may be and still count as on time.
const onTimeGrace = 15 * time.Minute

// allowedTransitions maps each non-terminal status to the statuses it may move to.
var allowedTransitions = map[domain.OrderStatus][]domain.OrderStatus{
	domain.OrderStatusAssigned:  {domain.OrderStatusPickedUp, domain.OrderStatusCancelled},
	domain.OrderStatusPickedUp:  {domain.OrderStatusInTransit, domain.OrderStatusCancelled, domain.OrderStatusFailed},
	domain.OrderStatusInTransit: {domain.OrderStatusDelivered, domain.OrderStatusCancelled, domain.OrderStatusFailed},
}

// CanTransition reports whether from may move directly to to.
func CanTransition(from, to domain.OrderStatus) bool {
	for _, s := range allowedTransitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// OrderService drives the delivery order state machine.
type OrderService struct {
	orderRepo     repository.OrderRepository
	agentRepo     repository.AgentRepository
	rates         RateConfigSource
	volume        *VolumeCounter
	ledger        *LedgerService
	performance   *PerformanceService
	locationStore redis.LocationStoreInterface
	notifier      Notifier
	audit         auditor
	logger        *zap.Logger
	now           func() time.Time
}

// NewOrderService creates a new OrderService. locationStore and notifier may be nil.
func NewOrderService(
	orderRepo repository.OrderRepository,
	agentRepo repository.AgentRepository,
	rates RateConfigSource,
	volume *VolumeCounter,
	ledger *LedgerService,
	performance *PerformanceService,
	locationStore redis.LocationStoreInterface,
	notifier Notifier,
	auditLog AuditLog,
	logger *zap.Logger,
) *OrderService {
	logger = logger.Named("lifecycle")
	return &OrderService{
		orderRepo:     orderRepo,
		agentRepo:     agentRepo,
		rates:         rates,
		volume:        volume,
		ledger:        ledger,
		performance:   performance,
		locationStore: locationStore,
		notifier:      notifier,
		audit:         auditor{log: auditLog, logger: logger, now: time.Now},
		logger:        logger,
		now:           time.Now,
	}
}

// TransitionRequest contains the parameters for a status change.
type TransitionRequest struct {
	OrderID     string
	AgentID     string
	To          domain.OrderStatus
	Location    *domain.Coordinates // in_transit: agent position
	Rating      *float64            // delivered
	Feedback    string              // delivered
	Reason      string              // cancelled, failed
	PrincipalID string
}

func (r TransitionRequest) validate() error {
	if r.OrderID == "" {
		return ErrInvalidOrderID
	}
	if r.AgentID == "" {
		return ErrInvalidAgentID
	}
	if !r.To.Valid() {
		return ErrUnknownState
	}
	if r.Location != nil && !r.Location.Valid() {
		return ErrInvalidLocation
	}
	if r.Rating != nil && (*r.Rating < 1 || *r.Rating > 5) {
		return ErrInvalidRating
	}
	return nil
}

// GetOrder retrieves an order by ID.
func (s *OrderService) GetOrder(ctx context.Context, orderID string) (*domain.DeliveryOrder, error) {
	if orderID == "" {
		return nil, ErrInvalidOrderID
	}
	return s.orderRepo.GetByID(ctx, orderID)
}

// Transition moves an order to req.To. The order must belong to req.AgentID
// and currently be in a direct predecessor of req.To; otherwise
// ErrInvalidTransition is returned and nothing changes.
func (s *OrderService) Transition(ctx context.Context, req TransitionRequest) (*domain.DeliveryOrder, error) {
	if err := req.validate(); err != nil {
		return nil, err
	}

	order, err := s.orderRepo.GetByID(ctx, req.OrderID)
	if err != nil {
		return nil, err
	}
	if order.AgentID != req.AgentID || !CanTransition(order.Status, req.To) {
		monitoring.TransitionsTotal.WithLabelValues(string(req.To), monitoring.OutcomeRejected).Inc()
		return nil, fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, order.Status, req.To)
	}

	if req.To == domain.OrderStatusDelivered {
		return s.deliver(ctx, order, req)
	}

	from := order.Status
	now := s.now()
	order.Status = req.To
	order.UpdatedAt = now
	switch req.To {
	case domain.OrderStatusPickedUp:
		order.Tracking.PickedUpAt = &now
	case domain.OrderStatusInTransit:
		order.Tracking.InTransitAt = &now
	case domain.OrderStatusCancelled:
		order.Tracking.CancelledAt = &now
		order.Tracking.CancelReason = req.Reason
	case domain.OrderStatusFailed:
		order.Tracking.FailedAt = &now
		order.Tracking.FailureReason = req.Reason
	}

	if err := s.apply(ctx, order, from, req.PrincipalID); err != nil {
		return nil, err
	}

	if req.To == domain.OrderStatusInTransit && req.Location != nil {
		s.refreshLocation(ctx, order.AgentID, *req.Location, now)
	}

	s.afterTransition(ctx, order, from, req.PrincipalID)
	return order, nil
}

// deliver prices the completed order with its actual duration and rating, then
// stores the transition with its payment and the agent statistics as one unit.
func (s *OrderService) deliver(ctx context.Context, order *domain.DeliveryOrder, req TransitionRequest) (*domain.DeliveryOrder, error) {
	cfg, err := s.rates.Current(ctx)
	if err != nil {
		return nil, err
	}

	now := s.now()
	from := order.Status

	start := order.Tracking.AssignedAt
	if order.Tracking.PickedUpAt != nil {
		start = *order.Tracking.PickedUpAt
	}
	actual := int(math.Round(now.Sub(start).Minutes()))
	onTime := now.Sub(order.Tracking.EstimatedDeliveryAt) <= onTimeGrace

	var volume *VolumeCounts
	if s.volume != nil && cfg.Bonuses.Volume.Enabled {
		counts, err := s.volume.Count(ctx, order.AgentID, now, cfg.Bonuses.Volume.WeekStartsOn)
		if err != nil {
			return nil, err
		}
		volume = &counts
	}

	fee, err := Price(PricingInput{
		DistanceKm:          order.Performance.DistanceKm,
		OrderValue:          order.OrderValue,
		Zone:                order.Metadata.Zone,
		PeakHours:           order.Metadata.PeakHours,
		Weather:             order.Metadata.Weather,
		Priority:            order.Metadata.Priority,
		DeliveryTimeMinutes: &actual,
		Rating:              req.Rating,
		Volume:              volume,
	}, cfg)
	if err != nil {
		return nil, err
	}

	currency := order.PaymentInfo.Currency
	if currency == "" {
		currency = cfg.Currency
	}
	order.Status = domain.OrderStatusDelivered
	order.UpdatedAt = now
	order.Tracking.DeliveredAt = &now
	order.Performance.ActualTime = &actual
	order.Performance.OnTime = &onTime
	order.Performance.Rating = req.Rating
	order.Performance.Feedback = req.Feedback
	order.PaymentInfo = fee.PaymentInfo(currency, order.PaymentInfo.PaymentMethod)

	order.PaymentInfo.IsPaid = true

	payment, err := s.ledger.DeliveryPayment(ctx, order, fee, req.PrincipalID)
	if err != nil {
		return nil, fmt.Errorf("settle order %s: %w", order.ID, err)
	}

	var aggregate func(domain.AgentPerformance) domain.AgentPerformance
	if s.performance != nil {
		aggregate = s.performance.Aggregator(DeliveryOutcome{
			ActualTime:   actual,
			Rating:       req.Rating,
			OnTime:       onTime,
			TotalPayment: fee.TotalPayment,
			DistanceKm:   order.Performance.DistanceKm,
		})
	}

	if _, err := s.orderRepo.CompleteDelivery(ctx, order, from, payment, aggregate); err != nil {
		if errors.Is(err, repository.ErrStaleState) {
			monitoring.TransitionsTotal.WithLabelValues(string(order.Status), monitoring.OutcomeRejected).Inc()
			return nil, fmt.Errorf("%w: order %s changed concurrently", ErrInvalidTransition, order.ID)
		}
		monitoring.TransitionsTotal.WithLabelValues(string(order.Status), monitoring.OutcomeFailure).Inc()
		s.logger.Error("settlement failed",
			zap.String("order_id", order.ID),
			zap.String("agent_id", order.AgentID),
			zap.Float64("amount", fee.TotalPayment),
			zap.Error(err),
		)
		s.audit.record(ctx, domain.AuditCategoryLifecycle, domain.AuditLevelError,
			domain.ActorRefs{AgentID: order.AgentID, OrderID: order.ID, PrincipalID: req.PrincipalID},
			"order could not be delivered",
			map[string]any{"total_payment": fee.TotalPayment, "error": err.Error()})
		return nil, fmt.Errorf("settle order %s: %w", order.ID, s.ledger.creditRejected(ctx, payment, req.PrincipalID, err))
	}

	s.ledger.credited(ctx, payment, req.PrincipalID)
	s.afterTransition(ctx, order, from, req.PrincipalID)
	return order, nil
}

// SettleDelivered credits a delivered order that was never paid and marks it
// paid. Performance is aggregated only when this call made the credit.
func (s *OrderService) SettleDelivered(ctx context.Context, orderID, principalID string) (*domain.DeliveryOrder, error) {
	if orderID == "" {
		return nil, ErrInvalidOrderID
	}
	order, err := s.orderRepo.GetByID(ctx, orderID)
	if err != nil {
		return nil, fmt.Errorf("get order: %w", err)
	}
	if order.Status != domain.OrderStatusDelivered {
		return nil, fmt.Errorf("%w: order %s is %s", ErrInvalidTransition, order.ID, order.Status)
	}
	if order.PaymentInfo.IsPaid {
		return nil, ErrDuplicateSettlement
	}

	actors := domain.ActorRefs{AgentID: order.AgentID, OrderID: order.ID, PrincipalID: principalID}
	fee := feeFromPaymentInfo(order.PaymentInfo)
	fresh := true
	tx, err := s.ledger.SettleDelivery(ctx, order, fee, principalID)
	switch {
	case errors.Is(err, ErrDuplicateSettlement):
		fresh = false
	case err != nil:
		return nil, fmt.Errorf("settle order %s: %w", order.ID, err)
	default:
		actors.TransactionID = tx.ID
	}

	order.PaymentInfo.IsPaid = true
	if err := s.orderRepo.UpdatePaymentInfo(ctx, order.ID, order.PaymentInfo); err != nil {
		return nil, fmt.Errorf("mark order %s paid: %w", order.ID, err)
	}

	if fresh && s.performance != nil {
		outcome := DeliveryOutcome{
			Rating:       order.Performance.Rating,
			TotalPayment: fee.TotalPayment,
			DistanceKm:   order.Performance.DistanceKm,
		}
		if order.Performance.ActualTime != nil {
			outcome.ActualTime = *order.Performance.ActualTime
		}
		if order.Performance.OnTime != nil {
			outcome.OnTime = *order.Performance.OnTime
		}
		if _, err := s.performance.Record(ctx, order.AgentID, outcome); err != nil {
			s.logger.Error("performance update failed", zap.String("agent_id", order.AgentID), zap.Error(err))
		}
	}

	s.logger.Info("delivered order settled",
		zap.String("order_id", order.ID),
		zap.String("agent_id", order.AgentID),
		zap.Bool("credited", fresh),
	)
	s.audit.record(ctx, domain.AuditCategoryLifecycle, domain.AuditLevelWarning, actors,
		"delivered order settled",
		map[string]any{"total_payment": fee.TotalPayment, "credited": fresh})
	return order, nil
}

// feeFromPaymentInfo recovers the breakdown stored on a priced order.
func feeFromPaymentInfo(p domain.PaymentInfo) FeeBreakdown {
	return FeeBreakdown{
		BaseFee:             p.BaseFee,
		DistanceFee:         p.DistanceFee,
		TimeFee:             p.TimeFee,
		BasePayment:         p.BasePayment,
		Bonus:               Bonus{Amount: p.Bonus, Type: p.BonusType},
		TotalPayment:        p.TotalPayment,
		CommissionDeduction: p.CommissionDeduction,
	}
}

// apply stores the transition, mapping a lost race to ErrInvalidTransition.
func (s *OrderService) apply(ctx context.Context, order *domain.DeliveryOrder, from domain.OrderStatus, principalID string) error {
	err := s.orderRepo.ApplyTransition(ctx, order, from)
	if err == nil {
		return nil
	}
	if errors.Is(err, repository.ErrStaleState) {
		monitoring.TransitionsTotal.WithLabelValues(string(order.Status), monitoring.OutcomeRejected).Inc()
		return fmt.Errorf("%w: order %s changed concurrently", ErrInvalidTransition, order.ID)
	}

	monitoring.TransitionsTotal.WithLabelValues(string(order.Status), monitoring.OutcomeFailure).Inc()
	s.audit.record(ctx, domain.AuditCategoryLifecycle, domain.AuditLevelError,
		domain.ActorRefs{AgentID: order.AgentID, OrderID: order.ID, PrincipalID: principalID},
		"order transition failed",
		map[string]any{"from": from, "to": order.Status, "error": err.Error()})
	return fmt.Errorf("apply transition: %w", err)
}

func (s *OrderService) afterTransition(ctx context.Context, order *domain.DeliveryOrder, from domain.OrderStatus, principalID string) {
	monitoring.TransitionsTotal.WithLabelValues(string(order.Status), monitoring.OutcomeSuccess).Inc()
	s.logger.Info("order transitioned",
		zap.String("order_id", order.ID),
		zap.String("agent_id", order.AgentID),
		zap.String("from", string(from)),
		zap.String("to", string(order.Status)),
	)

	meta := map[string]any{"from": from, "to": order.Status}
	switch order.Status {
	case domain.OrderStatusDelivered:
		meta["total_payment"] = order.PaymentInfo.TotalPayment
		meta["actual_time"] = order.Performance.ActualTime
		meta["on_time"] = order.Performance.OnTime
	case domain.OrderStatusCancelled:
		meta["reason"] = order.Tracking.CancelReason
	case domain.OrderStatusFailed:
		meta["reason"] = order.Tracking.FailureReason
	}
	level := domain.AuditLevelInfo
	if order.Status == domain.OrderStatusFailed {
		level = domain.AuditLevelWarning
	}
	s.audit.record(ctx, domain.AuditCategoryLifecycle, level,
		domain.ActorRefs{AgentID: order.AgentID, OrderID: order.ID, PrincipalID: principalID},
		"order "+string(order.Status), meta)

	notify(ctx, s.notifier, s.logger, orderNotification(order))
}

// refreshLocation stores the agent position and mirrors it into the geo index.
// Failures are logged; the transition has already been committed.
func (s *OrderService) refreshLocation(ctx context.Context, agentID string, at domain.Coordinates, now time.Time) {
	err := s.agentRepo.UpdateLocation(ctx, agentID, domain.KnownLocation{Coordinates: at, UpdatedAt: now})
	if err != nil {
		s.logger.Warn("agent location update failed", zap.String("agent_id", agentID), zap.Error(err))
		return
	}
	if s.locationStore == nil {
		return
	}
	if err := s.locationStore.UpdateLocation(ctx, agentID, at.Lat, at.Lng); err != nil {
		s.logger.Warn("agent geo index update failed", zap.String("agent_id", agentID), zap.Error(err))
	}
}
