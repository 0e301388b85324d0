package service

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"dispatch/internal/domain"
)

// NotificationKind represents the type of notification.
type NotificationKind string

const (
	NotificationOrderAssigned       NotificationKind = "ORDER_ASSIGNED"
	NotificationOrderPickedUp       NotificationKind = "ORDER_PICKED_UP"
	NotificationOrderInTransit      NotificationKind = "ORDER_IN_TRANSIT"
	NotificationOrderDelivered      NotificationKind = "ORDER_DELIVERED"
	NotificationOrderCancelled      NotificationKind = "ORDER_CANCELLED"
	NotificationOrderFailed         NotificationKind = "ORDER_FAILED"
	NotificationPaymentCredited     NotificationKind = "PAYMENT_CREDITED"
	NotificationPenaltyApplied      NotificationKind = "PENALTY_APPLIED"
	NotificationWithdrawalCompleted NotificationKind = "WITHDRAWAL_COMPLETED"
	NotificationWithdrawalFailed    NotificationKind = "WITHDRAWAL_FAILED"
)

// Notification represents a notification to be sent to an agent.
type Notification struct {
	AgentID   string
	Kind      NotificationKind
	Title     string
	Body      string
	Data      map[string]any
	CreatedAt time.Time
}

// Notifier delivers notifications. Delivery failures never roll back state.
type Notifier interface {
	Notify(ctx context.Context, n Notification) error
}

// NotificationService is a Notifier that writes notifications to the log.
type NotificationService struct {
	logger *zap.Logger
}

// NewNotificationService creates a new NotificationService.
func NewNotificationService(logger *zap.Logger) *NotificationService {
	return &NotificationService{logger: logger.Named("notification")}
}

// Notify logs n.
func (s *NotificationService) Notify(ctx context.Context, n Notification) error {
	s.logger.Info(n.Title,
		zap.String("agent_id", n.AgentID),
		zap.String("kind", string(n.Kind)),
		zap.String("body", n.Body),
		zap.Any("data", n.Data),
	)
	return nil
}

// notify sends n and only logs a failure.
func notify(ctx context.Context, notifier Notifier, logger *zap.Logger, n Notification) {
	if notifier == nil {
		return
	}
	if n.CreatedAt.IsZero() {
		n.CreatedAt = time.Now()
	}
	if err := notifier.Notify(ctx, n); err != nil {
		logger.Warn("notification failed",
			zap.String("agent_id", n.AgentID),
			zap.String("kind", string(n.Kind)),
			zap.Error(err),
		)
	}
}

func orderNotification(order *domain.DeliveryOrder) Notification {
	n := Notification{
		AgentID: order.AgentID,
		Data: map[string]any{
			"order_id":             order.ID,
			"marketplace_order_id": order.MarketplaceOrderID,
			"status":               order.Status,
		},
	}

	switch order.Status {
	case domain.OrderStatusAssigned:
		n.Kind = NotificationOrderAssigned
		n.Title = "New Delivery Assigned"
		n.Body = fmt.Sprintf("Pick up at %s. Estimated payment %.2f %s",
			order.Pickup.Address, order.PaymentInfo.TotalPayment, order.PaymentInfo.Currency)
		n.Data["estimated_delivery_at"] = order.Tracking.EstimatedDeliveryAt
	case domain.OrderStatusPickedUp:
		n.Kind = NotificationOrderPickedUp
		n.Title = "Order Picked Up"
		n.Body = fmt.Sprintf("Deliver to %s", order.Dropoff.Address)
	case domain.OrderStatusInTransit:
		n.Kind = NotificationOrderInTransit
		n.Title = "Order In Transit"
		n.Body = "Delivery is on the way"
	case domain.OrderStatusDelivered:
		n.Kind = NotificationOrderDelivered
		n.Title = "Delivery Completed"
		n.Body = fmt.Sprintf("You earned %.2f %s", order.PaymentInfo.TotalPayment, order.PaymentInfo.Currency)
		n.Data["total_payment"] = order.PaymentInfo.TotalPayment
		n.Data["bonus"] = order.PaymentInfo.Bonus
	case domain.OrderStatusCancelled:
		n.Kind = NotificationOrderCancelled
		n.Title = "Delivery Cancelled"
		n.Body = order.Tracking.CancelReason
	case domain.OrderStatusFailed:
		n.Kind = NotificationOrderFailed
		n.Title = "Delivery Failed"
		n.Body = order.Tracking.FailureReason
	}
	return n
}
