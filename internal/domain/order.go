package domain

import "time"

// OrderStatus represents the lifecycle state of a delivery order.
type OrderStatus string

const (
	OrderStatusAssigned  OrderStatus = "assigned"
	OrderStatusPickedUp  OrderStatus = "picked_up"
	OrderStatusInTransit OrderStatus = "in_transit"
	OrderStatusDelivered OrderStatus = "delivered"
	OrderStatusCancelled OrderStatus = "cancelled"
	OrderStatusFailed    OrderStatus = "failed"
)

// IsTerminal reports whether the status has no outgoing transitions.
func (s OrderStatus) IsTerminal() bool {
	switch s {
	case OrderStatusDelivered, OrderStatusCancelled, OrderStatusFailed:
		return true
	}
	return false
}

// Valid reports whether s is one of the known statuses.
func (s OrderStatus) Valid() bool {
	switch s {
	case OrderStatusAssigned, OrderStatusPickedUp, OrderStatusInTransit,
		OrderStatusDelivered, OrderStatusCancelled, OrderStatusFailed:
		return true
	}
	return false
}

// ActiveOrderStatuses lists the non-terminal statuses.
var ActiveOrderStatuses = []OrderStatus{OrderStatusAssigned, OrderStatusPickedUp, OrderStatusInTransit}

// Priority of a delivery order.
type Priority string

const (
	PriorityNormal Priority = "normal"
	PriorityHigh   Priority = "high"
	PriorityUrgent Priority = "urgent"
)

// Valid reports whether p is one of the known priorities.
func (p Priority) Valid() bool {
	return p == PriorityNormal || p == PriorityHigh || p == PriorityUrgent
}

// Weather conditions understood by pricing.
const (
	WeatherNormal  = "normal"
	WeatherRain    = "rain"
	WeatherStorm   = "storm"
	WeatherExtreme = "extreme"
)

// PaymentMethod represents how the customer pays for the marketplace order.
type PaymentMethod string

const (
	PaymentMethodCash   PaymentMethod = "cash"
	PaymentMethodCard   PaymentMethod = "card"
	PaymentMethodWallet PaymentMethod = "wallet"
)

// Stop is a pickup or drop-off point.
type Stop struct {
	Address      string      `json:"address"`
	Coordinates  Coordinates `json:"coordinates"`
	ContactName  string      `json:"contact_name"`
	ContactPhone string      `json:"contact_phone"`
}

// OrderItem summarises one line of the marketplace order.
type OrderItem struct {
	Name     string `json:"name"`
	Quantity int    `json:"quantity"`
}

// PaymentInfo is the fee breakdown attached to a delivery order.
type PaymentInfo struct {
	BaseFee             float64       `json:"base_fee"`
	DistanceFee         float64       `json:"distance_fee"`
	TimeFee             float64       `json:"time_fee"`
	BasePayment         float64       `json:"base_payment"`
	Bonus               float64       `json:"bonus"`
	BonusType           BonusType     `json:"bonus_type,omitempty"`
	TotalPayment        float64       `json:"total_payment"`
	CommissionDeduction float64       `json:"commission_deduction"`
	Currency            string        `json:"currency"`
	PaymentMethod       PaymentMethod `json:"payment_method"`
	IsPaid              bool          `json:"is_paid"`
}

// Tracking records transition timestamps.
type Tracking struct {
	AssignedAt          time.Time  `json:"assigned_at"`
	EstimatedDeliveryAt time.Time  `json:"estimated_delivery_at"`
	PickedUpAt          *time.Time `json:"picked_up_at,omitempty"`
	InTransitAt         *time.Time `json:"in_transit_at,omitempty"`
	DeliveredAt         *time.Time `json:"delivered_at,omitempty"`
	CancelledAt         *time.Time `json:"cancelled_at,omitempty"`
	FailedAt            *time.Time `json:"failed_at,omitempty"`
	CancelReason        string     `json:"cancel_reason,omitempty"`
	FailureReason       string     `json:"failure_reason,omitempty"`
}

// OrderPerformance is the per-order performance snapshot.
type OrderPerformance struct {
	DistanceKm    float64  `json:"distance_km"`
	EstimatedTime int      `json:"estimated_time"` // minutes
	ActualTime    *int     `json:"actual_time,omitempty"`
	Rating        *float64 `json:"rating,omitempty"`
	Feedback      string   `json:"feedback,omitempty"`
	OnTime        *bool    `json:"on_time,omitempty"`
}

// OrderMetadata carries the pricing context of an order.
type OrderMetadata struct {
	Zone      string   `json:"zone"`
	Weather   string   `json:"weather"`
	PeakHours bool     `json:"peak_hours"`
	Priority  Priority `json:"priority"`
}

// DeliveryOrder ties one marketplace order to one assigned agent.
type DeliveryOrder struct {
	ID                 string
	MarketplaceOrderID string
	AgentID            string
	Pickup             Stop
	Dropoff            Stop
	Items              []OrderItem
	OrderValue         float64
	PaymentInfo        PaymentInfo
	Status             OrderStatus
	Tracking           Tracking
	Performance        OrderPerformance
	Metadata           OrderMetadata
	CreatedAt          time.Time
	UpdatedAt          time.Time
}
