package handler

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"dispatch/internal/domain"
	"dispatch/internal/middleware"
	"dispatch/internal/service"
)

// OrderHandler handles HTTP requests for delivery orders.
type OrderHandler struct {
	dispatchService *service.DispatchService
	orderService    *service.OrderService
}

// NewOrderHandler creates a new OrderHandler.
func NewOrderHandler(dispatchService *service.DispatchService, orderService *service.OrderService) *OrderHandler {
	return &OrderHandler{
		dispatchService: dispatchService,
		orderService:    orderService,
	}
}

// AssignOrderRequest is the HTTP request body for dispatching an order.
type AssignOrderRequest struct {
	MarketplaceOrderID string             `json:"marketplace_order_id"`
	Pickup             domain.Stop        `json:"pickup"`
	Dropoff            domain.Stop        `json:"dropoff"`
	Items              []domain.OrderItem `json:"items,omitempty"`
	OrderValue         float64            `json:"order_value"`
	PaymentMethod      string             `json:"payment_method,omitempty"` // cash, card, wallet
	Zone               string             `json:"zone"`
	Weather            string             `json:"weather,omitempty"`
	PeakHours          bool               `json:"peak_hours"`
	Priority           string             `json:"priority,omitempty"`
}

// AssignOrderResponse is the HTTP response for a dispatched order.
type AssignOrderResponse struct {
	DeliveryOrderID     string             `json:"delivery_order_id"`
	AgentID             string             `json:"agent_id"`
	PaymentInfo         domain.PaymentInfo `json:"payment_info"`
	EstimatedDeliveryAt time.Time          `json:"estimated_delivery_at"`
}

// TransitionRequest is the HTTP request body for a status change.
type TransitionRequest struct {
	Status   string              `json:"status"`
	Location *domain.Coordinates `json:"location,omitempty"`
	Rating   *float64            `json:"rating,omitempty"`
	Feedback string              `json:"feedback,omitempty"`
	Reason   string              `json:"reason,omitempty"`
}

// OrderResponse is the HTTP representation of a delivery order.
type OrderResponse struct {
	ID                 string                  `json:"id"`
	MarketplaceOrderID string                  `json:"marketplace_order_id"`
	AgentID            string                  `json:"agent_id"`
	Status             string                  `json:"status"`
	Pickup             domain.Stop             `json:"pickup"`
	Dropoff            domain.Stop             `json:"dropoff"`
	Items              []domain.OrderItem      `json:"items,omitempty"`
	OrderValue         float64                 `json:"order_value"`
	PaymentInfo        domain.PaymentInfo      `json:"payment_info"`
	Tracking           domain.Tracking         `json:"tracking"`
	Performance        domain.OrderPerformance `json:"performance"`
	Metadata           domain.OrderMetadata    `json:"metadata"`
	CreatedAt          time.Time               `json:"created_at"`
	UpdatedAt          time.Time               `json:"updated_at"`
}

func newOrderResponse(o *domain.DeliveryOrder) OrderResponse {
	return OrderResponse{
		ID:                 o.ID,
		MarketplaceOrderID: o.MarketplaceOrderID,
		AgentID:            o.AgentID,
		Status:             string(o.Status),
		Pickup:             o.Pickup,
		Dropoff:            o.Dropoff,
		Items:              o.Items,
		OrderValue:         o.OrderValue,
		PaymentInfo:        o.PaymentInfo,
		Tracking:           o.Tracking,
		Performance:        o.Performance,
		Metadata:           o.Metadata,
		CreatedAt:          o.CreatedAt,
		UpdatedAt:          o.UpdatedAt,
	}
}

// AssignOrder handles POST /v1/orders/assign
func (h *OrderHandler) AssignOrder(c *gin.Context) {
	var req AssignOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request body"})
		return
	}

	result, err := h.dispatchService.AssignOrder(c.Request.Context(), service.AssignOrderRequest{
		MarketplaceOrderID: req.MarketplaceOrderID,
		Pickup:             req.Pickup,
		Dropoff:            req.Dropoff,
		Items:              req.Items,
		OrderValue:         req.OrderValue,
		PaymentMethod:      domain.PaymentMethod(req.PaymentMethod),
		Zone:               req.Zone,
		Weather:            req.Weather,
		PeakHours:          req.PeakHours,
		Priority:           domain.Priority(req.Priority),
		PrincipalID:        middleware.Principal(c),
	})
	if err != nil {
		respondError(c, err)
		return
	}

	respondJSON(c, http.StatusCreated, AssignOrderResponse{
		DeliveryOrderID:     result.DeliveryOrderID,
		AgentID:             result.AgentID,
		PaymentInfo:         result.PaymentInfo,
		EstimatedDeliveryAt: result.Order.Tracking.EstimatedDeliveryAt,
	})
}

// GetOrder handles GET /v1/orders/:id
func (h *OrderHandler) GetOrder(c *gin.Context) {
	order, err := h.orderService.GetOrder(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	respondJSON(c, http.StatusOK, newOrderResponse(order))
}

// Transition handles POST /v1/orders/:id/transition. The principal is the
// agent the order must belong to.
func (h *OrderHandler) Transition(c *gin.Context) {
	var req TransitionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request body"})
		return
	}

	principal := middleware.Principal(c)
	order, err := h.orderService.Transition(c.Request.Context(), service.TransitionRequest{
		OrderID:     c.Param("id"),
		AgentID:     principal,
		To:          domain.OrderStatus(req.Status),
		Location:    req.Location,
		Rating:      req.Rating,
		Feedback:    req.Feedback,
		Reason:      req.Reason,
		PrincipalID: principal,
	})
	if err != nil {
		respondError(c, err)
		return
	}
	respondJSON(c, http.StatusOK, newOrderResponse(order))
}
