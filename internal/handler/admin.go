package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"dispatch/internal/domain"
	"dispatch/internal/middleware"
	"dispatch/internal/service"
)

// AdminHandler handles operator requests: manual wallet entries, settlement
// reconciliation and rate settings.
type AdminHandler struct {
	ledgerService   *service.LedgerService
	orderService    *service.OrderService
	settingsService *service.SettingsService
}

// NewAdminHandler creates a new AdminHandler.
func NewAdminHandler(ledgerService *service.LedgerService, orderService *service.OrderService, settingsService *service.SettingsService) *AdminHandler {
	return &AdminHandler{
		ledgerService:   ledgerService,
		orderService:    orderService,
		settingsService: settingsService,
	}
}

// CreditRequest is the HTTP request body for a manual credit.
type CreditRequest struct {
	Type                  string  `json:"type"` // bonus, refund, adjustment
	Amount                float64 `json:"amount"`
	OrderID               string  `json:"order_id,omitempty"`
	Reason                string  `json:"reason"`
	BonusType             string  `json:"bonus_type,omitempty"`
	OriginalTransactionID string  `json:"original_transaction_id,omitempty"`
}

// PenaltyRequest is the HTTP request body for a penalty.
type PenaltyRequest struct {
	Amount  float64 `json:"amount"`
	OrderID string  `json:"order_id,omitempty"`
	Reason  string  `json:"reason"`
}

// Credit handles POST /v1/admin/agents/:id/credits
func (h *AdminHandler) Credit(c *gin.Context) {
	var req CreditRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request body"})
		return
	}

	principal := middleware.Principal(c)
	var meta domain.TransactionMetadata
	switch t := domain.TransactionType(req.Type); t {
	case domain.TransactionBonus:
		meta = domain.BonusMetadata{BonusType: domain.BonusType(req.BonusType), Reason: req.Reason}
	case domain.TransactionRefund:
		meta = domain.RefundMetadata{Reason: req.Reason, OriginalTransactionID: req.OriginalTransactionID}
	case domain.TransactionAdjustment:
		meta = domain.AdjustmentMetadata{Reason: req.Reason, OperatorID: principal}
	default:
		respondError(c, service.ErrInvalidTransactionType)
		return
	}

	tx, err := h.ledgerService.Credit(c.Request.Context(), service.CreditRequest{
		AgentID:     c.Param("id"),
		Type:        meta.TransactionType(),
		Amount:      req.Amount,
		OrderID:     req.OrderID,
		Metadata:    meta,
		Description: req.Reason,
		PrincipalID: principal,
	})
	if err != nil {
		respondError(c, err)
		return
	}
	respondJSON(c, http.StatusCreated, newTransactionResponse(tx))
}

// ApplyPenalty handles POST /v1/admin/agents/:id/penalties
func (h *AdminHandler) ApplyPenalty(c *gin.Context) {
	var req PenaltyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request body"})
		return
	}

	tx, err := h.ledgerService.ApplyPenalty(c.Request.Context(), service.PenaltyRequest{
		AgentID:     c.Param("id"),
		Amount:      req.Amount,
		Reason:      req.Reason,
		OrderID:     req.OrderID,
		PrincipalID: middleware.Principal(c),
	})
	if err != nil {
		respondError(c, err)
		return
	}
	respondJSON(c, http.StatusCreated, newTransactionResponse(tx))
}

// SettleOrder handles POST /v1/admin/orders/:id/settle
func (h *AdminHandler) SettleOrder(c *gin.Context) {
	order, err := h.orderService.SettleDelivered(c.Request.Context(), c.Param("id"), middleware.Principal(c))
	if err != nil {
		respondError(c, err)
		return
	}
	respondJSON(c, http.StatusOK, newOrderResponse(order))
}

// GetRates handles GET /v1/admin/settings/rates
func (h *AdminHandler) GetRates(c *gin.Context) {
	cfg, err := h.settingsService.Current(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	respondJSON(c, http.StatusOK, cfg)
}

// PutRates handles PUT /v1/admin/settings/rates
func (h *AdminHandler) PutRates(c *gin.Context) {
	var cfg domain.RateConfig
	if err := c.ShouldBindJSON(&cfg); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request body"})
		return
	}
	if err := h.settingsService.Update(c.Request.Context(), &cfg); err != nil {
		respondError(c, err)
		return
	}
	respondJSON(c, http.StatusOK, &cfg)
}
