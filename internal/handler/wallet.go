package handler

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"dispatch/internal/domain"
	"dispatch/internal/middleware"
	"dispatch/internal/repository"
	"dispatch/internal/service"
)

// WalletHandler handles HTTP requests for the principal's own wallet.
type WalletHandler struct {
	ledgerService *service.LedgerService
}

// NewWalletHandler creates a new WalletHandler.
func NewWalletHandler(ledgerService *service.LedgerService) *WalletHandler {
	return &WalletHandler{ledgerService: ledgerService}
}

// WalletResponse is the HTTP representation of a wallet.
type WalletResponse struct {
	AgentID           string  `json:"agent_id"`
	Currency          string  `json:"currency"`
	Balance           float64 `json:"balance"`
	TotalEarned       float64 `json:"total_earned"`
	TotalWithdrawn    float64 `json:"total_withdrawn"`
	PendingWithdrawal float64 `json:"pending_withdrawal"`
	IsActive          bool    `json:"is_active"`
}

// TransactionResponse is the HTTP representation of a ledger entry.
type TransactionResponse struct {
	ID          string                     `json:"id"`
	Type        string                     `json:"type"`
	Amount      float64                    `json:"amount"`
	Currency    string                     `json:"currency"`
	Status      string                     `json:"status"`
	OrderID     string                     `json:"order_id,omitempty"`
	Metadata    domain.TransactionMetadata `json:"metadata,omitempty"`
	Description string                     `json:"description,omitempty"`
	CreatedAt   time.Time                  `json:"created_at"`
	CompletedAt *time.Time                 `json:"completed_at,omitempty"`
}

// TransactionListResponse is one page of transactions.
type TransactionListResponse struct {
	Items []TransactionResponse `json:"items"`
	Total int                   `json:"total"`
	Page  int                   `json:"page"`
	Size  int                   `json:"size"`
}

// WithdrawalRequest is the HTTP request body for a withdrawal.
type WithdrawalRequest struct {
	Amount      float64 `json:"amount"`
	Method      string  `json:"method"`
	Destination string  `json:"destination"`
}

// WithdrawalResponse is the HTTP response for a withdrawal.
type WithdrawalResponse struct {
	TransactionID string `json:"transaction_id"`
	Status        string `json:"status"`
	FailureReason string `json:"failure_reason,omitempty"`
}

func newWalletResponse(w *domain.WalletAccount) WalletResponse {
	return WalletResponse{
		AgentID:           w.AgentID,
		Currency:          w.Currency,
		Balance:           w.CurrentBalance,
		TotalEarned:       w.TotalEarned,
		TotalWithdrawn:    w.TotalWithdrawn,
		PendingWithdrawal: w.PendingWithdrawal,
		IsActive:          w.IsActive,
	}
}

func newTransactionResponse(tx *domain.LedgerTransaction) TransactionResponse {
	return TransactionResponse{
		ID:          tx.ID,
		Type:        string(tx.Type),
		Amount:      tx.Amount,
		Currency:    tx.Currency,
		Status:      string(tx.Status),
		OrderID:     tx.OrderID,
		Metadata:    tx.Metadata,
		Description: tx.Description,
		CreatedAt:   tx.CreatedAt,
		CompletedAt: tx.CompletedAt,
	}
}

// GetWallet handles GET /v1/wallet
func (h *WalletHandler) GetWallet(c *gin.Context) {
	wallet, err := h.ledgerService.GetWallet(c.Request.Context(), middleware.Principal(c))
	if err != nil {
		respondError(c, err)
		return
	}
	respondJSON(c, http.StatusOK, newWalletResponse(wallet))
}

// ListTransactions handles GET /v1/wallet/transactions
func (h *WalletHandler) ListTransactions(c *gin.Context) {
	filter, page, err := parseTransactionQuery(c)
	if err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: err.Error()})
		return
	}

	result, err := h.ledgerService.ListTransactions(c.Request.Context(), middleware.Principal(c), filter, page)
	if err != nil {
		respondError(c, err)
		return
	}

	items := make([]TransactionResponse, 0, len(result.Items))
	for _, tx := range result.Items {
		items = append(items, newTransactionResponse(tx))
	}
	respondJSON(c, http.StatusOK, TransactionListResponse{
		Items: items,
		Total: result.Total,
		Page:  result.Page,
		Size:  result.Size,
	})
}

// RequestWithdrawal handles POST /v1/wallet/withdrawals. A declined payout
// answers 200 with status failed.
func (h *WalletHandler) RequestWithdrawal(c *gin.Context) {
	var req WithdrawalRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request body"})
		return
	}

	principal := middleware.Principal(c)
	result, err := h.ledgerService.RequestWithdrawal(c.Request.Context(), service.WithdrawalRequest{
		AgentID:     principal,
		Amount:      req.Amount,
		Method:      req.Method,
		Destination: req.Destination,
		PrincipalID: principal,
	})
	if err != nil {
		respondError(c, err)
		return
	}

	respondJSON(c, http.StatusOK, WithdrawalResponse{
		TransactionID: result.TransactionID,
		Status:        string(result.Status),
		FailureReason: result.FailureReason,
	})
}

type queryError string

func (e queryError) Error() string { return string(e) }

func parseTransactionQuery(c *gin.Context) (repository.TransactionFilter, repository.Page, error) {
	var (
		filter repository.TransactionFilter
		page   repository.Page
		err    error
	)
	filter.Type = domain.TransactionType(c.Query("type"))
	filter.Status = domain.TransactionStatus(c.Query("status"))

	if v := c.Query("from"); v != "" {
		if filter.From, err = time.Parse(time.RFC3339, v); err != nil {
			return filter, page, queryError("from must be RFC3339")
		}
	}
	if v := c.Query("to"); v != "" {
		if filter.To, err = time.Parse(time.RFC3339, v); err != nil {
			return filter, page, queryError("to must be RFC3339")
		}
	}
	if v := c.Query("page"); v != "" {
		if page.Number, err = strconv.Atoi(v); err != nil {
			return filter, page, queryError("page must be an integer")
		}
	}
	if v := c.Query("size"); v != "" {
		if page.Size, err = strconv.Atoi(v); err != nil {
			return filter, page, queryError("size must be an integer")
		}
	}
	return filter, page, nil
}
