package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"dispatch/internal/domain"
	"dispatch/internal/money"
	"dispatch/internal/monitoring"
	"dispatch/internal/repository"
)

const defaultPayoutTimeout = 10 * time.Second

// LedgerService maintains agent wallets and their transaction log.
type LedgerService struct {
	ledgerRepo    repository.LedgerRepository
	rates         RateConfigSource
	payout        PayoutProcessor
	notifier      Notifier
	audit         auditor
	logger        *zap.Logger
	payoutTimeout time.Duration
	now           func() time.Time
}

// NewLedgerService creates a new LedgerService.
func NewLedgerService(
	ledgerRepo repository.LedgerRepository,
	rates RateConfigSource,
	payout PayoutProcessor,
	notifier Notifier,
	auditLog AuditLog,
	logger *zap.Logger,
	payoutTimeout time.Duration,
) *LedgerService {
	if payoutTimeout <= 0 {
		payoutTimeout = defaultPayoutTimeout
	}
	logger = logger.Named("ledger")
	return &LedgerService{
		ledgerRepo:    ledgerRepo,
		rates:         rates,
		payout:        payout,
		notifier:      notifier,
		audit:         auditor{log: auditLog, logger: logger, now: time.Now},
		logger:        logger,
		payoutTimeout: payoutTimeout,
		now:           time.Now,
	}
}

// CreditRequest contains the parameters for crediting a wallet.
type CreditRequest struct {
	AgentID     string
	Type        domain.TransactionType
	Amount      float64
	OrderID     string
	Metadata    domain.TransactionMetadata
	Description string
	PrincipalID string
}

// Credit appends a completed credit and raises the balance. Order-bound
// credits are accepted once per (order, type).
func (s *LedgerService) Credit(ctx context.Context, req CreditRequest) (*domain.LedgerTransaction, error) {
	tx, err := s.newCredit(ctx, req)
	if err != nil {
		return nil, err
	}
	if _, err := s.ledgerRepo.Credit(ctx, tx); err != nil {
		return nil, s.creditRejected(ctx, tx, req.PrincipalID, err)
	}
	s.credited(ctx, tx, req.PrincipalID)
	return tx, nil
}

// newCredit validates req and builds the completed entry in the wallet currency.
func (s *LedgerService) newCredit(ctx context.Context, req CreditRequest) (*domain.LedgerTransaction, error) {
	if req.AgentID == "" {
		return nil, ErrInvalidAgentID
	}
	if !req.Type.IsCredit() {
		return nil, ErrInvalidTransactionType
	}
	amount := money.Round(req.Amount)
	if amount <= 0 {
		return nil, ErrInvalidAmount
	}
	if req.Metadata != nil && req.Metadata.TransactionType() != req.Type {
		return nil, fmt.Errorf("%w: %s metadata on %s entry", ErrInvalidTransactionType, req.Metadata.TransactionType(), req.Type)
	}

	wallet, err := s.ledgerRepo.GetWallet(ctx, req.AgentID)
	if err != nil {
		return nil, fmt.Errorf("get wallet: %w", err)
	}

	now := s.now()
	return &domain.LedgerTransaction{
		ID:          uuid.NewString(),
		AgentID:     req.AgentID,
		Type:        req.Type,
		Amount:      amount,
		Currency:    wallet.Currency,
		Status:      domain.TransactionCompleted,
		OrderID:     req.OrderID,
		Metadata:    req.Metadata,
		Description: req.Description,
		CreatedAt:   now,
		CompletedAt: &now,
	}, nil
}

// creditRejected audits a credit the store refused and returns the error to
// surface. A duplicate order-bound entry becomes ErrDuplicateSettlement.
func (s *LedgerService) creditRejected(ctx context.Context, tx *domain.LedgerTransaction, principalID string, err error) error {
	if errors.Is(err, repository.ErrDuplicateTransaction) {
		err = ErrDuplicateSettlement
	}
	monitoring.LedgerTransactionsTotal.WithLabelValues(string(tx.Type), string(domain.TransactionFailed)).Inc()
	s.audit.record(ctx, domain.AuditCategoryLedger, domain.AuditLevelError, creditActors(tx, principalID), "credit rejected",
		map[string]any{"type": tx.Type, "amount": tx.Amount, "error": err.Error()})
	return fmt.Errorf("credit %s: %w", tx.Type, err)
}

// credited reports a stored credit.
func (s *LedgerService) credited(ctx context.Context, tx *domain.LedgerTransaction, principalID string) {
	monitoring.LedgerTransactionsTotal.WithLabelValues(string(tx.Type), string(domain.TransactionCompleted)).Inc()
	s.logger.Info("wallet credited",
		zap.String("agent_id", tx.AgentID),
		zap.String("order_id", tx.OrderID),
		zap.String("transaction_id", tx.ID),
		zap.String("type", string(tx.Type)),
		zap.Float64("amount", tx.Amount),
	)
	s.audit.record(ctx, domain.AuditCategoryLedger, domain.AuditLevelInfo, creditActors(tx, principalID), "wallet credited",
		map[string]any{"type": tx.Type, "amount": tx.Amount})
	notify(ctx, s.notifier, s.logger, Notification{
		AgentID: tx.AgentID,
		Kind:    NotificationPaymentCredited,
		Title:   "Payment Received",
		Body:    fmt.Sprintf("%.2f %s credited to your wallet", tx.Amount, tx.Currency),
		Data:    map[string]any{"transaction_id": tx.ID, "type": tx.Type, "amount": tx.Amount},
	})
}

func creditActors(tx *domain.LedgerTransaction, principalID string) domain.ActorRefs {
	return domain.ActorRefs{AgentID: tx.AgentID, OrderID: tx.OrderID, TransactionID: tx.ID, PrincipalID: principalID}
}

// DeliveryPayment builds the delivery_payment credit of order without storing it.
func (s *LedgerService) DeliveryPayment(ctx context.Context, order *domain.DeliveryOrder, fee FeeBreakdown, principalID string) (*domain.LedgerTransaction, error) {
	return s.newCredit(ctx, deliveryCredit(order, fee, principalID))
}

// SettleDelivery credits the delivery payment of a delivered order.
func (s *LedgerService) SettleDelivery(ctx context.Context, order *domain.DeliveryOrder, fee FeeBreakdown, principalID string) (*domain.LedgerTransaction, error) {
	return s.Credit(ctx, deliveryCredit(order, fee, principalID))
}

func deliveryCredit(order *domain.DeliveryOrder, fee FeeBreakdown, principalID string) CreditRequest {
	meta := domain.DeliveryPaymentMetadata{
		BaseFee:             fee.BaseFee,
		DistanceFee:         fee.DistanceFee,
		TimeFee:             fee.TimeFee,
		BasePayment:         fee.BasePayment,
		Bonus:               fee.Bonus.Amount,
		BonusType:           fee.Bonus.Type,
		CommissionDeduction: fee.CommissionDeduction,
		DistanceKm:          order.Performance.DistanceKm,
		Rating:              order.Performance.Rating,
		Zone:                order.Metadata.Zone,
		Weather:             order.Metadata.Weather,
		PeakHours:           order.Metadata.PeakHours,
		Priority:            order.Metadata.Priority,
	}
	if order.Performance.ActualTime != nil {
		meta.DeliveryTimeMinutes = *order.Performance.ActualTime
	}

	return CreditRequest{
		AgentID:     order.AgentID,
		Type:        domain.TransactionDeliveryPayment,
		Amount:      fee.TotalPayment,
		OrderID:     order.ID,
		Metadata:    meta,
		Description: fmt.Sprintf("Delivery payment for order %s", order.MarketplaceOrderID),
		PrincipalID: principalID,
	}
}

// PenaltyRequest contains the parameters for a penalty debit.
type PenaltyRequest struct {
	AgentID     string
	Amount      float64
	Reason      string
	OrderID     string
	PrincipalID string
}

// ApplyPenalty debits the wallet by a positive amount. The balance never goes below zero.
func (s *LedgerService) ApplyPenalty(ctx context.Context, req PenaltyRequest) (*domain.LedgerTransaction, error) {
	if req.AgentID == "" {
		return nil, ErrInvalidAgentID
	}
	amount := money.Round(req.Amount)
	if amount <= 0 {
		return nil, ErrInvalidAmount
	}

	wallet, err := s.ledgerRepo.GetWallet(ctx, req.AgentID)
	if err != nil {
		return nil, fmt.Errorf("get wallet: %w", err)
	}
	if money.LessThan(wallet.CurrentBalance, amount) {
		return nil, ErrInsufficientFunds
	}

	now := s.now()
	tx := &domain.LedgerTransaction{
		ID:          uuid.NewString(),
		AgentID:     req.AgentID,
		Type:        domain.TransactionPenalty,
		Amount:      -amount,
		Currency:    wallet.Currency,
		Status:      domain.TransactionCompleted,
		OrderID:     req.OrderID,
		Metadata:    domain.PenaltyMetadata{Reason: req.Reason},
		Description: req.Reason,
		CreatedAt:   now,
		CompletedAt: &now,
	}

	actors := domain.ActorRefs{AgentID: req.AgentID, OrderID: req.OrderID, TransactionID: tx.ID, PrincipalID: req.PrincipalID}
	if _, err := s.ledgerRepo.Debit(ctx, tx); err != nil {
		switch {
		case errors.Is(err, repository.ErrInsufficientBalance):
			err = ErrInsufficientFunds
		case errors.Is(err, repository.ErrDuplicateTransaction):
			err = ErrDuplicateSettlement
		}
		s.audit.record(ctx, domain.AuditCategoryLedger, domain.AuditLevelError, actors, "penalty rejected",
			map[string]any{"amount": amount, "error": err.Error()})
		return nil, fmt.Errorf("apply penalty: %w", err)
	}

	monitoring.LedgerTransactionsTotal.WithLabelValues(string(domain.TransactionPenalty), string(domain.TransactionCompleted)).Inc()
	s.logger.Info("penalty applied",
		zap.String("agent_id", req.AgentID),
		zap.String("transaction_id", tx.ID),
		zap.Float64("amount", amount),
	)
	s.audit.record(ctx, domain.AuditCategoryLedger, domain.AuditLevelWarning, actors, "penalty applied",
		map[string]any{"amount": amount, "reason": req.Reason})
	notify(ctx, s.notifier, s.logger, Notification{
		AgentID: req.AgentID,
		Kind:    NotificationPenaltyApplied,
		Title:   "Penalty Applied",
		Body:    req.Reason,
		Data:    map[string]any{"transaction_id": tx.ID, "amount": amount},
	})
	return tx, nil
}

// WithdrawalRequest contains the parameters of a withdrawal.
type WithdrawalRequest struct {
	AgentID     string
	Amount      float64
	Method      string
	Destination string
	PrincipalID string
}

// WithdrawalResult is the terminal state of a withdrawal.
type WithdrawalResult struct {
	TransactionID string
	Status        domain.TransactionStatus
	FailureReason string
}

// RequestWithdrawal reserves the amount, calls the payout processor and then
// either settles the withdrawal or compensates it. A declined payout is
// reported through the result status, not as an error.
func (s *LedgerService) RequestWithdrawal(ctx context.Context, req WithdrawalRequest) (*WithdrawalResult, error) {
	if req.AgentID == "" {
		return nil, ErrInvalidAgentID
	}
	amount := money.Round(req.Amount)
	if amount <= 0 {
		return nil, ErrInvalidAmount
	}
	if req.Method == "" {
		return nil, ErrInvalidWithdrawalMethod
	}
	if req.Destination == "" {
		return nil, ErrInvalidDestination
	}

	cfg, err := s.rates.Current(ctx)
	if err != nil {
		return nil, err
	}
	wallet, err := s.ledgerRepo.GetWallet(ctx, req.AgentID)
	if err != nil {
		return nil, fmt.Errorf("get wallet: %w", err)
	}

	switch {
	case !wallet.IsActive:
		return nil, ErrWalletInactive
	case money.LessThan(wallet.CurrentBalance, amount):
		return nil, ErrInsufficientFunds
	case money.LessThan(amount, cfg.Withdrawals.MinimumAmount), money.LessThan(cfg.Withdrawals.MaximumAmount, amount):
		return nil, ErrAmountOutOfRange
	}

	meta := domain.WithdrawalMetadata{Method: req.Method, Destination: req.Destination}
	tx := &domain.LedgerTransaction{
		ID:          uuid.NewString(),
		AgentID:     req.AgentID,
		Type:        domain.TransactionWithdrawal,
		Amount:      -amount,
		Currency:    wallet.Currency,
		Status:      domain.TransactionPending,
		Metadata:    meta,
		Description: fmt.Sprintf("Withdrawal via %s", req.Method),
		CreatedAt:   s.now(),
	}
	actors := domain.ActorRefs{AgentID: req.AgentID, TransactionID: tx.ID, PrincipalID: req.PrincipalID}

	if _, err := s.ledgerRepo.ReserveWithdrawal(ctx, tx); err != nil {
		// Another request moved the balance between validation and reservation.
		switch {
		case errors.Is(err, repository.ErrInsufficientBalance):
			return nil, ErrInsufficientFunds
		case errors.Is(err, repository.ErrWalletInactive):
			return nil, ErrWalletInactive
		}
		return nil, fmt.Errorf("reserve withdrawal: %w", err)
	}
	monitoring.LedgerTransactionsTotal.WithLabelValues(string(domain.TransactionWithdrawal), string(domain.TransactionPending)).Inc()
	s.logger.Info("withdrawal reserved",
		zap.String("agent_id", req.AgentID),
		zap.String("transaction_id", tx.ID),
		zap.Float64("amount", amount),
	)

	result := s.callPayout(ctx, PayoutRequest{
		TransactionID: tx.ID,
		Amount:        amount,
		Currency:      wallet.Currency,
		Method:        req.Method,
		Destination:   req.Destination,
	})

	// Finalization runs even if the caller has gone away.
	finalCtx := context.WithoutCancel(ctx)
	if result.Success {
		meta.PayoutReference = result.Reference
		return s.completeWithdrawal(finalCtx, tx, meta, actors, amount)
	}
	meta.FailureReason = result.FailureReason
	return s.compensateWithdrawal(finalCtx, tx, meta, actors, amount)
}

// callPayout invokes the processor within the payout timeout. Errors and
// timeouts become declined results.
func (s *LedgerService) callPayout(ctx context.Context, req PayoutRequest) PayoutResult {
	payoutCtx, cancel := context.WithTimeout(ctx, s.payoutTimeout)
	defer cancel()

	start := time.Now()
	result, err := s.payout.Payout(payoutCtx, req)
	if err != nil {
		result = PayoutResult{FailureReason: err.Error()}
	}
	if !result.Success && result.FailureReason == "" {
		result.FailureReason = ErrPayoutFailed.Error()
	}

	outcome := monitoring.OutcomeSuccess
	if !result.Success {
		outcome = monitoring.OutcomeFailure
	}
	monitoring.PayoutDuration.WithLabelValues(outcome).Observe(time.Since(start).Seconds())
	return result
}

func (s *LedgerService) completeWithdrawal(ctx context.Context, tx *domain.LedgerTransaction, meta domain.WithdrawalMetadata, actors domain.ActorRefs, amount float64) (*WithdrawalResult, error) {
	if _, err := s.ledgerRepo.CompleteWithdrawal(ctx, tx.ID, meta); err != nil {
		if errors.Is(err, repository.ErrStaleState) {
			err = ErrTransactionFinalized
		}
		s.audit.record(ctx, domain.AuditCategoryWithdrawal, domain.AuditLevelError, actors,
			"withdrawal paid out but completion failed",
			map[string]any{"amount": amount, "payout_reference": meta.PayoutReference, "error": err.Error()})
		return nil, fmt.Errorf("complete withdrawal %s: %w", tx.ID, err)
	}

	monitoring.LedgerTransactionsTotal.WithLabelValues(string(domain.TransactionWithdrawal), string(domain.TransactionCompleted)).Inc()
	s.logger.Info("withdrawal completed",
		zap.String("agent_id", tx.AgentID),
		zap.String("transaction_id", tx.ID),
		zap.Float64("amount", amount),
	)
	s.audit.record(ctx, domain.AuditCategoryWithdrawal, domain.AuditLevelInfo, actors, "withdrawal completed",
		map[string]any{"amount": amount, "method": meta.Method, "payout_reference": meta.PayoutReference})
	notify(ctx, s.notifier, s.logger, Notification{
		AgentID: tx.AgentID,
		Kind:    NotificationWithdrawalCompleted,
		Title:   "Withdrawal Completed",
		Body:    fmt.Sprintf("%.2f %s sent via %s", amount, tx.Currency, meta.Method),
		Data:    map[string]any{"transaction_id": tx.ID, "amount": amount},
	})
	return &WithdrawalResult{TransactionID: tx.ID, Status: domain.TransactionCompleted}, nil
}

func (s *LedgerService) compensateWithdrawal(ctx context.Context, tx *domain.LedgerTransaction, meta domain.WithdrawalMetadata, actors domain.ActorRefs, amount float64) (*WithdrawalResult, error) {
	if _, err := s.ledgerRepo.FailWithdrawal(ctx, tx.ID, meta); err != nil {
		if errors.Is(err, repository.ErrStaleState) {
			err = ErrTransactionFinalized
		}
		s.audit.record(ctx, domain.AuditCategoryWithdrawal, domain.AuditLevelError, actors,
			"withdrawal compensation failed",
			map[string]any{"amount": amount, "failure_reason": meta.FailureReason, "error": err.Error()})
		return nil, fmt.Errorf("compensate withdrawal %s: %w", tx.ID, err)
	}

	monitoring.LedgerTransactionsTotal.WithLabelValues(string(domain.TransactionWithdrawal), string(domain.TransactionFailed)).Inc()
	s.logger.Warn("withdrawal failed, balance restored",
		zap.String("agent_id", tx.AgentID),
		zap.String("transaction_id", tx.ID),
		zap.Float64("amount", amount),
		zap.String("failure_reason", meta.FailureReason),
	)
	s.audit.record(ctx, domain.AuditCategoryWithdrawal, domain.AuditLevelError, actors, "payout failed, withdrawal compensated",
		map[string]any{"amount": amount, "method": meta.Method, "failure_reason": meta.FailureReason})
	notify(ctx, s.notifier, s.logger, Notification{
		AgentID: tx.AgentID,
		Kind:    NotificationWithdrawalFailed,
		Title:   "Withdrawal Failed",
		Body:    fmt.Sprintf("%.2f %s returned to your balance", amount, tx.Currency),
		Data:    map[string]any{"transaction_id": tx.ID, "amount": amount, "reason": meta.FailureReason},
	})
	return &WithdrawalResult{TransactionID: tx.ID, Status: domain.TransactionFailed, FailureReason: meta.FailureReason}, nil
}

// GetWallet returns the wallet of an agent.
func (s *LedgerService) GetWallet(ctx context.Context, agentID string) (*domain.WalletAccount, error) {
	if agentID == "" {
		return nil, ErrInvalidAgentID
	}
	return s.ledgerRepo.GetWallet(ctx, agentID)
}

// TransactionPage is one page of an agent's transactions.
type TransactionPage struct {
	Items []*domain.LedgerTransaction
	Total int
	Page  int
	Size  int
}

const (
	defaultPageSize = 20
	maxPageSize     = 100
)

// ListTransactions returns an agent's transactions, newest first.
func (s *LedgerService) ListTransactions(ctx context.Context, agentID string, filter repository.TransactionFilter, page repository.Page) (*TransactionPage, error) {
	if agentID == "" {
		return nil, ErrInvalidAgentID
	}
	if filter.Type != "" && !filter.Type.Valid() {
		return nil, ErrInvalidTransactionType
	}
	if page.Number < 1 {
		page.Number = 1
	}
	if page.Size <= 0 {
		page.Size = defaultPageSize
	}
	if page.Size > maxPageSize {
		page.Size = maxPageSize
	}

	items, total, err := s.ledgerRepo.ListTransactions(ctx, agentID, filter, page)
	if err != nil {
		return nil, fmt.Errorf("list transactions: %w", err)
	}
	return &TransactionPage{Items: items, Total: total, Page: page.Number, Size: page.Size}, nil
}
