package repository

import (
	"context"
	"time"

	"dispatch/internal/domain"
)

// TransactionFilter narrows a transaction listing. Zero fields match everything.
type TransactionFilter struct {
	Type   domain.TransactionType
	Status domain.TransactionStatus
	From   time.Time
	To     time.Time
}

// Page selects a window of a listing. Number is 1-based.
type Page struct {
	Number int
	Size   int
}

// Offset returns the number of rows to skip.
func (p Page) Offset() int {
	if p.Number < 1 {
		return 0
	}
	return (p.Number - 1) * p.Size
}

// LedgerRepository defines the persistence operations for wallets and their
// append-only transaction log. Every balance change is paired with exactly
// one transaction row in the same unit of work.
type LedgerRepository interface {
	// CreateWallet opens a wallet for an agent.
	CreateWallet(ctx context.Context, wallet *domain.WalletAccount) error

	// GetWallet retrieves the wallet of an agent.
	GetWallet(ctx context.Context, agentID string) (*domain.WalletAccount, error)

	// Credit appends a completed credit and increments the balance (and
	// TotalEarned for earning types). Returns ErrDuplicateTransaction when an
	// entry with the same idempotency key exists.
	Credit(ctx context.Context, tx *domain.LedgerTransaction) (*domain.WalletAccount, error)

	// Debit appends a completed debit (negative amount) and decrements the
	// balance. Returns ErrInsufficientBalance when the balance would go negative.
	Debit(ctx context.Context, tx *domain.LedgerTransaction) (*domain.WalletAccount, error)

	// ReserveWithdrawal moves -tx.Amount from CurrentBalance to PendingWithdrawal
	// and appends tx as pending. Returns ErrWalletInactive or ErrInsufficientBalance
	// without writing anything.
	ReserveWithdrawal(ctx context.Context, tx *domain.LedgerTransaction) (*domain.WalletAccount, error)

	// CompleteWithdrawal marks a pending withdrawal completed and moves its
	// amount from PendingWithdrawal to TotalWithdrawn. Returns ErrStaleState
	// when the transaction is no longer pending.
	CompleteWithdrawal(ctx context.Context, txID string, meta domain.WithdrawalMetadata) (*domain.WalletAccount, error)

	// FailWithdrawal marks a pending withdrawal failed and restores its amount
	// from PendingWithdrawal to CurrentBalance. Returns ErrStaleState when the
	// transaction is no longer pending.
	FailWithdrawal(ctx context.Context, txID string, meta domain.WithdrawalMetadata) (*domain.WalletAccount, error)

	// GetTransaction retrieves a transaction by ID.
	GetTransaction(ctx context.Context, id string) (*domain.LedgerTransaction, error)

	// ListTransactions returns an agent's transactions, newest first, and the total count.
	ListTransactions(ctx context.Context, agentID string, filter TransactionFilter, page Page) ([]*domain.LedgerTransaction, int, error)

	// CountCompleted counts an agent's completed transactions of type t created in [from, to).
	CountCompleted(ctx context.Context, agentID string, t domain.TransactionType, from, to time.Time) (int, error)
}
