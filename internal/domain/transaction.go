package domain

import "time"

// TransactionType classifies a ledger entry.
type TransactionType string

const (
	TransactionDeliveryPayment TransactionType = "delivery_payment"
	TransactionBonus           TransactionType = "bonus"
	TransactionWithdrawal      TransactionType = "withdrawal"
	TransactionRefund          TransactionType = "refund"
	TransactionPenalty         TransactionType = "penalty"
	TransactionAdjustment      TransactionType = "adjustment"
)

// Valid reports whether t is one of the known transaction types.
func (t TransactionType) Valid() bool {
	switch t {
	case TransactionDeliveryPayment, TransactionBonus, TransactionWithdrawal,
		TransactionRefund, TransactionPenalty, TransactionAdjustment:
		return true
	}
	return false
}

// IsCredit reports whether entries of this type add to the balance.
func (t TransactionType) IsCredit() bool {
	switch t {
	case TransactionDeliveryPayment, TransactionBonus, TransactionRefund, TransactionAdjustment:
		return true
	}
	return false
}

// CountsAsEarning reports whether a credit of this type increments TotalEarned.
func (t TransactionType) CountsAsEarning() bool {
	return t == TransactionDeliveryPayment || t == TransactionBonus
}

// TransactionStatus represents the state of a ledger entry.
type TransactionStatus string

const (
	TransactionPending   TransactionStatus = "pending"
	TransactionCompleted TransactionStatus = "completed"
	TransactionFailed    TransactionStatus = "failed"
	TransactionCancelled TransactionStatus = "cancelled"
)

// IsFinal reports whether the status can no longer change.
func (s TransactionStatus) IsFinal() bool {
	return s != TransactionPending
}

// LedgerTransaction is an append-only ledger entry. Amount is signed:
// positive credits, negative debits.
type LedgerTransaction struct {
	ID          string
	AgentID     string
	Type        TransactionType
	Amount      float64
	Currency    string
	Status      TransactionStatus
	OrderID     string // empty when the entry has no order reference
	Metadata    TransactionMetadata
	Description string
	CreatedAt   time.Time
	CompletedAt *time.Time
}

// IdempotencyKey returns the key that deduplicates order-bound entries.
// Entries without an order reference have no key.
func (t *LedgerTransaction) IdempotencyKey() string {
	if t.OrderID == "" {
		return ""
	}
	return t.OrderID + ":" + string(t.Type)
}
