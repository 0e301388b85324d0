package memory

import (
	"context"
	"sort"
	"time"

	"dispatch/internal/domain"
	"dispatch/internal/money"
	"dispatch/internal/repository"
)

// LedgerRepository is an in-memory implementation of repository.LedgerRepository.
type LedgerRepository struct {
	s *Store
}

// CreateWallet opens a wallet for an agent.
func (r *LedgerRepository) CreateWallet(ctx context.Context, wallet *domain.WalletAccount) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	r.s.wallets[wallet.AgentID] = copyWallet(wallet)
	return nil
}

// GetWallet retrieves the wallet of an agent.
func (r *LedgerRepository) GetWallet(ctx context.Context, agentID string) (*domain.WalletAccount, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	w, ok := r.s.wallets[agentID]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return copyWallet(w), nil
}

// Credit appends a completed credit and increments the balance.
func (r *LedgerRepository) Credit(ctx context.Context, tx *domain.LedgerTransaction) (*domain.WalletAccount, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	w, err := r.s.creditLocked(tx)
	if err != nil {
		return nil, err
	}
	return copyWallet(w), nil
}

// Debit appends a completed debit and decrements the balance.
func (r *LedgerRepository) Debit(ctx context.Context, tx *domain.LedgerTransaction) (*domain.WalletAccount, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	w, ok := r.s.wallets[tx.AgentID]
	if !ok {
		return nil, repository.ErrNotFound
	}
	if key := tx.IdempotencyKey(); key != "" {
		if _, dup := r.s.txKeys[key]; dup {
			return nil, repository.ErrDuplicateTransaction
		}
	}
	next := money.Add(w.CurrentBalance, tx.Amount)
	if next < 0 {
		return nil, repository.ErrInsufficientBalance
	}

	w.CurrentBalance = next
	w.UpdatedAt = time.Now()
	r.s.appendTransactionLocked(tx)
	return copyWallet(w), nil
}

// ReserveWithdrawal moves the requested amount into PendingWithdrawal.
func (r *LedgerRepository) ReserveWithdrawal(ctx context.Context, tx *domain.LedgerTransaction) (*domain.WalletAccount, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	w, ok := r.s.wallets[tx.AgentID]
	if !ok {
		return nil, repository.ErrNotFound
	}
	if !w.IsActive {
		return nil, repository.ErrWalletInactive
	}
	amount := -tx.Amount
	if money.LessThan(w.CurrentBalance, amount) {
		return nil, repository.ErrInsufficientBalance
	}

	w.CurrentBalance = money.Sub(w.CurrentBalance, amount)
	w.PendingWithdrawal = money.Add(w.PendingWithdrawal, amount)
	w.UpdatedAt = time.Now()
	r.s.appendTransactionLocked(tx)
	return copyWallet(w), nil
}

// CompleteWithdrawal settles a pending withdrawal.
func (r *LedgerRepository) CompleteWithdrawal(ctx context.Context, txID string, meta domain.WithdrawalMetadata) (*domain.WalletAccount, error) {
	return r.finishWithdrawal(txID, domain.TransactionCompleted, meta)
}

// FailWithdrawal reverses a pending withdrawal.
func (r *LedgerRepository) FailWithdrawal(ctx context.Context, txID string, meta domain.WithdrawalMetadata) (*domain.WalletAccount, error) {
	return r.finishWithdrawal(txID, domain.TransactionFailed, meta)
}

func (r *LedgerRepository) finishWithdrawal(txID string, status domain.TransactionStatus, meta domain.WithdrawalMetadata) (*domain.WalletAccount, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	tx, ok := r.s.transactions[txID]
	if !ok {
		return nil, repository.ErrNotFound
	}
	if tx.Type != domain.TransactionWithdrawal || tx.Status != domain.TransactionPending {
		return nil, repository.ErrStaleState
	}
	w, ok := r.s.wallets[tx.AgentID]
	if !ok {
		return nil, repository.ErrNotFound
	}

	amount := -tx.Amount
	now := time.Now()
	w.PendingWithdrawal = money.Sub(w.PendingWithdrawal, amount)
	if status == domain.TransactionCompleted {
		w.TotalWithdrawn = money.Add(w.TotalWithdrawn, amount)
	} else {
		w.CurrentBalance = money.Add(w.CurrentBalance, amount)
	}
	w.UpdatedAt = now

	tx.Status = status
	tx.Metadata = meta
	tx.CompletedAt = &now
	return copyWallet(w), nil
}

// GetTransaction retrieves a transaction by ID.
func (r *LedgerRepository) GetTransaction(ctx context.Context, id string) (*domain.LedgerTransaction, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	tx, ok := r.s.transactions[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return copyTransaction(tx), nil
}

// ListTransactions returns an agent's transactions, newest first.
func (r *LedgerRepository) ListTransactions(ctx context.Context, agentID string, filter repository.TransactionFilter, page repository.Page) ([]*domain.LedgerTransaction, int, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	var matched []*domain.LedgerTransaction
	for i := len(r.s.txOrder) - 1; i >= 0; i-- {
		tx := r.s.transactions[r.s.txOrder[i]]
		if tx.AgentID != agentID || !matches(tx, filter) {
			continue
		}
		matched = append(matched, tx)
	}
	sort.SliceStable(matched, func(i, j int) bool {
		return matched[i].CreatedAt.After(matched[j].CreatedAt)
	})

	total := len(matched)
	start := page.Offset()
	if start > total {
		start = total
	}
	end := total
	if page.Size > 0 && start+page.Size < total {
		end = start + page.Size
	}

	out := make([]*domain.LedgerTransaction, 0, end-start)
	for _, tx := range matched[start:end] {
		out = append(out, copyTransaction(tx))
	}
	return out, total, nil
}

// CountCompleted counts completed transactions of type t created in [from, to).
func (r *LedgerRepository) CountCompleted(ctx context.Context, agentID string, t domain.TransactionType, from, to time.Time) (int, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	n := 0
	for _, tx := range r.s.transactions {
		if tx.AgentID != agentID || tx.Type != t || tx.Status != domain.TransactionCompleted {
			continue
		}
		if tx.CreatedAt.Before(from) || !tx.CreatedAt.Before(to) {
			continue
		}
		n++
	}
	return n, nil
}

// creditCheckLocked reports why tx could not be credited, or nil.
func (s *Store) creditCheckLocked(tx *domain.LedgerTransaction) error {
	if _, ok := s.wallets[tx.AgentID]; !ok {
		return repository.ErrNotFound
	}
	if key := tx.IdempotencyKey(); key != "" {
		if _, dup := s.txKeys[key]; dup {
			return repository.ErrDuplicateTransaction
		}
	}
	return nil
}

func (s *Store) creditLocked(tx *domain.LedgerTransaction) (*domain.WalletAccount, error) {
	if err := s.creditCheckLocked(tx); err != nil {
		return nil, err
	}
	w := s.wallets[tx.AgentID]
	w.CurrentBalance = money.Add(w.CurrentBalance, tx.Amount)
	if tx.Type.CountsAsEarning() {
		w.TotalEarned = money.Add(w.TotalEarned, tx.Amount)
	}
	w.UpdatedAt = time.Now()
	s.appendTransactionLocked(tx)
	return w, nil
}

func (s *Store) appendTransactionLocked(tx *domain.LedgerTransaction) {
	s.transactions[tx.ID] = copyTransaction(tx)
	s.txOrder = append(s.txOrder, tx.ID)
	if key := tx.IdempotencyKey(); key != "" {
		s.txKeys[key] = tx.ID
	}
}

func matches(tx *domain.LedgerTransaction, f repository.TransactionFilter) bool {
	if f.Type != "" && tx.Type != f.Type {
		return false
	}
	if f.Status != "" && tx.Status != f.Status {
		return false
	}
	if !f.From.IsZero() && tx.CreatedAt.Before(f.From) {
		return false
	}
	if !f.To.IsZero() && !tx.CreatedAt.Before(f.To) {
		return false
	}
	return true
}

var _ repository.LedgerRepository = (*LedgerRepository)(nil)
