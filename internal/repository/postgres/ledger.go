package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/pkg/errors"

	"dispatch/internal/domain"
	"dispatch/internal/repository"
)

const idempotencyConstraint = "uq_ledger_transactions_idempotency"

// LedgerRepository is a PostgreSQL implementation of repository.LedgerRepository.
type LedgerRepository struct {
	db *sql.DB
}

// NewLedgerRepository creates a new PostgreSQL ledger repository.
func NewLedgerRepository(db *sql.DB) *LedgerRepository {
	return &LedgerRepository{db: db}
}

var _ repository.LedgerRepository = (*LedgerRepository)(nil)

const walletColumns = `agent_id, currency, current_balance, total_earned, total_withdrawn,
	pending_withdrawal, is_active, created_at, updated_at`

const transactionColumns = `id, agent_id, type, amount, currency, status, order_id, metadata,
	description, created_at, completed_at`

// CreateWallet opens a wallet for an agent.
func (r *LedgerRepository) CreateWallet(ctx context.Context, w *domain.WalletAccount) error {
	return insertWallet(ctx, r.db, w)
}

func insertWallet(ctx context.Context, q Querier, w *domain.WalletAccount) error {
	_, err := q.ExecContext(ctx, `INSERT INTO wallets (`+walletColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		w.AgentID, w.Currency, w.CurrentBalance, w.TotalEarned, w.TotalWithdrawn,
		w.PendingWithdrawal, w.IsActive, w.CreatedAt, w.UpdatedAt,
	)
	return errors.Wrap(err, "insert wallet")
}

// GetWallet retrieves the wallet of an agent.
func (r *LedgerRepository) GetWallet(ctx context.Context, agentID string) (*domain.WalletAccount, error) {
	w, err := scanWallet(r.db.QueryRowContext(ctx, `SELECT `+walletColumns+` FROM wallets WHERE agent_id = $1`, agentID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, errors.Wrap(err, "get wallet")
	}
	return w, nil
}

// Credit appends a completed credit and increments the balance.
func (r *LedgerRepository) Credit(ctx context.Context, t *domain.LedgerTransaction) (*domain.WalletAccount, error) {
	var wallet *domain.WalletAccount
	err := withTx(ctx, r.db, func(tx *sql.Tx) error {
		w, err := creditWallet(ctx, tx, t)
		wallet = w
		return err
	})
	return wallet, err
}

// creditWallet increments the balance and appends t inside tx.
func creditWallet(ctx context.Context, tx *sql.Tx, t *domain.LedgerTransaction) (*domain.WalletAccount, error) {
	earned := 0.0
	if t.Type.CountsAsEarning() {
		earned = t.Amount
	}
	w, err := scanWallet(tx.QueryRowContext(ctx, `UPDATE wallets
		SET current_balance = current_balance + $2, total_earned = total_earned + $3, updated_at = $4
		WHERE agent_id = $1
		RETURNING `+walletColumns,
		t.AgentID, t.Amount, earned, t.CreatedAt))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, errors.Wrap(err, "credit wallet")
	}
	if err := insertTransaction(ctx, tx, t); err != nil {
		return nil, err
	}
	return w, nil
}

// Debit appends a completed debit and decrements the balance if it stays non-negative.
func (r *LedgerRepository) Debit(ctx context.Context, t *domain.LedgerTransaction) (*domain.WalletAccount, error) {
	var wallet *domain.WalletAccount
	err := withTx(ctx, r.db, func(tx *sql.Tx) error {
		w, err := scanWallet(tx.QueryRowContext(ctx, `UPDATE wallets
			SET current_balance = current_balance + $2, updated_at = $3
			WHERE agent_id = $1 AND current_balance + $2 >= 0
			RETURNING `+walletColumns,
			t.AgentID, t.Amount, t.CreatedAt))
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return walletMissOrShort(ctx, tx, t.AgentID)
			}
			return errors.Wrap(err, "debit wallet")
		}
		if err := insertTransaction(ctx, tx, t); err != nil {
			return err
		}
		wallet = w
		return nil
	})
	return wallet, err
}

// ReserveWithdrawal moves the amount to pending and appends the pending entry.
func (r *LedgerRepository) ReserveWithdrawal(ctx context.Context, t *domain.LedgerTransaction) (*domain.WalletAccount, error) {
	amount := -t.Amount

	var wallet *domain.WalletAccount
	err := withTx(ctx, r.db, func(tx *sql.Tx) error {
		w, err := scanWallet(tx.QueryRowContext(ctx, `UPDATE wallets
			SET current_balance = current_balance - $2, pending_withdrawal = pending_withdrawal + $2, updated_at = $3
			WHERE agent_id = $1 AND is_active AND current_balance >= $2
			RETURNING `+walletColumns,
			t.AgentID, amount, t.CreatedAt))
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return walletMissOrShort(ctx, tx, t.AgentID)
			}
			return errors.Wrap(err, "reserve withdrawal")
		}
		if err := insertTransaction(ctx, tx, t); err != nil {
			return err
		}
		wallet = w
		return nil
	})
	return wallet, err
}

// CompleteWithdrawal settles a pending withdrawal.
func (r *LedgerRepository) CompleteWithdrawal(ctx context.Context, txID string, meta domain.WithdrawalMetadata) (*domain.WalletAccount, error) {
	return r.finishWithdrawal(ctx, txID, domain.TransactionCompleted, meta,
		`UPDATE wallets SET pending_withdrawal = pending_withdrawal - $2, total_withdrawn = total_withdrawn + $2, updated_at = $3
		WHERE agent_id = $1 RETURNING `+walletColumns)
}

// FailWithdrawal marks a pending withdrawal failed and restores the balance.
func (r *LedgerRepository) FailWithdrawal(ctx context.Context, txID string, meta domain.WithdrawalMetadata) (*domain.WalletAccount, error) {
	return r.finishWithdrawal(ctx, txID, domain.TransactionFailed, meta,
		`UPDATE wallets SET pending_withdrawal = pending_withdrawal - $2, current_balance = current_balance + $2, updated_at = $3
		WHERE agent_id = $1 RETURNING `+walletColumns)
}

func (r *LedgerRepository) finishWithdrawal(ctx context.Context, txID string, status domain.TransactionStatus, meta domain.WithdrawalMetadata, walletUpdate string) (*domain.WalletAccount, error) {
	encoded, err := domain.MarshalMetadata(meta)
	if err != nil {
		return nil, errors.Wrap(err, "encode metadata")
	}

	var wallet *domain.WalletAccount
	err = withTx(ctx, r.db, func(tx *sql.Tx) error {
		now := time.Now()
		var (
			agentID string
			amount  float64
		)
		err := tx.QueryRowContext(ctx, `UPDATE ledger_transactions
			SET status = $2, metadata = $3, completed_at = $4
			WHERE id = $1 AND type = $5 AND status = $6
			RETURNING agent_id, amount`,
			txID, status, string(encoded), now, domain.TransactionWithdrawal, domain.TransactionPending,
		).Scan(&agentID, &amount)
		if err != nil {
			if !errors.Is(err, sql.ErrNoRows) {
				return errors.Wrap(err, "finish withdrawal")
			}
			var exists bool
			if err := tx.QueryRowContext(ctx, `SELECT EXISTS (SELECT 1 FROM ledger_transactions WHERE id = $1)`, txID).Scan(&exists); err != nil {
				return errors.Wrap(err, "check transaction")
			}
			if !exists {
				return repository.ErrNotFound
			}
			return repository.ErrStaleState
		}

		w, err := scanWallet(tx.QueryRowContext(ctx, walletUpdate, agentID, -amount, now))
		if err != nil {
			return errors.Wrap(err, "update wallet")
		}
		wallet = w
		return nil
	})
	return wallet, err
}

// GetTransaction retrieves a transaction by ID.
func (r *LedgerRepository) GetTransaction(ctx context.Context, id string) (*domain.LedgerTransaction, error) {
	t, err := scanTransaction(r.db.QueryRowContext(ctx, `SELECT `+transactionColumns+` FROM ledger_transactions WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, errors.Wrap(err, "get transaction")
	}
	return t, nil
}

// ListTransactions returns an agent's transactions, newest first, and the total count.
func (r *LedgerRepository) ListTransactions(ctx context.Context, agentID string, filter repository.TransactionFilter, page repository.Page) ([]*domain.LedgerTransaction, int, error) {
	where := []string{"agent_id = $1"}
	args := []any{agentID}
	add := func(cond string, v any) {
		args = append(args, v)
		where = append(where, fmt.Sprintf(cond, len(args)))
	}
	if filter.Type != "" {
		add("type = $%d", filter.Type)
	}
	if filter.Status != "" {
		add("status = $%d", filter.Status)
	}
	if !filter.From.IsZero() {
		add("created_at >= $%d", filter.From)
	}
	if !filter.To.IsZero() {
		add("created_at < $%d", filter.To)
	}
	clause := strings.Join(where, " AND ")

	var total int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM ledger_transactions WHERE `+clause, args...).Scan(&total); err != nil {
		return nil, 0, errors.Wrap(err, "count transactions")
	}

	query := `SELECT ` + transactionColumns + ` FROM ledger_transactions WHERE ` + clause + ` ORDER BY created_at DESC, id DESC`
	if page.Size > 0 {
		query += fmt.Sprintf(" LIMIT %d OFFSET %d", page.Size, page.Offset())
	}
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, 0, errors.Wrap(err, "list transactions")
	}
	defer rows.Close()

	var out []*domain.LedgerTransaction
	for rows.Next() {
		t, err := scanTransaction(rows)
		if err != nil {
			return nil, 0, errors.Wrap(err, "scan transaction")
		}
		out = append(out, t)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, errors.Wrap(err, "iterate transactions")
	}
	return out, total, nil
}

// CountCompleted counts an agent's completed transactions of type t created in [from, to).
func (r *LedgerRepository) CountCompleted(ctx context.Context, agentID string, t domain.TransactionType, from, to time.Time) (int, error) {
	var n int
	err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM ledger_transactions
		WHERE agent_id = $1 AND type = $2 AND status = $3 AND created_at >= $4 AND created_at < $5`,
		agentID, t, domain.TransactionCompleted, from, to,
	).Scan(&n)
	return n, errors.Wrap(err, "count completed")
}

func insertTransaction(ctx context.Context, q Querier, t *domain.LedgerTransaction) error {
	meta, err := domain.MarshalMetadata(t.Metadata)
	if err != nil {
		return errors.Wrap(err, "encode metadata")
	}
	_, err = q.ExecContext(ctx, `INSERT INTO ledger_transactions
		(id, agent_id, type, amount, currency, status, order_id, idempotency_key, metadata, description, created_at, completed_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`,
		t.ID, t.AgentID, t.Type, t.Amount, t.Currency, t.Status, nullString(t.OrderID),
		nullString(t.IdempotencyKey()), string(meta), t.Description, t.CreatedAt, t.CompletedAt,
	)
	if isUniqueViolation(err, idempotencyConstraint) {
		return repository.ErrDuplicateTransaction
	}
	return errors.Wrap(err, "insert transaction")
}

// walletMissOrShort explains why a guarded wallet update matched no row.
func walletMissOrShort(ctx context.Context, q Querier, agentID string) error {
	var active bool
	err := q.QueryRowContext(ctx, `SELECT is_active FROM wallets WHERE agent_id = $1`, agentID).Scan(&active)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return repository.ErrNotFound
		}
		return errors.Wrap(err, "check wallet")
	}
	if !active {
		return repository.ErrWalletInactive
	}
	return repository.ErrInsufficientBalance
}

func scanWallet(row rowScanner) (*domain.WalletAccount, error) {
	var w domain.WalletAccount
	err := row.Scan(&w.AgentID, &w.Currency, &w.CurrentBalance, &w.TotalEarned, &w.TotalWithdrawn,
		&w.PendingWithdrawal, &w.IsActive, &w.CreatedAt, &w.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &w, nil
}

func scanTransaction(row rowScanner) (*domain.LedgerTransaction, error) {
	var (
		t           domain.LedgerTransaction
		orderID     sql.NullString
		meta        []byte
		completedAt sql.NullTime
	)
	err := row.Scan(&t.ID, &t.AgentID, &t.Type, &t.Amount, &t.Currency, &t.Status, &orderID, &meta,
		&t.Description, &t.CreatedAt, &completedAt)
	if err != nil {
		return nil, err
	}
	t.OrderID = orderID.String
	if completedAt.Valid {
		c := completedAt.Time
		t.CompletedAt = &c
	}
	if t.Metadata, err = domain.UnmarshalMetadata(t.Type, meta); err != nil {
		return nil, errors.Wrap(err, "decode metadata")
	}
	return &t, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
