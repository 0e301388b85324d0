package postgres

import (
	"context"
	"database/sql"
	"encoding/json"

	"github.com/pkg/errors"

	"dispatch/internal/domain"
	"dispatch/internal/repository"
)

const activeOrderIndex = "uq_delivery_orders_active_agent"

// OrderRepository is a PostgreSQL implementation of repository.OrderRepository.
type OrderRepository struct {
	db *sql.DB
}

// NewOrderRepository creates a new PostgreSQL order repository.
func NewOrderRepository(db *sql.DB) *OrderRepository {
	return &OrderRepository{db: db}
}

var _ repository.OrderRepository = (*OrderRepository)(nil)

const orderColumns = `id, marketplace_order_id, agent_id, pickup, dropoff, items, order_value,
	payment_info, status, tracking, performance, metadata, created_at, updated_at`

// orderDoc holds the JSONB encodings of an order.
type orderDoc struct {
	pickup, dropoff, items, payment, tracking, performance, metadata []byte
}

func encodeOrder(o *domain.DeliveryOrder) (orderDoc, error) {
	var d orderDoc
	var err error
	enc := func(v any) []byte {
		if err != nil {
			return nil
		}
		var b []byte
		b, err = json.Marshal(v)
		return b
	}
	items := o.Items
	if items == nil {
		items = []domain.OrderItem{}
	}
	d.pickup = enc(o.Pickup)
	d.dropoff = enc(o.Dropoff)
	d.items = enc(items)
	d.payment = enc(o.PaymentInfo)
	d.tracking = enc(o.Tracking)
	d.performance = enc(o.Performance)
	d.metadata = enc(o.Metadata)
	return d, errors.Wrap(err, "encode order")
}

// CreateAssigned flips the agent to busy and inserts the order in one transaction.
func (r *OrderRepository) CreateAssigned(ctx context.Context, order *domain.DeliveryOrder) error {
	doc, err := encodeOrder(order)
	if err != nil {
		return err
	}

	return withTx(ctx, r.db, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx,
			`UPDATE agents SET status = $2, updated_at = $3 WHERE id = $1 AND status = $4 AND is_active`,
			order.AgentID, domain.AgentStatusBusy, order.CreatedAt, domain.AgentStatusAvailable)
		if err != nil {
			return errors.Wrap(err, "reserve agent")
		}
		n, err := rowsAffected(res)
		if err != nil {
			return err
		}
		if n == 0 {
			return repository.ErrAgentUnavailable
		}

		_, err = tx.ExecContext(ctx, `INSERT INTO delivery_orders (`+orderColumns+`)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)`,
			order.ID, order.MarketplaceOrderID, order.AgentID, string(doc.pickup), string(doc.dropoff), string(doc.items),
			order.OrderValue, string(doc.payment), order.Status, string(doc.tracking), string(doc.performance), string(doc.metadata),
			order.CreatedAt, order.UpdatedAt,
		)
		if isUniqueViolation(err, activeOrderIndex) {
			return repository.ErrAgentUnavailable
		}
		return errors.Wrap(err, "insert order")
	})
}

// GetByID retrieves an order by ID.
func (r *OrderRepository) GetByID(ctx context.Context, id string) (*domain.DeliveryOrder, error) {
	order, err := getOrder(ctx, r.db, `SELECT `+orderColumns+` FROM delivery_orders WHERE id = $1`, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, errors.Wrap(err, "get order")
	}
	return order, nil
}

// GetActiveByAgentID returns the non-terminal order of an agent, or nil.
func (r *OrderRepository) GetActiveByAgentID(ctx context.Context, agentID string) (*domain.DeliveryOrder, error) {
	query := `SELECT ` + orderColumns + ` FROM delivery_orders
		WHERE agent_id = $1 AND status IN ('assigned', 'picked_up', 'in_transit')`
	order, err := getOrder(ctx, r.db, query, agentID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, errors.Wrap(err, "get active order")
	}
	return order, nil
}

// ApplyTransition stores the order if its persisted status is still from.
func (r *OrderRepository) ApplyTransition(ctx context.Context, order *domain.DeliveryOrder, from domain.OrderStatus) error {
	doc, err := encodeOrder(order)
	if err != nil {
		return err
	}

	return withTx(ctx, r.db, func(tx *sql.Tx) error {
		if err := updateOrderStatus(ctx, tx, order, doc, from); err != nil {
			return err
		}
		if !order.Status.IsTerminal() {
			return nil
		}
		_, err = tx.ExecContext(ctx,
			`UPDATE agents SET status = $2, updated_at = $3 WHERE id = $1 AND status = $4`,
			order.AgentID, domain.AgentStatusAvailable, order.UpdatedAt, domain.AgentStatusBusy)
		return errors.Wrap(err, "release agent")
	})
}

// CompleteDelivery stores the delivered order, credits payment, applies
// aggregate and frees the agent in one transaction.
func (r *OrderRepository) CompleteDelivery(ctx context.Context, order *domain.DeliveryOrder, from domain.OrderStatus, payment *domain.LedgerTransaction,
	aggregate func(domain.AgentPerformance) domain.AgentPerformance) (*domain.WalletAccount, error) {
	doc, err := encodeOrder(order)
	if err != nil {
		return nil, err
	}

	var wallet *domain.WalletAccount
	err = withTx(ctx, r.db, func(tx *sql.Tx) error {
		if err := updateOrderStatus(ctx, tx, order, doc, from); err != nil {
			return err
		}
		w, err := creditWallet(ctx, tx, payment)
		if err != nil {
			return err
		}
		if _, err := updatePerformance(ctx, tx, order.AgentID, aggregate, domain.AgentStatusAvailable); err != nil {
			return err
		}
		wallet = w
		return nil
	})
	if err != nil {
		return nil, err
	}
	return wallet, nil
}

// updateOrderStatus writes the mutable order columns guarded by from and the agent.
func updateOrderStatus(ctx context.Context, tx *sql.Tx, order *domain.DeliveryOrder, doc orderDoc, from domain.OrderStatus) error {
	res, err := tx.ExecContext(ctx, `UPDATE delivery_orders
		SET status = $3, payment_info = $4, tracking = $5, performance = $6, updated_at = $7
		WHERE id = $1 AND agent_id = $2 AND status = $8`,
		order.ID, order.AgentID, order.Status, string(doc.payment), string(doc.tracking), string(doc.performance),
		order.UpdatedAt, from,
	)
	if err != nil {
		return errors.Wrap(err, "update order status")
	}
	n, err := rowsAffected(res)
	if err != nil {
		return err
	}
	if n > 0 {
		return nil
	}

	var exists bool
	if err := tx.QueryRowContext(ctx, `SELECT EXISTS (SELECT 1 FROM delivery_orders WHERE id = $1)`, order.ID).Scan(&exists); err != nil {
		return errors.Wrap(err, "check order")
	}
	if !exists {
		return repository.ErrNotFound
	}
	return repository.ErrStaleState
}

// UpdatePaymentInfo stores the payment breakdown of an order.
func (r *OrderRepository) UpdatePaymentInfo(ctx context.Context, id string, info domain.PaymentInfo) error {
	encoded, err := json.Marshal(info)
	if err != nil {
		return errors.Wrap(err, "encode payment info")
	}
	res, err := r.db.ExecContext(ctx, `UPDATE delivery_orders SET payment_info = $2, updated_at = now() WHERE id = $1`, id, string(encoded))
	if err != nil {
		return errors.Wrap(err, "update payment info")
	}
	return requireOne(res)
}

func getOrder(ctx context.Context, q Querier, query string, args ...any) (*domain.DeliveryOrder, error) {
	var (
		o   domain.DeliveryOrder
		doc orderDoc
	)
	err := q.QueryRowContext(ctx, query, args...).Scan(
		&o.ID, &o.MarketplaceOrderID, &o.AgentID, &doc.pickup, &doc.dropoff, &doc.items, &o.OrderValue,
		&doc.payment, &o.Status, &doc.tracking, &doc.performance, &doc.metadata, &o.CreatedAt, &o.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	decode := []struct {
		raw []byte
		dst any
	}{
		{doc.pickup, &o.Pickup},
		{doc.dropoff, &o.Dropoff},
		{doc.items, &o.Items},
		{doc.payment, &o.PaymentInfo},
		{doc.tracking, &o.Tracking},
		{doc.performance, &o.Performance},
		{doc.metadata, &o.Metadata},
	}
	for _, d := range decode {
		if err := json.Unmarshal(d.raw, d.dst); err != nil {
			return nil, errors.Wrap(err, "decode order")
		}
	}
	return &o, nil
}
