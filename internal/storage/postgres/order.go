package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/xenking/oolio-checkout/internal/domain/order"
)

const (
	createOrderSQL = `INSERT INTO orders
		(id, order_number, user_id, shipping_address, billing_address,
		 payment_method, notes, total, status, payment_status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`

	createOrderItemSQL = `INSERT INTO order_items (order_id, product_id, name, quantity, unit_price)
		VALUES ($1, $2, $3, $4, $5)`

	getOrderSQL = `SELECT id, order_number, user_id, shipping_address, billing_address,
		payment_method, notes, total, status, payment_status, cancel_reason, created_at, updated_at
		FROM orders WHERE id = $1`

	getOrderItemsSQL = `SELECT product_id, name, quantity, unit_price
		FROM order_items WHERE order_id = $1 ORDER BY product_id`

	// Conditional writes: the transition only lands when the row still holds
	// the status the caller observed, so concurrent transitions cannot cross.
	updateStatusSQL = `UPDATE orders
		SET status = $3, cancel_reason = $4, updated_at = now()
		WHERE id = $1 AND status = $2`

	updatePaymentStatusSQL = `UPDATE orders
		SET payment_status = $3, updated_at = now()
		WHERE id = $1 AND payment_status = $2`
)

var _ order.Repository = (*OrderRepository)(nil)

// OrderRepository implements order.Repository backed by PostgreSQL.
type OrderRepository struct {
	pool *pgxpool.Pool
}

// NewOrderRepository returns an OrderRepository that uses the given pool.
func NewOrderRepository(pool *pgxpool.Pool) *OrderRepository {
	return &OrderRepository{pool: pool}
}

// Create persists the order and its items in one transaction, so a partial
// order can never be observed.
func (r *OrderRepository) Create(ctx context.Context, o *order.Order) error {
	shipping, err := json.Marshal(o.ShippingAddress)
	if err != nil {
		return fmt.Errorf("marshaling shipping address: %w", err)
	}
	billing, err := json.Marshal(o.BillingAddress)
	if err != nil {
		return fmt.Errorf("marshaling billing address: %w", err)
	}

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("beginning order tx: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	_, err = tx.Exec(ctx, createOrderSQL,
		o.ID, o.Number, o.UserID, shipping, billing,
		o.PaymentMethod, o.Notes, o.Total, o.Status, o.PaymentStatus,
		o.CreatedAt, o.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("creating order %q: %w", o.ID, err)
	}

	for _, item := range o.Items {
		_, err = tx.Exec(ctx, createOrderItemSQL,
			o.ID, item.ProductID, item.Name, item.Quantity, item.UnitPrice,
		)
		if err != nil {
			return fmt.Errorf("creating order item %d for %q: %w", item.ProductID, o.ID, err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("committing order %q: %w", o.ID, err)
	}
	return nil
}

// GetByID returns an order with its items.
func (r *OrderRepository) GetByID(ctx context.Context, id string) (*order.Order, error) {
	var (
		o        order.Order
		shipping []byte
		billing  []byte
	)
	err := r.pool.QueryRow(ctx, getOrderSQL, id).Scan(
		&o.ID, &o.Number, &o.UserID, &shipping, &billing,
		&o.PaymentMethod, &o.Notes, &o.Total, &o.Status, &o.PaymentStatus,
		&o.CancelReason, &o.CreatedAt, &o.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, order.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("getting order %q: %w", id, err)
	}

	if err := json.Unmarshal(shipping, &o.ShippingAddress); err != nil {
		return nil, fmt.Errorf("unmarshaling shipping address of %q: %w", id, err)
	}
	if err := json.Unmarshal(billing, &o.BillingAddress); err != nil {
		return nil, fmt.Errorf("unmarshaling billing address of %q: %w", id, err)
	}

	rows, err := r.pool.Query(ctx, getOrderItemsSQL, id)
	if err != nil {
		return nil, fmt.Errorf("getting items of order %q: %w", id, err)
	}
	o.Items, err = pgx.CollectRows(rows, func(row pgx.CollectableRow) (order.Item, error) {
		var it order.Item
		err := row.Scan(&it.ProductID, &it.Name, &it.Quantity, &it.UnitPrice)
		return it, err
	})
	if err != nil {
		return nil, fmt.Errorf("scanning items of order %q: %w", id, err)
	}

	return &o, nil
}

// UpdateStatus persists a fulfilment transition with a conditional write.
func (r *OrderRepository) UpdateStatus(ctx context.Context, id string, from, to order.Status, reason string) error {
	tag, err := r.pool.Exec(ctx, updateStatusSQL, id, from, to, reason)
	if err != nil {
		return fmt.Errorf("updating status of order %q: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return order.ErrNotFound
	}
	return nil
}

// UpdatePaymentStatus persists a payment transition with a conditional write.
func (r *OrderRepository) UpdatePaymentStatus(ctx context.Context, id string, from, to order.PaymentStatus) error {
	tag, err := r.pool.Exec(ctx, updatePaymentStatusSQL, id, from, to)
	if err != nil {
		return fmt.Errorf("updating payment status of order %q: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return order.ErrNotFound
	}
	return nil
}
