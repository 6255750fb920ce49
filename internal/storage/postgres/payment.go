package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/xenking/oolio-checkout/internal/domain/payment"
)

const (
	createIntentSQL = `INSERT INTO payment_intents
		(id, order_id, gateway_id, amount, currency, status, metadata, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`

	getIntentByOrderSQL = `SELECT id, order_id, gateway_id, amount, currency, status, metadata, created_at, updated_at
		FROM payment_intents WHERE order_id = $1`

	getIntentByGatewaySQL = `SELECT id, order_id, gateway_id, amount, currency, status, metadata, created_at, updated_at
		FROM payment_intents WHERE gateway_id = $1`

	updateIntentStatusSQL = `UPDATE payment_intents
		SET status = $2, updated_at = now() WHERE id = $1`

	createRefundSQL = `INSERT INTO refunds
		(id, order_id, gateway_refund_id, amount, reason, full_refund, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`

	totalRefundedSQL = `SELECT COALESCE(SUM(amount), 0) FROM refunds WHERE order_id = $1`
)

var (
	_ payment.IntentRepository = (*PaymentRepository)(nil)
	_ payment.RefundRepository = (*RefundRepository)(nil)
)

// PaymentRepository implements payment.IntentRepository backed by
// PostgreSQL. Intents are keyed 1:1 by order via a unique constraint.
type PaymentRepository struct {
	pool *pgxpool.Pool
}

// NewPaymentRepository returns a PaymentRepository that uses the given pool.
func NewPaymentRepository(pool *pgxpool.Pool) *PaymentRepository {
	return &PaymentRepository{pool: pool}
}

// Create persists a new payment intent.
func (r *PaymentRepository) Create(ctx context.Context, in *payment.Intent) error {
	metadata, err := json.Marshal(in.Metadata)
	if err != nil {
		return fmt.Errorf("marshaling intent metadata: %w", err)
	}
	_, err = r.pool.Exec(ctx, createIntentSQL,
		in.ID, in.OrderID, in.GatewayID, in.Amount, in.Currency,
		in.Status, metadata, in.CreatedAt, in.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("creating intent %q: %w", in.ID, err)
	}
	return nil
}

// GetByOrderID returns the intent for an order.
func (r *PaymentRepository) GetByOrderID(ctx context.Context, orderID string) (*payment.Intent, error) {
	return r.getIntent(ctx, getIntentByOrderSQL, orderID)
}

// GetByGatewayID returns the intent carrying the given gateway identifier.
func (r *PaymentRepository) GetByGatewayID(ctx context.Context, gatewayID string) (*payment.Intent, error) {
	return r.getIntent(ctx, getIntentByGatewaySQL, gatewayID)
}

func (r *PaymentRepository) getIntent(ctx context.Context, query, arg string) (*payment.Intent, error) {
	var (
		in       payment.Intent
		metadata []byte
	)
	err := r.pool.QueryRow(ctx, query, arg).Scan(
		&in.ID, &in.OrderID, &in.GatewayID, &in.Amount, &in.Currency,
		&in.Status, &metadata, &in.CreatedAt, &in.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, payment.ErrIntentNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("getting intent by %q: %w", arg, err)
	}
	if err := json.Unmarshal(metadata, &in.Metadata); err != nil {
		return nil, fmt.Errorf("unmarshaling metadata of intent %q: %w", in.ID, err)
	}
	return &in, nil
}

// UpdateStatus persists a new intent status.
func (r *PaymentRepository) UpdateStatus(ctx context.Context, id string, status payment.IntentStatus) error {
	tag, err := r.pool.Exec(ctx, updateIntentStatusSQL, id, status)
	if err != nil {
		return fmt.Errorf("updating intent %q: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return payment.ErrIntentNotFound
	}
	return nil
}

// RefundRepository implements payment.RefundRepository backed by PostgreSQL.
type RefundRepository struct {
	pool *pgxpool.Pool
}

// NewRefundRepository returns a RefundRepository that uses the given pool.
func NewRefundRepository(pool *pgxpool.Pool) *RefundRepository {
	return &RefundRepository{pool: pool}
}

// Create persists a refund row. The running total is derived from the rows,
// never stored, so it cannot drift.
func (r *RefundRepository) Create(ctx context.Context, ref *payment.Refund) error {
	_, err := r.pool.Exec(ctx, createRefundSQL,
		ref.ID, ref.OrderID, ref.GatewayRefundID, ref.Amount,
		ref.Reason, ref.Full, ref.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("creating refund %q: %w", ref.ID, err)
	}
	return nil
}

// TotalRefunded sums all refunds recorded for an order.
func (r *RefundRepository) TotalRefunded(ctx context.Context, orderID string) (decimal.Decimal, error) {
	var total decimal.Decimal
	err := r.pool.QueryRow(ctx, totalRefundedSQL, orderID).Scan(&total)
	if err != nil {
		return decimal.Zero, fmt.Errorf("summing refunds of order %q: %w", orderID, err)
	}
	return total, nil
}
