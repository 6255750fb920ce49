package postgres

import (
	"context"
	"fmt"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/xenking/oolio-checkout/internal/domain/inventory"
)

const (
	// The WHERE clause makes the decrement conditional: concurrent
	// reservations against one product serialize on the row lock and the
	// stock counter can never go negative.
	reserveStockSQL = `UPDATE products
		SET stock = stock - $2, updated_at = now()
		WHERE id = $1 AND active AND stock >= $2
		RETURNING stock`

	releaseStockSQL = `UPDATE products
		SET stock = stock + $2, updated_at = now()
		WHERE id = $1`

	productStateSQL = `SELECT stock, active FROM products WHERE id = $1`
)

var _ inventory.Ledger = (*InventoryLedger)(nil)

// InventoryLedger implements inventory.Ledger with row-level conditional
// updates, so the database linearizes per-product reservation decisions.
type InventoryLedger struct {
	pool *pgxpool.Pool

	// onReserve, when set, observes the post-reservation stock level.
	// Used to emit low-stock events without a second query.
	onReserve func(productID int64, remaining int)
}

// NewInventoryLedger returns an InventoryLedger that uses the given pool.
func NewInventoryLedger(pool *pgxpool.Pool) *InventoryLedger {
	return &InventoryLedger{pool: pool}
}

// OnReserve registers an observer of successful reservations. Must be called
// before the ledger is shared between goroutines.
func (l *InventoryLedger) OnReserve(fn func(productID int64, remaining int)) {
	l.onReserve = fn
}

// Reserve atomically decrements stock by qty. When the conditional update
// matches no row, a second read distinguishes missing, inactive, and
// insufficient-stock outcomes.
func (l *InventoryLedger) Reserve(ctx context.Context, productID int64, qty int) error {
	var remaining int
	err := l.pool.QueryRow(ctx, reserveStockSQL, productID, qty).Scan(&remaining)
	if err == nil {
		if l.onReserve != nil {
			l.onReserve(productID, remaining)
		}
		return nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return fmt.Errorf("reserving %d of product %d: %w", qty, productID, err)
	}

	var (
		stock  int
		active bool
	)
	err = l.pool.QueryRow(ctx, productStateSQL, productID).Scan(&stock, &active)
	switch {
	case errors.Is(err, pgx.ErrNoRows):
		return inventory.ErrNotFound
	case err != nil:
		return fmt.Errorf("reading product %d state: %w", productID, err)
	case !active:
		return inventory.ErrInactive
	default:
		return inventory.ErrInsufficientStock
	}
}

// Release returns qty units of stock unconditionally. It intentionally
// ignores the active flag: compensation must succeed even for a product
// delisted mid-checkout.
func (l *InventoryLedger) Release(ctx context.Context, productID int64, qty int) error {
	tag, err := l.pool.Exec(ctx, releaseStockSQL, productID, qty)
	if err != nil {
		return fmt.Errorf("releasing %d of product %d: %w", qty, productID, err)
	}
	if tag.RowsAffected() == 0 {
		return inventory.ErrNotFound
	}
	return nil
}
