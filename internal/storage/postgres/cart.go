package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/xenking/oolio-checkout/internal/domain/cart"
)

const (
	getCartItemsSQL = `SELECT product_id, quantity, price_snapshot, added_at
		FROM cart_items WHERE user_id = $1 ORDER BY added_at`

	upsertCartItemSQL = `INSERT INTO cart_items (user_id, product_id, quantity, price_snapshot, added_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (user_id, product_id)
		DO UPDATE SET quantity = EXCLUDED.quantity, price_snapshot = EXCLUDED.price_snapshot`

	removeCartItemSQL = `DELETE FROM cart_items WHERE user_id = $1 AND product_id = $2`

	clearCartSQL = `DELETE FROM cart_items WHERE user_id = $1`
)

var _ cart.Repository = (*CartRepository)(nil)

// CartRepository implements cart.Repository backed by PostgreSQL. A cart is
// just the set of its items; an absent cart reads as an empty one.
type CartRepository struct {
	pool *pgxpool.Pool
}

// NewCartRepository returns a CartRepository that uses the given pool.
func NewCartRepository(pool *pgxpool.Pool) *CartRepository {
	return &CartRepository{pool: pool}
}

// Get returns the user's cart, empty when no items exist.
func (r *CartRepository) Get(ctx context.Context, userID string) (*cart.Cart, error) {
	rows, err := r.pool.Query(ctx, getCartItemsSQL, userID)
	if err != nil {
		return nil, fmt.Errorf("getting cart of %q: %w", userID, err)
	}

	items, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (cart.Item, error) {
		var it cart.Item
		err := row.Scan(&it.ProductID, &it.Quantity, &it.PriceSnapshot, &it.AddedAt)
		return it, err
	})
	if err != nil {
		return nil, fmt.Errorf("scanning cart of %q: %w", userID, err)
	}

	return &cart.Cart{UserID: userID, Items: items}, nil
}

// UpsertItem inserts or replaces the line for the item's product.
func (r *CartRepository) UpsertItem(ctx context.Context, userID string, item cart.Item) error {
	_, err := r.pool.Exec(ctx, upsertCartItemSQL,
		userID, item.ProductID, item.Quantity, item.PriceSnapshot, item.AddedAt,
	)
	if err != nil {
		return fmt.Errorf("upserting cart item for %q: %w", userID, err)
	}
	return nil
}

// RemoveItem deletes the line for productID.
func (r *CartRepository) RemoveItem(ctx context.Context, userID string, productID int64) error {
	_, err := r.pool.Exec(ctx, removeCartItemSQL, userID, productID)
	if err != nil {
		return fmt.Errorf("removing cart item for %q: %w", userID, err)
	}
	return nil
}

// Clear deletes every line of the user's cart.
func (r *CartRepository) Clear(ctx context.Context, userID string) error {
	_, err := r.pool.Exec(ctx, clearCartSQL, userID)
	if err != nil {
		return fmt.Errorf("clearing cart of %q: %w", userID, err)
	}
	return nil
}
