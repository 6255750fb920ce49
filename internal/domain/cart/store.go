package cart

import (
	"context"
	"time"

	"github.com/go-faster/errors"

	"github.com/xenking/oolio-checkout/internal/domain/fault"
	"github.com/xenking/oolio-checkout/internal/domain/product"
)

// UpdateResult distinguishes a quantity update from a removal caused by
// setting the quantity to zero.
type UpdateResult int

const (
	// Updated means the line's quantity changed.
	Updated UpdateResult = iota
	// Removed means the line was deleted because the new quantity was zero.
	Removed
)

// Store implements the cart mutation and validation rules on top of a cart
// Repository. Stock checks here are optimistic reads: the ledger's
// reservation at checkout is the final authority.
type Store struct {
	carts      Repository
	products   product.Repository
	maxItemQty int
	now        func() time.Time
}

// NewStore creates a Store. maxItemQty <= 0 selects DefaultMaxItemQty.
func NewStore(carts Repository, products product.Repository, maxItemQty int) *Store {
	if maxItemQty <= 0 {
		maxItemQty = DefaultMaxItemQty
	}
	return &Store{
		carts:      carts,
		products:   products,
		maxItemQty: maxItemQty,
		now:        time.Now,
	}
}

// Get returns the user's cart, which is empty (not an error) when the user
// has never added anything.
func (s *Store) Get(ctx context.Context, userID string) (*Cart, error) {
	c, err := s.carts.Get(ctx, userID)
	if err != nil {
		return nil, errors.Wrap(err, "get cart")
	}
	return c, nil
}

// AddItem adds qty of a product to the cart, merging with an existing line.
// The product must exist, be active, and have enough stock for the combined
// line quantity; the line is also capped at the configured maximum.
func (s *Store) AddItem(ctx context.Context, userID string, productID int64, qty int) (*Cart, error) {
	if qty < 1 {
		return nil, fault.New(fault.KindValidationFailed, "quantity must be at least 1")
	}

	p, err := s.products.GetByID(ctx, productID)
	if err != nil {
		return nil, err
	}
	if !p.Active {
		return nil, fault.Newf(fault.KindItemUnavailable, "product %d is not available", productID)
	}

	c, err := s.carts.Get(ctx, userID)
	if err != nil {
		return nil, errors.Wrap(err, "get cart")
	}

	newQty := qty
	if line := c.Find(productID); line != nil {
		newQty += line.Quantity
	}
	if newQty > s.maxItemQty {
		return nil, fault.Newf(fault.KindValidationFailed, "quantity %d exceeds per-item limit %d", newQty, s.maxItemQty)
	}
	if newQty > p.Stock {
		return nil, fault.Newf(fault.KindInsufficientStock, "requested %d of product %d, %d available", newQty, productID, p.Stock)
	}

	item := Item{
		ProductID:     productID,
		Quantity:      newQty,
		PriceSnapshot: p.Price,
		AddedAt:       s.now(),
	}
	if err := s.carts.UpsertItem(ctx, userID, item); err != nil {
		return nil, errors.Wrap(err, "upsert cart item")
	}

	return s.carts.Get(ctx, userID)
}

// UpdateItem sets the quantity of an existing line. Zero removes the line
// and reports Removed; the caller can surface the two outcomes differently.
func (s *Store) UpdateItem(ctx context.Context, userID string, productID int64, qty int) (UpdateResult, error) {
	if qty < 0 || qty > s.maxItemQty {
		return 0, fault.Newf(fault.KindValidationFailed, "quantity must be between 0 and %d", s.maxItemQty)
	}

	c, err := s.carts.Get(ctx, userID)
	if err != nil {
		return 0, errors.Wrap(err, "get cart")
	}
	line := c.Find(productID)
	if line == nil {
		return 0, ErrItemNotFound
	}

	if qty == 0 {
		if err := s.carts.RemoveItem(ctx, userID, productID); err != nil {
			return 0, errors.Wrap(err, "remove cart item")
		}
		return Removed, nil
	}

	updated := *line
	updated.Quantity = qty
	if err := s.carts.UpsertItem(ctx, userID, updated); err != nil {
		return 0, errors.Wrap(err, "upsert cart item")
	}
	return Updated, nil
}

// RemoveItem deletes a line from the cart.
func (s *Store) RemoveItem(ctx context.Context, userID string, productID int64) error {
	c, err := s.carts.Get(ctx, userID)
	if err != nil {
		return errors.Wrap(err, "get cart")
	}
	if c.Find(productID) == nil {
		return ErrItemNotFound
	}
	if err := s.carts.RemoveItem(ctx, userID, productID); err != nil {
		return errors.Wrap(err, "remove cart item")
	}
	return nil
}

// Clear removes every line from the user's cart.
func (s *Store) Clear(ctx context.Context, userID string) error {
	if err := s.carts.Clear(ctx, userID); err != nil {
		return errors.Wrap(err, "clear cart")
	}
	return nil
}

// CheckoutLine pairs a cart line with the authoritative product record read
// during validation: current unit price and availability.
type CheckoutLine struct {
	Item    Item
	Product product.Product
}

// ValidateForCheckout re-reads every product in the cart and checks checkout
// eligibility: the cart is non-empty, every product is active, and current
// stock covers every line. The returned lines carry checkout-time prices.
//
// This is an optimistic check. Stock can still move before reservation; the
// ledger repeats the decision atomically.
func (s *Store) ValidateForCheckout(ctx context.Context, userID string) ([]CheckoutLine, error) {
	c, err := s.carts.Get(ctx, userID)
	if err != nil {
		return nil, errors.Wrap(err, "get cart")
	}
	if c.IsEmpty() {
		return nil, ErrEmpty
	}

	ids := make([]int64, len(c.Items))
	for i, it := range c.Items {
		ids[i] = it.ProductID
	}
	fetched, err := s.products.GetByIDs(ctx, ids)
	if err != nil {
		return nil, errors.Wrap(err, "get products")
	}
	byID := make(map[int64]product.Product, len(fetched))
	for _, p := range fetched {
		byID[p.ID] = p
	}

	lines := make([]CheckoutLine, 0, len(c.Items))
	for _, it := range c.Items {
		p, ok := byID[it.ProductID]
		if !ok || !p.Active {
			return nil, fault.Newf(fault.KindItemUnavailable, "product %d is no longer available", it.ProductID)
		}
		if it.Quantity > p.Stock {
			return nil, fault.Newf(fault.KindInsufficientStock, "product %d: requested %d, %d available", it.ProductID, it.Quantity, p.Stock)
		}
		lines = append(lines, CheckoutLine{Item: it, Product: p})
	}
	return lines, nil
}
