package cart

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"github.com/xenking/oolio-checkout/internal/domain/fault"
)

// Sentinel errors for cart operations.
var (
	ErrEmpty        = fault.New(fault.KindValidationFailed, "cart is empty")
	ErrItemNotFound = fault.New(fault.KindNotFound, "cart item not found")
)

// DefaultMaxItemQty caps the quantity of a single cart line.
const DefaultMaxItemQty = 100

// Item is one line of a cart. PriceSnapshot is the unit price observed when
// the line was added; it is display-only and re-read at checkout.
type Item struct {
	ProductID     int64
	Quantity      int
	PriceSnapshot decimal.Decimal
	AddedAt       time.Time
}

// Cart is a user's mutable pre-purchase selection, one line per product.
type Cart struct {
	UserID string
	Items  []Item
}

// IsEmpty reports whether the cart has no lines.
func (c *Cart) IsEmpty() bool { return len(c.Items) == 0 }

// Find returns the line for productID, or nil.
func (c *Cart) Find(productID int64) *Item {
	for i := range c.Items {
		if c.Items[i].ProductID == productID {
			return &c.Items[i]
		}
	}
	return nil
}

// Subtotal sums quantity times price snapshot over all lines. Display-only.
func (c *Cart) Subtotal() decimal.Decimal {
	total := decimal.Zero
	for _, it := range c.Items {
		total = total.Add(it.PriceSnapshot.Mul(decimal.NewFromInt(int64(it.Quantity))))
	}
	return total
}

// Repository defines persistence operations for carts. A cart is created
// lazily on first write and never deleted; Clear leaves it logically empty.
type Repository interface {
	Get(ctx context.Context, userID string) (*Cart, error)
	UpsertItem(ctx context.Context, userID string, item Item) error
	RemoveItem(ctx context.Context, userID string, productID int64) error
	Clear(ctx context.Context, userID string) error
}
