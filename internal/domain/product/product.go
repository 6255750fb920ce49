package product

import (
	"context"

	"github.com/shopspring/decimal"

	"github.com/xenking/oolio-checkout/internal/domain/fault"
)

// ErrNotFound is returned when a requested product does not exist.
var ErrNotFound = fault.New(fault.KindNotFound, "product not found")

// Product represents a catalog item available for purchase. The checkout core
// only reads products; the stock counter is mutated exclusively through the
// inventory ledger.
type Product struct {
	ID     int64
	Name   string
	Price  decimal.Decimal
	Stock  int
	Active bool
}

// Repository defines read operations for the product catalog. Reads are
// non-locking: stock values are best-effort fresh and only the ledger's
// reservation path is authoritative.
type Repository interface {
	GetByID(ctx context.Context, id int64) (*Product, error)
	GetByIDs(ctx context.Context, ids []int64) ([]Product, error)
}
