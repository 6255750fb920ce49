// Package inventory owns the per-product stock counters. Reservations are
// the only strict mutation path: a reservation atomically decrements stock
// and must never drive it negative, even under concurrent checkouts against
// the same product.
package inventory

import (
	"context"

	"github.com/xenking/oolio-checkout/internal/domain/fault"
)

// Sentinel errors for reservation outcomes.
var (
	ErrNotFound          = fault.New(fault.KindNotFound, "product not found")
	ErrInactive          = fault.New(fault.KindItemUnavailable, "product is not available")
	ErrInsufficientStock = fault.New(fault.KindInsufficientStock, "insufficient stock")
)

// Ledger exposes atomic stock operations. Reserve decisions for the same
// product are linearized by the implementation (row-level conditional update
// in postgres, per-product mutex in memory); different products proceed in
// parallel.
type Ledger interface {
	// Reserve atomically decrements stock by qty. It fails with
	// ErrInsufficientStock when availability is below qty, ErrInactive when
	// the product is delisted, and ErrNotFound when it does not exist.
	Reserve(ctx context.Context, productID int64, qty int) error

	// Release returns previously reserved stock. It is the compensating
	// action for Reserve and must not fail on a missing product row being
	// concurrently delisted; releasing stock never checks the active flag.
	Release(ctx context.Context, productID int64, qty int) error
}

// Reservation records one successful Reserve for later compensation.
type Reservation struct {
	ProductID int64
	Qty       int
}

// ReserveAll reserves every line all-or-nothing: on the first failure it
// releases the lines reserved so far, in reverse order, and returns the
// failing line's error. The returned reservations are only non-nil when
// every line succeeded.
func ReserveAll(ctx context.Context, ledger Ledger, lines []Reservation) ([]Reservation, error) {
	reserved := make([]Reservation, 0, len(lines))
	for _, line := range lines {
		if err := ledger.Reserve(ctx, line.ProductID, line.Qty); err != nil {
			ReleaseAll(ctx, ledger, reserved)
			return nil, err
		}
		reserved = append(reserved, line)
	}
	return reserved, nil
}

// ReleaseAll releases reservations in reverse order. Release failures are
// not propagated: the caller's original error must surface, and release is
// an unconditional increment so only infrastructure faults can occur here.
func ReleaseAll(ctx context.Context, ledger Ledger, reserved []Reservation) {
	for i := len(reserved) - 1; i >= 0; i-- {
		_ = ledger.Release(ctx, reserved[i].ProductID, reserved[i].Qty)
	}
}
