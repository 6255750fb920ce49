// Package memory provides in-memory implementations of the checkout core's
// storage contracts, used by tests and by single-instance deployments that
// run without Redis.
package memory

import (
	"context"
	"sync"

	"github.com/xenking/oolio-checkout/internal/domain/inventory"
)

type stockEntry struct {
	mu     sync.Mutex
	stock  int
	active bool
}

// InventoryLedger implements inventory.Ledger with a per-product mutex, so
// contention stays local to the contended product.
type InventoryLedger struct {
	mu       sync.RWMutex
	products map[int64]*stockEntry

	onReserve func(productID int64, remaining int)
}

// NewInventoryLedger creates an empty ledger.
func NewInventoryLedger() *InventoryLedger {
	return &InventoryLedger{products: make(map[int64]*stockEntry)}
}

// SetStock initializes or replaces a product's counter.
func (l *InventoryLedger) SetStock(productID int64, stock int, active bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.products[productID] = &stockEntry{stock: stock, active: active}
}

// OnReserve registers an observer of successful reservations. Must be called
// before the ledger is shared between goroutines.
func (l *InventoryLedger) OnReserve(fn func(productID int64, remaining int)) {
	l.onReserve = fn
}

var _ inventory.Ledger = (*InventoryLedger)(nil)

// Reserve atomically decrements the counter, failing before it would go
// negative.
func (l *InventoryLedger) Reserve(_ context.Context, productID int64, qty int) error {
	e := l.entry(productID)
	if e == nil {
		return inventory.ErrNotFound
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.active {
		return inventory.ErrInactive
	}
	if e.stock < qty {
		return inventory.ErrInsufficientStock
	}
	e.stock -= qty
	if l.onReserve != nil {
		l.onReserve(productID, e.stock)
	}
	return nil
}

// Release returns stock unconditionally, ignoring the active flag.
func (l *InventoryLedger) Release(_ context.Context, productID int64, qty int) error {
	e := l.entry(productID)
	if e == nil {
		return inventory.ErrNotFound
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	e.stock += qty
	return nil
}

// Stock reads the current counter. Production availability reads go through
// the product repository; this is for inspecting the ledger directly.
func (l *InventoryLedger) Stock(_ context.Context, productID int64) (int, error) {
	e := l.entry(productID)
	if e == nil {
		return 0, inventory.ErrNotFound
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.stock, nil
}

func (l *InventoryLedger) entry(productID int64) *stockEntry {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.products[productID]
}
