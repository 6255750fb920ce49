package order

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"github.com/xenking/oolio-checkout/internal/domain/fault"
)

// Sentinel errors for order operations.
var (
	ErrNotFound       = fault.New(fault.KindNotFound, "order not found")
	ErrNotCancellable = fault.New(fault.KindInvalidState, "order cannot be cancelled")
)

// Status is the fulfilment state of an order. Transitions only move forward;
// cancellation is reachable from the first three states only.
type Status string

const (
	StatusPending    Status = "pending"
	StatusConfirmed  Status = "confirmed"
	StatusProcessing Status = "processing"
	StatusShipped    Status = "shipped"
	StatusDelivered  Status = "delivered"
	StatusCancelled  Status = "cancelled"
)

// next maps each status to its single forward successor.
var next = map[Status]Status{
	StatusPending:    StatusConfirmed,
	StatusConfirmed:  StatusProcessing,
	StatusProcessing: StatusShipped,
	StatusShipped:    StatusDelivered,
}

// CanTransition reports whether moving from s to target is a legal forward
// step or a permitted cancellation.
func (s Status) CanTransition(target Status) bool {
	if target == StatusCancelled {
		return s.Cancellable()
	}
	return next[s] == target
}

// Cancellable reports whether an order in this status may still be cancelled.
func (s Status) Cancellable() bool {
	switch s {
	case StatusPending, StatusConfirmed, StatusProcessing:
		return true
	default:
		return false
	}
}

// PaymentStatus tracks money state independently of fulfilment. It only
// moves forward: pending -> paid -> refunded, or pending -> failed.
type PaymentStatus string

const (
	PaymentPending  PaymentStatus = "pending"
	PaymentPaid     PaymentStatus = "paid"
	PaymentFailed   PaymentStatus = "failed"
	PaymentRefunded PaymentStatus = "refunded"
)

// CanTransition reports whether p may move to target. Nothing re-enters
// pending, failed and refunded are terminal.
func (p PaymentStatus) CanTransition(target PaymentStatus) bool {
	switch p {
	case PaymentPending:
		return target == PaymentPaid || target == PaymentFailed
	case PaymentPaid:
		return target == PaymentRefunded
	default:
		return false
	}
}

// Address is a validated postal address supplied by the request layer.
type Address struct {
	Line1      string
	Line2      string
	City       string
	Region     string
	PostalCode string
	Country    string
}

// Item is a frozen order line: the quantity and unit price captured when the
// order was created. It is never re-read from the product catalog.
type Item struct {
	ProductID int64
	Name      string
	Quantity  int
	UnitPrice decimal.Decimal
}

// LineTotal is quantity times the frozen unit price.
func (i Item) LineTotal() decimal.Decimal {
	return i.UnitPrice.Mul(decimal.NewFromInt(int64(i.Quantity)))
}

// Order is the aggregate produced by checkout: immutable identity and items,
// mutable status and payment status. Mutations happen only through Engine
// and the payment orchestrator's settlement paths.
type Order struct {
	ID              string
	Number          string
	UserID          string
	Items           []Item
	ShippingAddress Address
	BillingAddress  Address
	PaymentMethod   string
	Notes           string
	Total           decimal.Decimal
	Status          Status
	PaymentStatus   PaymentStatus
	CancelReason    string
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// Repository defines persistence operations for orders. Create persists the
// order and its items atomically; the status setters are conditional writes
// that fail when the stored state no longer allows the transition.
type Repository interface {
	Create(ctx context.Context, o *Order) error
	GetByID(ctx context.Context, id string) (*Order, error)
	// UpdateStatus persists a fulfilment transition from one status to
	// another, returning ErrNotFound when no row matched the expected
	// current status (guarding against concurrent transitions).
	UpdateStatus(ctx context.Context, id string, from, to Status, reason string) error
	// UpdatePaymentStatus persists a payment transition with the same
	// conditional-write semantics.
	UpdatePaymentStatus(ctx context.Context, id string, from, to PaymentStatus) error
}
