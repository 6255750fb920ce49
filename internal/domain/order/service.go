package order

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/go-faster/errors"
	"github.com/google/uuid"

	"github.com/xenking/oolio-checkout/internal/domain/cart"
	"github.com/xenking/oolio-checkout/internal/domain/fault"
	"github.com/xenking/oolio-checkout/internal/domain/inventory"
	"github.com/xenking/oolio-checkout/internal/event"
)

// CheckoutData carries the validated checkout payload from the request layer.
type CheckoutData struct {
	ShippingAddress Address
	BillingAddress  Address
	PaymentMethod   string
	Notes           string
}

// CartValidator is the slice of the cart store the engine needs: the same
// eligibility check the facade uses, returning checkout-time prices.
type CartValidator interface {
	ValidateForCheckout(ctx context.Context, userID string) ([]cart.CheckoutLine, error)
	Clear(ctx context.Context, userID string) error
}

// Engine converts validated carts into orders and owns every status
// transition. It is the only writer of Order.Status.
type Engine struct {
	carts  CartValidator
	ledger inventory.Ledger
	orders Repository
	events event.Publisher
	now    func() time.Time
}

// NewEngine creates an order Engine with the required collaborators. events
// may be nil when no collaborators are wired.
func NewEngine(carts CartValidator, ledger inventory.Ledger, orders Repository, events event.Publisher) *Engine {
	if events == nil {
		events = (*event.Bus)(nil)
	}
	return &Engine{
		carts:  carts,
		ledger: ledger,
		orders: orders,
		events: events,
		now:    time.Now,
	}
}

// CreateOrder turns the user's cart into a pending order:
//
//  1. re-validate the cart under the checkout eligibility check;
//  2. reserve stock for every line, all-or-nothing;
//  3. snapshot unit prices and compute the total;
//  4. persist the order with status=pending, payment_status=pending;
//  5. clear the cart.
//
// Any failure after step 2 releases the reservations. Clearing the cart also
// serves as the double-submit guard: a concurrent second checkout observes
// an empty cart and fails at step 1.
func (e *Engine) CreateOrder(ctx context.Context, userID string, data CheckoutData) (*Order, error) {
	lines, err := e.carts.ValidateForCheckout(ctx, userID)
	if err != nil {
		return nil, err
	}

	reservations := make([]inventory.Reservation, len(lines))
	for i, line := range lines {
		reservations[i] = inventory.Reservation{ProductID: line.Product.ID, Qty: line.Item.Quantity}
	}
	reserved, err := inventory.ReserveAll(ctx, e.ledger, reservations)
	if err != nil {
		return nil, err
	}

	now := e.now().UTC()
	o := &Order{
		ID:              uuid.New().String(),
		Number:          newOrderNumber(now),
		UserID:          userID,
		ShippingAddress: data.ShippingAddress,
		BillingAddress:  data.BillingAddress,
		PaymentMethod:   data.PaymentMethod,
		Notes:           data.Notes,
		Status:          StatusPending,
		PaymentStatus:   PaymentPending,
		CreatedAt:       now,
		UpdatedAt:       now,
	}

	for _, line := range lines {
		item := Item{
			ProductID: line.Product.ID,
			Name:      line.Product.Name,
			Quantity:  line.Item.Quantity,
			UnitPrice: line.Product.Price,
		}
		o.Items = append(o.Items, item)
		o.Total = o.Total.Add(item.LineTotal())
	}
	o.Total = o.Total.Round(2)

	if err := e.orders.Create(ctx, o); err != nil {
		inventory.ReleaseAll(ctx, e.ledger, reserved)
		return nil, errors.Wrap(err, "create order")
	}

	// The order exists; a cart-clear failure must not undo it. The leftover
	// cart is cleaned up by the next checkout attempt failing validation
	// against the already decremented stock.
	if err := e.carts.Clear(ctx, userID); err != nil {
		return o, errors.Wrap(err, "clear cart after order")
	}

	return o, nil
}

// Get returns an order owned by the given user. Orders of other users are
// reported as not found, never as forbidden.
func (e *Engine) Get(ctx context.Context, userID, orderID string) (*Order, error) {
	o, err := e.orders.GetByID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if o.UserID != userID {
		return nil, ErrNotFound
	}
	return o, nil
}

// AdvanceStatus moves an order one step forward along the fulfilment chain.
func (e *Engine) AdvanceStatus(ctx context.Context, orderID string, target Status) (*Order, error) {
	o, err := e.orders.GetByID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if !o.Status.CanTransition(target) || target == StatusCancelled {
		return nil, fault.Newf(fault.KindInvalidState, "cannot move order from %s to %s", o.Status, target)
	}
	if err := e.orders.UpdateStatus(ctx, orderID, o.Status, target, ""); err != nil {
		return nil, err
	}
	e.events.Publish(ctx, event.OrderStatusChanged{
		OrderID:    o.ID,
		UserID:     o.UserID,
		From:       string(o.Status),
		To:         string(target),
		OccurredAt: e.now().UTC(),
	})
	o.Status = target
	return o, nil
}

// Cancel cancels an order still in a cancellable status and releases its
// reserved stock. Shipped or delivered orders fail with ErrNotCancellable.
func (e *Engine) Cancel(ctx context.Context, orderID, reason string) (*Order, error) {
	o, err := e.orders.GetByID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if !o.Status.Cancellable() {
		return nil, ErrNotCancellable
	}
	if err := e.orders.UpdateStatus(ctx, orderID, o.Status, StatusCancelled, reason); err != nil {
		return nil, err
	}

	// Return the stock held by this order.
	for _, item := range o.Items {
		_ = e.ledger.Release(ctx, item.ProductID, item.Quantity)
	}

	e.events.Publish(ctx, event.OrderStatusChanged{
		OrderID:    o.ID,
		UserID:     o.UserID,
		From:       string(o.Status),
		To:         string(StatusCancelled),
		Reason:     reason,
		OccurredAt: e.now().UTC(),
	})
	o.Status = StatusCancelled
	o.CancelReason = reason
	return o, nil
}

// newOrderNumber builds a human-readable order number: date plus an opaque
// uppercase suffix derived from a fresh UUID.
func newOrderNumber(now time.Time) string {
	suffix := strings.ToUpper(strings.ReplaceAll(uuid.New().String(), "-", "")[:8])
	return fmt.Sprintf("ORD-%s-%s", now.Format("20060102"), suffix)
}
