package payment

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/xenking/oolio-checkout/internal/domain/fault"
	"github.com/xenking/oolio-checkout/internal/domain/order"
	"github.com/xenking/oolio-checkout/internal/event"
)

// Orders is the slice of the order engine's repository the orchestrator
// needs: reading an order and moving its payment status forward.
type Orders interface {
	GetByID(ctx context.Context, id string) (*order.Order, error)
	UpdatePaymentStatus(ctx context.Context, id string, from, to order.PaymentStatus) error
}

// Options tune orchestrator behaviour that is a product decision rather
// than an invariant.
type Options struct {
	// SettleOnPartialRefund flips payment status to refunded on any refund,
	// not only when the captured amount is fully returned.
	SettleOnPartialRefund bool
}

// Orchestrator drives the payment-intent lifecycle. It is the only writer
// of Order.PaymentStatus.
type Orchestrator struct {
	orders  Orders
	intents IntentRepository
	refunds RefundRepository
	gateway Gateway
	events  event.Publisher
	opts    Options
	now     func() time.Time
}

// NewOrchestrator creates an Orchestrator with the required collaborators.
// events may be nil when no collaborators are wired.
func NewOrchestrator(orders Orders, intents IntentRepository, refunds RefundRepository, gateway Gateway, events event.Publisher, opts Options) *Orchestrator {
	if events == nil {
		events = (*event.Bus)(nil)
	}
	return &Orchestrator{
		orders:  orders,
		intents: intents,
		refunds: refunds,
		gateway: gateway,
		events:  events,
		opts:    opts,
		now:     time.Now,
	}
}

// CreateIntent creates the payment intent for an order. It rejects orders
// that are already paid or cancelled, and returns the existing intent when
// one was already created (exactly one intent per order).
func (s *Orchestrator) CreateIntent(ctx context.Context, orderID, currency string, metadata map[string]string) (*Intent, error) {
	o, err := s.orders.GetByID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if o.PaymentStatus == order.PaymentPaid {
		return nil, ErrAlreadyPaid
	}
	if o.Status == order.StatusCancelled {
		return nil, ErrOrderCancelled
	}

	if existing, err := s.intents.GetByOrderID(ctx, orderID); err == nil {
		return existing, nil
	} else if !fault.IsKind(err, fault.KindNotFound) {
		return nil, errors.Wrap(err, "lookup intent")
	}

	if metadata == nil {
		metadata = make(map[string]string, 1)
	}
	metadata["order_id"] = orderID

	gw, err := s.gateway.CreateIntent(ctx, o.Total, currency, metadata)
	if err != nil {
		return nil, fault.Wrap(err, fault.KindGatewayError, "create intent")
	}

	now := s.now().UTC()
	intent := &Intent{
		ID:        uuid.New().String(),
		OrderID:   orderID,
		GatewayID: gw.ID,
		Amount:    o.Total,
		Currency:  currency,
		Status:    gw.Status,
		Metadata:  metadata,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.intents.Create(ctx, intent); err != nil {
		return nil, errors.Wrap(err, "persist intent")
	}
	return intent, nil
}

// Confirm confirms the intent with the gateway using the caller's payment
// method token. A synchronous success settles the order immediately; the
// asynchronous webhook path applies the same transition idempotently. The
// order is re-read first: an order cancelled after intent creation must not
// be charged.
func (s *Orchestrator) Confirm(ctx context.Context, orderID, paymentMethodID string) (*Intent, error) {
	o, err := s.orders.GetByID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if o.Status == order.StatusCancelled {
		return nil, ErrOrderCancelled
	}
	if o.PaymentStatus == order.PaymentPaid {
		return nil, ErrAlreadyPaid
	}

	intent, err := s.intents.GetByOrderID(ctx, orderID)
	if err != nil {
		return nil, err
	}

	gw, err := s.gateway.Confirm(ctx, intent.GatewayID, paymentMethodID)
	if err != nil {
		return nil, fault.Wrap(err, fault.KindGatewayError, "confirm intent")
	}

	if intent.Status != gw.Status {
		if err := s.intents.UpdateStatus(ctx, intent.ID, gw.Status); err != nil {
			return nil, errors.Wrap(err, "update intent status")
		}
		intent.Status = gw.Status
	}

	switch gw.Status {
	case IntentSucceeded:
		if err := s.MarkPaid(ctx, orderID); err != nil {
			return nil, err
		}
	case IntentFailed:
		if err := s.MarkFailed(ctx, orderID); err != nil {
			return nil, err
		}
	}
	return intent, nil
}

// Refund returns money for a paid order. A nil amount means a full refund of
// the remaining refundable balance. Payment status flips to refunded when
// the captured amount is fully returned, or on any refund when
// SettleOnPartialRefund is set.
func (s *Orchestrator) Refund(ctx context.Context, orderID string, amount *decimal.Decimal, reason string) (*Refund, error) {
	o, err := s.orders.GetByID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if o.PaymentStatus != order.PaymentPaid {
		return nil, ErrNotPaid
	}

	intent, err := s.intents.GetByOrderID(ctx, orderID)
	if err != nil {
		if fault.IsKind(err, fault.KindNotFound) {
			return nil, ErrIntentNotFound
		}
		return nil, err
	}

	refunded, err := s.refunds.TotalRefunded(ctx, orderID)
	if err != nil {
		return nil, errors.Wrap(err, "read refunded total")
	}
	remaining := intent.Amount.Sub(refunded)

	refundAmount := remaining
	if amount != nil {
		refundAmount = *amount
	}
	if refundAmount.LessThanOrEqual(decimal.Zero) || refundAmount.GreaterThan(remaining) {
		return nil, ErrExceedsCaptured
	}

	gatewayRefundID, err := s.gateway.Refund(ctx, intent.GatewayID, refundAmount, reason)
	if err != nil {
		return nil, fault.Wrap(err, fault.KindGatewayError, "gateway refund")
	}

	full := refundAmount.Equal(remaining) && refunded.IsZero()
	refund := &Refund{
		ID:              uuid.New().String(),
		OrderID:         orderID,
		GatewayRefundID: gatewayRefundID,
		Amount:          refundAmount,
		Reason:          reason,
		Full:            full,
		CreatedAt:       s.now().UTC(),
	}
	if err := s.refunds.Create(ctx, refund); err != nil {
		return nil, errors.Wrap(err, "persist refund")
	}

	fullyReturned := refundAmount.Equal(remaining)
	if fullyReturned || s.opts.SettleOnPartialRefund {
		if err := s.orders.UpdatePaymentStatus(ctx, orderID, order.PaymentPaid, order.PaymentRefunded); err != nil {
			return nil, errors.Wrap(err, "mark refunded")
		}
		s.events.Publish(ctx, event.PaymentSettled{
			OrderID:    orderID,
			Outcome:    string(order.PaymentRefunded),
			OccurredAt: s.now().UTC(),
		})
	}
	return refund, nil
}

// MarkPaid applies the pending -> paid transition. It is idempotent against
// replays: an order already paid is left untouched.
func (s *Orchestrator) MarkPaid(ctx context.Context, orderID string) error {
	return s.settle(ctx, orderID, order.PaymentPaid)
}

// MarkFailed applies the pending -> failed transition with the same replay
// semantics as MarkPaid.
func (s *Orchestrator) MarkFailed(ctx context.Context, orderID string) error {
	return s.settle(ctx, orderID, order.PaymentFailed)
}

func (s *Orchestrator) settle(ctx context.Context, orderID string, target order.PaymentStatus) error {
	o, err := s.orders.GetByID(ctx, orderID)
	if err != nil {
		return err
	}
	if o.PaymentStatus == target {
		return nil
	}
	if !o.PaymentStatus.CanTransition(target) {
		return fault.Newf(fault.KindInvalidState, "cannot move payment from %s to %s", o.PaymentStatus, target)
	}
	if err := s.orders.UpdatePaymentStatus(ctx, orderID, o.PaymentStatus, target); err != nil {
		return errors.Wrap(err, "update payment status")
	}
	s.events.Publish(ctx, event.PaymentSettled{
		OrderID:    orderID,
		Outcome:    string(target),
		OccurredAt: s.now().UTC(),
	})
	return nil
}
