// Package checkout is the single entry point for turning a cart into a paid
// order: validate cart, reserve stock, persist order, create the payment
// intent when the method needs one, and emit best-effort notifications.
package checkout

import (
	"context"
	"time"

	"github.com/go-faster/sdk/zctx"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/xenking/oolio-checkout/internal/domain/fault"
	"github.com/xenking/oolio-checkout/internal/domain/order"
	"github.com/xenking/oolio-checkout/internal/domain/payment"
	"github.com/xenking/oolio-checkout/internal/event"
)

// PaymentMethod enumerates the validated payment methods accepted at
// checkout.
type PaymentMethod string

const (
	MethodCashOnDelivery PaymentMethod = "cash_on_delivery"
	MethodCreditCard     PaymentMethod = "credit_card"
	MethodDebitCard      PaymentMethod = "debit_card"
	MethodMobileBanking  PaymentMethod = "mobile_banking"
	MethodBankTransfer   PaymentMethod = "bank_transfer"
	MethodGatewayCard    PaymentMethod = "gateway_card"
)

// RequiresIntent reports whether the method collects money through the
// gateway up front. Offline methods settle outside the gateway and leave
// the order payment-pending.
func (m PaymentMethod) RequiresIntent() bool {
	switch m {
	case MethodCreditCard, MethodDebitCard, MethodGatewayCard:
		return true
	default:
		return false
	}
}

// Request is the validated checkout payload handed over by the request
// layer. Input shape is already checked; only business rules apply here.
type Request struct {
	ShippingAddress order.Address
	BillingAddress  order.Address
	PaymentMethod   PaymentMethod
	Notes           string
}

// Result is the outcome of a checkout. PaymentErr is set when order creation
// succeeded but the payment intent could not be created: the order stays
// pending and the caller retries payment separately.
type Result struct {
	Order      *order.Order
	Intent     *payment.Intent
	PaymentErr error
}

// Intents is the payment orchestrator slice the facade drives.
type Intents interface {
	CreateIntent(ctx context.Context, orderID, currency string, metadata map[string]string) (*payment.Intent, error)
}

// Config holds facade settings.
type Config struct {
	// Currency is the fixed default currency for payment intents.
	Currency string
}

// Facade sequences the combined checkout flow.
type Facade struct {
	engine  *order.Engine
	intents Intents
	events  event.Publisher
	cfg     Config

	tracer    trace.Tracer
	checkouts metric.Int64Counter
}

// NewFacade creates a Facade. events may be nil when no collaborators are
// wired.
func NewFacade(engine *order.Engine, intents Intents, events event.Publisher, cfg Config) *Facade {
	if cfg.Currency == "" {
		cfg.Currency = "usd"
	}
	if events == nil {
		events = (*event.Bus)(nil)
	}
	meter := otel.Meter("oolio-checkout")
	checkouts, _ := meter.Int64Counter("checkout.completed",
		metric.WithDescription("Completed checkouts by payment method"))
	return &Facade{
		engine:    engine,
		intents:   intents,
		events:    events,
		cfg:       cfg,
		tracer:    otel.Tracer("oolio-checkout"),
		checkouts: checkouts,
	}
}

// Checkout runs the full flow for one user. Order creation failures
// propagate as-is; a payment-intent failure does not roll the order back,
// since a pending unpaid order awaiting a payment retry is a valid outcome.
func (f *Facade) Checkout(ctx context.Context, userID string, req Request) (*Result, error) {
	ctx, span := f.tracer.Start(ctx, "checkout",
		trace.WithAttributes(attribute.String("payment.method", string(req.PaymentMethod))))
	defer span.End()

	o, err := f.engine.CreateOrder(ctx, userID, order.CheckoutData{
		ShippingAddress: req.ShippingAddress,
		BillingAddress:  req.BillingAddress,
		PaymentMethod:   string(req.PaymentMethod),
		Notes:           req.Notes,
	})
	if err != nil {
		return nil, err
	}

	res := &Result{Order: o}

	if req.PaymentMethod.RequiresIntent() {
		intent, err := f.intents.CreateIntent(ctx, o.ID, f.cfg.Currency, map[string]string{
			"order_number": o.Number,
		})
		if err != nil {
			// Surface the payment failure alongside the created order. The
			// distinction between retry-won't-help and retry-might-help is
			// preserved through the fault kind.
			zctx.From(ctx).Warn("Payment intent creation failed, order stays pending",
				zap.String("order_id", o.ID),
				zap.Bool("retryable", fault.Retryable(err)),
				zap.Error(err))
			res.PaymentErr = err
		} else {
			res.Intent = intent
		}
	}

	f.checkouts.Add(ctx, 1,
		metric.WithAttributes(attribute.String("payment.method", string(req.PaymentMethod))))

	f.events.Publish(ctx, event.OrderCreated{
		OrderID:     o.ID,
		OrderNumber: o.Number,
		UserID:      o.UserID,
		Total:       o.Total.StringFixed(2),
		OccurredAt:  time.Now().UTC(),
	})

	return res, nil
}
