// Package payment manages the payment-intent lifecycle for orders: intent
// creation and confirmation against an external gateway, webhook-driven
// settlement, and refunds tracked against the captured amount.
package payment

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"github.com/xenking/oolio-checkout/internal/domain/fault"
)

// Sentinel errors for payment operations.
var (
	ErrIntentNotFound  = fault.New(fault.KindNotFound, "payment intent not found")
	ErrAlreadyPaid     = fault.New(fault.KindInvalidState, "order is already paid")
	ErrOrderCancelled  = fault.New(fault.KindInvalidState, "order is cancelled")
	ErrNotPaid         = fault.New(fault.KindInvalidState, "order is not paid")
	ErrExceedsCaptured = fault.New(fault.KindValidationFailed, "refund amount exceeds refundable balance")
)

// IntentStatus mirrors the gateway's intent lifecycle.
type IntentStatus string

const (
	IntentRequiresAction IntentStatus = "requires_action"
	IntentSucceeded      IntentStatus = "succeeded"
	IntentFailed         IntentStatus = "failed"
)

// Intent is the gateway-tracked attempt to collect payment for exactly one
// order. At most one intent exists per order.
type Intent struct {
	ID        string
	OrderID   string
	GatewayID string
	Amount    decimal.Decimal
	Currency  string
	Status    IntentStatus
	Metadata  map[string]string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Refund is money returned against a captured intent. Full reports whether
// the refund returned the entire captured amount in one operation.
type Refund struct {
	ID              string
	OrderID         string
	GatewayRefundID string
	Amount          decimal.Decimal
	Reason          string
	Full            bool
	CreatedAt       time.Time
}

// IntentRepository persists payment intents keyed 1:1 by order.
type IntentRepository interface {
	Create(ctx context.Context, intent *Intent) error
	GetByOrderID(ctx context.Context, orderID string) (*Intent, error)
	GetByGatewayID(ctx context.Context, gatewayID string) (*Intent, error)
	UpdateStatus(ctx context.Context, id string, status IntentStatus) error
}

// RefundRepository persists refunds and answers the running refunded total
// for an order.
type RefundRepository interface {
	Create(ctx context.Context, refund *Refund) error
	TotalRefunded(ctx context.Context, orderID string) (decimal.Decimal, error)
}

// GatewayIntent is the gateway's view of an intent after a call.
type GatewayIntent struct {
	ID     string
	Status IntentStatus
}

// Gateway is the external payment processor. Implementations apply an
// explicit timeout per call; a timeout error means unknown outcome and the
// caller must re-query before retrying.
type Gateway interface {
	CreateIntent(ctx context.Context, amount decimal.Decimal, currency string, metadata map[string]string) (*GatewayIntent, error)
	Confirm(ctx context.Context, gatewayID, paymentMethodID string) (*GatewayIntent, error)
	Refund(ctx context.Context, gatewayID string, amount decimal.Decimal, reason string) (refundID string, err error)
}
