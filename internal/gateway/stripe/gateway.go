// Package stripe implements the payment gateway contract on Stripe.
package stripe

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
	stripego "github.com/stripe/stripe-go/v80"
	"github.com/stripe/stripe-go/v80/paymentintent"
	"github.com/stripe/stripe-go/v80/refund"
	"github.com/stripe/stripe-go/v80/webhook"

	"github.com/xenking/oolio-checkout/internal/domain/fault"
	"github.com/xenking/oolio-checkout/internal/domain/payment"
)

// DefaultCallTimeout bounds every gateway call. A timeout means unknown
// outcome: callers must re-query state before retrying.
const DefaultCallTimeout = 10 * time.Second

var _ payment.Gateway = (*Gateway)(nil)

// Gateway implements payment.Gateway using Stripe PaymentIntents.
type Gateway struct {
	webhookSecret string
	timeout       time.Duration
}

// New creates a Gateway. The secret key is installed process-wide, matching
// how the stripe-go client is designed to be configured.
func New(secretKey, webhookSecret string, timeout time.Duration) *Gateway {
	stripego.Key = secretKey
	if timeout <= 0 {
		timeout = DefaultCallTimeout
	}
	return &Gateway{
		webhookSecret: webhookSecret,
		timeout:       timeout,
	}
}

// CreateIntent creates a Stripe PaymentIntent for the amount in the given
// currency. Amounts are converted to the currency's minor unit.
func (g *Gateway) CreateIntent(ctx context.Context, amount decimal.Decimal, currency string, metadata map[string]string) (*payment.GatewayIntent, error) {
	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	params := &stripego.PaymentIntentParams{
		Amount:   stripego.Int64(minorUnits(amount)),
		Currency: stripego.String(currency),
	}
	params.Context = ctx
	for k, v := range metadata {
		params.AddMetadata(k, v)
	}

	pi, err := paymentintent.New(params)
	if err != nil {
		return nil, fault.Wrap(err, fault.KindGatewayError, "stripe create intent")
	}
	return &payment.GatewayIntent{ID: pi.ID, Status: mapIntentStatus(pi.Status)}, nil
}

// Confirm confirms the intent with the given payment method token.
func (g *Gateway) Confirm(ctx context.Context, gatewayID, paymentMethodID string) (*payment.GatewayIntent, error) {
	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	params := &stripego.PaymentIntentConfirmParams{
		PaymentMethod: stripego.String(paymentMethodID),
	}
	params.Context = ctx

	pi, err := paymentintent.Confirm(gatewayID, params)
	if err != nil {
		return nil, fault.Wrap(err, fault.KindGatewayError, "stripe confirm intent")
	}
	return &payment.GatewayIntent{ID: pi.ID, Status: mapIntentStatus(pi.Status)}, nil
}

// Refund refunds part or all of a captured intent and returns the gateway's
// refund identifier.
func (g *Gateway) Refund(ctx context.Context, gatewayID string, amount decimal.Decimal, reason string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	params := &stripego.RefundParams{
		PaymentIntent: stripego.String(gatewayID),
		Amount:        stripego.Int64(minorUnits(amount)),
	}
	params.Context = ctx
	if reason != "" {
		params.AddMetadata("reason", reason)
	}

	ref, err := refund.New(params)
	if err != nil {
		return "", fault.Wrap(err, fault.KindGatewayError, "stripe refund")
	}
	return ref.ID, nil
}

// Verify checks the Stripe-Signature header over the raw payload. It never
// parses the payload on failure.
func (g *Gateway) Verify(payload []byte, signature string) error {
	_, err := webhook.ConstructEvent(payload, signature, g.webhookSecret)
	if err != nil {
		return fault.Wrap(err, fault.KindSignatureInvalid, "stripe signature")
	}
	return nil
}

// mapIntentStatus folds Stripe's intent statuses into the three the core
// tracks. Anything not terminal still requires customer action.
func mapIntentStatus(s stripego.PaymentIntentStatus) payment.IntentStatus {
	switch s {
	case stripego.PaymentIntentStatusSucceeded:
		return payment.IntentSucceeded
	case stripego.PaymentIntentStatusCanceled:
		return payment.IntentFailed
	default:
		return payment.IntentRequiresAction
	}
}

// minorUnits converts a decimal major-unit amount into the gateway's integer
// minor units, e.g. 12.34 -> 1234.
func minorUnits(amount decimal.Decimal) int64 {
	return amount.Mul(decimal.NewFromInt(100)).Round(0).IntPart()
}
