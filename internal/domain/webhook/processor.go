// Package webhook applies asynchronous payment-gateway events to orders.
// Signature verification happens before anything else; verified events are
// deduplicated by gateway event id and applied idempotently.
package webhook

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"

	"github.com/xenking/oolio-checkout/internal/domain/fault"
)

// ErrInvalidSignature rejects events whose signature cannot be verified.
// No payload bytes are parsed before this check passes.
var ErrInvalidSignature = fault.New(fault.KindSignatureInvalid, "webhook signature verification failed")

// Event types this processor settles. Everything else is acknowledged and
// logged without touching state, because the gateway retries on error
// responses and a retry storm helps nobody.
const (
	EventPaymentSucceeded = "payment_succeeded"
	EventPaymentFailed    = "payment_failed"
)

// DefaultDedupWindow bounds how long an applied event id is remembered.
// Gateways stop retrying well before three days.
const DefaultDedupWindow = 72 * time.Hour

// Verifier checks the gateway signature over the raw payload.
type Verifier interface {
	Verify(payload []byte, signature string) error
}

// DedupStore remembers recently applied event ids. MarkApplied returns false
// when the id was already present, which makes the mark the single atomic
// claim on an event.
type DedupStore interface {
	MarkApplied(ctx context.Context, eventID string, window time.Duration) (first bool, err error)
}

// Settler is the payment orchestrator slice the processor drives.
type Settler interface {
	MarkPaid(ctx context.Context, orderID string) error
	MarkFailed(ctx context.Context, orderID string) error
}

// Result reports what HandleEvent did with an event.
type Result struct {
	EventID   string
	Type      string
	OrderID   string
	Duplicate bool
	Ignored   bool
}

// Processor validates, deduplicates, and applies gateway events.
type Processor struct {
	verifier Verifier
	dedup    DedupStore
	settler  Settler
	window   time.Duration
}

// NewProcessor creates a Processor. window <= 0 selects DefaultDedupWindow.
func NewProcessor(verifier Verifier, dedup DedupStore, settler Settler, window time.Duration) *Processor {
	if window <= 0 {
		window = DefaultDedupWindow
	}
	return &Processor{
		verifier: verifier,
		dedup:    dedup,
		settler:  settler,
		window:   window,
	}
}

// HandleEvent verifies the signature, then parses and applies the event.
// Only ErrInvalidSignature maps to a rejection; every other failure after
// verification is logged and acknowledged so the gateway stops retrying,
// with the event recorded for manual follow-up.
func (p *Processor) HandleEvent(ctx context.Context, payload []byte, signature string) (*Result, error) {
	if signature == "" {
		return nil, ErrInvalidSignature
	}
	if err := p.verifier.Verify(payload, signature); err != nil {
		return nil, ErrInvalidSignature
	}

	lg := zctx.From(ctx)

	env, err := parseEnvelope(payload)
	if err != nil {
		lg.Warn("Webhook payload unparseable, acknowledging",
			zap.Error(err))
		return &Result{Ignored: true}, nil
	}

	res := &Result{EventID: env.ID, Type: env.Type, OrderID: env.OrderID}

	first, err := p.dedup.MarkApplied(ctx, env.ID, p.window)
	if err != nil {
		// Dedup store down: prefer a duplicate settle attempt (the payment
		// transition is idempotent) over dropping the event.
		lg.Warn("Webhook dedup lookup failed, applying anyway",
			zap.String("event_id", env.ID), zap.Error(err))
	} else if !first {
		res.Duplicate = true
		return res, nil
	}

	switch env.Type {
	case EventPaymentSucceeded:
		err = p.settler.MarkPaid(ctx, env.OrderID)
	case EventPaymentFailed:
		err = p.settler.MarkFailed(ctx, env.OrderID)
	default:
		lg.Info("Unhandled webhook event type",
			zap.String("event_id", env.ID), zap.String("type", env.Type))
		res.Ignored = true
		return res, nil
	}

	if err != nil {
		// A transition the state machine forbids is not an error to the
		// gateway: log it and acknowledge.
		lg.Warn("Webhook settlement not applied",
			zap.String("event_id", env.ID),
			zap.String("type", env.Type),
			zap.String("order_id", env.OrderID),
			zap.Error(err))
		res.Ignored = true
	}
	return res, nil
}

// envelope is the minimal shape read from a gateway event payload.
type envelope struct {
	ID      string
	Type    string
	OrderID string
}

// parseEnvelope extracts id, type, and the order id from the raw payload
// without decoding the full event. Unknown fields are skipped.
func parseEnvelope(payload []byte) (*envelope, error) {
	var env envelope
	d := jx.DecodeBytes(payload)
	if err := d.ObjBytes(func(d *jx.Decoder, key []byte) error {
		switch string(key) {
		case "id":
			v, err := d.Str()
			env.ID = v
			return err
		case "type":
			v, err := d.Str()
			env.Type = v
			return err
		case "data":
			return d.ObjBytes(func(d *jx.Decoder, key []byte) error {
				switch string(key) {
				case "order_id":
					v, err := d.Str()
					env.OrderID = v
					return err
				default:
					return d.Skip()
				}
			})
		default:
			return d.Skip()
		}
	}); err != nil {
		return nil, errors.Wrap(err, "decode event envelope")
	}
	if env.ID == "" || env.Type == "" {
		return nil, errors.New("event envelope missing id or type")
	}
	return &env, nil
}
