package api

import (
	"io"
	"net/http"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"

	"github.com/xenking/oolio-checkout/internal/domain/webhook"
)

// maxWebhookBody bounds gateway payloads; Stripe events are well under this.
const maxWebhookBody = 256 << 10

// NewWebhookHandler returns the payment gateway webhook ingress. Signature
// failures are rejected with 400 so the gateway retries with a fresh
// signature; everything past verification is acknowledged with 200 and any
// processing trouble stays on our side.
func NewWebhookHandler(processor *webhook.Processor) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}

		payload, err := io.ReadAll(io.LimitReader(r.Body, maxWebhookBody))
		if err != nil {
			http.Error(w, "read body", http.StatusBadRequest)
			return
		}

		res, err := processor.HandleEvent(r.Context(), payload, r.Header.Get("Stripe-Signature"))
		if err != nil {
			if errors.Is(err, webhook.ErrInvalidSignature) {
				http.Error(w, "invalid signature", http.StatusBadRequest)
				return
			}
			zctx.From(r.Context()).Error("Webhook processing failed", zap.Error(err))
			http.Error(w, "internal error", http.StatusInternalServerError)
			return
		}

		zctx.From(r.Context()).Info("Webhook acknowledged",
			zap.String("event_id", res.EventID),
			zap.String("type", res.Type),
			zap.Bool("duplicate", res.Duplicate),
			zap.Bool("ignored", res.Ignored),
		)
		w.WriteHeader(http.StatusOK)
	})
}
