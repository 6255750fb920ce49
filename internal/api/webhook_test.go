package api

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-faster/errors"
	"github.com/stretchr/testify/assert"

	"github.com/xenking/oolio-checkout/internal/domain/webhook"
)

// --- Mock implementations ---

type okVerifier struct{}

func (okVerifier) Verify(_ []byte, _ string) error { return nil }

type badVerifier struct{}

func (badVerifier) Verify(_ []byte, _ string) error { return errors.New("bad mac") }

type noopDedup struct{}

func (noopDedup) MarkApplied(_ context.Context, _ string, _ time.Duration) (bool, error) {
	return true, nil
}

type recordingSettler struct {
	paid []string
}

func (s *recordingSettler) MarkPaid(_ context.Context, orderID string) error {
	s.paid = append(s.paid, orderID)
	return nil
}

func (s *recordingSettler) MarkFailed(_ context.Context, _ string) error { return nil }

// --- Tests ---

func TestWebhookHandler_Acknowledges(t *testing.T) {
	settler := &recordingSettler{}
	p := webhook.NewProcessor(okVerifier{}, noopDedup{}, settler, 0)
	h := NewWebhookHandler(p)

	body := `{"id":"evt_1","type":"payment_succeeded","data":{"order_id":"o1"}}`
	req := httptest.NewRequest(http.MethodPost, "/webhooks/payment", strings.NewReader(body))
	req.Header.Set("Stripe-Signature", "t=1,v1=abc")
	rec := httptest.NewRecorder()

	h.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []string{"o1"}, settler.paid)
}

func TestWebhookHandler_MissingSignature(t *testing.T) {
	p := webhook.NewProcessor(okVerifier{}, noopDedup{}, &recordingSettler{}, 0)
	h := NewWebhookHandler(p)

	req := httptest.NewRequest(http.MethodPost, "/webhooks/payment", strings.NewReader(`{}`))
	rec := httptest.NewRecorder()

	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestWebhookHandler_BadSignature(t *testing.T) {
	p := webhook.NewProcessor(badVerifier{}, noopDedup{}, &recordingSettler{}, 0)
	h := NewWebhookHandler(p)

	req := httptest.NewRequest(http.MethodPost, "/webhooks/payment", strings.NewReader(`{}`))
	req.Header.Set("Stripe-Signature", "t=1,v1=wrong")
	rec := httptest.NewRecorder()

	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestWebhookHandler_RejectsGet(t *testing.T) {
	p := webhook.NewProcessor(okVerifier{}, noopDedup{}, &recordingSettler{}, 0)
	h := NewWebhookHandler(p)

	req := httptest.NewRequest(http.MethodGet, "/webhooks/payment", nil)
	rec := httptest.NewRecorder()

	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}
