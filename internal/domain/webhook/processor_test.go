package webhook

import (
	"context"
	"testing"
	"time"

	"github.com/go-faster/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xenking/oolio-checkout/internal/domain/fault"
)

// --- Mock implementations ---

type mockVerifier struct {
	err error
}

func (m *mockVerifier) Verify(_ []byte, _ string) error { return m.err }

type mockDedup struct {
	seen map[string]bool
	err  error
}

func newMockDedup() *mockDedup {
	return &mockDedup{seen: make(map[string]bool)}
}

func (m *mockDedup) MarkApplied(_ context.Context, eventID string, _ time.Duration) (bool, error) {
	if m.err != nil {
		return false, m.err
	}
	if m.seen[eventID] {
		return false, nil
	}
	m.seen[eventID] = true
	return true, nil
}

type mockSettler struct {
	paid      []string
	failed    []string
	settleErr error
}

func (m *mockSettler) MarkPaid(_ context.Context, orderID string) error {
	if m.settleErr != nil {
		return m.settleErr
	}
	m.paid = append(m.paid, orderID)
	return nil
}

func (m *mockSettler) MarkFailed(_ context.Context, orderID string) error {
	if m.settleErr != nil {
		return m.settleErr
	}
	m.failed = append(m.failed, orderID)
	return nil
}

// --- Helpers ---

const succeededEvent = `{"id":"evt_1","type":"payment_succeeded","created":1735000000,"data":{"order_id":"o1","amount":"23.25"}}`

func newTestProcessor(settler *mockSettler) (*Processor, *mockDedup) {
	dedup := newMockDedup()
	return NewProcessor(&mockVerifier{}, dedup, settler, 0), dedup
}

// --- Tests ---

func TestHandleEvent_PaymentSucceeded(t *testing.T) {
	settler := &mockSettler{}
	p, _ := newTestProcessor(settler)

	res, err := p.HandleEvent(context.Background(), []byte(succeededEvent), "sig")
	require.NoError(t, err)

	assert.Equal(t, "evt_1", res.EventID)
	assert.Equal(t, "o1", res.OrderID)
	assert.False(t, res.Duplicate)
	assert.False(t, res.Ignored)
	assert.Equal(t, []string{"o1"}, settler.paid)
}

func TestHandleEvent_PaymentFailed(t *testing.T) {
	settler := &mockSettler{}
	p, _ := newTestProcessor(settler)

	payload := `{"id":"evt_2","type":"payment_failed","data":{"order_id":"o2"}}`
	res, err := p.HandleEvent(context.Background(), []byte(payload), "sig")
	require.NoError(t, err)

	assert.False(t, res.Ignored)
	assert.Equal(t, []string{"o2"}, settler.failed)
}

func TestHandleEvent_MissingSignature(t *testing.T) {
	p, _ := newTestProcessor(&mockSettler{})

	_, err := p.HandleEvent(context.Background(), []byte(succeededEvent), "")
	require.ErrorIs(t, err, ErrInvalidSignature)
	assert.True(t, fault.IsKind(err, fault.KindSignatureInvalid))
}

func TestHandleEvent_BadSignature(t *testing.T) {
	settler := &mockSettler{}
	dedup := newMockDedup()
	p := NewProcessor(&mockVerifier{err: errors.New("bad mac")}, dedup, settler, 0)

	_, err := p.HandleEvent(context.Background(), []byte(succeededEvent), "sig")
	require.ErrorIs(t, err, ErrInvalidSignature)

	// Nothing was parsed or applied.
	assert.Empty(t, settler.paid)
	assert.Empty(t, dedup.seen)
}

func TestHandleEvent_DuplicateAppliedOnce(t *testing.T) {
	settler := &mockSettler{}
	p, _ := newTestProcessor(settler)

	res, err := p.HandleEvent(context.Background(), []byte(succeededEvent), "sig")
	require.NoError(t, err)
	assert.False(t, res.Duplicate)

	res, err = p.HandleEvent(context.Background(), []byte(succeededEvent), "sig")
	require.NoError(t, err)
	assert.True(t, res.Duplicate)

	assert.Equal(t, []string{"o1"}, settler.paid)
}

func TestHandleEvent_DedupFailureStillApplies(t *testing.T) {
	settler := &mockSettler{}
	dedup := newMockDedup()
	dedup.err = errors.New("redis down")
	p := NewProcessor(&mockVerifier{}, dedup, settler, 0)

	res, err := p.HandleEvent(context.Background(), []byte(succeededEvent), "sig")
	require.NoError(t, err)

	assert.False(t, res.Duplicate)
	assert.Equal(t, []string{"o1"}, settler.paid)
}

func TestHandleEvent_UnknownTypeAcked(t *testing.T) {
	settler := &mockSettler{}
	p, _ := newTestProcessor(settler)

	payload := `{"id":"evt_3","type":"customer_updated","data":{"order_id":"o1"}}`
	res, err := p.HandleEvent(context.Background(), []byte(payload), "sig")
	require.NoError(t, err)

	assert.True(t, res.Ignored)
	assert.Empty(t, settler.paid)
	assert.Empty(t, settler.failed)
}

func TestHandleEvent_UnparseablePayloadAcked(t *testing.T) {
	p, _ := newTestProcessor(&mockSettler{})

	res, err := p.HandleEvent(context.Background(), []byte(`{"id":`), "sig")
	require.NoError(t, err)
	assert.True(t, res.Ignored)
}

func TestHandleEvent_SettleRejectionAcked(t *testing.T) {
	settler := &mockSettler{settleErr: fault.New(fault.KindInvalidState, "cannot move payment from failed to paid")}
	p, _ := newTestProcessor(settler)

	res, err := p.HandleEvent(context.Background(), []byte(succeededEvent), "sig")
	require.NoError(t, err)
	assert.True(t, res.Ignored)
}

func TestParseEnvelope_MissingID(t *testing.T) {
	_, err := parseEnvelope([]byte(`{"type":"payment_succeeded","data":{"order_id":"o1"}}`))
	require.Error(t, err)
}
