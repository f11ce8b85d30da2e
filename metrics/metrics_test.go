package metrics

import (
	"errors"
	"io"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bitfsorg/filepay-go/ledger"
)

func TestObserveEvents(t *testing.T) {
	m := New()
	m.ObserveEvents([]ledger.Event{
		{Kind: ledger.EventFileRegistered},
		{Kind: ledger.EventDeposited, Amount: 100},
		{Kind: ledger.EventDeposited, Amount: 50},
		{Kind: ledger.EventReleased, Amount: 100},
		{Kind: ledger.EventRefunded, Amount: 20},
		{Kind: ledger.EventEmergencyRefunded, Amount: 30},
	})

	assert.Equal(t, 2.0, testutil.ToFloat64(m.events.WithLabelValues(ledger.EventDeposited)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.events.WithLabelValues(ledger.EventFileRegistered)))
	assert.Equal(t, 150.0, testutil.ToFloat64(m.escrowAmount.WithLabelValues("deposited")))
	assert.Equal(t, 100.0, testutil.ToFloat64(m.escrowAmount.WithLabelValues("released")))
	assert.Equal(t, 50.0, testutil.ToFloat64(m.escrowAmount.WithLabelValues("refunded")))
}

func TestTokenAndPaymentCounters(t *testing.T) {
	m := New()
	m.TokenIssued()
	m.TokenVerified(true)
	m.TokenVerified(false)
	m.TokenVerified(false)
	m.PaymentChecked(true)
	m.PaymentChecked(false)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.tokens.WithLabelValues("issued")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.tokens.WithLabelValues("accepted")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.tokens.WithLabelValues("rejected")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.paymentChecks.WithLabelValues("paid")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.paymentChecks.WithLabelValues("unpaid")))
}

func TestStorageOp(t *testing.T) {
	m := New()
	m.StorageOp("put", 10, nil)
	m.StorageOp("put", 99, errors.New("disk full"))
	m.StorageOp("get", 0, nil)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.storageOps.WithLabelValues("put", "ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.storageOps.WithLabelValues("put", "error")))
	assert.Equal(t, 10.0, testutil.ToFloat64(m.storageBytes))
}

func TestHandler(t *testing.T) {
	m := New()
	m.TokenIssued()

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	require.Equal(t, 200, rec.Code)

	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), `filepay_capability_tokens_total{outcome="issued"} 1`)
	assert.Contains(t, string(body), "go_goroutines")
}
