package httpapi

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/filecoin-project/go-clock"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bitfsorg/filepay-go/access"
	"github.com/bitfsorg/filepay-go/capability"
	"github.com/bitfsorg/filepay-go/escrow"
	"github.com/bitfsorg/filepay-go/funding"
	"github.com/bitfsorg/filepay-go/ledger"
	"github.com/bitfsorg/filepay-go/metrics"
	"github.com/bitfsorg/filepay-go/registry"
	"github.com/bitfsorg/filepay-go/service"
	"github.com/bitfsorg/filepay-go/storage"
)

const (
	operator = "ops@filepay"
	provider = "provider@filepay"
)

type harness struct {
	srv   *httptest.Server
	log   *ledger.Log
	clock *clock.Mock
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	clk := clock.NewMock()
	clk.Set(time.Unix(1700000000, 0))
	l, err := ledger.Open(filepath.Join(t.TempDir(), "ledger.db"), ledger.WithClock(clk))
	require.NoError(t, err)
	t.Cleanup(func() { l.Close() })

	store, err := storage.NewFileStore(filepath.Join(t.TempDir(), "objects"))
	require.NoError(t, err)
	m := metrics.New()

	svc, err := service.New(l, service.Config{
		Operators:   []string{operator},
		Provider:    provider,
		RatePerByte: 3,
	}, service.WithStorage(store), service.WithMetrics(m))
	require.NoError(t, err)

	srv := httptest.NewServer(New(svc, m.Handler()))
	t.Cleanup(srv.Close)
	return &harness{srv: srv, log: l, clock: clk}
}

func (h *harness) do(t *testing.T, method, path, caller string, body io.Reader, headers ...string) *http.Response {
	t.Helper()
	req, err := http.NewRequest(method, h.srv.URL+path, body)
	require.NoError(t, err)
	if caller != "" {
		req.Header.Set(HeaderPrincipal, caller)
	}
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	resp, err := h.srv.Client().Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func (h *harness) doJSON(t *testing.T, method, path, caller string, in interface{}) *http.Response {
	t.Helper()
	var body io.Reader
	if in != nil {
		data, err := json.Marshal(in)
		require.NoError(t, err)
		body = bytes.NewReader(data)
	}
	return h.do(t, method, path, caller, body)
}

func decode(t *testing.T, resp *http.Response, v interface{}) {
	t.Helper()
	require.NoError(t, json.NewDecoder(resp.Body).Decode(v))
}

func (h *harness) fund(t *testing.T, account string, amount uint64) {
	t.Helper()
	require.NoError(t, h.log.Update(func(tx *ledger.Tx) error {
		return tx.Credit(account, amount)
	}))
}

// ---------------------------------------------------------------------------
// End to end
// ---------------------------------------------------------------------------

func TestHTTP_FullLifecycle(t *testing.T) {
	h := newHarness(t)
	data := []byte("bytes served over http")
	cid, err := storage.ContentID(data)
	require.NoError(t, err)

	// Register.
	resp := h.doJSON(t, http.MethodPost, "/v1/files", "alice", registerRequest{ContentID: cid, Size: uint64(len(data))})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	var file registry.FileRecord
	decode(t, resp, &file)
	assert.Equal(t, uint64(3*len(data)), file.Price)
	assert.Equal(t, fmt.Sprintf("/v1/files/%d", file.ID), resp.Header.Get("Location"))

	// Unpaid authorize answers 402 with x402 headers.
	resp = h.doJSON(t, http.MethodPost, "/v1/authorize", "", authorizeRequest{ContentID: cid, Principal: "alice"})
	require.Equal(t, http.StatusPaymentRequired, resp.StatusCode)
	assert.Equal(t, fmt.Sprint(file.Price), resp.Header.Get(funding.HeaderPrice))
	assert.Equal(t, cid, resp.Header.Get(funding.HeaderContentID))
	assert.Equal(t, "3", resp.Header.Get(funding.HeaderPricePerByte))

	// Deposit without funds is a payment problem.
	resp = h.doJSON(t, http.MethodPost, fmt.Sprintf("/v1/files/%d/deposit", file.ID), "alice", amountRequest{Amount: file.Price})
	assert.Equal(t, http.StatusPaymentRequired, resp.StatusCode)

	h.fund(t, "alice", file.Price)
	resp = h.doJSON(t, http.MethodPost, fmt.Sprintf("/v1/files/%d/deposit", file.ID), "alice", amountRequest{Amount: file.Price})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	var esc escrow.Record
	decode(t, resp, &esc)
	assert.Equal(t, file.Price, esc.Amount)

	// Only an operator may store.
	resp = h.do(t, http.MethodPut, fmt.Sprintf("/v1/files/%d/content", file.ID), "alice", bytes.NewReader(data))
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
	resp = h.do(t, http.MethodPut, fmt.Sprintf("/v1/files/%d/content", file.ID), operator, bytes.NewReader(data))
	require.Equal(t, http.StatusOK, resp.StatusCode)
	decode(t, resp, &file)
	assert.Equal(t, registry.StatusStored, file.Status)

	resp = h.doJSON(t, http.MethodPost, fmt.Sprintf("/v1/files/%d/release", file.ID), operator, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	// Authorize now succeeds.
	resp = h.doJSON(t, http.MethodPost, "/v1/authorize", "", authorizeRequest{ContentID: cid, Principal: "alice"})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var auth authorizeResponse
	decode(t, resp, &auth)
	assert.NotEmpty(t, auth.Token)
	assert.Equal(t, int64(3600), auth.ExpiresInSeconds)

	// Retrieval.
	resp = h.do(t, http.MethodGet, "/v1/content/"+cid, "", nil)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	assert.NotEmpty(t, resp.Header.Get("WWW-Authenticate"))

	resp = h.do(t, http.MethodGet, "/v1/content/"+cid, "", nil, "Authorization", "Bearer forged.token.value")
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	resp = h.do(t, http.MethodGet, "/v1/content/"+cid, "", nil, "Authorization", "Bearer "+auth.Token)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	got, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Equal(t, data, got)

	// Reads.
	resp = h.do(t, http.MethodGet, "/v1/by-cid/"+cid, "", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	decode(t, resp, &file)
	assert.Equal(t, registry.StatusRetrieved, file.Status)

	resp = h.do(t, http.MethodGet, fmt.Sprintf("/v1/files/%d/payment-status", file.ID), "", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var ps escrow.PaymentStatus
	decode(t, resp, &ps)
	assert.True(t, ps.HasEscrow)
	assert.True(t, ps.Released)

	resp = h.do(t, http.MethodGet, "/v1/escrow/totals", "", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var totals totalsResponse
	decode(t, resp, &totals)
	assert.Equal(t, file.Price, totals.Escrowed)
	assert.Equal(t, file.Price, totals.Released)
	assert.Zero(t, totals.Locked)

	resp = h.do(t, http.MethodGet, "/v1/accounts/"+provider+"/balance", "", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var bal balanceResponse
	decode(t, resp, &bal)
	assert.Equal(t, file.Price, bal.Balance)

	resp = h.do(t, http.MethodGet, "/v1/uploaders/alice/files", "", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var list []registry.FileRecord
	decode(t, resp, &list)
	assert.Len(t, list, 1)

	// Metrics exposition.
	resp = h.do(t, http.MethodGet, "/metrics", "", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), `filepay_ledger_events_total{kind="escrow.released"} 1`)
}

func TestHTTP_RefundTooEarly(t *testing.T) {
	h := newHarness(t)
	data := []byte("refund me")
	cid, err := storage.ContentID(data)
	require.NoError(t, err)

	resp := h.doJSON(t, http.MethodPost, "/v1/files", "alice", registerRequest{ContentID: cid, Size: uint64(len(data))})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	var file registry.FileRecord
	decode(t, resp, &file)

	h.fund(t, "alice", file.Price)
	resp = h.doJSON(t, http.MethodPost, fmt.Sprintf("/v1/files/%d/deposit", file.ID), "alice", amountRequest{Amount: file.Price})
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	resp = h.doJSON(t, http.MethodPost, fmt.Sprintf("/v1/files/%d/refund", file.ID), operator, nil)
	assert.Equal(t, http.StatusTooEarly, resp.StatusCode)

	h.clock.Add(escrow.DefaultRefundWindow)
	resp = h.doJSON(t, http.MethodPost, fmt.Sprintf("/v1/files/%d/refund", file.ID), operator, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp = h.doJSON(t, http.MethodPost, fmt.Sprintf("/v1/files/%d/confirm", file.ID), operator, nil)
	assert.Equal(t, http.StatusConflict, resp.StatusCode)

	// Refunded files cannot be paid for again, so no invoice is offered.
	resp = h.doJSON(t, http.MethodPost, "/v1/authorize", "alice", authorizeRequest{ContentID: cid})
	assert.Equal(t, http.StatusGone, resp.StatusCode)
	assert.Empty(t, resp.Header.Get(funding.HeaderPrice))
}

func TestHTTP_StoreContentTooLarge(t *testing.T) {
	h := newHarness(t)
	prev := maxUploadSize
	maxUploadSize = 8
	t.Cleanup(func() { maxUploadSize = prev })

	data := []byte("more than eight bytes")
	cid, err := storage.ContentID(data)
	require.NoError(t, err)
	resp := h.doJSON(t, http.MethodPost, "/v1/files", "alice", registerRequest{ContentID: cid, Size: uint64(len(data))})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	var file registry.FileRecord
	decode(t, resp, &file)

	h.fund(t, "alice", file.Price)
	resp = h.doJSON(t, http.MethodPost, fmt.Sprintf("/v1/files/%d/deposit", file.ID), "alice", amountRequest{Amount: file.Price})
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	resp = h.do(t, http.MethodPut, fmt.Sprintf("/v1/files/%d/content", file.ID), operator, bytes.NewReader(data))
	assert.Equal(t, http.StatusRequestEntityTooLarge, resp.StatusCode)
	var body errorBody
	decode(t, resp, &body)
	assert.Equal(t, http.StatusRequestEntityTooLarge, body.Status)

	resp = h.doJSON(t, http.MethodGet, fmt.Sprintf("/v1/files/%d", file.ID), "alice", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	decode(t, resp, &file)
	assert.Equal(t, registry.StatusPaid, file.Status)
}

func TestHTTP_BadRequests(t *testing.T) {
	h := newHarness(t)

	tests := []struct {
		method, path string
		body         string
		want         int
	}{
		{http.MethodGet, "/v1/files/abc", "", http.StatusBadRequest},
		{http.MethodGet, "/v1/files/99", "", http.StatusNotFound},
		{http.MethodPost, "/v1/files", "{", http.StatusBadRequest},
		{http.MethodPost, "/v1/files", `{"contentId":"","size":1}`, http.StatusBadRequest},
		{http.MethodGet, "/v1/price", "", http.StatusBadRequest},
		{http.MethodGet, "/v1/price?size=10", "", http.StatusOK},
		{http.MethodPost, "/v1/escrows/7/emergency-refund", "", http.StatusForbidden},
		{http.MethodPut, "/v1/rate", `{"ratePerByte":5}`, http.StatusForbidden},
		{http.MethodPost, "/v1/accounts/alice/fund", `{"rawTx":"zz"}`, http.StatusBadRequest},
		{http.MethodPost, "/v1/accounts/alice/fund", `{"rawTx":"00"}`, http.StatusNotImplemented},
		{http.MethodGet, "/v1/nowhere", "", http.StatusNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.method+" "+tt.path, func(t *testing.T) {
			resp := h.do(t, tt.method, tt.path, "alice", strings.NewReader(tt.body))
			assert.Equal(t, tt.want, resp.StatusCode)
		})
	}
}

func TestHTTP_RequestID(t *testing.T) {
	h := newHarness(t)

	resp := h.do(t, http.MethodGet, "/v1/price?size=1", "", nil)
	_, err := uuid.Parse(resp.Header.Get(HeaderRequestID))
	assert.NoError(t, err)

	id := uuid.NewString()
	resp = h.do(t, http.MethodGet, "/v1/price?size=1", "", nil, HeaderRequestID, id)
	assert.Equal(t, id, resp.Header.Get(HeaderRequestID))

	resp = h.do(t, http.MethodGet, "/v1/price?size=1", "", nil, HeaderRequestID, "not-a-uuid")
	assert.NotEqual(t, "not-a-uuid", resp.Header.Get(HeaderRequestID))
}

// ---------------------------------------------------------------------------
// Status mapping
// ---------------------------------------------------------------------------

func TestStatusOf(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{nil, http.StatusOK},
		{registry.ErrInvalidInput, http.StatusBadRequest},
		{fmt.Errorf("%w: detail", registry.ErrNotFound), http.StatusNotFound},
		{escrow.ErrNotFound, http.StatusNotFound},
		{registry.ErrDuplicateResource, http.StatusConflict},
		{escrow.ErrAlreadyPaid, http.StatusConflict},
		{escrow.ErrAlreadyFinalized, http.StatusConflict},
		{escrow.ErrAlreadyStored, http.StatusConflict},
		{escrow.ErrStorageNotConfirmed, http.StatusConflict},
		{registry.ErrInvalidState, http.StatusConflict},
		{escrow.ErrAmountMismatch, http.StatusUnprocessableEntity},
		{escrow.ErrTooEarly, http.StatusTooEarly},
		{ledger.ErrInsufficientFunds, http.StatusPaymentRequired},
		{service.ErrPaymentRequired, http.StatusPaymentRequired},
		{fmt.Errorf("%w: cid", service.ErrVoided), http.StatusGone},
		{access.ErrUnauthorized, http.StatusForbidden},
		{capability.ErrMissingAuthorization, http.StatusUnauthorized},
		{capability.ErrExpired, http.StatusForbidden},
		{capability.ErrResourceMismatch, http.StatusForbidden},
		{storage.ErrIOFailure, http.StatusBadGateway},
		{fmt.Errorf("boom"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, statusOf(tt.err), "%v", tt.err)
	}
}
