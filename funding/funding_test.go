package funding

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/bsv-blockchain/go-sdk/chainhash"
	"github.com/bsv-blockchain/go-sdk/script"
	"github.com/bsv-blockchain/go-sdk/transaction"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bitfsorg/filepay-go/chain"
	"github.com/bitfsorg/filepay-go/ledger"
)

const (
	payTo     = "1A1zP1eP5QGefi2DMPTfTL5SLmv7DivfNa"
	otherAddr = "1BvBMSEYstWetqTFn5Au4m4GFg7xJaNVN2"
)

type payment struct {
	addr string
	sats uint64
}

// fundingTx builds a transaction with one dummy input derived from seed, so
// distinct seeds give distinct txids.
func fundingTx(t *testing.T, seed string, outs ...payment) ([]byte, string) {
	t.Helper()
	tx := transaction.NewTransaction()
	src := chainhash.DoubleHashH([]byte(seed))
	tx.AddInput(&transaction.TransactionInput{
		SourceTXID:       &src,
		SourceTxOutIndex: 0,
		UnlockingScript:  &script.Script{},
	})
	for _, o := range outs {
		require.NoError(t, tx.PayToAddress(o.addr, o.sats))
	}
	return tx.Bytes(), tx.TxID().String()
}

// acceptingNode reports every transaction as confirmed.
func acceptingNode() *chain.Mock {
	return &chain.Mock{
		GetTxStatusFn: func(context.Context, string) (*chain.TxStatus, error) {
			return &chain.TxStatus{Confirmations: 1, Confirmed: true}, nil
		},
	}
}

func tempBook(t *testing.T, opts ...BookOption) (*Book, *ledger.Log) {
	t.Helper()
	l, err := ledger.Open(filepath.Join(t.TempDir(), "ledger.db"))
	require.NoError(t, err)
	t.Cleanup(func() { l.Close() })
	if len(opts) == 0 {
		opts = []BookOption{WithNode(acceptingNode(), 0, false)}
	}
	b, err := NewBook(l, payTo, opts...)
	require.NoError(t, err)
	return b, l
}

// ---------------------------------------------------------------------------
// VerifyProof
// ---------------------------------------------------------------------------

func TestVerifyProof_Success(t *testing.T) {
	raw, want := fundingTx(t, "ok", payment{payTo, 600}, payment{otherAddr, 50}, payment{payTo, 400})

	txid, paid, err := VerifyProof(&Proof{RawTx: raw}, payTo, 1000)
	require.NoError(t, err)
	assert.Equal(t, want, txid)
	assert.Equal(t, uint64(1000), paid)
}

func TestVerifyProof_Errors(t *testing.T) {
	wrongAddr, _ := fundingTx(t, "wrong", payment{otherAddr, 1000})
	short, _ := fundingTx(t, "short", payment{payTo, 500})
	zero, _ := fundingTx(t, "zero", payment{payTo, 0})

	tests := []struct {
		name  string
		proof *Proof
		addr  string
		min   uint64
		want  error
	}{
		{name: "nil proof", proof: nil, addr: payTo, min: 1, want: ErrInvalidParams},
		{name: "empty tx", proof: &Proof{}, addr: payTo, min: 1, want: ErrInvalidTx},
		{name: "garbage tx", proof: &Proof{RawTx: []byte{0x01, 0x02, 0x03}}, addr: payTo, min: 1, want: ErrInvalidTx},
		{name: "bad address", proof: &Proof{RawTx: short}, addr: "not-an-address", min: 1, want: ErrInvalidParams},
		{name: "no matching output", proof: &Proof{RawTx: wrongAddr}, addr: payTo, min: 1, want: ErrNoMatchingOutput},
		{name: "insufficient", proof: &Proof{RawTx: short}, addr: payTo, min: 1000, want: ErrInsufficientPayment},
		{name: "zero value", proof: &Proof{RawTx: zero}, addr: payTo, min: 0, want: ErrInsufficientPayment},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := VerifyProof(tt.proof, tt.addr, tt.min)
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

// ---------------------------------------------------------------------------
// Book
// ---------------------------------------------------------------------------

func TestNewBook_InvalidAddress(t *testing.T) {
	l, err := ledger.Open(filepath.Join(t.TempDir(), "ledger.db"))
	require.NoError(t, err)
	defer l.Close()

	_, err = NewBook(l, "bogus", WithNode(acceptingNode(), 0, false))
	assert.ErrorIs(t, err, ErrInvalidParams)
}

func TestNewBook_RequiresNode(t *testing.T) {
	l, err := ledger.Open(filepath.Join(t.TempDir(), "ledger.db"))
	require.NoError(t, err)
	defer l.Close()

	_, err = NewBook(l, payTo)
	assert.ErrorIs(t, err, ErrNoNode)

	_, err = NewBook(l, payTo, WithNode(nil, 0, false))
	assert.ErrorIs(t, err, ErrNoNode)
}

func TestBook_FundForgedTransaction(t *testing.T) {
	// A hand-built transaction spending an invented outpoint pays payTo on
	// paper; the node has never seen it.
	unknown := &chain.Mock{
		GetTxStatusFn: func(context.Context, string) (*chain.TxStatus, error) {
			return nil, chain.ErrTxNotFound
		},
	}
	b, l := tempBook(t, WithNode(unknown, 0, false))
	raw, _ := fundingTx(t, "forged", payment{payTo, 2_100_000_000_000_000})

	_, err := b.Fund(context.Background(), "mallory", &Proof{RawTx: raw})
	assert.ErrorIs(t, err, ErrUnconfirmed)

	bal, err := l.Balance("mallory")
	require.NoError(t, err)
	assert.Zero(t, bal)
}

func TestBook_Fund(t *testing.T) {
	b, l := tempBook(t)
	raw, txid := fundingTx(t, "fund-1", payment{payTo, 2500})

	rec, err := b.Fund(context.Background(), " Alice ", &Proof{RawTx: raw})
	require.NoError(t, err)
	assert.Equal(t, txid, rec.TxID)
	assert.Equal(t, "alice", rec.Account)
	assert.Equal(t, uint64(2500), rec.Amount)
	assert.Equal(t, uint64(2500), rec.Balance)

	bal, err := l.Balance("alice")
	require.NoError(t, err)
	assert.Equal(t, uint64(2500), bal)

	got, ok, err := b.Receipt(txid)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, rec, got)

	events, err := l.Events(0, 0)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, ledger.EventAccountFunded, events[0].Kind)
	assert.Equal(t, "txid="+txid, events[0].Detail)
}

func TestBook_FundReplay(t *testing.T) {
	b, l := tempBook(t)
	raw, _ := fundingTx(t, "replay", payment{payTo, 100})

	_, err := b.Fund(context.Background(), "alice", &Proof{RawTx: raw})
	require.NoError(t, err)

	_, err = b.Fund(context.Background(), "bob", &Proof{RawTx: raw})
	assert.ErrorIs(t, err, ErrReplayed)

	bal, err := l.Balance("bob")
	require.NoError(t, err)
	assert.Zero(t, bal)
}

func TestBook_FundInvalidAccount(t *testing.T) {
	b, _ := tempBook(t)
	raw, _ := fundingTx(t, "acct", payment{payTo, 100})

	_, err := b.Fund(context.Background(), "", &Proof{RawTx: raw})
	assert.ErrorIs(t, err, ErrInvalidParams)

	_, err = b.Fund(context.Background(), ledger.EscrowAccount, &Proof{RawTx: raw})
	assert.ErrorIs(t, err, ErrInvalidParams)

	_, ok, err := b.Receipt("missing")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestBook_FundWithNode(t *testing.T) {
	raw, txid := fundingTx(t, "node", payment{payTo, 100})
	var broadcasted string

	node := &chain.Mock{
		BroadcastTxFn: func(_ context.Context, rawHex string) (string, error) {
			broadcasted = rawHex
			return "", errors.New("txn-already-known")
		},
		GetTxStatusFn: func(_ context.Context, id string) (*chain.TxStatus, error) {
			assert.Equal(t, txid, id)
			return &chain.TxStatus{Confirmations: 1, Confirmed: true}, nil
		},
	}
	b, _ := tempBook(t, WithNode(node, 1, true))

	_, err := b.Fund(context.Background(), "alice", &Proof{RawTx: raw})
	require.NoError(t, err)
	assert.NotEmpty(t, broadcasted)
}

func TestBook_FundUnconfirmed(t *testing.T) {
	mempool := &chain.Mock{
		GetTxStatusFn: func(context.Context, string) (*chain.TxStatus, error) {
			return &chain.TxStatus{}, nil
		},
	}
	b, l := tempBook(t, WithNode(mempool, 1, false))
	raw, _ := fundingTx(t, "mempool", payment{payTo, 100})

	_, err := b.Fund(context.Background(), "alice", &Proof{RawTx: raw})
	assert.ErrorIs(t, err, ErrUnconfirmed)
	bal, err := l.Balance("alice")
	require.NoError(t, err)
	assert.Zero(t, bal)

	unknown := &chain.Mock{
		GetTxStatusFn: func(context.Context, string) (*chain.TxStatus, error) {
			return nil, chain.ErrTxNotFound
		},
	}
	b2, _ := tempBook(t, WithNode(unknown, 0, false))
	_, err = b2.Fund(context.Background(), "alice", &Proof{RawTx: raw})
	assert.ErrorIs(t, err, ErrUnconfirmed)

	down := &chain.Mock{
		GetTxStatusFn: func(context.Context, string) (*chain.TxStatus, error) {
			return nil, chain.ErrConnectionFailed
		},
	}
	b3, _ := tempBook(t, WithNode(down, 0, false))
	_, err = b3.Fund(context.Background(), "alice", &Proof{RawTx: raw})
	assert.ErrorIs(t, err, chain.ErrConnectionFailed)
}

// ---------------------------------------------------------------------------
// Invoices and headers
// ---------------------------------------------------------------------------

func TestNewInvoice(t *testing.T) {
	now := time.Unix(1700000000, 0)
	inv := NewInvoice("abc", 3, 2048, 1024, payTo, now, 10*time.Minute)

	assert.NotEmpty(t, inv.ID)
	assert.Equal(t, uint64(2), inv.PricePerByte)
	assert.Equal(t, int64(1700000600), inv.Expiry)
	assert.False(t, inv.IsExpired(now.Add(10*time.Minute)))
	assert.True(t, inv.IsExpired(now.Add(10*time.Minute+time.Second)))

	other := NewInvoice("abc", 3, 2048, 1024, payTo, now, time.Minute)
	assert.NotEqual(t, inv.ID, other.ID)
}

func TestPaymentHeaders_RoundTrip(t *testing.T) {
	inv := NewInvoice("bafy", 1, 500, 250, payTo, time.Unix(1700000000, 0), time.Hour)

	w := httptest.NewRecorder()
	SetPaymentHeaders(w, PaymentHeadersFromInvoice(inv))
	w.WriteHeader(http.StatusPaymentRequired)

	resp := w.Result()
	assert.Equal(t, http.StatusPaymentRequired, resp.StatusCode)
	assert.Equal(t, "500", resp.Header.Get(HeaderPrice))
	assert.Equal(t, payTo, resp.Header.Get(HeaderPayTo))

	got, err := ParsePaymentHeaders(resp)
	require.NoError(t, err)
	assert.Equal(t, PaymentHeadersFromInvoice(inv), got)
}

func TestParsePaymentHeaders_Missing(t *testing.T) {
	full := func() *http.Response {
		resp := &http.Response{Header: http.Header{}}
		resp.Header.Set(HeaderPrice, "500")
		resp.Header.Set(HeaderPricePerByte, "2")
		resp.Header.Set(HeaderFileSize, "250")
		resp.Header.Set(HeaderContentID, "bafy")
		resp.Header.Set(HeaderPayTo, payTo)
		resp.Header.Set(HeaderInvoiceID, "inv")
		resp.Header.Set(HeaderExpiry, "1700000000")
		return resp
	}

	_, err := ParsePaymentHeaders(full())
	require.NoError(t, err)

	for _, h := range []string{HeaderPrice, HeaderPricePerByte, HeaderFileSize, HeaderContentID, HeaderPayTo, HeaderInvoiceID, HeaderExpiry} {
		resp := full()
		resp.Header.Del(h)
		_, err := ParsePaymentHeaders(resp)
		assert.ErrorIs(t, err, ErrMissingHeaders, h)
	}

	resp := full()
	resp.Header.Set(HeaderPrice, "lots")
	_, err = ParsePaymentHeaders(resp)
	assert.ErrorIs(t, err, ErrMissingHeaders)
}
