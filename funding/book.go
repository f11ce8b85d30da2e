package funding

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"

	logging "github.com/ipfs/go-log/v2"

	"github.com/bitfsorg/filepay-go/access"
	"github.com/bitfsorg/filepay-go/chain"
	"github.com/bitfsorg/filepay-go/ledger"
)

var log = logging.Logger("filepay/funding")

var bucketFundingTx = []byte("funding_txids")

// Receipt records one credited funding transaction.
type Receipt struct {
	TxID    string `json:"txid"`
	Account string `json:"account"`
	Amount  uint64 `json:"amount"`
	Balance uint64 `json:"balance"`
	At      int64  `json:"at"`
}

// Book credits ledger accounts from verified funding transactions.
// Each txid is credited at most once.
type Book struct {
	log              *ledger.Log
	payTo            string
	node             chain.Service
	minConfirmations int64
	broadcast        bool
}

// BookOption configures a Book.
type BookOption func(*Book)

// WithNode confirms every funding transaction with node before crediting.
// minConfirmations of zero accepts mempool transactions. When broadcast is
// set the raw transaction is submitted to the node first.
func WithNode(node chain.Service, minConfirmations int64, broadcast bool) BookOption {
	return func(b *Book) {
		b.node = node
		b.minConfirmations = minConfirmations
		b.broadcast = broadcast
	}
}

// NewBook creates a funding book that accepts payments to payTo. A node must
// be supplied with WithNode: VerifyProof only checks outputs, so a proof is
// worth nothing until the network has accepted the transaction.
func NewBook(l *ledger.Log, payTo string, opts ...BookOption) (*Book, error) {
	if err := ValidateAddress(payTo); err != nil {
		return nil, err
	}
	b := &Book{log: l, payTo: payTo}
	for _, opt := range opts {
		opt(b)
	}
	if b.node == nil {
		return nil, ErrNoNode
	}
	if err := l.EnsureBuckets(bucketFundingTx); err != nil {
		return nil, err
	}
	return b, nil
}

// PayTo returns the funding address.
func (b *Book) PayTo() string { return b.payTo }

// Fund verifies proof and credits its value to account.
func (b *Book) Fund(ctx context.Context, account string, proof *Proof) (*Receipt, error) {
	account = access.Normalize(account)
	if account == "" {
		return nil, fmt.Errorf("%w: account is empty", ErrInvalidParams)
	}
	if ledger.IsReserved(account) {
		return nil, fmt.Errorf("%w: cannot fund reserved account %s", ErrInvalidParams, account)
	}

	txid, amount, err := VerifyProof(proof, b.payTo, 1)
	if err != nil {
		return nil, err
	}
	if err := b.confirm(ctx, txid, proof.RawTx); err != nil {
		return nil, err
	}

	var rec Receipt
	err = b.log.Update(func(tx *ledger.Tx) error {
		seen, err := tx.Has(bucketFundingTx, []byte(txid))
		if err != nil {
			return err
		}
		if seen {
			return fmt.Errorf("%w: %s", ErrReplayed, txid)
		}
		if err := tx.Credit(account, amount); err != nil {
			return err
		}
		bal, err := tx.Balance(account)
		if err != nil {
			return err
		}
		rec = Receipt{TxID: txid, Account: account, Amount: amount, Balance: bal, At: tx.Now().Unix()}
		if err := tx.Put(bucketFundingTx, []byte(txid), &rec); err != nil {
			return err
		}
		return tx.Emit(ledger.Event{
			Kind:   ledger.EventAccountFunded,
			Actor:  account,
			Amount: amount,
			Detail: "txid=" + txid,
		})
	})
	if err != nil {
		return nil, err
	}

	log.Infow("account funded", "account", account, "txid", txid, "amount", amount)
	return &rec, nil
}

// Receipt returns the receipt recorded for txid.
func (b *Book) Receipt(txid string) (*Receipt, bool, error) {
	var rec Receipt
	var ok bool
	err := b.log.View(func(tx *ledger.Tx) error {
		var err error
		ok, err = tx.Get(bucketFundingTx, []byte(txid), &rec)
		return err
	})
	if err != nil || !ok {
		return nil, false, err
	}
	return &rec, true, nil
}

func (b *Book) confirm(ctx context.Context, txid string, raw []byte) error {
	if b.broadcast {
		if _, err := b.node.BroadcastTx(ctx, hex.EncodeToString(raw)); err != nil {
			// The node rejects re-broadcasts of known transactions; the status
			// lookup below decides.
			log.Debugw("funding broadcast failed", "txid", txid, "err", err)
		}
	}
	st, err := b.node.GetTxStatus(ctx, txid)
	if err != nil {
		if errors.Is(err, chain.ErrTxNotFound) {
			return fmt.Errorf("%w: %s", ErrUnconfirmed, txid)
		}
		return err
	}
	if st.Confirmations < b.minConfirmations {
		return fmt.Errorf("%w: %s has %d confirmations, need %d", ErrUnconfirmed, txid, st.Confirmations, b.minConfirmations)
	}
	return nil
}
