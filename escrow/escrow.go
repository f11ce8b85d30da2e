// Package escrow is the escrow ledger: it locks a file's price between
// deposit and either release to the storage provider or refund to the payer.
//
// The only write the escrow ledger makes into the file ledger goes through
// registry.PaymentPort, inside the same ledger transaction as the escrow
// mutation, so a failed deposit or refund never leaves one ledger updated
// without the other.
package escrow

import (
	"errors"
	"fmt"
	"math"
	"time"

	logging "github.com/ipfs/go-log/v2"

	"github.com/bitfsorg/filepay-go/access"
	"github.com/bitfsorg/filepay-go/ledger"
	"github.com/bitfsorg/filepay-go/registry"
)

var log = logging.Logger("filepay/escrow")

// DefaultRefundWindow is how long a deposit stays locked before the payer
// can be refunded without operator override.
const DefaultRefundWindow = 7 * 24 * time.Hour

var (
	bucketEscrows = []byte("escrows")
	bucketByFile  = []byte("escrow_by_file")
	bucketTotals  = []byte("escrow_totals")

	keyEscrowed = []byte("escrowed")
	keyReleased = []byte("released")
	keyRefunded = []byte("refunded")
)

// Ledger is the escrow ledger.
type Ledger struct {
	log          *ledger.Log
	files        registry.PaymentPort
	operators    *access.Operators
	provider     string
	refundWindow time.Duration
}

// Config holds the escrow ledger's persisted settings.
type Config struct {
	// Provider is the identity released funds are paid to.
	Provider string
	// RefundWindow defaults to DefaultRefundWindow when zero.
	RefundWindow time.Duration
}

// New creates an escrow ledger on l. files is the payment port obtained from
// the file ledger with registry.Registry.BindPaymentPort.
func New(l *ledger.Log, files registry.PaymentPort, operators *access.Operators, cfg Config) (*Ledger, error) {
	if files == nil {
		return nil, fmt.Errorf("%w: payment port is nil", ErrInvalidInput)
	}
	provider := access.Normalize(cfg.Provider)
	if provider == "" {
		return nil, fmt.Errorf("%w: provider is empty", ErrInvalidInput)
	}
	if ledger.IsReserved(provider) {
		return nil, fmt.Errorf("%w: provider %q is a reserved account", ErrInvalidInput, provider)
	}
	window := cfg.RefundWindow
	if window == 0 {
		window = DefaultRefundWindow
	}
	if window < 0 {
		return nil, fmt.Errorf("%w: negative refund window", ErrInvalidInput)
	}
	if err := l.EnsureBuckets(bucketEscrows, bucketByFile, bucketTotals); err != nil {
		return nil, err
	}
	return &Ledger{
		log:          l,
		files:        files,
		operators:    operators,
		provider:     provider,
		refundWindow: window,
	}, nil
}

// RefundWindow returns the configured refund window.
func (e *Ledger) RefundWindow() time.Duration { return e.refundWindow }

// Provider returns the identity released funds are paid to.
func (e *Ledger) Provider() string { return e.provider }

// DepositForFile locks amount from payer's account against fileID and moves
// the file to Paid. The file's price must be matched exactly.
func (e *Ledger) DepositForFile(payer string, fileID, amount uint64) (*Record, error) {
	payer = access.Normalize(payer)
	if payer == "" {
		return nil, fmt.Errorf("%w: payer is empty", ErrInvalidInput)
	}
	if ledger.IsReserved(payer) {
		return nil, fmt.Errorf("%w: payer %q is a reserved account", ErrInvalidInput, payer)
	}

	var rec Record
	err := e.log.Update(func(tx *ledger.Tx) error {
		file, err := e.files.File(tx, fileID)
		if err != nil {
			if errors.Is(err, registry.ErrNotFound) {
				return fmt.Errorf("%w: file %d", ErrNotFound, fileID)
			}
			return err
		}
		if amount != file.Price {
			return fmt.Errorf("%w: got %d, price is %d", ErrAmountMismatch, amount, file.Price)
		}
		exists, err := tx.Has(bucketByFile, ledger.IDKey(fileID))
		if err != nil {
			return err
		}
		if exists || file.Status != registry.StatusUploaded {
			return fmt.Errorf("%w: file %d is %s", ErrAlreadyPaid, fileID, file.Status)
		}

		if err := tx.Transfer(payer, ledger.EscrowAccount, amount); err != nil {
			return err
		}

		id, err := tx.NextID(bucketEscrows)
		if err != nil {
			return err
		}
		rec = Record{
			ID:       id,
			FileID:   fileID,
			Payer:    payer,
			Provider: e.provider,
			Amount:   amount,
			LockedAt: tx.Now().Unix(),
		}
		if err := tx.Put(bucketEscrows, ledger.IDKey(id), &rec); err != nil {
			return err
		}
		if err := tx.PutRaw(bucketByFile, ledger.IDKey(fileID), ledger.IDKey(id)); err != nil {
			return err
		}
		if err := addTotal(tx, keyEscrowed, amount); err != nil {
			return err
		}
		if err := tx.Emit(ledger.Event{
			Kind:      ledger.EventDeposited,
			FileID:    fileID,
			EscrowID:  id,
			ContentID: file.ContentID,
			Actor:     payer,
			Amount:    amount,
		}); err != nil {
			return err
		}
		return e.files.LinkPayment(tx, fileID, payer, amount)
	})
	if err != nil {
		return nil, err
	}

	log.Infow("deposit locked", "escrow", rec.ID, "file", fileID, "payer", payer, "amount", amount)
	return &rec, nil
}

// ReleasePayment pays the locked amount of fileID's escrow to the provider.
// The file must be Stored (or already Retrieved). Operator only.
func (e *Ledger) ReleasePayment(caller string, fileID uint64) (*Record, error) {
	if err := e.operators.Require(caller); err != nil {
		return nil, err
	}

	var rec *Record
	err := e.log.Update(func(tx *ledger.Tx) error {
		var err error
		if rec, err = escrowForFile(tx, fileID); err != nil {
			return err
		}
		if rec.Finalized() {
			return fmt.Errorf("%w: escrow %d", ErrAlreadyFinalized, rec.ID)
		}
		file, err := e.files.File(tx, fileID)
		if err != nil {
			return err
		}
		if !file.Status.IsStored() {
			return fmt.Errorf("%w: file %d is %s", ErrStorageNotConfirmed, fileID, file.Status)
		}

		if err := tx.Transfer(ledger.EscrowAccount, rec.Provider, rec.Amount); err != nil {
			return err
		}
		rec.Released = true
		rec.FinalizedAt = tx.Now().Unix()
		if err := tx.Put(bucketEscrows, ledger.IDKey(rec.ID), rec); err != nil {
			return err
		}
		if err := addTotal(tx, keyReleased, rec.Amount); err != nil {
			return err
		}
		return tx.Emit(ledger.Event{
			Kind:      ledger.EventReleased,
			FileID:    fileID,
			EscrowID:  rec.ID,
			ContentID: file.ContentID,
			Actor:     access.Normalize(caller),
			Amount:    rec.Amount,
		})
	})
	if err != nil {
		return nil, err
	}

	log.Infow("escrow released", "escrow", rec.ID, "file", fileID, "provider", rec.Provider, "amount", rec.Amount)
	return rec, nil
}

// RefundPayment returns the locked amount of fileID's escrow to the payer
// once the refund window has elapsed, provided storage was never confirmed.
// A Paid file is voided in the same transaction. Operator only.
func (e *Ledger) RefundPayment(caller string, fileID uint64) (*Record, error) {
	if err := e.operators.Require(caller); err != nil {
		return nil, err
	}

	var rec *Record
	err := e.log.Update(func(tx *ledger.Tx) error {
		var err error
		if rec, err = escrowForFile(tx, fileID); err != nil {
			return err
		}
		if at := rec.RefundableAt(e.refundWindow); tx.Now().Before(at) {
			return fmt.Errorf("%w: refundable at %s", ErrTooEarly, at.UTC().Format(time.RFC3339))
		}
		if rec.Finalized() {
			return fmt.Errorf("%w: escrow %d", ErrAlreadyFinalized, rec.ID)
		}
		file, err := e.files.File(tx, fileID)
		if err != nil {
			return err
		}
		if file.Status.IsStored() {
			return fmt.Errorf("%w: file %d is %s", ErrAlreadyStored, fileID, file.Status)
		}
		return e.refund(tx, rec, file, caller, ledger.EventRefunded)
	})
	if err != nil {
		return nil, err
	}

	log.Infow("escrow refunded", "escrow", rec.ID, "file", fileID, "payer", rec.Payer, "amount", rec.Amount)
	return rec, nil
}

// EmergencyRefund returns the locked amount of an escrow to the payer,
// bypassing the refund window and the stored check. It is an operator
// override for exceptional cases; finalisation guards still apply.
func (e *Ledger) EmergencyRefund(caller string, escrowID uint64) (*Record, error) {
	if err := e.operators.Require(caller); err != nil {
		return nil, err
	}

	var rec *Record
	err := e.log.Update(func(tx *ledger.Tx) error {
		var err error
		if rec, err = loadEscrow(tx, escrowID); err != nil {
			return err
		}
		if rec.Finalized() {
			return fmt.Errorf("%w: escrow %d", ErrAlreadyFinalized, rec.ID)
		}
		file, err := e.files.File(tx, rec.FileID)
		if err != nil {
			return err
		}
		return e.refund(tx, rec, file, caller, ledger.EventEmergencyRefunded)
	})
	if err != nil {
		return nil, err
	}

	log.Warnw("emergency refund", "escrow", rec.ID, "file", rec.FileID, "payer", rec.Payer, "amount", rec.Amount, "by", caller)
	return rec, nil
}

func (e *Ledger) refund(tx *ledger.Tx, rec *Record, file *registry.FileRecord, caller, kind string) error {
	if err := tx.Transfer(ledger.EscrowAccount, rec.Payer, rec.Amount); err != nil {
		return err
	}
	rec.Refunded = true
	rec.FinalizedAt = tx.Now().Unix()
	if err := tx.Put(bucketEscrows, ledger.IDKey(rec.ID), rec); err != nil {
		return err
	}
	if err := addTotal(tx, keyRefunded, rec.Amount); err != nil {
		return err
	}
	if err := tx.Emit(ledger.Event{
		Kind:      kind,
		FileID:    rec.FileID,
		EscrowID:  rec.ID,
		ContentID: file.ContentID,
		Actor:     access.Normalize(caller),
		Amount:    rec.Amount,
	}); err != nil {
		return err
	}
	return e.files.VoidPayment(tx, rec.FileID)
}

func loadEscrow(tx *ledger.Tx, escrowID uint64) (*Record, error) {
	var rec Record
	ok, err := tx.Get(bucketEscrows, ledger.IDKey(escrowID), &rec)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("%w: escrow %d", ErrNotFound, escrowID)
	}
	return &rec, nil
}

func escrowForFile(tx *ledger.Tx, fileID uint64) (*Record, error) {
	raw, err := tx.GetRaw(bucketByFile, ledger.IDKey(fileID))
	if err != nil {
		return nil, err
	}
	if raw == nil {
		return nil, fmt.Errorf("%w: no escrow for file %d", ErrNotFound, fileID)
	}
	return loadEscrow(tx, ledger.KeyID(raw))
}

func addTotal(tx *ledger.Tx, key []byte, amount uint64) error {
	cur, err := totalIn(tx, key)
	if err != nil {
		return err
	}
	if cur > math.MaxUint64-amount {
		return fmt.Errorf("%w: total %s", ledger.ErrBalanceOverflow, key)
	}
	return tx.PutRaw(bucketTotals, key, ledger.IDKey(cur+amount))
}

func totalIn(tx *ledger.Tx, key []byte) (uint64, error) {
	raw, err := tx.GetRaw(bucketTotals, key)
	if err != nil || raw == nil {
		return 0, err
	}
	return ledger.KeyID(raw), nil
}
