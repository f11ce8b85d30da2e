package registry

import (
	"fmt"

	"github.com/bitfsorg/filepay-go/access"
	"github.com/bitfsorg/filepay-go/ledger"
)

// ConfirmStorage moves a Paid file to Stored once the storage collaborator
// has confirmed durability. Operator only.
func (r *Registry) ConfirmStorage(caller string, fileID uint64) error {
	if err := r.operators.Require(caller); err != nil {
		return err
	}
	err := r.log.Update(func(tx *ledger.Tx) error {
		return transition(tx, fileID, StatusPaid, StatusStored, func(rec *FileRecord) {
			rec.StoredAt = tx.Now().Unix()
		}, ledger.Event{Kind: ledger.EventStorageConfirmed, Actor: caller})
	})
	if err != nil {
		return err
	}
	log.Infow("storage confirmed", "file", fileID, "by", caller)
	return nil
}

// MarkRetrieved moves a Stored file to the terminal Retrieved status.
// Authorization is the caller's concern: it must only be invoked after a
// retrieval capability for the file was verified.
func (r *Registry) MarkRetrieved(fileID uint64) error {
	return r.log.Update(func(tx *ledger.Tx) error {
		return transition(tx, fileID, StatusStored, StatusRetrieved, func(rec *FileRecord) {
			rec.RetrievedAt = tx.Now().Unix()
		}, ledger.Event{Kind: ledger.EventFileRetrieved})
	})
}

// transition applies from → to on fileID, runs stamp, and emits ev.
func transition(tx *ledger.Tx, fileID uint64, from, to Status, stamp func(*FileRecord), ev ledger.Event) error {
	rec, err := loadFile(tx, fileID)
	if err != nil {
		return err
	}
	if rec.Status != from {
		return fmt.Errorf("%w: file %d is %s, want %s", ErrInvalidState, fileID, rec.Status, from)
	}
	rec.Status = to
	stamp(rec)
	if err := tx.Put(bucketFiles, ledger.IDKey(fileID), rec); err != nil {
		return err
	}
	ev.FileID = fileID
	ev.ContentID = rec.ContentID
	return tx.Emit(ev)
}

// PaymentPort is the narrow write capability the escrow ledger holds into
// the file ledger. Its methods join the caller's ledger transaction so the
// escrow and file effects commit or abort together.
type PaymentPort interface {
	// File reads a record inside tx.
	File(tx *ledger.Tx, fileID uint64) (*FileRecord, error)

	// LinkPayment moves an Uploaded file to Paid.
	LinkPayment(tx *ledger.Tx, fileID uint64, payer string, amount uint64) error

	// VoidPayment moves a Paid file to Voided after its escrow was refunded.
	// Files in any other status are left untouched.
	VoidPayment(tx *ledger.Tx, fileID uint64) error
}

// BindPaymentPort hands out the payment port. It succeeds once per Registry;
// the escrow ledger claims it at wiring time.
func (r *Registry) BindPaymentPort() (PaymentPort, error) {
	if !r.portBound.CompareAndSwap(false, true) {
		return nil, ErrPortBound
	}
	return paymentPort{}, nil
}

type paymentPort struct{}

func (paymentPort) File(tx *ledger.Tx, fileID uint64) (*FileRecord, error) {
	return loadFile(tx, fileID)
}

func (paymentPort) LinkPayment(tx *ledger.Tx, fileID uint64, payer string, amount uint64) error {
	return transition(tx, fileID, StatusUploaded, StatusPaid, func(rec *FileRecord) {
		rec.PaidAt = tx.Now().Unix()
	}, ledger.Event{Kind: ledger.EventPaymentLinked, Actor: access.Normalize(payer), Amount: amount})
}

func (paymentPort) VoidPayment(tx *ledger.Tx, fileID uint64) error {
	rec, err := loadFile(tx, fileID)
	if err != nil {
		return err
	}
	if rec.Status != StatusPaid {
		return nil
	}
	return transition(tx, fileID, StatusPaid, StatusVoided, func(rec *FileRecord) {
		rec.VoidedAt = tx.Now().Unix()
	}, ledger.Event{Kind: ledger.EventFileVoided})
}
