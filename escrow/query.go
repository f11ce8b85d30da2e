package escrow

import (
	"errors"

	"github.com/bitfsorg/filepay-go/ledger"
)

// GetEscrow returns the escrow with the given id.
func (e *Ledger) GetEscrow(escrowID uint64) (*Record, error) {
	var rec *Record
	err := e.log.View(func(tx *ledger.Tx) error {
		var err error
		rec, err = loadEscrow(tx, escrowID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return rec, nil
}

// GetEscrowByFile returns the escrow locked against fileID.
func (e *Ledger) GetEscrowByFile(fileID uint64) (*Record, error) {
	var rec *Record
	err := e.log.View(func(tx *ledger.Tx) error {
		var err error
		rec, err = escrowForFile(tx, fileID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return rec, nil
}

// GetFilePaymentStatus reports the escrow state of fileID. A file without an
// escrow yields a zero status rather than an error.
func (e *Ledger) GetFilePaymentStatus(fileID uint64) (PaymentStatus, error) {
	rec, err := e.GetEscrowByFile(fileID)
	if errors.Is(err, ErrNotFound) {
		return PaymentStatus{}, nil
	}
	if err != nil {
		return PaymentStatus{}, err
	}
	return PaymentStatus{
		HasEscrow: true,
		EscrowID:  rec.ID,
		Amount:    rec.Amount,
		Released:  rec.Released,
		Refunded:  rec.Refunded,
	}, nil
}

// Totals returns the running escrow totals.
func (e *Ledger) Totals() (Totals, error) {
	var t Totals
	err := e.log.View(func(tx *ledger.Tx) error {
		var err error
		if t.Escrowed, err = totalIn(tx, keyEscrowed); err != nil {
			return err
		}
		if t.Released, err = totalIn(tx, keyReleased); err != nil {
			return err
		}
		t.Refunded, err = totalIn(tx, keyRefunded)
		return err
	})
	return t, err
}
