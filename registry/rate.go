package registry

import (
	"fmt"

	"github.com/bitfsorg/filepay-go/ledger"
)

// Rate returns the current price per byte.
func (r *Registry) Rate() (uint64, error) {
	var rate uint64
	err := r.log.View(func(tx *ledger.Tx) error {
		var err error
		rate, err = rateIn(tx)
		return err
	})
	return rate, err
}

// SetRate changes the price per byte for future registrations. Existing
// records keep the price they were registered with. Operator only.
func (r *Registry) SetRate(caller string, rate uint64) error {
	if err := r.operators.Require(caller); err != nil {
		return err
	}
	if rate == 0 {
		return fmt.Errorf("%w: rate per byte must be positive", ErrInvalidInput)
	}
	var old uint64
	err := r.log.Update(func(tx *ledger.Tx) error {
		var err error
		if old, err = rateIn(tx); err != nil {
			return err
		}
		if err := tx.PutRaw(bucketMeta, keyRate, ledger.IDKey(rate)); err != nil {
			return err
		}
		return tx.Emit(ledger.Event{
			Kind:   ledger.EventRateChanged,
			Actor:  caller,
			Amount: rate,
			Detail: fmt.Sprintf("old=%d", old),
		})
	})
	if err != nil {
		return err
	}
	log.Infow("rate changed", "old", old, "new", rate, "by", caller)
	return nil
}

// QuotePrice prices size bytes at the current rate without registering anything.
func (r *Registry) QuotePrice(size uint64) (uint64, error) {
	rate, err := r.Rate()
	if err != nil {
		return 0, err
	}
	return CalculateStoragePrice(size, rate)
}

func rateIn(tx *ledger.Tx) (uint64, error) {
	raw, err := tx.GetRaw(bucketMeta, keyRate)
	if err != nil {
		return 0, err
	}
	if len(raw) != 8 {
		return 0, fmt.Errorf("%w: rate not initialised", ledger.ErrCorrupted)
	}
	return ledger.KeyID(raw), nil
}
