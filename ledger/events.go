package ledger

import "fmt"

// Event kinds emitted by the ledgers.
const (
	EventFileRegistered    = "file.registered"
	EventRateChanged       = "rate.changed"
	EventPaymentLinked     = "file.paid"
	EventStorageConfirmed  = "file.stored"
	EventFileRetrieved     = "file.retrieved"
	EventFileVoided        = "file.voided"
	EventDeposited         = "escrow.deposited"
	EventReleased          = "escrow.released"
	EventRefunded          = "escrow.refunded"
	EventEmergencyRefunded = "escrow.emergency_refunded"
	EventAccountFunded     = "account.funded"
)

// Event is one entry of the ledger journal. Events are appended in the same
// transaction as the mutation they describe.
type Event struct {
	Seq       uint64 `json:"seq"`
	Kind      string `json:"kind"`
	FileID    uint64 `json:"file_id,omitempty"`
	EscrowID  uint64 `json:"escrow_id,omitempty"`
	ContentID string `json:"content_id,omitempty"`
	Actor     string `json:"actor,omitempty"`
	Amount    uint64 `json:"amount,omitempty"`
	Detail    string `json:"detail,omitempty"`
	At        int64  `json:"at"`
}

// Emit appends ev to the journal, stamping its sequence number and time.
func (tx *Tx) Emit(ev Event) error {
	seq, err := tx.NextID(bucketEvents)
	if err != nil {
		return err
	}
	ev.Seq = seq
	ev.At = tx.now.Unix()
	if err := tx.Put(bucketEvents, IDKey(seq), &ev); err != nil {
		return err
	}
	tx.events = append(tx.events, ev)
	return nil
}

// Events returns up to limit journal entries with Seq > after, oldest first.
// A non-positive limit returns all of them.
func (l *Log) Events(after uint64, limit int) ([]Event, error) {
	var out []Event
	err := l.View(func(tx *Tx) error {
		b, err := tx.bucket(bucketEvents)
		if err != nil {
			return err
		}
		c := b.Cursor()
		for k, v := c.Seek(IDKey(after + 1)); k != nil; k, v = c.Next() {
			var ev Event
			if err := decodeGob(v, &ev); err != nil {
				return fmt.Errorf("%w: event %d: %w", ErrCorrupted, KeyID(k), err)
			}
			out = append(out, ev)
			if limit > 0 && len(out) >= limit {
				break
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}
