package escrow

import "time"

// Record is one escrow. Released and Refunded are mutually exclusive; once
// either is set the record is terminal. Records are never deleted.
type Record struct {
	ID          uint64 `json:"id"`
	FileID      uint64 `json:"file_id"`
	Payer       string `json:"payer"`
	Provider    string `json:"provider"`
	Amount      uint64 `json:"amount"`
	LockedAt    int64  `json:"locked_at"`
	Released    bool   `json:"released"`
	Refunded    bool   `json:"refunded"`
	FinalizedAt int64  `json:"finalized_at,omitempty"`
}

// Finalized reports whether the escrow was released or refunded.
func (r *Record) Finalized() bool { return r.Released || r.Refunded }

// RefundableAt returns the earliest time a regular refund may be made.
func (r *Record) RefundableAt(window time.Duration) time.Time {
	return time.Unix(r.LockedAt, 0).Add(window)
}

// PaymentStatus summarises the escrow state of a file.
type PaymentStatus struct {
	HasEscrow bool   `json:"has_escrow"`
	EscrowID  uint64 `json:"escrow_id,omitempty"`
	Amount    uint64 `json:"amount"`
	Released  bool   `json:"released"`
	Refunded  bool   `json:"refunded"`
}

// Totals are the cumulative amounts that entered and left escrow.
type Totals struct {
	Escrowed uint64 `json:"escrowed"`
	Released uint64 `json:"released"`
	Refunded uint64 `json:"refunded"`
}

// Locked returns the amount currently held in escrow.
func (t Totals) Locked() uint64 {
	return t.Escrowed - t.Released - t.Refunded
}
