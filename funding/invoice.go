// Package funding credits ledger accounts from BSV funding transactions and
// describes outstanding payments with x402 (HTTP 402) headers.
package funding

import (
	"time"

	"github.com/google/uuid"
)

// Invoice describes the payment a principal must make before retrieval of
// a file can be authorized.
type Invoice struct {
	ID           string `json:"id"`
	ContentID    string `json:"content_id"`
	FileID       uint64 `json:"file_id"`
	Price        uint64 `json:"price"`          // Total price in ledger units
	PricePerByte uint64 `json:"price_per_byte"` // Rate the price was fixed at
	FileSize     uint64 `json:"file_size"`      // Content size in bytes
	PaymentAddr  string `json:"payment_addr"`   // BSV address that funds accounts
	Expiry       int64  `json:"expiry"`         // Unix timestamp
}

// NewInvoice creates an invoice valid for ttl from now.
func NewInvoice(contentID string, fileID, price, fileSize uint64, paymentAddr string, now time.Time, ttl time.Duration) *Invoice {
	inv := &Invoice{
		ID:          uuid.NewString(),
		ContentID:   contentID,
		FileID:      fileID,
		Price:       price,
		FileSize:    fileSize,
		PaymentAddr: paymentAddr,
		Expiry:      now.Add(ttl).Unix(),
	}
	if fileSize > 0 {
		inv.PricePerByte = price / fileSize
	}
	return inv
}

// IsExpired reports whether the invoice has passed its expiry time at now.
func (inv *Invoice) IsExpired(now time.Time) bool {
	return now.Unix() > inv.Expiry
}
