// Package payment answers whether a principal has paid for a resource.
//
// Verification is fail-closed: any collaborator fault yields false, never
// success.
package payment

import (
	"context"
	"errors"

	logging "github.com/ipfs/go-log/v2"

	"github.com/bitfsorg/filepay-go/access"
	"github.com/bitfsorg/filepay-go/escrow"
	"github.com/bitfsorg/filepay-go/registry"
)

var log = logging.Logger("filepay/payment")

// Files resolves content ids to file ids.
type Files interface {
	FileIDByContentID(contentID string) (uint64, error)
}

// Escrows resolves file ids to escrow records.
type Escrows interface {
	GetEscrowByFile(fileID uint64) (*escrow.Record, error)
}

// Compile-time interface checks.
var (
	_ Files   = (*registry.Registry)(nil)
	_ Escrows = (*escrow.Ledger)(nil)
)

// Verifier is the read-only payment query over the two ledgers.
type Verifier struct {
	files   Files
	escrows Escrows
}

// NewVerifier creates a Verifier.
func NewVerifier(files Files, escrows Escrows) *Verifier {
	return &Verifier{files: files, escrows: escrows}
}

// VerifyPayment reports whether principal holds an unrefunded, positive
// escrow for the file registered under contentID.
func (v *Verifier) VerifyPayment(ctx context.Context, contentID, principal string) bool {
	if v == nil || v.files == nil || v.escrows == nil {
		return false
	}
	if ctx.Err() != nil {
		return false
	}
	if contentID == "" || access.Normalize(principal) == "" {
		return false
	}

	fileID, err := v.files.FileIDByContentID(contentID)
	if err != nil {
		if !errors.Is(err, registry.ErrNotFound) {
			log.Warnw("payment lookup failed", "cid", contentID, "stage", "file", "err", err)
		}
		return false
	}

	rec, err := v.escrows.GetEscrowByFile(fileID)
	if err != nil {
		if !errors.Is(err, escrow.ErrNotFound) {
			log.Warnw("payment lookup failed", "cid", contentID, "stage", "escrow", "err", err)
		}
		return false
	}
	if rec == nil || rec.Refunded || rec.Amount == 0 {
		return false
	}
	return access.Same(rec.Payer, principal)
}
