package escrow

import "errors"

var (
	// ErrNotFound indicates the file or escrow does not exist.
	ErrNotFound = errors.New("escrow: not found")

	// ErrAmountMismatch indicates the deposit does not equal the file's price.
	ErrAmountMismatch = errors.New("escrow: amount does not match price")

	// ErrAlreadyPaid indicates the file already has an escrow or is past Uploaded.
	ErrAlreadyPaid = errors.New("escrow: file already paid")

	// ErrAlreadyFinalized indicates the escrow was already released or refunded.
	ErrAlreadyFinalized = errors.New("escrow: already finalized")

	// ErrStorageNotConfirmed indicates release was attempted before the file was stored.
	ErrStorageNotConfirmed = errors.New("escrow: storage not confirmed")

	// ErrTooEarly indicates refund was attempted inside the refund window.
	ErrTooEarly = errors.New("escrow: refund window has not elapsed")

	// ErrAlreadyStored indicates refund was attempted for a stored file.
	ErrAlreadyStored = errors.New("escrow: file already stored")

	// ErrInvalidInput indicates an empty payer or a misconfigured ledger.
	ErrInvalidInput = errors.New("escrow: invalid input")
)
