package service

import "errors"

var (
	// ErrPaymentRequired indicates the principal has no valid payment for the content.
	ErrPaymentRequired = errors.New("service: payment required")

	// ErrVoided indicates the file's escrow was refunded, so it can no longer
	// be paid for.
	ErrVoided = errors.New("service: file payment voided")

	// ErrContentMismatch indicates the storage backend returned a content id
	// different from the one registered for the file.
	ErrContentMismatch = errors.New("service: stored content id does not match registration")

	// ErrSizeMismatch indicates uploaded bytes differ in length from the registered size.
	ErrSizeMismatch = errors.New("service: content size does not match registration")

	// ErrNotStored indicates content was requested before storage was confirmed.
	ErrNotStored = errors.New("service: content not stored yet")

	// ErrStorageDisabled indicates no storage backend is configured.
	ErrStorageDisabled = errors.New("service: storage backend not configured")

	// ErrFundingDisabled indicates no funding book is configured.
	ErrFundingDisabled = errors.New("service: account funding not configured")
)
