package ledger

import "errors"

var (
	// ErrUnknownBucket indicates a transaction referenced a bucket that was never created.
	ErrUnknownBucket = errors.New("ledger: unknown bucket")

	// ErrInsufficientFunds indicates an account balance cannot cover a debit.
	ErrInsufficientFunds = errors.New("ledger: insufficient funds")

	// ErrBalanceOverflow indicates a credit would overflow an account balance.
	ErrBalanceOverflow = errors.New("ledger: balance overflow")

	// ErrEmptyAccount indicates an account name is empty.
	ErrEmptyAccount = errors.New("ledger: account name is empty")

	// ErrZeroAmount indicates a transfer or credit of zero units.
	ErrZeroAmount = errors.New("ledger: amount must be positive")

	// ErrSelfTransfer indicates a transfer whose source and destination are the same account.
	ErrSelfTransfer = errors.New("ledger: transfer to the same account")

	// ErrCorrupted indicates a stored value could not be decoded.
	ErrCorrupted = errors.New("ledger: stored value corrupted")
)
