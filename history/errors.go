package history

import "errors"

var (
	// ErrNoDSN indicates the history store was enabled without a connection string.
	ErrNoDSN = errors.New("history: database dsn is empty")

	// ErrClosed indicates a forwarder was used after Close.
	ErrClosed = errors.New("history: forwarder closed")
)
