package chain

import "errors"

var (
	// ErrConnectionFailed indicates the client could not reach the node.
	ErrConnectionFailed = errors.New("chain: connection failed")

	// ErrTxNotFound indicates the node does not know the transaction.
	ErrTxNotFound = errors.New("chain: transaction not found")

	// ErrBroadcastRejected indicates the node rejected a broadcast transaction.
	ErrBroadcastRejected = errors.New("chain: broadcast rejected")

	// ErrInvalidResponse indicates the node returned a malformed or unexpected response.
	ErrInvalidResponse = errors.New("chain: invalid response")
)
