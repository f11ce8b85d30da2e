// Package chain talks to a BSV node to confirm that funding transactions
// were accepted by the network.
package chain

import "context"

// Service is the subset of node functionality the funding book relies on.
type Service interface {
	// BroadcastTx submits a raw transaction hex and returns its txid.
	BroadcastTx(ctx context.Context, rawTxHex string) (string, error)

	// GetTxStatus returns the confirmation status of a transaction.
	GetTxStatus(ctx context.Context, txid string) (*TxStatus, error)

	// GetBestBlockHeight returns the height of the current chain tip.
	GetBestBlockHeight(ctx context.Context) (uint64, error)
}

// TxStatus represents the confirmation status of a transaction.
// A known transaction with zero confirmations is in the mempool.
type TxStatus struct {
	Confirmed     bool   `json:"confirmed"`
	Confirmations int64  `json:"confirmations"`
	BlockHash     string `json:"block_hash"`
	BlockHeight   uint64 `json:"block_height"`
}
