package chain

import (
	"context"
	"encoding/json"
	"fmt"
)

// Compile-time interface check.
var _ Service = (*RPCClient)(nil)

// BroadcastTx calls `sendrawtransaction "hex"`.
func (c *RPCClient) BroadcastTx(ctx context.Context, rawTxHex string) (string, error) {
	var txid string
	if err := c.Call(ctx, "sendrawtransaction", []interface{}{rawTxHex}, &txid); err != nil {
		return "", fmt.Errorf("%w: %v", ErrBroadcastRejected, err)
	}
	return txid, nil
}

type verboseTxResult struct {
	Confirmations int64  `json:"confirmations"`
	BlockHash     string `json:"blockhash"`
	BlockHeight   uint64 `json:"blockheight"`
}

// GetTxStatus calls `getrawtransaction "txid" true`.
func (c *RPCClient) GetTxStatus(ctx context.Context, txid string) (*TxStatus, error) {
	var result verboseTxResult
	if err := c.Call(ctx, "getrawtransaction", []interface{}{txid, true}, &result); err != nil {
		return nil, err
	}
	return &TxStatus{
		Confirmed:     result.Confirmations > 0,
		Confirmations: result.Confirmations,
		BlockHash:     result.BlockHash,
		BlockHeight:   result.BlockHeight,
	}, nil
}

// GetBestBlockHeight calls `getblockcount`.
func (c *RPCClient) GetBestBlockHeight(ctx context.Context) (uint64, error) {
	var raw json.RawMessage
	if err := c.Call(ctx, "getblockcount", nil, &raw); err != nil {
		return 0, err
	}
	// JSON numbers decode as float64.
	var height float64
	if err := json.Unmarshal(raw, &height); err != nil {
		return 0, fmt.Errorf("%w: invalid block height: %v", ErrInvalidResponse, err)
	}
	return uint64(height), nil
}
