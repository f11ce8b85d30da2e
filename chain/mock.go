package chain

import "context"

// Mock is a test double for Service.
// All function fields must be set before the corresponding method is called.
type Mock struct {
	BroadcastTxFn        func(ctx context.Context, rawTxHex string) (string, error)
	GetTxStatusFn        func(ctx context.Context, txid string) (*TxStatus, error)
	GetBestBlockHeightFn func(ctx context.Context) (uint64, error)
}

var _ Service = (*Mock)(nil)

func (m *Mock) BroadcastTx(ctx context.Context, rawTxHex string) (string, error) {
	return m.BroadcastTxFn(ctx, rawTxHex)
}
func (m *Mock) GetTxStatus(ctx context.Context, txid string) (*TxStatus, error) {
	return m.GetTxStatusFn(ctx, txid)
}
func (m *Mock) GetBestBlockHeight(ctx context.Context) (uint64, error) {
	return m.GetBestBlockHeightFn(ctx)
}
