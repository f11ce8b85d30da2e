package funding

import (
	"bytes"
	"fmt"
	"math"

	"github.com/bsv-blockchain/go-sdk/script"
	"github.com/bsv-blockchain/go-sdk/transaction"
)

// Proof is a submitted funding transaction.
type Proof struct {
	RawTx []byte `json:"raw_tx"`
}

// VerifyProof checks that the transaction in proof pays at least minAmount
// satoshis to payTo across its P2PKH outputs, and returns the txid and the
// total paid to payTo.
//
// Input signatures are not checked here. Callers confirm network acceptance
// separately (Book always does so through chain.Service) and track
// txids to prevent double crediting.
func VerifyProof(proof *Proof, payTo string, minAmount uint64) (string, uint64, error) {
	if proof == nil {
		return "", 0, fmt.Errorf("%w: nil funding proof", ErrInvalidParams)
	}
	if len(proof.RawTx) == 0 {
		return "", 0, fmt.Errorf("%w: empty raw transaction", ErrInvalidTx)
	}

	tx, err := transaction.NewTransactionFromBytes(proof.RawTx)
	if err != nil {
		return "", 0, fmt.Errorf("%w: %w", ErrInvalidTx, err)
	}

	expectedPKH, err := pubKeyHash(payTo)
	if err != nil {
		return "", 0, err
	}

	var (
		paid  uint64
		found bool
	)
	for _, output := range tx.Outputs {
		if output.LockingScript == nil || !output.LockingScript.IsP2PKH() {
			continue
		}
		outputPKH, err := output.LockingScript.PublicKeyHash()
		if err != nil || !bytes.Equal(outputPKH, expectedPKH) {
			continue
		}
		found = true
		if paid > math.MaxUint64-output.Satoshis {
			return "", 0, fmt.Errorf("%w: output total overflows", ErrInvalidTx)
		}
		paid += output.Satoshis
	}

	if !found {
		return "", 0, ErrNoMatchingOutput
	}
	if paid == 0 || paid < minAmount {
		return "", 0, fmt.Errorf("%w: outputs pay %d satoshis, need %d", ErrInsufficientPayment, paid, minAmount)
	}
	return tx.TxID().String(), paid, nil
}

// ValidateAddress reports whether addr is a usable P2PKH funding address.
func ValidateAddress(addr string) error {
	_, err := pubKeyHash(addr)
	return err
}

func pubKeyHash(addr string) ([]byte, error) {
	a, err := script.NewAddressFromString(addr)
	if err != nil {
		return nil, fmt.Errorf("%w: invalid funding address: %w", ErrInvalidParams, err)
	}
	pkh := []byte(a.PublicKeyHash)
	if len(pkh) == 0 {
		return nil, fmt.Errorf("%w: empty public key hash from address", ErrInvalidParams)
	}
	return pkh, nil
}
