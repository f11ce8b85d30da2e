package ledger

import (
	"encoding/binary"
	"fmt"
	"math"
	"strings"
)

// Well-known accounts.
const (
	// ReservedPrefix marks accounts owned by the ledgers themselves.
	ReservedPrefix = "escrow:"

	// EscrowAccount holds funds locked by the escrow ledger.
	EscrowAccount = ReservedPrefix + "holding"
)

// IsReserved reports whether account is owned by the ledgers and must never
// act as a payer, payee or funded account.
func IsReserved(account string) bool {
	return strings.HasPrefix(strings.ToLower(strings.TrimSpace(account)), ReservedPrefix)
}

// Balance returns the balance of account. Unknown accounts hold zero.
func (tx *Tx) Balance(account string) (uint64, error) {
	if account == "" {
		return 0, ErrEmptyAccount
	}
	data, err := tx.GetRaw(bucketAccounts, []byte(account))
	if err != nil {
		return 0, err
	}
	if data == nil {
		return 0, nil
	}
	if len(data) != 8 {
		return 0, fmt.Errorf("%w: balance of %q is %d bytes", ErrCorrupted, account, len(data))
	}
	return binary.BigEndian.Uint64(data), nil
}

func (tx *Tx) setBalance(account string, amount uint64) error {
	buf := make([]byte, 8)
	binary.BigEndian.PutUint64(buf, amount)
	return tx.PutRaw(bucketAccounts, []byte(account), buf)
}

// Credit adds amount to account.
func (tx *Tx) Credit(account string, amount uint64) error {
	if amount == 0 {
		return ErrZeroAmount
	}
	bal, err := tx.Balance(account)
	if err != nil {
		return err
	}
	if bal > math.MaxUint64-amount {
		return fmt.Errorf("%w: %q", ErrBalanceOverflow, account)
	}
	return tx.setBalance(account, bal+amount)
}

// Transfer moves amount from one account to another. It fails with
// ErrInsufficientFunds without writing anything if from cannot cover it, and
// with ErrSelfTransfer when from and to are the same account.
func (tx *Tx) Transfer(from, to string, amount uint64) error {
	if amount == 0 {
		return ErrZeroAmount
	}
	if from == "" || to == "" {
		return ErrEmptyAccount
	}
	if from == to {
		return fmt.Errorf("%w: %q", ErrSelfTransfer, from)
	}
	bal, err := tx.Balance(from)
	if err != nil {
		return err
	}
	if bal < amount {
		return fmt.Errorf("%w: %q has %d, needs %d", ErrInsufficientFunds, from, bal, amount)
	}
	if err := tx.setBalance(from, bal-amount); err != nil {
		return err
	}
	return tx.Credit(to, amount)
}

// Balance is a read-only convenience wrapper around Tx.Balance.
func (l *Log) Balance(account string) (uint64, error) {
	var bal uint64
	err := l.View(func(tx *Tx) error {
		var err error
		bal, err = tx.Balance(account)
		return err
	})
	return bal, err
}
