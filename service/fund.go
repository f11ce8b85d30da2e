package service

import (
	"context"

	"github.com/bitfsorg/filepay-go/funding"
)

// Fund credits account from a BSV funding transaction.
func (s *Service) Fund(ctx context.Context, account string, proof *funding.Proof) (*funding.Receipt, error) {
	if s.Funding == nil {
		return nil, ErrFundingDisabled
	}
	return s.Funding.Fund(ctx, account, proof)
}

// Balance returns the ledger balance of account.
func (s *Service) Balance(account string) (uint64, error) {
	return s.Log.Balance(account)
}
