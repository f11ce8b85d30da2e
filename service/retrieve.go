package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/bitfsorg/filepay-go/capability"
	"github.com/bitfsorg/filepay-go/funding"
	"github.com/bitfsorg/filepay-go/registry"
)

// Authorize issues a retrieval capability for contentID if principal has
// paid for it. Otherwise it returns ErrPaymentRequired together with an
// invoice describing the price, or ErrVoided without an invoice when the
// file's escrow was refunded and no payment can be accepted.
func (s *Service) Authorize(ctx context.Context, principal, contentID string) (*capability.Issued, *funding.Invoice, error) {
	paid := s.Payments.VerifyPayment(ctx, contentID, principal)
	if s.Metrics != nil {
		s.Metrics.PaymentChecked(paid)
	}
	if !paid {
		rec, err := s.Files.GetByContentID(contentID)
		if err != nil {
			return nil, nil, err
		}
		if s.refunded(rec) {
			return nil, nil, fmt.Errorf("%w: %s", ErrVoided, contentID)
		}
		return nil, s.invoice(rec), fmt.Errorf("%w: %s", ErrPaymentRequired, contentID)
	}

	issued, err := s.Issuer.IssueRetrievalToken(principal, contentID)
	if err != nil {
		return nil, nil, err
	}
	if s.Metrics != nil {
		s.Metrics.TokenIssued()
	}
	log.Infow("retrieval authorized", "cid", contentID, "principal", principal, "jti", issued.ID)
	return issued, nil, nil
}

func (s *Service) refunded(rec *registry.FileRecord) bool {
	if rec.Status == registry.StatusVoided {
		return true
	}
	if rec.Status == registry.StatusUploaded {
		return false
	}
	esc, err := s.Escrow.GetEscrowByFile(rec.ID)
	return err == nil && esc.Refunded
}

func (s *Service) invoice(rec *registry.FileRecord) *funding.Invoice {
	var payTo string
	if s.Funding != nil {
		payTo = s.Funding.PayTo()
	}
	return funding.NewInvoice(rec.ContentID, rec.ID, rec.Price, rec.Size, payTo, s.Log.Now(), s.invoiceTTL)
}

// Retrieve verifies token for contentID and returns the stored bytes. The
// first successful retrieval moves the file from Stored to Retrieved.
func (s *Service) Retrieve(ctx context.Context, token, contentID string) ([]byte, error) {
	_, err := s.Tokens.Verify(token, contentID, capability.ActionRetrieve)
	if s.Metrics != nil {
		s.Metrics.TokenVerified(err == nil)
	}
	if err != nil {
		return nil, err
	}
	if s.Storage == nil {
		return nil, ErrStorageDisabled
	}

	rec, err := s.Files.GetByContentID(contentID)
	if err != nil {
		return nil, err
	}
	if !rec.Status.IsStored() {
		return nil, fmt.Errorf("%w: %s is %s", ErrNotStored, contentID, rec.Status)
	}

	data, err := s.Storage.Get(ctx, contentID)
	if s.Metrics != nil {
		s.Metrics.StorageOp("get", len(data), err)
	}
	if err != nil {
		return nil, err
	}

	if rec.Status == registry.StatusStored {
		// A concurrent retrieval may have won the transition.
		if err := s.Files.MarkRetrieved(rec.ID); err != nil && !errors.Is(err, registry.ErrInvalidState) {
			return nil, err
		}
	}
	return data, nil
}
