package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/dustin/go-humanize"

	"github.com/bitfsorg/filepay-go/escrow"
	"github.com/bitfsorg/filepay-go/registry"
	"github.com/bitfsorg/filepay-go/storage"
)

// Register records a new file at the current rate. meta is reduced to a
// digest; nil meta stores no digest.
func (s *Service) Register(uploader, contentID string, size uint64, meta map[string]string) (*registry.FileRecord, error) {
	var digest []byte
	if len(meta) > 0 {
		digest = registry.MetadataDigest(meta)
	}
	id, err := s.Files.RegisterFile(uploader, contentID, size, digest)
	if err != nil {
		return nil, err
	}
	return s.Files.GetFile(id)
}

// Deposit escrows amount from payer for fileID.
func (s *Service) Deposit(payer string, fileID, amount uint64) (*escrow.Record, error) {
	return s.Escrow.DepositForFile(payer, fileID, amount)
}

// Confirm marks a Paid file as Stored after out-of-band storage. Operator only.
func (s *Service) Confirm(caller string, fileID uint64) (*registry.FileRecord, error) {
	if err := s.Files.ConfirmStorage(caller, fileID); err != nil {
		return nil, err
	}
	return s.Files.GetFile(fileID)
}

// StoreContent hands data for a Paid file to the storage backend and, once
// the backend returns the registered content id, confirms storage.
// Operator only.
func (s *Service) StoreContent(ctx context.Context, caller string, fileID uint64, data []byte) (*registry.FileRecord, error) {
	if s.Storage == nil {
		return nil, ErrStorageDisabled
	}
	if err := s.Operators.Require(caller); err != nil {
		return nil, err
	}
	rec, err := s.Files.GetFile(fileID)
	if err != nil {
		return nil, err
	}
	if rec.Status != registry.StatusPaid {
		return nil, fmt.Errorf("%w: file %d is %s, want %s", registry.ErrInvalidState, fileID, rec.Status, registry.StatusPaid)
	}
	if uint64(len(data)) != rec.Size {
		return nil, fmt.Errorf("%w: got %s, registered %s", ErrSizeMismatch,
			humanize.IBytes(uint64(len(data))), humanize.IBytes(rec.Size))
	}

	cid, err := s.put(ctx, data)
	if err != nil {
		return nil, err
	}
	if cid != rec.ContentID {
		return nil, fmt.Errorf("%w: backend returned %s, registered %s", ErrContentMismatch, cid, rec.ContentID)
	}
	return s.Confirm(caller, fileID)
}

// put retries transient storage failures with exponential backoff.
func (s *Service) put(ctx context.Context, data []byte) (string, error) {
	var cid string
	op := func() error {
		id, err := s.Storage.Put(ctx, data)
		if err != nil {
			if errors.Is(err, storage.ErrIOFailure) {
				return err
			}
			return backoff.Permanent(err)
		}
		cid = id
		return nil
	}

	b := backoff.NewExponentialBackOff(backoff.WithInitialInterval(s.putBackoff))
	notify := func(err error, wait time.Duration) {
		log.Warnw("storage put failed, retrying", "size", len(data), "wait", wait, "err", err)
	}
	err := backoff.RetryNotify(op, backoff.WithContext(backoff.WithMaxRetries(b, s.putRetries), ctx), notify)
	if s.Metrics != nil {
		s.Metrics.StorageOp("put", len(data), err)
	}
	if err != nil {
		return "", err
	}
	log.Debugw("content stored", "cid", cid, "size", humanize.IBytes(uint64(len(data))))
	return cid, nil
}

// Release pays the escrow of a Stored file to the provider. Operator only.
func (s *Service) Release(caller string, fileID uint64) (*escrow.Record, error) {
	return s.Escrow.ReleasePayment(caller, fileID)
}

// Refund returns the escrow of a never-stored file to its payer once the
// refund window has elapsed. Operator only.
func (s *Service) Refund(caller string, fileID uint64) (*escrow.Record, error) {
	return s.Escrow.RefundPayment(caller, fileID)
}

// EmergencyRefund returns any unfinalized escrow to its payer. Operator only.
func (s *Service) EmergencyRefund(caller string, escrowID uint64) (*escrow.Record, error) {
	return s.Escrow.EmergencyRefund(caller, escrowID)
}

// Quote prices size bytes at the current rate.
func (s *Service) Quote(size uint64) (uint64, error) {
	return s.Files.QuotePrice(size)
}

// SetRate changes the rate for future registrations. Operator only.
func (s *Service) SetRate(caller string, rate uint64) error {
	return s.Files.SetRate(caller, rate)
}
