// Package registry is the file ledger: the authoritative record of file
// metadata and lifecycle state.
//
// Every mutation is one ledger transaction. The escrow ledger may drive the
// payment-linked transitions only through the PaymentPort it is handed at
// wiring time; all other transitions are guarded by a single equality check
// against the current status.
package registry

import (
	"fmt"
	"strings"
	"sync/atomic"

	logging "github.com/ipfs/go-log/v2"

	"github.com/bitfsorg/filepay-go/access"
	"github.com/bitfsorg/filepay-go/ledger"
)

var log = logging.Logger("filepay/registry")

var (
	bucketFiles      = []byte("files")
	bucketFilesByCID = []byte("files_by_cid")
	bucketByUploader = []byte("files_by_uploader")
	bucketMeta       = []byte("registry_meta")

	keyRate = []byte("rate_per_byte")
)

// Registry is the file ledger.
type Registry struct {
	log       *ledger.Log
	operators *access.Operators
	portBound atomic.Bool
}

// New creates a file ledger on top of l. initialRate seeds the rate per byte
// the first time the ledger is opened; an existing persisted rate wins.
func New(l *ledger.Log, operators *access.Operators, initialRate uint64) (*Registry, error) {
	if initialRate == 0 {
		return nil, fmt.Errorf("%w: rate per byte must be positive", ErrInvalidInput)
	}
	if err := l.EnsureBuckets(bucketFiles, bucketFilesByCID, bucketByUploader, bucketMeta); err != nil {
		return nil, err
	}
	err := l.Update(func(tx *ledger.Tx) error {
		ok, err := tx.Has(bucketMeta, keyRate)
		if err != nil || ok {
			return err
		}
		return tx.PutRaw(bucketMeta, keyRate, ledger.IDKey(initialRate))
	})
	if err != nil {
		return nil, fmt.Errorf("registry: seed rate: %w", err)
	}
	return &Registry{log: l, operators: operators}, nil
}

// RegisterFile creates a record in Uploaded status and returns its id. The
// price is computed from the rate current in the same transaction and never
// changes afterwards.
func (r *Registry) RegisterFile(uploader, contentID string, size uint64, metadataDigest []byte) (uint64, error) {
	uploader = access.Normalize(uploader)
	if uploader == "" {
		return 0, fmt.Errorf("%w: uploader is empty", ErrInvalidInput)
	}
	if strings.TrimSpace(contentID) == "" {
		return 0, fmt.Errorf("%w: content id is empty", ErrInvalidInput)
	}
	if size == 0 {
		return 0, fmt.Errorf("%w: size must be positive", ErrInvalidInput)
	}

	var rec FileRecord
	err := r.log.Update(func(tx *ledger.Tx) error {
		exists, err := tx.Has(bucketFilesByCID, []byte(contentID))
		if err != nil {
			return err
		}
		if exists {
			return fmt.Errorf("%w: %s", ErrDuplicateResource, contentID)
		}

		rate, err := rateIn(tx)
		if err != nil {
			return err
		}
		price, err := CalculateStoragePrice(size, rate)
		if err != nil {
			return err
		}

		id, err := tx.NextID(bucketFiles)
		if err != nil {
			return err
		}
		rec = FileRecord{
			ID:             id,
			ContentID:      contentID,
			Uploader:       uploader,
			Size:           size,
			Price:          price,
			UploadedAt:     tx.Now().Unix(),
			Status:         StatusUploaded,
			MetadataDigest: metadataDigest,
			Exists:         true,
		}
		if err := tx.Put(bucketFiles, ledger.IDKey(id), &rec); err != nil {
			return err
		}
		if err := tx.PutRaw(bucketFilesByCID, []byte(contentID), ledger.IDKey(id)); err != nil {
			return err
		}
		if err := tx.PutRaw(bucketByUploader, uploaderKey(uploader, id), []byte{}); err != nil {
			return err
		}
		return tx.Emit(ledger.Event{
			Kind:      ledger.EventFileRegistered,
			FileID:    id,
			ContentID: contentID,
			Actor:     uploader,
			Amount:    price,
			Detail:    fmt.Sprintf("size=%d rate=%d", size, rate),
		})
	})
	if err != nil {
		return 0, err
	}

	log.Infow("file registered", "file", rec.ID, "cid", contentID, "size", size, "price", rec.Price)
	return rec.ID, nil
}

// GetFile returns the record with the given id.
func (r *Registry) GetFile(fileID uint64) (*FileRecord, error) {
	var rec *FileRecord
	err := r.log.View(func(tx *ledger.Tx) error {
		var err error
		rec, err = loadFile(tx, fileID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return rec, nil
}

// FileIDByContentID resolves a content id to its file id.
func (r *Registry) FileIDByContentID(contentID string) (uint64, error) {
	var id uint64
	err := r.log.View(func(tx *ledger.Tx) error {
		var err error
		id, err = fileIDIn(tx, contentID)
		return err
	})
	return id, err
}

// GetByContentID returns the record registered under contentID.
func (r *Registry) GetByContentID(contentID string) (*FileRecord, error) {
	var rec *FileRecord
	err := r.log.View(func(tx *ledger.Tx) error {
		id, err := fileIDIn(tx, contentID)
		if err != nil {
			return err
		}
		rec, err = loadFile(tx, id)
		return err
	})
	if err != nil {
		return nil, err
	}
	return rec, nil
}

// GetStatus returns the lifecycle status of a file.
func (r *Registry) GetStatus(fileID uint64) (Status, error) {
	rec, err := r.GetFile(fileID)
	if err != nil {
		return StatusUnknown, err
	}
	return rec.Status, nil
}

// ListByUploader returns the files registered by uploader in id order.
// An uploader with no files yields an empty slice.
func (r *Registry) ListByUploader(uploader string) ([]*FileRecord, error) {
	uploader = access.Normalize(uploader)
	if uploader == "" {
		return nil, fmt.Errorf("%w: uploader is empty", ErrInvalidInput)
	}
	prefix := uploaderPrefix(uploader)

	out := make([]*FileRecord, 0)
	err := r.log.View(func(tx *ledger.Tx) error {
		return tx.ScanPrefix(bucketByUploader, prefix, func(k, _ []byte) error {
			rec, err := loadFile(tx, ledger.KeyID(k[len(prefix):]))
			if err != nil {
				return err
			}
			out = append(out, rec)
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func loadFile(tx *ledger.Tx, fileID uint64) (*FileRecord, error) {
	var rec FileRecord
	ok, err := tx.Get(bucketFiles, ledger.IDKey(fileID), &rec)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("%w: id %d", ErrNotFound, fileID)
	}
	return &rec, nil
}

func fileIDIn(tx *ledger.Tx, contentID string) (uint64, error) {
	raw, err := tx.GetRaw(bucketFilesByCID, []byte(contentID))
	if err != nil {
		return 0, err
	}
	if raw == nil {
		return 0, fmt.Errorf("%w: content id %q", ErrNotFound, contentID)
	}
	return ledger.KeyID(raw), nil
}

// uploaderPrefix terminates the uploader with a NUL byte so that one
// uploader's prefix never matches another's.
func uploaderPrefix(uploader string) []byte {
	p := make([]byte, 0, len(uploader)+1)
	p = append(p, uploader...)
	return append(p, 0)
}

func uploaderKey(uploader string, id uint64) []byte {
	return append(uploaderPrefix(uploader), ledger.IDKey(id)...)
}
