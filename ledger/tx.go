package ledger

import (
	"bytes"
	"encoding/binary"
	"encoding/gob"
	"fmt"
	"time"

	"go.etcd.io/bbolt"
)

// Tx is a single ledger transaction. Values are gob-encoded.
type Tx struct {
	btx      *bbolt.Tx
	now      time.Time
	writable bool
	events   []Event
}

// Now returns the timestamp this transaction was stamped with.
func (tx *Tx) Now() time.Time { return tx.now }

// Writable reports whether the transaction may mutate state.
func (tx *Tx) Writable() bool { return tx.writable }

func (tx *Tx) bucket(name []byte) (*bbolt.Bucket, error) {
	b := tx.btx.Bucket(name)
	if b == nil {
		return nil, fmt.Errorf("%w: %q", ErrUnknownBucket, name)
	}
	return b, nil
}

// Get decodes the value stored under key into v. It reports false if the key
// is absent.
func (tx *Tx) Get(bucket, key []byte, v interface{}) (bool, error) {
	data, err := tx.GetRaw(bucket, key)
	if err != nil {
		return false, err
	}
	if data == nil {
		return false, nil
	}
	if err := decodeGob(data, v); err != nil {
		return false, fmt.Errorf("%w: %s/%x: %w", ErrCorrupted, bucket, key, err)
	}
	return true, nil
}

// Put gob-encodes v and stores it under key.
func (tx *Tx) Put(bucket, key []byte, v interface{}) error {
	data, err := encodeGob(v)
	if err != nil {
		return fmt.Errorf("ledger: encode %s: %w", bucket, err)
	}
	return tx.PutRaw(bucket, key, data)
}

// GetRaw returns the raw bytes stored under key, or nil.
// The returned slice is a copy and remains valid after the transaction ends.
func (tx *Tx) GetRaw(bucket, key []byte) ([]byte, error) {
	b, err := tx.bucket(bucket)
	if err != nil {
		return nil, err
	}
	v := b.Get(key)
	if v == nil {
		return nil, nil
	}
	out := make([]byte, len(v))
	copy(out, v)
	return out, nil
}

// PutRaw stores raw bytes under key.
func (tx *Tx) PutRaw(bucket, key, value []byte) error {
	b, err := tx.bucket(bucket)
	if err != nil {
		return err
	}
	if err := b.Put(key, value); err != nil {
		return fmt.Errorf("ledger: put %s: %w", bucket, err)
	}
	return nil
}

// Has reports whether key exists in bucket.
func (tx *Tx) Has(bucket, key []byte) (bool, error) {
	b, err := tx.bucket(bucket)
	if err != nil {
		return false, err
	}
	return b.Get(key) != nil, nil
}

// NextID returns the next value of the bucket's monotonically increasing
// sequence. The first id is 1.
func (tx *Tx) NextID(bucket []byte) (uint64, error) {
	b, err := tx.bucket(bucket)
	if err != nil {
		return 0, err
	}
	id, err := b.NextSequence()
	if err != nil {
		return 0, fmt.Errorf("ledger: next sequence %s: %w", bucket, err)
	}
	return id, nil
}

// ScanPrefix calls fn for every key in bucket starting with prefix, in key order.
func (tx *Tx) ScanPrefix(bucket, prefix []byte, fn func(k, v []byte) error) error {
	b, err := tx.bucket(bucket)
	if err != nil {
		return err
	}
	c := b.Cursor()
	for k, v := c.Seek(prefix); k != nil && bytes.HasPrefix(k, prefix); k, v = c.Next() {
		if err := fn(k, v); err != nil {
			return err
		}
	}
	return nil
}

// IDKey encodes an id as an 8-byte big-endian key for sorted storage.
func IDKey(id uint64) []byte {
	k := make([]byte, 8)
	binary.BigEndian.PutUint64(k, id)
	return k
}

// KeyID decodes a key produced by IDKey. It returns 0 for malformed keys.
func KeyID(k []byte) uint64 {
	if len(k) != 8 {
		return 0
	}
	return binary.BigEndian.Uint64(k)
}

// Decode deserializes a value read during a scan.
func Decode(data []byte, v interface{}) error {
	if err := decodeGob(data, v); err != nil {
		return fmt.Errorf("%w: %w", ErrCorrupted, err)
	}
	return nil
}

func encodeGob(v interface{}) ([]byte, error) {
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(v); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func decodeGob(data []byte, v interface{}) error {
	return gob.NewDecoder(bytes.NewReader(data)).Decode(v)
}
