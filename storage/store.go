// Package storage is the storage transfer collaborator: it persists file
// bytes under their content identifier and serves them back.
//
// Content ids are CIDv1 (raw codec, sha2-256). Every backend verifies that
// bytes it returns hash to the requested id.
package storage

import "context"

// Transfer moves file bytes to and from a storage backend.
type Transfer interface {
	// Put stores data and returns its content id.
	Put(ctx context.Context, data []byte) (string, error)

	// Get returns the bytes stored under contentID.
	Get(ctx context.Context, contentID string) ([]byte, error)
}

// MaxContentSize bounds how much a backend will read for one object (1 GB).
const MaxContentSize = 1 << 30
