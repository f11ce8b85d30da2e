package storage

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	logging "github.com/ipfs/go-log/v2"
)

var log = logging.Logger("filepay/storage")

// FileStore implements Transfer on the local filesystem.
// Objects live at {baseDir}/{shard}/{cid}, where shard is the next-to-last
// two characters of the CID string. Each file starts with a one-byte
// compression tag so the scheme can change between runs.
type FileStore struct {
	baseDir     string
	compression Compression
	mu          sync.RWMutex
}

var _ Transfer = (*FileStore)(nil)

// FileStoreOption configures a FileStore.
type FileStoreOption func(*FileStore)

// WithCompression compresses new objects with scheme.
func WithCompression(scheme Compression) FileStoreOption {
	return func(fs *FileStore) { fs.compression = scheme }
}

// NewFileStore creates a file-based content store. The directory is created
// if it does not exist.
func NewFileStore(baseDir string, opts ...FileStoreOption) (*FileStore, error) {
	if baseDir == "" {
		return nil, ErrInvalidBaseDir
	}
	if err := os.MkdirAll(baseDir, 0700); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrIOFailure, err)
	}
	fs := &FileStore{baseDir: baseDir}
	for _, opt := range opts {
		opt(fs)
	}
	if _, err := Compress(nil, fs.compression); err != nil {
		return nil, err
	}
	return fs, nil
}

// ContentPath converts a content id to its filesystem path.
func ContentPath(baseDir, contentID string) string {
	return filepath.Join(baseDir, shardOf(contentID), contentID)
}

func shardOf(contentID string) string {
	n := len(contentID)
	return contentID[n-3 : n-1]
}

// validID rejects anything that is not a parseable CID, which also keeps
// path separators out of file names.
func validID(contentID string) error {
	if len(contentID) < 3 {
		return fmt.Errorf("%w: %q", ErrInvalidContentID, contentID)
	}
	_, err := ParseContentID(contentID)
	return err
}

// Put stores data under its content id. Storing the same bytes twice is a no-op.
func (fs *FileStore) Put(ctx context.Context, data []byte) (string, error) {
	if len(data) == 0 {
		return "", ErrEmptyContent
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}
	id, err := ContentID(data)
	if err != nil {
		return "", err
	}

	packed, err := Compress(data, fs.compression)
	if err != nil {
		return "", err
	}
	blob := make([]byte, 0, len(packed)+1)
	blob = append(blob, byte(fs.compression))
	blob = append(blob, packed...)

	fs.mu.Lock()
	defer fs.mu.Unlock()

	path := ContentPath(fs.baseDir, id)
	if _, err := os.Stat(path); err == nil {
		return id, nil
	}
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return "", fmt.Errorf("%w: %w", ErrIOFailure, err)
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, blob, 0600); err != nil {
		return "", fmt.Errorf("%w: %w", ErrIOFailure, err)
	}
	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		return "", fmt.Errorf("%w: %w", ErrIOFailure, err)
	}

	log.Debugw("stored object", "cid", id, "size", len(data), "stored", len(blob))
	return id, nil
}

// Get returns the bytes stored under contentID after verifying them.
func (fs *FileStore) Get(ctx context.Context, contentID string) ([]byte, error) {
	if err := validID(contentID); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	fs.mu.RLock()
	blob, err := os.ReadFile(ContentPath(fs.baseDir, contentID))
	fs.mu.RUnlock()
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, contentID)
		}
		return nil, fmt.Errorf("%w: %w", ErrIOFailure, err)
	}
	if len(blob) == 0 {
		return nil, fmt.Errorf("%w: %s is truncated", ErrContentMismatch, contentID)
	}

	data, err := Decompress(blob[1:], Compression(blob[0]))
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrContentMismatch, contentID, err)
	}
	if err := VerifyContent(contentID, data); err != nil {
		return nil, err
	}
	return data, nil
}

// Has checks if content exists for contentID.
func (fs *FileStore) Has(contentID string) (bool, error) {
	if err := validID(contentID); err != nil {
		return false, err
	}

	fs.mu.RLock()
	defer fs.mu.RUnlock()

	if _, err := os.Stat(ContentPath(fs.baseDir, contentID)); err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, fmt.Errorf("%w: %w", ErrIOFailure, err)
	}
	return true, nil
}

// Delete removes the object stored under contentID.
func (fs *FileStore) Delete(contentID string) error {
	if err := validID(contentID); err != nil {
		return err
	}

	fs.mu.Lock()
	defer fs.mu.Unlock()

	if err := os.Remove(ContentPath(fs.baseDir, contentID)); err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("%w: %s", ErrNotFound, contentID)
		}
		return fmt.Errorf("%w: %w", ErrIOFailure, err)
	}
	return nil
}

// Size returns the on-disk size of the object, including its tag byte.
func (fs *FileStore) Size(contentID string) (int64, error) {
	if err := validID(contentID); err != nil {
		return 0, err
	}

	fs.mu.RLock()
	defer fs.mu.RUnlock()

	info, err := os.Stat(ContentPath(fs.baseDir, contentID))
	if err != nil {
		if os.IsNotExist(err) {
			return 0, fmt.Errorf("%w: %s", ErrNotFound, contentID)
		}
		return 0, fmt.Errorf("%w: %w", ErrIOFailure, err)
	}
	return info.Size(), nil
}

// List returns every stored content id by scanning the shard directories.
func (fs *FileStore) List() ([]string, error) {
	fs.mu.RLock()
	defer fs.mu.RUnlock()

	entries, err := os.ReadDir(fs.baseDir)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrIOFailure, err)
	}

	var result []string
	for _, entry := range entries {
		if !entry.IsDir() || len(entry.Name()) != 2 {
			continue
		}
		files, err := os.ReadDir(filepath.Join(fs.baseDir, entry.Name()))
		if err != nil {
			continue
		}
		for _, f := range files {
			name := f.Name()
			if f.IsDir() || validID(name) != nil || shardOf(name) != entry.Name() {
				continue
			}
			result = append(result, name)
		}
	}
	return result, nil
}
