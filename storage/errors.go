package storage

import "errors"

var (
	// ErrNotFound indicates no content exists for the given content id.
	ErrNotFound = errors.New("storage: content not found")

	// ErrInvalidContentID indicates the content id is not a valid CID.
	ErrInvalidContentID = errors.New("storage: invalid content id")

	// ErrContentMismatch indicates stored or fetched bytes do not hash to their content id.
	ErrContentMismatch = errors.New("storage: content does not match content id")

	// ErrIOFailure indicates a file read/write error.
	ErrIOFailure = errors.New("storage: I/O failure")

	// ErrEmptyContent indicates an attempt to store empty content.
	ErrEmptyContent = errors.New("storage: content is empty")

	// ErrInvalidBaseDir indicates the base directory path is invalid.
	ErrInvalidBaseDir = errors.New("storage: invalid base directory")

	// ErrUnsupportedCompression indicates an unsupported compression scheme.
	ErrUnsupportedCompression = errors.New("storage: unsupported compression scheme")

	// ErrDecompressedTooLarge indicates decompressed data exceeds the safety limit.
	ErrDecompressedTooLarge = errors.New("storage: decompressed data exceeds maximum size")

	// ErrNoBackends indicates a resolver was built without any transfer backends.
	ErrNoBackends = errors.New("storage: no backends configured")
)
