package storage

import (
	"bytes"
	"compress/gzip"
	"compress/lzw"
	"fmt"
	"io"
	"strings"
)

// Compression is an at-rest compression scheme for FileStore.
type Compression int32

const (
	CompressNone Compression = iota
	CompressLZW
	CompressGZIP
)

// ParseCompression maps a config name to a scheme. The empty name means none.
func ParseCompression(name string) (Compression, error) {
	switch strings.ToLower(name) {
	case "", "none":
		return CompressNone, nil
	case "lzw":
		return CompressLZW, nil
	case "gzip":
		return CompressGZIP, nil
	default:
		return 0, fmt.Errorf("%w: %q", ErrUnsupportedCompression, name)
	}
}

// Compress compresses data using the specified scheme.
func Compress(data []byte, scheme Compression) ([]byte, error) {
	switch scheme {
	case CompressNone:
		return data, nil
	case CompressLZW:
		return compressLZW(data)
	case CompressGZIP:
		return compressGZIP(data)
	default:
		return nil, ErrUnsupportedCompression
	}
}

// Decompress decompresses data using the specified scheme. Output larger
// than MaxContentSize is rejected.
func Decompress(data []byte, scheme Compression) ([]byte, error) {
	switch scheme {
	case CompressNone:
		return data, nil
	case CompressLZW:
		r := lzw.NewReader(bytes.NewReader(data), lzw.LSB, 8)
		defer r.Close()
		return readLimited(r)
	case CompressGZIP:
		r, err := gzip.NewReader(bytes.NewReader(data))
		if err != nil {
			return nil, err
		}
		defer r.Close()
		return readLimited(r)
	default:
		return nil, ErrUnsupportedCompression
	}
}

func readLimited(r io.Reader) ([]byte, error) {
	out, err := io.ReadAll(io.LimitReader(r, MaxContentSize+1))
	if err != nil {
		return nil, err
	}
	if len(out) > MaxContentSize {
		return nil, ErrDecompressedTooLarge
	}
	return out, nil
}

func compressLZW(data []byte) ([]byte, error) {
	var buf bytes.Buffer
	w := lzw.NewWriter(&buf, lzw.LSB, 8)
	if _, err := w.Write(data); err != nil {
		return nil, err
	}
	if err := w.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func compressGZIP(data []byte) ([]byte, error) {
	var buf bytes.Buffer
	w := gzip.NewWriter(&buf)
	if _, err := w.Write(data); err != nil {
		return nil, err
	}
	if err := w.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
