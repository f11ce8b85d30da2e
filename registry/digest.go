package registry

import (
	"encoding/binary"
	"hash"
	"sort"

	"golang.org/x/crypto/blake2b"
)

// MetadataDigest returns the BLAKE2b-256 digest of metadata. Entries are
// hashed in key order, each key and value preceded by its length as an
// 8-byte big-endian integer. The registry stores the digest opaquely.
func MetadataDigest(meta map[string]string) []byte {
	keys := make([]string, 0, len(meta))
	for k := range meta {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	h, _ := blake2b.New256(nil)
	for _, k := range keys {
		writeField(h, k)
		writeField(h, meta[k])
	}
	return h.Sum(nil)
}

func writeField(h hash.Hash, s string) {
	var n [8]byte
	binary.BigEndian.PutUint64(n[:], uint64(len(s)))
	h.Write(n[:])
	h.Write([]byte(s))
}
