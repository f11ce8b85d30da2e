package storage

import (
	"fmt"

	"github.com/ipfs/go-cid"
	mh "github.com/multiformats/go-multihash"
)

var contentPrefix = cid.Prefix{
	Version:  1,
	Codec:    cid.Raw,
	MhType:   mh.SHA2_256,
	MhLength: -1,
}

// ContentID returns the CIDv1 string of data.
func ContentID(data []byte) (string, error) {
	c, err := contentPrefix.Sum(data)
	if err != nil {
		return "", fmt.Errorf("storage: hash content: %w", err)
	}
	return c.String(), nil
}

// ParseContentID decodes a content id string.
func ParseContentID(s string) (cid.Cid, error) {
	c, err := cid.Decode(s)
	if err != nil {
		return cid.Undef, fmt.Errorf("%w: %q: %w", ErrInvalidContentID, s, err)
	}
	return c, nil
}

// VerifyContent checks that data hashes to contentID under contentID's own
// prefix, so ids produced elsewhere with another hash function still verify.
func VerifyContent(contentID string, data []byte) error {
	want, err := ParseContentID(contentID)
	if err != nil {
		return err
	}
	got, err := want.Prefix().Sum(data)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrContentMismatch, err)
	}
	if !got.Equals(want) {
		return fmt.Errorf("%w: %s", ErrContentMismatch, contentID)
	}
	return nil
}
