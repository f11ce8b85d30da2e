package registry

import (
	"fmt"
	"strings"
)

// Status is the lifecycle stage of a file. Transitions only move forward:
// Uploaded → Paid → Stored → Retrieved, with Paid → Voided when the escrow
// is refunded before storage was confirmed.
type Status uint8

const (
	StatusUnknown Status = iota
	StatusUploaded
	StatusPaid
	StatusStored
	StatusRetrieved
	StatusVoided
)

var statusNames = map[Status]string{
	StatusUnknown:   "unknown",
	StatusUploaded:  "uploaded",
	StatusPaid:      "paid",
	StatusStored:    "stored",
	StatusRetrieved: "retrieved",
	StatusVoided:    "voided",
}

func (s Status) String() string {
	if name, ok := statusNames[s]; ok {
		return name
	}
	return fmt.Sprintf("status(%d)", uint8(s))
}

// MarshalText encodes the status by name.
func (s Status) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText decodes a status name.
func (s *Status) UnmarshalText(text []byte) error {
	name := strings.ToLower(string(text))
	for st, n := range statusNames {
		if n == name {
			*s = st
			return nil
		}
	}
	return fmt.Errorf("registry: unknown status %q", text)
}

// IsStored reports whether storage has been confirmed for the file,
// including files that have since been retrieved.
func (s Status) IsStored() bool {
	return s == StatusStored || s == StatusRetrieved
}

// FileRecord is the authoritative metadata of a registered file.
// Timestamps are unix seconds from the ledger clock; zero means unset.
type FileRecord struct {
	ID             uint64 `json:"id"`
	ContentID      string `json:"content_id"`
	Uploader       string `json:"uploader"`
	Size           uint64 `json:"size"`
	Price          uint64 `json:"price"`
	UploadedAt     int64  `json:"uploaded_at"`
	PaidAt         int64  `json:"paid_at"`
	StoredAt       int64  `json:"stored_at"`
	RetrievedAt    int64  `json:"retrieved_at"`
	VoidedAt       int64  `json:"voided_at,omitempty"`
	Status         Status `json:"status"`
	MetadataDigest []byte `json:"metadata_digest,omitempty"`
	Exists         bool   `json:"exists"`
}
