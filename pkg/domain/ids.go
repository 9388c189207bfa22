// Package domain provides type-safe identifiers to prevent mixing up IDs at compile time.
package domain

import (
	"github.com/google/uuid"

	dErrors "didlab/pkg/domain-errors"
)

// RecordID identifies an off-chain credential record.
type RecordID uuid.UUID

// NewRecordID returns a fresh random record ID.
func NewRecordID() RecordID { return RecordID(uuid.New()) }

// ParseRecordID parses a record ID at a trust boundary. Empty, malformed, and
// nil UUIDs are rejected.
func ParseRecordID(s string) (RecordID, error) {
	id, err := parseUUID(s, "record ID")
	return RecordID(id), err
}

func (id RecordID) String() string { return uuid.UUID(id).String() }

// IsNil is used for service-layer validation.
func (id RecordID) IsNil() bool { return uuid.UUID(id) == uuid.Nil }

func parseUUID(s, label string) (uuid.UUID, error) {
	if s == "" {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, label+" cannot be empty")
	}
	id, err := uuid.Parse(s)
	if err != nil {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, "invalid "+label+" format")
	}
	if id == uuid.Nil {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, label+" cannot be nil")
	}
	return id, nil
}
