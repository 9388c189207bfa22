package models

import (
	"encoding/base64"
	"errors"
	"fmt"
	"time"

	"didlab/internal/ledger"
	id "didlab/pkg/domain"
	"didlab/pkg/fingerprint"
)

// Mode records how the stored blob was produced.
type Mode string

const (
	// ModeLegacy stores base64 of the plaintext document; the server computed the fingerprint.
	ModeLegacy Mode = "legacy"
	// ModePrivate stores a client-encrypted blob; the client supplied the fingerprint.
	ModePrivate Mode = "private"
)

func (m Mode) String() string { return string(m) }

// Source tells which input a verification fingerprint came from.
type Source string

const (
	SourceJSON Source = "json"
	SourceHash Source = "hash"
)

func (s Source) String() string { return string(s) }

// Payload is the resolved issue input. It is either a PrivatePayload or a
// LegacyPayload; no other implementations exist.
type Payload interface {
	Resolve() Resolution
	isPayload()
}

// Resolution is what gets anchored and stored for a payload.
type Resolution struct {
	Fingerprint fingerprint.Fingerprint
	Blob        string
	Mode        Mode
}

// PrivatePayload carries a client-computed fingerprint and an opaque blob the
// server cannot decrypt. The fingerprint is trusted as given.
type PrivatePayload struct {
	Fingerprint fingerprint.Fingerprint
	Blob        string
}

func (p PrivatePayload) Resolve() Resolution {
	return Resolution{Fingerprint: p.Fingerprint, Blob: p.Blob, Mode: ModePrivate}
}

func (PrivatePayload) isPayload() {}

// LegacyPayload carries the plaintext document as the client sent it.
// Fingerprint is computed from its canonical form.
type LegacyPayload struct {
	Fingerprint fingerprint.Fingerprint
	RawJSON     string
}

// Resolve encodes the input string itself, not its canonical form, so the
// stored blob round-trips to exactly what the client submitted.
func (p LegacyPayload) Resolve() Resolution {
	return Resolution{
		Fingerprint: p.Fingerprint,
		Blob:        base64.StdEncoding.EncodeToString([]byte(p.RawJSON)),
		Mode:        ModeLegacy,
	}
}

func (LegacyPayload) isPayload() {}

// Record is the off-chain credential row. Fingerprint is unique across the store.
type Record struct {
	ID           id.RecordID
	Subject      id.Address
	Issuer       id.Address
	Fingerprint  fingerprint.Fingerprint
	FriendlyName string
	Description  string
	Blob         string
	Mode         Mode
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// IssueCommand is the validated input of an issuance.
type IssueCommand struct {
	Subject      id.Address
	Payload      Payload
	FriendlyName string
	Description  string
}

// IssueResult reports the reconciled state after an issuance.
type IssueResult struct {
	RecordID    id.RecordID
	Fingerprint fingerprint.Fingerprint
	// LedgerTxID is empty when no transaction was submitted.
	LedgerTxID ledger.TxID
	Created    bool
	Mode       Mode
	// AlreadyOnLedger and AlreadyStored describe the state found before any write.
	AlreadyOnLedger bool
	AlreadyStored   bool
}

// VerifyCommand is a resolved verification request.
type VerifyCommand struct {
	Subject     id.Address
	Fingerprint fingerprint.Fingerprint
	Source      Source
}

// VerifyResult is content-blind: it never carries the stored blob.
type VerifyResult struct {
	Verified    bool
	Subject     id.Address
	Fingerprint fingerprint.Fingerprint
	Source      Source
}

// RevokeCommand asks the ledger to deactivate an entry on behalf of Caller.
type RevokeCommand struct {
	Caller      id.Address
	Fingerprint fingerprint.Fingerprint
}

type RevokeResult struct {
	Fingerprint fingerprint.Fingerprint
	LedgerTxID  ledger.TxID
}

const (
	ExportVersion   = "1.0"
	ExportEmptyNote = "no credentials found"
)

// ExportBundle is a subject's backup of stored records.
type ExportBundle struct {
	Version           string
	ExportedAt        time.Time
	Subject           string
	SubjectNormalized id.Address
	Total             int
	Note              string
	Records           []Record
}

// PartialIssuanceError means the ledger entry was written but the record
// store write failed. Issuing again reconciles without a second transaction.
type PartialIssuanceError struct {
	Fingerprint fingerprint.Fingerprint
	LedgerTxID  ledger.TxID
	Err         error
}

func (e *PartialIssuanceError) Error() string {
	return fmt.Sprintf("ledger entry %s recorded in tx %s but record not stored: %v", e.Fingerprint, e.LedgerTxID, e.Err)
}

func (e *PartialIssuanceError) Unwrap() error { return e.Err }

// AsPartialIssuance extracts a PartialIssuanceError from err's chain.
func AsPartialIssuance(err error) (*PartialIssuanceError, bool) {
	var pe *PartialIssuanceError
	if errors.As(err, &pe) {
		return pe, true
	}
	return nil, false
}
