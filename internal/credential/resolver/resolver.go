// Package resolver turns raw issue and verify inputs into a single resolved
// shape before any ledger or store work happens.
//
// Issue decision, first match wins:
//
//	clientFingerprint + encryptedBlob  -> private, fingerprint as given
//	rawJsonString (valid JSON)         -> legacy, fingerprint of canonical form
//	rawJsonString (malformed)          -> invalid_input
//	neither                            -> invalid_input
//
// The size guard runs first and counts the raw JSON string plus the blob.
package resolver

import (
	"bytes"
	"encoding/json"
	"errors"

	"didlab/internal/credential/models"
	dErrors "didlab/pkg/domain-errors"
	"didlab/pkg/fingerprint"
)

// DefaultMaxPayloadBytes bounds rawJsonString plus encryptedBlob.
const DefaultMaxPayloadBytes = 50_000

// IssueInput is the undecoded issue body. EncryptedBlob may be a JSON string
// or any structured JSON value; RawJSON is nil when the field was absent.
type IssueInput struct {
	ClientFingerprint string
	EncryptedBlob     json.RawMessage
	RawJSON           *string
}

// VerifyInput is the undecoded verify body.
type VerifyInput struct {
	Fingerprint string
	RawJSON     *string
}

// Resolver applies the mode decision and payload ceiling.
type Resolver struct {
	maxPayloadBytes int
}

// New creates a resolver. A non-positive ceiling falls back to DefaultMaxPayloadBytes.
func New(maxPayloadBytes int) *Resolver {
	if maxPayloadBytes <= 0 {
		maxPayloadBytes = DefaultMaxPayloadBytes
	}
	return &Resolver{maxPayloadBytes: maxPayloadBytes}
}

// MaxPayloadBytes returns the configured ceiling.
func (r *Resolver) MaxPayloadBytes() int { return r.maxPayloadBytes }

// ResolveIssue produces the tagged payload for an issuance.
func (r *Resolver) ResolveIssue(in IssueInput) (models.Payload, error) {
	blob, hasBlob, err := blobText(in.EncryptedBlob)
	if err != nil {
		return nil, err
	}
	if err := r.checkSize(in.RawJSON, blob); err != nil {
		return nil, err
	}

	if in.ClientFingerprint != "" && hasBlob {
		fp, err := fingerprint.Parse(in.ClientFingerprint)
		if err != nil {
			return nil, dErrors.New(dErrors.CodeInvalidInput, "bad fingerprint format")
		}
		return models.PrivatePayload{Fingerprint: fp, Blob: blob}, nil
	}

	if in.RawJSON != nil {
		fp, err := legacyFingerprint(*in.RawJSON)
		if err != nil {
			return nil, err
		}
		return models.LegacyPayload{Fingerprint: fp, RawJSON: *in.RawJSON}, nil
	}

	return nil, dErrors.New(dErrors.CodeInvalidInput, "missing required fields: clientFingerprint and encryptedBlob, or rawJsonString")
}

// ResolveVerify picks the fingerprint to check. A raw document wins over a
// supplied fingerprint; when both are present they must agree.
func (r *Resolver) ResolveVerify(in VerifyInput) (fingerprint.Fingerprint, models.Source, error) {
	if err := r.checkSize(in.RawJSON, ""); err != nil {
		return "", "", err
	}

	if in.RawJSON != nil {
		computed, err := legacyFingerprint(*in.RawJSON)
		if err != nil {
			return "", "", err
		}
		// A malformed companion fingerprint is ignored; the document is authoritative.
		if supplied, err := fingerprint.Parse(in.Fingerprint); err == nil && !computed.Equal(supplied) {
			return "", "", dErrors.New(dErrors.CodeConflict, "fingerprint does not match the supplied document")
		}
		return computed, models.SourceJSON, nil
	}

	if in.Fingerprint == "" {
		return "", "", dErrors.New(dErrors.CodeInvalidInput, "missing required fields: fingerprint or rawJsonString")
	}
	fp, err := fingerprint.Parse(in.Fingerprint)
	if err != nil {
		return "", "", dErrors.New(dErrors.CodeInvalidInput, "bad fingerprint format")
	}
	return fp, models.SourceHash, nil
}

func (r *Resolver) checkSize(raw *string, blob string) error {
	size := len(blob)
	if raw != nil {
		size += len(*raw)
	}
	if size > r.maxPayloadBytes {
		return dErrors.New(dErrors.CodePayloadTooLarge, "payload exceeds the size limit")
	}
	return nil
}

func legacyFingerprint(raw string) (fingerprint.Fingerprint, error) {
	fp, err := fingerprint.FromJSON([]byte(raw))
	if errors.Is(err, fingerprint.ErrMalformedJSON) {
		return "", dErrors.Wrap(err, dErrors.CodeInvalidInput, "malformed JSON in rawJsonString")
	}
	if err != nil {
		return "", dErrors.Wrap(err, dErrors.CodeInternal, "failed to fingerprint document")
	}
	return fp, nil
}

// blobText renders the blob as stored text. JSON strings are unquoted,
// structured values are compacted. Absent, null and "" count as missing.
func blobText(raw json.RawMessage) (string, bool, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return "", false, nil
	}
	if trimmed[0] == '"' {
		var s string
		if err := json.Unmarshal(trimmed, &s); err != nil {
			return "", false, dErrors.New(dErrors.CodeInvalidInput, "encryptedBlob must be a string or JSON value")
		}
		return s, s != "", nil
	}
	var buf bytes.Buffer
	if err := json.Compact(&buf, trimmed); err != nil {
		return "", false, dErrors.New(dErrors.CodeInvalidInput, "encryptedBlob must be a string or JSON value")
	}
	return buf.String(), true, nil
}
