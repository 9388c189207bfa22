package handler

import (
	"encoding/json"
	"strings"

	"didlab/internal/credential/resolver"
	id "didlab/pkg/domain"
	dErrors "didlab/pkg/domain-errors"
	"didlab/pkg/fingerprint"
	"didlab/pkg/validation"
)

// IssueRequest is the body of POST /credentials/issue. Either the private
// pair (clientFingerprint + encryptedBlob) or rawJsonString must be present;
// the resolver decides which one applies.
type IssueRequest struct {
	SubjectAddress    string          `json:"subjectAddress" validate:"required,eth_addr"`
	ClientFingerprint string          `json:"clientFingerprint,omitempty" validate:"max=80"`
	EncryptedBlob     json.RawMessage `json:"encryptedBlob,omitempty"`
	RawJSONString     *string         `json:"rawJsonString,omitempty"`
	FriendlyName      string          `json:"friendlyName,omitempty" validate:"max=200"`
	Description       string          `json:"description,omitempty" validate:"max=2000"`

	parsedSubject id.Address
}

func (r *IssueRequest) Sanitize() {
	r.SubjectAddress = strings.TrimSpace(r.SubjectAddress)
	r.ClientFingerprint = strings.TrimSpace(r.ClientFingerprint)
	r.FriendlyName = strings.TrimSpace(r.FriendlyName)
	r.Description = strings.TrimSpace(r.Description)
}

// Validate checks field shapes. Mode selection and the payload ceiling are
// left to the resolver.
func (r *IssueRequest) Validate() error {
	if r == nil {
		return dErrors.New(dErrors.CodeBadRequest, "request is required")
	}
	if err := validation.Validate(r); err != nil {
		return err
	}
	subject, err := id.ParseAddress(r.SubjectAddress)
	if err != nil {
		return err
	}
	r.parsedSubject = subject
	return nil
}

// ParsedSubject returns the normalized subject address.
func (r *IssueRequest) ParsedSubject() id.Address { return r.parsedSubject }

// ResolverInput projects the request onto the resolver's input.
func (r *IssueRequest) ResolverInput() resolver.IssueInput {
	return resolver.IssueInput{
		ClientFingerprint: r.ClientFingerprint,
		EncryptedBlob:     r.EncryptedBlob,
		RawJSON:           r.RawJSONString,
	}
}

// VerifyRequest is the body of POST /credentials/verify.
type VerifyRequest struct {
	SubjectAddress string  `json:"subjectAddress" validate:"required,eth_addr"`
	Fingerprint    string  `json:"fingerprint,omitempty" validate:"max=80"`
	RawJSONString  *string `json:"rawJsonString,omitempty"`

	parsedSubject id.Address
}

func (r *VerifyRequest) Sanitize() {
	r.SubjectAddress = strings.TrimSpace(r.SubjectAddress)
	r.Fingerprint = strings.TrimSpace(r.Fingerprint)
}

func (r *VerifyRequest) Validate() error {
	if r == nil {
		return dErrors.New(dErrors.CodeBadRequest, "request is required")
	}
	if err := validation.Validate(r); err != nil {
		return err
	}
	subject, err := id.ParseAddress(r.SubjectAddress)
	if err != nil {
		return err
	}
	r.parsedSubject = subject
	return nil
}

func (r *VerifyRequest) ParsedSubject() id.Address { return r.parsedSubject }

func (r *VerifyRequest) ResolverInput() resolver.VerifyInput {
	return resolver.VerifyInput{Fingerprint: r.Fingerprint, RawJSON: r.RawJSONString}
}

// RevokeRequest is the body of POST /credentials/revoke. The caller comes
// from the X-Subject-Address header.
type RevokeRequest struct {
	Fingerprint string `json:"fingerprint" validate:"required,fingerprint"`

	parsedFingerprint fingerprint.Fingerprint
}

func (r *RevokeRequest) Sanitize() {
	r.Fingerprint = strings.TrimSpace(r.Fingerprint)
}

func (r *RevokeRequest) Validate() error {
	if r == nil {
		return dErrors.New(dErrors.CodeBadRequest, "request is required")
	}
	if err := validation.Validate(r); err != nil {
		return err
	}
	fp, err := fingerprint.Parse(r.Fingerprint)
	if err != nil {
		return dErrors.New(dErrors.CodeInvalidInput, "bad fingerprint format")
	}
	r.parsedFingerprint = fp
	return nil
}

func (r *RevokeRequest) ParsedFingerprint() fingerprint.Fingerprint { return r.parsedFingerprint }
