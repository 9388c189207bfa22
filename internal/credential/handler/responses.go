package handler

import (
	"time"

	"didlab/internal/credential/models"
)

// IssueResponse is returned with 201 when anything was written for the first
// time and 200 when the credential already existed on both sides.
type IssueResponse struct {
	RecordID    string `json:"recordId"`
	Fingerprint string `json:"fingerprint"`
	LedgerTxID  string `json:"ledgerTxId,omitempty"`
	Created     bool   `json:"created"`
	Mode        string `json:"mode"`
}

// PartialIssuanceResponse tells the client the ledger entry exists and the
// same request can be retried to finish the record write.
type PartialIssuanceResponse struct {
	Error       string `json:"error"`
	Description string `json:"error_description"`
	Fingerprint string `json:"fingerprint"`
	LedgerTxID  string `json:"ledgerTxId"`
	Retryable   bool   `json:"retryable"`
}

type VerifyResponse struct {
	Verified       bool   `json:"verified"`
	SubjectAddress string `json:"subjectAddress"`
	Fingerprint    string `json:"fingerprint"`
	Source         string `json:"source"`
}

type RevokeResponse struct {
	LedgerTxID  string `json:"ledgerTxId"`
	Fingerprint string `json:"fingerprint"`
}

// ExportResponse is the downloadable backup document.
type ExportResponse struct {
	Version           string             `json:"didLabExportVersion"`
	ExportDate        time.Time          `json:"exportDate"`
	SubjectAddress    string             `json:"subjectAddress"`
	SubjectNormalized string             `json:"subjectAddressNormalized"`
	Total             int                `json:"total"`
	Credentials       []ExportCredential `json:"credentials"`
	Note              string             `json:"note,omitempty"`
}

type ExportCredential struct {
	ID            string    `json:"id"`
	IssuerAddress string    `json:"issuerAddress"`
	Fingerprint   string    `json:"fingerprint"`
	FriendlyName  string    `json:"friendlyName,omitempty"`
	Description   string    `json:"description,omitempty"`
	Blob          string    `json:"blob"`
	Mode          string    `json:"mode"`
	CreatedAt     time.Time `json:"createdAt"`
	UpdatedAt     time.Time `json:"updatedAt"`
}

func toIssueResponse(result *models.IssueResult) IssueResponse {
	return IssueResponse{
		RecordID:    result.RecordID.String(),
		Fingerprint: result.Fingerprint.String(),
		LedgerTxID:  result.LedgerTxID.String(),
		Created:     result.Created,
		Mode:        result.Mode.String(),
	}
}

func toExportResponse(bundle *models.ExportBundle) ExportResponse {
	creds := make([]ExportCredential, 0, len(bundle.Records))
	for _, rec := range bundle.Records {
		creds = append(creds, ExportCredential{
			ID:            rec.ID.String(),
			IssuerAddress: rec.Issuer.String(),
			Fingerprint:   rec.Fingerprint.String(),
			FriendlyName:  rec.FriendlyName,
			Description:   rec.Description,
			Blob:          rec.Blob,
			Mode:          rec.Mode.String(),
			CreatedAt:     rec.CreatedAt.UTC(),
			UpdatedAt:     rec.UpdatedAt.UTC(),
		})
	}
	return ExportResponse{
		Version:           bundle.Version,
		ExportDate:        bundle.ExportedAt.UTC(),
		SubjectAddress:    bundle.Subject,
		SubjectNormalized: bundle.SubjectNormalized.String(),
		Total:             bundle.Total,
		Credentials:       creds,
		Note:              bundle.Note,
	}
}
