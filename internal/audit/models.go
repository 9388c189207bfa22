package audit

import "time"

// Event is emitted from domain logic to capture key actions. Keep it
// transport-agnostic so stores and sinks can fan out.
type Event struct {
	Timestamp   time.Time `json:"timestamp"`
	Action      string    `json:"action"`
	Subject     string    `json:"subject_address"`
	Fingerprint string    `json:"fingerprint,omitempty"`
	LedgerTxID  string    `json:"ledger_tx_id,omitempty"`
	Decision    string    `json:"decision,omitempty"`
	RequestID   string    `json:"request_id,omitempty"`
}

type AuditEvent string

const (
	EventCredentialIssued     AuditEvent = "credential_issued"
	EventCredentialReconciled AuditEvent = "credential_reconciled"
	EventIssuancePartial      AuditEvent = "credential_issuance_partial"
	EventCredentialRevoked    AuditEvent = "credential_revoked"
	EventCredentialsExported  AuditEvent = "credentials_exported"
)

func (e AuditEvent) String() string { return string(e) }
