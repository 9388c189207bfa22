package store

import (
	"context"

	"didlab/internal/credential/models"
	id "didlab/pkg/domain"
	pkgerrors "didlab/pkg/domain-errors"
	"didlab/pkg/fingerprint"
)

var (
	// ErrNotFound keeps storage-specific 404s consistent across implementations.
	ErrNotFound = pkgerrors.New(pkgerrors.CodeNotFound, "record not found")

	// ErrSubjectMismatch is returned by Upsert when the fingerprint is already
	// stored for a different subject. The existing row is left untouched.
	ErrSubjectMismatch = pkgerrors.New(pkgerrors.CodeConflict, "fingerprint already recorded for another subject")
)

// Store persists credential records keyed by fingerprint.
//
// Upsert is create-or-replace: when the fingerprint is new the record is
// inserted as given; otherwise the existing row keeps its ID, subject and
// CreatedAt while the remaining fields are replaced. The returned bool is true
// only when this call inserted the row, so a lost insert race reports false.
type Store interface {
	FindByFingerprint(ctx context.Context, fp fingerprint.Fingerprint) (*models.Record, error)
	Upsert(ctx context.Context, record models.Record) (*models.Record, bool, error)
	// ListBySubject returns records ordered by CreatedAt ascending.
	ListBySubject(ctx context.Context, subject id.Address) ([]models.Record, error)
}
