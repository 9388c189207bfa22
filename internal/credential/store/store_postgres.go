package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"didlab/internal/credential/models"
	id "didlab/pkg/domain"
	"didlab/pkg/fingerprint"
)

// PostgresStore persists credential records in PostgreSQL. Fingerprint
// uniqueness is enforced by the credential_records unique index.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgres constructs a PostgreSQL-backed record store.
func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

const recordColumns = `id, subject_address, issuer_address, fingerprint, friendly_name, description, blob, mode, created_at, updated_at`

func (s *PostgresStore) FindByFingerprint(ctx context.Context, fp fingerprint.Fingerprint) (*models.Record, error) {
	query := `SELECT ` + recordColumns + ` FROM credential_records WHERE fingerprint = $1`
	record, err := scanRecord(s.db.QueryRowContext(ctx, query, fp.String()))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("find record by fingerprint: %w", err)
	}
	return &record, nil
}

// Upsert relies on the conditional DO UPDATE: when the stored subject
// differs no row is returned and the existing record is left as is.
// xmax is zero only for a tuple this statement inserted.
func (s *PostgresStore) Upsert(ctx context.Context, record models.Record) (*models.Record, bool, error) {
	query := `
		INSERT INTO credential_records (` + recordColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (fingerprint) DO UPDATE SET
			issuer_address = EXCLUDED.issuer_address,
			friendly_name = EXCLUDED.friendly_name,
			description = EXCLUDED.description,
			blob = EXCLUDED.blob,
			mode = EXCLUDED.mode,
			updated_at = EXCLUDED.updated_at
		WHERE credential_records.subject_address = EXCLUDED.subject_address
		RETURNING ` + recordColumns + `, (xmax = 0) AS inserted
	`
	row := s.db.QueryRowContext(ctx, query,
		uuid.UUID(record.ID),
		record.Subject.String(),
		record.Issuer.String(),
		record.Fingerprint.String(),
		nullString(record.FriendlyName),
		nullString(record.Description),
		record.Blob,
		string(record.Mode),
		record.CreatedAt,
		record.UpdatedAt,
	)

	var inserted bool
	stored, err := scanRecord(row, &inserted)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, false, ErrSubjectMismatch
		}
		return nil, false, fmt.Errorf("upsert record: %w", err)
	}
	return &stored, inserted, nil
}

func (s *PostgresStore) ListBySubject(ctx context.Context, subject id.Address) ([]models.Record, error) {
	query := `
		SELECT ` + recordColumns + `
		FROM credential_records
		WHERE subject_address = $1
		ORDER BY created_at ASC, fingerprint ASC
	`
	rows, err := s.db.QueryContext(ctx, query, subject.String())
	if err != nil {
		return nil, fmt.Errorf("list records by subject: %w", err)
	}
	defer rows.Close()

	out := make([]models.Record, 0)
	for rows.Next() {
		record, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("scan record: %w", err)
		}
		out = append(out, record)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate records: %w", err)
	}
	return out, nil
}

type recordRow interface {
	Scan(dest ...any) error
}

func scanRecord(row recordRow, extra ...any) (models.Record, error) {
	var record models.Record
	var recordID uuid.UUID
	var subject, issuer, fp, mode string
	var friendlyName, description sql.NullString

	dest := []any{&recordID, &subject, &issuer, &fp, &friendlyName, &description, &record.Blob, &mode, &record.CreatedAt, &record.UpdatedAt}
	dest = append(dest, extra...)
	if err := row.Scan(dest...); err != nil {
		return models.Record{}, err
	}

	record.ID = id.RecordID(recordID)
	record.Subject = id.Address(subject)
	record.Issuer = id.Address(issuer)
	record.Fingerprint = fingerprint.Fingerprint(fp)
	record.Mode = models.Mode(mode)
	record.FriendlyName = friendlyName.String
	record.Description = description.String
	return record, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
