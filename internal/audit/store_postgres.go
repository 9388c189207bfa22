package audit

import (
	"context"
	"database/sql"
	"fmt"
)

// PostgresStore appends events to the audit_events table.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) Append(ctx context.Context, event Event) error {
	query := `
		INSERT INTO audit_events (action, subject_address, fingerprint, ledger_tx_id, decision, request_id, occurred_at)
		VALUES ($1, $2, NULLIF($3, ''), NULLIF($4, ''), NULLIF($5, ''), NULLIF($6, ''), $7)
	`
	_, err := s.db.ExecContext(ctx, query,
		event.Action,
		event.Subject,
		event.Fingerprint,
		event.LedgerTxID,
		event.Decision,
		event.RequestID,
		event.Timestamp,
	)
	if err != nil {
		return fmt.Errorf("append audit event: %w", err)
	}
	return nil
}

func (s *PostgresStore) ListBySubject(ctx context.Context, subject string) ([]Event, error) {
	query := `
		SELECT action, subject_address, COALESCE(fingerprint, ''), COALESCE(ledger_tx_id, ''),
			COALESCE(decision, ''), COALESCE(request_id, ''), occurred_at
		FROM audit_events
		WHERE subject_address = $1
		ORDER BY occurred_at ASC, id ASC
	`
	rows, err := s.db.QueryContext(ctx, query, subject)
	if err != nil {
		return nil, fmt.Errorf("list audit events: %w", err)
	}
	defer rows.Close()

	var events []Event
	for rows.Next() {
		var e Event
		if err := rows.Scan(&e.Action, &e.Subject, &e.Fingerprint, &e.LedgerTxID, &e.Decision, &e.RequestID, &e.Timestamp); err != nil {
			return nil, fmt.Errorf("scan audit event: %w", err)
		}
		events = append(events, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate audit events: %w", err)
	}
	return events, nil
}
