package store

import (
	"context"
	"sort"
	"sync"

	"didlab/internal/credential/models"
	id "didlab/pkg/domain"
	"didlab/pkg/fingerprint"
)

// InMemoryStore is an in-memory implementation of Store for tests or local use.
// It is safe for concurrent access but does not persist across process restarts.
type InMemoryStore struct {
	mu      sync.RWMutex
	records map[fingerprint.Fingerprint]models.Record
}

// NewInMemoryStore constructs an empty in-memory record store.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{records: make(map[fingerprint.Fingerprint]models.Record)}
}

// FindByFingerprint retrieves a record or returns ErrNotFound.
func (s *InMemoryStore) FindByFingerprint(ctx context.Context, fp fingerprint.Fingerprint) (*models.Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	if rec, ok := s.records[fp]; ok {
		return &rec, nil
	}
	return nil, ErrNotFound
}

func (s *InMemoryStore) Upsert(ctx context.Context, record models.Record) (*models.Record, bool, error) {
	if err := ctx.Err(); err != nil {
		return nil, false, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.records[record.Fingerprint]
	if !ok {
		s.records[record.Fingerprint] = record
		return &record, true, nil
	}
	if existing.Subject != record.Subject {
		return nil, false, ErrSubjectMismatch
	}

	existing.Issuer = record.Issuer
	existing.FriendlyName = record.FriendlyName
	existing.Description = record.Description
	existing.Blob = record.Blob
	existing.Mode = record.Mode
	existing.UpdatedAt = record.UpdatedAt
	s.records[record.Fingerprint] = existing
	return &existing, false, nil
}

func (s *InMemoryStore) ListBySubject(ctx context.Context, subject id.Address) ([]models.Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]models.Record, 0)
	for _, rec := range s.records {
		if rec.Subject == subject {
			out = append(out, rec)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].Fingerprint < out[j].Fingerprint
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out, nil
}

// Len returns the number of stored records.
func (s *InMemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.records)
}
