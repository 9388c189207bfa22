//go:build integration

package store_test

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"didlab/internal/credential/models"
	"didlab/internal/credential/store"
	id "didlab/pkg/domain"
	"didlab/pkg/testutil"
	"didlab/pkg/testutil/containers"
)

const (
	subjectA = testutil.SubjectA
	subjectB = testutil.SubjectB
)

type PostgresStoreSuite struct {
	suite.Suite
	postgres *containers.PostgresContainer
	store    *store.PostgresStore
	now      time.Time
}

func TestPostgresStoreSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(PostgresStoreSuite))
}

func (s *PostgresStoreSuite) SetupSuite() {
	mgr := containers.GetManager()
	s.postgres = mgr.GetPostgres(s.T())
	s.store = store.NewPostgres(s.postgres.DB)
}

func (s *PostgresStoreSuite) SetupTest() {
	s.Require().NoError(s.postgres.Reset(context.Background()))
	// Postgres keeps microseconds; truncate so round-tripped times compare equal.
	s.now = time.Now().UTC().Truncate(time.Millisecond)
}

func (s *PostgresStoreSuite) record(subject id.Address, doc string, createdAt time.Time) models.Record {
	return testutil.NewRecordBuilder().
		WithSubject(subject).
		WithDocument(doc).
		CreatedAt(createdAt).
		Build()
}

func (s *PostgresStoreSuite) TestUpsertRoundTrip() {
	ctx := context.Background()
	rec := s.record(subjectA, `{"degree":"BSc"}`, s.now)
	rec.FriendlyName = "Degree"

	stored, inserted, err := s.store.Upsert(ctx, rec)
	s.Require().NoError(err)
	s.True(inserted)
	s.Equal(rec.ID, stored.ID)

	found, err := s.store.FindByFingerprint(ctx, rec.Fingerprint)
	s.Require().NoError(err)
	s.Equal(rec.Subject, found.Subject)
	s.Equal("Degree", found.FriendlyName)
	s.Equal("", found.Description)
	s.Equal(models.ModeLegacy, found.Mode)
	s.True(rec.CreatedAt.Equal(found.CreatedAt))
}

func (s *PostgresStoreSuite) TestUpsertReplacesInPlace() {
	ctx := context.Background()
	rec := s.record(subjectA, `{"n":1}`, s.now)
	_, _, err := s.store.Upsert(ctx, rec)
	s.Require().NoError(err)

	replacement := rec
	replacement.ID = id.NewRecordID()
	replacement.Blob = "cmVwbGFjZWQ="
	replacement.Mode = models.ModePrivate
	replacement.UpdatedAt = s.now.Add(time.Minute)

	stored, inserted, err := s.store.Upsert(ctx, replacement)
	s.Require().NoError(err)
	s.False(inserted)
	s.Equal(rec.ID, stored.ID)
	s.Equal("cmVwbGFjZWQ=", stored.Blob)
	s.Equal(models.ModePrivate, stored.Mode)
	s.True(rec.CreatedAt.Equal(stored.CreatedAt))
}

func (s *PostgresStoreSuite) TestUpsertSubjectMismatch() {
	ctx := context.Background()
	rec := s.record(subjectA, `{"n":1}`, s.now)
	_, _, err := s.store.Upsert(ctx, rec)
	s.Require().NoError(err)

	other := rec
	other.ID = id.NewRecordID()
	other.Subject = subjectB
	_, _, err = s.store.Upsert(ctx, other)
	s.ErrorIs(err, store.ErrSubjectMismatch)

	found, err := s.store.FindByFingerprint(ctx, rec.Fingerprint)
	s.Require().NoError(err)
	s.Equal(subjectA, found.Subject)
}

func (s *PostgresStoreSuite) TestFindByFingerprintNotFound() {
	_, err := s.store.FindByFingerprint(context.Background(), "0x0000000000000000000000000000000000000000000000000000000000000000")
	s.ErrorIs(err, store.ErrNotFound)
}

// TestConcurrentUpsert verifies the unique index keeps one row and exactly one
// writer observes an insert.
func (s *PostgresStoreSuite) TestConcurrentUpsert() {
	ctx := context.Background()
	rec := s.record(subjectA, `{"race":true}`, s.now)
	const goroutines = 50

	var wg sync.WaitGroup
	var inserts, failures atomic.Int32
	for i := 0; i < goroutines; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			r := rec
			r.ID = id.NewRecordID()
			_, inserted, err := s.store.Upsert(ctx, r)
			if err != nil {
				failures.Add(1)
				return
			}
			if inserted {
				inserts.Add(1)
			}
		}()
	}
	wg.Wait()

	s.Equal(int32(0), failures.Load())
	s.Equal(int32(1), inserts.Load())

	count, err := s.postgres.CountRecords(ctx)
	s.Require().NoError(err)
	s.Equal(1, count)
}

func (s *PostgresStoreSuite) TestListBySubjectOrdering() {
	ctx := context.Background()
	later := s.record(subjectA, `{"n":2}`, s.now.Add(time.Minute))
	earlier := s.record(subjectA, `{"n":1}`, s.now)
	other := s.record(subjectB, `{"n":3}`, s.now)
	for _, rec := range []models.Record{later, earlier, other} {
		_, _, err := s.store.Upsert(ctx, rec)
		s.Require().NoError(err)
	}

	records, err := s.store.ListBySubject(ctx, subjectA)
	s.Require().NoError(err)
	s.Require().Len(records, 2)
	s.Equal(earlier.Fingerprint, records[0].Fingerprint)
	s.Equal(later.Fingerprint, records[1].Fingerprint)
}
