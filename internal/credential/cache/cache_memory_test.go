package cache

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	id "didlab/pkg/domain"
	"didlab/pkg/fingerprint"
)

const (
	subjectA = id.Address("0x00000000000000000000000000000000000000a1")
	subjectB = id.Address("0x00000000000000000000000000000000000000b2")
	fpOne    = fingerprint.Fingerprint("0x1111111111111111111111111111111111111111111111111111111111111111")
	fpTwo    = fingerprint.Fingerprint("0x2222222222222222222222222222222222222222222222222222222222222222")
)

type InMemoryCacheSuite struct {
	suite.Suite
	cache *InMemoryCache
	ctx   context.Context
	now   time.Time
}

func TestInMemoryCacheSuite(t *testing.T) {
	suite.Run(t, new(InMemoryCacheSuite))
}

func (s *InMemoryCacheSuite) SetupTest() {
	s.now = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	s.cache = NewInMemoryCache(time.Minute, WithClock(func() time.Time { return s.now }))
	s.ctx = context.Background()
}

func (s *InMemoryCacheSuite) mark(subject id.Address, fp fingerprint.Fingerprint) {
	_, epoch, err := s.cache.Lookup(s.ctx, subject, fp)
	s.Require().NoError(err)
	stored, err := s.cache.MarkVerified(s.ctx, subject, fp, epoch)
	s.Require().NoError(err)
	s.Require().True(stored)
}

func (s *InMemoryCacheSuite) hit(subject id.Address, fp fingerprint.Fingerprint) bool {
	ok, _, err := s.cache.Lookup(s.ctx, subject, fp)
	s.Require().NoError(err)
	return ok
}

func (s *InMemoryCacheSuite) TestMissThenHit() {
	s.False(s.hit(subjectA, fpOne))
	s.mark(subjectA, fpOne)
	s.True(s.hit(subjectA, fpOne))
	s.False(s.hit(subjectB, fpOne), "entries are per subject")
}

func (s *InMemoryCacheSuite) TestExpiryEvictsOnRead() {
	s.mark(subjectA, fpOne)

	s.now = s.now.Add(59 * time.Second)
	s.True(s.hit(subjectA, fpOne))

	s.now = s.now.Add(time.Second)
	s.False(s.hit(subjectA, fpOne))
	s.Zero(s.cache.Len())
}

func (s *InMemoryCacheSuite) TestInvalidateDropsAllSubjects() {
	s.mark(subjectA, fpOne)
	s.mark(subjectB, fpOne)
	s.mark(subjectA, fpTwo)

	s.Require().NoError(s.cache.Invalidate(s.ctx, fpOne))

	s.False(s.hit(subjectA, fpOne))
	s.False(s.hit(subjectB, fpOne))
	s.True(s.hit(subjectA, fpTwo), "other fingerprints are untouched")
}

func (s *InMemoryCacheSuite) TestMarkAfterInvalidateIsRefused() {
	_, epoch, err := s.cache.Lookup(s.ctx, subjectA, fpOne)
	s.Require().NoError(err)

	// a revoke lands between the ledger read and the cache write
	s.Require().NoError(s.cache.Invalidate(s.ctx, fpOne))

	stored, err := s.cache.MarkVerified(s.ctx, subjectA, fpOne, epoch)
	s.Require().NoError(err)
	s.False(stored)
	s.False(s.hit(subjectA, fpOne))

	s.mark(subjectA, fpOne)
	s.True(s.hit(subjectA, fpOne), "a fresh lookup picks up the new epoch")
}

func (s *InMemoryCacheSuite) TestSweep() {
	s.mark(subjectA, fpOne)
	s.now = s.now.Add(30 * time.Second)
	s.mark(subjectA, fpTwo)
	s.now = s.now.Add(45 * time.Second)

	s.Equal(1, s.cache.Sweep())
	s.Equal(1, s.cache.Len())
	s.True(s.hit(subjectA, fpTwo))
}

func (s *InMemoryCacheSuite) TestRunSweepsUntilCancelled() {
	c := NewInMemoryCache(time.Millisecond)
	_, epoch, _ := c.Lookup(s.ctx, subjectA, fpOne)
	_, err := c.MarkVerified(s.ctx, subjectA, fpOne, epoch)
	s.Require().NoError(err)

	ctx, cancel := context.WithCancel(s.ctx)
	done := make(chan struct{})
	go func() {
		c.Run(ctx, 5*time.Millisecond)
		close(done)
	}()

	s.Eventually(func() bool { return c.Len() == 0 }, time.Second, 5*time.Millisecond)
	cancel()
	s.Eventually(func() bool {
		select {
		case <-done:
			return true
		default:
			return false
		}
	}, time.Second, 5*time.Millisecond)
}
