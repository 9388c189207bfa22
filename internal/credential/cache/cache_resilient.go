package cache

import (
	"context"
	"log/slog"

	"didlab/pkg/domain"
	"didlab/pkg/fingerprint"
	"didlab/pkg/platform/circuit"
)

// ResilientCache stops calling a failing cache until its breaker recovers.
// While open, reads miss and writes are dropped. Invalidate always reaches
// the wrapped cache so a revocation is never skipped deliberately.
type ResilientCache struct {
	next    VerificationCache
	breaker *circuit.Breaker
	logger  *slog.Logger
}

func NewResilientCache(next VerificationCache, breaker *circuit.Breaker, logger *slog.Logger) *ResilientCache {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &ResilientCache{next: next, breaker: breaker, logger: logger}
}

// Lookup reports a miss at epoch 0 while open. A later MarkVerified at epoch
// 0 is refused by the wrapped cache once any revocation has been recorded.
func (c *ResilientCache) Lookup(ctx context.Context, subject domain.Address, fp fingerprint.Fingerprint) (bool, uint64, error) {
	if !c.breaker.Allow() {
		return false, 0, nil
	}
	ok, epoch, err := c.next.Lookup(ctx, subject, fp)
	c.record(ctx, err)
	return ok, epoch, err
}

func (c *ResilientCache) MarkVerified(ctx context.Context, subject domain.Address, fp fingerprint.Fingerprint, epoch uint64) (bool, error) {
	if !c.breaker.Allow() {
		return false, nil
	}
	stored, err := c.next.MarkVerified(ctx, subject, fp, epoch)
	c.record(ctx, err)
	return stored, err
}

func (c *ResilientCache) Invalidate(ctx context.Context, fp fingerprint.Fingerprint) error {
	err := c.next.Invalidate(ctx, fp)
	c.record(ctx, err)
	return err
}

func (c *ResilientCache) record(ctx context.Context, err error) {
	change := c.breaker.Record(err)
	switch {
	case change.Opened:
		c.logger.WarnContext(ctx, "verification cache circuit opened", "breaker", c.breaker.Name(), "error", err)
	case change.Closed:
		c.logger.InfoContext(ctx, "verification cache circuit closed", "breaker", c.breaker.Name())
	}
}
