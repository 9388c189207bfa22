// Package cache remembers positive verification results for a short time so
// repeated checks of the same credential skip the ledger round trip. The
// cache is off unless credentials.verification_cache_enabled is set.
//
// Only "verified" outcomes are cached. Every Invalidate advances a revocation
// epoch; MarkVerified carries the epoch observed by the Lookup that preceded
// the ledger read and is dropped if a revocation happened in between, so a
// verify racing a revoke cannot re-cache a stale positive.
//
// A revocation that bypasses this service (sent to the ledger directly, or
// handled by a replica with its own in-memory cache) is not seen: such an
// entry stays positive until its TTL expires.
package cache

import (
	"context"

	id "didlab/pkg/domain"
	"didlab/pkg/fingerprint"
)

// VerificationCache is implemented by InMemoryCache, RedisCache and
// ResilientCache.
type VerificationCache interface {
	// Lookup reports a live positive entry and the current revocation epoch.
	Lookup(ctx context.Context, subject id.Address, fp fingerprint.Fingerprint) (hit bool, epoch uint64, err error)
	// MarkVerified stores a positive entry unless the epoch has moved past
	// epoch. It reports whether the entry was stored.
	MarkVerified(ctx context.Context, subject id.Address, fp fingerprint.Fingerprint, epoch uint64) (bool, error)
	// Invalidate drops every subject's entry for fp and advances the epoch.
	Invalidate(ctx context.Context, fp fingerprint.Fingerprint) error
}
