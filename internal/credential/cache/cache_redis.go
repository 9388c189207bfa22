package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	id "didlab/pkg/domain"
	"didlab/pkg/fingerprint"
)

const (
	redisVerifiedKeyPrefix = "didlab:verified:"
	redisEpochKey          = "didlab:verified:epoch"
)

// markIfEpoch writes the subject field only while the epoch key still holds
// the value the caller observed. A missing epoch key reads as 0.
var markIfEpoch = redis.NewScript(`
local current = redis.call("GET", KEYS[2])
if not current then current = "0" end
if current ~= ARGV[1] then return 0 end
redis.call("HSET", KEYS[1], ARGV[2], ARGV[3])
redis.call("PEXPIRE", KEYS[1], ARGV[4])
return 1
`)

// RedisCache stores verification results in one hash per fingerprint with
// a field per subject, so Invalidate is a single DEL plus an epoch INCR
// shared by every replica.
type RedisCache struct {
	client redis.Cmdable
	ttl    time.Duration
}

// NewRedisCache constructs a Redis-backed verification cache.
func NewRedisCache(client redis.Cmdable, ttl time.Duration) *RedisCache {
	return &RedisCache{client: client, ttl: ttl}
}

// Lookup pipelines HEXISTS with a read of the epoch key.
func (c *RedisCache) Lookup(ctx context.Context, subject id.Address, fp fingerprint.Fingerprint) (bool, uint64, error) {
	var (
		exists *redis.BoolCmd
		epoch  *redis.StringCmd
	)
	_, err := c.client.Pipelined(ctx, func(pipe redis.Pipeliner) error {
		exists = pipe.HExists(ctx, verifiedKey(fp), subject.String())
		epoch = pipe.Get(ctx, redisEpochKey)
		return nil
	})
	if err != nil && !errors.Is(err, redis.Nil) {
		return false, 0, fmt.Errorf("read verification cache: %w", err)
	}
	current, err := epoch.Uint64()
	if errors.Is(err, redis.Nil) {
		current = 0
	} else if err != nil {
		return false, 0, fmt.Errorf("read verification epoch: %w", err)
	}
	return exists.Val(), current, nil
}

// MarkVerified sets the subject field and refreshes the key TTL in one
// script run. The TTL applies to the whole hash.
func (c *RedisCache) MarkVerified(ctx context.Context, subject id.Address, fp fingerprint.Fingerprint, epoch uint64) (bool, error) {
	stored, err := markIfEpoch.Run(ctx, c.client,
		[]string{verifiedKey(fp), redisEpochKey},
		epoch, subject.String(), time.Now().Unix(), c.ttl.Milliseconds(),
	).Int()
	if err != nil {
		return false, fmt.Errorf("write verification cache: %w", err)
	}
	return stored == 1, nil
}

func (c *RedisCache) Invalidate(ctx context.Context, fp fingerprint.Fingerprint) error {
	_, err := c.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, verifiedKey(fp))
		pipe.Incr(ctx, redisEpochKey)
		return nil
	})
	if err != nil {
		return fmt.Errorf("invalidate verification cache: %w", err)
	}
	return nil
}

func verifiedKey(fp fingerprint.Fingerprint) string {
	return redisVerifiedKeyPrefix + fp.String()
}
