package redis

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/predictlabs/predictd/internal/domain"
)

// RateLimiter implements domain.RateLimiter with a sliding window backed by
// Redis sorted sets. Each request is a member scored by its microsecond
// timestamp; entries older than the window are trimmed on every check.
type RateLimiter struct {
	rdb *redis.Client
}

// NewRateLimiter creates a RateLimiter backed by the given Client.
func NewRateLimiter(c *Client) *RateLimiter {
	return &RateLimiter{rdb: c.Underlying()}
}

func rateLimitKey(key string) string {
	return "ratelimit:" + key
}

// Allow checks whether a request for the given key is permitted under the
// sliding window rate limit. It returns true if the request is allowed (and
// the request is counted), or false if the limit has been reached.
func (rl *RateLimiter) Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, error) {
	now := time.Now().UnixMicro()
	cutoff := now - window.Microseconds()
	k := rateLimitKey(key)

	pipe := rl.rdb.TxPipeline()
	pipe.ZRemRangeByScore(ctx, k, "0", strconv.FormatInt(cutoff, 10))
	countCmd := pipe.ZCard(ctx, k)
	if _, err := pipe.Exec(ctx); err != nil {
		return false, fmt.Errorf("redis: rate limit allow %s: %w", key, err)
	}

	if countCmd.Val() >= int64(limit) {
		return false, nil
	}

	pipe = rl.rdb.TxPipeline()
	pipe.ZAdd(ctx, k, redis.Z{
		Score:  float64(now),
		Member: strconv.FormatInt(now, 10),
	})
	pipe.Expire(ctx, k, window)
	if _, err := pipe.Exec(ctx); err != nil {
		return false, fmt.Errorf("redis: rate limit count %s: %w", key, err)
	}

	return true, nil
}

// Compile-time interface check.
var _ domain.RateLimiter = (*RateLimiter)(nil)
