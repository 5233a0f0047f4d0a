package redis

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/holiman/uint256"
	"github.com/redis/go-redis/v9"

	"github.com/predictlabs/predictd/internal/domain"
)

// PriceCache implements domain.PriceCache using Redis hashes. Each market's
// price vector is stored at key "prices:{marketID}" with fields "prices"
// (comma-joined decimal strings, one per option) and "ts" (Unix nanosecond
// timestamp).
type PriceCache struct {
	rdb *redis.Client
}

// NewPriceCache creates a PriceCache backed by the given Client.
func NewPriceCache(c *Client) *PriceCache {
	return &PriceCache{rdb: c.Underlying()}
}

func priceKey(marketID uint64) string {
	return "prices:" + strconv.FormatUint(marketID, 10)
}

// SetPrices stores the latest price vector and timestamp for a market.
func (pc *PriceCache) SetPrices(ctx context.Context, marketID uint64, prices []*uint256.Int, ts time.Time) error {
	parts := make([]string, len(prices))
	for i, p := range prices {
		parts[i] = p.Dec()
	}
	fields := map[string]interface{}{
		"prices": strings.Join(parts, ","),
		"ts":     strconv.FormatInt(ts.UnixNano(), 10),
	}
	if err := pc.rdb.HSet(ctx, priceKey(marketID), fields).Err(); err != nil {
		return fmt.Errorf("redis: set prices %d: %w", marketID, err)
	}
	return nil
}

// GetPrices retrieves the latest price vector and timestamp for a market.
// It returns domain.ErrNotFound when the key does not exist.
func (pc *PriceCache) GetPrices(ctx context.Context, marketID uint64) ([]*uint256.Int, time.Time, error) {
	vals, err := pc.rdb.HGetAll(ctx, priceKey(marketID)).Result()
	if err != nil {
		return nil, time.Time{}, fmt.Errorf("redis: get prices %d: %w", marketID, err)
	}
	if len(vals) == 0 {
		return nil, time.Time{}, domain.ErrNotFound
	}

	joined, ok := vals["prices"]
	if !ok {
		return nil, time.Time{}, domain.ErrNotFound
	}
	parts := strings.Split(joined, ",")
	prices := make([]*uint256.Int, len(parts))
	for i, p := range parts {
		v, err := uint256.FromDecimal(p)
		if err != nil {
			return nil, time.Time{}, fmt.Errorf("redis: parse price %d[%d]: %w", marketID, i, err)
		}
		prices[i] = v
	}

	tsStr, ok := vals["ts"]
	if !ok {
		return nil, time.Time{}, domain.ErrNotFound
	}
	tsNano, err := strconv.ParseInt(tsStr, 10, 64)
	if err != nil {
		return nil, time.Time{}, fmt.Errorf("redis: parse ts %d: %w", marketID, err)
	}

	return prices, time.Unix(0, tsNano), nil
}

// Compile-time interface check.
var _ domain.PriceCache = (*PriceCache)(nil)
