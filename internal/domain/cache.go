package domain

import (
	"context"
	"time"

	"github.com/holiman/uint256"
)

// PriceCache provides fast access to the latest per-option prices of a
// market. A cache miss is ErrNotFound; callers fall back to the engine.
type PriceCache interface {
	SetPrices(ctx context.Context, marketID uint64, prices []*uint256.Int, ts time.Time) error
	GetPrices(ctx context.Context, marketID uint64) ([]*uint256.Int, time.Time, error)
}

// EventBus distributes committed engine events to out-of-process consumers
// (the WebSocket hub subscribes through this).
type EventBus interface {
	Publish(ctx context.Context, channel string, payload []byte) error
	Subscribe(ctx context.Context, channels ...string) (<-chan BusMessage, func(), error)
}

// Bus channels. Lifecycle changes, price moves, trades, and claims are
// published on separate channels so consumers can subscribe narrowly.
const (
	ChannelMarkets = "ch:markets"
	ChannelPrices  = "ch:prices"
	ChannelTrades  = "ch:trades"
	ChannelClaims  = "ch:claims"
)

// BusMessage is one message delivered by an EventBus subscription.
type BusMessage struct {
	Channel string
	Payload []byte
}

// RateLimiter provides distributed request rate limiting.
type RateLimiter interface {
	Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, error)
}
