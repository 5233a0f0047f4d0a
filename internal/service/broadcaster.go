// Package service contains the event-driven glue between the market engine
// and the outside world. Each component implements domain.EventSink, consumes
// committed engine events, and never feeds back into engine state.
package service

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"

	"github.com/predictlabs/predictd/internal/domain"
)

// Broadcaster publishes committed engine events as JSON envelopes on the
// event bus. Lifecycle events go to ch:markets, trades to ch:trades plus
// ch:prices, and claims to ch:claims.
type Broadcaster struct {
	bus    domain.EventBus
	logger *slog.Logger
}

// NewBroadcaster creates a Broadcaster publishing on the given bus.
func NewBroadcaster(bus domain.EventBus, logger *slog.Logger) *Broadcaster {
	return &Broadcaster{bus: bus, logger: logger}
}

// Publish implements domain.EventSink. Bus failures are logged and dropped;
// the engine has already committed.
func (b *Broadcaster) Publish(ctx context.Context, ev domain.Event) {
	payload, err := json.Marshal(envelope(ev))
	if err != nil {
		b.logger.WarnContext(ctx, "broadcaster: marshal event failed",
			slog.String("type", string(ev.Type)),
			slog.String("error", err.Error()),
		)
		return
	}

	for _, ch := range channelsFor(ev) {
		if pubErr := b.bus.Publish(ctx, ch, payload); pubErr != nil {
			b.logger.WarnContext(ctx, "broadcaster: publish failed",
				slog.String("channel", ch),
				slog.String("type", string(ev.Type)),
				slog.String("error", pubErr.Error()),
			)
		}
	}
}

// channelsFor maps an event to the bus channels it belongs on.
func channelsFor(ev domain.Event) []string {
	switch ev.Type {
	case domain.EventTrade, domain.EventLiquidityAdded:
		if len(ev.Prices) > 0 {
			return []string{domain.ChannelTrades, domain.ChannelPrices}
		}
		return []string{domain.ChannelTrades}
	case domain.EventFreeClaim, domain.EventWinningsClaimed, domain.EventLPRewardClaimed:
		return []string{domain.ChannelClaims}
	default:
		return []string{domain.ChannelMarkets}
	}
}

// envelope renders an event with all 1e18-scaled amounts as decimal strings.
func envelope(ev domain.Event) map[string]any {
	out := map[string]any{
		"type":      string(ev.Type),
		"market_id": ev.MarketID,
		"at":        ev.At.UTC().Format(time.RFC3339Nano),
	}
	if ev.User != (common.Address{}) {
		out["user"] = ev.User.Hex()
	}
	if ev.Amount != nil {
		out["option"] = ev.Option
		out["amount"] = ev.Amount.Dec()
	}
	if ev.Trade != nil {
		t := ev.Trade
		out["trade"] = map[string]any{
			"id":        t.ID,
			"option":    t.Option,
			"side":      string(t.Side),
			"buyer":     t.Buyer.Hex(),
			"seller":    t.Seller.Hex(),
			"price":     dec(t.Price),
			"quantity":  dec(t.Quantity),
			"value":     dec(t.Value),
			"timestamp": t.Timestamp.UTC().Format(time.RFC3339Nano),
		}
	}
	if len(ev.Prices) > 0 {
		prices := make([]string, len(ev.Prices))
		for i, p := range ev.Prices {
			prices[i] = dec(p)
		}
		out["prices"] = prices
	}
	return out
}

func dec(v *uint256.Int) string {
	if v == nil {
		return "0"
	}
	return v.Dec()
}
