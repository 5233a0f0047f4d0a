package service

import (
	"context"
	"log/slog"

	"github.com/predictlabs/predictd/internal/domain"
)

// PriceKeeper mirrors post-trade prices into the price cache so read paths
// can serve the latest quote without touching the engine.
type PriceKeeper struct {
	cache  domain.PriceCache
	logger *slog.Logger
}

// NewPriceKeeper creates a PriceKeeper writing to the given cache.
func NewPriceKeeper(cache domain.PriceCache, logger *slog.Logger) *PriceKeeper {
	return &PriceKeeper{cache: cache, logger: logger}
}

// Publish implements domain.EventSink. Events without a price vector are
// ignored.
func (p *PriceKeeper) Publish(ctx context.Context, ev domain.Event) {
	if len(ev.Prices) == 0 {
		return
	}
	if err := p.cache.SetPrices(ctx, ev.MarketID, ev.Prices, ev.At); err != nil {
		p.logger.WarnContext(ctx, "pricekeeper: cache update failed",
			slog.Uint64("market_id", ev.MarketID),
			slog.String("error", err.Error()),
		)
	}
}
