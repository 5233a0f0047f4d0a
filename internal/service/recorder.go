package service

import (
	"context"
	"log/slog"

	"github.com/predictlabs/predictd/internal/domain"
)

// MarketSnapshotter returns the latest committed view of one market. The
// engine satisfies this with MarketInfo.
type MarketSnapshotter interface {
	MarketInfo(marketID uint64) (domain.Market, error)
}

// Recorder is a write-behind persistence sink: on every committed event it
// snapshots the market into the market store and appends trades to the trade
// log. Events are buffered through a channel so slow database writes never
// stall the caller; when the buffer fills, events are dropped and the next
// snapshot catches the state back up.
type Recorder struct {
	markets  domain.MarketStore
	trades   domain.TradeStore
	snapshot MarketSnapshotter
	events   chan domain.Event
	logger   *slog.Logger
}

// NewRecorder creates a Recorder writing behind the given stores.
func NewRecorder(markets domain.MarketStore, trades domain.TradeStore, snapshot MarketSnapshotter, logger *slog.Logger) *Recorder {
	return &Recorder{
		markets:  markets,
		trades:   trades,
		snapshot: snapshot,
		events:   make(chan domain.Event, 1024),
		logger:   logger,
	}
}

// Publish implements domain.EventSink.
func (r *Recorder) Publish(ctx context.Context, ev domain.Event) {
	select {
	case r.events <- ev:
	default:
		r.logger.Warn("recorder: event buffer full, dropping",
			slog.String("type", string(ev.Type)),
			slog.Uint64("market_id", ev.MarketID),
		)
	}
}

// Run drains the event buffer until the context is cancelled. It should be
// called in a goroutine.
func (r *Recorder) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev := <-r.events:
			r.record(ctx, ev)
		}
	}
}

func (r *Recorder) record(ctx context.Context, ev domain.Event) {
	m, err := r.snapshot.MarketInfo(ev.MarketID)
	if err != nil {
		r.logger.Warn("recorder: snapshot failed",
			slog.Uint64("market_id", ev.MarketID),
			slog.String("error", err.Error()),
		)
		return
	}
	if err := r.markets.Upsert(ctx, m); err != nil {
		r.logger.Warn("recorder: market upsert failed",
			slog.Uint64("market_id", ev.MarketID),
			slog.String("error", err.Error()),
		)
	}

	if ev.Trade != nil {
		if err := r.trades.InsertBatch(ctx, []domain.Trade{*ev.Trade}); err != nil {
			r.logger.Warn("recorder: trade insert failed",
				slog.Uint64("market_id", ev.MarketID),
				slog.String("trade_id", ev.Trade.ID),
				slog.String("error", err.Error()),
			)
		}
	}
}
