package service

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/predictlabs/predictd/internal/domain"
)

// ArchiveSource is the slice of the engine the archiver snapshots when a
// market reaches a terminal state.
type ArchiveSource interface {
	MarketInfo(marketID uint64) (domain.Market, error)
	OptionInfo(marketID uint64) ([]domain.Option, error)
	MarketTrades(marketID uint64, limit int) ([]domain.Trade, error)
}

// Archiver pushes a full JSON snapshot of a market to object storage when
// the market resolves or is invalidated. The snapshot bundles the market
// record, the final option state, and the retained trade tail so a settled
// market can be audited without the live engine.
type Archiver struct {
	writer domain.BlobWriter
	src    ArchiveSource
	logger *slog.Logger
}

// NewArchiver creates an Archiver uploading through the given writer.
func NewArchiver(writer domain.BlobWriter, src ArchiveSource, logger *slog.Logger) *Archiver {
	return &Archiver{writer: writer, src: src, logger: logger}
}

// Publish implements domain.EventSink. Only terminal lifecycle events
// trigger an upload.
func (a *Archiver) Publish(ctx context.Context, ev domain.Event) {
	switch ev.Type {
	case domain.EventMarketResolved, domain.EventDisputeResolved, domain.EventMarketInvalidated:
	default:
		return
	}

	if err := a.archive(ctx, ev); err != nil {
		a.logger.Warn("archiver: upload failed",
			slog.Uint64("market_id", ev.MarketID),
			slog.String("type", string(ev.Type)),
			slog.String("error", err.Error()),
		)
	}
}

func (a *Archiver) archive(ctx context.Context, ev domain.Event) error {
	m, err := a.src.MarketInfo(ev.MarketID)
	if err != nil {
		return fmt.Errorf("snapshot market: %w", err)
	}
	options, err := a.src.OptionInfo(ev.MarketID)
	if err != nil {
		return fmt.Errorf("snapshot options: %w", err)
	}
	trades, err := a.src.MarketTrades(ev.MarketID, 0)
	if err != nil {
		return fmt.Errorf("snapshot trades: %w", err)
	}

	doc := archiveDoc{
		ArchivedAt: ev.At.UTC(),
		Reason:     string(ev.Type),
		Market:     archiveMarket(m),
		Options:    archiveOptions(options),
		Trades:     archiveTrades(trades),
	}
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal snapshot: %w", err)
	}

	key := fmt.Sprintf("markets/%d/%s-%s.json",
		ev.MarketID, string(ev.Type), ev.At.UTC().Format("20060102T150405Z"))
	if err := a.writer.Put(ctx, key, bytes.NewReader(data), "application/json"); err != nil {
		return err
	}

	a.logger.Info("archiver: market archived",
		slog.Uint64("market_id", ev.MarketID),
		slog.String("key", key),
		slog.Int("trades", len(trades)),
	)
	return nil
}

// Archive documents render all 1e18-scaled amounts as decimal strings.

type archiveDoc struct {
	ArchivedAt time.Time        `json:"archived_at"`
	Reason     string           `json:"reason"`
	Market     map[string]any   `json:"market"`
	Options    []map[string]any `json:"options"`
	Trades     []map[string]any `json:"trades"`
}

func archiveMarket(m domain.Market) map[string]any {
	out := map[string]any{
		"id":               m.ID,
		"question":         m.Question,
		"description":      m.Description,
		"category":         m.Category,
		"creator":          m.Creator.Hex(),
		"option_count":     m.OptionCount,
		"kind":             string(m.Kind),
		"created_at":       m.CreatedAt.UTC().Format(time.RFC3339),
		"end_time":         m.EndTime.UTC().Format(time.RFC3339),
		"early_resolution": m.EarlyResolution,
		"validated":        m.Validated,
		"invalidated":      m.Invalidated,
		"resolved":         m.Resolved,
		"disputed":         m.Disputed,
		"winning_option":   m.WinningOption,
		"admin_liquidity":  dec(m.AdminLiquidity),
		"user_liquidity":   dec(m.UserLiquidity),
		"platform_fees":    dec(m.PlatformFees),
		"amm_fees":         dec(m.AMMFees),
		"total_volume":     dec(m.TotalVolume),
	}
	if m.ResolvedAt != nil {
		out["resolved_at"] = m.ResolvedAt.UTC().Format(time.RFC3339)
	}
	if m.Kind == domain.MarketKindFreeEntry {
		out["prize_pool"] = dec(m.PrizePool)
		out["tokens_per_participant"] = dec(m.TokensPerParticipant)
		out["max_participants"] = m.MaxParticipants
		out["free_participants"] = m.FreeParticipants
	}
	return out
}

func archiveOptions(options []domain.Option) []map[string]any {
	out := make([]map[string]any, len(options))
	for i, o := range options {
		out[i] = map[string]any{
			"index":   o.Index,
			"label":   o.Label,
			"price":   dec(o.Price),
			"shares":  dec(o.Shares),
			"volume":  dec(o.Volume),
			"reserve": dec(o.Reserve),
		}
	}
	return out
}

func archiveTrades(trades []domain.Trade) []map[string]any {
	out := make([]map[string]any, len(trades))
	for i, t := range trades {
		out[i] = map[string]any{
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
	return out
}
