package domain

import (
	"context"
	"time"

	"github.com/ethereum/go-ethereum/common"
)

// ListOpts provides pagination and filtering for list queries.
type ListOpts struct {
	Limit  int
	Offset int
	Since  *time.Time
	Until  *time.Time
}

// MarketStore persists market snapshots. The in-memory engine is the source
// of truth; the store is a write-behind record for history that survives
// restarts, so writes tolerate lag and are idempotent.
type MarketStore interface {
	Upsert(ctx context.Context, market Market) error
	GetByID(ctx context.Context, id uint64) (Market, error)
	List(ctx context.Context, opts ListOpts) ([]Market, error)
	Count(ctx context.Context) (int64, error)
}

// TradeStore persists the append-only trade log.
type TradeStore interface {
	InsertBatch(ctx context.Context, trades []Trade) error
	ListByMarket(ctx context.Context, marketID uint64, opts ListOpts) ([]Trade, error)
	ListByUser(ctx context.Context, user common.Address, opts ListOpts) ([]Trade, error)
}
