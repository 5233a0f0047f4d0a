// Package engine implements the market engine: an arena of prediction-market
// ledgers, each combining an AMM pool, a lifecycle state machine, liquidity
// and free-entry ledgers, and payout accounting. Operations on one market are
// linearized under a per-market lock; markets are fully independent of each
// other. The engine moves funds through an injected TokenLedger and checks
// permissions through an injected Authorizer; it never trusts either.
package engine

import (
	"log/slog"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/predictlabs/predictd/internal/domain"
)

// Params are the economic and operational parameters of the engine. They are
// configuration: the engine validates against them but does not interpret
// them further.
type Params struct {
	// FeeBps is the platform fee on buys and sells, in basis points.
	FeeBps uint64

	// SwapFeeBps is the AMM-level fee on option-to-option swaps, accrued to
	// the liquidity-provider pool.
	SwapFeeBps uint64

	// MinDuration and MaxDuration bound a market's trading window.
	MinDuration time.Duration
	MaxDuration time.Duration

	// MinEarlyResolveDelay is the minimum market age before an
	// early-resolution market may be resolved.
	MinEarlyResolveDelay time.Duration

	// MaxOptions caps the option count (minimum is always 2).
	MaxOptions int

	// PriceHistoryLimit bounds the in-memory price-history tail per market.
	PriceHistoryLimit int

	// TradeTailLimit bounds the in-memory recent-trades tail per market.
	TradeTailLimit int

	// Treasury is the engine's own token account; inbound transfers land
	// here and outbound transfers draw from it.
	Treasury common.Address
}

// minOptions is the floor on a market's option count.
const minOptions = 2

// Engine is the orchestrator. All exported methods are safe for concurrent
// use by many callers.
type Engine struct {
	params Params
	tokens domain.TokenLedger
	auth   domain.Authorizer
	sink   domain.EventSink
	logger *slog.Logger
	now    func() time.Time

	mu         sync.RWMutex
	markets    []*marketState // index == market id; ids are never reused
	portfolios map[common.Address]map[uint64]struct{}
}

// New creates an Engine. sink may be nil (events are dropped).
func New(params Params, tokens domain.TokenLedger, auth domain.Authorizer, sink domain.EventSink, logger *slog.Logger) *Engine {
	if sink == nil {
		sink = domain.NopSink{}
	}
	if params.PriceHistoryLimit <= 0 {
		params.PriceHistoryLimit = 256
	}
	if params.TradeTailLimit <= 0 {
		params.TradeTailLimit = 512
	}
	if params.MaxOptions < minOptions {
		params.MaxOptions = 10
	}
	return &Engine{
		params:     params,
		tokens:     tokens,
		auth:       auth,
		sink:       sink,
		logger:     logger.With(slog.String("component", "engine")),
		now:        time.Now,
		portfolios: make(map[common.Address]map[uint64]struct{}),
	}
}

// market returns the state for id, or ErrMarketNotFound.
func (e *Engine) market(id uint64) (*marketState, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	if id >= uint64(len(e.markets)) {
		return nil, domain.ErrMarketNotFound
	}
	return e.markets[id], nil
}

// registerParticipation records that user touched market id, for portfolio
// queries.
func (e *Engine) registerParticipation(user common.Address, id uint64) {
	e.mu.Lock()
	defer e.mu.Unlock()
	set, ok := e.portfolios[user]
	if !ok {
		set = make(map[uint64]struct{})
		e.portfolios[user] = set
	}
	set[id] = struct{}{}
}

// MarketCount returns the number of markets ever created.
func (e *Engine) MarketCount() int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return len(e.markets)
}
