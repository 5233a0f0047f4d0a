package engine

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"

	"github.com/predictlabs/predictd/internal/amm"
	"github.com/predictlabs/predictd/internal/domain"
	"github.com/predictlabs/predictd/internal/fixedpoint"
	"github.com/predictlabs/predictd/internal/lifecycle"
)

// CreateParams describes a new staked market.
type CreateParams struct {
	Question        string
	Description     string
	Category        string
	OptionCount     int
	OptionLabels    []string
	Duration        time.Duration
	Seed            *uint256.Int
	EarlyResolution bool
}

// CreateFreeParams describes a new free-entry market: a staked market's
// parameters plus the pre-funded prize pool and its distribution rules.
type CreateFreeParams struct {
	CreateParams
	PrizePool            *uint256.Int
	TokensPerParticipant *uint256.Int
	MaxParticipants      int
}

func (e *Engine) validateCreate(p CreateParams) error {
	if strings.TrimSpace(p.Question) == "" {
		return domain.ErrEmptyQuestion
	}
	if p.OptionCount < minOptions || p.OptionCount > e.params.MaxOptions {
		return domain.ErrBadOptionCount
	}
	if len(p.OptionLabels) != p.OptionCount {
		return domain.ErrLengthMismatch
	}
	if p.Duration < e.params.MinDuration || p.Duration > e.params.MaxDuration {
		return domain.ErrBadDuration
	}
	if p.Seed == nil || p.Seed.IsZero() {
		return domain.ErrAmountMustBePositive
	}
	return nil
}

// CreateMarket creates a staked market seeded with the caller's liquidity.
// The seed registers as the creator's liquidity contribution, so the creator
// shares in AMM swap fees alongside later providers.
func (e *Engine) CreateMarket(ctx context.Context, caller common.Address, p CreateParams) (uint64, error) {
	if !e.auth.HasCapability(ctx, caller, domain.CapCreateMarket) && !e.auth.IsOwner(caller) {
		return 0, domain.ErrNotAuthorized
	}
	if err := e.validateCreate(p); err != nil {
		return 0, err
	}
	return e.create(ctx, caller, p, nil)
}

// CreateFreeMarket creates a free-entry market. The caller funds both the AMM
// seed and the prize pool in a single inbound transfer.
func (e *Engine) CreateFreeMarket(ctx context.Context, caller common.Address, p CreateFreeParams) (uint64, error) {
	if !e.auth.HasCapability(ctx, caller, domain.CapCreateMarket) && !e.auth.IsOwner(caller) {
		return 0, domain.ErrNotAuthorized
	}
	if err := e.validateCreate(p.CreateParams); err != nil {
		return 0, err
	}
	if p.PrizePool == nil || p.PrizePool.IsZero() ||
		p.TokensPerParticipant == nil || p.TokensPerParticipant.IsZero() {
		return 0, domain.ErrAmountMustBePositive
	}
	if p.MaxParticipants <= 0 {
		return 0, domain.ErrAmountMustBePositive
	}
	return e.create(ctx, caller, p.CreateParams, &p)
}

// create funds and registers the market. free is nil for staked markets.
func (e *Engine) create(ctx context.Context, caller common.Address, p CreateParams, free *CreateFreeParams) (uint64, error) {
	total := fixedpoint.Clone(p.Seed)
	if free != nil {
		total = fixedpoint.Add(total, free.PrizePool)
	}
	if err := e.tokens.TransferFrom(ctx, caller, e.params.Treasury, total); err != nil {
		return 0, fmt.Errorf("engine: fund market: %w", domain.ErrTransferFailed)
	}

	pool, err := amm.NewPool(p.OptionLabels, p.Seed)
	if err != nil {
		// The seed passed validation; a pool error here means it is too small
		// to split across the options. Return the funds.
		if terr := e.tokens.Transfer(ctx, caller, total); terr != nil {
			e.logger.Error("refund after pool seeding failure failed",
				slog.String("creator", caller.Hex()),
				slog.String("error", terr.Error()),
			)
		}
		return 0, err
	}

	now := e.now()
	m := domain.Market{
		Question:             p.Question,
		Description:          p.Description,
		Category:             p.Category,
		Creator:              caller,
		OptionCount:          p.OptionCount,
		Kind:                 domain.MarketKindStaked,
		CreatedAt:            now,
		EndTime:              now.Add(p.Duration),
		EarlyResolution:      p.EarlyResolution,
		WinningOption:        domain.NoWinner,
		AdminLiquidity:       fixedpoint.Clone(p.Seed),
		UserLiquidity:        fixedpoint.Zero(),
		PlatformFees:         fixedpoint.Zero(),
		AMMFees:              fixedpoint.Zero(),
		TotalVolume:          fixedpoint.Zero(),
		PrizePool:            fixedpoint.Zero(),
		TokensPerParticipant: fixedpoint.Zero(),
	}
	if free != nil {
		m.Kind = domain.MarketKindFreeEntry
		m.PrizePool = fixedpoint.Clone(free.PrizePool)
		m.TokensPerParticipant = fixedpoint.Clone(free.TokensPerParticipant)
		m.MaxParticipants = free.MaxParticipants
	}

	ms := &marketState{
		m:          m,
		pool:       pool,
		shares:     make(map[common.Address][]*uint256.Int),
		winClaimed: make(map[common.Address]bool),
		contribs:   make(map[common.Address]*domain.LiquidityContribution),
		lpTotal:    fixedpoint.Clone(p.Seed),
		freeClaims: make(map[common.Address]*domain.FreeClaim),
	}

	e.mu.Lock()
	id := uint64(len(e.markets))
	ms.m.ID = id
	e.markets = append(e.markets, ms)
	e.mu.Unlock()

	// The seed is the creator's contribution in the liquidity ledger.
	ms.mu.Lock()
	ms.contribs[caller] = &domain.LiquidityContribution{
		MarketID: id,
		Provider: caller,
		Amount:   fixedpoint.Clone(p.Seed),
	}
	ms.recordPrices(now, e.params.PriceHistoryLimit)
	ms.mu.Unlock()

	e.registerParticipation(caller, id)
	e.publishMarket(ctx, domain.EventMarketCreated, id, caller)

	e.logger.Info("market created",
		slog.Uint64("market_id", id),
		slog.String("kind", string(m.Kind)),
		slog.Int("options", p.OptionCount),
		slog.String("creator", caller.Hex()),
	)
	return id, nil
}

// ValidateMarket moves a market from Created to Validated, opening staked
// trading. Requires the validator capability.
func (e *Engine) ValidateMarket(ctx context.Context, caller common.Address, marketID uint64) error {
	if !e.auth.HasCapability(ctx, caller, domain.CapValidateMarket) && !e.auth.IsOwner(caller) {
		return domain.ErrNotAuthorized
	}
	ms, err := e.market(marketID)
	if err != nil {
		return err
	}

	ms.mu.Lock()
	if err := lifecycle.CanValidate(lifecycle.FromMarket(&ms.m)); err != nil {
		ms.mu.Unlock()
		return err
	}
	ms.m.Validated = true
	ms.mu.Unlock()

	e.publishMarket(ctx, domain.EventMarketValidated, marketID, caller)
	return nil
}

// InvalidateMarket terminally invalidates a not-yet-validated market and
// refunds the creator's seed (plus any remaining free-entry prize pool)
// exactly once. No trading, resolution, or dispute is legal afterwards.
func (e *Engine) InvalidateMarket(ctx context.Context, caller common.Address, marketID uint64) error {
	if !e.auth.HasCapability(ctx, caller, domain.CapValidateMarket) && !e.auth.IsOwner(caller) {
		return domain.ErrNotAuthorized
	}
	ms, err := e.market(marketID)
	if err != nil {
		return err
	}

	ms.mu.Lock()
	if err := lifecycle.CanInvalidate(lifecycle.FromMarket(&ms.m)); err != nil {
		ms.mu.Unlock()
		return err
	}

	refund := fixedpoint.Clone(ms.m.AdminLiquidity)
	if ms.m.Kind == domain.MarketKindFreeEntry {
		refund = fixedpoint.Add(refund, ms.m.PrizePool)
	}

	prev := ms.checkpoint()
	ms.m.Invalidated = true
	ms.m.SeedRefunded = true
	ms.m.AdminLiquidity = fixedpoint.Zero()
	ms.m.PrizePool = fixedpoint.Zero()

	if err := e.tokens.Transfer(ctx, ms.m.Creator, refund); err != nil {
		ms.m.Invalidated = false
		ms.m.SeedRefunded = false
		ms.restore(prev)
		ms.mu.Unlock()
		return fmt.Errorf("engine: refund seed: %w", domain.ErrTransferFailed)
	}
	ms.mu.Unlock()

	e.publishMarket(ctx, domain.EventMarketInvalidated, marketID, caller)
	return nil
}

// publishMarket emits a lifecycle event.
func (e *Engine) publishMarket(ctx context.Context, typ domain.EventType, marketID uint64, user common.Address) {
	e.sink.Publish(ctx, domain.Event{
		Type:     typ,
		MarketID: marketID,
		At:       e.now(),
		User:     user,
	})
}
