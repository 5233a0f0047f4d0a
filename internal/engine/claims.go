package engine

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"

	"github.com/predictlabs/predictd/internal/domain"
	"github.com/predictlabs/predictd/internal/fixedpoint"
	"github.com/predictlabs/predictd/internal/lifecycle"
	"github.com/predictlabs/predictd/internal/payout"
)

// Resolve declares the winning option. Requires the resolver capability.
// Before endTime it is only legal on early-resolution markets that are at
// least MinEarlyResolveDelay old.
func (e *Engine) Resolve(ctx context.Context, caller common.Address, marketID uint64, winningOption int) error {
	if !e.auth.HasCapability(ctx, caller, domain.CapResolveMarket) && !e.auth.IsOwner(caller) {
		return domain.ErrNotAuthorized
	}
	ms, err := e.market(marketID)
	if err != nil {
		return err
	}

	ms.mu.Lock()
	now := e.now()
	if err := lifecycle.CanResolve(lifecycle.FromMarket(&ms.m), now, e.params.MinEarlyResolveDelay); err != nil {
		ms.mu.Unlock()
		return err
	}
	if winningOption < 0 || winningOption >= ms.m.OptionCount {
		ms.mu.Unlock()
		return domain.ErrInvalidWinningOption
	}

	ms.m.Resolved = true
	ms.m.WinningOption = winningOption
	ms.m.ResolvedAt = &now
	ms.snapshotBasis()
	ms.mu.Unlock()

	e.logger.Info("market resolved",
		slog.Uint64("market_id", marketID),
		slog.Int("winning_option", winningOption),
	)
	e.sink.Publish(ctx, domain.Event{
		Type:     domain.EventMarketResolved,
		MarketID: marketID,
		At:       now,
		User:     caller,
		Option:   winningOption,
	})
	return nil
}

// Dispute challenges a resolution. Legal once, only after resolution, and
// never for callers holding winning shares. While disputed, all claims are
// frozen until the owner resolves the dispute.
func (e *Engine) Dispute(ctx context.Context, caller common.Address, marketID uint64) error {
	ms, err := e.market(marketID)
	if err != nil {
		return err
	}

	ms.mu.Lock()
	if err := lifecycle.CanDispute(lifecycle.FromMarket(&ms.m), ms.holdsWinningShares(caller)); err != nil {
		ms.mu.Unlock()
		return err
	}
	ms.m.Disputed = true
	ms.mu.Unlock()

	e.publishMarket(ctx, domain.EventMarketDisputed, marketID, caller)
	return nil
}

// ResolveDispute is the owner's final ruling on a disputed market: it may
// amend the winning option and reopens claims.
func (e *Engine) ResolveDispute(ctx context.Context, caller common.Address, marketID uint64, finalOption int) error {
	if !e.auth.IsOwner(caller) {
		return domain.ErrOnlyAdminOrOwner
	}
	ms, err := e.market(marketID)
	if err != nil {
		return err
	}

	ms.mu.Lock()
	if err := lifecycle.CanResolveDispute(lifecycle.FromMarket(&ms.m)); err != nil {
		ms.mu.Unlock()
		return err
	}
	if finalOption < 0 || finalOption >= ms.m.OptionCount {
		ms.mu.Unlock()
		return domain.ErrInvalidWinningOption
	}
	ms.m.WinningOption = finalOption
	ms.m.Disputed = false
	ms.snapshotBasis()
	ms.mu.Unlock()

	e.publishMarket(ctx, domain.EventDisputeResolved, marketID, caller)
	return nil
}

// ClaimWinnings pays out a holder of winning shares, exactly once. The share
// count itself remains as history; only the claim flag and the liquidity
// aggregate change.
func (e *Engine) ClaimWinnings(ctx context.Context, caller common.Address, marketID uint64) (*uint256.Int, error) {
	ms, err := e.market(marketID)
	if err != nil {
		return nil, err
	}

	ms.mu.Lock()
	if err := lifecycle.CanClaim(lifecycle.FromMarket(&ms.m)); err != nil {
		ms.mu.Unlock()
		return nil, err
	}
	if ms.winClaimed[caller] {
		ms.mu.Unlock()
		return nil, domain.ErrAlreadyClaimed
	}
	win := ms.m.WinningOption
	held, ok := ms.shares[caller]
	if !ok || held[win].IsZero() {
		ms.mu.Unlock()
		return nil, domain.ErrNoWinningShares
	}

	// Compute from the resolution-time basis: every holder's payout is a
	// function of the same inputs, no matter how many claims ran before.
	amount := payout.Winnings(
		held[win],
		ms.basis.winningShares,
		ms.basis.winningPrice,
		ms.basis.userLiquidity,
	)

	prevLiq := fixedpoint.Clone(ms.m.UserLiquidity)
	ms.winClaimed[caller] = true
	ms.m.UserLiquidity = fixedpoint.Sub(ms.m.UserLiquidity, amount)

	if err := e.tokens.Transfer(ctx, caller, amount); err != nil {
		delete(ms.winClaimed, caller)
		ms.m.UserLiquidity = prevLiq
		ms.mu.Unlock()
		return nil, fmt.Errorf("engine: claim winnings: %w", domain.ErrTransferFailed)
	}
	now := e.now()
	ms.mu.Unlock()

	e.sink.Publish(ctx, domain.Event{
		Type:     domain.EventWinningsClaimed,
		MarketID: marketID,
		At:       now,
		User:     caller,
		Amount:   fixedpoint.Clone(amount),
	})
	return amount, nil
}

// ClaimLPReward pays a liquidity provider their pro-rata share of accrued
// swap fees, exactly once per market.
func (e *Engine) ClaimLPReward(ctx context.Context, caller common.Address, marketID uint64) (*uint256.Int, error) {
	ms, err := e.market(marketID)
	if err != nil {
		return nil, err
	}

	ms.mu.Lock()
	if err := lifecycle.CanClaim(lifecycle.FromMarket(&ms.m)); err != nil {
		ms.mu.Unlock()
		return nil, err
	}
	c, ok := ms.contribs[caller]
	if !ok || c.Amount.IsZero() {
		ms.mu.Unlock()
		return nil, domain.ErrNotLiquidityProvider
	}
	if c.RewardClaimed {
		ms.mu.Unlock()
		return nil, domain.ErrAlreadyClaimed
	}

	reward := fixedpoint.MustMulDiv(c.Amount, ms.m.AMMFees, ms.lpTotal)
	if reward.IsZero() {
		ms.mu.Unlock()
		return nil, domain.ErrNoLPRewards
	}

	c.RewardClaimed = true
	if err := e.tokens.Transfer(ctx, caller, reward); err != nil {
		c.RewardClaimed = false
		ms.mu.Unlock()
		return nil, fmt.Errorf("engine: claim lp reward: %w", domain.ErrTransferFailed)
	}
	now := e.now()
	ms.mu.Unlock()

	e.sink.Publish(ctx, domain.Event{
		Type:     domain.EventLPRewardClaimed,
		MarketID: marketID,
		At:       now,
		User:     caller,
		Amount:   fixedpoint.Clone(reward),
	})
	return reward, nil
}

// ClaimFreeTokens grants a free-entry participant their fixed allotment from
// the prize pool, registering them as a market participant without creating
// AMM shares.
func (e *Engine) ClaimFreeTokens(ctx context.Context, caller common.Address, marketID uint64) (*uint256.Int, error) {
	ms, err := e.market(marketID)
	if err != nil {
		return nil, err
	}

	ms.mu.Lock()
	now := e.now()
	if ms.m.Kind != domain.MarketKindFreeEntry {
		ms.mu.Unlock()
		return nil, domain.ErrNotFreeEntryMarket
	}
	if err := lifecycle.CanTrade(lifecycle.FromMarket(&ms.m), now, false); err != nil {
		ms.mu.Unlock()
		return nil, err
	}
	if _, claimed := ms.freeClaims[caller]; claimed {
		ms.mu.Unlock()
		return nil, domain.ErrAlreadyClaimedFree
	}
	if ms.m.FreeParticipants >= ms.m.MaxParticipants {
		ms.mu.Unlock()
		return nil, domain.ErrFreeSlotsFull
	}
	grant := ms.m.TokensPerParticipant
	if ms.m.PrizePool.Lt(grant) {
		ms.mu.Unlock()
		return nil, domain.ErrInsufficientPrizePool
	}

	prevPool := fixedpoint.Clone(ms.m.PrizePool)
	ms.freeClaims[caller] = &domain.FreeClaim{
		MarketID: marketID,
		User:     caller,
		Amount:   fixedpoint.Clone(grant),
	}
	ms.m.PrizePool = fixedpoint.Sub(ms.m.PrizePool, grant)
	ms.m.FreeParticipants++

	if err := e.tokens.Transfer(ctx, caller, grant); err != nil {
		delete(ms.freeClaims, caller)
		ms.m.PrizePool = prevPool
		ms.m.FreeParticipants--
		ms.mu.Unlock()
		return nil, fmt.Errorf("engine: claim free tokens: %w", domain.ErrTransferFailed)
	}
	granted := fixedpoint.Clone(grant)
	ms.mu.Unlock()

	e.registerParticipation(caller, marketID)
	e.sink.Publish(ctx, domain.Event{
		Type:     domain.EventFreeClaim,
		MarketID: marketID,
		At:       now,
		User:     caller,
		Amount:   granted,
	})
	return granted, nil
}

// WithdrawAdminLiquidity returns the creator's seed after resolution, exactly
// once. Only the creator or the owner may withdraw.
func (e *Engine) WithdrawAdminLiquidity(ctx context.Context, caller common.Address, marketID uint64) (*uint256.Int, error) {
	ms, err := e.market(marketID)
	if err != nil {
		return nil, err
	}

	ms.mu.Lock()
	if caller != ms.m.Creator && !e.auth.IsOwner(caller) {
		ms.mu.Unlock()
		return nil, domain.ErrOnlyAdminOrOwner
	}
	if err := lifecycle.CanClaim(lifecycle.FromMarket(&ms.m)); err != nil {
		ms.mu.Unlock()
		return nil, err
	}
	if ms.m.AdminWithdrawn {
		ms.mu.Unlock()
		return nil, domain.ErrAlreadyClaimed
	}

	amount := fixedpoint.Clone(ms.m.AdminLiquidity)
	ms.m.AdminWithdrawn = true
	ms.m.AdminLiquidity = fixedpoint.Zero()

	if err := e.tokens.Transfer(ctx, ms.m.Creator, amount); err != nil {
		ms.m.AdminWithdrawn = false
		ms.m.AdminLiquidity = amount
		ms.mu.Unlock()
		return nil, fmt.Errorf("engine: withdraw admin liquidity: %w", domain.ErrTransferFailed)
	}
	ms.mu.Unlock()

	return amount, nil
}

// WithdrawPlatformFees moves a market's accumulated buy/sell fees to the
// collector. Owner only.
func (e *Engine) WithdrawPlatformFees(ctx context.Context, caller common.Address, marketID uint64, collector common.Address) (*uint256.Int, error) {
	if !e.auth.IsOwner(caller) {
		return nil, domain.ErrOnlyAdminOrOwner
	}
	ms, err := e.market(marketID)
	if err != nil {
		return nil, err
	}

	ms.mu.Lock()
	if ms.m.PlatformFees.IsZero() {
		ms.mu.Unlock()
		return nil, domain.ErrNoFeesToWithdraw
	}

	amount := fixedpoint.Clone(ms.m.PlatformFees)
	ms.m.PlatformFees = fixedpoint.Zero()

	if err := e.tokens.Transfer(ctx, collector, amount); err != nil {
		ms.m.PlatformFees = amount
		ms.mu.Unlock()
		return nil, fmt.Errorf("engine: withdraw platform fees: %w", domain.ErrTransferFailed)
	}
	ms.mu.Unlock()

	return amount, nil
}
