package engine

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/predictlabs/predictd/internal/domain"
	"github.com/predictlabs/predictd/internal/fixedpoint"
)

// tradedMarket sets up the canonical resolution scenario: alice holds 100
// shares of option 0, bob holds 50 shares of option 1, and the trading window
// has closed.
func tradedMarket(t *testing.T, r *testRig) uint64 {
	t.Helper()
	id := r.createMarket(t)
	_, err := r.engine.Buy(context.Background(), rigAlice, id, 0, fixedpoint.Tokens(100), nil)
	require.NoError(t, err)
	_, err = r.engine.Buy(context.Background(), rigBob, id, 1, fixedpoint.Tokens(50), nil)
	require.NoError(t, err)
	r.advance(49 * time.Hour)
	return id
}

func TestResolveGates(t *testing.T) {
	t.Run("resolver capability required", func(t *testing.T) {
		r := newTestRig(t)
		id := r.createMarket(t)
		r.advance(49 * time.Hour)

		require.ErrorIs(t, r.engine.Resolve(context.Background(), rigStranger, id, 0), domain.ErrNotAuthorized)

		r.authz.Grant(rigCarol, domain.CapResolveMarket)
		require.NoError(t, r.engine.Resolve(context.Background(), rigCarol, id, 0))
	})

	t.Run("not before end without early resolution", func(t *testing.T) {
		r := newTestRig(t)
		id := r.createMarket(t)
		require.ErrorIs(t, r.engine.Resolve(context.Background(), rigOwner, id, 0), domain.ErrMarketNotEndedYet)
	})

	t.Run("winning option in range", func(t *testing.T) {
		r := newTestRig(t)
		id := r.createMarket(t)
		r.advance(49 * time.Hour)
		require.ErrorIs(t, r.engine.Resolve(context.Background(), rigOwner, id, 2), domain.ErrInvalidWinningOption)
		require.ErrorIs(t, r.engine.Resolve(context.Background(), rigOwner, id, -1), domain.ErrInvalidWinningOption)
	})

	t.Run("resolution is final", func(t *testing.T) {
		r := newTestRig(t)
		id := r.createMarket(t)
		r.advance(49 * time.Hour)
		require.NoError(t, r.engine.Resolve(context.Background(), rigOwner, id, 0))
		require.ErrorIs(t, r.engine.Resolve(context.Background(), rigOwner, id, 1), domain.ErrMarketResolvedAlready)
	})
}

func TestEarlyResolution(t *testing.T) {
	r := newTestRig(t)
	id, err := r.engine.CreateMarket(context.Background(), rigCreator, CreateParams{
		Question:        "Decided within hours?",
		OptionCount:     2,
		OptionLabels:    []string{"Yes", "No"},
		Duration:        48 * time.Hour,
		Seed:            fixedpoint.Tokens(1000),
		EarlyResolution: true,
	})
	require.NoError(t, err)
	require.NoError(t, r.engine.ValidateMarket(context.Background(), rigOwner, id))

	r.advance(time.Hour)
	require.ErrorIs(t, r.engine.Resolve(context.Background(), rigOwner, id, 0), domain.ErrMarketTooNew)

	r.advance(6 * time.Hour)
	require.NoError(t, r.engine.Resolve(context.Background(), rigOwner, id, 0))
}

func TestClaimWinnings(t *testing.T) {
	r := newTestRig(t)
	id := tradedMarket(t, r)

	_, err := r.engine.ClaimWinnings(context.Background(), rigAlice, id)
	require.ErrorIs(t, err, domain.ErrMarketNotResolved)

	require.NoError(t, r.engine.Resolve(context.Background(), rigOwner, id, 0))

	before, err := r.engine.MarketInfo(id)
	require.NoError(t, err)
	balBefore := r.ledger.BalanceOf(rigAlice)

	// Alice holds every winning share, so the losing-pool bonus hands her the
	// entire user-liquidity pot.
	amount, err := r.engine.ClaimWinnings(context.Background(), rigAlice, id)
	require.NoError(t, err)
	require.Equal(t, before.UserLiquidity.Dec(), amount.Dec())
	require.Equal(t, fixedpoint.Add(balBefore, amount).Dec(), r.ledger.BalanceOf(rigAlice).Dec())

	after, err := r.engine.MarketInfo(id)
	require.NoError(t, err)
	require.True(t, after.UserLiquidity.IsZero())

	// Exactly once, and only with winning shares.
	_, err = r.engine.ClaimWinnings(context.Background(), rigAlice, id)
	require.ErrorIs(t, err, domain.ErrAlreadyClaimed)
	_, err = r.engine.ClaimWinnings(context.Background(), rigBob, id)
	require.ErrorIs(t, err, domain.ErrNoWinningShares)
	_, err = r.engine.ClaimWinnings(context.Background(), rigStranger, id)
	require.ErrorIs(t, err, domain.ErrNoWinningShares)

	// Shares remain as history; only the claim flag flips.
	pos, err := r.engine.UserShares(id, rigAlice)
	require.NoError(t, err)
	require.Equal(t, fixedpoint.Tokens(100).Dec(), pos.Shares[0].Dec())
	require.True(t, pos.Claimed)
}

func TestClaimWinningsRollsBackOnFailedPayout(t *testing.T) {
	r := newTestRig(t)
	id := tradedMarket(t, r)
	require.NoError(t, r.engine.Resolve(context.Background(), rigOwner, id, 0))

	before, err := r.engine.MarketInfo(id)
	require.NoError(t, err)

	r.ledger.failOutbound = true
	_, err = r.engine.ClaimWinnings(context.Background(), rigAlice, id)
	require.ErrorIs(t, err, domain.ErrTransferFailed)
	r.ledger.failOutbound = false

	after, err := r.engine.MarketInfo(id)
	require.NoError(t, err)
	require.Equal(t, before.UserLiquidity.Dec(), after.UserLiquidity.Dec())

	pos, err := r.engine.UserShares(id, rigAlice)
	require.NoError(t, err)
	require.False(t, pos.Claimed)

	amount, err := r.engine.ClaimWinnings(context.Background(), rigAlice, id)
	require.NoError(t, err)
	require.Equal(t, before.UserLiquidity.Dec(), amount.Dec())
}

// TestClaimWinningsOrderIndependent pins the payout basis to resolution
// time: equal winning positions must pay equal amounts no matter who claims
// first, even with a large losing pool funding the bonus.
func TestClaimWinningsOrderIndependent(t *testing.T) {
	r := newTestRig(t)
	id := r.createMarket(t)

	_, err := r.engine.Buy(context.Background(), rigAlice, id, 0, fixedpoint.Tokens(10), nil)
	require.NoError(t, err)
	_, err = r.engine.Buy(context.Background(), rigCarol, id, 0, fixedpoint.Tokens(10), nil)
	require.NoError(t, err)
	_, err = r.engine.Buy(context.Background(), rigBob, id, 1, fixedpoint.Tokens(400), nil)
	require.NoError(t, err)
	r.advance(49 * time.Hour)
	require.NoError(t, r.engine.Resolve(context.Background(), rigOwner, id, 0))

	before, err := r.engine.MarketInfo(id)
	require.NoError(t, err)

	first, err := r.engine.ClaimWinnings(context.Background(), rigAlice, id)
	require.NoError(t, err)
	second, err := r.engine.ClaimWinnings(context.Background(), rigCarol, id)
	require.NoError(t, err)
	require.Equal(t, first.Dec(), second.Dec())

	// The liquidity pot still drains by exactly what was paid out.
	after, err := r.engine.MarketInfo(id)
	require.NoError(t, err)
	paid := fixedpoint.Add(first, second)
	require.Equal(t, fixedpoint.Sub(before.UserLiquidity, paid).Dec(), after.UserLiquidity.Dec())
}

func TestWithdrawals(t *testing.T) {
	r := newTestRig(t)
	id := tradedMarket(t, r)

	_, err := r.engine.WithdrawAdminLiquidity(context.Background(), rigCreator, id)
	require.ErrorIs(t, err, domain.ErrMarketNotResolved)

	require.NoError(t, r.engine.Resolve(context.Background(), rigOwner, id, 0))

	_, err = r.engine.WithdrawAdminLiquidity(context.Background(), rigStranger, id)
	require.ErrorIs(t, err, domain.ErrOnlyAdminOrOwner)

	seed, err := r.engine.WithdrawAdminLiquidity(context.Background(), rigCreator, id)
	require.NoError(t, err)
	require.Equal(t, fixedpoint.Tokens(1000).Dec(), seed.Dec())

	_, err = r.engine.WithdrawAdminLiquidity(context.Background(), rigCreator, id)
	require.ErrorIs(t, err, domain.ErrAlreadyClaimed)

	_, err = r.engine.WithdrawPlatformFees(context.Background(), rigCreator, id, rigDave)
	require.ErrorIs(t, err, domain.ErrOnlyAdminOrOwner)

	fees, err := r.engine.WithdrawPlatformFees(context.Background(), rigOwner, id, rigDave)
	require.NoError(t, err)
	require.False(t, fees.IsZero())
	require.Equal(t, fixedpoint.Add(fixedpoint.Tokens(10_000), fees).Dec(), r.ledger.BalanceOf(rigDave).Dec())

	_, err = r.engine.WithdrawPlatformFees(context.Background(), rigOwner, id, rigDave)
	require.ErrorIs(t, err, domain.ErrNoFeesToWithdraw)
}

// TestFullSettlementDrainsTreasury runs a complete market life and checks
// that every token that entered the treasury leaves it again.
func TestFullSettlementDrainsTreasury(t *testing.T) {
	r := newTestRig(t)
	id := tradedMarket(t, r)
	require.NoError(t, r.engine.Resolve(context.Background(), rigOwner, id, 0))

	_, err := r.engine.ClaimWinnings(context.Background(), rigAlice, id)
	require.NoError(t, err)
	_, err = r.engine.WithdrawAdminLiquidity(context.Background(), rigCreator, id)
	require.NoError(t, err)
	_, err = r.engine.WithdrawPlatformFees(context.Background(), rigOwner, id, rigDave)
	require.NoError(t, err)

	require.True(t, r.ledger.BalanceOf(rigTreasury).IsZero())
}

func TestDisputeFlow(t *testing.T) {
	r := newTestRig(t)
	id := tradedMarket(t, r)

	require.ErrorIs(t, r.engine.Dispute(context.Background(), rigBob, id), domain.ErrMarketNotResolved)

	require.NoError(t, r.engine.Resolve(context.Background(), rigOwner, id, 0))

	// Winning-share holders cannot dispute; losers can, once.
	require.ErrorIs(t, r.engine.Dispute(context.Background(), rigAlice, id), domain.ErrCannotDisputeIfWon)
	require.NoError(t, r.engine.Dispute(context.Background(), rigBob, id))
	require.ErrorIs(t, r.engine.Dispute(context.Background(), rigCarol, id), domain.ErrAlreadyDisputed)

	// All claims freeze while the dispute is open.
	_, err := r.engine.ClaimWinnings(context.Background(), rigAlice, id)
	require.ErrorIs(t, err, domain.ErrMarketDisputed)
	_, err = r.engine.WithdrawAdminLiquidity(context.Background(), rigCreator, id)
	require.ErrorIs(t, err, domain.ErrMarketDisputed)

	// Only the owner rules on a dispute, and may amend the winner.
	require.ErrorIs(t, r.engine.ResolveDispute(context.Background(), rigBob, id, 1), domain.ErrOnlyAdminOrOwner)
	require.NoError(t, r.engine.ResolveDispute(context.Background(), rigOwner, id, 1))
	require.ErrorIs(t, r.engine.ResolveDispute(context.Background(), rigOwner, id, 1), domain.ErrNotDisputed)

	m, err := r.engine.MarketInfo(id)
	require.NoError(t, err)
	require.Equal(t, 1, m.WinningOption)
	require.False(t, m.Disputed)

	// Claims reopen under the amended outcome.
	amount, err := r.engine.ClaimWinnings(context.Background(), rigBob, id)
	require.NoError(t, err)
	require.False(t, amount.IsZero())
	_, err = r.engine.ClaimWinnings(context.Background(), rigAlice, id)
	require.ErrorIs(t, err, domain.ErrNoWinningShares)
}

func TestClaimLPReward(t *testing.T) {
	r := newTestRig(t)
	id := r.createMarket(t)

	require.NoError(t, r.engine.AddLiquidity(context.Background(), rigBob, id, fixedpoint.Tokens(100)))

	_, err := r.engine.Buy(context.Background(), rigAlice, id, 0, fixedpoint.Tokens(100), nil)
	require.NoError(t, err)
	_, err = r.engine.Swap(context.Background(), rigAlice, id, 0, 1, fixedpoint.Tokens(50), nil)
	require.NoError(t, err)

	r.advance(49 * time.Hour)

	_, err = r.engine.ClaimLPReward(context.Background(), rigCreator, id)
	require.ErrorIs(t, err, domain.ErrMarketNotResolved)

	require.NoError(t, r.engine.Resolve(context.Background(), rigOwner, id, 0))

	// 0.5 tokens of swap fees split 1000:100 between creator and bob.
	lp, err := r.engine.LPInfo(id, rigCreator)
	require.NoError(t, err)
	reward, err := r.engine.ClaimLPReward(context.Background(), rigCreator, id)
	require.NoError(t, err)
	require.Equal(t, lp.EstimatedReward.Dec(), reward.Dec())
	require.Equal(t, dec(t, "454545454545454545").Dec(), reward.Dec())

	reward, err = r.engine.ClaimLPReward(context.Background(), rigBob, id)
	require.NoError(t, err)
	require.Equal(t, dec(t, "45454545454545454").Dec(), reward.Dec())

	_, err = r.engine.ClaimLPReward(context.Background(), rigCreator, id)
	require.ErrorIs(t, err, domain.ErrAlreadyClaimed)
	_, err = r.engine.ClaimLPReward(context.Background(), rigAlice, id)
	require.ErrorIs(t, err, domain.ErrNotLiquidityProvider)
}

func TestClaimLPRewardWithoutSwapFees(t *testing.T) {
	r := newTestRig(t)
	id := r.createMarket(t)
	r.advance(49 * time.Hour)
	require.NoError(t, r.engine.Resolve(context.Background(), rigOwner, id, 0))

	_, err := r.engine.ClaimLPReward(context.Background(), rigCreator, id)
	require.ErrorIs(t, err, domain.ErrNoLPRewards)
}
