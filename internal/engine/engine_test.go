package engine

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"github.com/stretchr/testify/require"

	"github.com/predictlabs/predictd/internal/auth"
	"github.com/predictlabs/predictd/internal/domain"
	"github.com/predictlabs/predictd/internal/fixedpoint"
	"github.com/predictlabs/predictd/internal/token"
)

var (
	rigTreasury = common.HexToAddress("0x00000000000000000000000000000000000000f0")
	rigOwner    = common.HexToAddress("0x00000000000000000000000000000000000000f1")
	rigCreator  = common.HexToAddress("0x00000000000000000000000000000000000000f2")
	rigAlice    = common.HexToAddress("0x00000000000000000000000000000000000000a1")
	rigBob      = common.HexToAddress("0x00000000000000000000000000000000000000a2")
	rigCarol    = common.HexToAddress("0x00000000000000000000000000000000000000a3")
	rigDave     = common.HexToAddress("0x00000000000000000000000000000000000000a4")
	rigStranger = common.HexToAddress("0x00000000000000000000000000000000000000a9")
)

// flakyLedger wraps the in-memory ledger with switchable failure injection so
// tests can exercise the engine's rollback paths.
type flakyLedger struct {
	*token.Ledger
	failOutbound bool
	failInbound  bool
}

func (f *flakyLedger) Transfer(ctx context.Context, to common.Address, amount *uint256.Int) error {
	if f.failOutbound {
		return errors.New("token backend unavailable")
	}
	return f.Ledger.Transfer(ctx, to, amount)
}

func (f *flakyLedger) TransferFrom(ctx context.Context, from, to common.Address, amount *uint256.Int) error {
	if f.failInbound {
		return errors.New("token backend unavailable")
	}
	return f.Ledger.TransferFrom(ctx, from, to, amount)
}

type testRig struct {
	engine *Engine
	ledger *flakyLedger
	authz  *auth.Static
	now    time.Time
}

func newTestRig(t *testing.T) *testRig {
	t.Helper()

	r := &testRig{
		ledger: &flakyLedger{Ledger: token.NewLedger(rigTreasury)},
		now:    time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC),
	}
	for _, a := range []common.Address{rigCreator, rigAlice, rigBob, rigCarol, rigDave} {
		r.ledger.Mint(a, fixedpoint.Tokens(10_000))
	}

	r.authz = auth.NewStatic(rigOwner)
	r.authz.Grant(rigCreator, domain.CapCreateMarket)

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	r.engine = New(Params{
		FeeBps:               200,
		SwapFeeBps:           100,
		MinDuration:          time.Hour,
		MaxDuration:          90 * 24 * time.Hour,
		MinEarlyResolveDelay: 6 * time.Hour,
		MaxOptions:           10,
		Treasury:             rigTreasury,
	}, r.ledger, r.authz, nil, logger)
	r.engine.now = func() time.Time { return r.now }
	return r
}

func (r *testRig) advance(d time.Duration) { r.now = r.now.Add(d) }

// createMarket sets up the canonical two-option market: 1000 token seed,
// 48 hour window, validated and ready to trade.
func (r *testRig) createMarket(t *testing.T) uint64 {
	t.Helper()
	id, err := r.engine.CreateMarket(context.Background(), rigCreator, CreateParams{
		Question:     "Will it rain tomorrow?",
		OptionCount:  2,
		OptionLabels: []string{"Yes", "No"},
		Duration:     48 * time.Hour,
		Seed:         fixedpoint.Tokens(1000),
	})
	require.NoError(t, err)
	require.NoError(t, r.engine.ValidateMarket(context.Background(), rigOwner, id))
	return id
}

// assertBacked checks that the treasury balance covers exactly the market's
// outstanding obligations. Only valid on single-market rigs without swaps.
func (r *testRig) assertBacked(t *testing.T, id uint64) {
	t.Helper()
	m, err := r.engine.MarketInfo(id)
	require.NoError(t, err)
	backed := fixedpoint.Add(
		fixedpoint.Add(m.AdminLiquidity, m.UserLiquidity),
		fixedpoint.Add(m.PlatformFees, m.PrizePool),
	)
	require.Equal(t, backed.Dec(), r.ledger.BalanceOf(rigTreasury).Dec())
}

func dec(t *testing.T, s string) *uint256.Int {
	t.Helper()
	v, err := uint256.FromDecimal(s)
	require.NoError(t, err)
	return v
}

func TestCreateMarketValidation(t *testing.T) {
	base := CreateParams{
		Question:     "Valid question?",
		OptionCount:  2,
		OptionLabels: []string{"Yes", "No"},
		Duration:     48 * time.Hour,
		Seed:         fixedpoint.Tokens(1000),
	}

	tests := []struct {
		name   string
		mutate func(*CreateParams)
		want   error
	}{
		{
			name:   "empty question",
			mutate: func(p *CreateParams) { p.Question = "  " },
			want:   domain.ErrEmptyQuestion,
		},
		{
			name:   "one option",
			mutate: func(p *CreateParams) { p.OptionCount = 1; p.OptionLabels = []string{"Yes"} },
			want:   domain.ErrBadOptionCount,
		},
		{
			name:   "too many options",
			mutate: func(p *CreateParams) { p.OptionCount = 11 },
			want:   domain.ErrBadOptionCount,
		},
		{
			name:   "label count mismatch",
			mutate: func(p *CreateParams) { p.OptionLabels = []string{"Yes"} },
			want:   domain.ErrLengthMismatch,
		},
		{
			name:   "duration too short",
			mutate: func(p *CreateParams) { p.Duration = time.Minute },
			want:   domain.ErrBadDuration,
		},
		{
			name:   "duration too long",
			mutate: func(p *CreateParams) { p.Duration = 365 * 24 * time.Hour },
			want:   domain.ErrBadDuration,
		},
		{
			name:   "zero seed",
			mutate: func(p *CreateParams) { p.Seed = fixedpoint.Zero() },
			want:   domain.ErrAmountMustBePositive,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := newTestRig(t)
			p := base
			tt.mutate(&p)
			_, err := r.engine.CreateMarket(context.Background(), rigCreator, p)
			require.ErrorIs(t, err, tt.want)
			require.Zero(t, r.engine.MarketCount())
		})
	}

	t.Run("unauthorized caller", func(t *testing.T) {
		r := newTestRig(t)
		_, err := r.engine.CreateMarket(context.Background(), rigStranger, base)
		require.ErrorIs(t, err, domain.ErrNotAuthorized)
	})
}

func TestCreateMarketSeedsEqualPrices(t *testing.T) {
	r := newTestRig(t)
	id := r.createMarket(t)

	opts, err := r.engine.OptionInfo(id)
	require.NoError(t, err)
	require.Len(t, opts, 2)
	for _, o := range opts {
		require.Equal(t, fixedpoint.Tokens(500).Dec(), o.Reserve.Dec())
		require.Equal(t, fixedpoint.Tokens(250).Dec(), o.K.Dec())
		require.Equal(t, dec(t, "500000000000000000").Dec(), o.Price.Dec())
	}

	m, err := r.engine.MarketInfo(id)
	require.NoError(t, err)
	require.Equal(t, fixedpoint.Tokens(1000).Dec(), m.AdminLiquidity.Dec())
	require.True(t, m.UserLiquidity.IsZero())
	require.Equal(t, fixedpoint.Tokens(9000).Dec(), r.ledger.BalanceOf(rigCreator).Dec())
	require.Equal(t, fixedpoint.Tokens(1000).Dec(), r.ledger.BalanceOf(rigTreasury).Dec())

	// The seed registers as the creator's liquidity contribution.
	lp, err := r.engine.LPInfo(id, rigCreator)
	require.NoError(t, err)
	require.Equal(t, fixedpoint.Tokens(1000).Dec(), lp.Contribution.Amount.Dec())
	require.Equal(t, fixedpoint.Tokens(1000).Dec(), lp.TotalPool.Dec())

	r.assertBacked(t, id)
}

func TestBuyMovesPriceAndCharges(t *testing.T) {
	r := newTestRig(t)
	id := r.createMarket(t)

	cost, err := r.engine.Buy(context.Background(), rigAlice, id, 0, fixedpoint.Tokens(100), nil)
	require.NoError(t, err)

	// Reserve 500 -> 400, average price 0.5625, base 56.25 plus 2% fee.
	require.Equal(t, dec(t, "57375000000000000000").Dec(), cost.Dec())

	opts, err := r.engine.OptionInfo(id)
	require.NoError(t, err)
	require.Equal(t, dec(t, "625000000000000000").Dec(), opts[0].Price.Dec())
	require.Equal(t, dec(t, "500000000000000000").Dec(), opts[1].Price.Dec())
	require.Equal(t, fixedpoint.Tokens(100).Dec(), opts[0].Shares.Dec())

	pos, err := r.engine.UserShares(id, rigAlice)
	require.NoError(t, err)
	require.Equal(t, fixedpoint.Tokens(100).Dec(), pos.Shares[0].Dec())
	require.True(t, pos.Shares[1].IsZero())

	m, err := r.engine.MarketInfo(id)
	require.NoError(t, err)
	require.Equal(t, dec(t, "56250000000000000000").Dec(), m.UserLiquidity.Dec())
	require.Equal(t, dec(t, "1125000000000000000").Dec(), m.PlatformFees.Dec())
	require.Equal(t, cost.Dec(), m.TotalVolume.Dec())

	r.assertBacked(t, id)
}

func TestBuySlippageGuard(t *testing.T) {
	r := newTestRig(t)
	id := r.createMarket(t)

	before := r.ledger.BalanceOf(rigAlice)
	_, err := r.engine.Buy(context.Background(), rigAlice, id, 0, fixedpoint.Tokens(100), fixedpoint.Tokens(57))
	require.ErrorIs(t, err, domain.ErrPriceTooHigh)
	require.Equal(t, before.Dec(), r.ledger.BalanceOf(rigAlice).Dec())

	opts, err := r.engine.OptionInfo(id)
	require.NoError(t, err)
	require.Equal(t, dec(t, "500000000000000000").Dec(), opts[0].Price.Dec())

	// A bound at or above the quoted cost goes through.
	_, err = r.engine.Buy(context.Background(), rigAlice, id, 0, fixedpoint.Tokens(100), fixedpoint.Tokens(58))
	require.NoError(t, err)
}

func TestBuyLifecycleGates(t *testing.T) {
	t.Run("unvalidated staked market", func(t *testing.T) {
		r := newTestRig(t)
		id, err := r.engine.CreateMarket(context.Background(), rigCreator, CreateParams{
			Question:     "Pending review?",
			OptionCount:  2,
			OptionLabels: []string{"Yes", "No"},
			Duration:     48 * time.Hour,
			Seed:         fixedpoint.Tokens(1000),
		})
		require.NoError(t, err)
		_, err = r.engine.Buy(context.Background(), rigAlice, id, 0, fixedpoint.Tokens(1), nil)
		require.ErrorIs(t, err, domain.ErrMarketNotReady)
	})

	t.Run("after end time", func(t *testing.T) {
		r := newTestRig(t)
		id := r.createMarket(t)
		r.advance(49 * time.Hour)
		_, err := r.engine.Buy(context.Background(), rigAlice, id, 0, fixedpoint.Tokens(1), nil)
		require.ErrorIs(t, err, domain.ErrMarketEnded)
	})

	t.Run("bad option index", func(t *testing.T) {
		r := newTestRig(t)
		id := r.createMarket(t)
		_, err := r.engine.Buy(context.Background(), rigAlice, id, 2, fixedpoint.Tokens(1), nil)
		require.ErrorIs(t, err, domain.ErrInvalidOption)
	})

	t.Run("unknown market", func(t *testing.T) {
		r := newTestRig(t)
		_, err := r.engine.Buy(context.Background(), rigAlice, 42, 0, fixedpoint.Tokens(1), nil)
		require.ErrorIs(t, err, domain.ErrMarketNotFound)
	})
}

func TestSellRoundTrip(t *testing.T) {
	r := newTestRig(t)
	id := r.createMarket(t)

	_, err := r.engine.Buy(context.Background(), rigAlice, id, 0, fixedpoint.Tokens(100), nil)
	require.NoError(t, err)

	net, err := r.engine.Sell(context.Background(), rigAlice, id, 0, fixedpoint.Tokens(100), nil)
	require.NoError(t, err)

	// Reserve 400 -> 500, gross 56.25 minus 2% fee.
	require.Equal(t, dec(t, "55125000000000000000").Dec(), net.Dec())

	opts, err := r.engine.OptionInfo(id)
	require.NoError(t, err)
	require.Equal(t, dec(t, "500000000000000000").Dec(), opts[0].Price.Dec())
	require.True(t, opts[0].Shares.IsZero())

	pos, err := r.engine.UserShares(id, rigAlice)
	require.NoError(t, err)
	require.True(t, pos.Shares[0].IsZero())

	// Round trip costs the trader both fee legs.
	m, err := r.engine.MarketInfo(id)
	require.NoError(t, err)
	require.Equal(t, dec(t, "22500000000000000").Dec(), m.UserLiquidity.Dec())
	require.Equal(t, dec(t, "2227500000000000000").Dec(), m.PlatformFees.Dec())

	r.assertBacked(t, id)
}

func TestSellGuards(t *testing.T) {
	r := newTestRig(t)
	id := r.createMarket(t)

	_, err := r.engine.Sell(context.Background(), rigAlice, id, 0, fixedpoint.Tokens(1), nil)
	require.ErrorIs(t, err, domain.ErrInsufficientShares)

	_, err = r.engine.Buy(context.Background(), rigAlice, id, 0, fixedpoint.Tokens(100), nil)
	require.NoError(t, err)

	_, err = r.engine.Sell(context.Background(), rigAlice, id, 0, fixedpoint.Tokens(100), fixedpoint.Tokens(56))
	require.ErrorIs(t, err, domain.ErrPriceTooLow)

	pos, err := r.engine.UserShares(id, rigAlice)
	require.NoError(t, err)
	require.Equal(t, fixedpoint.Tokens(100).Dec(), pos.Shares[0].Dec())
}

func TestSellRollsBackOnFailedPayout(t *testing.T) {
	r := newTestRig(t)
	id := r.createMarket(t)

	_, err := r.engine.Buy(context.Background(), rigAlice, id, 0, fixedpoint.Tokens(100), nil)
	require.NoError(t, err)

	before, err := r.engine.MarketInfo(id)
	require.NoError(t, err)
	optsBefore, err := r.engine.OptionInfo(id)
	require.NoError(t, err)
	balBefore := r.ledger.BalanceOf(rigAlice)

	r.ledger.failOutbound = true
	_, err = r.engine.Sell(context.Background(), rigAlice, id, 0, fixedpoint.Tokens(100), nil)
	require.ErrorIs(t, err, domain.ErrTransferFailed)
	r.ledger.failOutbound = false

	after, err := r.engine.MarketInfo(id)
	require.NoError(t, err)
	require.Equal(t, before.UserLiquidity.Dec(), after.UserLiquidity.Dec())
	require.Equal(t, before.PlatformFees.Dec(), after.PlatformFees.Dec())
	require.Equal(t, before.TotalVolume.Dec(), after.TotalVolume.Dec())

	optsAfter, err := r.engine.OptionInfo(id)
	require.NoError(t, err)
	require.Equal(t, optsBefore[0].Price.Dec(), optsAfter[0].Price.Dec())
	require.Equal(t, optsBefore[0].Reserve.Dec(), optsAfter[0].Reserve.Dec())
	require.Equal(t, optsBefore[0].Shares.Dec(), optsAfter[0].Shares.Dec())

	pos, err := r.engine.UserShares(id, rigAlice)
	require.NoError(t, err)
	require.Equal(t, fixedpoint.Tokens(100).Dec(), pos.Shares[0].Dec())
	require.Equal(t, balBefore.Dec(), r.ledger.BalanceOf(rigAlice).Dec())

	// The ledger recovers and the same sell succeeds.
	_, err = r.engine.Sell(context.Background(), rigAlice, id, 0, fixedpoint.Tokens(100), nil)
	require.NoError(t, err)
}

func TestSwapMovesSharesNotTokens(t *testing.T) {
	r := newTestRig(t)
	id := r.createMarket(t)

	_, err := r.engine.Buy(context.Background(), rigAlice, id, 0, fixedpoint.Tokens(100), nil)
	require.NoError(t, err)
	balBefore := r.ledger.BalanceOf(rigAlice)

	out, err := r.engine.Swap(context.Background(), rigAlice, id, 0, 1, fixedpoint.Tokens(50), nil)
	require.NoError(t, err)
	require.False(t, out.IsZero())

	// No tokens move on a swap.
	require.Equal(t, balBefore.Dec(), r.ledger.BalanceOf(rigAlice).Dec())

	pos, err := r.engine.UserShares(id, rigAlice)
	require.NoError(t, err)
	require.Equal(t, fixedpoint.Tokens(50).Dec(), pos.Shares[0].Dec())
	require.Equal(t, out.Dec(), pos.Shares[1].Dec())

	// The 1% swap fee accrues to the liquidity-provider pool.
	m, err := r.engine.MarketInfo(id)
	require.NoError(t, err)
	require.Equal(t, dec(t, "500000000000000000").Dec(), m.AMMFees.Dec())

	// In-option price falls (reserve grew), out-option price rises.
	opts, err := r.engine.OptionInfo(id)
	require.NoError(t, err)
	require.True(t, opts[0].Price.Lt(dec(t, "625000000000000000")))
	require.True(t, opts[1].Price.Gt(dec(t, "500000000000000000")))
}

func TestSwapGuards(t *testing.T) {
	r := newTestRig(t)
	id := r.createMarket(t)

	_, err := r.engine.Buy(context.Background(), rigAlice, id, 0, fixedpoint.Tokens(100), nil)
	require.NoError(t, err)

	_, err = r.engine.Swap(context.Background(), rigAlice, id, 0, 0, fixedpoint.Tokens(10), nil)
	require.ErrorIs(t, err, domain.ErrInvalidOption)

	_, err = r.engine.Swap(context.Background(), rigAlice, id, 0, 1, fixedpoint.Tokens(200), nil)
	require.ErrorIs(t, err, domain.ErrInsufficientShares)

	_, err = r.engine.Swap(context.Background(), rigAlice, id, 0, 1, fixedpoint.Tokens(50), fixedpoint.Tokens(500))
	require.ErrorIs(t, err, domain.ErrInsufficientOutput)
}

func TestAddLiquidityDeepensPool(t *testing.T) {
	r := newTestRig(t)
	id := r.createMarket(t)

	require.NoError(t, r.engine.AddLiquidity(context.Background(), rigBob, id, fixedpoint.Tokens(100)))

	opts, err := r.engine.OptionInfo(id)
	require.NoError(t, err)
	for _, o := range opts {
		require.Equal(t, fixedpoint.Tokens(300).Dec(), o.K.Dec())
		require.Equal(t, fixedpoint.Tokens(550).Dec(), o.Reserve.Dec())
		require.Equal(t, dec(t, "545454545454545454").Dec(), o.Price.Dec())
	}

	lp, err := r.engine.LPInfo(id, rigBob)
	require.NoError(t, err)
	require.Equal(t, fixedpoint.Tokens(100).Dec(), lp.Contribution.Amount.Dec())
	require.Equal(t, fixedpoint.Tokens(1100).Dec(), lp.TotalPool.Dec())

	m, err := r.engine.MarketInfo(id)
	require.NoError(t, err)
	require.Equal(t, fixedpoint.Tokens(100).Dec(), m.UserLiquidity.Dec())

	r.assertBacked(t, id)
}

func TestInvalidateRefundsSeed(t *testing.T) {
	r := newTestRig(t)
	id, err := r.engine.CreateMarket(context.Background(), rigCreator, CreateParams{
		Question:     "Spam market?",
		OptionCount:  2,
		OptionLabels: []string{"Yes", "No"},
		Duration:     48 * time.Hour,
		Seed:         fixedpoint.Tokens(1000),
	})
	require.NoError(t, err)

	require.NoError(t, r.engine.InvalidateMarket(context.Background(), rigOwner, id))
	require.Equal(t, fixedpoint.Tokens(10_000).Dec(), r.ledger.BalanceOf(rigCreator).Dec())

	// Invalidation is terminal.
	require.ErrorIs(t, r.engine.InvalidateMarket(context.Background(), rigOwner, id), domain.ErrMarketInvalidated)
	require.ErrorIs(t, r.engine.ValidateMarket(context.Background(), rigOwner, id), domain.ErrMarketInvalidated)
	_, err = r.engine.Buy(context.Background(), rigAlice, id, 0, fixedpoint.Tokens(1), nil)
	require.ErrorIs(t, err, domain.ErrMarketInvalidated)
}

func TestInvalidateValidatedMarketFails(t *testing.T) {
	r := newTestRig(t)
	id := r.createMarket(t)
	require.ErrorIs(t, r.engine.InvalidateMarket(context.Background(), rigOwner, id), domain.ErrAlreadyValidated)
}

func TestInvalidateRollsBackOnFailedRefund(t *testing.T) {
	r := newTestRig(t)
	id, err := r.engine.CreateMarket(context.Background(), rigCreator, CreateParams{
		Question:     "Refund later?",
		OptionCount:  2,
		OptionLabels: []string{"Yes", "No"},
		Duration:     48 * time.Hour,
		Seed:         fixedpoint.Tokens(1000),
	})
	require.NoError(t, err)

	r.ledger.failOutbound = true
	require.ErrorIs(t, r.engine.InvalidateMarket(context.Background(), rigOwner, id), domain.ErrTransferFailed)
	r.ledger.failOutbound = false

	m, err := r.engine.MarketInfo(id)
	require.NoError(t, err)
	require.False(t, m.Invalidated)
	require.Equal(t, fixedpoint.Tokens(1000).Dec(), m.AdminLiquidity.Dec())

	require.NoError(t, r.engine.InvalidateMarket(context.Background(), rigOwner, id))
	require.Equal(t, fixedpoint.Tokens(10_000).Dec(), r.ledger.BalanceOf(rigCreator).Dec())
}

func TestPriceHistoryAndTrades(t *testing.T) {
	r := newTestRig(t)
	id := r.createMarket(t)

	for i := 0; i < 3; i++ {
		r.advance(time.Minute)
		_, err := r.engine.Buy(context.Background(), rigAlice, id, 0, fixedpoint.Tokens(10), nil)
		require.NoError(t, err)
	}

	hist, err := r.engine.PriceHistory(id, 0)
	require.NoError(t, err)
	require.Len(t, hist, 4) // seed point plus three trades
	for i := 1; i < len(hist); i++ {
		require.True(t, hist[i].Prices[0].Gt(hist[i-1].Prices[0]), "consecutive buys must raise the price")
	}

	hist, err = r.engine.PriceHistory(id, 2)
	require.NoError(t, err)
	require.Len(t, hist, 2)

	trades, err := r.engine.MarketTrades(id, 0)
	require.NoError(t, err)
	require.Len(t, trades, 3)
	for _, tr := range trades {
		require.Equal(t, domain.TradeSideBuy, tr.Side)
		require.Equal(t, rigAlice, tr.Buyer)
	}
}

func TestUserPortfolioAndStats(t *testing.T) {
	r := newTestRig(t)
	first := r.createMarket(t)
	second := r.createMarket(t)

	_, err := r.engine.Buy(context.Background(), rigAlice, first, 0, fixedpoint.Tokens(10), nil)
	require.NoError(t, err)
	_, err = r.engine.Buy(context.Background(), rigAlice, second, 1, fixedpoint.Tokens(10), nil)
	require.NoError(t, err)

	pf := r.engine.UserPortfolio(rigAlice)
	require.Equal(t, []uint64{first, second}, pf.MarketIDs)
	require.Empty(t, r.engine.UserPortfolio(rigStranger).MarketIDs)

	stats := r.engine.PlatformStats()
	require.Equal(t, 2, stats.Markets)
	require.Equal(t, 2, stats.ActiveMarkets)
	require.Zero(t, stats.ResolvedMarkets)
	require.False(t, stats.TotalVolume.IsZero())
	require.Equal(t, fixedpoint.Tokens(2000).Dec(), stats.TotalLiquidity.Dec())
}
