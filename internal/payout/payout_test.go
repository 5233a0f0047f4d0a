package payout

import (
	"testing"

	"github.com/holiman/uint256"
	"github.com/stretchr/testify/assert"

	"github.com/predictlabs/predictd/internal/fixedpoint"
)

// price625 is 0.625 tokens per share.
var price625 = new(uint256.Int).Mul(uint256.NewInt(625), uint256.NewInt(1_000_000_000_000_000))

func TestLosingPool(t *testing.T) {
	// 100 winning shares at 0.625 are worth 62.5; user liquidity 100 leaves
	// a losing pool of 37.5.
	got := LosingPool(fixedpoint.Tokens(100), price625, fixedpoint.Tokens(100))
	want := new(uint256.Int).Mul(uint256.NewInt(37_500), uint256.NewInt(1_000_000_000_000_000))
	assert.Equal(t, want, got)
}

func TestLosingPool_FloorsAtZero(t *testing.T) {
	// Winning value exceeds user liquidity: nothing left behind.
	got := LosingPool(fixedpoint.Tokens(1000), price625, fixedpoint.Tokens(100))
	assert.True(t, got.IsZero())
}

func TestWinnings_SoleHolderTakesWholePool(t *testing.T) {
	// A holder of all winning shares collects share value + entire losing
	// pool, i.e. exactly the user liquidity.
	got := Winnings(fixedpoint.Tokens(100), fixedpoint.Tokens(100), price625, fixedpoint.Tokens(100))
	assert.Equal(t, fixedpoint.Tokens(100), got)
}

func TestWinnings_ProRata(t *testing.T) {
	userLiq := fixedpoint.Tokens(100)
	total := fixedpoint.Tokens(100)

	half := Winnings(fixedpoint.Tokens(50), total, price625, userLiq)
	assert.Equal(t, fixedpoint.Tokens(50), half)

	quarter := Winnings(fixedpoint.Tokens(25), total, price625, userLiq)
	assert.Equal(t, fixedpoint.Tokens(25), quarter)
}

func TestWinnings_PayoutsNeverExceedPool(t *testing.T) {
	userLiq := fixedpoint.Tokens(77)
	total := fixedpoint.Tokens(90)

	sum := fixedpoint.Zero()
	for _, shares := range []uint64{30, 30, 30} {
		sum = fixedpoint.Add(sum, Winnings(fixedpoint.Tokens(shares), total, price625, userLiq))
	}
	// Truncating division may leave dust behind but never over-distributes
	// beyond max(userLiquidity, winning value).
	winningValue := fixedpoint.MustMulDiv(total, price625, fixedpoint.Scale())
	limit := userLiq
	if winningValue.Gt(limit) {
		limit = winningValue
	}
	assert.False(t, sum.Gt(limit))
}

func TestWinnings_ZeroInputs(t *testing.T) {
	assert.True(t, Winnings(fixedpoint.Zero(), fixedpoint.Tokens(10), price625, fixedpoint.Tokens(10)).IsZero())
	assert.True(t, Winnings(fixedpoint.Tokens(10), fixedpoint.Zero(), price625, fixedpoint.Tokens(10)).IsZero())
}
