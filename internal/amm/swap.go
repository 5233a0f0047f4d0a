package amm

import (
	"github.com/holiman/uint256"

	"github.com/predictlabs/predictd/internal/domain"
	"github.com/predictlabs/predictd/internal/fixedpoint"
)

// Swap exchanges amountIn shares of option in for shares of option out,
// simultaneously selling into in's reserve and buying out of out's reserve
// with a direct constant-product formula:
//
//	amountOut = reserveOut * amountInNet / (reserveIn + amountInNet)
//
// where amountInNet is amountIn after the AMM-level swap fee. The swap fee
// accrues to the liquidity-provider pool, not the platform; it is returned
// for the caller to book against the market's AMM-fee aggregate.
func (p *Pool) Swap(in, out int, amountIn, minOut *uint256.Int, swapFeeBps uint64) (amountOut, fee *uint256.Int, err error) {
	oIn, oOut := p.Options[in], p.Options[out]

	amountInNet := fixedpoint.MustMulDiv(amountIn,
		uint256.NewInt(fixedpoint.BpsDenom-swapFeeBps),
		uint256.NewInt(fixedpoint.BpsDenom))
	fee = fixedpoint.Sub(amountIn, amountInNet)

	denom := fixedpoint.Add(oIn.Reserve, amountInNet)
	amountOut = fixedpoint.MustMulDiv(oOut.Reserve, amountInNet, denom)

	if !amountOut.Lt(oOut.Reserve) {
		return nil, nil, domain.ErrInsufficientLiquidity
	}
	if minOut != nil && amountOut.Lt(minOut) {
		return nil, nil, domain.ErrInsufficientOutput
	}

	oIn.Reserve.Add(oIn.Reserve, amountInNet)
	oIn.reprice()
	oIn.Shares = fixedpoint.Sub(oIn.Shares, amountIn)
	oIn.Volume.Add(oIn.Volume, amountIn)

	oOut.Reserve.Sub(oOut.Reserve, amountOut)
	oOut.reprice()
	oOut.Shares.Add(oOut.Shares, amountOut)
	oOut.Volume.Add(oOut.Volume, amountOut)

	return amountOut, fee, nil
}

// AddLiquidity deepens every option's curve by an equal split of amount:
// k_i += amount/n and reserve_i += amount/n. With unequal k values this
// shifts relative prices slightly; the split matches the deployed ledger
// behaviour.
func (p *Pool) AddLiquidity(amount *uint256.Int) {
	per := new(uint256.Int).Div(amount, uint256.NewInt(uint64(len(p.Options))))
	for _, o := range p.Options {
		o.K.Add(o.K, per)
		o.Reserve.Add(o.Reserve, per)
		o.reprice()
	}
}
