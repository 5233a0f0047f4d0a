package amm

import (
	"github.com/holiman/uint256"

	"github.com/predictlabs/predictd/internal/fixedpoint"
)

// avgPrice is the midpoint of the prices before and after a reserve move,
// approximating the integral of the curve over the trade.
func (o *Option) avgPrice(newReserve *uint256.Int) *uint256.Int {
	sum := fixedpoint.Add(o.priceAt(o.Reserve), o.priceAt(newReserve))
	return sum.Rsh(sum, 1)
}

// QuoteBuy returns the fee-inclusive cost of buying quantity shares of
// option i at the current curve state.
func (p *Pool) QuoteBuy(i int, quantity *uint256.Int, feeBps uint64) *uint256.Int {
	o := p.Options[i]
	newReserve := clampedReserve(o.Reserve, quantity)
	base := fixedpoint.MustMulDiv(quantity, o.avgPrice(newReserve), fixedpoint.Scale())
	return fixedpoint.Add(base, fixedpoint.ApplyBps(base, feeBps))
}

// ApplyBuy commits a buy whose cost was computed at call time. The platform
// fee is extracted inversely from the total paid, so the amount the buyer
// actually paid reconciles exactly against the fee/liquidity split.
// It returns (fee, net) with fee+net == cost.
func (p *Pool) ApplyBuy(i int, quantity, cost *uint256.Int, feeBps uint64) (fee, net *uint256.Int) {
	o := p.Options[i]
	fee = fixedpoint.MustMulDiv(cost, uint256.NewInt(feeBps), uint256.NewInt(fixedpoint.BpsDenom+feeBps))
	net = fixedpoint.Sub(cost, fee)

	o.Reserve = clampedReserve(o.Reserve, quantity)
	o.reprice()
	o.Shares.Add(o.Shares, quantity)
	o.Volume.Add(o.Volume, quantity)
	return fee, net
}

// QuoteSell returns the fee-net revenue of selling quantity shares of option
// i at the current curve state, floored at zero.
func (p *Pool) QuoteSell(i int, quantity *uint256.Int, feeBps uint64) *uint256.Int {
	o := p.Options[i]
	newReserve := fixedpoint.Add(o.Reserve, quantity)
	gross := fixedpoint.MustMulDiv(quantity, o.avgPrice(newReserve), fixedpoint.Scale())
	return fixedpoint.Sub(gross, fixedpoint.ApplyBps(gross, feeBps))
}

// ApplySell commits a sell that pays the seller net. The gross amount for
// accounting is grossed back up from net; fee == gross-net.
func (p *Pool) ApplySell(i int, quantity, net *uint256.Int, feeBps uint64) (gross, fee *uint256.Int) {
	o := p.Options[i]
	gross = fixedpoint.MustMulDiv(net, uint256.NewInt(fixedpoint.BpsDenom+feeBps), uint256.NewInt(fixedpoint.BpsDenom))
	fee = fixedpoint.Sub(gross, net)

	o.Reserve.Add(o.Reserve, quantity)
	o.reprice()
	o.Shares = fixedpoint.Sub(o.Shares, quantity)
	o.Volume.Add(o.Volume, quantity)
	return gross, fee
}
