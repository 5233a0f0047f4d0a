// Package amm implements the per-option constant-product pricing curve.
//
// Each option carries a pair (k, reserve) with the derived price
// k*Scale/reserve. Buys shrink the reserve (price rises), sells grow it
// (price falls). The reserve is floor-clamped so it can never reach zero,
// which keeps the price defined after any mutation.
package amm

import (
	"github.com/holiman/uint256"

	"github.com/predictlabs/predictd/internal/domain"
	"github.com/predictlabs/predictd/internal/fixedpoint"
)

// Option is one outcome's curve state plus cumulative counters.
type Option struct {
	Label   string
	K       *uint256.Int
	Reserve *uint256.Int
	Price   *uint256.Int
	Shares  *uint256.Int // outstanding across all holders
	Volume  *uint256.Int // cumulative traded quantity
}

// Pool is the set of option curves for one market.
type Pool struct {
	Options []*Option
}

// NewPool seeds a pool with the given liquidity split evenly across n
// options: reserve_i = seed/n and k_i = seed/n², so every option starts at
// price Scale/n.
func NewPool(labels []string, seed *uint256.Int) (*Pool, error) {
	n := uint64(len(labels))
	if n == 0 {
		return nil, domain.ErrBadOptionCount
	}
	if seed == nil || seed.IsZero() {
		return nil, domain.ErrAmountMustBePositive
	}

	count := uint256.NewInt(n)
	perReserve := new(uint256.Int).Div(seed, count)
	perK := new(uint256.Int).Div(perReserve, count)
	if perReserve.IsZero() || perK.IsZero() {
		return nil, domain.ErrInsufficientLiquidity
	}

	p := &Pool{Options: make([]*Option, 0, n)}
	for _, label := range labels {
		o := &Option{
			Label:   label,
			K:       fixedpoint.Clone(perK),
			Reserve: fixedpoint.Clone(perReserve),
			Shares:  fixedpoint.Zero(),
			Volume:  fixedpoint.Zero(),
		}
		o.reprice()
		p.Options = append(p.Options, o)
	}
	return p, nil
}

// reprice recomputes the derived price from the current (k, reserve) pair.
// Reserve is guaranteed non-zero by the clamp policy.
func (o *Option) reprice() {
	o.Price = fixedpoint.MustMulDiv(o.K, fixedpoint.Scale(), o.Reserve)
}

// priceAt returns the price the curve would quote at the given reserve.
func (o *Option) priceAt(reserve *uint256.Int) *uint256.Int {
	return fixedpoint.MustMulDiv(o.K, fixedpoint.Scale(), reserve)
}

// Price returns the current derived price of option i.
func (p *Pool) Price(i int) *uint256.Int {
	return fixedpoint.Clone(p.Options[i].Price)
}

// Prices returns the current price vector.
func (p *Pool) Prices() []*uint256.Int {
	out := make([]*uint256.Int, len(p.Options))
	for i, o := range p.Options {
		out[i] = fixedpoint.Clone(o.Price)
	}
	return out
}

// Clone returns a deep copy of the pool, used for rollback snapshots.
func (p *Pool) Clone() *Pool {
	cp := &Pool{Options: make([]*Option, len(p.Options))}
	for i, o := range p.Options {
		cp.Options[i] = &Option{
			Label:   o.Label,
			K:       fixedpoint.Clone(o.K),
			Reserve: fixedpoint.Clone(o.Reserve),
			Price:   fixedpoint.Clone(o.Price),
			Shares:  fixedpoint.Clone(o.Shares),
			Volume:  fixedpoint.Clone(o.Volume),
		}
	}
	return cp
}

// clampedReserve applies the buy-side floor clamp: a buy that would drain the
// reserve halves it instead, and the reserve never drops below one unit.
func clampedReserve(reserve, quantity *uint256.Int) *uint256.Int {
	var next *uint256.Int
	if reserve.Gt(quantity) {
		next = new(uint256.Int).Sub(reserve, quantity)
	} else {
		next = new(uint256.Int).Rsh(reserve, 1)
	}
	if next.IsZero() {
		next = uint256.NewInt(1)
	}
	return next
}
