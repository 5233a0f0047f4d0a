// Package fixedpoint provides 18-decimal fixed-point arithmetic on unsigned
// 256-bit integers. Every token amount, share quantity, and price in the
// system is a uint256 scaled by 1e18; all division truncates.
package fixedpoint

import (
	"errors"
	"math/big"

	"github.com/holiman/uint256"
)

// ErrDivisionByZero is returned by MulDiv when the denominator is zero.
var ErrDivisionByZero = errors.New("fixedpoint: division by zero")

// BpsDenom is the basis-point denominator used by all fee rates.
const BpsDenom = 10_000

// one is 1e18, the scaling factor for one whole token.
var one = uint256.NewInt(1_000_000_000_000_000_000)

// Scale returns a fresh copy of the 1e18 scaling factor.
func Scale() *uint256.Int {
	return new(uint256.Int).Set(one)
}

// Zero returns a fresh zero value.
func Zero() *uint256.Int {
	return new(uint256.Int)
}

// New returns n as an unscaled uint256.
func New(n uint64) *uint256.Int {
	return uint256.NewInt(n)
}

// Tokens returns n whole tokens as a 1e18-scaled value.
func Tokens(n uint64) *uint256.Int {
	return new(uint256.Int).Mul(uint256.NewInt(n), one)
}

// Clone returns an independent copy of v. A nil input yields zero.
func Clone(v *uint256.Int) *uint256.Int {
	if v == nil {
		return new(uint256.Int)
	}
	return new(uint256.Int).Set(v)
}

// MulDiv computes a*b/denom with truncating division. The multiplication is
// performed with a full-width intermediate so a*b may exceed 256 bits as long
// as the final quotient fits.
func MulDiv(a, b, denom *uint256.Int) (*uint256.Int, error) {
	if denom == nil || denom.IsZero() {
		return nil, ErrDivisionByZero
	}
	p, overflow := new(uint256.Int).MulOverflow(a, b)
	if !overflow {
		return p.Div(p, denom), nil
	}
	wide := new(big.Int).Mul(a.ToBig(), b.ToBig())
	wide.Div(wide, denom.ToBig())
	z, _ := uint256.FromBig(wide)
	return z, nil
}

// MustMulDiv is MulDiv for callers that have already ruled out a zero
// denominator. It panics on a zero denominator.
func MustMulDiv(a, b, denom *uint256.Int) *uint256.Int {
	z, err := MulDiv(a, b, denom)
	if err != nil {
		panic(err)
	}
	return z
}

// ScaleUp converts a raw integer count into its 1e18-scaled representation.
func ScaleUp(n *uint256.Int) *uint256.Int {
	return new(uint256.Int).Mul(n, one)
}

// ScaleDown converts a 1e18-scaled value back to a raw integer count,
// truncating the fractional part.
func ScaleDown(v *uint256.Int) *uint256.Int {
	return new(uint256.Int).Div(v, one)
}

// ApplyBps returns v*bps/10000, the fee portion of v at the given rate.
func ApplyBps(v *uint256.Int, bps uint64) *uint256.Int {
	return MustMulDiv(v, uint256.NewInt(bps), uint256.NewInt(BpsDenom))
}

// Add returns a+b in a fresh value. Overflow wraps per uint256 semantics;
// realistic token supplies keep sums far below 2^256.
func Add(a, b *uint256.Int) *uint256.Int {
	return new(uint256.Int).Add(a, b)
}

// Sub returns a-b, floored at zero when b exceeds a.
func Sub(a, b *uint256.Int) *uint256.Int {
	if a.Lt(b) {
		return new(uint256.Int)
	}
	return new(uint256.Int).Sub(a, b)
}
