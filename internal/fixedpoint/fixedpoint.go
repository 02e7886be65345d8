// Package fixedpoint implements the 18-decimal unsigned fixed-point
// arithmetic used by the reverse-Dutch pricing engines.
package fixedpoint

import (
	"github.com/holiman/uint256"
)

// One is 1.0 in 1e18-scaled fixed-point representation.
const One uint64 = 1_000_000_000_000_000_000

// DecayScale is the 5-decimal scale used for the exponential auction's
// decay_factor parameter (spec §6: DECAY_SCALE = 1e5).
const DecayScale uint64 = 100_000

// pow2NegTable holds 2^(-i) for i in [0, 60], scaled by 1e18. Index 61 is
// treated as zero by Pow2Neg rather than stored, matching the reference
// table's "treat T[61] = 0" rule.
var pow2NegTable = [61]uint64{
	1000000000000000000, 500000000000000000, 250000000000000000, 125000000000000000, 62500000000000000, 31250000000000000,
	15625000000000000, 7812500000000000, 3906250000000000, 1953125000000000, 976562500000000, 488281250000000,
	244140625000000, 122070312500000, 61035156250000, 30517578125000, 15258789062500, 7629394531250,
	3814697265625, 1907348632812, 953674316406, 476837158203, 238418579102, 119209289551,
	59604644775, 29802322388, 14901161194, 7450580597, 3725290298, 1862645149,
	931322575, 465661287, 232830644, 116415322, 58207661, 29103830,
	14551915, 7275958, 3637979, 1818989, 909495, 454747,
	227374, 113687, 56843, 28422, 14211, 7105,
	3553, 1776, 888, 444, 222, 111,
	56, 28, 14, 7, 3, 2,
	1,
}

var oneU256 = new(uint256.Int).SetUint64(One)

// sixtyOneU256 is the saturation threshold 61 * One. It does not fit in a
// uint64 (61e18 exceeds uint64's ~18.4e18 ceiling), which is exactly why
// xRaw is carried as a uint256.Int rather than a machine word — the table
// domain itself is wider than 64 bits.
var sixtyOneU256 = new(uint256.Int).Mul(new(uint256.Int).SetUint64(61), oneU256)

// XRawFromDecay builds the fixed-point exponent register for the
// exponential reverse-Dutch curve: x = elapsedSeconds * decayFactor /
// DecayScale, expressed in 1e18-fixed representation. Kept as a
// uint256.Int for the same reason Pow2Neg's input is: the product can
// exceed a uint64 well before it exceeds the table's domain.
func XRawFromDecay(elapsedSeconds, decayFactor uint64) *uint256.Int {
	x := new(uint256.Int).SetUint64(elapsedSeconds)
	x.Mul(x, new(uint256.Int).SetUint64(decayFactor))
	x.Mul(x, oneU256)
	x.Div(x, new(uint256.Int).SetUint64(DecayScale))
	return x
}

// Pow2Neg evaluates 2^(-x) for x given in 1e18-fixed representation. x
// itself may range up to the table's domain (61.0, i.e. ~61e18 in fixed
// form), which does not fit a uint64 — hence the uint256.Int parameter.
// Values of x at or beyond 61 saturate to zero. Non-integral x is
// resolved by linear interpolation between the two bracketing table
// entries — this exact piecewise-linear form is the tested contract
// (spec §4.7) and is never replaced by a true power function.
func Pow2Neg(xRaw *uint256.Int) uint64 {
	if xRaw.Cmp(sixtyOneU256) >= 0 {
		return 0
	}

	iBig := new(uint256.Int).Div(xRaw, oneU256)
	rBig := new(uint256.Int).Mod(xRaw, oneU256)
	i := iBig.Uint64() // safe: bounded below 61 by the check above
	r := rBig.Uint64() // safe: a remainder mod One always fits a uint64

	if r == 0 {
		return pow2NegTable[i]
	}

	ti := pow2NegTable[i]
	var tNext uint64
	if i+1 < uint64(len(pow2NegTable)) {
		tNext = pow2NegTable[i+1]
	}

	// ti - (ti - tNext) * r / One, computed in 256-bit space since
	// (ti - tNext) * r can exceed 64 bits for small i.
	diff := new(uint256.Int).SetUint64(ti - tNext)
	rr := new(uint256.Int).SetUint64(r)
	diff.Mul(diff, rr)
	diff.Div(diff, oneU256)

	return ti - diff.Uint64()
}

// SatAdd returns a+b saturating at math.MaxUint64 instead of overflowing.
func SatAdd(a, b uint64) uint64 {
	sum := a + b
	if sum < a {
		return ^uint64(0)
	}
	return sum
}

// SatSub returns a-b saturating at 0 instead of underflowing.
func SatSub(a, b uint64) uint64 {
	if b > a {
		return 0
	}
	return a - b
}

// MulDiv computes a*b/d using 256-bit intermediate precision, avoiding
// the overflow that a naive uint64 multiply of two 1e18-scaled values
// would hit.
func MulDiv(a, b, d uint64) uint64 {
	x := new(uint256.Int).SetUint64(a)
	y := new(uint256.Int).SetUint64(b)
	x.Mul(x, y)
	x.Div(x, new(uint256.Int).SetUint64(d))
	return x.Uint64()
}
