// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package fixedmath implements WAD (1e18) fixed-point arithmetic: signed
// and unsigned multiply/divide, a signed natural logarithm, a signed
// exponential, and range-checked casts between signed and unsigned
// representations. Every quantity elsewhere in the CLUM core is a
// *big.Int scaled by WAD, the same fixed-point convention used
// throughout perpetuals, margin and interest-rate models.
package fixedmath

import (
	"math/big"

	"github.com/luxfi/everlast/internal/errs"
)

// WAD is the fixed-point scale, 10^18.
var WAD = new(big.Int).Exp(big.NewInt(10), big.NewInt(18), nil)

// precBits is the working precision used internally by ln/exp before
// rounding back to a WAD-scaled integer. 200 bits (~60 decimal digits)
// comfortably covers the one-ulp-of-WAD accuracy target over the
// documented input ranges.
const precBits = 200

// MulWad computes a*b/WAD, truncating toward zero like Solidity's mulDiv.
func MulWad(a, b *big.Int) *big.Int {
	out := new(big.Int).Mul(a, b)
	return out.Quo(out, WAD)
}

// DivWad computes a*WAD/b, truncating toward zero.
func DivWad(a, b *big.Int) *big.Int {
	out := new(big.Int).Mul(a, WAD)
	return out.Quo(out, b)
}

// ToInt256 checked-casts an unsigned WAD value into the signed domain,
// failing if it would overflow a 256-bit signed integer.
func ToInt256(u *big.Int) (*big.Int, error) {
	if u.Sign() < 0 {
		return nil, errs.ErrInvalidConfig
	}
	if u.BitLen() > 255 {
		return nil, errs.ErrInvalidConfig
	}
	return new(big.Int).Set(u), nil
}

// ToUint256 checked-casts a signed WAD value into the unsigned domain,
// failing on negative input.
func ToUint256(s *big.Int) (*big.Int, error) {
	if s.Sign() < 0 {
		return nil, errs.ErrInvalidConfig
	}
	return new(big.Int).Set(s), nil
}

// bigFloat returns a big.Float with the package's working precision.
func bigFloat() *big.Float {
	return new(big.Float).SetPrec(precBits)
}

// wadToFloat converts a WAD-scaled integer to a high-precision real value.
func wadToFloat(x *big.Int) *big.Float {
	f := bigFloat().SetInt(x)
	return f.Quo(f, bigFloat().SetInt(WAD))
}

// floatToWad converts a high-precision real value back to a WAD-scaled
// integer, truncating toward zero.
func floatToWad(f *big.Float) *big.Int {
	scaled := new(big.Float).SetPrec(precBits).Mul(f, bigFloat().SetInt(WAD))
	out, _ := scaled.Int(nil)
	return out
}

// LnWad returns ln(x) for x > 0, WAD-scaled, using argument reduction by
// repeated square roots followed by the atanh-series expansion
//
//	ln(s) = 2*(z + z^3/3 + z^5/5 + ...), z = (s-1)/(s+1)
//
// which converges quadratically once s is close to 1. Deterministic and
// monotonic by construction: every step (sqrt, the series, and the final
// doubling) is itself monotonic in its input.
func LnWad(x *big.Int) (*big.Int, error) {
	if x.Sign() <= 0 {
		return nil, errs.ErrLnUndefined
	}
	v := wadToFloat(x)
	one := bigFloat().SetInt64(1)

	// Reduce v into [1, 2) by repeated halving/doubling, tracking the
	// power-of-two exponent e such that x = m * 2^e.
	two := bigFloat().SetInt64(2)
	e := 0
	for v.Cmp(two) >= 0 {
		v.Quo(v, two)
		e++
	}
	for v.Cmp(one) < 0 {
		v.Mul(v, two)
		e--
	}

	// Shrink toward 1 with repeated square roots so the series below
	// converges in only a handful of terms; undo with doubling at the end.
	k := 0
	for v.Cmp(bigFloat().SetFloat64(1.01)) > 0 {
		v.Sqrt(v)
		k++
	}

	z := new(big.Float).SetPrec(precBits).Sub(v, one)
	denom := new(big.Float).SetPrec(precBits).Add(v, one)
	z.Quo(z, denom)

	sum := bigFloat().SetInt64(0)
	term := new(big.Float).SetPrec(precBits).Set(z)
	zSq := new(big.Float).SetPrec(precBits).Mul(z, z)
	for n := int64(1); n < 80; n += 2 {
		contrib := new(big.Float).SetPrec(precBits).Quo(term, bigFloat().SetInt64(n))
		sum.Add(sum, contrib)
		term.Mul(term, zSq)
		if term.Sign() == 0 {
			break
		}
	}
	lnS := new(big.Float).SetPrec(precBits).Mul(sum, two)

	lnV := new(big.Float).SetPrec(precBits).Mul(lnS, bigFloat().SetInt64(int64(1)<<uint(k)))

	ln2 := ln2Const()
	result := new(big.Float).SetPrec(precBits).Mul(ln2, bigFloat().SetInt64(int64(e)))
	result.Add(result, lnV)

	return floatToWad(result), nil
}

// expUnderflowBound and expOverflowBound are the supported range edges:
// exp is defined on [-42*WAD, 135*WAD].
var (
	expUnderflowBound = new(big.Int).Mul(big.NewInt(-42), WAD)
	expOverflowBound  = new(big.Int).Mul(big.NewInt(135), WAD)
)

// ExpWad returns e^x, WAD-scaled, for x in [-42*WAD, 135*WAD]. Returns 0
// (not an error) on deep underflow below the supported range, and
// ErrExpOverflow above it.
func ExpWad(x *big.Int) (*big.Int, error) {
	if x.Cmp(expUnderflowBound) < 0 {
		return big.NewInt(0), nil
	}
	if x.Cmp(expOverflowBound) > 0 {
		return nil, errs.ErrExpOverflow
	}

	v := wadToFloat(x)

	// Split into integer and fractional parts: x = n + f, f in [0, 1).
	n, _ := v.Int(nil)
	f := new(big.Float).SetPrec(precBits).Sub(v, bigFloat().SetInt(n))
	if f.Sign() < 0 {
		f.Add(f, bigFloat().SetInt64(1))
		n.Sub(n, big.NewInt(1))
	}

	// e^f via its Taylor series; f in [0,1) converges quickly at this
	// working precision.
	ef := bigFloat().SetInt64(1)
	term := bigFloat().SetInt64(1)
	for i := int64(1); i < 60; i++ {
		term.Mul(term, f)
		term.Quo(term, bigFloat().SetInt64(i))
		ef.Add(ef, term)
		if term.Sign() == 0 {
			break
		}
	}

	// e^n via repeated squaring of the constant e.
	en := ePow(n)

	result := new(big.Float).SetPrec(precBits).Mul(en, ef)
	return floatToWad(result), nil
}

// ln2Const returns ln(2) computed once to the package's working
// precision via the same series used by LnWad, avoided recursion by
// hand-expanding the s=2 case.
func ln2Const() *big.Float {
	// ln(2) = 2*atanh(1/3) * ... ; use the same reduction technique
	// directly on the value 2 without going through LnWad (so the
	// constant has no dependency on integer WAD rounding).
	v := bigFloat().SetInt64(2)
	one := bigFloat().SetInt64(1)
	k := 0
	for v.Cmp(bigFloat().SetFloat64(1.01)) > 0 {
		v.Sqrt(v)
		k++
	}
	z := new(big.Float).SetPrec(precBits).Sub(v, one)
	denom := new(big.Float).SetPrec(precBits).Add(v, one)
	z.Quo(z, denom)

	sum := bigFloat().SetInt64(0)
	term := new(big.Float).SetPrec(precBits).Set(z)
	zSq := new(big.Float).SetPrec(precBits).Mul(z, z)
	for n := int64(1); n < 80; n += 2 {
		contrib := new(big.Float).SetPrec(precBits).Quo(term, bigFloat().SetInt64(n))
		sum.Add(sum, contrib)
		term.Mul(term, zSq)
		if term.Sign() == 0 {
			break
		}
	}
	lnS := new(big.Float).SetPrec(precBits).Mul(sum, bigFloat().SetInt64(2))
	return lnS.Mul(lnS, bigFloat().SetInt64(int64(1)<<uint(k)))
}

// eConst is Euler's number at the package's working precision, computed
// once via its own Taylor series (e = e^1).
func eConst() *big.Float {
	sum := bigFloat().SetInt64(1)
	term := bigFloat().SetInt64(1)
	for i := int64(1); i < 80; i++ {
		term.Quo(term, bigFloat().SetInt64(i))
		sum.Add(sum, term)
		if term.Sign() == 0 {
			break
		}
	}
	return sum
}

// ePow computes e^n for integer n (positive, negative, or zero) by
// repeated squaring of the precomputed constant e.
func ePow(n *big.Int) *big.Float {
	if n.Sign() == 0 {
		return bigFloat().SetInt64(1)
	}
	neg := n.Sign() < 0
	abs := new(big.Int).Abs(n)

	base := eConst()
	result := bigFloat().SetInt64(1)
	e := new(big.Int).Set(abs)
	two := big.NewInt(2)
	rem := new(big.Int)
	for e.Sign() > 0 {
		e.QuoRem(e, two, rem)
		if rem.Sign() != 0 {
			result.Mul(result, base)
		}
		base.Mul(base, base)
	}
	if neg {
		result.Quo(bigFloat().SetInt64(1), result)
	}
	return result
}
