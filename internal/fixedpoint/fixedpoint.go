// Package fixedpoint provides the 1e18 fixed-point primitives used for all
// USD valuation. Divisions truncate toward zero; degenerate denominators
// yield zero rather than an error.
package fixedpoint

import "math/big"

const e18Decimals = 18

var (
	// E18 is the 1e18 fixed-point scale.
	E18 = new(big.Int).Exp(big.NewInt(10), big.NewInt(e18Decimals), nil)

	pow10 = buildPow10()
)

func buildPow10() []*big.Int {
	table := make([]*big.Int, 78)
	for i := range table {
		table[i] = new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(i)), nil)
	}
	return table
}

// Pow10 returns 10^n. Exponents beyond the uint256 range are computed on demand.
func Pow10(n uint) *big.Int {
	if int(n) < len(pow10) {
		return pow10[n]
	}
	return new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(n)), nil)
}

// ToE18 normalizes a native token amount to 1e18 fixed point.
func ToE18(amount *big.Int, decimals uint8) *big.Int {
	if amount == nil {
		return new(big.Int)
	}
	switch {
	case decimals == e18Decimals:
		return new(big.Int).Set(amount)
	case decimals < e18Decimals:
		return new(big.Int).Mul(amount, Pow10(uint(e18Decimals-decimals)))
	default:
		return new(big.Int).Quo(new(big.Int).Set(amount), Pow10(uint(decimals-e18Decimals)))
	}
}

// FromE18 converts a 1e18 fixed-point value back to native token decimals.
func FromE18(amount *big.Int, decimals uint8) *big.Int {
	if amount == nil {
		return new(big.Int)
	}
	switch {
	case decimals == e18Decimals:
		return new(big.Int).Set(amount)
	case decimals < e18Decimals:
		return new(big.Int).Quo(new(big.Int).Set(amount), Pow10(uint(e18Decimals-decimals)))
	default:
		return new(big.Int).Mul(amount, Pow10(uint(decimals-e18Decimals)))
	}
}

// MulE18 multiplies two 1e18 fixed-point values, truncating toward zero.
func MulE18(a, b *big.Int) *big.Int {
	if a == nil || b == nil {
		return new(big.Int)
	}
	out := new(big.Int).Mul(a, b)
	return out.Quo(out, E18)
}

// DivE18 divides two 1e18 fixed-point values, truncating toward zero.
// A zero divisor yields zero.
func DivE18(a, b *big.Int) *big.Int {
	if a == nil || b == nil || b.Sign() == 0 {
		return new(big.Int)
	}
	out := new(big.Int).Mul(a, E18)
	return out.Quo(out, b)
}

// UsdValue values a native token amount at a 1e18 fixed-point USD price.
func UsdValue(amount *big.Int, decimals uint8, priceE18 *big.Int) *big.Int {
	if priceE18 == nil || priceE18.Sign() == 0 {
		return new(big.Int)
	}
	return MulE18(ToE18(amount, decimals), priceE18)
}

// Abs returns |v| as a fresh value.
func Abs(v *big.Int) *big.Int {
	if v == nil {
		return new(big.Int)
	}
	return new(big.Int).Abs(v)
}
