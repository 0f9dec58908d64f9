// Package tickmath converts concentrated-liquidity tick ranges between
// liquidity and token amounts. All divisions round toward zero so a position
// is never credited more than it holds.
package tickmath

import (
	"math/big"

	"github.com/daoleno/uniswapv3-sdk/utils"
)

// Q96 is the 2^96 scale of sqrtPriceX96 values.
var Q96 = new(big.Int).Lsh(big.NewInt(1), 96)

// SqrtRatioAtTick returns the Q64.96 sqrt price ratio for a tick.
func SqrtRatioAtTick(tick int32) (*big.Int, error) {
	return utils.GetSqrtRatioAtTick(int(tick))
}

// amount0Delta is the token0 amount held between two sqrt ratios at the given
// liquidity: floor(L * 2^96 * (sqrtB - sqrtA) / sqrtB / sqrtA).
func amount0Delta(sqrtA, sqrtB, liquidity *big.Int) *big.Int {
	if sqrtA.Cmp(sqrtB) > 0 {
		sqrtA, sqrtB = sqrtB, sqrtA
	}
	if sqrtA.Sign() == 0 {
		return new(big.Int)
	}
	out := new(big.Int).Lsh(liquidity, 96)
	out.Mul(out, new(big.Int).Sub(sqrtB, sqrtA))
	out.Quo(out, sqrtB)
	return out.Quo(out, sqrtA)
}

// amount1Delta is the token1 amount held between two sqrt ratios:
// floor(L * (sqrtB - sqrtA) / 2^96).
func amount1Delta(sqrtA, sqrtB, liquidity *big.Int) *big.Int {
	if sqrtA.Cmp(sqrtB) > 0 {
		sqrtA, sqrtB = sqrtB, sqrtA
	}
	out := new(big.Int).Mul(liquidity, new(big.Int).Sub(sqrtB, sqrtA))
	return out.Quo(out, Q96)
}

// PositionAmounts returns the token amounts a position holds at the current
// sqrt price. Degenerate input (zero liquidity, equal or inverted ticks,
// missing price) yields (0, 0) rather than an error: the chain only ever
// emits well-formed ranges, and valuation must not abort on the exceptions.
func PositionAmounts(liquidity, sqrtPriceX96 *big.Int, tickLower, tickUpper int32) (*big.Int, *big.Int) {
	zero0, zero1 := new(big.Int), new(big.Int)
	if liquidity == nil || liquidity.Sign() == 0 || tickLower >= tickUpper {
		return zero0, zero1
	}
	if sqrtPriceX96 == nil || sqrtPriceX96.Sign() == 0 {
		return zero0, zero1
	}

	sqrtLower, err := SqrtRatioAtTick(tickLower)
	if err != nil {
		return zero0, zero1
	}
	sqrtUpper, err := SqrtRatioAtTick(tickUpper)
	if err != nil {
		return zero0, zero1
	}

	switch {
	case sqrtPriceX96.Cmp(sqrtLower) <= 0:
		// Entirely token0.
		return amount0Delta(sqrtLower, sqrtUpper, liquidity), zero1
	case sqrtPriceX96.Cmp(sqrtUpper) >= 0:
		// Entirely token1.
		return zero0, amount1Delta(sqrtLower, sqrtUpper, liquidity)
	default:
		amount0 := amount0Delta(sqrtPriceX96, sqrtUpper, liquidity)
		amount1 := amount1Delta(sqrtLower, sqrtPriceX96, liquidity)
		return amount0, amount1
	}
}

// liquidityForAmount0 inverts amount0Delta: floor(amount0 * sqrtA * sqrtB / 2^96 / (sqrtB - sqrtA)).
func liquidityForAmount0(sqrtA, sqrtB, amount0 *big.Int) *big.Int {
	if sqrtA.Cmp(sqrtB) > 0 {
		sqrtA, sqrtB = sqrtB, sqrtA
	}
	diff := new(big.Int).Sub(sqrtB, sqrtA)
	if diff.Sign() == 0 {
		return new(big.Int)
	}
	out := new(big.Int).Mul(sqrtA, sqrtB)
	out.Quo(out, Q96)
	out.Mul(out, amount0)
	return out.Quo(out, diff)
}

// liquidityForAmount1 inverts amount1Delta: floor(amount1 * 2^96 / (sqrtB - sqrtA)).
func liquidityForAmount1(sqrtA, sqrtB, amount1 *big.Int) *big.Int {
	if sqrtA.Cmp(sqrtB) > 0 {
		sqrtA, sqrtB = sqrtB, sqrtA
	}
	diff := new(big.Int).Sub(sqrtB, sqrtA)
	if diff.Sign() == 0 {
		return new(big.Int)
	}
	out := new(big.Int).Mul(amount1, Q96)
	return out.Quo(out, diff)
}

// LiquidityForAmounts derives the liquidity a position with the given token
// amounts would carry at the current sqrt price. Used to reconstruct ALM
// wrapper snapshots when the wrapper only reports amounts.
func LiquidityForAmounts(sqrtPriceX96 *big.Int, tickLower, tickUpper int32, amount0, amount1 *big.Int) *big.Int {
	if tickLower >= tickUpper || sqrtPriceX96 == nil || sqrtPriceX96.Sign() == 0 {
		return new(big.Int)
	}
	if amount0 == nil {
		amount0 = new(big.Int)
	}
	if amount1 == nil {
		amount1 = new(big.Int)
	}

	sqrtLower, err := SqrtRatioAtTick(tickLower)
	if err != nil {
		return new(big.Int)
	}
	sqrtUpper, err := SqrtRatioAtTick(tickUpper)
	if err != nil {
		return new(big.Int)
	}

	switch {
	case sqrtPriceX96.Cmp(sqrtLower) <= 0:
		return liquidityForAmount0(sqrtLower, sqrtUpper, amount0)
	case sqrtPriceX96.Cmp(sqrtUpper) >= 0:
		return liquidityForAmount1(sqrtLower, sqrtUpper, amount1)
	default:
		l0 := liquidityForAmount0(sqrtPriceX96, sqrtUpper, amount0)
		l1 := liquidityForAmount1(sqrtLower, sqrtPriceX96, amount1)
		if l0.Cmp(l1) < 0 {
			return l0
		}
		return l1
	}
}
