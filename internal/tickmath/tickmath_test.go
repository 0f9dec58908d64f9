package tickmath

import (
	"math/big"
	"testing"
)

func mustSqrtRatio(t *testing.T, tick int32) *big.Int {
	t.Helper()
	ratio, err := SqrtRatioAtTick(tick)
	if err != nil {
		t.Fatalf("SqrtRatioAtTick(%d): %v", tick, err)
	}
	return ratio
}

func TestPositionAmountsDegenerateInput(t *testing.T) {
	price := mustSqrtRatio(t, 0)
	liquidity := big.NewInt(1_000_000)

	cases := []struct {
		name      string
		liquidity *big.Int
		price     *big.Int
		lower     int32
		upper     int32
	}{
		{"zero liquidity", big.NewInt(0), price, -100, 100},
		{"nil liquidity", nil, price, -100, 100},
		{"equal ticks", liquidity, price, 50, 50},
		{"inverted ticks", liquidity, price, 100, -100},
		{"nil price", liquidity, nil, -100, 100},
		{"zero price", liquidity, big.NewInt(0), -100, 100},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			amount0, amount1 := PositionAmounts(tc.liquidity, tc.price, tc.lower, tc.upper)
			if amount0.Sign() != 0 || amount1.Sign() != 0 {
				t.Fatalf("want (0, 0), got (%s, %s)", amount0, amount1)
			}
		})
	}
}

func TestPositionAmountsRegimes(t *testing.T) {
	liquidity := new(big.Int)
	liquidity.SetString("2000000000000000000", 10)

	lower := mustSqrtRatio(t, -600)
	upper := mustSqrtRatio(t, 600)

	// Below range: all token0.
	below := mustSqrtRatio(t, -1200)
	amount0, amount1 := PositionAmounts(liquidity, below, -600, 600)
	if amount0.Sign() <= 0 {
		t.Fatalf("below range amount0 = %s, want > 0", amount0)
	}
	if amount1.Sign() != 0 {
		t.Fatalf("below range amount1 = %s, want 0", amount1)
	}

	// Above range: all token1.
	above := mustSqrtRatio(t, 1200)
	amount0, amount1 = PositionAmounts(liquidity, above, -600, 600)
	if amount0.Sign() != 0 {
		t.Fatalf("above range amount0 = %s, want 0", amount0)
	}
	if amount1.Sign() <= 0 {
		t.Fatalf("above range amount1 = %s, want > 0", amount1)
	}

	// In range: both sides positive.
	mid := mustSqrtRatio(t, 0)
	amount0, amount1 = PositionAmounts(liquidity, mid, -600, 600)
	if amount0.Sign() <= 0 || amount1.Sign() <= 0 {
		t.Fatalf("in range amounts = (%s, %s), want both > 0", amount0, amount1)
	}

	// In-range amounts must match the boundary delta formulas exactly.
	wantAmount0 := amount0Delta(mid, upper, liquidity)
	wantAmount1 := amount1Delta(lower, mid, liquidity)
	if amount0.Cmp(wantAmount0) != 0 || amount1.Cmp(wantAmount1) != 0 {
		t.Fatalf("in range mismatch: got (%s, %s), want (%s, %s)", amount0, amount1, wantAmount0, wantAmount1)
	}
}

// At exactly the lower boundary the position must equal the single-sided
// token0 formula; at the upper boundary, the token1 formula. No discontinuity.
func TestPositionAmountsBoundaryContinuity(t *testing.T) {
	liquidity := new(big.Int)
	liquidity.SetString("5000000000000000000", 10)

	lower := mustSqrtRatio(t, -300)
	upper := mustSqrtRatio(t, 300)

	amount0, amount1 := PositionAmounts(liquidity, lower, -300, 300)
	if want := amount0Delta(lower, upper, liquidity); amount0.Cmp(want) != 0 {
		t.Fatalf("at lower boundary amount0 = %s, want %s", amount0, want)
	}
	if amount1.Sign() != 0 {
		t.Fatalf("at lower boundary amount1 = %s, want 0", amount1)
	}

	amount0, amount1 = PositionAmounts(liquidity, upper, -300, 300)
	if amount0.Sign() != 0 {
		t.Fatalf("at upper boundary amount0 = %s, want 0", amount0)
	}
	if want := amount1Delta(lower, upper, liquidity); amount1.Cmp(want) != 0 {
		t.Fatalf("at upper boundary amount1 = %s, want %s", amount1, want)
	}
}

func TestLiquidityForAmountsRoundTrip(t *testing.T) {
	liquidity := new(big.Int)
	liquidity.SetString("7000000000000000000", 10)

	price := mustSqrtRatio(t, 120)
	amount0, amount1 := PositionAmounts(liquidity, price, -600, 600)

	got := LiquidityForAmounts(price, -600, 600, amount0, amount1)
	if got.Sign() <= 0 {
		t.Fatalf("recovered liquidity = %s, want > 0", got)
	}
	// Round-down amounts recover at most the original liquidity, and the
	// error is bounded by one rounding step per conversion.
	if got.Cmp(liquidity) > 0 {
		t.Fatalf("recovered liquidity %s exceeds original %s", got, liquidity)
	}
	diff := new(big.Int).Sub(liquidity, got)
	bound := new(big.Int).Div(liquidity, big.NewInt(1_000_000))
	if diff.Cmp(bound) > 0 {
		t.Fatalf("recovered liquidity off by %s, bound %s", diff, bound)
	}
}

func TestLiquidityForAmountsDegenerate(t *testing.T) {
	price := mustSqrtRatio(t, 0)
	if got := LiquidityForAmounts(price, 100, 100, big.NewInt(1), big.NewInt(1)); got.Sign() != 0 {
		t.Fatalf("equal ticks liquidity = %s, want 0", got)
	}
	if got := LiquidityForAmounts(nil, -100, 100, big.NewInt(1), big.NewInt(1)); got.Sign() != 0 {
		t.Fatalf("nil price liquidity = %s, want 0", got)
	}
}
