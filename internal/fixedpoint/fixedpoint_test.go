package fixedpoint

import (
	"math/big"
	"testing"
)

func bigFromString(t *testing.T, s string) *big.Int {
	t.Helper()
	v, ok := new(big.Int).SetString(s, 10)
	if !ok {
		t.Fatalf("invalid big int literal: %s", s)
	}
	return v
}

func TestToE18(t *testing.T) {
	cases := []struct {
		name     string
		amount   string
		decimals uint8
		want     string
	}{
		{"native 18", "1000000000000000000", 18, "1000000000000000000"},
		{"usdc 6", "50000000", 6, "50000000000000000000"},
		{"wbtc 8", "100000000", 8, "1000000000000000000"},
		{"over 18 truncates", "1500000000000000000000", 21, "1500000000000000000"},
		{"negative", "-50000000", 6, "-50000000000000000000"},
		{"zero", "0", 6, "0"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := ToE18(bigFromString(t, tc.amount), tc.decimals)
			if got.String() != tc.want {
				t.Fatalf("ToE18(%s, %d) = %s, want %s", tc.amount, tc.decimals, got, tc.want)
			}
		})
	}
}

func TestMulDivE18(t *testing.T) {
	two := bigFromString(t, "2000000000000000000")
	three := bigFromString(t, "3000000000000000000")

	if got := MulE18(two, three); got.String() != "6000000000000000000" {
		t.Fatalf("MulE18 = %s, want 6e18", got)
	}
	if got := DivE18(three, two); got.String() != "1500000000000000000" {
		t.Fatalf("DivE18 = %s, want 1.5e18", got)
	}
	if got := DivE18(three, big.NewInt(0)); got.Sign() != 0 {
		t.Fatalf("DivE18 by zero = %s, want 0", got)
	}
	if got := MulE18(nil, two); got.Sign() != 0 {
		t.Fatalf("MulE18 nil = %s, want 0", got)
	}
}

// Swap scenario: token0 has 18 decimals at 1 USD, token1 has 6 decimals at
// 2 USD. 100 token0 in must value at exactly 100 USD in 1e18 fixed point.
func TestUsdValueSwapScenario(t *testing.T) {
	price0 := bigFromString(t, "1000000000000000000")
	price1 := bigFromString(t, "2000000000000000000")

	amount0 := bigFromString(t, "100000000000000000000")
	got := UsdValue(amount0, 18, price0)
	if got.String() != "100000000000000000000" {
		t.Fatalf("token0 side USD = %s, want 100e18", got)
	}

	amount1 := bigFromString(t, "50000000")
	got = UsdValue(amount1, 6, price1)
	if got.String() != "100000000000000000000" {
		t.Fatalf("token1 side USD = %s, want 100e18", got)
	}

	if got := UsdValue(amount0, 18, big.NewInt(0)); got.Sign() != 0 {
		t.Fatalf("unknown price should value to 0, got %s", got)
	}
}

func TestFromE18RoundTrip(t *testing.T) {
	amount := bigFromString(t, "123456789")
	e18 := ToE18(amount, 6)
	back := FromE18(e18, 6)
	if back.Cmp(amount) != 0 {
		t.Fatalf("round trip = %s, want %s", back, amount)
	}
}
