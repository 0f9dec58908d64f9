package oracle

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"

	"ammLedger/internal/chain"
	"ammLedger/internal/config"
)

const (
	testUSDC   = "0x0b2C639c533813f4Aa9D7837CAf62653d097Ff85"
	testWETH   = "0x4200000000000000000000000000000000000006"
	testReward = "0x9560e827aF36c94D2ac33a39bCE1Fe78631088Db"
)

type fakeCaller struct {
	calls   int
	blocks  []uint64
	respond func(msg ethereum.CallMsg, block *big.Int) ([]byte, error)
}

func (f *fakeCaller) CallContract(_ context.Context, msg ethereum.CallMsg, block *big.Int) ([]byte, error) {
	f.calls++
	f.blocks = append(f.blocks, block.Uint64())
	return f.respond(msg, block)
}

var _ chain.Caller = (*fakeCaller)(nil)

func testChainConfig() config.ChainConfig {
	return config.ChainConfig{
		ChainID:      10,
		USDC:         testUSDC,
		USDCDecimals: 6,
		WETH:         testWETH,
		RewardToken:  testReward,
		OracleV3:     config.OracleDeployment{Address: "0x0000000000000000000000000000000000000333", StartBlock: 1000},
	}
}

func encodeV3Rates(t *testing.T, rates []*big.Int) []byte {
	t.Helper()
	_, v3ABI, err := loadOracleABIs()
	if err != nil {
		t.Fatalf("load ABIs: %v", err)
	}
	out, err := v3ABI.Methods["getManyRatesWithThresholdFilter"].Outputs.Pack(rates)
	if err != nil {
		t.Fatalf("pack rates: %v", err)
	}
	return out
}

func encodeV2Rates(t *testing.T, rates []*big.Int) []byte {
	t.Helper()
	v2ABI, _, err := loadOracleABIs()
	if err != nil {
		t.Fatalf("load ABIs: %v", err)
	}
	out, err := v2ABI.Methods["getManyRatesWithConnectors"].Outputs.Pack(rates)
	if err != nil {
		t.Fatalf("pack rates: %v", err)
	}
	return out
}

func newTestResolver(cfg config.ChainConfig, caller chain.Caller) *Resolver {
	return NewResolver([]config.ChainConfig{cfg}, map[uint64]chain.Caller{cfg.ChainID: caller}, nil)
}

func TestBuildRouteFiltersAndCaps(t *testing.T) {
	cfg := testChainConfig()
	token := "0x00000000000000000000000000000000000000aa"

	// 12 eligible connectors plus ones that must be filtered out.
	for i := 0; i < 12; i++ {
		cfg.Connectors = append(cfg.Connectors, config.ConnectorToken{
			Address:      fmt.Sprintf("0x%040x", 0x100+i),
			CreatedBlock: 500,
			Whitelisted:  true,
		})
	}
	cfg.Connectors = append(cfg.Connectors,
		config.ConnectorToken{Address: "0x0000000000000000000000000000000000000200", CreatedBlock: 500, Whitelisted: false},
		config.ConnectorToken{Address: "0x0000000000000000000000000000000000000201", CreatedBlock: 9999, Whitelisted: true},
		config.ConnectorToken{Address: token, CreatedBlock: 500, Whitelisted: true},
		config.ConnectorToken{Address: testWETH, CreatedBlock: 500, Whitelisted: true},
		config.ConnectorToken{Address: testUSDC, CreatedBlock: 500, Whitelisted: true},
		config.ConnectorToken{Address: testReward, CreatedBlock: 500, Whitelisted: true},
	)

	route := buildRoute(cfg, token, 2000)
	if len(route) != 1+connectorThreshold+3 {
		t.Fatalf("route length = %d, want %d", len(route), 1+connectorThreshold+3)
	}
	if route[0] != common.HexToAddress(token) {
		t.Fatalf("route[0] = %s, want source token", route[0])
	}
	for i := 0; i < connectorThreshold; i++ {
		want := common.HexToAddress(fmt.Sprintf("0x%040x", 0x100+i))
		if route[1+i] != want {
			t.Fatalf("route[%d] = %s, want connector %s in configured order", 1+i, route[1+i], want)
		}
	}
	tail := route[len(route)-3:]
	if tail[0] != common.HexToAddress(testReward) || tail[1] != common.HexToAddress(testWETH) || tail[2] != common.HexToAddress(testUSDC) {
		t.Fatalf("route tail = %v, want [reward, weth, usdc]", tail)
	}
}

func TestNormalizeV2Rate(t *testing.T) {
	tests := []struct {
		name         string
		raw          string
		tokenDec     uint8
		usdcDec      uint8
		want         string
	}{
		{"18dec token, 6dec usdc", "2500000", 18, 6, "2500000000000000000"},
		{"same decimals", "1500000", 6, 6, "1500000"},
		{"token below usdc decimals", "150000000", 4, 6, "1500000"},
		{"zero raw", "0", 18, 6, "0"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			raw, _ := new(big.Int).SetString(tt.raw, 10)
			want, _ := new(big.Int).SetString(tt.want, 10)
			got := normalizeV2Rate(raw, tt.tokenDec, tt.usdcDec)
			if got.Cmp(want) != 0 {
				t.Fatalf("normalizeV2Rate(%s, %d, %d) = %s, want %s", tt.raw, tt.tokenDec, tt.usdcDec, got, want)
			}
		})
	}
}

func TestResolvePriceUSDCShortCircuit(t *testing.T) {
	caller := &fakeCaller{respond: func(ethereum.CallMsg, *big.Int) ([]byte, error) {
		return nil, errors.New("must not be called")
	}}
	r := newTestResolver(testChainConfig(), caller)

	price := r.ResolvePrice(context.Background(), testUSDC, 6, 2000, 10)
	if price.String() != "1000000000000000000" {
		t.Fatalf("usdc price = %s, want exactly 1e18", price)
	}
	if caller.calls != 0 {
		t.Fatalf("usdc resolution made %d rpc calls, want 0", caller.calls)
	}
}

func TestResolvePriceV3AndMemoization(t *testing.T) {
	want, _ := new(big.Int).SetString("2500000000000000000", 10)
	caller := &fakeCaller{}
	caller.respond = func(ethereum.CallMsg, *big.Int) ([]byte, error) {
		return encodeV3Rates(t, []*big.Int{new(big.Int).Set(want)}), nil
	}
	r := newTestResolver(testChainConfig(), caller)
	token := "0x00000000000000000000000000000000000000aa"

	got := r.ResolvePrice(context.Background(), token, 18, 2000, 10)
	if got.Cmp(want) != 0 {
		t.Fatalf("v3 price = %s, want %s", got, want)
	}
	// Same token and block resolve from the memo, not the node.
	again := r.ResolvePrice(context.Background(), token, 18, 2000, 10)
	if again.Cmp(want) != 0 {
		t.Fatalf("memoized price = %s, want %s", again, want)
	}
	if caller.calls != 1 {
		t.Fatalf("rpc calls = %d, want 1", caller.calls)
	}
}

func TestResolvePriceV2Normalization(t *testing.T) {
	cfg := testChainConfig()
	cfg.OracleV3 = config.OracleDeployment{}
	cfg.OracleV2 = config.OracleDeployment{Address: "0x0000000000000000000000000000000000000222", StartBlock: 1000}

	caller := &fakeCaller{}
	caller.respond = func(ethereum.CallMsg, *big.Int) ([]byte, error) {
		return encodeV2Rates(t, []*big.Int{big.NewInt(2500000)}), nil
	}
	r := newTestResolver(cfg, caller)

	got := r.ResolvePrice(context.Background(), "0x00000000000000000000000000000000000000aa", 18, 2000, 10)
	if got.String() != "2500000000000000000" {
		t.Fatalf("v2 normalized price = %s, want 2.5e18", got)
	}
}

func TestResolvePriceNotDeployed(t *testing.T) {
	cfg := testChainConfig()
	caller := &fakeCaller{respond: func(ethereum.CallMsg, *big.Int) ([]byte, error) {
		return nil, errors.New("must not be called")
	}}
	r := newTestResolver(cfg, caller)

	price := r.ResolvePrice(context.Background(), "0x00000000000000000000000000000000000000aa", 18, 500, 10)
	if price.Sign() != 0 {
		t.Fatalf("price before deployment = %s, want 0", price)
	}
	if caller.calls != 0 {
		t.Fatalf("rpc calls = %d, want 0", caller.calls)
	}
}

func TestResolvePriceCallFailureYieldsZero(t *testing.T) {
	caller := &fakeCaller{respond: func(ethereum.CallMsg, *big.Int) ([]byte, error) {
		return nil, errors.New("execution reverted")
	}}
	r := newTestResolver(testChainConfig(), caller)

	price := r.ResolvePrice(context.Background(), "0x00000000000000000000000000000000000000aa", 18, 2000, 10)
	if price.Sign() != 0 {
		t.Fatalf("price on call failure = %s, want 0", price)
	}
}

func TestResolvePriceRetriesExactBlock(t *testing.T) {
	cfg := testChainConfig()
	cfg.BlockInterval = 100
	want, _ := new(big.Int).SetString("3000000000000000000", 10)

	caller := &fakeCaller{}
	caller.respond = func(_ ethereum.CallMsg, block *big.Int) ([]byte, error) {
		if block.Uint64() == 12300 {
			return nil, errors.New("missing trie node deadbeef")
		}
		return encodeV3Rates(t, []*big.Int{new(big.Int).Set(want)}), nil
	}
	r := newTestResolver(cfg, caller)

	got := r.ResolvePrice(context.Background(), "0x00000000000000000000000000000000000000aa", 18, 12345, 10)
	if got.Cmp(want) != 0 {
		t.Fatalf("retried price = %s, want %s", got, want)
	}
	if caller.calls != 2 {
		t.Fatalf("rpc calls = %d, want rounded attempt then exact retry", caller.calls)
	}
	if caller.blocks[0] != 12300 || caller.blocks[1] != 12345 {
		t.Fatalf("call blocks = %v, want [12300 12345]", caller.blocks)
	}
}

func TestResolvePriceRetriesWhenRoundedPredatesOracle(t *testing.T) {
	cfg := testChainConfig()
	cfg.BlockInterval = 2000
	want, _ := new(big.Int).SetString("1000000000000000000", 10)

	caller := &fakeCaller{}
	caller.respond = func(ethereum.CallMsg, *big.Int) ([]byte, error) {
		return encodeV3Rates(t, []*big.Int{new(big.Int).Set(want)}), nil
	}
	r := newTestResolver(cfg, caller)

	// Rounds to 0, which predates StartBlock 1000; the exact block must be used.
	got := r.ResolvePrice(context.Background(), "0x00000000000000000000000000000000000000aa", 18, 1500, 10)
	if got.Cmp(want) != 0 {
		t.Fatalf("price = %s, want %s", got, want)
	}
	if caller.calls != 1 {
		t.Fatalf("rpc calls = %d, want 1", caller.calls)
	}
	if caller.blocks[0] != 1500 {
		t.Fatalf("call block = %d, want exact block 1500", caller.blocks[0])
	}
}

func TestRoundBlock(t *testing.T) {
	tests := []struct {
		block, interval, want uint64
	}{
		{12345, 100, 12300},
		{12300, 100, 12300},
		{99, 100, 0},
		{12345, 0, 12345},
	}
	for _, tt := range tests {
		if got := RoundBlock(tt.block, tt.interval); got != tt.want {
			t.Fatalf("RoundBlock(%d, %d) = %d, want %d", tt.block, tt.interval, got, tt.want)
		}
	}
}

func TestWhitelisted(t *testing.T) {
	cfg := testChainConfig()
	cfg.Connectors = []config.ConnectorToken{
		{Address: "0x0000000000000000000000000000000000000100", Whitelisted: true},
		{Address: "0x0000000000000000000000000000000000000101", Whitelisted: false},
	}
	r := newTestResolver(cfg, nil)

	if !r.Whitelisted(10, testUSDC) {
		t.Fatalf("usdc must count as whitelisted")
	}
	if !r.Whitelisted(10, "0x0000000000000000000000000000000000000100") {
		t.Fatalf("whitelisted connector not recognized")
	}
	if r.Whitelisted(10, "0x0000000000000000000000000000000000000101") {
		t.Fatalf("non-whitelisted connector must not count")
	}
	if r.Whitelisted(10, "0x00000000000000000000000000000000000000aa") {
		t.Fatalf("unknown token must not count")
	}
}
