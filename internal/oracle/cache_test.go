package oracle

import (
	"context"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum"

	"ammLedger/internal/config"
	"ammLedger/internal/model"
	"ammLedger/internal/store"
)

func newTestPriceCache(t *testing.T, caller *fakeCaller) (*PriceCache, *store.MemoryStore) {
	t.Helper()
	entityStore := store.NewMemoryStore()
	cfg := testChainConfig()
	resolver := newTestResolver(cfg, caller)
	return NewPriceCache(resolver, entityStore, nil), entityStore
}

func TestPriceCacheRefreshGate(t *testing.T) {
	price, _ := new(big.Int).SetString("2000000000000000000", 10)
	caller := &fakeCaller{}
	caller.respond = func(ethereum.CallMsg, *big.Int) ([]byte, error) {
		return encodeV3Rates(t, []*big.Int{new(big.Int).Set(price)}), nil
	}
	cache, entityStore := newTestPriceCache(t, caller)

	ctx := context.Background()
	token := "0x00000000000000000000000000000000000000aa"
	base := uint64(1_700_000_000)

	// First sighting creates the token and refreshes.
	got, err := cache.Token(ctx, 10, token, 18, 2000, base)
	if err != nil {
		t.Fatalf("first refresh: %v", err)
	}
	if got.PricePerUSD.Cmp(price) != 0 {
		t.Fatalf("price = %s, want %s", got.PricePerUSD, price)
	}
	if caller.calls != 1 {
		t.Fatalf("rpc calls = %d, want 1", caller.calls)
	}
	if len(entityStore.Snapshots()) != 1 {
		t.Fatalf("snapshots = %d, want 1", len(entityStore.Snapshots()))
	}

	// Half an hour later the stored price is served as-is. A different block
	// rules out the resolver memo hiding a second rpc call.
	got, err = cache.Token(ctx, 10, token, 18, 2100, base+1800)
	if err != nil {
		t.Fatalf("gated read: %v", err)
	}
	if got.PricePerUSD.Cmp(price) != 0 || got.LastUpdated != base {
		t.Fatalf("gated read changed token: price=%s lastUpdated=%d", got.PricePerUSD, got.LastUpdated)
	}
	if caller.calls != 1 {
		t.Fatalf("rpc calls after gated read = %d, want 1", caller.calls)
	}
	if len(entityStore.Snapshots()) != 1 {
		t.Fatalf("snapshots after gated read = %d, want 1", len(entityStore.Snapshots()))
	}

	// Past the interval a new refresh fires and appends one snapshot.
	got, err = cache.Token(ctx, 10, token, 18, 2200, base+3601)
	if err != nil {
		t.Fatalf("second refresh: %v", err)
	}
	if got.LastUpdated != base+3601 {
		t.Fatalf("lastUpdated = %d, want %d", got.LastUpdated, base+3601)
	}
	if caller.calls != 2 {
		t.Fatalf("rpc calls after second refresh = %d, want 2", caller.calls)
	}
	if len(entityStore.Snapshots()) != 2 {
		t.Fatalf("snapshots after second refresh = %d, want 2", len(entityStore.Snapshots()))
	}
}

func TestPriceCacheKeepsPreviousOnZero(t *testing.T) {
	price, _ := new(big.Int).SetString("2000000000000000000", 10)
	healthy := true
	caller := &fakeCaller{}
	caller.respond = func(ethereum.CallMsg, *big.Int) ([]byte, error) {
		if healthy {
			return encodeV3Rates(t, []*big.Int{new(big.Int).Set(price)}), nil
		}
		return encodeV3Rates(t, []*big.Int{big.NewInt(0)}), nil
	}
	cache, entityStore := newTestPriceCache(t, caller)

	ctx := context.Background()
	token := "0x00000000000000000000000000000000000000aa"
	base := uint64(1_700_000_000)

	if _, err := cache.Token(ctx, 10, token, 18, 2000, base); err != nil {
		t.Fatalf("seed refresh: %v", err)
	}

	healthy = false
	got, err := cache.Token(ctx, 10, token, 18, 2100, base+4000)
	if err != nil {
		t.Fatalf("failed refresh: %v", err)
	}
	if got.PricePerUSD.Cmp(price) != 0 {
		t.Fatalf("price after failed refresh = %s, want previous %s", got.PricePerUSD, price)
	}
	if got.LastUpdated != base+4000 {
		t.Fatalf("lastUpdated after failed refresh = %d, want %d", got.LastUpdated, base+4000)
	}
	if len(entityStore.Snapshots()) != 1 {
		t.Fatalf("snapshots = %d, failed refresh must not append", len(entityStore.Snapshots()))
	}

	// The advanced clock rate-limits the next attempt.
	if _, err := cache.Token(ctx, 10, token, 18, 2200, base+4100); err != nil {
		t.Fatalf("gated retry: %v", err)
	}
	if caller.calls != 2 {
		t.Fatalf("rpc calls = %d, failed refresh must still gate retries", caller.calls)
	}
}

func TestPriceCacheCreatesTokenWithWhitelistFlag(t *testing.T) {
	caller := &fakeCaller{}
	caller.respond = func(ethereum.CallMsg, *big.Int) ([]byte, error) {
		return encodeV3Rates(t, []*big.Int{big.NewInt(0)}), nil
	}

	entityStore := store.NewMemoryStore()
	cfg := testChainConfig()
	cfg.Connectors = []config.ConnectorToken{
		{Address: "0x0000000000000000000000000000000000000100", CreatedBlock: 500, Whitelisted: true},
	}
	cache := NewPriceCache(newTestResolver(cfg, caller), entityStore, nil)

	ctx := context.Background()
	got, err := cache.Token(ctx, 10, "0x0000000000000000000000000000000000000100", 18, 2000, 1_700_000_000)
	if err != nil {
		t.Fatalf("create token: %v", err)
	}
	if !got.IsWhitelisted {
		t.Fatalf("whitelisted connector token created without whitelist flag")
	}
	if got.ID != model.TokenEntityID(10, "0x0000000000000000000000000000000000000100") {
		t.Fatalf("token id = %s", got.ID)
	}

	stored, err := entityStore.Token(ctx, got.ID)
	if err != nil || stored == nil {
		t.Fatalf("token not persisted after first sighting: %v", err)
	}
}
