package position

import (
	"context"
	"math/big"
	"testing"

	"ammLedger/internal/model"
	"ammLedger/internal/store"
)

const testTx = "0xaaaa000000000000000000000000000000000000000000000000000000000001"

func placeholder(logIndex uint64, amount0, amount1 int64) model.NonFungiblePosition {
	return model.NonFungiblePosition{
		ChainID:   10,
		Pool:      "10-0x00000000000000000000000000000000000000bb",
		Owner:     "0x00000000000000000000000000000000000000cc",
		TickLower: -100,
		TickUpper: 100,
		Liquidity: big.NewInt(1000),
		Amount0:   big.NewInt(amount0),
		Amount1:   big.NewInt(amount1),
		TxHash:    testTx,
		LogIndex:  logIndex,
	}
}

func TestResolveRewritesPlaceholder(t *testing.T) {
	ctx := context.Background()
	entityStore := store.NewMemoryStore()
	r := NewReconciler(entityStore, nil)

	if err := r.CreatePlaceholder(ctx, placeholder(5, 100, 200)); err != nil {
		t.Fatalf("create placeholder: %v", err)
	}

	if err := r.Resolve(ctx, 10, testTx, 777, big.NewInt(100), big.NewInt(200)); err != nil {
		t.Fatalf("resolve: %v", err)
	}

	resolved, err := entityStore.Position(ctx, model.PositionEntityID(10, 777))
	if err != nil || resolved == nil {
		t.Fatalf("resolved row missing: %v", err)
	}
	if resolved.TokenID != 777 {
		t.Fatalf("token id = %d, want 777", resolved.TokenID)
	}
	if resolved.TickLower != -100 || resolved.Liquidity.Cmp(big.NewInt(1000)) != 0 {
		t.Fatalf("resolved row lost placeholder state: %+v", resolved)
	}

	// The placeholder row must be gone, not tombstoned.
	old, err := entityStore.Position(ctx, model.PositionPlaceholderID(10, testTx, 5))
	if err != nil {
		t.Fatalf("lookup placeholder: %v", err)
	}
	if old != nil {
		t.Fatalf("placeholder row survived resolution")
	}
}

func TestResolvePicksFirstMatchByLogIndex(t *testing.T) {
	ctx := context.Background()
	entityStore := store.NewMemoryStore()
	r := NewReconciler(entityStore, nil)

	// Two identical mints in one transaction.
	if err := r.CreatePlaceholder(ctx, placeholder(9, 100, 200)); err != nil {
		t.Fatalf("create placeholder: %v", err)
	}
	if err := r.CreatePlaceholder(ctx, placeholder(3, 100, 200)); err != nil {
		t.Fatalf("create placeholder: %v", err)
	}

	if err := r.Resolve(ctx, 10, testTx, 111, big.NewInt(100), big.NewInt(200)); err != nil {
		t.Fatalf("resolve first: %v", err)
	}
	resolved, _ := entityStore.Position(ctx, model.PositionEntityID(10, 111))
	if resolved == nil || resolved.LogIndex != 3 {
		t.Fatalf("first resolve took log index %v, want lowest (3)", resolved)
	}

	if err := r.Resolve(ctx, 10, testTx, 112, big.NewInt(100), big.NewInt(200)); err != nil {
		t.Fatalf("resolve second: %v", err)
	}
	resolved, _ = entityStore.Position(ctx, model.PositionEntityID(10, 112))
	if resolved == nil || resolved.LogIndex != 9 {
		t.Fatalf("second resolve took log index %v, want remaining (9)", resolved)
	}
}

func TestResolveSkipsAmountMismatch(t *testing.T) {
	ctx := context.Background()
	entityStore := store.NewMemoryStore()
	r := NewReconciler(entityStore, nil)

	if err := r.CreatePlaceholder(ctx, placeholder(1, 100, 200)); err != nil {
		t.Fatalf("create placeholder: %v", err)
	}

	if err := r.Resolve(ctx, 10, testTx, 55, big.NewInt(999), big.NewInt(200)); err != nil {
		t.Fatalf("resolve: %v", err)
	}

	if row, _ := entityStore.Position(ctx, model.PositionEntityID(10, 55)); row != nil {
		t.Fatalf("mismatched amounts must not resolve")
	}
	if row, _ := entityStore.Position(ctx, model.PositionPlaceholderID(10, testTx, 1)); row == nil {
		t.Fatalf("placeholder must survive a mismatch")
	}
}

func TestResolveIgnoresResolvedRows(t *testing.T) {
	ctx := context.Background()
	entityStore := store.NewMemoryStore()
	r := NewReconciler(entityStore, nil)

	already := placeholder(2, 100, 200)
	already.ID = model.PositionEntityID(10, 500)
	already.TokenID = 500
	if err := entityStore.SetPosition(ctx, already); err != nil {
		t.Fatalf("seed resolved row: %v", err)
	}

	if err := r.Resolve(ctx, 10, testTx, 501, big.NewInt(100), big.NewInt(200)); err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if row, _ := entityStore.Position(ctx, model.PositionEntityID(10, 500)); row == nil {
		t.Fatalf("resolved row must never be re-keyed")
	}
	if row, _ := entityStore.Position(ctx, model.PositionEntityID(10, 501)); row != nil {
		t.Fatalf("reveal must not steal an already resolved row")
	}
}

func TestCleanupOrphans(t *testing.T) {
	ctx := context.Background()
	entityStore := store.NewMemoryStore()
	r := NewReconciler(entityStore, nil)

	if err := r.CreatePlaceholder(ctx, placeholder(1, 100, 200)); err != nil {
		t.Fatalf("create placeholder: %v", err)
	}
	if err := r.CreatePlaceholder(ctx, placeholder(2, 300, 400)); err != nil {
		t.Fatalf("create placeholder: %v", err)
	}
	if err := r.Resolve(ctx, 10, testTx, 42, big.NewInt(100), big.NewInt(200)); err != nil {
		t.Fatalf("resolve: %v", err)
	}

	removed, err := r.CleanupOrphans(ctx, 10, testTx)
	if err != nil {
		t.Fatalf("cleanup: %v", err)
	}
	if removed != 1 {
		t.Fatalf("removed = %d, want 1", removed)
	}

	remaining, err := entityStore.PositionsByTx(ctx, 10, testTx)
	if err != nil {
		t.Fatalf("positions by tx: %v", err)
	}
	if len(remaining) != 1 || !remaining[0].Resolved() {
		t.Fatalf("remaining rows = %+v, want only the resolved one", remaining)
	}
}
