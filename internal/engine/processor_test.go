package engine

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"ammLedger/internal/model"
)

type memCursor struct {
	block    uint64
	logIndex uint64
	found    bool
	saves    int
}

func (c *memCursor) LoadCursor(context.Context, string) (uint64, uint64, bool, error) {
	return c.block, c.logIndex, c.found, nil
}

func (c *memCursor) SaveCursor(_ context.Context, _ string, block, logIndex uint64) error {
	c.block, c.logIndex, c.found = block, logIndex, true
	c.saves++
	return nil
}

func writeEvents(t *testing.T, lines []string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "events.jsonl")
	if err := os.WriteFile(path, []byte(strings.Join(lines, "\n")+"\n"), 0o644); err != nil {
		t.Fatalf("write events: %v", err)
	}
	return path
}

func eventLine(t *testing.T, name, address string, block, logIndex uint64, payload any) string {
	t.Helper()
	decoded, err := json.Marshal(payload)
	if err != nil {
		t.Fatalf("marshal payload: %v", err)
	}
	line, err := json.Marshal(model.EventRecord{
		ChainID:     testChain,
		BlockNumber: block,
		TxHash:      "0x00000000000000000000000000000000000000000000000000000000000000bb",
		LogIndex:    logIndex,
		Address:     address,
		EventName:   name,
		Timestamp:   testTimestamp,
		Decoded:     decoded,
	})
	if err != nil {
		t.Fatalf("marshal event: %v", err)
	}
	return string(line)
}

func TestProcessorRunAppliesStream(t *testing.T) {
	e, st := newTestEngine(t)
	seedToken(t, st, testToken0, 18, e18(1), true)
	seedToken(t, st, testToken1, 6, e18(2), true)

	lines := []string{
		eventLine(t, "PoolCreated", "0x0000000000000000000000000000000000000001", 100, 1, model.PoolCreatedEventData{
			Token0: testToken0,
			Token1: testToken1,
			Pool:   testPool,
		}),
		"", // blank lines are tolerated
		eventLine(t, "Swap", testPool, 101, 2, model.SwapEventData{
			Sender:  testSender,
			Amount0: "100000000000000000000",
			Amount1: "-50000000",
		}),
		"not json at all",
		eventLine(t, "SomethingUnhandled", testPool, 102, 3, struct{}{}),
		eventLine(t, "Swap", testPool, 103, 4, model.SwapEventData{
			Sender:  testSender,
			Amount0: "-100000000000000000000",
			Amount1: "50000000",
		}),
	}
	path := writeEvents(t, lines)

	cursor := &memCursor{}
	p := NewProcessor(e, cursor, "test", 2, 2, nil)
	if err := p.Run(context.Background(), path); err != nil {
		t.Fatalf("run: %v", err)
	}

	pool := mustPool(t, st)
	if pool.NumberOfSwaps != 2 {
		t.Fatalf("NumberOfSwaps = %d, want 2", pool.NumberOfSwaps)
	}
	if pool.TotalVolumeUSD.Cmp(e18(200)) != 0 {
		t.Fatalf("TotalVolumeUSD = %s, want 200e18", pool.TotalVolumeUSD)
	}
	if !cursor.found || cursor.block != 103 || cursor.logIndex != 4 {
		t.Fatalf("cursor = %+v, want (103, 4)", cursor)
	}
}

func TestProcessorSkipsAppliedEvents(t *testing.T) {
	e, st := newTestEngine(t)
	seedToken(t, st, testToken0, 18, e18(1), true)
	seedToken(t, st, testToken1, 6, e18(2), true)

	lines := []string{
		eventLine(t, "PoolCreated", "0x0000000000000000000000000000000000000001", 100, 1, model.PoolCreatedEventData{
			Token0: testToken0,
			Token1: testToken1,
			Pool:   testPool,
		}),
		eventLine(t, "Swap", testPool, 101, 2, model.SwapEventData{
			Sender:  testSender,
			Amount0: "100000000000000000000",
			Amount1: "-50000000",
		}),
		eventLine(t, "Swap", testPool, 101, 3, model.SwapEventData{
			Sender:  testSender,
			Amount0: "100000000000000000000",
			Amount1: "-50000000",
		}),
	}
	path := writeEvents(t, lines)

	// Everything through (101, 2) was applied by a previous run.
	cursor := &memCursor{block: 101, logIndex: 2, found: true}

	// Seed the state that earlier run produced.
	if err := e.Apply(context.Background(), model.EventRecord{
		ChainID:     testChain,
		BlockNumber: 100,
		LogIndex:    1,
		Address:     "0x0000000000000000000000000000000000000001",
		EventName:   "PoolCreated",
		Timestamp:   testTimestamp,
		Decoded:     mustMarshal(t, model.PoolCreatedEventData{Token0: testToken0, Token1: testToken1, Pool: testPool}),
	}); err != nil {
		t.Fatalf("seed pool: %v", err)
	}

	p := NewProcessor(e, cursor, "test", 8, 2, nil)
	if err := p.Run(context.Background(), path); err != nil {
		t.Fatalf("run: %v", err)
	}

	// Only the (101, 3) swap is new.
	if got := mustPool(t, st).NumberOfSwaps; got != 1 {
		t.Fatalf("NumberOfSwaps = %d, want 1", got)
	}
}

func TestProcessorEmptyBatchDoesNotMoveCursor(t *testing.T) {
	e, _ := newTestEngine(t)
	path := writeEvents(t, []string{"", ""})

	cursor := &memCursor{block: 7, logIndex: 7, found: true}
	p := NewProcessor(e, cursor, "test", 8, 2, nil)
	if err := p.Run(context.Background(), path); err != nil {
		t.Fatalf("run: %v", err)
	}
	if cursor.saves != 0 {
		t.Fatalf("saves = %d, want 0 for an empty stream", cursor.saves)
	}
	if cursor.block != 7 {
		t.Fatalf("cursor moved to %d", cursor.block)
	}
}

func mustMarshal(t *testing.T, v any) []byte {
	t.Helper()
	out, err := json.Marshal(v)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	return out
}
