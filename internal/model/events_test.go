package model

import (
	"bytes"
	"encoding/json"
	"testing"
)

func TestEventRecordRoundTripKeepsDecodedRaw(t *testing.T) {
	payload, err := json.Marshal(SwapEventData{
		Sender:       "0x1111111111111111111111111111111111111111",
		Amount0:      "12345678901234567890",
		Amount1:      "-42",
		SqrtPriceX96: "79228162514264337593543950336",
		Liquidity:    "5000000000000000000",
		Tick:         10,
	})
	if err != nil {
		t.Fatalf("marshal payload: %v", err)
	}
	rec := EventRecord{
		ChainID:     10,
		BlockNumber: 5_000_000,
		TxHash:      "0xabc",
		LogIndex:    3,
		Address:     "0x2222222222222222222222222222222222222222",
		EventName:   "Swap",
		Timestamp:   1_700_000_000,
		Decoded:     payload,
	}

	line, err := json.Marshal(rec)
	if err != nil {
		t.Fatalf("marshal record: %v", err)
	}
	var back EventRecord
	if err := json.Unmarshal(line, &back); err != nil {
		t.Fatalf("unmarshal record: %v", err)
	}

	if back.ChainID != rec.ChainID || back.LogIndex != rec.LogIndex || back.EventName != rec.EventName {
		t.Fatalf("coordinates changed: %+v", back)
	}
	// Decoded must survive as raw bytes so the engine decides the payload type.
	if !bytes.Equal(back.Decoded, rec.Decoded) {
		t.Fatalf("Decoded = %s, want %s", back.Decoded, rec.Decoded)
	}
	var swap SwapEventData
	if err := json.Unmarshal(back.Decoded, &swap); err != nil {
		t.Fatalf("decode payload after round trip: %v", err)
	}
	if swap.Amount0 != "12345678901234567890" || swap.Amount1 != "-42" {
		t.Fatalf("amounts = %q / %q", swap.Amount0, swap.Amount1)
	}
}

func TestNumericPayloadFieldsStayStrings(t *testing.T) {
	cases := []struct {
		name    string
		payload any
		fields  []string
	}{
		{
			name: "swap",
			payload: SwapEventData{
				Amount0:      "12345678901234567890",
				Amount1:      "-42",
				SqrtPriceX96: "79228162514264337593543950336",
				Liquidity:    "5000000000000000000",
			},
			fields: []string{"amount0", "amount1", "sqrt_price_x96", "liquidity"},
		},
		{
			name: "increase liquidity",
			payload: IncreaseLiquidityEventData{
				TokenID:   777,
				Liquidity: "340282366920938463463374607431768211455",
				Amount0:   "1",
				Amount1:   "0",
			},
			fields: []string{"liquidity", "amount0", "amount1"},
		},
		{
			name: "alm deposit",
			payload: ALMDepositEventData{
				Amount0:  "100000000000000000000",
				Amount1:  "50000000",
				LPAmount: "1000",
			},
			fields: []string{"amount0", "amount1", "lp_amount"},
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			data, err := json.Marshal(tc.payload)
			if err != nil {
				t.Fatalf("marshal: %v", err)
			}
			var decoded map[string]any
			if err := json.Unmarshal(data, &decoded); err != nil {
				t.Fatalf("unmarshal: %v", err)
			}
			for _, field := range tc.fields {
				if _, ok := decoded[field].(string); !ok {
					t.Fatalf("%s = %T, want string", field, decoded[field])
				}
			}
		})
	}
}

func TestALMRebalanceOptionalSnapshotFields(t *testing.T) {
	// Older wrappers report only amounts; ticks and liquidity must vanish
	// from the payload rather than appear as zeroes.
	minimal, err := json.Marshal(ALMRebalanceEventData{
		Wrapper: "0x3333333333333333333333333333333333333333",
		Pool:    "0x4444444444444444444444444444444444444444",
		Amount0: "70000000000000000000",
		Amount1: "35000000",
	})
	if err != nil {
		t.Fatalf("marshal minimal: %v", err)
	}
	var fields map[string]any
	if err := json.Unmarshal(minimal, &fields); err != nil {
		t.Fatalf("unmarshal minimal: %v", err)
	}
	for _, absent := range []string{"tick_lower", "tick_upper", "liquidity", "sqrt_price_x96"} {
		if _, ok := fields[absent]; ok {
			t.Fatalf("%s present in minimal payload: %s", absent, minimal)
		}
	}

	lower, upper := int32(-200), int32(200)
	full := ALMRebalanceEventData{
		Wrapper:   "0x3333333333333333333333333333333333333333",
		Pool:      "0x4444444444444444444444444444444444444444",
		Amount0:   "70000000000000000000",
		Amount1:   "35000000",
		TickLower: &lower,
		TickUpper: &upper,
		Liquidity: "123456",
	}
	data, err := json.Marshal(full)
	if err != nil {
		t.Fatalf("marshal full: %v", err)
	}
	var back ALMRebalanceEventData
	if err := json.Unmarshal(data, &back); err != nil {
		t.Fatalf("unmarshal full: %v", err)
	}
	if back.TickLower == nil || *back.TickLower != -200 || back.TickUpper == nil || *back.TickUpper != 200 {
		t.Fatalf("ticks after round trip = %v / %v", back.TickLower, back.TickUpper)
	}
	if back.Liquidity != "123456" {
		t.Fatalf("Liquidity = %q, want 123456", back.Liquidity)
	}
	// A zero tick is a valid snapshot bound and must survive.
	zero := int32(0)
	data, err = json.Marshal(ALMRebalanceEventData{Amount0: "1", Amount1: "1", TickLower: &zero, TickUpper: &upper})
	if err != nil {
		t.Fatalf("marshal zero tick: %v", err)
	}
	if err := json.Unmarshal(data, &back); err != nil {
		t.Fatalf("unmarshal zero tick: %v", err)
	}
	if back.TickLower == nil || *back.TickLower != 0 {
		t.Fatalf("zero TickLower lost: %v", back.TickLower)
	}
}
