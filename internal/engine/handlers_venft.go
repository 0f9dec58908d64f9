package engine

import (
	"context"
	"encoding/json"
	"math/big"
	"strings"

	"ammLedger/internal/merge"
	"ammLedger/internal/model"
)

func applyVeNFTDeposit(ctx context.Context, e *Engine, ev model.EventRecord) error {
	var data model.VeNFTDepositEventData
	if err := json.Unmarshal(ev.Decoded, &data); err != nil {
		e.skip(ev, "decode venft deposit: "+err.Error())
		return nil
	}
	value, err := parseBig(data.Value)
	if err != nil {
		e.skip(ev, "venft deposit value malformed")
		return nil
	}

	id := model.VeNFTEntityID(ev.ChainID, data.TokenID)
	existing, err := e.store.VeNFT(ctx, id)
	if err != nil {
		return err
	}

	current := model.VeNFTAggregator{
		ID:      id,
		ChainID: ev.ChainID,
		TokenID: data.TokenID,
		Owner:   strings.ToLower(data.Provider),
		IsAlive: true,
	}
	if existing != nil {
		current = *existing
	}

	alive := true
	diff := merge.VeNFTDiff{
		TotalValueLocked: value,
		IsAlive:          &alive,
	}
	if data.LockTime != 0 {
		diff.LockTime = &data.LockTime
	}
	return e.store.SetVeNFT(ctx, merge.VeNFT(diff, current, ev.Timestamp))
}

func applyVeNFTWithdraw(ctx context.Context, e *Engine, ev model.EventRecord) error {
	var data model.VeNFTWithdrawEventData
	if err := json.Unmarshal(ev.Decoded, &data); err != nil {
		e.skip(ev, "decode venft withdraw: "+err.Error())
		return nil
	}
	value, err := parseBig(data.Value)
	if err != nil {
		e.skip(ev, "venft withdraw value malformed")
		return nil
	}

	existing, err := e.store.VeNFT(ctx, model.VeNFTEntityID(ev.ChainID, data.TokenID))
	if err != nil {
		return err
	}
	if existing == nil {
		e.skip(ev, "withdraw for unknown venft lock")
		return nil
	}

	diff := merge.VeNFTDiff{TotalValueLocked: new(big.Int).Neg(value)}
	return e.store.SetVeNFT(ctx, merge.VeNFT(diff, *existing, ev.Timestamp))
}

func applyVeNFTTransfer(ctx context.Context, e *Engine, ev model.EventRecord) error {
	var data model.VeNFTTransferEventData
	if err := json.Unmarshal(ev.Decoded, &data); err != nil {
		e.skip(ev, "decode venft transfer: "+err.Error())
		return nil
	}

	id := model.VeNFTEntityID(ev.ChainID, data.TokenID)
	existing, err := e.store.VeNFT(ctx, id)
	if err != nil {
		return err
	}
	if existing == nil {
		// A mint transfer precedes the deposit that records the lock's value.
		if zeroAddress(data.From) {
			lock := model.VeNFTAggregator{
				ID:               id,
				ChainID:          ev.ChainID,
				TokenID:          data.TokenID,
				Owner:            strings.ToLower(data.To),
				TotalValueLocked: new(big.Int),
				IsAlive:          true,
				LastUpdated:      ev.Timestamp,
			}
			return e.store.SetVeNFT(ctx, lock)
		}
		e.skip(ev, "transfer for unknown venft lock")
		return nil
	}

	owner := strings.ToLower(data.To)
	diff := merge.VeNFTDiff{Owner: &owner}
	if zeroAddress(data.To) {
		dead := false
		diff.IsAlive = &dead
	}
	return e.store.SetVeNFT(ctx, merge.VeNFT(diff, *existing, ev.Timestamp))
}
