package engine

import (
	"context"
	"encoding/json"
	"math/big"
	"strings"

	"go.uber.org/zap"

	"ammLedger/internal/fixedpoint"
	"ammLedger/internal/merge"
	"ammLedger/internal/model"
	"ammLedger/internal/tickmath"
)

func applyNFTTransfer(ctx context.Context, e *Engine, ev model.EventRecord) error {
	var data model.NFTTransferEventData
	if err := json.Unmarshal(ev.Decoded, &data); err != nil {
		e.skip(ev, "decode nft transfer: "+err.Error())
		return nil
	}

	id := model.PositionEntityID(ev.ChainID, data.TokenID)
	existing, err := e.store.Position(ctx, id)
	if err != nil {
		return err
	}
	if existing == nil {
		// A mint transfer precedes the IncreaseLiquidity that materializes
		// the row; hold the recipient until it does.
		if zeroAddress(data.From) {
			e.pendingOwners[id] = strings.ToLower(data.To)
			e.logger.Debug("mint transfer before position row", zap.String("position", id))
			return nil
		}
		e.skip(ev, "transfer for unknown position")
		return nil
	}

	owner := strings.ToLower(data.To)
	diff := merge.PositionDiff{Owner: &owner}
	return e.store.SetPosition(ctx, merge.Position(diff, *existing, ev.Timestamp))
}

func collectIncreaseLiquidity(ctx context.Context, e *Engine, ev model.EventRecord) error {
	var data model.IncreaseLiquidityEventData
	if err := json.Unmarshal(ev.Decoded, &data); err != nil || data.Pool == "" {
		return nil
	}
	pool, err := e.loadPool(ctx, ev.ChainID, data.Pool)
	if err != nil || pool == nil {
		return err
	}
	e.warmToken(ctx, ev, pool.Token0)
	e.warmToken(ctx, ev, pool.Token1)
	return nil
}

func applyIncreaseLiquidity(ctx context.Context, e *Engine, ev model.EventRecord) error {
	var data model.IncreaseLiquidityEventData
	if err := json.Unmarshal(ev.Decoded, &data); err != nil {
		e.skip(ev, "decode increase liquidity: "+err.Error())
		return nil
	}

	liquidity, errL := parseBig(data.Liquidity)
	amount0, err0 := parseBig(data.Amount0)
	amount1, err1 := parseBig(data.Amount1)
	if errL != nil || err0 != nil || err1 != nil {
		e.skip(ev, "increase liquidity amounts malformed")
		return nil
	}

	id := model.PositionEntityID(ev.ChainID, data.TokenID)
	existing, err := e.store.Position(ctx, id)
	if err != nil {
		return err
	}

	resolvedNow := false
	if existing == nil {
		// First sighting of this tokenId: claim the pool-mint placeholder
		// recorded earlier in the same transaction.
		if err := e.reconciler.Resolve(ctx, ev.ChainID, ev.TxHash, data.TokenID, amount0, amount1); err != nil {
			return err
		}
		existing, err = e.store.Position(ctx, id)
		if err != nil {
			return err
		}
		if existing != nil {
			resolvedNow = true
			if _, err := e.reconciler.CleanupOrphans(ctx, ev.ChainID, ev.TxHash); err != nil {
				return err
			}
		}
	}

	var next model.NonFungiblePosition
	switch {
	case existing == nil:
		if data.Pool == "" {
			e.skip(ev, "increase liquidity with no placeholder and no pool reference")
			return nil
		}
		next = model.NonFungiblePosition{
			ID:          id,
			ChainID:     ev.ChainID,
			TokenID:     data.TokenID,
			Pool:        model.PoolEntityID(ev.ChainID, data.Pool),
			TickLower:   data.TickLower,
			TickUpper:   data.TickUpper,
			Liquidity:   liquidity,
			Amount0:     amount0,
			Amount1:     amount1,
			AmountUSD:   new(big.Int),
			TxHash:      ev.TxHash,
			LogIndex:    ev.LogIndex,
			LastUpdated: ev.Timestamp,
		}
	case resolvedNow:
		// The placeholder already carries this event's amounts.
		next = *existing
	default:
		diff := merge.PositionDiff{
			Liquidity: new(big.Int).Add(existing.Liquidity, liquidity),
			Amount0:   new(big.Int).Add(existing.Amount0, amount0),
			Amount1:   new(big.Int).Add(existing.Amount1, amount1),
		}
		next = merge.Position(diff, *existing, ev.Timestamp)
	}

	// A mint transfer seen before this row existed names the real owner; the
	// placeholder carries the pool-level mint owner, usually the manager.
	if owner, ok := e.pendingOwners[id]; ok {
		next.Owner = owner
		delete(e.pendingOwners, id)
	}

	next = e.revaluePosition(ctx, ev, next)
	if err := e.store.SetPosition(ctx, next); err != nil {
		return err
	}

	return e.recordPositionFlow(ctx, ev, next, amount0, amount1, true)
}

func applyDecreaseLiquidity(ctx context.Context, e *Engine, ev model.EventRecord) error {
	var data model.DecreaseLiquidityEventData
	if err := json.Unmarshal(ev.Decoded, &data); err != nil {
		e.skip(ev, "decode decrease liquidity: "+err.Error())
		return nil
	}

	liquidity, errL := parseBig(data.Liquidity)
	amount0, err0 := parseBig(data.Amount0)
	amount1, err1 := parseBig(data.Amount1)
	if errL != nil || err0 != nil || err1 != nil {
		e.skip(ev, "decrease liquidity amounts malformed")
		return nil
	}

	id := model.PositionEntityID(ev.ChainID, data.TokenID)
	existing, err := e.store.Position(ctx, id)
	if err != nil {
		return err
	}
	if existing == nil {
		e.skip(ev, "decrease liquidity for unknown position")
		return nil
	}

	newLiquidity := new(big.Int).Sub(existing.Liquidity, liquidity)
	if newLiquidity.Sign() < 0 {
		newLiquidity.SetInt64(0)
	}
	newAmount0 := new(big.Int).Sub(existing.Amount0, amount0)
	if newAmount0.Sign() < 0 {
		newAmount0.SetInt64(0)
	}
	newAmount1 := new(big.Int).Sub(existing.Amount1, amount1)
	if newAmount1.Sign() < 0 {
		newAmount1.SetInt64(0)
	}
	diff := merge.PositionDiff{
		Liquidity: newLiquidity,
		Amount0:   newAmount0,
		Amount1:   newAmount1,
	}
	next := merge.Position(diff, *existing, ev.Timestamp)

	next = e.revaluePosition(ctx, ev, next)
	if err := e.store.SetPosition(ctx, next); err != nil {
		return err
	}

	return e.recordPositionFlow(ctx, ev, next, amount0, amount1, false)
}

// revaluePosition recomputes a position's amounts from its liquidity and the
// pool's current price instead of trusting accumulated per-event deltas, and
// refreshes the USD valuation. When no price is obtainable the last known
// amounts and valuation are kept and only the liquidity change stands.
func (e *Engine) revaluePosition(ctx context.Context, ev model.EventRecord, pos model.NonFungiblePosition) model.NonFungiblePosition {
	pool, err := e.store.Pool(ctx, pos.Pool)
	if err != nil || pool == nil {
		e.logger.Warn("position pool unavailable, keeping last valuation",
			zap.String("position", pos.ID),
			zap.String("pool", pos.Pool),
			zap.Error(err),
		)
		return pos
	}

	if pool.SqrtPriceX96 != nil && pool.SqrtPriceX96.Sign() > 0 {
		amount0, amount1 := tickmath.PositionAmounts(pos.Liquidity, pool.SqrtPriceX96, pos.TickLower, pos.TickUpper)
		pos.Amount0 = amount0
		pos.Amount1 = amount1
	}

	token0, err := e.pricedToken(ctx, ev, pool.Token0)
	if err != nil {
		return pos
	}
	token1, err := e.pricedToken(ctx, ev, pool.Token1)
	if err != nil {
		return pos
	}
	if token0.PricePerUSD.Sign() == 0 && token1.PricePerUSD.Sign() == 0 {
		e.logger.Warn("no token prices for position, keeping last valuation",
			zap.String("position", pos.ID),
			zap.String("pool", pos.Pool),
		)
		return pos
	}

	pos.AmountUSD = new(big.Int).Add(
		fixedpoint.UsdValue(pos.Amount0, token0.Decimals, token0.PricePerUSD),
		fixedpoint.UsdValue(pos.Amount1, token1.Decimals, token1.PricePerUSD),
	)
	return pos
}

// recordPositionFlow credits the position owner's per-pool liquidity flow
// with the USD value of this event's amounts.
func (e *Engine) recordPositionFlow(ctx context.Context, ev model.EventRecord, pos model.NonFungiblePosition, amount0, amount1 *big.Int, added bool) error {
	if pos.Owner == "" || zeroAddress(pos.Owner) {
		return nil
	}
	pool, err := e.store.Pool(ctx, pos.Pool)
	if err != nil || pool == nil {
		return err
	}

	token0, err := e.pricedToken(ctx, ev, pool.Token0)
	if err != nil {
		return err
	}
	token1, err := e.pricedToken(ctx, ev, pool.Token1)
	if err != nil {
		return err
	}
	flowUSD := new(big.Int).Add(
		fixedpoint.UsdValue(amount0, token0.Decimals, token0.PricePerUSD),
		fixedpoint.UsdValue(amount1, token1.Decimals, token1.PricePerUSD),
	)
	if flowUSD.Sign() == 0 {
		return nil
	}

	stats, err := e.loadUserStats(ctx, ev.ChainID, pos.Owner, pool.Address)
	if err != nil {
		return err
	}
	userDiff := merge.UserStatsDiff{}
	if added {
		userDiff.LiquidityAddedUSD = flowUSD
	} else {
		userDiff.LiquidityRemovedUSD = flowUSD
	}
	return e.store.SetUserStats(ctx, merge.UserStats(userDiff, stats, ev.Timestamp))
}
