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

func collectALM(ctx context.Context, e *Engine, ev model.EventRecord) error {
	var data struct {
		Pool string `json:"pool"`
	}
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

func applyALMDeposit(ctx context.Context, e *Engine, ev model.EventRecord) error {
	var data model.ALMDepositEventData
	if err := json.Unmarshal(ev.Decoded, &data); err != nil {
		e.skip(ev, "decode alm deposit: "+err.Error())
		return nil
	}
	return e.applyALMFlow(ctx, ev, data.Wrapper, data.Pool, data.User, data.Amount0, data.Amount1, data.LPAmount, false)
}

func applyALMWithdraw(ctx context.Context, e *Engine, ev model.EventRecord) error {
	var data model.ALMWithdrawEventData
	if err := json.Unmarshal(ev.Decoded, &data); err != nil {
		e.skip(ev, "decode alm withdraw: "+err.Error())
		return nil
	}
	return e.applyALMFlow(ctx, ev, data.Wrapper, data.Pool, data.User, data.Amount0, data.Amount1, data.LPAmount, true)
}

// applyALMFlow handles a deposit or withdrawal against an ALM wrapper. The
// wrapper row is created lazily on first deposit; the AMM snapshot stays
// marked derived until a rebalance reports it directly.
func (e *Engine) applyALMFlow(ctx context.Context, ev model.EventRecord, wrapperAddr, poolAddr, user, rawAmount0, rawAmount1, rawLP string, withdraw bool) error {
	amount0, err0 := parseBig(rawAmount0)
	amount1, err1 := parseBig(rawAmount1)
	lpAmount, errLP := parseBig(rawLP)
	if err0 != nil || err1 != nil || errLP != nil {
		e.skip(ev, "alm amounts malformed")
		return nil
	}

	pool, err := e.loadPool(ctx, ev.ChainID, poolAddr)
	if err != nil {
		return err
	}
	if pool == nil {
		e.skip(ev, "alm flow for unknown pool")
		return nil
	}

	wrapper, err := e.loadALMWrapper(ctx, ev.ChainID, wrapperAddr, pool.ID)
	if err != nil {
		return err
	}

	delta0, delta1, deltaLP := amount0, amount1, lpAmount
	if withdraw {
		delta0 = new(big.Int).Neg(amount0)
		delta1 = new(big.Int).Neg(amount1)
		deltaLP = new(big.Int).Neg(lpAmount)
	}
	derived := true
	diff := merge.ALMWrapperDiff{
		Amount0:           delta0,
		Amount1:           delta1,
		LPAmount:          deltaLP,
		AMMStateIsDerived: &derived,
	}
	next := merge.ALMWrapper(diff, wrapper, ev.Timestamp)
	if err := e.store.SetALMWrapper(ctx, next); err != nil {
		return err
	}

	return e.recordALMUserFlow(ctx, ev, *pool, user, delta0, delta1)
}

// recordALMUserFlow moves the user's per-wrapper amount totals and recomputes
// their ALM holdings valuation at current token prices.
func (e *Engine) recordALMUserFlow(ctx context.Context, ev model.EventRecord, pool model.LiquidityPoolAggregator, user string, delta0, delta1 *big.Int) error {
	if user == "" || zeroAddress(user) {
		return nil
	}
	stats, err := e.loadUserStats(ctx, ev.ChainID, user, pool.Address)
	if err != nil {
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

	held0 := add(stats.ALMAmount0, delta0)
	held1 := add(stats.ALMAmount1, delta1)
	if held0.Sign() < 0 {
		held0.SetInt64(0)
	}
	if held1.Sign() < 0 {
		held1.SetInt64(0)
	}
	heldUSD := new(big.Int).Add(
		fixedpoint.UsdValue(held0, token0.Decimals, token0.PricePerUSD),
		fixedpoint.UsdValue(held1, token1.Decimals, token1.PricePerUSD),
	)

	userDiff := merge.UserStatsDiff{
		ALMAmount0:      delta0,
		ALMAmount1:      delta1,
		ALMLiquidityUSD: heldUSD,
	}
	return e.store.SetUserStats(ctx, merge.UserStats(userDiff, stats, ev.Timestamp))
}

func applyALMRebalance(ctx context.Context, e *Engine, ev model.EventRecord) error {
	var data model.ALMRebalanceEventData
	if err := json.Unmarshal(ev.Decoded, &data); err != nil {
		e.skip(ev, "decode alm rebalance: "+err.Error())
		return nil
	}

	id := model.ALMWrapperEntityID(ev.ChainID, data.Wrapper)
	wrapper, err := e.store.ALMWrapper(ctx, id)
	if err != nil {
		return err
	}
	if wrapper == nil {
		e.skip(ev, "rebalance for unknown alm wrapper")
		return nil
	}

	newTotal0, err0 := parseBig(data.Amount0)
	newTotal1, err1 := parseBig(data.Amount1)
	if err0 != nil || err1 != nil {
		e.skip(ev, "alm rebalance amounts malformed")
		return nil
	}

	diff := merge.ALMWrapperDiff{
		Amount0: new(big.Int).Sub(newTotal0, wrapper.Amount0),
		Amount1: new(big.Int).Sub(newTotal1, wrapper.Amount1),
	}

	tickLower, tickUpper := wrapper.TickLower, wrapper.TickUpper
	if data.TickLower != nil && data.TickUpper != nil {
		diff.TickLower = data.TickLower
		diff.TickUpper = data.TickUpper
		tickLower, tickUpper = *data.TickLower, *data.TickUpper
	}

	derived := true
	switch {
	case data.Liquidity != "":
		liquidity, err := parseBig(data.Liquidity)
		if err != nil {
			e.skip(ev, "alm rebalance liquidity malformed")
			return nil
		}
		diff.Liquidity = liquidity
		derived = false
	case data.SqrtPriceX96 != "":
		sqrtPrice, err := parseBig(data.SqrtPriceX96)
		if err != nil {
			e.skip(ev, "alm rebalance sqrt price malformed")
			return nil
		}
		diff.Liquidity = tickmath.LiquidityForAmounts(sqrtPrice, tickLower, tickUpper, newTotal0, newTotal1)
	default:
		e.logger.Debug("rebalance without chain state, snapshot stays derived",
			zap.String("wrapper", strings.ToLower(data.Wrapper)),
		)
	}
	diff.AMMStateIsDerived = &derived

	return e.store.SetALMWrapper(ctx, merge.ALMWrapper(diff, *wrapper, ev.Timestamp))
}

// loadALMWrapper returns the wrapper row, creating the zero row lazily.
func (e *Engine) loadALMWrapper(ctx context.Context, chainID uint64, address, poolID string) (model.ALMWrapper, error) {
	id := model.ALMWrapperEntityID(chainID, address)
	existing, err := e.store.ALMWrapper(ctx, id)
	if err != nil {
		return model.ALMWrapper{}, err
	}
	if existing != nil {
		return *existing, nil
	}
	return model.ALMWrapper{
		ID:                id,
		ChainID:           chainID,
		Address:           strings.ToLower(address),
		Pool:              poolID,
		AMMStateIsDerived: true,
	}, nil
}

// add mirrors the merge increment policy for local arithmetic on possibly-nil
// stored values.
func add(current, delta *big.Int) *big.Int {
	out := new(big.Int)
	if current != nil {
		out.Set(current)
	}
	if delta != nil {
		out.Add(out, delta)
	}
	return out
}
