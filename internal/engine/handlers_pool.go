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
)

// newPoolAggregator builds the zero-valued aggregator written at creation.
func newPoolAggregator(ev model.EventRecord, data model.PoolCreatedEventData) model.LiquidityPoolAggregator {
	name := "vAMM"
	if data.Stable {
		name = "sAMM"
	}
	if data.IsCL {
		name = model.CLPoolName(data.TickSpacing)
	}
	return model.LiquidityPoolAggregator{
		ID:          model.PoolEntityID(ev.ChainID, data.Pool),
		ChainID:     ev.ChainID,
		Address:     strings.ToLower(data.Pool),
		Name:        name,
		Token0:      strings.ToLower(data.Token0),
		Token1:      strings.ToLower(data.Token1),
		IsCL:        data.IsCL,
		TickSpacing: data.TickSpacing,

		Reserve0:     new(big.Int),
		Reserve1:     new(big.Int),
		ReservesUSD:  new(big.Int),
		Token0Price:  new(big.Int),
		Token1Price:  new(big.Int),
		SqrtPriceX96: new(big.Int),

		TotalVolume0:              new(big.Int),
		TotalVolume1:              new(big.Int),
		TotalVolumeUSD:            new(big.Int),
		TotalVolumeUSDWhitelisted: new(big.Int),
		TotalFees0:                new(big.Int),
		TotalFees1:                new(big.Int),
		TotalFeesUSD:              new(big.Int),

		CurrentLiquidity:    new(big.Int),
		CurrentLiquidityUSD: new(big.Int),

		TotalStaked:         new(big.Int),
		TotalStakedUSD:      new(big.Int),
		TotalVotesDeposited: new(big.Int),
		TotalBribesUSD:      new(big.Int),
		TotalEmissions:      new(big.Int),
		TotalEmissionsUSD:   new(big.Int),

		LastUpdated: ev.Timestamp,
	}
}

func applyPoolCreated(ctx context.Context, e *Engine, ev model.EventRecord) error {
	var data model.PoolCreatedEventData
	if err := json.Unmarshal(ev.Decoded, &data); err != nil {
		e.skip(ev, "decode pool created: "+err.Error())
		return nil
	}

	id := model.PoolEntityID(ev.ChainID, data.Pool)
	existing, err := e.store.Pool(ctx, id)
	if err != nil {
		return err
	}
	if existing != nil {
		e.logger.Debug("pool already known", zap.String("pool", id))
		return nil
	}

	pool := newPoolAggregator(ev, data)
	e.logger.Info("pool created",
		zap.String("pool", pool.ID),
		zap.String("name", pool.Name),
		zap.Bool("is_cl", pool.IsCL),
	)
	if err := e.store.SetPool(ctx, pool); err != nil {
		return err
	}
	if err := e.ensureToken(ctx, ev, data.Token0); err != nil {
		return err
	}
	return e.ensureToken(ctx, ev, data.Token1)
}

// ensureToken creates the token row on pool creation so whitelist status is
// queryable before the first price refresh. LastUpdated stays zero, so the
// first priced access still refreshes.
func (e *Engine) ensureToken(ctx context.Context, ev model.EventRecord, address string) error {
	id := model.TokenEntityID(ev.ChainID, address)
	existing, err := e.store.Token(ctx, id)
	if err != nil || existing != nil {
		return err
	}
	token := model.Token{
		ID:            id,
		Address:       strings.ToLower(address),
		ChainID:       ev.ChainID,
		Decimals:      e.tokenDecimals(ctx, ev.ChainID, address),
		PricePerUSD:   new(big.Int),
		IsWhitelisted: e.prices.Whitelisted(ev.ChainID, address),
	}
	return e.store.SetToken(ctx, token)
}

// collectSync warms the price memo for both pool tokens. Shared by every
// handler whose apply phase values pool amounts.
func collectSync(ctx context.Context, e *Engine, ev model.EventRecord) error {
	pool, err := e.loadPool(ctx, ev.ChainID, ev.Address)
	if err != nil || pool == nil {
		return err
	}
	e.warmToken(ctx, ev, pool.Token0)
	e.warmToken(ctx, ev, pool.Token1)
	return nil
}

func collectSwap(ctx context.Context, e *Engine, ev model.EventRecord) error {
	return collectSync(ctx, e, ev)
}

func applySwap(ctx context.Context, e *Engine, ev model.EventRecord) error {
	var data model.SwapEventData
	if err := json.Unmarshal(ev.Decoded, &data); err != nil {
		e.skip(ev, "decode swap: "+err.Error())
		return nil
	}

	pool, err := e.loadPool(ctx, ev.ChainID, ev.Address)
	if err != nil {
		return err
	}
	if pool == nil {
		e.skip(ev, "swap for unknown pool")
		return nil
	}

	amount0, err0 := parseBig(data.Amount0)
	amount1, err1 := parseBig(data.Amount1)
	if err0 != nil || err1 != nil {
		e.skip(ev, "swap amounts malformed")
		return nil
	}

	token0, err := e.pricedToken(ctx, ev, pool.Token0)
	if err != nil {
		return err
	}
	token1, err := e.pricedToken(ctx, ev, pool.Token1)
	if err != nil {
		return err
	}

	volume0 := fixedpoint.Abs(amount0)
	volume1 := fixedpoint.Abs(amount1)
	usd0 := fixedpoint.UsdValue(volume0, token0.Decimals, token0.PricePerUSD)
	usd1 := fixedpoint.UsdValue(volume1, token1.Decimals, token1.PricePerUSD)

	// One side's USD value is the trade's volume; prefer token0, fall back
	// to token1 when token0's price is unknown.
	volumeUSD := usd0
	if token0.PricePerUSD.Sign() == 0 {
		volumeUSD = usd1
	}
	whitelistedUSD := new(big.Int)
	if token0.IsWhitelisted && token1.IsWhitelisted {
		whitelistedUSD = volumeUSD
	}

	one := uint64(1)
	diff := merge.LiquidityPoolDiff{
		TotalVolume0:              volume0,
		TotalVolume1:              volume1,
		TotalVolumeUSD:            volumeUSD,
		TotalVolumeUSDWhitelisted: whitelistedUSD,
		NumberOfSwaps:             &one,
		Token0Price:               token0.PricePerUSD,
		Token1Price:               token1.PricePerUSD,
	}
	if pool.IsCL {
		sqrtPrice, errSqrt := parseBig(data.SqrtPriceX96)
		liquidity, errLiq := parseBig(data.Liquidity)
		if errSqrt == nil && sqrtPrice.Sign() > 0 {
			diff.SqrtPriceX96 = sqrtPrice
			diff.Tick = &data.Tick
		}
		if errLiq == nil && liquidity.Sign() > 0 {
			// Swap reports absolute in-range liquidity; express it as a
			// delta against the committed value.
			diff.CurrentLiquidity = new(big.Int).Sub(liquidity, pool.CurrentLiquidity)
		}
	}

	next := merge.LiquidityPool(diff, *pool, ev.Timestamp)
	if err := e.store.SetPool(ctx, next); err != nil {
		return err
	}

	stats, err := e.loadUserStats(ctx, ev.ChainID, data.Sender, pool.Address)
	if err != nil {
		return err
	}
	userDiff := merge.UserStatsDiff{
		NumberOfSwaps:  &one,
		TotalVolumeUSD: volumeUSD,
	}
	return e.store.SetUserStats(ctx, merge.UserStats(userDiff, stats, ev.Timestamp))
}

func applySync(ctx context.Context, e *Engine, ev model.EventRecord) error {
	var data model.SyncEventData
	if err := json.Unmarshal(ev.Decoded, &data); err != nil {
		e.skip(ev, "decode sync: "+err.Error())
		return nil
	}

	pool, err := e.loadPool(ctx, ev.ChainID, ev.Address)
	if err != nil {
		return err
	}
	if pool == nil {
		e.skip(ev, "sync for unknown pool")
		return nil
	}

	reserve0, err0 := parseBig(data.Reserve0)
	reserve1, err1 := parseBig(data.Reserve1)
	if err0 != nil || err1 != nil {
		e.skip(ev, "sync reserves malformed")
		return nil
	}

	token0, err := e.pricedToken(ctx, ev, pool.Token0)
	if err != nil {
		return err
	}
	token1, err := e.pricedToken(ctx, ev, pool.Token1)
	if err != nil {
		return err
	}

	reservesUSD := new(big.Int).Add(
		fixedpoint.UsdValue(reserve0, token0.Decimals, token0.PricePerUSD),
		fixedpoint.UsdValue(reserve1, token1.Decimals, token1.PricePerUSD),
	)
	diff := merge.LiquidityPoolDiff{
		Reserve0:    reserve0,
		Reserve1:    reserve1,
		ReservesUSD: reservesUSD,
		Token0Price: token0.PricePerUSD,
		Token1Price: token1.PricePerUSD,
	}
	return e.store.SetPool(ctx, merge.LiquidityPool(diff, *pool, ev.Timestamp))
}

func applyFees(ctx context.Context, e *Engine, ev model.EventRecord) error {
	var data model.FeesEventData
	if err := json.Unmarshal(ev.Decoded, &data); err != nil {
		e.skip(ev, "decode fees: "+err.Error())
		return nil
	}

	pool, err := e.loadPool(ctx, ev.ChainID, ev.Address)
	if err != nil {
		return err
	}
	if pool == nil {
		e.skip(ev, "fees for unknown pool")
		return nil
	}

	amount0, err0 := parseBig(data.Amount0)
	amount1, err1 := parseBig(data.Amount1)
	if err0 != nil || err1 != nil {
		e.skip(ev, "fee amounts malformed")
		return nil
	}

	token0, err := e.pricedToken(ctx, ev, pool.Token0)
	if err != nil {
		return err
	}
	token1, err := e.pricedToken(ctx, ev, pool.Token1)
	if err != nil {
		return err
	}

	feesUSD := new(big.Int).Add(
		fixedpoint.UsdValue(amount0, token0.Decimals, token0.PricePerUSD),
		fixedpoint.UsdValue(amount1, token1.Decimals, token1.PricePerUSD),
	)
	diff := merge.LiquidityPoolDiff{
		TotalFees0:   amount0,
		TotalFees1:   amount1,
		TotalFeesUSD: feesUSD,
	}
	if err := e.store.SetPool(ctx, merge.LiquidityPool(diff, *pool, ev.Timestamp)); err != nil {
		return err
	}

	if data.Sender == "" || zeroAddress(data.Sender) {
		return nil
	}
	stats, err := e.loadUserStats(ctx, ev.ChainID, data.Sender, pool.Address)
	if err != nil {
		return err
	}
	userDiff := merge.UserStatsDiff{TotalFeesPaidUSD: feesUSD}
	return e.store.SetUserStats(ctx, merge.UserStats(userDiff, stats, ev.Timestamp))
}

func applyMint(ctx context.Context, e *Engine, ev model.EventRecord) error {
	var data model.MintEventData
	if err := json.Unmarshal(ev.Decoded, &data); err != nil {
		e.skip(ev, "decode mint: "+err.Error())
		return nil
	}
	return e.applyLiquidityChange(ctx, ev, liquidityChange{
		owner:     data.Owner,
		tickLower: data.TickLower,
		tickUpper: data.TickUpper,
		liquidity: data.Amount,
		amount0:   data.Amount0,
		amount1:   data.Amount1,
		added:     true,
	})
}

func applyBurn(ctx context.Context, e *Engine, ev model.EventRecord) error {
	var data model.BurnEventData
	if err := json.Unmarshal(ev.Decoded, &data); err != nil {
		e.skip(ev, "decode burn: "+err.Error())
		return nil
	}
	return e.applyLiquidityChange(ctx, ev, liquidityChange{
		owner:     data.Owner,
		tickLower: data.TickLower,
		tickUpper: data.TickUpper,
		liquidity: data.Amount,
		amount0:   data.Amount0,
		amount1:   data.Amount1,
		added:     false,
	})
}

type liquidityChange struct {
	owner     string
	tickLower int32
	tickUpper int32
	liquidity string
	amount0   string
	amount1   string
	added     bool
}

// applyLiquidityChange handles pool-level Mint and Burn. For concentrated
// pools a mint also records a position placeholder so the position manager's
// later IncreaseLiquidity can claim it.
func (e *Engine) applyLiquidityChange(ctx context.Context, ev model.EventRecord, change liquidityChange) error {
	pool, err := e.loadPool(ctx, ev.ChainID, ev.Address)
	if err != nil {
		return err
	}
	if pool == nil {
		e.skip(ev, "liquidity change for unknown pool")
		return nil
	}

	liquidity, errL := parseBig(change.liquidity)
	amount0, err0 := parseBig(change.amount0)
	amount1, err1 := parseBig(change.amount1)
	if errL != nil || err0 != nil || err1 != nil {
		e.skip(ev, "liquidity change amounts malformed")
		return nil
	}

	token0, err := e.pricedToken(ctx, ev, pool.Token0)
	if err != nil {
		return err
	}
	token1, err := e.pricedToken(ctx, ev, pool.Token1)
	if err != nil {
		return err
	}
	changeUSD := new(big.Int).Add(
		fixedpoint.UsdValue(amount0, token0.Decimals, token0.PricePerUSD),
		fixedpoint.UsdValue(amount1, token1.Decimals, token1.PricePerUSD),
	)

	liquidityDelta := new(big.Int).Set(liquidity)
	liquidityUSD := new(big.Int).Add(pool.CurrentLiquidityUSD, changeUSD)
	if !change.added {
		liquidityDelta.Neg(liquidityDelta)
		liquidityUSD = new(big.Int).Sub(pool.CurrentLiquidityUSD, changeUSD)
		if liquidityUSD.Sign() < 0 {
			liquidityUSD.SetInt64(0)
		}
	}
	diff := merge.LiquidityPoolDiff{
		CurrentLiquidity:    liquidityDelta,
		CurrentLiquidityUSD: liquidityUSD,
	}
	if err := e.store.SetPool(ctx, merge.LiquidityPool(diff, *pool, ev.Timestamp)); err != nil {
		return err
	}

	// For concentrated pools the Mint/Burn owner is usually the position
	// manager; the manager's own events credit the end user instead.
	if !pool.IsCL && change.owner != "" && !zeroAddress(change.owner) {
		stats, err := e.loadUserStats(ctx, ev.ChainID, change.owner, pool.Address)
		if err != nil {
			return err
		}
		userDiff := merge.UserStatsDiff{}
		if change.added {
			userDiff.LiquidityAddedUSD = changeUSD
		} else {
			userDiff.LiquidityRemovedUSD = changeUSD
		}
		if err := e.store.SetUserStats(ctx, merge.UserStats(userDiff, stats, ev.Timestamp)); err != nil {
			return err
		}
	}

	if pool.IsCL && change.added && liquidity.Sign() > 0 {
		placeholder := model.NonFungiblePosition{
			ChainID:     ev.ChainID,
			Pool:        pool.ID,
			Owner:       strings.ToLower(change.owner),
			TickLower:   change.tickLower,
			TickUpper:   change.tickUpper,
			Liquidity:   liquidity,
			Amount0:     amount0,
			Amount1:     amount1,
			AmountUSD:   changeUSD,
			TxHash:      ev.TxHash,
			LogIndex:    ev.LogIndex,
			LastUpdated: ev.Timestamp,
		}
		return e.reconciler.CreatePlaceholder(ctx, placeholder)
	}
	return nil
}

func applySetFeeProtocol(ctx context.Context, e *Engine, ev model.EventRecord) error {
	var data model.SetFeeProtocolEventData
	if err := json.Unmarshal(ev.Decoded, &data); err != nil {
		e.skip(ev, "decode set fee protocol: "+err.Error())
		return nil
	}

	pool, err := e.loadPool(ctx, ev.ChainID, ev.Address)
	if err != nil {
		return err
	}
	if pool == nil {
		e.skip(ev, "fee protocol for unknown pool")
		return nil
	}

	// Packed the way the pool contract stores it.
	feeProtocol := data.FeeProtocol0 + data.FeeProtocol1<<4
	diff := merge.LiquidityPoolDiff{FeeProtocol: &feeProtocol}
	return e.store.SetPool(ctx, merge.LiquidityPool(diff, *pool, ev.Timestamp))
}

func applyIncreaseObservationCardinalityNext(ctx context.Context, e *Engine, ev model.EventRecord) error {
	var data model.IncreaseObservationCardinalityNextEventData
	if err := json.Unmarshal(ev.Decoded, &data); err != nil {
		e.skip(ev, "decode cardinality: "+err.Error())
		return nil
	}

	pool, err := e.loadPool(ctx, ev.ChainID, ev.Address)
	if err != nil {
		return err
	}
	if pool == nil {
		e.skip(ev, "cardinality for unknown pool")
		return nil
	}

	diff := merge.LiquidityPoolDiff{ObservationCardinalityNext: &data.ObservationCardinalityNextNew}
	return e.store.SetPool(ctx, merge.LiquidityPool(diff, *pool, ev.Timestamp))
}
