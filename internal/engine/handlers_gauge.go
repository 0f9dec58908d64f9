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

func applyGaugeCreated(ctx context.Context, e *Engine, ev model.EventRecord) error {
	var data model.GaugeCreatedEventData
	if err := json.Unmarshal(ev.Decoded, &data); err != nil {
		e.skip(ev, "decode gauge created: "+err.Error())
		return nil
	}

	pool, err := e.loadPool(ctx, ev.ChainID, data.Pool)
	if err != nil {
		return err
	}
	if pool == nil {
		e.skip(ev, "gauge created for unknown pool")
		return nil
	}

	if err := e.lookup.RecordGauge(ctx, ev.ChainID, data.Gauge, data.Pool); err != nil {
		return err
	}
	if err := e.lookup.RecordBribe(ctx, ev.ChainID, data.BribeVotingReward, data.Pool); err != nil {
		return err
	}

	gauge := strings.ToLower(data.Gauge)
	bribe := strings.ToLower(data.BribeVotingReward)
	e.logger.Info("gauge recorded",
		zap.String("pool", pool.ID),
		zap.String("gauge", gauge),
		zap.String("bribe", bribe),
	)
	diff := merge.LiquidityPoolDiff{GaugeAddress: &gauge, BribeVotingAddress: &bribe}
	return e.store.SetPool(ctx, merge.LiquidityPool(diff, *pool, ev.Timestamp))
}

// gaugePool resolves the emitting gauge contract back to its pool.
func (e *Engine) gaugePool(ctx context.Context, ev model.EventRecord) (*model.LiquidityPoolAggregator, bool, error) {
	poolAddr, ok := e.lookup.GaugePool(ev.ChainID, ev.Address)
	if !ok {
		e.skip(ev, "unknown gauge address")
		return nil, false, nil
	}
	pool, err := e.loadPool(ctx, ev.ChainID, poolAddr)
	if err != nil {
		return nil, false, err
	}
	if pool == nil {
		e.skip(ev, "gauge maps to unknown pool")
		return nil, false, nil
	}
	return pool, true, nil
}

// bribePool resolves the emitting voting reward contract back to its pool.
func (e *Engine) bribePool(ctx context.Context, ev model.EventRecord) (*model.LiquidityPoolAggregator, bool, error) {
	poolAddr, ok := e.lookup.BribePool(ev.ChainID, ev.Address)
	if !ok {
		e.skip(ev, "unknown bribe address")
		return nil, false, nil
	}
	pool, err := e.loadPool(ctx, ev.ChainID, poolAddr)
	if err != nil {
		return nil, false, err
	}
	if pool == nil {
		e.skip(ev, "bribe maps to unknown pool")
		return nil, false, nil
	}
	return pool, true, nil
}

func applyGaugeDeposit(ctx context.Context, e *Engine, ev model.EventRecord) error {
	var data model.GaugeDepositEventData
	if err := json.Unmarshal(ev.Decoded, &data); err != nil {
		e.skip(ev, "decode gauge deposit: "+err.Error())
		return nil
	}
	amount, err := parseBig(data.Amount)
	if err != nil {
		e.skip(ev, "gauge deposit amount malformed")
		return nil
	}
	return e.applyStakeChange(ctx, ev, data.User, amount)
}

func applyGaugeWithdraw(ctx context.Context, e *Engine, ev model.EventRecord) error {
	var data model.GaugeWithdrawEventData
	if err := json.Unmarshal(ev.Decoded, &data); err != nil {
		e.skip(ev, "decode gauge withdraw: "+err.Error())
		return nil
	}
	amount, err := parseBig(data.Amount)
	if err != nil {
		e.skip(ev, "gauge withdraw amount malformed")
		return nil
	}
	return e.applyStakeChange(ctx, ev, data.User, new(big.Int).Neg(amount))
}

func (e *Engine) applyStakeChange(ctx context.Context, ev model.EventRecord, user string, delta *big.Int) error {
	pool, ok, err := e.gaugePool(ctx, ev)
	if err != nil || !ok {
		return err
	}

	// Staked LP is valued as its share of pool liquidity at current reserves.
	stakedUSD := new(big.Int)
	if pool.CurrentLiquidity != nil && pool.CurrentLiquidity.Sign() > 0 && pool.ReservesUSD != nil {
		stakedUSD.Mul(pool.ReservesUSD, delta)
		stakedUSD.Quo(stakedUSD, pool.CurrentLiquidity)
	}
	totalStakedUSD := add(pool.TotalStakedUSD, stakedUSD)
	if totalStakedUSD.Sign() < 0 {
		totalStakedUSD.SetInt64(0)
	}

	diff := merge.LiquidityPoolDiff{TotalStaked: delta, TotalStakedUSD: totalStakedUSD}
	if err := e.store.SetPool(ctx, merge.LiquidityPool(diff, *pool, ev.Timestamp)); err != nil {
		return err
	}

	stats, err := e.loadUserStats(ctx, ev.ChainID, user, pool.Address)
	if err != nil {
		return err
	}
	userDiff := merge.UserStatsDiff{CurrentStaked: delta, TotalStakedUSD: stakedUSD}
	return e.store.SetUserStats(ctx, merge.UserStats(userDiff, stats, ev.Timestamp))
}

func collectGaugeNotifyReward(ctx context.Context, e *Engine, ev model.EventRecord) error {
	cfg, ok := e.chains[ev.ChainID]
	if !ok {
		return nil
	}
	e.warmToken(ctx, ev, cfg.RewardToken)
	return nil
}

func applyGaugeNotifyReward(ctx context.Context, e *Engine, ev model.EventRecord) error {
	var data model.GaugeNotifyRewardEventData
	if err := json.Unmarshal(ev.Decoded, &data); err != nil {
		e.skip(ev, "decode gauge notify reward: "+err.Error())
		return nil
	}

	pool, ok, err := e.gaugePool(ctx, ev)
	if err != nil || !ok {
		return err
	}
	cfg, okCfg := e.chains[ev.ChainID]
	if !okCfg {
		e.skip(ev, "emissions on unconfigured chain")
		return nil
	}

	amount, err := parseBig(data.Amount)
	if err != nil {
		e.skip(ev, "emission amount malformed")
		return nil
	}
	reward, err := e.pricedToken(ctx, ev, cfg.RewardToken)
	if err != nil {
		return err
	}

	diff := merge.LiquidityPoolDiff{
		TotalEmissions:    amount,
		TotalEmissionsUSD: fixedpoint.UsdValue(amount, reward.Decimals, reward.PricePerUSD),
	}
	return e.store.SetPool(ctx, merge.LiquidityPool(diff, *pool, ev.Timestamp))
}

func collectBribeNotifyReward(ctx context.Context, e *Engine, ev model.EventRecord) error {
	var data model.BribeNotifyRewardEventData
	if err := json.Unmarshal(ev.Decoded, &data); err != nil || data.Token == "" {
		return nil
	}
	e.warmToken(ctx, ev, data.Token)
	return nil
}

func applyBribeNotifyReward(ctx context.Context, e *Engine, ev model.EventRecord) error {
	var data model.BribeNotifyRewardEventData
	if err := json.Unmarshal(ev.Decoded, &data); err != nil {
		e.skip(ev, "decode bribe notify reward: "+err.Error())
		return nil
	}

	pool, ok, err := e.bribePool(ctx, ev)
	if err != nil || !ok {
		return err
	}

	amount, err := parseBig(data.Amount)
	if err != nil {
		e.skip(ev, "bribe amount malformed")
		return nil
	}
	token, err := e.pricedToken(ctx, ev, data.Token)
	if err != nil {
		return err
	}

	diff := merge.LiquidityPoolDiff{
		TotalBribesUSD: fixedpoint.UsdValue(amount, token.Decimals, token.PricePerUSD),
	}
	return e.store.SetPool(ctx, merge.LiquidityPool(diff, *pool, ev.Timestamp))
}

func applyClaimRewards(ctx context.Context, e *Engine, ev model.EventRecord) error {
	var data model.ClaimRewardsEventData
	if err := json.Unmarshal(ev.Decoded, &data); err != nil {
		e.skip(ev, "decode claim rewards: "+err.Error())
		return nil
	}

	pool, ok, err := e.bribePool(ctx, ev)
	if err != nil || !ok {
		return err
	}

	amount, err := parseBig(data.Amount)
	if err != nil {
		e.skip(ev, "claim amount malformed")
		return nil
	}
	token, err := e.pricedToken(ctx, ev, data.Token)
	if err != nil {
		return err
	}

	stats, err := e.loadUserStats(ctx, ev.ChainID, data.From, pool.Address)
	if err != nil {
		return err
	}
	userDiff := merge.UserStatsDiff{
		VotingRewardsUSD: fixedpoint.UsdValue(amount, token.Decimals, token.PricePerUSD),
	}
	return e.store.SetUserStats(ctx, merge.UserStats(userDiff, stats, ev.Timestamp))
}

func applyVote(ctx context.Context, e *Engine, ev model.EventRecord) error {
	var data model.VoteEventData
	if err := json.Unmarshal(ev.Decoded, &data); err != nil {
		e.skip(ev, "decode vote: "+err.Error())
		return nil
	}

	pool, err := e.loadPool(ctx, ev.ChainID, data.Pool)
	if err != nil {
		return err
	}
	if pool == nil {
		e.skip(ev, "vote for unknown pool")
		return nil
	}

	weight, err := parseBig(data.Weight)
	if err != nil {
		e.skip(ev, "vote weight malformed")
		return nil
	}

	diff := merge.LiquidityPoolDiff{TotalVotesDeposited: weight}
	return e.store.SetPool(ctx, merge.LiquidityPool(diff, *pool, ev.Timestamp))
}
