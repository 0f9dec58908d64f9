// Package postgres implements the entity store on pgx. All writes are
// upserts keyed by entity id, so a replayed apply phase that the runtime
// already serialized converges to the same row.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"math/big"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"ammLedger/internal/model"
	"ammLedger/internal/store"
)

// Store provides Postgres persistence for aggregate entities.
type Store struct {
	pool *pgxpool.Pool
}

func NewStore(ctx context.Context, dsn string) (*Store, error) {
	if dsn == "" {
		return nil, fmt.Errorf("pg dsn is required")
	}
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, err
	}
	return &Store{pool: pool}, nil
}

func (s *Store) Close() {
	if s.pool != nil {
		s.pool.Close()
	}
}

// usd renders a 1e18 fixed-point value as a decimal for numeric columns.
func usd(v *big.Int) decimal.Decimal {
	if v == nil {
		return decimal.Zero
	}
	return decimal.NewFromBigInt(v, -18)
}

// amount renders a raw integer amount for numeric columns.
func amount(v *big.Int) string {
	if v == nil {
		return "0"
	}
	return v.String()
}

func parseAmount(s string) *big.Int {
	v, ok := new(big.Int).SetString(s, 10)
	if !ok {
		return new(big.Int)
	}
	return v
}

func usdToBig(d decimal.Decimal) *big.Int {
	return d.Shift(18).BigInt()
}

func (s *Store) Token(ctx context.Context, id string) (*model.Token, error) {
	var (
		token model.Token
		price decimal.Decimal
	)
	row := s.pool.QueryRow(ctx, `
		SELECT id, address, chain_id, decimals, price_per_usd, is_whitelisted, last_updated_ts
		FROM tokens WHERE id=$1
	`, id)
	err := row.Scan(&token.ID, &token.Address, &token.ChainID, &token.Decimals, &price, &token.IsWhitelisted, &token.LastUpdated)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	token.PricePerUSD = usdToBig(price)
	return &token, nil
}

func (s *Store) SetToken(ctx context.Context, token model.Token) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO tokens (id, address, chain_id, decimals, price_per_usd, is_whitelisted, last_updated_ts, created_at, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,now(),now())
		ON CONFLICT (id) DO UPDATE SET
			decimals = EXCLUDED.decimals,
			price_per_usd = EXCLUDED.price_per_usd,
			is_whitelisted = EXCLUDED.is_whitelisted,
			last_updated_ts = EXCLUDED.last_updated_ts,
			updated_at = now()
	`, token.ID, token.Address, int64(token.ChainID), token.Decimals, usd(token.PricePerUSD), token.IsWhitelisted, int64(token.LastUpdated))
	return err
}

func (s *Store) AddTokenPriceSnapshot(ctx context.Context, snapshot model.TokenPriceSnapshot) error {
	// Append-only: conflicts mean the snapshot for this block already exists.
	_, err := s.pool.Exec(ctx, `
		INSERT INTO token_price_snapshots (id, address, chain_id, block_number, price, is_whitelisted, snapshot_ts, created_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,now())
		ON CONFLICT (id) DO NOTHING
	`, snapshot.ID, snapshot.Address, int64(snapshot.ChainID), int64(snapshot.BlockNumber), usd(snapshot.Price), snapshot.IsWhitelisted, int64(snapshot.Timestamp))
	return err
}

func (s *Store) Pool(ctx context.Context, id string) (*model.LiquidityPoolAggregator, error) {
	var (
		p                                                  model.LiquidityPoolAggregator
		reserve0, reserve1, volume0, volume1               string
		fees0, fees1, currentLiquidity, totalStaked        string
		totalVotes, totalEmissions, sqrtPriceX96           string
		reservesUSD, token0Price, token1Price              decimal.Decimal
		volumeUSD, volumeUSDWhitelisted, feesUSD           decimal.Decimal
		currentLiquidityUSD, totalStakedUSD                decimal.Decimal
		totalBribesUSD, totalEmissionsUSD                  decimal.Decimal
	)
	row := s.pool.QueryRow(ctx, `
		SELECT id, chain_id, address, name, token0, token1, is_cl, tick_spacing, fee_protocol, observation_cardinality_next,
			reserve0, reserve1, reserves_usd, token0_price, token1_price, sqrt_price_x96, tick,
			total_volume0, total_volume1, total_volume_usd, total_volume_usd_whitelisted,
			total_fees0, total_fees1, total_fees_usd, number_of_swaps,
			current_liquidity, current_liquidity_usd,
			gauge_address, bribe_voting_address, total_staked, total_staked_usd,
			total_votes_deposited, total_bribes_usd, total_emissions, total_emissions_usd,
			last_updated_ts
		FROM liquidity_pool_aggregators WHERE id=$1
	`, id)
	err := row.Scan(
		&p.ID, &p.ChainID, &p.Address, &p.Name, &p.Token0, &p.Token1, &p.IsCL, &p.TickSpacing, &p.FeeProtocol, &p.ObservationCardinalityNext,
		&reserve0, &reserve1, &reservesUSD, &token0Price, &token1Price, &sqrtPriceX96, &p.Tick,
		&volume0, &volume1, &volumeUSD, &volumeUSDWhitelisted,
		&fees0, &fees1, &feesUSD, &p.NumberOfSwaps,
		&currentLiquidity, &currentLiquidityUSD,
		&p.GaugeAddress, &p.BribeVotingAddress, &totalStaked, &totalStakedUSD,
		&totalVotes, &totalBribesUSD, &totalEmissions, &totalEmissionsUSD,
		&p.LastUpdated,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	p.Reserve0 = parseAmount(reserve0)
	p.Reserve1 = parseAmount(reserve1)
	p.ReservesUSD = usdToBig(reservesUSD)
	p.Token0Price = usdToBig(token0Price)
	p.Token1Price = usdToBig(token1Price)
	p.SqrtPriceX96 = parseAmount(sqrtPriceX96)
	p.TotalVolume0 = parseAmount(volume0)
	p.TotalVolume1 = parseAmount(volume1)
	p.TotalVolumeUSD = usdToBig(volumeUSD)
	p.TotalVolumeUSDWhitelisted = usdToBig(volumeUSDWhitelisted)
	p.TotalFees0 = parseAmount(fees0)
	p.TotalFees1 = parseAmount(fees1)
	p.TotalFeesUSD = usdToBig(feesUSD)
	p.CurrentLiquidity = parseAmount(currentLiquidity)
	p.CurrentLiquidityUSD = usdToBig(currentLiquidityUSD)
	p.TotalStaked = parseAmount(totalStaked)
	p.TotalStakedUSD = usdToBig(totalStakedUSD)
	p.TotalVotesDeposited = parseAmount(totalVotes)
	p.TotalBribesUSD = usdToBig(totalBribesUSD)
	p.TotalEmissions = parseAmount(totalEmissions)
	p.TotalEmissionsUSD = usdToBig(totalEmissionsUSD)
	return &p, nil
}

func (s *Store) SetPool(ctx context.Context, p model.LiquidityPoolAggregator) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO liquidity_pool_aggregators (
			id, chain_id, address, name, token0, token1, is_cl, tick_spacing, fee_protocol, observation_cardinality_next,
			reserve0, reserve1, reserves_usd, token0_price, token1_price, sqrt_price_x96, tick,
			total_volume0, total_volume1, total_volume_usd, total_volume_usd_whitelisted,
			total_fees0, total_fees1, total_fees_usd, number_of_swaps,
			current_liquidity, current_liquidity_usd,
			gauge_address, bribe_voting_address, total_staked, total_staked_usd,
			total_votes_deposited, total_bribes_usd, total_emissions, total_emissions_usd,
			last_updated_ts, created_at, updated_at
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,$19,$20,$21,$22,$23,$24,$25,$26,$27,$28,$29,$30,$31,$32,$33,$34,$35,$36,now(),now())
		ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name,
			fee_protocol = EXCLUDED.fee_protocol,
			observation_cardinality_next = EXCLUDED.observation_cardinality_next,
			reserve0 = EXCLUDED.reserve0,
			reserve1 = EXCLUDED.reserve1,
			reserves_usd = EXCLUDED.reserves_usd,
			token0_price = EXCLUDED.token0_price,
			token1_price = EXCLUDED.token1_price,
			sqrt_price_x96 = EXCLUDED.sqrt_price_x96,
			tick = EXCLUDED.tick,
			total_volume0 = EXCLUDED.total_volume0,
			total_volume1 = EXCLUDED.total_volume1,
			total_volume_usd = EXCLUDED.total_volume_usd,
			total_volume_usd_whitelisted = EXCLUDED.total_volume_usd_whitelisted,
			total_fees0 = EXCLUDED.total_fees0,
			total_fees1 = EXCLUDED.total_fees1,
			total_fees_usd = EXCLUDED.total_fees_usd,
			number_of_swaps = EXCLUDED.number_of_swaps,
			current_liquidity = EXCLUDED.current_liquidity,
			current_liquidity_usd = EXCLUDED.current_liquidity_usd,
			gauge_address = EXCLUDED.gauge_address,
			bribe_voting_address = EXCLUDED.bribe_voting_address,
			total_staked = EXCLUDED.total_staked,
			total_staked_usd = EXCLUDED.total_staked_usd,
			total_votes_deposited = EXCLUDED.total_votes_deposited,
			total_bribes_usd = EXCLUDED.total_bribes_usd,
			total_emissions = EXCLUDED.total_emissions,
			total_emissions_usd = EXCLUDED.total_emissions_usd,
			last_updated_ts = EXCLUDED.last_updated_ts,
			updated_at = now()
	`,
		p.ID, int64(p.ChainID), p.Address, p.Name, p.Token0, p.Token1, p.IsCL, p.TickSpacing, p.FeeProtocol, p.ObservationCardinalityNext,
		amount(p.Reserve0), amount(p.Reserve1), usd(p.ReservesUSD), usd(p.Token0Price), usd(p.Token1Price), amount(p.SqrtPriceX96), p.Tick,
		amount(p.TotalVolume0), amount(p.TotalVolume1), usd(p.TotalVolumeUSD), usd(p.TotalVolumeUSDWhitelisted),
		amount(p.TotalFees0), amount(p.TotalFees1), usd(p.TotalFeesUSD), int64(p.NumberOfSwaps),
		amount(p.CurrentLiquidity), usd(p.CurrentLiquidityUSD),
		p.GaugeAddress, p.BribeVotingAddress, amount(p.TotalStaked), usd(p.TotalStakedUSD),
		amount(p.TotalVotesDeposited), usd(p.TotalBribesUSD), amount(p.TotalEmissions), usd(p.TotalEmissionsUSD),
		int64(p.LastUpdated),
	)
	return err
}

func (s *Store) UserStats(ctx context.Context, id string) (*model.UserStatsPerPool, error) {
	var (
		u                                         model.UserStatsPerPool
		currentStaked, almAmount0, almAmount1     string
		volumeUSD, feesPaidUSD                    decimal.Decimal
		liquidityAddedUSD, liquidityRemovedUSD    decimal.Decimal
		totalStakedUSD, almLiquidityUSD           decimal.Decimal
		votingRewardsUSD                          decimal.Decimal
	)
	row := s.pool.QueryRow(ctx, `
		SELECT id, chain_id, user_address, pool_address, number_of_swaps,
			total_volume_usd, total_fees_paid_usd, liquidity_added_usd, liquidity_removed_usd,
			current_staked, total_staked_usd, alm_amount0, alm_amount1, alm_liquidity_usd,
			voting_rewards_usd, last_updated_ts
		FROM user_stats_per_pool WHERE id=$1
	`, id)
	err := row.Scan(
		&u.ID, &u.ChainID, &u.User, &u.Pool, &u.NumberOfSwaps,
		&volumeUSD, &feesPaidUSD, &liquidityAddedUSD, &liquidityRemovedUSD,
		&currentStaked, &totalStakedUSD, &almAmount0, &almAmount1, &almLiquidityUSD,
		&votingRewardsUSD, &u.LastUpdated,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	u.TotalVolumeUSD = usdToBig(volumeUSD)
	u.TotalFeesPaidUSD = usdToBig(feesPaidUSD)
	u.LiquidityAddedUSD = usdToBig(liquidityAddedUSD)
	u.LiquidityRemovedUSD = usdToBig(liquidityRemovedUSD)
	u.CurrentStaked = parseAmount(currentStaked)
	u.TotalStakedUSD = usdToBig(totalStakedUSD)
	u.ALMAmount0 = parseAmount(almAmount0)
	u.ALMAmount1 = parseAmount(almAmount1)
	u.ALMLiquidityUSD = usdToBig(almLiquidityUSD)
	u.VotingRewardsUSD = usdToBig(votingRewardsUSD)
	return &u, nil
}

func (s *Store) SetUserStats(ctx context.Context, u model.UserStatsPerPool) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO user_stats_per_pool (
			id, chain_id, user_address, pool_address, number_of_swaps,
			total_volume_usd, total_fees_paid_usd, liquidity_added_usd, liquidity_removed_usd,
			current_staked, total_staked_usd, alm_amount0, alm_amount1, alm_liquidity_usd,
			voting_rewards_usd, last_updated_ts, created_at, updated_at
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,now(),now())
		ON CONFLICT (id) DO UPDATE SET
			number_of_swaps = EXCLUDED.number_of_swaps,
			total_volume_usd = EXCLUDED.total_volume_usd,
			total_fees_paid_usd = EXCLUDED.total_fees_paid_usd,
			liquidity_added_usd = EXCLUDED.liquidity_added_usd,
			liquidity_removed_usd = EXCLUDED.liquidity_removed_usd,
			current_staked = EXCLUDED.current_staked,
			total_staked_usd = EXCLUDED.total_staked_usd,
			alm_amount0 = EXCLUDED.alm_amount0,
			alm_amount1 = EXCLUDED.alm_amount1,
			alm_liquidity_usd = EXCLUDED.alm_liquidity_usd,
			voting_rewards_usd = EXCLUDED.voting_rewards_usd,
			last_updated_ts = EXCLUDED.last_updated_ts,
			updated_at = now()
	`,
		u.ID, int64(u.ChainID), u.User, u.Pool, int64(u.NumberOfSwaps),
		usd(u.TotalVolumeUSD), usd(u.TotalFeesPaidUSD), usd(u.LiquidityAddedUSD), usd(u.LiquidityRemovedUSD),
		amount(u.CurrentStaked), usd(u.TotalStakedUSD), amount(u.ALMAmount0), amount(u.ALMAmount1), usd(u.ALMLiquidityUSD),
		usd(u.VotingRewardsUSD), int64(u.LastUpdated),
	)
	return err
}

func scanPosition(row pgx.Row) (*model.NonFungiblePosition, error) {
	var (
		p                            model.NonFungiblePosition
		liquidity, amount0, amount1  string
		amountUSD                    decimal.Decimal
	)
	err := row.Scan(
		&p.ID, &p.ChainID, &p.TokenID, &p.Pool, &p.Owner, &p.TickLower, &p.TickUpper,
		&liquidity, &amount0, &amount1, &amountUSD, &p.TxHash, &p.LogIndex, &p.LastUpdated,
	)
	if err != nil {
		return nil, err
	}
	p.Liquidity = parseAmount(liquidity)
	p.Amount0 = parseAmount(amount0)
	p.Amount1 = parseAmount(amount1)
	p.AmountUSD = usdToBig(amountUSD)
	return &p, nil
}

const positionColumns = `id, chain_id, token_id, pool_address, owner, tick_lower, tick_upper,
	liquidity, amount0, amount1, amount_usd, tx_hash, log_index, last_updated_ts`

func (s *Store) Position(ctx context.Context, id string) (*model.NonFungiblePosition, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+positionColumns+` FROM nonfungible_positions WHERE id=$1`, id)
	position, err := scanPosition(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return position, nil
}

func (s *Store) SetPosition(ctx context.Context, p model.NonFungiblePosition) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO nonfungible_positions (
			id, chain_id, token_id, pool_address, owner, tick_lower, tick_upper,
			liquidity, amount0, amount1, amount_usd, tx_hash, log_index, last_updated_ts, created_at, updated_at
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,now(),now())
		ON CONFLICT (id) DO UPDATE SET
			token_id = EXCLUDED.token_id,
			owner = EXCLUDED.owner,
			tick_lower = EXCLUDED.tick_lower,
			tick_upper = EXCLUDED.tick_upper,
			liquidity = EXCLUDED.liquidity,
			amount0 = EXCLUDED.amount0,
			amount1 = EXCLUDED.amount1,
			amount_usd = EXCLUDED.amount_usd,
			last_updated_ts = EXCLUDED.last_updated_ts,
			updated_at = now()
	`,
		p.ID, int64(p.ChainID), int64(p.TokenID), p.Pool, p.Owner, p.TickLower, p.TickUpper,
		amount(p.Liquidity), amount(p.Amount0), amount(p.Amount1), usd(p.AmountUSD), p.TxHash, int64(p.LogIndex), int64(p.LastUpdated),
	)
	return err
}

func (s *Store) PositionsByTx(ctx context.Context, chainID uint64, txHash string) ([]model.NonFungiblePosition, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT `+positionColumns+`
		FROM nonfungible_positions
		WHERE chain_id=$1 AND lower(tx_hash)=lower($2)
		ORDER BY log_index
	`, int64(chainID), txHash)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.NonFungiblePosition
	for rows.Next() {
		position, err := scanPosition(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *position)
	}
	return out, rows.Err()
}

func (s *Store) DeletePosition(ctx context.Context, id string) error {
	_, err := s.pool.Exec(ctx, `DELETE FROM nonfungible_positions WHERE id=$1`, id)
	return err
}

func (s *Store) ALMWrapper(ctx context.Context, id string) (*model.ALMWrapper, error) {
	var (
		w                             model.ALMWrapper
		amount0, amount1, lpAmount    string
		liquidity                     string
	)
	row := s.pool.QueryRow(ctx, `
		SELECT id, chain_id, address, pool_address, amount0, amount1, lp_amount,
			tick_lower, tick_upper, liquidity, amm_state_is_derived, last_updated_ts
		FROM alm_wrappers WHERE id=$1
	`, id)
	err := row.Scan(
		&w.ID, &w.ChainID, &w.Address, &w.Pool, &amount0, &amount1, &lpAmount,
		&w.TickLower, &w.TickUpper, &liquidity, &w.AMMStateIsDerived, &w.LastUpdated,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	w.Amount0 = parseAmount(amount0)
	w.Amount1 = parseAmount(amount1)
	w.LPAmount = parseAmount(lpAmount)
	w.Liquidity = parseAmount(liquidity)
	return &w, nil
}

func (s *Store) SetALMWrapper(ctx context.Context, w model.ALMWrapper) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO alm_wrappers (
			id, chain_id, address, pool_address, amount0, amount1, lp_amount,
			tick_lower, tick_upper, liquidity, amm_state_is_derived, last_updated_ts, created_at, updated_at
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,now(),now())
		ON CONFLICT (id) DO UPDATE SET
			amount0 = EXCLUDED.amount0,
			amount1 = EXCLUDED.amount1,
			lp_amount = EXCLUDED.lp_amount,
			tick_lower = EXCLUDED.tick_lower,
			tick_upper = EXCLUDED.tick_upper,
			liquidity = EXCLUDED.liquidity,
			amm_state_is_derived = EXCLUDED.amm_state_is_derived,
			last_updated_ts = EXCLUDED.last_updated_ts,
			updated_at = now()
	`,
		w.ID, int64(w.ChainID), w.Address, w.Pool, amount(w.Amount0), amount(w.Amount1), amount(w.LPAmount),
		w.TickLower, w.TickUpper, amount(w.Liquidity), w.AMMStateIsDerived, int64(w.LastUpdated),
	)
	return err
}

func (s *Store) VeNFT(ctx context.Context, id string) (*model.VeNFTAggregator, error) {
	var (
		v   model.VeNFTAggregator
		tvl string
	)
	row := s.pool.QueryRow(ctx, `
		SELECT id, chain_id, token_id, owner, lock_time, total_value_locked, is_alive, last_updated_ts
		FROM venft_aggregators WHERE id=$1
	`, id)
	err := row.Scan(&v.ID, &v.ChainID, &v.TokenID, &v.Owner, &v.LockTime, &tvl, &v.IsAlive, &v.LastUpdated)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	v.TotalValueLocked = parseAmount(tvl)
	return &v, nil
}

func (s *Store) SetVeNFT(ctx context.Context, v model.VeNFTAggregator) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO venft_aggregators (
			id, chain_id, token_id, owner, lock_time, total_value_locked, is_alive, last_updated_ts, created_at, updated_at
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,now(),now())
		ON CONFLICT (id) DO UPDATE SET
			owner = EXCLUDED.owner,
			lock_time = EXCLUDED.lock_time,
			total_value_locked = EXCLUDED.total_value_locked,
			is_alive = EXCLUDED.is_alive,
			last_updated_ts = EXCLUDED.last_updated_ts,
			updated_at = now()
	`, v.ID, int64(v.ChainID), int64(v.TokenID), v.Owner, int64(v.LockTime), amount(v.TotalValueLocked), v.IsAlive, int64(v.LastUpdated))
	return err
}

var _ store.EntityStore = (*Store)(nil)
