// Package merge turns per-event diffs into next entity states. Each entity
// kind has a fixed field policy: increment (cumulative counters, signed),
// overwrite (snapshots), or always-set (LastUpdated). A nil diff field never
// changes the current value. Merge functions are pure: they take the current
// entity by value and return a new one with freshly allocated numerics.
package merge

import (
	"math/big"

	"ammLedger/internal/model"
)

// add applies an increment policy: current + delta, nil delta keeps current.
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

// set applies an overwrite policy: nil keeps current, otherwise replaces.
func set(current, value *big.Int) *big.Int {
	out := new(big.Int)
	if value != nil {
		return out.Set(value)
	}
	if current != nil {
		out.Set(current)
	}
	return out
}

func setString(current string, value *string) string {
	if value != nil {
		return *value
	}
	return current
}

func setInt32(current int32, value *int32) int32 {
	if value != nil {
		return *value
	}
	return current
}

func setUint32(current uint32, value *uint32) uint32 {
	if value != nil {
		return *value
	}
	return current
}

func setUint64(current uint64, value *uint64) uint64 {
	if value != nil {
		return *value
	}
	return current
}

func setBool(current bool, value *bool) bool {
	if value != nil {
		return *value
	}
	return current
}

func addUint64(current uint64, delta *uint64) uint64 {
	if delta != nil {
		return current + *delta
	}
	return current
}

// LiquidityPoolDiff is the partial update one event contributes to a pool
// aggregator. Swapping a field between the increment and overwrite sections
// silently corrupts the corresponding cumulative total; the sections below
// are the authoritative policy table.
type LiquidityPoolDiff struct {
	// Increment (signed deltas).
	TotalVolume0              *big.Int
	TotalVolume1              *big.Int
	TotalVolumeUSD            *big.Int
	TotalVolumeUSDWhitelisted *big.Int
	TotalFees0                *big.Int
	TotalFees1                *big.Int
	TotalFeesUSD              *big.Int
	NumberOfSwaps             *uint64
	CurrentLiquidity          *big.Int
	TotalStaked               *big.Int
	TotalVotesDeposited       *big.Int
	TotalBribesUSD            *big.Int
	TotalEmissions            *big.Int
	TotalEmissionsUSD         *big.Int

	// Overwrite (snapshots).
	Name                       *string
	FeeProtocol                *uint32
	ObservationCardinalityNext *uint32
	Reserve0                   *big.Int
	Reserve1                   *big.Int
	ReservesUSD                *big.Int
	Token0Price                *big.Int
	Token1Price                *big.Int
	SqrtPriceX96               *big.Int
	Tick                       *int32
	CurrentLiquidityUSD        *big.Int
	TotalStakedUSD             *big.Int
	GaugeAddress               *string
	BribeVotingAddress         *string
}

// LiquidityPool merges a diff into the current pool aggregator.
func LiquidityPool(diff LiquidityPoolDiff, current model.LiquidityPoolAggregator, timestamp uint64) model.LiquidityPoolAggregator {
	next := current

	next.TotalVolume0 = add(current.TotalVolume0, diff.TotalVolume0)
	next.TotalVolume1 = add(current.TotalVolume1, diff.TotalVolume1)
	next.TotalVolumeUSD = add(current.TotalVolumeUSD, diff.TotalVolumeUSD)
	next.TotalVolumeUSDWhitelisted = add(current.TotalVolumeUSDWhitelisted, diff.TotalVolumeUSDWhitelisted)
	next.TotalFees0 = add(current.TotalFees0, diff.TotalFees0)
	next.TotalFees1 = add(current.TotalFees1, diff.TotalFees1)
	next.TotalFeesUSD = add(current.TotalFeesUSD, diff.TotalFeesUSD)
	next.NumberOfSwaps = addUint64(current.NumberOfSwaps, diff.NumberOfSwaps)
	next.CurrentLiquidity = add(current.CurrentLiquidity, diff.CurrentLiquidity)
	next.TotalStaked = add(current.TotalStaked, diff.TotalStaked)
	next.TotalVotesDeposited = add(current.TotalVotesDeposited, diff.TotalVotesDeposited)
	next.TotalBribesUSD = add(current.TotalBribesUSD, diff.TotalBribesUSD)
	next.TotalEmissions = add(current.TotalEmissions, diff.TotalEmissions)
	next.TotalEmissionsUSD = add(current.TotalEmissionsUSD, diff.TotalEmissionsUSD)

	next.Name = setString(current.Name, diff.Name)
	next.FeeProtocol = setUint32(current.FeeProtocol, diff.FeeProtocol)
	next.ObservationCardinalityNext = setUint32(current.ObservationCardinalityNext, diff.ObservationCardinalityNext)
	next.Reserve0 = set(current.Reserve0, diff.Reserve0)
	next.Reserve1 = set(current.Reserve1, diff.Reserve1)
	next.ReservesUSD = set(current.ReservesUSD, diff.ReservesUSD)
	next.Token0Price = set(current.Token0Price, diff.Token0Price)
	next.Token1Price = set(current.Token1Price, diff.Token1Price)
	next.SqrtPriceX96 = set(current.SqrtPriceX96, diff.SqrtPriceX96)
	next.Tick = setInt32(current.Tick, diff.Tick)
	next.CurrentLiquidityUSD = set(current.CurrentLiquidityUSD, diff.CurrentLiquidityUSD)
	next.TotalStakedUSD = set(current.TotalStakedUSD, diff.TotalStakedUSD)
	next.GaugeAddress = setString(current.GaugeAddress, diff.GaugeAddress)
	next.BribeVotingAddress = setString(current.BribeVotingAddress, diff.BribeVotingAddress)

	next.LastUpdated = timestamp
	return next
}

// UserStatsDiff is the partial update one event contributes to a user's
// per-pool stats row.
type UserStatsDiff struct {
	// Increment (signed deltas).
	NumberOfSwaps       *uint64
	TotalVolumeUSD      *big.Int
	TotalFeesPaidUSD    *big.Int
	LiquidityAddedUSD   *big.Int
	LiquidityRemovedUSD *big.Int
	CurrentStaked       *big.Int
	TotalStakedUSD      *big.Int
	ALMAmount0          *big.Int
	ALMAmount1          *big.Int
	VotingRewardsUSD    *big.Int

	// Overwrite.
	ALMLiquidityUSD *big.Int
}

// UserStats merges a diff into the current user stats row.
func UserStats(diff UserStatsDiff, current model.UserStatsPerPool, timestamp uint64) model.UserStatsPerPool {
	next := current

	next.NumberOfSwaps = addUint64(current.NumberOfSwaps, diff.NumberOfSwaps)
	next.TotalVolumeUSD = add(current.TotalVolumeUSD, diff.TotalVolumeUSD)
	next.TotalFeesPaidUSD = add(current.TotalFeesPaidUSD, diff.TotalFeesPaidUSD)
	next.LiquidityAddedUSD = add(current.LiquidityAddedUSD, diff.LiquidityAddedUSD)
	next.LiquidityRemovedUSD = add(current.LiquidityRemovedUSD, diff.LiquidityRemovedUSD)
	next.CurrentStaked = add(current.CurrentStaked, diff.CurrentStaked)
	next.TotalStakedUSD = add(current.TotalStakedUSD, diff.TotalStakedUSD)
	next.ALMAmount0 = add(current.ALMAmount0, diff.ALMAmount0)
	next.ALMAmount1 = add(current.ALMAmount1, diff.ALMAmount1)
	next.VotingRewardsUSD = add(current.VotingRewardsUSD, diff.VotingRewardsUSD)

	next.ALMLiquidityUSD = set(current.ALMLiquidityUSD, diff.ALMLiquidityUSD)

	next.LastUpdated = timestamp
	return next
}

// PositionDiff is the partial update for a concentrated-liquidity NFT.
// Positions are snapshots, so every field overwrites.
type PositionDiff struct {
	TokenID   *uint64
	Owner     *string
	TickLower *int32
	TickUpper *int32
	Liquidity *big.Int
	Amount0   *big.Int
	Amount1   *big.Int
	AmountUSD *big.Int
}

// Position merges a diff into the current position.
func Position(diff PositionDiff, current model.NonFungiblePosition, timestamp uint64) model.NonFungiblePosition {
	next := current

	next.TokenID = setUint64(current.TokenID, diff.TokenID)
	next.Owner = setString(current.Owner, diff.Owner)
	next.TickLower = setInt32(current.TickLower, diff.TickLower)
	next.TickUpper = setInt32(current.TickUpper, diff.TickUpper)
	next.Liquidity = set(current.Liquidity, diff.Liquidity)
	next.Amount0 = set(current.Amount0, diff.Amount0)
	next.Amount1 = set(current.Amount1, diff.Amount1)
	next.AmountUSD = set(current.AmountUSD, diff.AmountUSD)

	next.LastUpdated = timestamp
	return next
}

// ALMWrapperDiff is the partial update for an ALM wrapper. Amount and LP
// totals are signed increments; the position snapshot overwrites, together
// with the flag saying whether it was derived or read from chain state.
type ALMWrapperDiff struct {
	// Increment (signed deltas).
	Amount0  *big.Int
	Amount1  *big.Int
	LPAmount *big.Int

	// Overwrite.
	TickLower         *int32
	TickUpper         *int32
	Liquidity         *big.Int
	AMMStateIsDerived *bool
}

// ALMWrapper merges a diff into the current wrapper.
func ALMWrapper(diff ALMWrapperDiff, current model.ALMWrapper, timestamp uint64) model.ALMWrapper {
	next := current

	next.Amount0 = add(current.Amount0, diff.Amount0)
	next.Amount1 = add(current.Amount1, diff.Amount1)
	next.LPAmount = add(current.LPAmount, diff.LPAmount)

	next.TickLower = setInt32(current.TickLower, diff.TickLower)
	next.TickUpper = setInt32(current.TickUpper, diff.TickUpper)
	next.Liquidity = set(current.Liquidity, diff.Liquidity)
	next.AMMStateIsDerived = setBool(current.AMMStateIsDerived, diff.AMMStateIsDerived)

	next.LastUpdated = timestamp
	return next
}

// VeNFTDiff is the partial update for a vote-escrow lock.
type VeNFTDiff struct {
	// Increment (signed delta).
	TotalValueLocked *big.Int

	// Overwrite.
	Owner    *string
	LockTime *uint64
	IsAlive  *bool
}

// VeNFT merges a diff into the current lock.
func VeNFT(diff VeNFTDiff, current model.VeNFTAggregator, timestamp uint64) model.VeNFTAggregator {
	next := current

	next.TotalValueLocked = add(current.TotalValueLocked, diff.TotalValueLocked)

	next.Owner = setString(current.Owner, diff.Owner)
	next.LockTime = setUint64(current.LockTime, diff.LockTime)
	next.IsAlive = setBool(current.IsAlive, diff.IsAlive)

	next.LastUpdated = timestamp
	return next
}
