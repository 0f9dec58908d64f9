package model

import (
	"fmt"
	"math/big"
	"strings"
)

// Token is the per-chain ERC20 record carrying the last resolved USD price.
// PricePerUSD is always 1e18 fixed point regardless of the token's own decimals.
type Token struct {
	ID            string
	Address       string
	ChainID       uint64
	Decimals      uint8
	PricePerUSD   *big.Int
	IsWhitelisted bool
	LastUpdated   uint64
}

// TokenPriceSnapshot is an append-only audit row written once per price refresh.
type TokenPriceSnapshot struct {
	ID            string
	Address       string
	ChainID       uint64
	BlockNumber   uint64
	Price         *big.Int
	IsWhitelisted bool
	Timestamp     uint64
}

// LiquidityPoolAggregator is the cumulative per-pool state. Every Total* field
// only ever grows; reserves, current liquidity, and staked amounts move both ways.
type LiquidityPoolAggregator struct {
	ID                         string
	ChainID                    uint64
	Address                    string
	Name                       string
	Token0                     string
	Token1                     string
	IsCL                       bool
	TickSpacing                int32
	FeeProtocol                uint32
	ObservationCardinalityNext uint32

	Reserve0     *big.Int
	Reserve1     *big.Int
	ReservesUSD  *big.Int
	Token0Price  *big.Int
	Token1Price  *big.Int
	SqrtPriceX96 *big.Int
	Tick         int32

	TotalVolume0              *big.Int
	TotalVolume1              *big.Int
	TotalVolumeUSD            *big.Int
	TotalVolumeUSDWhitelisted *big.Int
	TotalFees0                *big.Int
	TotalFees1                *big.Int
	TotalFeesUSD              *big.Int
	NumberOfSwaps             uint64

	CurrentLiquidity    *big.Int
	CurrentLiquidityUSD *big.Int

	GaugeAddress         string
	BribeVotingAddress   string
	TotalStaked          *big.Int
	TotalStakedUSD       *big.Int
	TotalVotesDeposited  *big.Int
	TotalBribesUSD       *big.Int
	TotalEmissions       *big.Int
	TotalEmissionsUSD    *big.Int

	LastUpdated uint64
}

// UserStatsPerPool mirrors cumulative pool activity for one user, created
// lazily on the user's first observed interaction with the pool.
type UserStatsPerPool struct {
	ID      string
	ChainID uint64
	User    string
	Pool    string

	NumberOfSwaps       uint64
	TotalVolumeUSD      *big.Int
	TotalFeesPaidUSD    *big.Int
	LiquidityAddedUSD   *big.Int
	LiquidityRemovedUSD *big.Int

	CurrentStaked    *big.Int
	TotalStakedUSD   *big.Int
	ALMAmount0       *big.Int
	ALMAmount1       *big.Int
	ALMLiquidityUSD  *big.Int
	VotingRewardsUSD *big.Int

	LastUpdated uint64
}

// NonFungiblePosition is a concentrated-liquidity NFT. While the real tokenId
// is unknown the row lives under a placeholder id with TokenID == 0.
type NonFungiblePosition struct {
	ID        string
	ChainID   uint64
	TokenID   uint64
	Pool      string
	Owner     string
	TickLower int32
	TickUpper int32
	Liquidity *big.Int
	Amount0   *big.Int
	Amount1   *big.Int
	AmountUSD *big.Int
	TxHash    string
	LogIndex  uint64

	LastUpdated uint64
}

// Resolved reports whether the position carries its real token id.
func (p NonFungiblePosition) Resolved() bool {
	return p.TokenID != 0
}

// ALMWrapper aggregates vault-level state for one ALM wrapper contract.
// AMMStateIsDerived tells consumers whether the tick/liquidity snapshot was
// set directly from chain state or recomputed from the amount totals.
type ALMWrapper struct {
	ID      string
	ChainID uint64
	Address string
	Pool    string

	Amount0  *big.Int
	Amount1  *big.Int
	LPAmount *big.Int

	TickLower         int32
	TickUpper         int32
	Liquidity         *big.Int
	AMMStateIsDerived bool

	LastUpdated uint64
}

// VeNFTAggregator is per (chain, tokenId) vote-escrow lock state.
type VeNFTAggregator struct {
	ID               string
	ChainID          uint64
	TokenID          uint64
	Owner            string
	LockTime         uint64
	TotalValueLocked *big.Int
	IsAlive          bool

	LastUpdated uint64
}

// TokenID builds the canonical id for a token entity.
func TokenEntityID(chainID uint64, address string) string {
	return fmt.Sprintf("%d-%s", chainID, strings.ToLower(address))
}

// PoolEntityID builds the canonical id for a pool entity.
func PoolEntityID(chainID uint64, address string) string {
	return fmt.Sprintf("%d-%s", chainID, strings.ToLower(address))
}

// UserStatsEntityID builds the canonical id for a user/pool stats row.
func UserStatsEntityID(chainID uint64, user, pool string) string {
	return fmt.Sprintf("%d-%s-%s", chainID, strings.ToLower(user), strings.ToLower(pool))
}

// PositionPlaceholderID keys a position before its tokenId is known.
func PositionPlaceholderID(chainID uint64, txHash string, logIndex uint64) string {
	return fmt.Sprintf("%d_%s_%d", chainID, strings.ToLower(txHash), logIndex)
}

// PositionEntityID keys a position once its tokenId is known.
func PositionEntityID(chainID uint64, tokenID uint64) string {
	return fmt.Sprintf("%d_%d", chainID, tokenID)
}

// ALMWrapperEntityID keys an ALM wrapper contract on a chain.
func ALMWrapperEntityID(chainID uint64, address string) string {
	return fmt.Sprintf("%d-%s", chainID, strings.ToLower(address))
}

// SnapshotEntityID keys one price audit row per (token, block).
func SnapshotEntityID(chainID uint64, address string, blockNumber uint64) string {
	return fmt.Sprintf("%d-%s-%d", chainID, strings.ToLower(address), blockNumber)
}

// VeNFTEntityID keys a vote-escrow lock.
func VeNFTEntityID(chainID uint64, tokenID uint64) string {
	return fmt.Sprintf("%d_%d", chainID, tokenID)
}

// CLPoolName derives the display name for a concentrated-liquidity pool from
// its tick spacing, e.g. "CL100".
func CLPoolName(tickSpacing int32) string {
	return fmt.Sprintf("CL%d", tickSpacing)
}
