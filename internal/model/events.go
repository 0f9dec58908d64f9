package model

// Decoded event payloads. Large numbers travel as decimal strings so that
// JSON round-trips never lose precision.

// PoolCreatedEventData is the decoded PoolCreated/PairCreated payload.
type PoolCreatedEventData struct {
	Token0      string `json:"token0"`
	Token1      string `json:"token1"`
	Pool        string `json:"pool"`
	Stable      bool   `json:"stable"`
	IsCL        bool   `json:"is_cl"`
	TickSpacing int32  `json:"tick_spacing"`
}

// SwapEventData is the decoded Swap event payload.
type SwapEventData struct {
	Sender       string `json:"sender"`
	Recipient    string `json:"recipient"`
	Amount0      string `json:"amount0"`
	Amount1      string `json:"amount1"`
	SqrtPriceX96 string `json:"sqrt_price_x96"`
	Liquidity    string `json:"liquidity"`
	Tick         int32  `json:"tick"`
}

// SyncEventData carries the post-event pool reserves.
type SyncEventData struct {
	Reserve0 string `json:"reserve0"`
	Reserve1 string `json:"reserve1"`
}

// FeesEventData is the decoded fee-collection payload (v2 Fees / CL CollectFees).
type FeesEventData struct {
	Sender  string `json:"sender"`
	Amount0 string `json:"amount0"`
	Amount1 string `json:"amount1"`
}

// MintEventData is the decoded CL pool Mint payload.
type MintEventData struct {
	Sender    string `json:"sender"`
	Owner     string `json:"owner"`
	TickLower int32  `json:"tick_lower"`
	TickUpper int32  `json:"tick_upper"`
	Amount    string `json:"amount"`
	Amount0   string `json:"amount0"`
	Amount1   string `json:"amount1"`
}

// BurnEventData is the decoded CL pool Burn payload.
type BurnEventData struct {
	Owner     string `json:"owner"`
	TickLower int32  `json:"tick_lower"`
	TickUpper int32  `json:"tick_upper"`
	Amount    string `json:"amount"`
	Amount0   string `json:"amount0"`
	Amount1   string `json:"amount1"`
}

// SetFeeProtocolEventData updates the CL pool protocol-fee split.
type SetFeeProtocolEventData struct {
	FeeProtocol0 uint32 `json:"fee_protocol0"`
	FeeProtocol1 uint32 `json:"fee_protocol1"`
}

// IncreaseObservationCardinalityNextEventData grows the CL oracle buffer.
type IncreaseObservationCardinalityNextEventData struct {
	ObservationCardinalityNextNew uint32 `json:"observation_cardinality_next_new"`
}

// GaugeCreatedEventData announces a gauge plus its bribe voting reward contract.
type GaugeCreatedEventData struct {
	Pool              string `json:"pool"`
	Gauge             string `json:"gauge"`
	BribeVotingReward string `json:"bribe_voting_reward"`
	FeeVotingReward   string `json:"fee_voting_reward"`
}

// GaugeDepositEventData stakes LP into a gauge; the emitting contract is the gauge.
type GaugeDepositEventData struct {
	User   string `json:"user"`
	Amount string `json:"amount"`
}

// GaugeWithdrawEventData unstakes LP from a gauge.
type GaugeWithdrawEventData struct {
	User   string `json:"user"`
	Amount string `json:"amount"`
}

// NFTTransferEventData is the position-manager ERC721 Transfer payload.
// A transfer from the zero address assigns the tokenId minted in this tx.
type NFTTransferEventData struct {
	From    string `json:"from"`
	To      string `json:"to"`
	TokenID uint64 `json:"token_id"`
}

// IncreaseLiquidityEventData is the position-manager IncreaseLiquidity payload.
type IncreaseLiquidityEventData struct {
	TokenID   uint64 `json:"token_id"`
	Pool      string `json:"pool"`
	TickLower int32  `json:"tick_lower"`
	TickUpper int32  `json:"tick_upper"`
	Liquidity string `json:"liquidity"`
	Amount0   string `json:"amount0"`
	Amount1   string `json:"amount1"`
}

// DecreaseLiquidityEventData is the position-manager DecreaseLiquidity payload.
type DecreaseLiquidityEventData struct {
	TokenID   uint64 `json:"token_id"`
	Liquidity string `json:"liquidity"`
	Amount0   string `json:"amount0"`
	Amount1   string `json:"amount1"`
}

// ALMDepositEventData is an ALM wrapper deposit.
type ALMDepositEventData struct {
	Wrapper  string `json:"wrapper"`
	Pool     string `json:"pool"`
	User     string `json:"user"`
	Amount0  string `json:"amount0"`
	Amount1  string `json:"amount1"`
	LPAmount string `json:"lp_amount"`
}

// ALMWithdrawEventData is an ALM wrapper withdrawal.
type ALMWithdrawEventData struct {
	Wrapper  string `json:"wrapper"`
	Pool     string `json:"pool"`
	User     string `json:"user"`
	Amount0  string `json:"amount0"`
	Amount1  string `json:"amount1"`
	LPAmount string `json:"lp_amount"`
}

// ALMRebalanceEventData carries the wrapper's position snapshot. V2-style
// wrappers report ticks and liquidity directly; older wrappers only report
// amounts, leaving the snapshot to be derived from them.
type ALMRebalanceEventData struct {
	Wrapper      string `json:"wrapper"`
	Pool         string `json:"pool"`
	Amount0      string `json:"amount0"`
	Amount1      string `json:"amount1"`
	TickLower    *int32 `json:"tick_lower,omitempty"`
	TickUpper    *int32 `json:"tick_upper,omitempty"`
	Liquidity    string `json:"liquidity,omitempty"`
	SqrtPriceX96 string `json:"sqrt_price_x96,omitempty"`
}

// VeNFTDepositEventData creates or extends a vote-escrow lock.
type VeNFTDepositEventData struct {
	Provider string `json:"provider"`
	TokenID  uint64 `json:"token_id"`
	Value    string `json:"value"`
	LockTime uint64 `json:"lock_time"`
}

// VeNFTWithdrawEventData releases a vote-escrow lock.
type VeNFTWithdrawEventData struct {
	Provider string `json:"provider"`
	TokenID  uint64 `json:"token_id"`
	Value    string `json:"value"`
}

// VeNFTTransferEventData moves lock ownership; a transfer to the zero
// address burns the lock.
type VeNFTTransferEventData struct {
	From    string `json:"from"`
	To      string `json:"to"`
	TokenID uint64 `json:"token_id"`
}

// GaugeNotifyRewardEventData funds a gauge with reward-token emissions for
// the epoch; the emitting contract is the gauge.
type GaugeNotifyRewardEventData struct {
	From   string `json:"from"`
	Amount string `json:"amount"`
}

// BribeNotifyRewardEventData posts an incentive on a bribe voting reward
// contract; the emitting contract is the bribe contract.
type BribeNotifyRewardEventData struct {
	From   string `json:"from"`
	Token  string `json:"token"`
	Amount string `json:"amount"`
}

// ClaimRewardsEventData pays out accrued voting rewards to a user; the
// emitting contract is the voting reward contract.
type ClaimRewardsEventData struct {
	From   string `json:"from"`
	Token  string `json:"token"`
	Amount string `json:"amount"`
}

// VoteEventData records votes cast for a pool.
type VoteEventData struct {
	Voter   string `json:"voter"`
	Pool    string `json:"pool"`
	Weight  string `json:"weight"`
	TokenID uint64 `json:"token_id"`
}
