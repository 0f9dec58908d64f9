// Package engine applies decoded protocol events to the aggregate entities.
// Every event type has an apply function and optionally a collect function:
// collect runs speculatively across a batch and may only read (store lookups
// and memoized oracle calls), apply runs strictly in order and is the only
// writer. Apply always re-reads the latest committed entity state before
// merging, so a discarded or stale collect can never corrupt an aggregate.
package engine

import (
	"context"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"ammLedger/internal/chain"
	"ammLedger/internal/config"
	"ammLedger/internal/lookup"
	"ammLedger/internal/model"
	"ammLedger/internal/oracle"
	"ammLedger/internal/position"
	"ammLedger/internal/storage"
	"ammLedger/internal/store"
)

// Engine holds the shared collaborators handlers work against.
type Engine struct {
	store      store.EntityStore
	prices     *oracle.PriceCache
	lookup     *lookup.Lookup
	reconciler *position.Reconciler
	callers    map[uint64]chain.Caller
	chains     map[uint64]config.ChainConfig
	decimals   *chain.DecimalsCache
	skipped    storage.SkippedSink
	logger     *zap.Logger

	// pendingOwners holds recipients of mint transfers that arrived before
	// the position row existed, keyed by position entity id. Touched only by
	// the sequential apply phase.
	pendingOwners map[string]string
}

// SetSkippedSink routes skipped events to a sidecar in addition to the log.
func (e *Engine) SetSkippedSink(sink storage.SkippedSink) {
	e.skipped = sink
}

func New(
	entityStore store.EntityStore,
	prices *oracle.PriceCache,
	poolLookup *lookup.Lookup,
	reconciler *position.Reconciler,
	callers map[uint64]chain.Caller,
	chainConfigs []config.ChainConfig,
	logger *zap.Logger,
) *Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	chains := make(map[uint64]config.ChainConfig, len(chainConfigs))
	for _, cfg := range chainConfigs {
		chains[cfg.ChainID] = cfg
	}
	return &Engine{
		store:         entityStore,
		prices:        prices,
		lookup:        poolLookup,
		reconciler:    reconciler,
		callers:       callers,
		chains:        chains,
		decimals:      chain.NewDecimalsCache(),
		pendingOwners: make(map[string]string),
		logger:        logger,
	}
}

type handlerFuncs struct {
	collect func(ctx context.Context, e *Engine, ev model.EventRecord) error
	apply   func(ctx context.Context, e *Engine, ev model.EventRecord) error
}

var handlers = map[string]handlerFuncs{
	"PoolCreated":                        {apply: applyPoolCreated},
	"Swap":                               {collect: collectSwap, apply: applySwap},
	"Sync":                               {collect: collectSync, apply: applySync},
	"Fees":                               {collect: collectSync, apply: applyFees},
	"Mint":                               {collect: collectSync, apply: applyMint},
	"Burn":                               {collect: collectSync, apply: applyBurn},
	"SetFeeProtocol":                     {apply: applySetFeeProtocol},
	"IncreaseObservationCardinalityNext": {apply: applyIncreaseObservationCardinalityNext},
	"GaugeCreated":                       {apply: applyGaugeCreated},
	"GaugeDeposit":                       {apply: applyGaugeDeposit},
	"GaugeWithdraw":                      {apply: applyGaugeWithdraw},
	"GaugeNotifyReward":                  {collect: collectGaugeNotifyReward, apply: applyGaugeNotifyReward},
	"BribeNotifyReward":                  {collect: collectBribeNotifyReward, apply: applyBribeNotifyReward},
	"ClaimRewards":                       {collect: collectBribeNotifyReward, apply: applyClaimRewards},
	"Vote":                               {apply: applyVote},
	"NFTTransfer":                        {apply: applyNFTTransfer},
	"IncreaseLiquidity":                  {collect: collectIncreaseLiquidity, apply: applyIncreaseLiquidity},
	"DecreaseLiquidity":                  {apply: applyDecreaseLiquidity},
	"ALMDeposit":                         {collect: collectALM, apply: applyALMDeposit},
	"ALMWithdraw":                        {collect: collectALM, apply: applyALMWithdraw},
	"ALMRebalance":                       {apply: applyALMRebalance},
	"VeNFTDeposit":                       {apply: applyVeNFTDeposit},
	"VeNFTWithdraw":                      {apply: applyVeNFTWithdraw},
	"VeNFTTransfer":                      {apply: applyVeNFTTransfer},
}

// Known reports whether the engine has a handler for an event name.
func Known(eventName string) bool {
	_, ok := handlers[eventName]
	return ok
}

// Collect runs the speculative read phase for one event. Errors are returned
// for observability but are never fatal; apply does not depend on collect
// having run.
func (e *Engine) Collect(ctx context.Context, ev model.EventRecord) error {
	h, ok := handlers[ev.EventName]
	if !ok || h.collect == nil {
		return nil
	}
	return h.collect(ctx, e, ev)
}

// Apply runs the write phase for one event. A nil return means the event was
// fully applied or deliberately skipped (and logged); a non-nil return means
// infrastructure failure and the caller should stop.
func (e *Engine) Apply(ctx context.Context, ev model.EventRecord) error {
	h, ok := handlers[ev.EventName]
	if !ok {
		e.logger.Debug("no handler for event", zap.String("event", ev.EventName))
		return nil
	}
	return h.apply(ctx, e, ev)
}

// skip logs a deliberately skipped event with full coordinates.
func (e *Engine) skip(ev model.EventRecord, reason string) {
	rec := model.SkippedEvent{
		ChainID:     ev.ChainID,
		BlockNumber: ev.BlockNumber,
		TxHash:      ev.TxHash,
		LogIndex:    ev.LogIndex,
		Address:     ev.Address,
		EventName:   ev.EventName,
		Reason:      reason,
	}
	e.logger.Error("event skipped",
		zap.String("reason", rec.Reason),
		zap.String("event", rec.EventName),
		zap.Uint64("chain_id", rec.ChainID),
		zap.Uint64("block", rec.BlockNumber),
		zap.String("tx_hash", rec.TxHash),
		zap.Uint64("log_index", rec.LogIndex),
		zap.String("address", rec.Address),
	)
	if e.skipped != nil {
		if err := e.skipped.Append(rec); err != nil {
			e.logger.Warn("skipped event sink write failed", zap.Error(err))
		}
	}
}

// tokenDecimals resolves a token's decimals: stored entity first, then the
// per-process cache, then an ERC20 call. Unresolvable decimals fall back to
// 18 with a warning rather than blocking the event.
func (e *Engine) tokenDecimals(ctx context.Context, chainID uint64, address string) uint8 {
	if existing, err := e.store.Token(ctx, model.TokenEntityID(chainID, address)); err == nil && existing != nil {
		return existing.Decimals
	}
	addr := common.HexToAddress(address)
	if decimals, ok := e.decimals.Get(chainID, addr); ok {
		return decimals
	}
	caller := e.callers[chainID]
	decimals, err := chain.FetchDecimals(ctx, caller, addr)
	if err != nil {
		e.logger.Warn("token decimals unavailable, assuming 18",
			zap.Uint64("chain_id", chainID),
			zap.String("token", address),
			zap.Error(err),
		)
		decimals = 18
	}
	e.decimals.Set(chainID, addr, decimals)
	return decimals
}

// pricedToken returns the token row with a fresh-enough USD price.
func (e *Engine) pricedToken(ctx context.Context, ev model.EventRecord, address string) (model.Token, error) {
	decimals := e.tokenDecimals(ctx, ev.ChainID, address)
	return e.prices.Token(ctx, ev.ChainID, address, decimals, ev.BlockNumber, ev.Timestamp)
}

// warmToken primes the price memo during collect. Store errors are ignored;
// apply re-resolves authoritatively.
func (e *Engine) warmToken(ctx context.Context, ev model.EventRecord, address string) {
	decimals := e.tokenDecimals(ctx, ev.ChainID, address)
	e.prices.Warm(ctx, ev.ChainID, address, decimals, ev.BlockNumber, ev.Timestamp)
}

// parseBig parses a decimal string payload field. Empty means zero.
func parseBig(s string) (*big.Int, error) {
	if s == "" {
		return new(big.Int), nil
	}
	v, ok := new(big.Int).SetString(s, 10)
	if !ok {
		return nil, fmt.Errorf("malformed numeric %q", s)
	}
	return v, nil
}

// loadPool fetches the pool aggregator for the emitting or referenced
// address. A missing pool is the caller's skip condition.
func (e *Engine) loadPool(ctx context.Context, chainID uint64, address string) (*model.LiquidityPoolAggregator, error) {
	return e.store.Pool(ctx, model.PoolEntityID(chainID, address))
}

// loadUserStats returns the current stats row for (user, pool), creating the
// zero row lazily on first interaction.
func (e *Engine) loadUserStats(ctx context.Context, chainID uint64, user, pool string) (model.UserStatsPerPool, error) {
	id := model.UserStatsEntityID(chainID, user, pool)
	existing, err := e.store.UserStats(ctx, id)
	if err != nil {
		return model.UserStatsPerPool{}, err
	}
	if existing != nil {
		return *existing, nil
	}
	return model.UserStatsPerPool{
		ID:      id,
		ChainID: chainID,
		User:    strings.ToLower(user),
		Pool:    strings.ToLower(pool),
	}, nil
}

func zeroAddress(address string) bool {
	return common.HexToAddress(address) == (common.Address{})
}
