// Package oracle resolves token USD prices against the protocol's on-chain
// price oracles. Prices are 1e18 fixed point; a zero price always means
// "unknown", never a real zero-value quote, and no resolution path returns
// an error to its caller.
package oracle

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"ammLedger/internal/chain"
	"ammLedger/internal/config"
	"ammLedger/internal/fixedpoint"
)

// connectorThreshold caps the routing hops per oracle call. The first N
// connectors after filtering are taken in configured order; no route-quality
// search is attempted.
const connectorThreshold = 10

var errNotDeployed = errors.New("oracle not deployed at block")

// Resolver performs multi-hop price discovery across oracle versions.
type Resolver struct {
	cfgs    map[uint64]config.ChainConfig
	callers map[uint64]chain.Caller
	cache   *CallCache
	logger  *zap.Logger
}

func NewResolver(chains []config.ChainConfig, callers map[uint64]chain.Caller, logger *zap.Logger) *Resolver {
	if logger == nil {
		logger = zap.NewNop()
	}
	cfgs := make(map[uint64]config.ChainConfig, len(chains))
	for _, cfg := range chains {
		cfgs[cfg.ChainID] = cfg
	}
	return &Resolver{
		cfgs:    cfgs,
		callers: callers,
		cache:   NewCallCache(),
		logger:  logger,
	}
}

// ResolvePrice returns the token's USD price in 1e18 fixed point at the
// given block, or zero when no quote could be obtained. Reads are memoized
// per (chain, token, rounded block); when the rounded block predates the
// oracle deployment or lacks historical state, the exact block is retried
// once before degrading to zero.
func (r *Resolver) ResolvePrice(ctx context.Context, address string, decimals uint8, blockNumber, chainID uint64) *big.Int {
	cfg, ok := r.cfgs[chainID]
	if !ok {
		r.logger.Error("price for unconfigured chain", zap.Uint64("chain_id", chainID), zap.String("token", address))
		return new(big.Int)
	}

	// USDC is the quote numeraire.
	if strings.EqualFold(address, cfg.USDC) {
		return new(big.Int).Set(fixedpoint.E18)
	}

	block := RoundBlock(blockNumber, cfg.BlockInterval)
	key := callKey{chainID: chainID, token: strings.ToLower(address), block: block}
	if price, ok := r.cache.get(key); ok {
		return price
	}

	price, err := r.resolveAt(ctx, cfg, chainID, address, decimals, block)
	if err != nil && block != blockNumber && (errors.Is(err, errNotDeployed) || isHistoricalStateErr(err)) {
		price, err = r.resolveAt(ctx, cfg, chainID, address, decimals, blockNumber)
	}
	if err != nil {
		if !errors.Is(err, errNotDeployed) {
			r.logger.Error("price resolution failed",
				zap.Uint64("chain_id", chainID),
				zap.String("token", address),
				zap.Uint64("block", blockNumber),
				zap.Error(err),
			)
		}
		price = new(big.Int)
	}

	r.cache.put(key, price)
	return new(big.Int).Set(price)
}

// Whitelisted reports whether the address is a configured connector marked
// whitelisted, or one of the fixed route anchors. Anchors always count.
func (r *Resolver) Whitelisted(chainID uint64, address string) bool {
	cfg, ok := r.cfgs[chainID]
	if !ok {
		return false
	}
	if strings.EqualFold(address, cfg.USDC) ||
		strings.EqualFold(address, cfg.WETH) ||
		strings.EqualFold(address, cfg.RewardToken) {
		return true
	}
	for _, connector := range cfg.Connectors {
		if strings.EqualFold(connector.Address, address) {
			return connector.Whitelisted
		}
	}
	return false
}

func (r *Resolver) resolveAt(ctx context.Context, cfg config.ChainConfig, chainID uint64, address string, decimals uint8, block uint64) (*big.Int, error) {
	caller := r.callers[chainID]
	if caller == nil {
		return nil, fmt.Errorf("no rpc client for chain %d", chainID)
	}

	v2ABI, v3ABI, err := loadOracleABIs()
	if err != nil {
		return nil, err
	}

	route := buildRoute(cfg, address, block)

	var (
		oracleAddr common.Address
		data       []byte
		unpackName string
		isV3       bool
	)
	switch {
	case cfg.OracleV3.Deployed(block):
		oracleAddr = common.HexToAddress(cfg.OracleV3.Address)
		unpackName = "getManyRatesWithThresholdFilter"
		data, err = v3ABI.Pack(unpackName, uint8(1), route, big.NewInt(0))
		isV3 = true
	case cfg.OracleV2.Deployed(block):
		oracleAddr = common.HexToAddress(cfg.OracleV2.Address)
		unpackName = "getManyRatesWithConnectors"
		data, err = v2ABI.Pack(unpackName, uint8(1), route)
	default:
		return nil, errNotDeployed
	}
	if err != nil {
		return nil, fmt.Errorf("pack oracle call: %w", err)
	}

	msg := ethereum.CallMsg{To: &oracleAddr, Data: data}
	resp, err := caller.CallContract(ctx, msg, new(big.Int).SetUint64(block))
	if err != nil {
		return nil, fmt.Errorf("oracle call: %w", err)
	}

	var values []interface{}
	if isV3 {
		values, err = v3ABI.Unpack(unpackName, resp)
	} else {
		values, err = v2ABI.Unpack(unpackName, resp)
	}
	if err != nil {
		return nil, fmt.Errorf("unpack oracle result: %w", err)
	}
	if len(values) != 1 {
		return nil, fmt.Errorf("oracle result size %d", len(values))
	}
	rates, ok := values[0].([]*big.Int)
	if !ok {
		return nil, fmt.Errorf("oracle result unexpected type %T", values[0])
	}
	if len(rates) == 0 || rates[0] == nil {
		return nil, fmt.Errorf("oracle returned empty rates")
	}

	if isV3 {
		// V3 rates are already 1e18 fixed point.
		return new(big.Int).Set(rates[0]), nil
	}
	return normalizeV2Rate(rates[0], decimals, cfg.USDCDecimals), nil
}

// buildRoute assembles [token, connectors..., rewardToken, weth, usdc].
// Connectors are whitelisted intermediates already deployed at the block,
// excluding the token itself and the three fixed trailing hops, capped at
// connectorThreshold in configured order.
func buildRoute(cfg config.ChainConfig, address string, block uint64) []common.Address {
	route := make([]common.Address, 0, connectorThreshold+4)
	route = append(route, common.HexToAddress(address))

	count := 0
	for _, connector := range cfg.Connectors {
		if count >= connectorThreshold {
			break
		}
		if !connector.Whitelisted || connector.CreatedBlock > block {
			continue
		}
		if strings.EqualFold(connector.Address, address) ||
			strings.EqualFold(connector.Address, cfg.WETH) ||
			strings.EqualFold(connector.Address, cfg.USDC) ||
			strings.EqualFold(connector.Address, cfg.RewardToken) {
			continue
		}
		route = append(route, common.HexToAddress(connector.Address))
		count++
	}

	route = append(route,
		common.HexToAddress(cfg.RewardToken),
		common.HexToAddress(cfg.WETH),
		common.HexToAddress(cfg.USDC),
	)
	return route
}

// normalizeV2Rate converts a V2 oracle quote to 1e18 fixed point. V2 quotes
// the USDC output for a 1e18-wei source amount in USDC native decimals, so
// the price per whole token is raw * 10^(tokenDecimals - usdcDecimals),
// rescaled to 1e18.
func normalizeV2Rate(raw *big.Int, tokenDecimals, usdcDecimals uint8) *big.Int {
	out := new(big.Int).Set(raw)
	if tokenDecimals >= usdcDecimals {
		return out.Mul(out, fixedpoint.Pow10(uint(tokenDecimals-usdcDecimals)))
	}
	return out.Quo(out, fixedpoint.Pow10(uint(usdcDecimals-tokenDecimals)))
}

// isHistoricalStateErr matches node errors meaning "no state at this block",
// which warrant one retry at the exact block before giving up.
func isHistoricalStateErr(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "missing trie node") ||
		strings.Contains(msg, "header not found") ||
		strings.Contains(msg, "state not available") ||
		strings.Contains(msg, "no historical")
}
