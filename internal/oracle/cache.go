package oracle

import (
	"context"
	"math/big"
	"strings"

	"go.uber.org/zap"

	"ammLedger/internal/model"
	"ammLedger/internal/store"
)

// refreshIntervalSeconds gates how often a token's stored price is refreshed
// from the oracle. The gate also applies after a failed refresh, so a token
// the oracle cannot quote is retried at most once per interval.
const refreshIntervalSeconds = 3600

// PriceCache is the sole writer of Token.PricePerUSD. Handlers read prices
// exclusively through it so that refresh timing and snapshot writing stay in
// one place.
type PriceCache struct {
	resolver *Resolver
	store    store.EntityStore
	logger   *zap.Logger
}

func NewPriceCache(resolver *Resolver, entityStore store.EntityStore, logger *zap.Logger) *PriceCache {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &PriceCache{resolver: resolver, store: entityStore, logger: logger}
}

// Whitelisted reports the routing whitelist status of a token.
func (c *PriceCache) Whitelisted(chainID uint64, address string) bool {
	return c.resolver.Whitelisted(chainID, address)
}

// Warm primes the resolver's call memo for a token whose next Token call
// would refresh. Strictly read-only against the entity store, which makes it
// the one price entry point the speculative collect phase may use.
func (c *PriceCache) Warm(ctx context.Context, chainID uint64, address string, decimals uint8, blockNumber, timestamp uint64) {
	existing, err := c.store.Token(ctx, model.TokenEntityID(chainID, address))
	if err != nil {
		return
	}
	if existing != nil {
		if existing.LastUpdated != 0 && timestamp < existing.LastUpdated+refreshIntervalSeconds {
			return
		}
		address = existing.Address
		decimals = existing.Decimals
	}
	c.resolver.ResolvePrice(ctx, address, decimals, blockNumber, chainID)
}

// Token returns the token row with a price no older than the refresh
// interval relative to the event timestamp. Unknown tokens are created on
// first sight. A refresh that resolves to zero keeps the previous price and
// still advances LastUpdated; only successful refreshes append a snapshot.
func (c *PriceCache) Token(ctx context.Context, chainID uint64, address string, decimals uint8, blockNumber, timestamp uint64) (model.Token, error) {
	id := model.TokenEntityID(chainID, address)
	existing, err := c.store.Token(ctx, id)
	if err != nil {
		return model.Token{}, err
	}

	var token model.Token
	if existing != nil {
		token = *existing
	} else {
		token = model.Token{
			ID:            id,
			Address:       strings.ToLower(address),
			ChainID:       chainID,
			Decimals:      decimals,
			PricePerUSD:   new(big.Int),
			IsWhitelisted: c.resolver.Whitelisted(chainID, address),
		}
	}
	if token.PricePerUSD == nil {
		token.PricePerUSD = new(big.Int)
	}

	if token.LastUpdated != 0 && timestamp < token.LastUpdated+refreshIntervalSeconds {
		return token, nil
	}

	price := c.resolver.ResolvePrice(ctx, token.Address, token.Decimals, blockNumber, chainID)
	if price.Sign() > 0 {
		token.PricePerUSD = price
		token.LastUpdated = timestamp
		if err := c.store.SetToken(ctx, token); err != nil {
			return model.Token{}, err
		}
		snapshot := model.TokenPriceSnapshot{
			ID:            model.SnapshotEntityID(chainID, token.Address, blockNumber),
			Address:       token.Address,
			ChainID:       chainID,
			BlockNumber:   blockNumber,
			Price:         new(big.Int).Set(price),
			IsWhitelisted: token.IsWhitelisted,
			Timestamp:     timestamp,
		}
		if err := c.store.AddTokenPriceSnapshot(ctx, snapshot); err != nil {
			return model.Token{}, err
		}
		return token, nil
	}

	// Unresolvable right now. Keep whatever price we had and advance the
	// clock so the next attempt waits out the interval.
	c.logger.Warn("token price unresolved, keeping previous",
		zap.Uint64("chain_id", chainID),
		zap.String("token", token.Address),
		zap.Uint64("block", blockNumber),
	)
	token.LastUpdated = timestamp
	if err := c.store.SetToken(ctx, token); err != nil {
		return model.Token{}, err
	}
	return token, nil
}
