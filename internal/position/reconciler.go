// Package position reconciles concentrated-liquidity NFT rows created before
// their token id was known with the mint events that reveal it.
package position

import (
	"context"
	"math/big"

	"go.uber.org/zap"

	"ammLedger/internal/model"
	"ammLedger/internal/store"
)

// Reconciler rewrites placeholder position rows to their canonical id once
// the token id surfaces. Placeholders are keyed by (chain, tx, log index)
// and carry TokenID 0 as the unresolved sentinel.
type Reconciler struct {
	store  store.EntityStore
	logger *zap.Logger
}

func NewReconciler(entityStore store.EntityStore, logger *zap.Logger) *Reconciler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Reconciler{store: entityStore, logger: logger}
}

// CreatePlaceholder records a position under its placeholder id. The caller
// provides the mint-time amounts later used for matching.
func (r *Reconciler) CreatePlaceholder(ctx context.Context, position model.NonFungiblePosition) error {
	position.ID = model.PositionPlaceholderID(position.ChainID, position.TxHash, position.LogIndex)
	position.TokenID = 0
	return r.store.SetPosition(ctx, position)
}

// Resolve attaches a revealed token id to the placeholder in the same
// transaction whose amounts match. Candidates are scanned in log-index order
// and the first match wins; ambiguity between identical mints in one
// transaction is harmless because the rows are interchangeable. A miss is
// logged and skipped, never an error.
func (r *Reconciler) Resolve(ctx context.Context, chainID uint64, txHash string, tokenID uint64, amount0, amount1 *big.Int) error {
	if tokenID == 0 {
		return nil
	}
	candidates, err := r.store.PositionsByTx(ctx, chainID, txHash)
	if err != nil {
		return err
	}

	for _, candidate := range candidates {
		if candidate.Resolved() {
			continue
		}
		if !amountsMatch(candidate.Amount0, amount0) || !amountsMatch(candidate.Amount1, amount1) {
			continue
		}

		resolved := candidate
		resolved.ID = model.PositionEntityID(chainID, tokenID)
		resolved.TokenID = tokenID
		if err := r.store.SetPosition(ctx, resolved); err != nil {
			return err
		}
		return r.store.DeletePosition(ctx, candidate.ID)
	}

	r.logger.Warn("no placeholder matched revealed token id",
		zap.Uint64("chain_id", chainID),
		zap.String("tx_hash", txHash),
		zap.Uint64("token_id", tokenID),
	)
	return nil
}

// CleanupOrphans drops placeholder rows left unresolved after every reveal in
// the transaction has been processed.
func (r *Reconciler) CleanupOrphans(ctx context.Context, chainID uint64, txHash string) (int, error) {
	candidates, err := r.store.PositionsByTx(ctx, chainID, txHash)
	if err != nil {
		return 0, err
	}
	removed := 0
	for _, candidate := range candidates {
		if candidate.Resolved() {
			continue
		}
		if err := r.store.DeletePosition(ctx, candidate.ID); err != nil {
			return removed, err
		}
		removed++
		r.logger.Warn("dropped orphaned position placeholder",
			zap.String("id", candidate.ID),
			zap.String("pool", candidate.Pool),
		)
	}
	return removed, nil
}

func amountsMatch(a, b *big.Int) bool {
	if a == nil {
		a = new(big.Int)
	}
	if b == nil {
		b = new(big.Int)
	}
	return a.Cmp(b) == 0
}
