// Package store defines the entity store boundary the engine writes through.
// All methods are context-aware; getters return (nil, nil) when the entity
// does not exist, never a sentinel error.
package store

import (
	"context"

	"ammLedger/internal/model"
)

// EntityStore is the single shared mutable resource of the engine. The apply
// phase is the only writer; correctness relies on it being sequential per
// chain, not on any lock here.
type EntityStore interface {
	Token(ctx context.Context, id string) (*model.Token, error)
	SetToken(ctx context.Context, token model.Token) error

	AddTokenPriceSnapshot(ctx context.Context, snapshot model.TokenPriceSnapshot) error

	Pool(ctx context.Context, id string) (*model.LiquidityPoolAggregator, error)
	SetPool(ctx context.Context, pool model.LiquidityPoolAggregator) error

	UserStats(ctx context.Context, id string) (*model.UserStatsPerPool, error)
	SetUserStats(ctx context.Context, stats model.UserStatsPerPool) error

	Position(ctx context.Context, id string) (*model.NonFungiblePosition, error)
	SetPosition(ctx context.Context, position model.NonFungiblePosition) error
	// PositionsByTx returns all positions recorded for a transaction ordered
	// by log index, resolved and placeholder rows alike.
	PositionsByTx(ctx context.Context, chainID uint64, txHash string) ([]model.NonFungiblePosition, error)
	// DeletePosition removes a row without tombstoning. Only the reconciler
	// calls this, and only for superseded placeholder rows.
	DeletePosition(ctx context.Context, id string) error

	ALMWrapper(ctx context.Context, id string) (*model.ALMWrapper, error)
	SetALMWrapper(ctx context.Context, wrapper model.ALMWrapper) error

	VeNFT(ctx context.Context, id string) (*model.VeNFTAggregator, error)
	SetVeNFT(ctx context.Context, venft model.VeNFTAggregator) error
}
