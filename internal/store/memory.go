package store

import (
	"context"
	"sort"
	"strings"
	"sync"

	"ammLedger/internal/model"
)

// MemoryStore is an in-process EntityStore used by tests and by the collect
// phase when handlers need a scratch view.
type MemoryStore struct {
	mu        sync.RWMutex
	tokens    map[string]model.Token
	snapshots []model.TokenPriceSnapshot
	pools     map[string]model.LiquidityPoolAggregator
	userStats map[string]model.UserStatsPerPool
	positions map[string]model.NonFungiblePosition
	wrappers  map[string]model.ALMWrapper
	venfts    map[string]model.VeNFTAggregator
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		tokens:    make(map[string]model.Token),
		pools:     make(map[string]model.LiquidityPoolAggregator),
		userStats: make(map[string]model.UserStatsPerPool),
		positions: make(map[string]model.NonFungiblePosition),
		wrappers:  make(map[string]model.ALMWrapper),
		venfts:    make(map[string]model.VeNFTAggregator),
	}
}

func (s *MemoryStore) Token(_ context.Context, id string) (*model.Token, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if token, ok := s.tokens[id]; ok {
		return &token, nil
	}
	return nil, nil
}

func (s *MemoryStore) SetToken(_ context.Context, token model.Token) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tokens[token.ID] = token
	return nil
}

func (s *MemoryStore) AddTokenPriceSnapshot(_ context.Context, snapshot model.TokenPriceSnapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.snapshots = append(s.snapshots, snapshot)
	return nil
}

// Snapshots returns the append-only audit log, for test assertions.
func (s *MemoryStore) Snapshots() []model.TokenPriceSnapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]model.TokenPriceSnapshot, len(s.snapshots))
	copy(out, s.snapshots)
	return out
}

func (s *MemoryStore) Pool(_ context.Context, id string) (*model.LiquidityPoolAggregator, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if pool, ok := s.pools[id]; ok {
		return &pool, nil
	}
	return nil, nil
}

func (s *MemoryStore) SetPool(_ context.Context, pool model.LiquidityPoolAggregator) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pools[pool.ID] = pool
	return nil
}

func (s *MemoryStore) UserStats(_ context.Context, id string) (*model.UserStatsPerPool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if stats, ok := s.userStats[id]; ok {
		return &stats, nil
	}
	return nil, nil
}

func (s *MemoryStore) SetUserStats(_ context.Context, stats model.UserStatsPerPool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.userStats[stats.ID] = stats
	return nil
}

func (s *MemoryStore) Position(_ context.Context, id string) (*model.NonFungiblePosition, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if position, ok := s.positions[id]; ok {
		return &position, nil
	}
	return nil, nil
}

func (s *MemoryStore) SetPosition(_ context.Context, position model.NonFungiblePosition) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.positions[position.ID] = position
	return nil
}

func (s *MemoryStore) PositionsByTx(_ context.Context, chainID uint64, txHash string) ([]model.NonFungiblePosition, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	needle := strings.ToLower(txHash)
	var out []model.NonFungiblePosition
	for _, position := range s.positions {
		if position.ChainID == chainID && strings.ToLower(position.TxHash) == needle {
			out = append(out, position)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].LogIndex < out[j].LogIndex })
	return out, nil
}

func (s *MemoryStore) DeletePosition(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.positions, id)
	return nil
}

func (s *MemoryStore) ALMWrapper(_ context.Context, id string) (*model.ALMWrapper, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if wrapper, ok := s.wrappers[id]; ok {
		return &wrapper, nil
	}
	return nil, nil
}

func (s *MemoryStore) SetALMWrapper(_ context.Context, wrapper model.ALMWrapper) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.wrappers[wrapper.ID] = wrapper
	return nil
}

func (s *MemoryStore) VeNFT(_ context.Context, id string) (*model.VeNFTAggregator, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if venft, ok := s.venfts[id]; ok {
		return &venft, nil
	}
	return nil, nil
}

func (s *MemoryStore) SetVeNFT(_ context.Context, venft model.VeNFTAggregator) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.venfts[venft.ID] = venft
	return nil
}

var _ EntityStore = (*MemoryStore)(nil)
