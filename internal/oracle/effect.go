package oracle

import (
	"math/big"
	"sync"
)

// callKey identifies one memoized oracle read. Keying on the full argument
// tuple makes a repeated read during speculative collects free.
type callKey struct {
	chainID uint64
	token   string
	block   uint64
}

// CallCache memoizes resolved prices per (chain, token, block). Entries are
// never invalidated: a price at a block is immutable chain state.
type CallCache struct {
	mu      sync.RWMutex
	entries map[callKey]*big.Int
}

func NewCallCache() *CallCache {
	return &CallCache{entries: make(map[callKey]*big.Int)}
}

func (c *CallCache) get(key callKey) (*big.Int, bool) {
	c.mu.RLock()
	price, ok := c.entries[key]
	c.mu.RUnlock()
	if !ok {
		return nil, false
	}
	return new(big.Int).Set(price), true
}

func (c *CallCache) put(key callKey, price *big.Int) {
	c.mu.Lock()
	c.entries[key] = new(big.Int).Set(price)
	c.mu.Unlock()
}

// RoundBlock rounds a block number down to the nearest interval so that
// nearby valuations share a memoized oracle read. Interval 0 disables
// rounding. Callers must retry at the exact block when the rounded block
// predates the oracle deployment.
func RoundBlock(block, interval uint64) uint64 {
	if interval == 0 {
		return block
	}
	return block - (block % interval)
}
