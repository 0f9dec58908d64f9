// Package lookup maps gauge and bribe contract addresses back to the pool
// they belong to. Reward events carry only the gauge or bribe address, so
// the mapping recorded at gauge creation is the only way home.
package lookup

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"go.uber.org/zap"
)

// Cache durably backs the in-memory mapping so a restart does not lose
// associations recorded before the current run.
type Cache interface {
	Load(ctx context.Context) (map[string]string, error)
	Put(ctx context.Context, key, pool string) error
}

// Lookup is the in-memory pool address index with write-through persistence.
// Reads never touch the cache backend.
type Lookup struct {
	mu      sync.RWMutex
	entries map[string]string
	cache   Cache
	logger  *zap.Logger
}

// New builds a Lookup primed from the cache backend. A nil cache yields a
// memory-only index.
func New(ctx context.Context, cache Cache, logger *zap.Logger) (*Lookup, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	entries := make(map[string]string)
	if cache != nil {
		loaded, err := cache.Load(ctx)
		if err != nil {
			return nil, fmt.Errorf("load lookup cache: %w", err)
		}
		for key, pool := range loaded {
			entries[key] = pool
		}
		logger.Info("pool lookup primed", zap.Int("entries", len(entries)))
	}
	return &Lookup{entries: entries, cache: cache, logger: logger}, nil
}

// RecordGauge associates a gauge address with its pool.
func (l *Lookup) RecordGauge(ctx context.Context, chainID uint64, gauge, pool string) error {
	return l.record(ctx, gaugeKey(chainID, gauge), pool)
}

// RecordBribe associates a bribe voting reward address with its pool.
func (l *Lookup) RecordBribe(ctx context.Context, chainID uint64, bribe, pool string) error {
	return l.record(ctx, bribeKey(chainID, bribe), pool)
}

// GaugePool returns the pool behind a gauge address.
func (l *Lookup) GaugePool(chainID uint64, gauge string) (string, bool) {
	return l.get(gaugeKey(chainID, gauge))
}

// BribePool returns the pool behind a bribe voting reward address.
func (l *Lookup) BribePool(chainID uint64, bribe string) (string, bool) {
	return l.get(bribeKey(chainID, bribe))
}

func (l *Lookup) record(ctx context.Context, key, pool string) error {
	pool = strings.ToLower(pool)
	l.mu.Lock()
	l.entries[key] = pool
	l.mu.Unlock()
	if l.cache == nil {
		return nil
	}
	if err := l.cache.Put(ctx, key, pool); err != nil {
		return fmt.Errorf("persist lookup entry: %w", err)
	}
	return nil
}

func (l *Lookup) get(key string) (string, bool) {
	l.mu.RLock()
	pool, ok := l.entries[key]
	l.mu.RUnlock()
	return pool, ok
}

func gaugeKey(chainID uint64, gauge string) string {
	return fmt.Sprintf("%d:gauge:%s", chainID, strings.ToLower(gauge))
}

func bribeKey(chainID uint64, bribe string) string {
	return fmt.Sprintf("%d:bribe:%s", chainID, strings.ToLower(bribe))
}
